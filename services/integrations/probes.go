package integrations

import (
	"context"
	"errors"
	"time"

	"github.com/trycompai/comp-sub012/config"
	"github.com/trycompai/comp-sub012/internal/mdm/fleet"
	"github.com/trycompai/comp-sub012/models"
	"go.uber.org/zap"
)

var errMissingCredentials = errors.New("connection is missing credentials")

// HubSpotProbe fetches the account details with the connection's token
func HubSpotProbe(crm CRMFactory) Probe {
	return func(ctx context.Context, conn *models.IntegrationConnection) (map[string]interface{}, error) {
		token := decodeMap(conn.Credentials)["access_token"]
		if token == "" {
			return nil, errMissingCredentials
		}
		account, err := crm(token).AccountDetails(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{
			"portal_id":    account.PortalID,
			"account_type": account.AccountType,
		}, nil
	}
}

// FleetProbe lists labels on the connection's Fleet server
func FleetProbe(timeout time.Duration, logger *zap.Logger) Probe {
	return func(ctx context.Context, conn *models.IntegrationConnection) (map[string]interface{}, error) {
		settings := decodeMap(conn.Settings)
		creds := decodeMap(conn.Credentials)
		client := fleet.New(config.FleetConfig{
			URL:      settings["url"],
			APIToken: creds["api_token"],
			Timeout:  timeout,
		}, logger)
		if !client.Configured() {
			return nil, errMissingCredentials
		}

		labels, err := client.ListLabels(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"labels": len(labels)}, nil
	}
}
