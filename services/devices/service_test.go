package devices

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/trycompai/comp-sub012/config"
	"github.com/trycompai/comp-sub012/internal/mdm/fleet"
	"github.com/trycompai/comp-sub012/models"
	"github.com/trycompai/comp-sub012/services"
	"github.com/trycompai/comp-sub012/services/audit/audittest"
	"go.uber.org/zap"
)

type mockMDM struct {
	mock.Mock
	configured bool
}

func (m *mockMDM) Configured() bool { return m.configured }

func (m *mockMDM) EnsureLabel(ctx context.Context, name, description, query string) (*fleet.Label, bool, error) {
	args := m.Called(ctx, name, description, query)
	if args.Get(0) == nil {
		return nil, false, args.Error(2)
	}
	return args.Get(0).(*fleet.Label), args.Bool(1), args.Error(2)
}

func (m *mockMDM) GetLabelByName(ctx context.Context, name string) (*fleet.Label, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*fleet.Label), args.Error(1)
}

func (m *mockMDM) ListLabelHosts(ctx context.Context, labelID uint) ([]fleet.Host, error) {
	args := m.Called(ctx, labelID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]fleet.Host), args.Error(1)
}

var testFleet = config.FleetConfig{URL: "https://fleet.example.com/", APIToken: "t", EnrollSecret: "enroll-me"}

func TestService_EnsureOrgLabel(t *testing.T) {
	orgID := uuid.New()
	name := fleet.LabelName(orgID)

	t.Run("created is audited", func(t *testing.T) {
		mdm := &mockMDM{configured: true}
		recorder := &audittest.Recorder{}
		svc := NewService(mdm, testFleet, recorder, zap.NewNop())

		mdm.On("EnsureLabel", mock.Anything, name, mock.Anything, fleet.LabelQuery(orgID)).
			Return(&fleet.Label{ID: 12, Name: name}, true, nil)

		result, err := svc.EnsureOrgLabel(context.Background(), orgID)
		require.NoError(t, err)
		assert.Equal(t, uint(12), result.LabelID)
		assert.True(t, result.Created)
		assert.Equal(t, []models.AuditAction{models.AuditActionDeviceLabelSetup}, recorder.Actions())
	})

	t.Run("existing label is not audited", func(t *testing.T) {
		mdm := &mockMDM{configured: true}
		recorder := &audittest.Recorder{}
		svc := NewService(mdm, testFleet, recorder, zap.NewNop())

		mdm.On("EnsureLabel", mock.Anything, name, mock.Anything, mock.Anything).
			Return(&fleet.Label{ID: 12, Name: name}, false, nil)

		result, err := svc.EnsureOrgLabel(context.Background(), orgID)
		require.NoError(t, err)
		assert.False(t, result.Created)
		assert.Empty(t, recorder.Events())
	})

	t.Run("fleet failure", func(t *testing.T) {
		mdm := &mockMDM{configured: true}
		svc := NewService(mdm, testFleet, &audittest.Recorder{}, zap.NewNop())
		mdm.On("EnsureLabel", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(nil, false, errors.New("fleet: 500"))

		_, err := svc.EnsureOrgLabel(context.Background(), orgID)
		assert.ErrorIs(t, err, services.ErrMDMFailed)
	})

	t.Run("not configured", func(t *testing.T) {
		svc := NewService(&mockMDM{}, testFleet, &audittest.Recorder{}, zap.NewNop())
		_, err := svc.EnsureOrgLabel(context.Background(), orgID)
		assert.True(t, services.IsValidationError(err))
	})
}

func TestService_ListDevices(t *testing.T) {
	orgID := uuid.New()
	name := fleet.LabelName(orgID)

	t.Run("no label yet", func(t *testing.T) {
		mdm := &mockMDM{configured: true}
		svc := NewService(mdm, testFleet, &audittest.Recorder{}, zap.NewNop())
		mdm.On("GetLabelByName", mock.Anything, name).Return(nil, nil)

		devices, err := svc.ListDevices(context.Background(), orgID)
		require.NoError(t, err)
		assert.Empty(t, devices)
		mdm.AssertNotCalled(t, "ListLabelHosts", mock.Anything, mock.Anything)
	})

	t.Run("maps hosts", func(t *testing.T) {
		mdm := &mockMDM{configured: true}
		svc := NewService(mdm, testFleet, &audittest.Recorder{}, zap.NewNop())
		seen := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

		mdm.On("GetLabelByName", mock.Anything, name).Return(&fleet.Label{ID: 4, Name: name}, nil)
		mdm.On("ListLabelHosts", mock.Anything, uint(4)).Return([]fleet.Host{
			{ID: 1, ComputerName: "Jane's MacBook", Platform: "darwin", HardwareSerial: "C02X", Status: "online", SeenTime: seen},
		}, nil)

		devices, err := svc.ListDevices(context.Background(), orgID)
		require.NoError(t, err)
		require.Len(t, devices, 1)
		assert.Equal(t, "Jane's MacBook", devices[0].Hostname)
		assert.Equal(t, "C02X", devices[0].SerialNumber)
		assert.Equal(t, "2026-03-01T09:30:00Z", devices[0].LastSeenAt)
	})
}

func TestService_SetupScript(t *testing.T) {
	orgID := uuid.New()
	svc := NewService(&mockMDM{configured: true}, testFleet, &audittest.Recorder{}, zap.NewNop())

	script, err := svc.SetupScript(context.Background(), orgID, "darwin")
	require.NoError(t, err)
	assert.Equal(t, fleet.PlatformMacOS, script.Platform)
	assert.Contains(t, script.Content, "https://fleet.example.com")
	assert.Contains(t, script.Content, orgID.String())

	_, err = svc.SetupScript(context.Background(), orgID, "beos")
	assert.True(t, services.IsValidationError(err))

	unconfigured := NewService(&mockMDM{}, config.FleetConfig{}, &audittest.Recorder{}, zap.NewNop())
	_, err = unconfigured.SetupScript(context.Background(), orgID, "linux")
	assert.True(t, services.IsValidationError(err))
}
