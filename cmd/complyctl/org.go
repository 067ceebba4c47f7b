package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/trycompai/comp-sub012/app"
	"github.com/trycompai/comp-sub012/services/organizations"
	"github.com/trycompai/comp-sub012/utils"
)

func orgCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "org",
		Short: "Create and delete organizations",
	}

	var req organizations.CreateOrganizationRequest
	create := &cobra.Command{
		Use:   "create",
		Short: "Create an organization and its owner",
		Long: `Create an organization with its owner member and queue the CRM sync.

Examples:
  complyctl org create --name Acme --slug acme --owner-id user_1 --owner-email ceo@acme.com`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := utils.ValidateStruct(&req); err != nil {
				return err
			}
			return withDependencies(cmd, func(deps *app.Dependencies) error {
				result, err := deps.Services.Organizations.Create(cmd.Context(), req)
				if err != nil {
					return err
				}
				return printJSON(cmd, result)
			})
		},
	}
	create.Flags().StringVar(&req.Name, "name", "", "organization name")
	create.Flags().StringVar(&req.Slug, "slug", "", "organization slug")
	create.Flags().StringVar(&req.Website, "website", "", "company website")
	create.Flags().StringVar(&req.OwnerUserID, "owner-id", "", "user ID of the owner")
	create.Flags().StringVar(&req.OwnerEmail, "owner-email", "", "email of the owner")
	create.Flags().StringVar(&req.OwnerName, "owner-name", "", "display name of the owner")
	cmd.AddCommand(create)

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <orgID>",
		Short: "Delete an organization with its files and indexed documents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			orgID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid organization ID %q", args[0])
			}
			return withDependencies(cmd, func(deps *app.Dependencies) error {
				result, err := deps.Services.Organizations.Delete(cmd.Context(), orgID)
				if err != nil {
					return err
				}
				return printJSON(cmd, result)
			})
		},
	})

	return cmd
}

func withDependencies(cmd *cobra.Command, fn func(*app.Dependencies) error) error {
	cfg, logger, err := loadEnv(cmd.Context())
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	deps, err := app.NewDependencies(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = deps.Close(context.Background()) }()

	// audit events are written by the worker
	if err := deps.Audit.Start(); err != nil {
		return err
	}
	return fn(deps)
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
