package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/trycompai/comp-sub012/app"
)

func onboardingCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "onboarding",
		Short: "Manage onboarding runs",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "start <orgID>",
		Short: "Queue an onboarding run for an organization",
		Long: `Create an onboarding run and push its job onto the shared Redis queue,
where a running "complyctl serve" picks it up.

Examples:
  complyctl onboarding start 3f0c2b7e-6a55-4d8e-9f6b-1a2b3c4d5e6f`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			orgID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid organization ID %q", args[0])
			}

			cfg, logger, err := loadEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			// an in-memory queue would die with this process
			if cfg.Jobs.Backend != "redis" {
				return fmt.Errorf("onboarding start needs JOBS_BACKEND=redis, got %q", cfg.Jobs.Backend)
			}

			deps, err := app.NewDependencies(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer func() { _ = deps.Close(context.Background()) }()

			result, err := deps.Services.Onboarding.Start(cmd.Context(), orgID)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		},
	})

	return cmd
}
