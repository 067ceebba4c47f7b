package main

import (
	"github.com/spf13/cobra"
	"github.com/trycompai/comp-sub012/app"
)

func serveCmd() *cobra.Command {
	var noMigrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the API server and the job runner",
		Long: `Run the HTTP API together with the background job runner.

Pending migrations are applied first unless --no-migrate is given.

Examples:
  complyctl serve
  complyctl serve --no-migrate`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			return app.Serve(cmd.Context(), cfg, logger, app.ServeOptions{Migrate: !noMigrate})
		},
	}

	cmd.Flags().BoolVar(&noMigrate, "no-migrate", false, "skip applying pending migrations")
	return cmd
}
