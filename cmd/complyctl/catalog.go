package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/trycompai/comp-sub012/services/integrations"
)

func catalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect the integration provider catalog",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "validate [path]",
		Short: "Validate a catalog file, or the built-in catalog when no path is given",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}

			providers, err := integrations.LoadCatalogFile(path)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, p := range providers {
				fmt.Fprintf(out, "%-20s %-10s %s\n", p.Slug, p.AuthType, p.Name)
			}
			fmt.Fprintf(out, "%d providers ok\n", len(providers))
			return nil
		},
	})

	return cmd
}
