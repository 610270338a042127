package cmd

import (
	"github.com/spf13/cobra"

	cfg "github.com/maastricht-university/edmo-sensing/config"
)

func newConfigCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cfg.Dump(cmd.OutOrStdout(), a.conf)
		},
	}
}
