// Package cmd implements the agentgate command line.
package cmd

import (
	"github.com/spf13/cobra"
)

// Execute runs the root command.
func Execute() error {
	return newRootCmd().Execute()
}

type rootOptions struct {
	configFile string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	rootCmd := &cobra.Command{
		Use:           "agentgate",
		Short:         "Chat-session gateway for wallet-enabled AI agents",
		Long:          "agentgate serves chat sessions backed by AI agents, admitting them under a fixed capacity, queueing the overflow and evicting idle sessions.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	rootCmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "config file (yaml, json or toml); environment variables take precedence")

	rootCmd.AddCommand(
		newVersionCmd(),
		newServeCmd(opts),
		newStatusCmd(),
	)
	return rootCmd
}
