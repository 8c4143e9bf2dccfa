package cmd

import (
	"github.com/spf13/cobra"

	"postern/internal/app"
)

func newServeCmd() *cobra.Command {
	var configPath string
	var debug bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the gateway",
		Long: `Starts the gateway: discovers the backend's capabilities, exposes them
over the configured MCP transport, and enforces OAuth authorization on every
tool call. Runs until interrupted.

Configuration is read from ~/.config/postern/config.yaml unless --config
points elsewhere. The config file is watched; edits trigger a forced tool
re-discovery without a restart.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := app.New(app.Options{
				ConfigPath: configPath,
				Debug:      debug,
				Version:    GetVersion(),
			})
			if err != nil {
				return err
			}
			return application.Run(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "path to the configuration file")
	cmd.Flags().BoolVar(&debug, "debug", false, "enable debug logging")
	return cmd
}
