package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"

	"postern/internal/config"
	"postern/internal/oauth"
)

func newLoginCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authenticate against the configured OAuth issuer",
		Long: `Runs the OAuth 2.1 device authorization flow against the configured
issuer and prints the granted scopes. Useful to verify the OAuth setup
before pointing a client at the gateway.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				path, err := config.GetDefaultConfigPath()
				if err != nil {
					return err
				}
				configPath = path
			}
			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				return err
			}
			if cfg.OAuth.Issuer == "" {
				return config.NewConfigurationError("oauth.issuer", "issuer is required for login")
			}

			metadata := oauth.NewMetadataCache(cfg.OAuth.Issuer, nil)
			client := oauth.NewTokenClient(cfg.OAuth.ClientID, metadata, nil)

			auth, err := client.StartDeviceFlow(cmd.Context(), cfg.OAuth.Scopes)
			if err != nil {
				return &authFailedError{err: fmt.Errorf("failed to start device flow: %w", err)}
			}

			uri := auth.VerificationURIComplete
			if uri == "" {
				uri = auth.VerificationURI
			}
			fmt.Printf("Open the following URL in your browser:\n\n  %s\n\n", uri)
			fmt.Printf("and enter code: %s\n\n", auth.UserCode)

			s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
			s.Suffix = " Waiting for authorization..."
			s.Start()
			record, err := client.PollDeviceFlow(cmd.Context(), auth, cfg.OAuth.Scopes)
			s.Stop()
			if err != nil {
				return &authFailedError{err: fmt.Errorf("device flow failed: %w", err)}
			}

			fmt.Println("Authenticated.")
			if len(record.Scopes) > 0 {
				fmt.Printf("Granted scopes: %s\n", strings.Join(record.Scopes, " "))
			}
			fmt.Printf("Token expires: %s\n", record.ExpiresAt.Format(time.RFC3339))
			if record.RefreshToken == "" {
				fmt.Println("Note: no refresh token was issued; the session will not auto-renew.")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "path to the configuration file")
	return cmd
}
