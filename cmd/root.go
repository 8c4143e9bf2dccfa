package cmd

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"postern/internal/config"
	"postern/internal/oauth"
)

// Exit codes for CLI commands.
// These follow common conventions so scripts can branch on the failure kind.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error (command failed, invalid arguments).
	ExitCodeError = 1
	// ExitCodeAuthRequired indicates authentication is required but not available.
	ExitCodeAuthRequired = 2
	// ExitCodeAuthFailed indicates the OAuth flow failed.
	ExitCodeAuthFailed = 3
)

// rootCmd represents the base command for the postern application.
var rootCmd = &cobra.Command{
	Use:   "postern",
	Short: "OAuth-enforcing MCP gateway for a remote content backend",
	Long: `postern sits between an LLM tool-calling client and a remote content
backend. It discovers the backend's capabilities at runtime, exposes them as
MCP tools, and enforces OAuth 2.1 authorization per session and per tool.`,
	// SilenceUsage prevents Cobra from printing the usage message on errors
	// that are handled by the application.
	SilenceUsage: true,
}

// SetVersion sets the version for the root command. Called from the main
// package to inject the build version.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return rootCmd.Version
}

// Execute is the main entry point for the CLI application.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "postern version %s\n" .Version}}`)

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(getExitCode(err))
	}
}

// authFailedError marks errors from a failed OAuth flow so Execute can map
// them to ExitCodeAuthFailed.
type authFailedError struct {
	err error
}

func (e *authFailedError) Error() string { return e.err.Error() }
func (e *authFailedError) Unwrap() error { return e.err }

// getExitCode determines the exit code from the error type.
func getExitCode(err error) int {
	var authFailed *authFailedError
	if errors.As(err, &authFailed) {
		return ExitCodeAuthFailed
	}

	var terminal *oauth.TerminalRefreshError
	if errors.As(err, &terminal) {
		return ExitCodeAuthFailed
	}

	var authErr *oauth.AuthenticationError
	if errors.As(err, &authErr) {
		return ExitCodeAuthRequired
	}

	var configErr *config.ConfigurationError
	if errors.As(err, &configErr) {
		return ExitCodeError
	}

	return ExitCodeError
}

func init() {
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newToolsCmd())
	rootCmd.AddCommand(newLoginCmd())
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newSelfUpdateCmd())
}
