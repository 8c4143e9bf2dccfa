package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"postern/internal/capability"
	"postern/internal/config"
	pkgstrings "postern/pkg/strings"
)

func newToolsCmd() *cobra.Command {
	var configPath string
	var token string
	var wide bool

	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List the tools the backend currently exposes",
		Long: `Fetches the backend's capability list and prints it as a table,
including each tool's auth level and required OAuth scopes. Useful to check
what a running gateway would advertise without starting one.`,
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
			if err := cfg.Validate(); err != nil {
				return err
			}

			client := capability.NewClient(
				cfg.Backend.BaseURL,
				cfg.Backend.DiscoveryPath,
				cfg.Discovery.Timeout(),
			)
			defs, err := client.Discover(cmd.Context(), token)
			if err != nil {
				return err
			}

			renderToolsTable(defs, wide)
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "path to the configuration file")
	cmd.Flags().StringVar(&token, "token", "", "bearer token for the discovery request")
	cmd.Flags().BoolVar(&wide, "wide", false, "show full descriptions")
	return cmd
}

func renderToolsTable(defs []capability.Definition, wide bool) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{
		text.FgHiCyan.Sprint("NAME"),
		text.FgHiCyan.Sprint("AUTH"),
		text.FgHiCyan.Sprint("SCOPES"),
		text.FgHiCyan.Sprint("DESCRIPTION"),
	})

	for _, def := range defs {
		meta := def.AuthMeta()
		level := string(capability.GetAuthLevel(meta))
		scopes := ""
		if meta != nil {
			scopes = strings.Join(meta.Scopes, ", ")
		}
		description := def.Description
		if !wide {
			description = pkgstrings.TruncateDescription(description, pkgstrings.DefaultDescriptionMaxLen)
		}
		t.AppendRow(table.Row{def.Name, level, scopes, description})
	}
	t.Render()

	required := capability.ExtractRequiredScopes(defs)
	fmt.Printf("\n%s %d tools", text.FgHiBlue.Sprint("Total:"), len(defs))
	if len(required) > 0 {
		fmt.Printf(", scopes needed: %s", strings.Join(required, " "))
	}
	fmt.Println()
}
