package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/surprisebot/internal/bootstrap"
	"github.com/nextlevelbuilder/surprisebot/internal/config"
)

// setupCmd implements spec.md §6's "setup" CLI surface: workspace
// bootstrap. It seeds the per-agent context files (AGENTS.md, SOUL.md, ...)
// for one workspace directory without starting the gateway.
func setupCmd() *cobra.Command {
	var workspace string

	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Bootstrap an agent workspace (seed AGENTS.md, SOUL.md, ...)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ws := workspace
			if ws == "" {
				cfg, err := config.Load(resolveConfigPath())
				if err == nil {
					ws = cfg.ResolveAgent(cfg.ResolveDefaultAgentID()).Workspace
				}
			}
			if ws == "" {
				ws = "./workspace"
			}
			ws = config.ExpandHome(ws)
			abs, err := filepath.Abs(ws)
			if err != nil {
				abs = ws
			}

			created, err := bootstrap.EnsureWorkspaceFiles(abs)
			if err != nil {
				return fmt.Errorf("bootstrap workspace %s: %w", abs, err)
			}
			if len(created) == 0 {
				fmt.Printf("workspace already initialized: %s\n", abs)
				return nil
			}
			fmt.Printf("workspace bootstrapped: %s\n", abs)
			for _, f := range created {
				fmt.Printf("  created %s\n", f)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&workspace, "workspace", "", "workspace directory to bootstrap (default: configured agent workspace, or ./workspace)")
	return cmd
}
