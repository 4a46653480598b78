package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/surprisebot/pkg/protocol"
)

// Version is set at build time via -ldflags "-X github.com/nextlevelbuilder/surprisebot/cmd.Version=v1.0.0"
var Version = "dev"

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "surprisebot",
	Short: "Surprisebot — multi-agent orchestration gateway",
	Long:  "Surprisebot: a multi-agent orchestration gateway. Stimuli (chat messages, cron ticks, filesystem signals, heartbeats) are routed to language-model agents, run with budget enforcement and model failover, and the resulting payloads handed off to delivery.",
	Run: func(cmd *cobra.Command, args []string) {
		runGateway()
	},
}

// init registers the CLI surface spec.md §6 calls out for the core: "agent"
// (single turn) and "setup" (workspace bootstrap), plus "version". The
// gateway itself (channels, cron, heartbeat, mission control, ...) runs
// from the bare root command, not a subcommand.
func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: config.json or $SURPRISEBOT_CONFIG)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(versionCmd())
	rootCmd.AddCommand(agentChatCmd())
	rootCmd.AddCommand(setupCmd())
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("surprisebot %s (protocol %d)\n", Version, protocol.ProtocolVersion)
		},
	}
}

func resolveConfigPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	if v := os.Getenv("SURPRISEBOT_CONFIG"); v != "" {
		return v
	}
	return "config.json"
}

// Execute runs the root cobra command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
