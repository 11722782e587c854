// Command prover-node runs the light-client-bridge proving service: the
// facade, its HTTP job surface, the periodic re-check scheduler, and the
// Prometheus metrics listener, wired together from internal/config
// (spec.md §6). Grounded on
// shared-publisher-leader-app/main.go's cobra root-command shape
// (persistent config/log flags, a version subcommand); the root command's
// RunE loads internal/config via config.Load before building the App.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/dabridge/prover/internal/config"
	"github.com/dabridge/prover/internal/log"
)

// Build metadata, overridden via -ldflags at release build time.
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

const banner = `
 ____  _______      _______ ____
|  _ \|  _ \ \ \    / / ____|  _ \
| |_) | |_) \ \ /\ / /|  _| | |_) |
|  __/|  _ < \ V  V / | |___|  _ <
|_|   |_| \_\ \_/\_/  |_____|_| \_\
   light-client-bridge proving service
`

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "prover-node",
	Short: "DA-chain to EVM-rollup light client bridge prover",
	Long:  banner + "\nProduces zero-knowledge proofs of rollup state transitions and DA-chain state membership.",
	RunE:  runApp,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run:   runVersion,
}

func main() {
	if err := execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func execute() error {
	initCommands()
	return rootCmd.Execute()
}

func initCommands() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path")
	rootCmd.PersistentFlags().String("log-level", "", "log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-pretty", false, "enable pretty console logging")
	rootCmd.PersistentFlags().String("http-listen-addr", "", "async job HTTP listen address")
	rootCmd.PersistentFlags().Int("metrics-port", 0, "Prometheus metrics port (0 keeps the config value)")
	rootCmd.PersistentFlags().Duration("scheduler-interval", 0, "periodic re-check interval (0 keeps the config value)")
}

func runApp(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	applyFlags(cmd, cfg)

	logger := log.New(cfg.Log.Level, cfg.Log.Pretty)

	application, err := NewApp(cmd.Context(), cfg, logger.Logger)
	if err != nil {
		return fmt.Errorf("initialize app: %w", err)
	}

	return application.Run(cmd.Context())
}

func runVersion(*cobra.Command, []string) {
	fmt.Println(banner)
	fmt.Printf("Version:    %s\n", Version)
	fmt.Printf("Build Time: %s\n", BuildTime)
	fmt.Printf("Git Commit: %s\n", GitCommit)
}

func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flag("log-level").Changed {
		cfg.Log.Level, _ = cmd.Flags().GetString("log-level")
	}
	if cmd.Flag("log-pretty").Changed {
		cfg.Log.Pretty, _ = cmd.Flags().GetBool("log-pretty")
	}
	if cmd.Flag("http-listen-addr").Changed {
		cfg.HTTP.ListenAddr, _ = cmd.Flags().GetString("http-listen-addr")
	}
	if cmd.Flag("metrics-port").Changed {
		if port, _ := cmd.Flags().GetInt("metrics-port"); port != 0 {
			cfg.Metrics.Port = port
		}
	}
	if cmd.Flag("scheduler-interval").Changed {
		if interval, _ := cmd.Flags().GetDuration("scheduler-interval"); interval != 0 {
			cfg.Scheduler.Interval = interval
		}
	}
}

// startupTimeout bounds how long app construction (RPC dials, genesis
// load) is allowed to take before the process gives up.
const startupTimeout = 30 * time.Second
