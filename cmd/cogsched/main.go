// Command cogsched runs the cognitive scheduler against a simulated agent.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"cogsched/internal/config"
	"cogsched/internal/logging"
)

var (
	// Global flags
	verbose    bool
	configPath string

	// Loaded by PersistentPreRunE
	cfg *config.Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "cogsched",
	Short: "cogsched - fixed-rate cognitive cycle scheduler",
	Long: `cogsched drives a cognitive agent through a fixed-rate cycle of
perception, memory retrieval, attention, affect, action, meta-cognition,
autonomous initiation, workspace update and memory consolidation.

The bundled harness wires every collaborator to a seeded simulation so the
scheduler, bottleneck detector, communication gate and interruption system
can be observed without a language model.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if verbose {
			cfg.Logging.DebugMode = true
			cfg.Logging.Level = "debug"
		}
		if err := logging.Initialize(cfg.Logging.Options()); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		logging.BootDebug("configuration loaded from %s", configPath)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Sync()
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "cogsched.yaml", "Configuration file")

	// Run flags
	runCmd.Flags().IntVarP(&runTicks, "ticks", "n", 100, "Ticks to run (0 runs until interrupted)")
	runCmd.Flags().DurationVar(&runPeriod, "period", 0, "Override cycle.target_period")
	runCmd.Flags().DurationVar(&runMemoryLatency, "memory-latency", 5*time.Millisecond, "Artificial latency of each memory store")
	runCmd.Flags().StringArrayVar(&runSay, "say", nil, "Utterance injected before the first tick (repeatable)")
	runCmd.Flags().BoolVar(&runTrace, "trace", false, "Print one line per cycle report")
	runCmd.Flags().Int64Var(&simOpts.Seed, "seed", simOpts.Seed, "Simulation seed")
	runCmd.Flags().Float64Var(&simOpts.UtteranceRate, "utterance-rate", simOpts.UtteranceRate, "Per-tick chance the user speaks")
	runCmd.Flags().Float64Var(&simOpts.SensorRate, "sensor-rate", simOpts.SensorRate, "Per-tick chance of a sensor reading")
	runCmd.Flags().Float64Var(&simOpts.SafetyRate, "safety-rate", simOpts.SafetyRate, "Per-tick chance of a safety alert")
	runCmd.Flags().Float64Var(&simOpts.PeerTalkRate, "peer-rate", simOpts.PeerTalkRate, "Per-tick chance the user is mid-utterance")

	// Config subcommands
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite an existing file")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)

	// Add commands to root
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
