package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/inference-sim/chunkstream/sim/scenario"
)

var (
	// CLI flags for the scenario
	configPath string  // Scenario YAML file; empty runs a built-in preset
	presetName string  // Built-in scenario used when no file is given
	seed       int64   // Seed for packet generation
	horizon    float64 // Simulation horizon (in seconds)
	datarate   int64   // Link datarate (in bits per second)
	topology   string  // push or preemption
	downAt     float64 // Time the link goes down (in seconds)
	traceLevel string  // none, deliveries or streams

	// CLI flags for output
	logLevel    string // Log verbosity level
	metricsPath string // File receiving Prometheus text metrics
	showSummary bool   // Print the trace summary after the results
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "chunkstream",
	Short: "Discrete-event simulator for preemptable packet streams",
}

// runCmd executes a scenario using the scenario file and CLI overrides
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a streaming scenario",
	Run: func(cmd *cobra.Command, args []string) {
		// Set up logging
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)

		cfg, err := loadScenario(cmd)
		if err != nil {
			logrus.Fatalf("unable to load scenario; %v", err)
		}

		startTime := time.Now()
		res, err := scenario.Run(cfg)
		if err != nil {
			logrus.Fatalf("simulation failed: %v", err)
		}

		if err := printResults(os.Stdout, res, time.Since(startTime), showSummary); err != nil {
			logrus.Fatalf("unable to print results: %v", err)
		}
		if metricsPath != "" {
			if err := writeMetrics(metricsPath, res); err != nil {
				logrus.Fatalf("unable to write metrics: %v", err)
			}
		}

		logrus.Info("Simulation complete.")
	},
}

// loadScenario reads the scenario file, or the preset when no file is given,
// and applies the flags the user set explicitly. Unset flags never override
// values from the file.
func loadScenario(cmd *cobra.Command) (*scenario.Config, error) {
	var (
		cfg *scenario.Config
		err error
	)
	if configPath != "" {
		cfg, err = scenario.LoadConfig(configPath)
	} else {
		cfg, err = presetScenario(presetName)
	}
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("seed") {
		cfg.Seed = seed
	}
	if flags.Changed("horizon") {
		cfg.Horizon = horizon
	}
	if flags.Changed("datarate") {
		cfg.Link.Datarate = datarate
	}
	if flags.Changed("down-at") {
		cfg.Link.DownAt = downAt
	}
	if flags.Changed("trace-level") {
		cfg.TraceLevel = traceLevel
	}
	if flags.Changed("topology") && topology != cfg.Topology {
		cfg.Topology = topology
		switch topology {
		case scenario.TopologyPush:
			cfg.Preemption = nil
		case scenario.TopologyPreemption:
			if cfg.Preemption == nil {
				cfg.Preemption = scenario.DefaultConfig().Preemption
			}
		}
	}
	return cfg, cfg.Validate()
}

func writeMetrics(path string, res *scenario.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := res.Metrics.WriteText(f); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	logrus.Infof("Metrics written to: %s", path)
	return nil
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// init sets up CLI flags and subcommands
func init() {
	runCmd.Flags().StringVar(&configPath, "config", "", "Path to a scenario YAML file")
	runCmd.Flags().StringVar(&presetName, "preset", presetPreemption, fmt.Sprintf("Built-in scenario when --config is not given (%s, %s)", presetPreemption, presetPush))
	runCmd.Flags().Int64Var(&seed, "seed", 42, "Seed for packet generation")
	runCmd.Flags().Float64Var(&horizon, "horizon", 0, "Simulation horizon (in seconds); 0 runs until every source is exhausted")
	runCmd.Flags().StringVar(&logLevel, "log", "error", "Log level (trace, debug, info, warn, error, fatal, panic)")

	// Link and topology
	runCmd.Flags().Int64Var(&datarate, "datarate", 1_000_000_000, "Link datarate (in bits per second)")
	runCmd.Flags().StringVar(&topology, "topology", scenario.TopologyPreemption, "Topology (push, preemption); switching to push drops the preemption settings")
	runCmd.Flags().Float64Var(&downAt, "down-at", 0, "Time the link goes down (in seconds); 0 keeps it up")

	// Output
	runCmd.Flags().StringVar(&traceLevel, "trace-level", "none", "Trace verbosity (none, deliveries, streams)")
	runCmd.Flags().StringVar(&metricsPath, "metrics", "", "File to write Prometheus text metrics to")
	runCmd.Flags().BoolVar(&showSummary, "summary", false, "Print the trace summary (requires --trace-level deliveries or streams)")

	// Attach `run` as a subcommand to `root`
	rootCmd.AddCommand(runCmd)
}
