package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"nero/internal/config"
	"nero/internal/logging"
	"nero/internal/metrics"
	"nero/internal/nero"
)

var (
	// Global flags
	verbose    bool
	configPath string

	cfg    *config.Config
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "nero",
	Short: "Nero - stratified Datalog engine",
	Long: `nero evaluates Nero scripts: relation definitions, axioms and rules
with stratified negation, built-in predicates and aggregate heads.

Scripts are evaluated bottom-up to a fixpoint, one stratum at a time.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config %s: %w", configPath, err)
		}
		logger, err = logging.New(cfg.Logging, verbose)
		if err != nil {
			return err
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "nero.yaml", "Config file")

	runCmd.Flags().StringSliceVarP(&runFacts, "facts", "f", nil, "Fact file to evaluate against (repeatable)")
	runCmd.Flags().StringArrayVarP(&runParms, "parm", "p", nil, "Query parameter name=value (repeatable)")
	runCmd.Flags().BoolVar(&runDebug, "debug", false, "Trace rule firings and fact additions")
	runCmd.Flags().BoolVar(&runAll, "all", false, "Print every known fact instead of only inferred ones")

	checkCmd.Flags().StringVar(&checkSchema, "schema", "", "Schema script of define statements the output must match")
	checkCmd.Flags().BoolVar(&checkCrosscheck, "crosscheck", false, "Compare the result with Google Mangle")
	checkCmd.Flags().StringSliceVarP(&checkFacts, "facts", "f", nil, "Fact file used by --crosscheck (repeatable)")

	watchCmd.Flags().StringVar(&watchMetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	watchCmd.Flags().StringSliceVarP(&watchFacts, "facts", "f", nil, "Fact file to evaluate against (repeatable)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(fmtCmd)
	rootCmd.AddCommand(watchCmd)
}

// newEngine builds an engine from the loaded config.
func newEngine(m *metrics.Metrics) *nero.Engine {
	return nero.New(
		nero.WithConfig(cfg.Engine),
		nero.WithLogger(logger),
		nero.WithLoggingConfig(cfg.Logging),
		nero.WithMetrics(m),
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
