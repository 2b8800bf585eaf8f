// File: cmd/run.go
package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/andrilaw/swissbatch/internal/batch"
	"github.com/andrilaw/swissbatch/internal/browser"
	"github.com/andrilaw/swissbatch/internal/dataset"
	"github.com/andrilaw/swissbatch/internal/observability"
	"github.com/andrilaw/swissbatch/internal/workflow"
)

// runLogName is the per-run log file written inside the run directory,
// alongside the per-compound output folders.
const runLogName = "process_log.txt"

// newRunCmd creates and configures the `run` command.
func newRunCmd() *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Processes every compound in the input file through the prediction workflow",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			// Bind flags to their Viper keys so command-line values override
			// the config file and environment.
			if err := viper.BindPFlag("batch.input_file", cmd.Flags().Lookup("input")); err != nil {
				return err
			}
			if err := viper.BindPFlag("browser.headless", cmd.Flags().Lookup("headless")); err != nil {
				return err
			}
			return viper.Unmarshal(&cfg)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			// A batch run can sit at a human handoff for a long time; SIGINT
			// and SIGTERM must interrupt it cleanly wherever it is.
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			// Everything a run produces, including its log, lives in one
			// timestamped directory.
			runDir := runDirName(cfg.Batch.OutputPrefix, time.Now())
			if err := os.MkdirAll(runDir, 0o755); err != nil {
				return fmt.Errorf("failed to create run directory %q: %w", runDir, err)
			}

			cfg.Logger.LogFile = filepath.Join(runDir, runLogName)
			observability.InitializeLogger(cfg.Logger)
			defer observability.Sync()

			logger := observability.GetLogger()
			logger.Info("Starting swissbatch.",
				zap.String("version", Version),
				zap.String("run_dir", runDir),
				zap.String("input_file", cfg.Batch.InputFile))

			compounds, stats, err := dataset.Load(cfg.Batch.InputFile)
			if err != nil {
				logger.Error("Could not load input file.", zap.Error(err))
				return err
			}
			logger.Info("Input file loaded.",
				zap.Int("rows", stats.Total),
				zap.Int("valid", stats.Valid))
			if stats.Valid == 0 {
				return fmt.Errorf("input file %q contains no rows with a SMILES", cfg.Batch.InputFile)
			}

			factory := browser.NewChain(cfg.Browser, logger)
			monitor := workflow.NewMonitor(cfg.Workflow.HandoffPollInterval, logger)
			orch := workflow.New(factory, monitor, cfg.Workflow, logger)
			runner := batch.NewRunner(orch, runDir, cfg.Batch.CompoundDelay, logger)

			result, err := runner.Run(ctx, compounds)

			fmt.Printf("\nBatch complete: %d succeeded, %d failed (of %d attempted).\nResults: %s\n",
				result.SuccessCount, result.FailCount, result.Total(), runDir)
			return err
		},
	}

	runCmd.Flags().StringP("input", "i", "", "CSV input file with Name and Smiles columns (overrides config/env)")
	runCmd.Flags().Bool("headless", false, "Run the browser headless. Breaks the manual download step; useful for dry runs only.")

	return runCmd
}

// runDirName builds the timestamped run directory name.
func runDirName(prefix string, now time.Time) string {
	return fmt.Sprintf("%s_%s", prefix, now.Format("2006-01-02_15-04-05"))
}
