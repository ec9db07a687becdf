package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"runtime"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/odavl/insight/pkg/analyze"
	"github.com/odavl/insight/pkg/analyze/routines"
	"github.com/odavl/insight/pkg/pool"
	"github.com/odavl/insight/pkg/types"
)

var runCmd = &cobra.Command{
	Use:   "run [workspace]",
	Short: "Run analysis routines over a workspace",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runAnalysis,
}

func init() {
	runCmd.Flags().Int("workers", 0, "number of workers (default: host core count)")
	runCmd.Flags().Duration("task-timeout", 0, "per-task timeout")
	runCmd.Flags().StringSlice("routine", nil, "routines to run (default: all registered)")
	runCmd.Flags().StringSlice("changed", nil, "changed-file hint used to skip irrelevant routines")
	_ = viper.BindPFlag("workers", runCmd.Flags().Lookup("workers"))
	_ = viper.BindPFlag("task_timeout", runCmd.Flags().Lookup("task-timeout"))

	rootCmd.AddCommand(runCmd)
}

func runAnalysis(cmd *cobra.Command, args []string) error {
	workspace := "."
	if len(args) == 1 {
		workspace = args[0]
	}

	verbose := viper.GetBool("verbose")
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	workers := viper.GetInt("workers")
	if workers == 0 {
		workers = runtime.NumCPU()
	}
	opts := types.DefaultOptions()
	opts.MaxWorkers = workers
	opts.TaskTimeout = viper.GetDuration("task_timeout")
	opts.Verbose = verbose
	opts.Logger = logger

	registry := analyze.NewRegistry()
	routines.Register(registry)

	p, err := pool.New(analyze.Handlers(registry), opts)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if err := p.Initialize(ctx); err != nil {
		return err
	}
	defer func() {
		if err := p.Shutdown(ctx); err != nil {
			logger.Warn("pool shutdown", "error", err)
		}
	}()

	var progress analyze.ProgressFunc
	if verbose {
		progress = func(ev analyze.Progress) {
			logger.Debug("progress",
				"phase", ev.Phase, "completed", ev.Completed, "total", ev.Total, "message", ev.Message)
		}
	}

	runner, err := analyze.NewRunner(analyze.RunnerConfig{
		Registry:   registry,
		Executor:   p,
		Extensions: viper.GetStringSlice("extensions"),
		Progress:   progress,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	names, _ := cmd.Flags().GetStringSlice("routine")
	changed, _ := cmd.Flags().GetStringSlice("changed")

	findings, err := runner.Run(ctx, workspace, names, changed)
	if err != nil {
		return err
	}

	for _, f := range findings {
		fmt.Fprintf(cmd.OutOrStdout(), "%s:%d: [%s/%s] %s\n",
			f.File, f.Line, f.Routine, f.Severity, f.Message)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d findings\n", len(findings))
	return nil
}
