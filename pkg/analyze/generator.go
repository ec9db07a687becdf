package analyze

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/odavl/insight/pkg/types"
)

// RunnerConfig configures a Runner.
type RunnerConfig struct {
	// Registry resolves routine names. Required.
	Registry *Registry

	// Executor runs the generated task batch. Required.
	Executor types.Executor

	// Extensions filters candidate files (leading dot). Empty matches all.
	Extensions []string

	// Progress receives phase and per-task progress events. Optional.
	Progress ProgressFunc

	// Logger receives structured run events. Defaults to slog.Default().
	Logger *slog.Logger
}

// Runner translates "run these routines over this workspace" into a flat
// task batch, executes it on whichever executor is active, and aggregates
// the findings. A new Runner is constructed per analysis run context; it
// holds no global state, so independent runs never couple.
type Runner struct {
	registry *Registry
	exec     types.Executor
	exts     []string
	progress ProgressFunc
	logger   *slog.Logger
}

// NewRunner creates a Runner from the given configuration.
func NewRunner(cfg RunnerConfig) (*Runner, error) {
	if cfg.Registry == nil {
		return nil, types.NewConfigError("registry", nil, "required")
	}
	if cfg.Executor == nil {
		return nil, types.NewConfigError("executor", nil, "required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		registry: cfg.Registry,
		exec:     cfg.Executor,
		exts:     cfg.Extensions,
		progress: cfg.Progress,
		logger:   logger.With("component", "runner"),
	}, nil
}

// Run executes the named routines over every candidate file under root and
// returns the aggregated findings. changedFiles is an optional hint: routines
// irrelevant to every changed file are skipped, which never changes the
// result set for the files that are analyzed, only the cost. One failing
// (file, routine) pair is logged and dropped, never aborting the batch.
func (r *Runner) Run(ctx context.Context, root string, routineNames []string, changedFiles []string) ([]Finding, error) {
	runID := uuid.NewString()
	logger := r.logger.With("run", runID[:8])

	routines, skipped, err := r.selectRoutines(routineNames, changedFiles)
	if err != nil {
		return nil, err
	}
	if skipped > 0 {
		logger.Debug("skipped routines irrelevant to changed files", "skipped", skipped)
	}

	r.emit(Progress{Phase: PhaseCollectFiles, Message: "collecting files", DetectorsSkipped: skipped})

	files, err := CollectFiles(root, r.exts)
	if err != nil {
		return nil, fmt.Errorf("collecting files under %s: %w", root, err)
	}
	if len(files) == 0 || len(routines) == 0 {
		r.emit(Progress{Phase: PhaseComplete, Message: "no files found", DetectorsSkipped: skipped})
		return []Finding{}, nil
	}

	tasks := r.buildTasks(root, files, routines)
	logger.Info("running analysis batch",
		"files", len(files), "routines", len(routines), "tasks", len(tasks))

	r.emit(Progress{Phase: PhaseRunDetectors, Total: len(tasks), Message: "running detectors"})

	results := r.execute(ctx, tasks, skipped)

	findings := make([]Finding, 0)
	failed := 0
	for i, res := range results {
		if !res.Success {
			failed++
			logger.Warn("analysis task failed", "task", tasks[i].ID, "error", res.Error)
			continue
		}
		if fs, ok := res.Data.([]Finding); ok {
			findings = append(findings, fs...)
		}
	}

	logger.Info("analysis complete",
		"findings", len(findings), "tasks", len(tasks), "failed", failed)
	r.emit(Progress{
		Phase:            PhaseComplete,
		Total:            len(tasks),
		Completed:        len(tasks),
		Message:          fmt.Sprintf("%d findings", len(findings)),
		DetectorsSkipped: skipped,
	})
	return findings, nil
}

// selectRoutines resolves the requested routines and prunes those that no
// changed file could affect. An empty hint disables pruning.
func (r *Runner) selectRoutines(names []string, changedFiles []string) ([]Routine, int, error) {
	if len(names) == 0 {
		names = r.registry.Names()
	}

	routines := make([]Routine, 0, len(names))
	skipped := 0
	for _, name := range names {
		routine, err := r.registry.Resolve(name)
		if err != nil {
			return nil, 0, err
		}
		if len(changedFiles) > 0 && !relevantTo(routine, changedFiles) {
			skipped++
			continue
		}
		routines = append(routines, routine)
	}
	return routines, skipped, nil
}

// relevantTo reports whether any changed file carries an extension the
// routine understands.
func relevantTo(routine Routine, changedFiles []string) bool {
	exts := routine.Extensions()
	if len(exts) == 0 {
		return true
	}
	for _, changed := range changedFiles {
		ext := strings.ToLower(filepath.Ext(changed))
		for _, want := range exts {
			if strings.ToLower(want) == ext {
				return true
			}
		}
	}
	return false
}

// buildTasks produces the full Cartesian set of (file, routine) pairs.
func (r *Runner) buildTasks(root string, files []string, routines []Routine) []types.Task {
	tasks := make([]types.Task, 0, len(files)*len(routines))
	for _, file := range files {
		for _, routine := range routines {
			tasks = append(tasks, types.Task{
				ID:   fmt.Sprintf("%s#%s", routine.Name(), file),
				Type: TaskTypeAnalyze,
				Data: TaskData{
					WorkspaceRoot: root,
					FilePath:      file,
					Routine:       routine.Name(),
				},
			})
		}
	}
	return tasks
}

// execute submits the batch and collects results index-aligned with tasks,
// emitting a progress event after each individual completion. Each task is
// waited on through Submit so completions can be observed as they happen;
// concurrency is bounded by the executor itself.
func (r *Runner) execute(ctx context.Context, tasks []types.Task, skipped int) []types.TaskResult {
	results := make([]types.TaskResult, len(tasks))

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		completed int
	)
	for i := range tasks {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res := r.exec.Submit(ctx, tasks[i])
			results[i] = res

			// Serializes the progress callback as well as the counter.
			mu.Lock()
			completed++
			r.emit(Progress{
				Phase:            PhaseRunDetectors,
				Total:            len(tasks),
				Completed:        completed,
				Message:          res.TaskID,
				DetectorsSkipped: skipped,
			})
			mu.Unlock()
		}(i)
	}
	wg.Wait()
	return results
}

func (r *Runner) emit(p Progress) {
	if r.progress != nil {
		r.progress(p)
	}
}
