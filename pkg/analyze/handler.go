package analyze

import (
	"context"
	"fmt"

	"github.com/odavl/insight/pkg/types"
)

// TaskTypeAnalyze is the task type the analysis handler is registered under.
const TaskTypeAnalyze = "analyze"

// TaskData is the payload of an analysis task: run one routine over one
// file of a workspace.
type TaskData struct {
	WorkspaceRoot string
	FilePath      string
	Routine       string
}

// Handlers returns the handler map wiring the routine registry into an
// executor. The handler resolves the routine by table lookup and tags every
// finding with its originating routine; a routine error is returned to the
// worker boundary where it becomes a failed TaskResult.
func Handlers(reg *Registry) types.HandlerMap {
	return types.HandlerMap{
		TaskTypeAnalyze: func(ctx context.Context, task types.Task) (any, error) {
			data, ok := task.Data.(TaskData)
			if !ok {
				return nil, fmt.Errorf("task %s carries %T, want analyze.TaskData", task.ID, task.Data)
			}

			routine, err := reg.Resolve(data.Routine)
			if err != nil {
				return nil, err
			}

			findings, err := routine.Run(ctx, data.FilePath)
			if err != nil {
				return nil, fmt.Errorf("routine %s failed on %s: %w", data.Routine, data.FilePath, err)
			}

			for i := range findings {
				findings[i].Routine = data.Routine
				if findings[i].File == "" {
					findings[i].File = data.FilePath
				}
			}
			return findings, nil
		},
	}
}
