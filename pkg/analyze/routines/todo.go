// Package routines provides the built-in analysis routines shipped with the
// engine. Each routine is registered under a stable name and reports
// findings for a single file at a time.
package routines

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/odavl/insight/pkg/analyze"
)

// Marker comments reported by the todo routine.
var todoMarkers = []string{"TODO", "FIXME", "HACK", "XXX"}

// TodoRoutine flags leftover task markers in comments.
type TodoRoutine struct{}

func (TodoRoutine) Name() string { return "todo" }

// Extensions returns nil: marker comments appear in any language.
func (TodoRoutine) Extensions() []string { return nil }

func (TodoRoutine) Run(ctx context.Context, path string) ([]analyze.Finding, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var findings []analyze.Finding
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		text := scanner.Text()
		for _, marker := range todoMarkers {
			if idx := strings.Index(text, marker); idx >= 0 {
				findings = append(findings, analyze.Finding{
					File:     path,
					Line:     line,
					Message:  fmt.Sprintf("unresolved %s marker: %s", marker, strings.TrimSpace(text)),
					Severity: "info",
				})
				break
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return findings, nil
}

// Register adds all built-in routines to the registry.
func Register(reg *analyze.Registry) {
	reg.Register("todo", func() analyze.Routine { return TodoRoutine{} })
	reg.Register("longline", func() analyze.Routine { return LongLineRoutine{Limit: DefaultLineLimit} })
	reg.Register("debugprint", func() analyze.Routine { return DebugPrintRoutine{} })
}
