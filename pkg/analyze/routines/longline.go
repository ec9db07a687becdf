package routines

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"unicode/utf8"

	"github.com/odavl/insight/pkg/analyze"
)

// DefaultLineLimit is the line length above which LongLineRoutine reports.
const DefaultLineLimit = 120

// LongLineRoutine flags lines longer than Limit characters.
type LongLineRoutine struct {
	Limit int
}

func (LongLineRoutine) Name() string { return "longline" }

func (LongLineRoutine) Extensions() []string { return nil }

func (r LongLineRoutine) Run(ctx context.Context, path string) ([]analyze.Finding, error) {
	limit := r.Limit
	if limit <= 0 {
		limit = DefaultLineLimit
	}

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
		if n := utf8.RuneCountInString(scanner.Text()); n > limit {
			findings = append(findings, analyze.Finding{
				File:     path,
				Line:     line,
				Message:  fmt.Sprintf("line is %d characters, limit is %d", n, limit),
				Severity: "warning",
			})
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return findings, nil
}
