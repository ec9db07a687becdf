package routines

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/odavl/insight/pkg/analyze"
)

// debugCalls maps a print-debugging call to the extensions it appears in.
var debugCalls = []struct {
	pattern string
	exts    map[string]struct{}
}{
	{"console.log(", set(".js", ".jsx", ".ts", ".tsx")},
	{"fmt.Println(", set(".go")},
	{"print(", set(".py")},
	{"System.out.println(", set(".java")},
	{"println!(", set(".rs")},
}

func set(exts ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(exts))
	for _, e := range exts {
		m[e] = struct{}{}
	}
	return m
}

// DebugPrintRoutine flags leftover print-debugging calls.
type DebugPrintRoutine struct{}

func (DebugPrintRoutine) Name() string { return "debugprint" }

func (DebugPrintRoutine) Extensions() []string {
	return []string{".js", ".jsx", ".ts", ".tsx", ".go", ".py", ".java", ".rs"}
}

func (DebugPrintRoutine) Run(ctx context.Context, path string) ([]analyze.Finding, error) {
	ext := strings.ToLower(filepath.Ext(path))

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
		trimmed := strings.TrimSpace(text)
		if strings.HasPrefix(trimmed, "//") || strings.HasPrefix(trimmed, "#") {
			continue
		}
		for _, call := range debugCalls {
			if _, forThisExt := call.exts[ext]; !forThisExt {
				continue
			}
			if strings.Contains(text, call.pattern) {
				findings = append(findings, analyze.Finding{
					File:     path,
					Line:     line,
					Message:  fmt.Sprintf("leftover debug call %q", strings.TrimSuffix(call.pattern, "(")),
					Severity: "warning",
				})
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return findings, nil
}
