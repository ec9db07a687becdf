// Package analyze turns a set of pluggable analysis routines and a file
// tree into a flat batch of independent tasks, executes them through an
// Executor, and aggregates the findings.
package analyze

// Finding is a single issue reported by a routine for one file.
type Finding struct {
	// Routine names the routine that produced the finding.
	Routine string `json:"routine"`

	// File is the absolute path of the analyzed file.
	File string `json:"file"`

	// Line is the 1-based line the finding refers to, 0 when the finding
	// applies to the file as a whole.
	Line int `json:"line,omitempty"`

	// Message describes the issue.
	Message string `json:"message"`

	// Severity is one of "info", "warning", "error".
	Severity string `json:"severity"`
}

// Analysis phases reported through the progress callback.
const (
	PhaseCollectFiles = "collectFiles"
	PhaseRunDetectors = "runDetectors"
	PhaseComplete     = "complete"
)

// Progress is a point-in-time report of an analysis run. Total and
// Completed are meaningful during PhaseRunDetectors.
type Progress struct {
	Phase            string
	Total            int
	Completed        int
	Message          string
	DetectorsSkipped int
}

// ProgressFunc receives progress events at phase boundaries and after each
// completed task. It is called from a single goroutine at a time.
type ProgressFunc func(Progress)
