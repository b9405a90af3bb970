package processor

import (
	"time"

	"github.com/ZacxDev/clip-stitcher/pkg/types"
)

// Stages a clip can be skipped at
const (
	StageParse   = "parse"
	StageFetch   = "fetch"
	StageExtract = "extract"
)

// ClipOutcome is a clip that made it into the output
type ClipOutcome struct {
	Index       int
	Line        int
	Input       string
	ContentID   string
	StartOffset time.Duration
	Duration    time.Duration
}

// Skip is an input that was dropped, and why
type Skip struct {
	Index  int
	Line   int
	Input  string
	Stage  string
	Reason string
	Err    error
}

// Result summarizes a run. It is returned even when the run fails so the
// skipped inputs can still be reported.
type Result struct {
	Output            string
	Clips             []ClipOutcome
	Skipped           []Skip
	Transitions       types.TransitionPlan
	ExpectedDuration  time.Duration
	RetainedWorkspace string
}

// Succeeded reports whether an output file was published
func (r *Result) Succeeded() bool {
	return r != nil && r.Output != ""
}
