package types

import "time"

// SourceReference is one parsed input line: which media item, and where in it
// the clip starts.
type SourceReference struct {
	Platform    string
	ContentID   string
	StartOffset time.Duration
}

// LocalMedia is a fetched source file owned by the run's workspace.
type LocalMedia struct {
	Path     string
	Duration time.Duration
	HasAudio bool
	Width    int
	Height   int
}

// Clip describes the window of a LocalMedia that becomes one Segment.
// Index is 1-based and follows input order.
type Clip struct {
	Index       int
	Source      LocalMedia
	StartOffset time.Duration
	Length      time.Duration
	OverlayText string
}

// End returns the offset in the source where the clip stops.
func (c Clip) End() time.Duration {
	return c.StartOffset + c.Length
}

// Segment is an extracted, normalized and annotated clip ready for stitching.
type Segment struct {
	Index     int
	Path      string
	Width     int
	Height    int
	FrameRate int
	Duration  time.Duration
}

// Transition is the blend between two adjacent segments.
type Transition struct {
	LeftIndex  int
	RightIndex int
	Overlap    time.Duration
}

// TransitionPlan holds one Transition per adjacent segment pair, in order.
// An empty plan means plain back-to-back concatenation.
type TransitionPlan []Transition

// TotalOverlap sums the overlap of every entry.
func (p TransitionPlan) TotalOverlap() time.Duration {
	var total time.Duration
	for _, t := range p {
		total += t.Overlap
	}
	return total
}

// Blends reports whether any entry actually overlaps.
func (p TransitionPlan) Blends() bool {
	for _, t := range p {
		if t.Overlap > 0 {
			return true
		}
	}
	return false
}
