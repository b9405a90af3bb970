package processor

import (
	"time"

	"github.com/ZacxDev/clip-stitcher/pkg/types"
	"github.com/pkg/errors"
)

// Plan decides the blend between every adjacent pair of segments.
//
// Each overlap is the shortest of length and half of either neighbour, so a
// transition never eats more than half of a clip, then floored to whole
// frames at frameRate. The plan is empty when transitions are disabled or
// there is nothing to blend.
func Plan(segments []types.Segment, enabled bool, length time.Duration, frameRate int) types.TransitionPlan {
	if !enabled || len(segments) < 2 || length <= 0 {
		return types.TransitionPlan{}
	}

	plan := make(types.TransitionPlan, 0, len(segments)-1)
	for i := 0; i+1 < len(segments); i++ {
		left, right := segments[i], segments[i+1]

		overlap := length
		if half := left.Duration / 2; half < overlap {
			overlap = half
		}
		if half := right.Duration / 2; half < overlap {
			overlap = half
		}
		if overlap < 0 {
			overlap = 0
		}

		plan = append(plan, types.Transition{
			LeftIndex:  left.Index,
			RightIndex: right.Index,
			Overlap:    floorToFrame(overlap, frameRate),
		})
	}
	return plan
}

// floorToFrame rounds d down to a whole number of frames
func floorToFrame(d time.Duration, frameRate int) time.Duration {
	if frameRate <= 0 {
		return d
	}
	frames := int64(d) * int64(frameRate) / int64(time.Second)
	return time.Duration(frames * int64(time.Second) / int64(frameRate))
}

// ValidatePlan checks that plan fits segments: one entry per adjacent pair
// (or none), matching indices, and overlaps within half of each neighbour.
func ValidatePlan(segments []types.Segment, plan types.TransitionPlan) error {
	for i := 1; i < len(segments); i++ {
		if segments[i].Index <= segments[i-1].Index {
			return errors.Errorf("segments out of order: %d after %d", segments[i].Index, segments[i-1].Index)
		}
	}

	if len(plan) == 0 {
		return nil
	}
	if len(plan) != len(segments)-1 {
		return errors.Errorf("plan has %d transitions for %d segments", len(plan), len(segments))
	}

	for i, t := range plan {
		left, right := segments[i], segments[i+1]
		if t.LeftIndex != left.Index || t.RightIndex != right.Index {
			return errors.Errorf("transition %d joins %d->%d, expected %d->%d",
				i, t.LeftIndex, t.RightIndex, left.Index, right.Index)
		}
		if t.Overlap < 0 {
			return errors.Errorf("transition %d->%d has negative overlap %s", t.LeftIndex, t.RightIndex, t.Overlap)
		}
		if t.Overlap > left.Duration/2 || t.Overlap > right.Duration/2 {
			return errors.Errorf("transition %d->%d overlap %s exceeds half of a neighbour (%s, %s)",
				t.LeftIndex, t.RightIndex, t.Overlap, left.Duration, right.Duration)
		}
	}
	return nil
}

// OutputDuration is the length of the stitched result
func OutputDuration(segments []types.Segment, plan types.TransitionPlan) time.Duration {
	var total time.Duration
	for _, s := range segments {
		total += s.Duration
	}
	return total - plan.TotalOverlap()
}
