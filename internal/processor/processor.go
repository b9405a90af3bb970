// Package processor turns parsed references into one stitched video: it
// extracts a normalized, numbered segment per clip, plans the transitions
// between neighbours and joins everything through the codec engine.
package processor

import (
	"context"
	"fmt"

	"github.com/ZacxDev/clip-stitcher/internal/ffmpeg"
	"github.com/ZacxDev/clip-stitcher/pkg/types"
)

// Engine is the codec engine the pipeline drives. *ffmpeg.Processor
// implements it.
type Engine interface {
	Probe(ctx context.Context, path string) (*ffmpeg.MediaInfo, error)
	Extract(ctx context.Context, job ffmpeg.ExtractJob) error
	Concat(ctx context.Context, job ffmpeg.ConcatJob) error
	Crossfade(ctx context.Context, job ffmpeg.CrossfadeJob) error
}

// Fetcher resolves a reference to a local file inside dir
type Fetcher interface {
	Fetch(ctx context.Context, ref types.SourceReference, dir string) (types.LocalMedia, error)
}

// Extract failure reasons
const (
	ReasonOutOfRange = "out_of_range"
	ReasonTooShort   = "too_short"
	ReasonCodec      = "codec"
	ReasonTimeout    = "timeout"
)

// Stitch failure reasons
const (
	ReasonNoSurvivors = "no_survivors"
	ReasonInvalidPlan = "invalid_plan"
	ReasonEncode      = "encode"
	ReasonPublish     = "publish"
	ReasonAborted     = "aborted"
)

// ExtractError means one clip could not be turned into a segment. It only
// costs that clip.
type ExtractError struct {
	Index  int
	Reason string
	Err    error
}

func (e *ExtractError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("clip %d: extract failed (%s): %v", e.Index, e.Reason, e.Err)
	}
	return fmt.Sprintf("clip %d: extract failed (%s)", e.Index, e.Reason)
}

func (e *ExtractError) Unwrap() error { return e.Err }

func (e *ExtractError) Cause() error { return e.Err }

// StitchError aborts the whole run
type StitchError struct {
	Reason string
	Err    error
}

func (e *StitchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("stitch failed (%s): %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("stitch failed (%s)", e.Reason)
}

func (e *StitchError) Unwrap() error { return e.Err }

func (e *StitchError) Cause() error { return e.Err }
