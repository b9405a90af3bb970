package processor

import (
	"context"
	"path/filepath"
	"time"

	"github.com/ZacxDev/clip-stitcher/internal/config"
	"github.com/ZacxDev/clip-stitcher/internal/ffmpeg"
	"github.com/ZacxDev/clip-stitcher/internal/logging"
	"github.com/ZacxDev/clip-stitcher/internal/workspace"
	"github.com/ZacxDev/clip-stitcher/pkg/types"
	"github.com/rs/zerolog"
)

// Stitcher joins ordered segments into the final video
type Stitcher struct {
	engine   Engine
	settings ffmpeg.EncodeSettings
	log      zerolog.Logger
}

func NewStitcher(engine Engine, quality config.Quality, logger zerolog.Logger) *Stitcher {
	return &Stitcher{
		engine:   engine,
		settings: ffmpeg.SettingsFromQuality(quality),
		log:      logging.WithComponent(logger, "processor"),
	}
}

// Stitch renders segments in order into scratchDir and then publishes the
// result at output, so output only ever holds a finished file. It returns
// the expected duration of the result.
func (s *Stitcher) Stitch(ctx context.Context, segments []types.Segment, plan types.TransitionPlan, scratchDir, output string) (time.Duration, error) {
	if len(segments) == 0 {
		return 0, &StitchError{Reason: ReasonNoSurvivors}
	}
	if err := ValidatePlan(segments, plan); err != nil {
		return 0, &StitchError{Reason: ReasonInvalidPlan, Err: err}
	}

	ext := filepath.Ext(output)
	if ext == "" {
		ext = ".mp4"
	}
	rendered := filepath.Join(scratchDir, "stitched"+ext)

	var err error
	if plan.Blends() {
		err = s.crossfade(ctx, segments, plan, rendered)
	} else {
		err = s.concat(ctx, segments, scratchDir, rendered)
	}
	if err != nil {
		if ctx.Err() != nil {
			return 0, &StitchError{Reason: ReasonAborted, Err: ctx.Err()}
		}
		return 0, &StitchError{Reason: ReasonEncode, Err: err}
	}

	if err := workspace.Publish(rendered, output); err != nil {
		return 0, &StitchError{Reason: ReasonPublish, Err: err}
	}

	expected := OutputDuration(segments, plan)
	s.log.Info().
		Str("output", output).
		Int("segments", len(segments)).
		Dur("duration", expected).
		Msg("video stitched")
	return expected, nil
}

// concat joins segments by stream copy; if the copy is refused it
// re-encodes them uniformly.
func (s *Stitcher) concat(ctx context.Context, segments []types.Segment, scratchDir, rendered string) error {
	inputs := make([]string, len(segments))
	for i, seg := range segments {
		inputs[i] = seg.Path
	}

	job := ffmpeg.ConcatJob{
		Inputs:   inputs,
		Output:   rendered,
		ListFile: filepath.Join(scratchDir, "concat_list.txt"),
		Settings: s.settings,
	}

	s.log.Debug().Int("segments", len(inputs)).Msg("joining segments by stream copy")
	err := s.engine.Concat(ctx, job)
	if err == nil || ctx.Err() != nil {
		return err
	}

	s.log.Warn().Err(err).Msg("stream copy failed, re-encoding")
	job.ReEncode = true
	return s.engine.Concat(ctx, job)
}

func (s *Stitcher) crossfade(ctx context.Context, segments []types.Segment, plan types.TransitionPlan, rendered string) error {
	job := ffmpeg.CrossfadeJob{
		Inputs:   make([]ffmpeg.CrossfadeInput, len(segments)),
		Overlaps: make([]time.Duration, len(plan)),
		Output:   rendered,
		Settings: s.settings,
	}
	for i, seg := range segments {
		job.Inputs[i] = ffmpeg.CrossfadeInput{Path: seg.Path, Duration: seg.Duration}
	}
	for i, t := range plan {
		job.Overlaps[i] = t.Overlap
	}

	s.log.Debug().
		Int("segments", len(segments)).
		Dur("total_overlap", plan.TotalOverlap()).
		Msg("blending segments")
	return s.engine.Crossfade(ctx, job)
}
