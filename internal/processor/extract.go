package processor

import (
	"context"
	"strconv"
	"time"

	"github.com/ZacxDev/clip-stitcher/internal/config"
	"github.com/ZacxDev/clip-stitcher/internal/ffmpeg"
	"github.com/ZacxDev/clip-stitcher/internal/logging"
	"github.com/ZacxDev/clip-stitcher/pkg/types"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Extractor cuts clips out of fetched sources and normalizes them to the
// run's target format
type Extractor struct {
	engine    Engine
	settings  ffmpeg.EncodeSettings
	minLength time.Duration
	overlay   ffmpeg.Overlay
	log       zerolog.Logger
}

// NewExtractor creates an extractor for opts. The overlay font is resolved
// once here.
func NewExtractor(engine Engine, opts config.Options, logger zerolog.Logger) *Extractor {
	logger = logging.WithComponent(logger, "processor")
	return &Extractor{
		engine:    engine,
		settings:  ffmpeg.SettingsFromQuality(opts.Quality),
		minLength: opts.MinClipDuration.Std(),
		overlay:   overlayStyle(opts.FontsDir, logger),
		log:       logger,
	}
}

// NewClip fits the requested window into media. The length is clamped so
// the trim never reads past the end of the source; a window that starts at
// or after the end, or that is shorter than minLength once clamped, is
// rejected.
func NewClip(media types.LocalMedia, start, requested time.Duration, index int, minLength time.Duration) (types.Clip, error) {
	if start < 0 || start >= media.Duration {
		return types.Clip{}, &ExtractError{
			Index:  index,
			Reason: ReasonOutOfRange,
			Err:    errors.Errorf("start %s is beyond source duration %s", start, media.Duration),
		}
	}

	length := requested
	if remaining := media.Duration - start; length > remaining {
		length = remaining
	}
	if length < minLength || length <= 0 {
		return types.Clip{}, &ExtractError{
			Index:  index,
			Reason: ReasonTooShort,
			Err:    errors.Errorf("only %s available after %s, need at least %s", length, start, minLength),
		}
	}

	return types.Clip{
		Index:       index,
		Source:      media,
		StartOffset: start,
		Length:      length,
		OverlayText: strconv.Itoa(index),
	}, nil
}

// Extract renders clip into output and returns the resulting segment
func (e *Extractor) Extract(ctx context.Context, clip types.Clip, output string) (types.Segment, error) {
	log := e.log.With().Int("clip", clip.Index).Logger()

	overlay := e.overlay
	overlay.Text = clip.OverlayText

	job := ffmpeg.ExtractJob{
		Input:    clip.Source.Path,
		Output:   output,
		Start:    clip.StartOffset,
		Length:   clip.Length,
		HasAudio: clip.Source.HasAudio,
		Overlay:  overlay,
		Settings: e.settings,
	}

	log.Debug().
		Dur("start", clip.StartOffset).
		Dur("length", clip.Length).
		Bool("has_audio", clip.Source.HasAudio).
		Msg("extracting clip")

	if err := e.engine.Extract(ctx, job); err != nil {
		return types.Segment{}, e.failure(ctx, clip.Index, err)
	}

	info, err := e.engine.Probe(ctx, output)
	if err != nil {
		return types.Segment{}, e.failure(ctx, clip.Index, errors.Wrap(err, "probe extracted segment"))
	}

	duration := info.Duration
	if duration <= 0 || duration > clip.Length {
		duration = clip.Length
	}
	if duration < e.minLength {
		return types.Segment{}, &ExtractError{
			Index:  clip.Index,
			Reason: ReasonTooShort,
			Err:    errors.Errorf("segment came out at %s", duration),
		}
	}

	log.Debug().Dur("duration", duration).Msg("clip extracted")

	return types.Segment{
		Index:     clip.Index,
		Path:      output,
		Width:     e.settings.Width,
		Height:    e.settings.Height,
		FrameRate: e.settings.FrameRate,
		Duration:  duration,
	}, nil
}

func (e *Extractor) failure(ctx context.Context, index int, err error) error {
	switch ctx.Err() {
	case nil:
		return &ExtractError{Index: index, Reason: ReasonCodec, Err: err}
	case context.DeadlineExceeded:
		return &ExtractError{Index: index, Reason: ReasonTimeout, Err: err}
	default:
		// the run is being aborted; not the clip's fault
		return errors.WithStack(ctx.Err())
	}
}
