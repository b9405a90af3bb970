package ffmpeg

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/ZacxDev/clip-stitcher/internal/config"
	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// Overlay is the text burned into the top-left corner of a segment
type Overlay struct {
	Text       string
	FontFile   string // preferred; empty falls back to FontFamily
	FontFamily string
}

// ExtractJob describes one trim + normalize + annotate pass
type ExtractJob struct {
	Input    string
	Output   string
	Start    time.Duration
	Length   time.Duration
	HasAudio bool
	Overlay  Overlay
	Settings EncodeSettings
}

// Extract encodes the job's window into a normalized segment file
func (p *Processor) Extract(ctx context.Context, job ExtractJob) error {
	stream, err := buildExtract(job)
	if err != nil {
		return err
	}
	return p.run(ctx, stream, "extract")
}

func buildExtract(job ExtractJob) (*ffmpeg.Stream, error) {
	if job.Length <= 0 {
		return nil, fmt.Errorf("invalid segment length %s", job.Length)
	}
	s := job.Settings

	input := ffmpeg.Input(job.Input, ffmpeg.KwArgs{
		"ss": seconds(job.Start),
		"t":  seconds(job.Length),
	})

	video := normalizeVideo(input.Video(), s)
	if job.Overlay.Text != "" {
		video = AddTextOverlay(video, job.Overlay)
	}

	var audio *ffmpeg.Stream
	if job.HasAudio {
		audio = input.Audio()
	} else {
		// Every segment carries audio so segments join uniformly
		audio = ffmpeg.Input(
			fmt.Sprintf("anullsrc=channel_layout=stereo:sample_rate=%d", s.SampleRate),
			ffmpeg.KwArgs{"f": "lavfi", "t": seconds(job.Length)},
		).Audio()
	}
	audio = normalizeAudio(audio, s)

	kwargs := s.outputKwargs()
	kwargs["avoid_negative_ts"] = "make_zero"

	return ffmpeg.Output([]*ffmpeg.Stream{video, audio}, job.Output, kwargs), nil
}

// normalizeVideo letterboxes into the target frame without stretching
func normalizeVideo(stream *ffmpeg.Stream, s EncodeSettings) *ffmpeg.Stream {
	return stream.
		Filter("scale", ffmpeg.Args{}, ffmpeg.KwArgs{
			"w":                           s.Width,
			"h":                           s.Height,
			"force_original_aspect_ratio": "decrease",
		}).
		Filter("pad", ffmpeg.Args{}, ffmpeg.KwArgs{
			"w":     s.Width,
			"h":     s.Height,
			"x":     "(ow-iw)/2",
			"y":     "(oh-ih)/2",
			"color": "black",
		}).
		Filter("setsar", ffmpeg.Args{"1"}).
		Filter("fps", ffmpeg.Args{}, ffmpeg.KwArgs{"fps": s.FrameRate}).
		Filter("format", ffmpeg.Args{}, ffmpeg.KwArgs{"pix_fmts": "yuv420p"})
}

func normalizeAudio(stream *ffmpeg.Stream, s EncodeSettings) *ffmpeg.Stream {
	return stream.
		Filter("aresample", ffmpeg.Args{fmt.Sprintf("%d", s.SampleRate)}).
		Filter("aformat", ffmpeg.Args{}, ffmpeg.KwArgs{
			"sample_fmts":     "fltp",
			"channel_layouts": "stereo",
		})
}

// AddTextOverlay draws the overlay text with an outline and a translucent
// box so it stays readable on light and dark footage.
func AddTextOverlay(stream *ffmpeg.Stream, overlay Overlay) *ffmpeg.Stream {
	kwargs := ffmpeg.KwArgs{
		"text":        escapeOptionValue(overlay.Text),
		"x":           config.TextOffset,
		"y":           config.TextOffset,
		"fontsize":    config.TextSize,
		"fontcolor":   config.TextColor,
		"bordercolor": config.TextBorderColor,
		"borderw":     config.TextBorderWidth,
		"box":         1,
		"boxcolor":    config.TextBoxColor,
		"boxborderw":  config.TextBoxBorder,
	}

	if overlay.FontFile != "" {
		kwargs["fontfile"] = escapeOptionValue(filepath.ToSlash(overlay.FontFile))
	} else {
		family := overlay.FontFamily
		if family == "" {
			family = config.TextFallback
		}
		kwargs["font"] = escapeOptionValue(family)
	}

	return stream.Filter("drawtext", ffmpeg.Args{}, kwargs)
}

// optionEscaper escapes a filter option value. ffmpeg-go only adds the
// graph-level escaping on top, so paths with ':' or quotes (and Windows
// drive letters) must be escaped here.
var optionEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`, `:`, `\:`)

func escapeOptionValue(v string) string {
	return optionEscaper.Replace(v)
}
