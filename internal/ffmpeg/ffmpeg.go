package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/ZacxDev/clip-stitcher/internal/config"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// maxStderrBytes is the tail of ffmpeg's stderr kept for error messages
const maxStderrBytes = 8 * 1024

// EncodeSettings is the uniform target every segment is normalized to, so
// that segments can later be joined without re-encoding.
type EncodeSettings struct {
	Width        int
	Height       int
	FrameRate    int
	VideoCodec   string
	AudioCodec   string
	CRF          int
	Preset       string
	VideoBitrate string
	AudioBitrate string
	SampleRate   int
}

// SettingsFromQuality maps configured quality onto H.264/AAC settings
func SettingsFromQuality(q config.Quality) EncodeSettings {
	return EncodeSettings{
		Width:        q.Width,
		Height:       q.Height,
		FrameRate:    q.FrameRate,
		VideoCodec:   "libx264",
		AudioCodec:   "aac",
		CRF:          q.CRF,
		Preset:       q.Preset,
		VideoBitrate: q.VideoBitrate,
		AudioBitrate: q.AudioBitrate,
		SampleRate:   q.SampleRate,
	}
}

func (s EncodeSettings) outputKwargs() ffmpeg.KwArgs {
	kwargs := ffmpeg.KwArgs{
		"c:v":       s.VideoCodec,
		"c:a":       s.AudioCodec,
		"preset":    s.Preset,
		"pix_fmt":   "yuv420p",
		"profile:v": "high",
		"g":         s.FrameRate * 2,
		"x264opts":  "no-scenecut",
		"ar":        s.SampleRate,
		"ac":        2,
		"movflags":  "+faststart",
		"threads":   GetOptimalThreadCount(),
	}

	if s.VideoBitrate != "" {
		kwargs["b:v"] = s.VideoBitrate
		kwargs["maxrate"] = s.VideoBitrate
		kwargs["bufsize"] = doubleBitrate(s.VideoBitrate)
	} else {
		kwargs["crf"] = s.CRF
	}
	if s.AudioBitrate != "" {
		kwargs["b:a"] = s.AudioBitrate
	}

	return kwargs
}

// Processor runs ffmpeg on behalf of the pipeline
type Processor struct {
	ffmpegPath string
	log        zerolog.Logger
}

// NewProcessor creates a new FFmpeg processor
func NewProcessor(tools config.Tools, logger zerolog.Logger) *Processor {
	path := tools.FFmpeg
	if path == "" {
		path = "ffmpeg"
	}
	return &Processor{
		ffmpegPath: path,
		log:        logger.With().Str("component", "ffmpeg").Logger(),
	}
}

// Check verifies that ffmpeg and ffprobe can be executed
func (p *Processor) Check(ctx context.Context) error {
	for _, bin := range []string{p.ffmpegPath, "ffprobe"} {
		resolved, err := exec.LookPath(bin)
		if err != nil {
			return errors.Wrapf(err, "%s not found", bin)
		}
		out, err := exec.CommandContext(ctx, resolved, "-version").Output()
		if err != nil {
			return errors.Wrapf(err, "%s -version", bin)
		}
		line, _, _ := strings.Cut(string(out), "\n")
		p.log.Debug().Str("binary", resolved).Msg(strings.TrimSpace(line))
	}
	return nil
}

func (p *Processor) run(ctx context.Context, stream *ffmpeg.Stream, op string) error {
	args := stream.OverWriteOutput().GetArgs()
	args = append([]string{"-hide_banner", "-nostdin", "-loglevel", "error"}, args...)

	p.log.Debug().Str("op", op).Strs("args", args).Msg("executing ffmpeg")

	stderr := &tailBuffer{limit: maxStderrBytes}
	cmd := exec.CommandContext(ctx, p.ffmpegPath, args...)
	cmd.Stderr = stderr
	cmd.WaitDelay = 5 * time.Second

	started := time.Now()
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return errors.Wrapf(ctxErr, "%s interrupted", op)
		}
		return errors.Wrapf(err, "%s failed: %s", op, strings.TrimSpace(stderr.String()))
	}

	p.log.Debug().Str("op", op).Dur("elapsed", time.Since(started)).Msg("ffmpeg finished")
	return nil
}

// tailBuffer keeps only the last limit bytes written to it
type tailBuffer struct {
	buf   bytes.Buffer
	limit int
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	n := len(p)
	t.buf.Write(p)
	if over := t.buf.Len() - t.limit; over > 0 {
		t.buf.Next(over)
	}
	return n, nil
}

func (t *tailBuffer) String() string {
	return t.buf.String()
}

// GetOptimalThreadCount leaves a quarter of the cores free
func GetOptimalThreadCount() int {
	cpuCount := runtime.NumCPU()
	// Use 75% of available cores to prevent overload
	return int(math.Max(1, float64(cpuCount)*0.75))
}

// seconds formats d the way ffmpeg options expect, with millisecond precision
func seconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 3, 64)
}

func doubleBitrate(bitrate string) string {
	value := strings.TrimRight(bitrate, "MmKk")
	number, err := strconv.Atoi(value)
	if err != nil {
		return bitrate
	}
	return fmt.Sprintf("%d%s", number*2, bitrate[len(value):])
}
