// Package fetcher downloads source media with yt-dlp into a run's workspace.
package fetcher

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/ZacxDev/clip-stitcher/internal/config"
	"github.com/ZacxDev/clip-stitcher/internal/ffmpeg"
	"github.com/ZacxDev/clip-stitcher/internal/platform"
	"github.com/ZacxDev/clip-stitcher/pkg/types"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/exp/slices"
)

const (
	ReasonUnavailable = "unavailable"
	ReasonRestricted  = "restricted"
	ReasonNetwork     = "network"
	ReasonTimeout     = "timeout"
	ReasonFailed      = "failed"
)

const (
	maxOutputBytes = 8 * 1024
	// waitDelay bounds how long a killed yt-dlp may hold its output pipes
	waitDelay = 5 * time.Second
)

// FetchError reports why a source could not be made available locally
type FetchError struct {
	ContentID string
	Reason    string
	Err       error
}

func (e *FetchError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("fetch %s: %s", e.ContentID, e.Reason)
	}
	return fmt.Sprintf("fetch %s: %s: %v", e.ContentID, e.Reason, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) Cause() error { return e.Err }

// Prober reads duration and stream layout of a downloaded file
type Prober interface {
	Probe(ctx context.Context, path string) (*ffmpeg.MediaInfo, error)
}

// YtDlp fetches media through the yt-dlp command line tool
type YtDlp struct {
	path       string
	ffmpegPath string
	maxHeight  int
	prober     Prober
	log        zerolog.Logger
}

// New creates a fetcher. Downloads are capped at quality.MaxSourceHeight.
func New(tools config.Tools, quality config.Quality, prober Prober, logger zerolog.Logger) *YtDlp {
	path := tools.YtDlp
	if path == "" {
		path = "yt-dlp"
	}
	return &YtDlp{
		path:       path,
		ffmpegPath: tools.FFmpeg,
		maxHeight:  quality.MaxSourceHeight,
		prober:     prober,
		log:        logger.With().Str("component", "fetcher").Logger(),
	}
}

// Check verifies yt-dlp can be executed
func (f *YtDlp) Check(ctx context.Context) error {
	resolved, err := exec.LookPath(f.path)
	if err != nil {
		return errors.Wrapf(err, "%s not found", f.path)
	}
	out, err := exec.CommandContext(ctx, resolved, "--version").Output()
	if err != nil {
		return errors.Wrapf(err, "%s --version", f.path)
	}
	f.log.Debug().Str("binary", resolved).Str("version", strings.TrimSpace(string(out))).Msg("yt-dlp available")
	return nil
}

// FormatSelector asks for the best video at or below maxHeight plus the best
// audio, falling back to the best muxed file.
func FormatSelector(maxHeight int) string {
	return fmt.Sprintf("bestvideo[height<=%d]+bestaudio/best[height<=%d]/best", maxHeight, maxHeight)
}

// Fetch downloads ref's source into dir and probes it
func (f *YtDlp) Fetch(ctx context.Context, ref types.SourceReference, dir string) (types.LocalMedia, error) {
	fail := func(reason string, err error) (types.LocalMedia, error) {
		return types.LocalMedia{}, &FetchError{ContentID: ref.ContentID, Reason: reason, Err: err}
	}

	plat, err := platform.Get(ref.Platform)
	if err != nil {
		return fail(ReasonFailed, err)
	}

	args := f.buildArgs(plat.GetWatchURL(ref.ContentID), dir, ref.ContentID)
	f.log.Debug().Str("content_id", ref.ContentID).Strs("args", args).Msg("executing yt-dlp")

	output := &tailWriter{limit: maxOutputBytes}
	cmd := exec.CommandContext(ctx, f.path, args...)
	cmd.Stdout = output
	cmd.Stderr = output
	cmd.WaitDelay = waitDelay

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			if errors.Is(ctxErr, context.DeadlineExceeded) {
				return fail(ReasonTimeout, ctxErr)
			}
			return fail(ReasonFailed, ctxErr)
		}
		detail := strings.TrimSpace(output.String())
		return fail(classifyFailure(detail), errors.Wrap(err, lastLine(detail)))
	}

	path, err := findDownloaded(dir, ref.ContentID)
	if err != nil {
		return fail(ReasonFailed, err)
	}

	info, err := f.prober.Probe(ctx, path)
	if err != nil {
		return fail(ReasonFailed, err)
	}

	f.log.Info().
		Str("content_id", ref.ContentID).
		Str("resolution", fmt.Sprintf("%dx%d", info.Width, info.Height)).
		Dur("duration", info.Duration).
		Bool("audio", info.HasAudio).
		Msg("source downloaded")

	return types.LocalMedia{
		Path:     path,
		Duration: info.Duration,
		HasAudio: info.HasAudio,
		Width:    info.Width,
		Height:   info.Height,
	}, nil
}

func (f *YtDlp) buildArgs(watchURL, dir, id string) []string {
	args := []string{
		"-f", FormatSelector(f.maxHeight),
		"--merge-output-format", "mp4",
		"--concurrent-fragments", "4",
		"--no-playlist",
		"--no-progress",
		"-o", filepath.Join(dir, id+"_full.%(ext)s"),
	}
	if f.ffmpegPath != "" && strings.ContainsRune(f.ffmpegPath, os.PathSeparator) {
		args = append(args, "--ffmpeg-location", filepath.Dir(f.ffmpegPath))
	}
	return append(args, "--", watchURL)
}

func findDownloaded(dir, id string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, id+"_full.*"))
	if err != nil {
		return "", errors.WithStack(err)
	}
	slices.Sort(matches)
	for _, m := range matches {
		switch filepath.Ext(m) {
		case ".part", ".ytdl", ".temp":
			continue
		}
		return m, nil
	}
	return "", fmt.Errorf("downloaded file for %s not found in %s", id, dir)
}

func classifyFailure(output string) string {
	lower := strings.ToLower(output)

	switch {
	case strings.Contains(lower, "private video"),
		strings.Contains(lower, "sign in to confirm your age"),
		strings.Contains(lower, "sign in to confirm you're not a bot"),
		strings.Contains(lower, "sign in to confirm you’re not a bot"),
		strings.Contains(lower, "members-only"),
		strings.Contains(lower, "not available in your country"),
		strings.Contains(lower, "blocked it in your country"):
		return ReasonRestricted
	case strings.Contains(lower, "video unavailable"),
		strings.Contains(lower, "has been removed"),
		strings.Contains(lower, "does not exist"),
		strings.Contains(lower, "http error 404"):
		return ReasonUnavailable
	case strings.Contains(lower, "unable to download"),
		strings.Contains(lower, "timed out"),
		strings.Contains(lower, "connection reset"),
		strings.Contains(lower, "temporary failure in name resolution"),
		strings.Contains(lower, "http error 5"):
		return ReasonNetwork
	}
	return ReasonFailed
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[i+1:])
	}
	if s == "" {
		return "yt-dlp failed"
	}
	return s
}

// tailWriter keeps only the last limit bytes written to it
type tailWriter struct {
	buf   []byte
	limit int
}

func (t *tailWriter) Write(p []byte) (int, error) {
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.limit; over > 0 {
		t.buf = t.buf[over:]
	}
	return len(p), nil
}

func (t *tailWriter) String() string {
	return string(t.buf)
}
