// Package clipstitcher compiles a list of timestamped video links into one
// video, using yt-dlp to fetch sources and ffmpeg to cut and join them.
package clipstitcher

import (
	"context"
	"io"

	"github.com/ZacxDev/clip-stitcher/internal/config"
	"github.com/ZacxDev/clip-stitcher/internal/fetcher"
	"github.com/ZacxDev/clip-stitcher/internal/ffmpeg"
	"github.com/ZacxDev/clip-stitcher/internal/platform"
	"github.com/ZacxDev/clip-stitcher/internal/processor"
	"github.com/ZacxDev/clip-stitcher/internal/reference"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

type (
	Options = config.Options
	Result  = processor.Result
	Line    = reference.Line
)

// DefaultOptions returns the options used when nothing is configured
func DefaultOptions() Options {
	return config.Default()
}

// LoadOptions reads a YAML config over the defaults
func LoadOptions(path string) (Options, error) {
	return config.Load(path)
}

// ReadLines parses an input list, skipping blank and comment lines
func ReadLines(r io.Reader) ([]Line, error) {
	return reference.ReadList(r)
}

// Compile stitches lines into opts.OutputFile. The returned Result lists
// processed and skipped clips and is non-nil even when err is set.
func Compile(ctx context.Context, opts Options, lines []Line, logger zerolog.Logger) (*Result, error) {
	if err := opts.Validate(); err != nil {
		return &Result{}, errors.Wrap(err, "invalid options")
	}

	engine := ffmpeg.NewProcessor(opts.Tools, logger)
	f := fetcher.New(opts.Tools, opts.Quality, engine, logger)

	return processor.NewRunner(opts, f, engine, logger).Run(ctx, lines)
}

// CompileFile reads opts.InputFile and compiles it
func CompileFile(ctx context.Context, opts Options, logger zerolog.Logger) (*Result, error) {
	lines, err := reference.ReadFile(opts.InputFile)
	if err != nil {
		return &Result{}, err
	}
	if len(lines) == 0 {
		return &Result{}, errors.Errorf("%s contains no links", opts.InputFile)
	}
	return Compile(ctx, opts, lines, logger)
}

// Check verifies that ffmpeg, ffprobe and yt-dlp can be executed
func Check(ctx context.Context, opts Options, logger zerolog.Logger) error {
	engine := ffmpeg.NewProcessor(opts.Tools, logger)
	if err := engine.Check(ctx); err != nil {
		return err
	}
	return fetcher.New(opts.Tools, opts.Quality, engine, logger).Check(ctx)
}

// GetSupportedPlatforms returns the names of platforms links may point to
func GetSupportedPlatforms() []string {
	return platform.GetSupportedPlatforms()
}
