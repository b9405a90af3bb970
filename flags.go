package main

import (
	"time"

	"github.com/ZacxDev/clip-stitcher/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

func addStitchFlags(cmd *cobra.Command) {
	d := config.Default()
	f := cmd.Flags()

	f.StringP("output", "o", d.OutputFile, "Output video path")
	f.String("fonts-dir", d.FontsDir, "Directory searched for the overlay font")
	f.DurationP("clip-duration", "d", d.ClipDuration.Std(), "Length of each clip")
	f.Duration("min-clip-duration", d.MinClipDuration.Std(), "Clips shorter than this after trimming are dropped")
	f.BoolP("transitions", "t", d.UseTransitions, "Crossfade between clips")
	f.Duration("transition-duration", d.TransitionDuration.Std(), "Crossfade length")
	f.IntP("workers", "w", d.Workers, "Clips fetched and extracted in parallel")
	f.Duration("fetch-timeout", d.FetchTimeout.Std(), "Per-clip download timeout")
	f.Duration("extract-timeout", d.ExtractTimeout.Std(), "Per-clip extraction timeout")
	f.Duration("stitch-timeout", d.StitchTimeout.Std(), "Timeout for the final join")
	f.Bool("keep-workspace", false, "Keep intermediate files for inspection")
	f.String("workspace-root", "", "Directory the run's workspace is created in (default OS temp)")
	f.Int("width", d.Quality.Width, "Output width")
	f.Int("height", d.Quality.Height, "Output height")
	f.Int("fps", d.Quality.FrameRate, "Output frame rate")
	f.Int("crf", d.Quality.CRF, "x264 quality factor")
	f.String("preset", d.Quality.Preset, "x264 preset")
	f.String("video-bitrate", "", "Target video bitrate, overrides --crf (e.g. 6M)")
	f.String("audio-bitrate", d.Quality.AudioBitrate, "Audio bitrate")
	f.Int("max-source-height", d.Quality.MaxSourceHeight, "Highest source resolution to download")
}

// loadOptions layers the config file under any flag set on the command line
func loadOptions(cmd *cobra.Command) (config.Options, error) {
	path, _ := cmd.Flags().GetString("config")
	opts, err := config.Load(path)
	if err != nil {
		return opts, err
	}
	applyFlags(cmd.Flags(), &opts)
	return opts, nil
}

func applyFlags(flags *pflag.FlagSet, opts *config.Options) {
	str := func(name string, dst *string) {
		if flags.Changed(name) {
			*dst, _ = flags.GetString(name)
		}
	}
	integer := func(name string, dst *int) {
		if flags.Changed(name) {
			*dst, _ = flags.GetInt(name)
		}
	}
	boolean := func(name string, dst *bool) {
		if flags.Changed(name) {
			*dst, _ = flags.GetBool(name)
		}
	}
	duration := func(name string, dst *config.Duration) {
		if flags.Changed(name) {
			var v time.Duration
			v, _ = flags.GetDuration(name)
			*dst = config.Duration(v)
		}
	}

	str("input", &opts.InputFile)
	str("output", &opts.OutputFile)
	str("fonts-dir", &opts.FontsDir)
	str("workspace-root", &opts.WorkspaceRoot)
	str("log-format", &opts.Log.Format)
	str("log-level", &opts.Log.Level)
	str("ffmpeg", &opts.Tools.FFmpeg)
	str("yt-dlp", &opts.Tools.YtDlp)
	str("preset", &opts.Quality.Preset)
	str("video-bitrate", &opts.Quality.VideoBitrate)
	str("audio-bitrate", &opts.Quality.AudioBitrate)

	duration("clip-duration", &opts.ClipDuration)
	duration("min-clip-duration", &opts.MinClipDuration)
	duration("transition-duration", &opts.TransitionDuration)
	duration("fetch-timeout", &opts.FetchTimeout)
	duration("extract-timeout", &opts.ExtractTimeout)
	duration("stitch-timeout", &opts.StitchTimeout)

	integer("workers", &opts.Workers)
	integer("width", &opts.Quality.Width)
	integer("height", &opts.Quality.Height)
	integer("fps", &opts.Quality.FrameRate)
	integer("crf", &opts.Quality.CRF)
	integer("max-source-height", &opts.Quality.MaxSourceHeight)

	boolean("transitions", &opts.UseTransitions)
	boolean("keep-workspace", &opts.KeepWorkspace)
	boolean("verbose", &opts.Verbose)
}
