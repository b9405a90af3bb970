package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Options defines everything a stitching run can be configured with
type Options struct {
	InputFile          string   `yaml:"input_file"`
	OutputFile         string   `yaml:"output_file"`
	FontsDir           string   `yaml:"fonts_dir"`
	ClipDuration       Duration `yaml:"clip_duration"`
	UseTransitions     bool     `yaml:"use_transitions"`
	TransitionDuration Duration `yaml:"transition_duration"`
	MinClipDuration    Duration `yaml:"min_clip_duration"`
	Workers            int      `yaml:"workers"`
	FetchTimeout       Duration `yaml:"fetch_timeout"`
	ExtractTimeout     Duration `yaml:"extract_timeout"`
	StitchTimeout      Duration `yaml:"stitch_timeout"`
	KeepWorkspace      bool     `yaml:"keep_workspace"`
	WorkspaceRoot      string   `yaml:"workspace_root"`
	Quality            Quality  `yaml:"quality"`
	Tools              Tools    `yaml:"tools"`
	Log                Log      `yaml:"log"`
	Verbose            bool     `yaml:"verbose"`
}

// Quality holds the normalization target every segment is encoded to
type Quality struct {
	Width           int    `yaml:"width"`
	Height          int    `yaml:"height"`
	FrameRate       int    `yaml:"frame_rate"`
	CRF             int    `yaml:"crf"`
	Preset          string `yaml:"preset"`
	VideoBitrate    string `yaml:"video_bitrate"` // empty means CRF-driven
	AudioBitrate    string `yaml:"audio_bitrate"`
	SampleRate      int    `yaml:"sample_rate"`
	MaxSourceHeight int    `yaml:"max_source_height"`
}

// Tools names the external binaries; bare names are resolved through PATH.
// ffprobe is always taken from PATH.
type Tools struct {
	FFmpeg string `yaml:"ffmpeg"`
	YtDlp  string `yaml:"yt_dlp"`
}

type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "console", "json" or empty for auto
}

const (
	DefaultInputFile  = "input.txt"
	DefaultOutputFile = "final_output.mp4"
	DefaultFontsDir   = "assets/fonts"

	// Output resolution (1920x1080 @ 30fps)
	OutputWidth     = 1920
	OutputHeight    = 1080
	OutputFrameRate = 30

	DefaultCRF          = 23
	DefaultPreset       = "ultrafast"
	DefaultAudioBitrate = "192k"
	DefaultSampleRate   = 48000

	// Temporary directory prefix
	TempDirPrefix = "clip_stitcher_"

	// Text overlay settings
	TextSize        = 96      // Font size for the clip number
	TextOffset      = 24      // Distance from the top-left corner
	TextColor       = "white" // Text color
	TextBorderColor = "black" // Outline color
	TextBorderWidth = 3       // Outline width
	TextBoxColor    = "black@0.5"
	TextBoxBorder   = 10
	TextFallback    = "Sans" // fontconfig family used when no font file is found
)

var allowedPresets = map[string]struct{}{
	"ultrafast": {},
	"superfast": {},
	"veryfast":  {},
	"faster":    {},
	"fast":      {},
	"medium":    {},
	"slow":      {},
	"slower":    {},
	"veryslow":  {},
}

// Default returns the options a run uses when nothing is configured
func Default() Options {
	return Options{
		InputFile:          DefaultInputFile,
		OutputFile:         DefaultOutputFile,
		FontsDir:           DefaultFontsDir,
		ClipDuration:       Duration(30 * time.Second),
		UseTransitions:     true,
		TransitionDuration: Duration(time.Second),
		MinClipDuration:    Duration(500 * time.Millisecond),
		Workers:            2,
		FetchTimeout:       Duration(10 * time.Minute),
		ExtractTimeout:     Duration(5 * time.Minute),
		StitchTimeout:      Duration(30 * time.Minute),
		Quality: Quality{
			Width:           OutputWidth,
			Height:          OutputHeight,
			FrameRate:       OutputFrameRate,
			CRF:             DefaultCRF,
			Preset:          DefaultPreset,
			AudioBitrate:    DefaultAudioBitrate,
			SampleRate:      DefaultSampleRate,
			MaxSourceHeight: OutputHeight,
		},
		Tools: Tools{
			FFmpeg: "ffmpeg",
			YtDlp:  "yt-dlp",
		},
		Log: Log{Level: "info"},
	}
}

// Load reads a YAML file over the defaults. An empty path tries the usual
// locations and silently keeps defaults when none exists.
func Load(path string) (Options, error) {
	opts := Default()

	explicit := path != ""
	if !explicit {
		path = findConfigFile()
	}
	if path == "" {
		return opts, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return opts, nil
		}
		return opts, errors.Wrapf(err, "read config %s", path)
	}

	if err := yaml.Unmarshal(data, &opts); err != nil {
		return opts, errors.Wrapf(err, "parse config %s", path)
	}

	return opts, nil
}

func findConfigFile() string {
	for _, candidate := range []string{"./config.yaml", "./config.yml"} {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

// Validate reports the first option that cannot produce a sensible run
func (o Options) Validate() error {
	if strings.TrimSpace(o.OutputFile) == "" {
		return fmt.Errorf("output_file is required")
	}
	if o.ClipDuration <= 0 {
		return fmt.Errorf("clip_duration must be positive, got %s", o.ClipDuration)
	}
	if o.MinClipDuration <= 0 || o.MinClipDuration > o.ClipDuration {
		return fmt.Errorf("min_clip_duration must be in (0, %s], got %s", o.ClipDuration, o.MinClipDuration)
	}
	if o.UseTransitions {
		if o.TransitionDuration <= 0 {
			return fmt.Errorf("transition_duration must be positive, got %s", o.TransitionDuration)
		}
		if o.TransitionDuration >= o.ClipDuration {
			return fmt.Errorf("transition_duration %s must be shorter than clip_duration %s",
				o.TransitionDuration, o.ClipDuration)
		}
	}
	if o.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", o.Workers)
	}
	if o.FetchTimeout <= 0 || o.ExtractTimeout <= 0 || o.StitchTimeout <= 0 {
		return fmt.Errorf("timeouts must be positive")
	}

	q := o.Quality
	if q.Width <= 0 || q.Height <= 0 || q.Width%2 != 0 || q.Height%2 != 0 {
		return fmt.Errorf("quality width/height must be positive and even, got %dx%d", q.Width, q.Height)
	}
	if q.FrameRate <= 0 {
		return fmt.Errorf("quality frame_rate must be positive, got %d", q.FrameRate)
	}
	if q.CRF < 0 || q.CRF > 51 {
		return fmt.Errorf("quality crf must be within 0-51, got %d", q.CRF)
	}
	if _, ok := allowedPresets[q.Preset]; !ok {
		return fmt.Errorf("unsupported quality preset: %s", q.Preset)
	}
	if q.SampleRate <= 0 {
		return fmt.Errorf("quality sample_rate must be positive, got %d", q.SampleRate)
	}
	if q.MaxSourceHeight <= 0 {
		return fmt.Errorf("quality max_source_height must be positive, got %d", q.MaxSourceHeight)
	}

	return nil
}
