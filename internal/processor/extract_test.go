package processor

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/ZacxDev/clip-stitcher/internal/config"
	"github.com/ZacxDev/clip-stitcher/internal/ffmpeg"
	"github.com/ZacxDev/clip-stitcher/pkg/types"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

func TestNewClip(t *testing.T) {
	const s = time.Second
	media := types.LocalMedia{Path: "src.mp4", Duration: 40 * s, HasAudio: true}

	tests := []struct {
		name       string
		start      time.Duration
		requested  time.Duration
		wantLength time.Duration
		wantReason string
	}{
		{"fits", 5 * s, 30 * s, 30 * s, ""},
		{"clamped to end", 35 * s, 30 * s, 5 * s, ""},
		{"too short after clamping", 39800 * time.Millisecond, 30 * s, 0, ReasonTooShort},
		{"starts at end", 40 * s, 30 * s, 0, ReasonOutOfRange},
		{"starts past end", 60 * s, 30 * s, 0, ReasonOutOfRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clip, err := NewClip(media, tt.start, tt.requested, 3, 500*time.Millisecond)
			if tt.wantReason != "" {
				var eerr *ExtractError
				if !errors.As(err, &eerr) {
					t.Fatalf("expected ExtractError, got %v", err)
				}
				if eerr.Reason != tt.wantReason || eerr.Index != 3 {
					t.Errorf("got %s for clip %d, want %s", eerr.Reason, eerr.Index, tt.wantReason)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if clip.Length != tt.wantLength {
				t.Errorf("Length = %s, want %s", clip.Length, tt.wantLength)
			}
			if clip.End() > media.Duration || clip.Length > tt.requested {
				t.Errorf("clip %s..%s escapes source or request", clip.StartOffset, clip.End())
			}
			if clip.OverlayText != "3" {
				t.Errorf("OverlayText = %q, want 3", clip.OverlayText)
			}
		})
	}
}

func testOptions(t *testing.T) config.Options {
	t.Helper()
	opts := config.Default()
	opts.FontsDir = t.TempDir()
	opts.WorkspaceRoot = t.TempDir()
	opts.OutputFile = filepath.Join(t.TempDir(), "final_output.mp4")
	opts.Workers = 3
	return opts
}

func TestExtractorExtract(t *testing.T) {
	engine := newFakeEngine()
	opts := testOptions(t)
	ex := NewExtractor(engine, opts, zerolog.Nop())

	clip := types.Clip{
		Index:       2,
		Source:      types.LocalMedia{Path: "src.mp4", Duration: time.Minute},
		StartOffset: 49 * time.Second,
		Length:      11 * time.Second,
		OverlayText: "2",
	}
	out := filepath.Join(t.TempDir(), "segment.mp4")

	seg, err := ex.Extract(context.Background(), clip, out)
	if err != nil {
		t.Fatal(err)
	}
	if seg.Index != 2 || seg.Path != out || seg.Duration != 11*time.Second {
		t.Errorf("unexpected segment %+v", seg)
	}
	if seg.Width != 1920 || seg.Height != 1080 || seg.FrameRate != 30 {
		t.Errorf("segment not at target format: %+v", seg)
	}

	jobs := engine.extractJobs()
	if len(jobs) != 1 {
		t.Fatalf("expected one extract job, got %d", len(jobs))
	}
	job := jobs[0]
	if job.Start != 49*time.Second || job.Length != 11*time.Second {
		t.Errorf("window = %s+%s", job.Start, job.Length)
	}
	if job.HasAudio {
		t.Error("source without audio should request synthesized silence")
	}
	if job.Overlay.Text != "2" {
		t.Errorf("overlay text = %q", job.Overlay.Text)
	}
	if job.Overlay.FontFile != "" || job.Overlay.FontFamily != config.TextFallback {
		t.Errorf("expected fallback font family, got %+v", job.Overlay)
	}
}

func TestExtractorUsesFontFromDir(t *testing.T) {
	opts := testOptions(t)
	nested := filepath.Join(opts.FontsDir, "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{filepath.Join(nested, "Zed.ttf"), filepath.Join(opts.FontsDir, "Arial.TTF"), filepath.Join(opts.FontsDir, "readme.txt")} {
		if err := os.WriteFile(name, nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}

	got, err := FindFont(opts.FontsDir)
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(opts.FontsDir, "Arial.TTF"); got != want {
		t.Errorf("FindFont() = %q, want %q", got, want)
	}
	if got, err := FindFont(filepath.Join(opts.FontsDir, "missing")); got != "" || err != nil {
		t.Errorf("FindFont(missing) = %q, %v", got, err)
	}

	engine := newFakeEngine()
	ex := NewExtractor(engine, opts, zerolog.Nop())
	clip := types.Clip{Index: 1, Source: types.LocalMedia{Path: "src.mp4", Duration: time.Minute}, Length: 5 * time.Second, OverlayText: "1"}
	if _, err := ex.Extract(context.Background(), clip, filepath.Join(t.TempDir(), "s.mp4")); err != nil {
		t.Fatal(err)
	}
	if job := engine.extractJobs()[0]; job.Overlay.FontFile == "" {
		t.Error("font file not used")
	}
}

func TestFindFontSkipsUnreadableDirs(t *testing.T) {
	if runtime.GOOS == "windows" || os.Geteuid() == 0 {
		t.Skip("permission bits are not enforced here")
	}
	dir := t.TempDir()
	locked := filepath.Join(dir, "a_locked")
	if err := os.Mkdir(locked, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "z.otf"), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Chmod(locked, 0); err != nil {
		t.Fatal(err)
	}
	defer os.Chmod(locked, 0o755)

	got, err := FindFont(dir)
	if got != filepath.Join(dir, "z.otf") {
		t.Errorf("FindFont() = %q, want the readable font", got)
	}
	if err == nil {
		t.Error("expected the unreadable directory to be reported")
	}
}

func TestExtractorFailures(t *testing.T) {
	clip := types.Clip{Index: 4, Source: types.LocalMedia{Path: "src.mp4", Duration: time.Minute}, Length: 5 * time.Second, OverlayText: "4"}

	t.Run("codec", func(t *testing.T) {
		engine := newFakeEngine()
		engine.extractErr = func(job ffmpeg.ExtractJob) error { return errors.New("encoder exploded") }
		ex := NewExtractor(engine, testOptions(t), zerolog.Nop())

		_, err := ex.Extract(context.Background(), clip, filepath.Join(t.TempDir(), "s.mp4"))
		var eerr *ExtractError
		if !errors.As(err, &eerr) || eerr.Reason != ReasonCodec {
			t.Fatalf("expected codec ExtractError, got %v", err)
		}
	})

	t.Run("timeout", func(t *testing.T) {
		engine := newFakeEngine()
		ex := NewExtractor(engine, testOptions(t), zerolog.Nop())
		ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
		defer cancel()
		<-ctx.Done()
		engine.extractErr = func(job ffmpeg.ExtractJob) error { return ctx.Err() }

		_, err := ex.Extract(ctx, clip, filepath.Join(t.TempDir(), "s.mp4"))
		var eerr *ExtractError
		if !errors.As(err, &eerr) || eerr.Reason != ReasonTimeout {
			t.Fatalf("expected timeout ExtractError, got %v", err)
		}
	})
}
