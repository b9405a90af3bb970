package ffmpeg

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ZacxDev/clip-stitcher/internal/config"
)

func testSettings() EncodeSettings {
	return SettingsFromQuality(config.Default().Quality)
}

// argAfter returns the value following the first occurrence of flag
func argAfter(args []string, flag string) string {
	for i := 0; i < len(args)-1; i++ {
		if args[i] == flag {
			return args[i+1]
		}
	}
	return ""
}

func TestParseProbe(t *testing.T) {
	data := `{
		"format": {"duration": "212.040000"},
		"streams": [
			{"codec_type": "video", "codec_name": "h264", "width": 1280, "height": 720, "duration": "212.000000", "r_frame_rate": "30000/1001"},
			{"codec_type": "audio", "codec_name": "aac"}
		]
	}`
	info, err := parseProbe([]byte(data))
	if err != nil {
		t.Fatalf("parseProbe: %v", err)
	}
	if info.Duration != 212*time.Second {
		t.Errorf("Duration = %s, want 3m32s", info.Duration)
	}
	if info.Width != 1280 || info.Height != 720 || info.Codec != "h264" {
		t.Errorf("unexpected video info: %+v", info)
	}
	if !info.HasAudio {
		t.Error("HasAudio = false")
	}
	if info.FrameRate < 29.96 || info.FrameRate > 29.98 {
		t.Errorf("FrameRate = %f", info.FrameRate)
	}
}

func TestParseProbeDurationFallbacks(t *testing.T) {
	tests := []struct {
		name string
		data string
		want time.Duration
	}{
		{
			"format duration",
			`{"format": {"duration": "10.5"}, "streams": [{"codec_type": "video", "width": 640, "height": 360}]}`,
			10500 * time.Millisecond,
		},
		{
			"frames over rate",
			`{"format": {}, "streams": [{"codec_type": "video", "nb_frames": "300", "r_frame_rate": "30/1"}]}`,
			10 * time.Second,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, err := parseProbe([]byte(tt.data))
			if err != nil {
				t.Fatal(err)
			}
			if info.Duration != tt.want {
				t.Errorf("Duration = %s, want %s", info.Duration, tt.want)
			}
			if info.HasAudio {
				t.Error("HasAudio should be false without an audio stream")
			}
		})
	}
}

func TestParseProbeErrors(t *testing.T) {
	for name, data := range map[string]string{
		"not json":    `ffprobe exploded`,
		"no streams":  `{"format": {"duration": "3"}, "streams": []}`,
		"audio only":  `{"format": {"duration": "3"}, "streams": [{"codec_type": "audio"}]}`,
		"no duration": `{"format": {}, "streams": [{"codec_type": "video"}]}`,
	} {
		if _, err := parseProbe([]byte(data)); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestBuildExtractWithAudio(t *testing.T) {
	stream, err := buildExtract(ExtractJob{
		Input:    "/work/src.mp4",
		Output:   "/work/segment_001.mp4",
		Start:    35 * time.Second,
		Length:   30 * time.Second,
		HasAudio: true,
		Overlay:  Overlay{Text: "1", FontFile: "/fonts/Inter.ttf"},
		Settings: testSettings(),
	})
	if err != nil {
		t.Fatal(err)
	}
	args := stream.GetArgs()

	if got := argAfter(args, "-ss"); got != "35.000" {
		t.Errorf("-ss = %q", got)
	}
	if got := argAfter(args, "-t"); got != "30.000" {
		t.Errorf("-t = %q", got)
	}
	if got := argAfter(args, "-i"); got != "/work/src.mp4" {
		t.Errorf("-i = %q", got)
	}
	if args[len(args)-1] != "/work/segment_001.mp4" {
		t.Errorf("output = %q", args[len(args)-1])
	}

	graph := argAfter(args, "-filter_complex")
	for _, want := range []string{"scale", "force_original_aspect_ratio=decrease", "pad", "setsar", "fps=30", "drawtext", "Inter.ttf", "aresample", "aformat"} {
		if !strings.Contains(graph, want) {
			t.Errorf("filter graph missing %q: %s", want, graph)
		}
	}
	if strings.Contains(strings.Join(args, " "), "anullsrc") {
		t.Error("silent track added although source has audio")
	}
	if got := argAfter(args, "-c:v"); got != "libx264" {
		t.Errorf("-c:v = %q", got)
	}
	if got := argAfter(args, "-crf"); got != "23" {
		t.Errorf("-crf = %q", got)
	}
}

func TestBuildExtractSynthesizesSilence(t *testing.T) {
	stream, err := buildExtract(ExtractJob{
		Input:    "/work/mute.mp4",
		Output:   "/work/segment_002.mp4",
		Length:   12 * time.Second,
		Overlay:  Overlay{Text: "2"},
		Settings: testSettings(),
	})
	if err != nil {
		t.Fatal(err)
	}
	joined := strings.Join(stream.GetArgs(), " ")
	if !strings.Contains(joined, "anullsrc") || !strings.Contains(joined, "lavfi") {
		t.Errorf("expected a lavfi anullsrc input: %s", joined)
	}
	if !strings.Contains(joined, "font=Sans") {
		t.Errorf("expected fallback font family: %s", joined)
	}
}

func TestBuildExtractEscapesFontPath(t *testing.T) {
	tests := []struct {
		name string
		font string
		want string
	}{
		// option-level "\:" plus ffmpeg-go's graph-level escaping of the backslash
		{"colon", "/f/a b:c.ttf", `fontfile=/f/a b\\:c.ttf`},
		{"drive letter", "C:/Windows/Fonts/arial.ttf", `fontfile=C\\:/Windows/Fonts/arial.ttf`},
		{"quote", "/f/it's.ttf", `fontfile=/f/it\\\'s.ttf`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stream, err := buildExtract(ExtractJob{
				Input:    "/work/src.mp4",
				Output:   "/work/segment_001.mp4",
				Length:   5 * time.Second,
				HasAudio: true,
				Overlay:  Overlay{Text: "1", FontFile: tt.font},
				Settings: testSettings(),
			})
			if err != nil {
				t.Fatal(err)
			}
			graph := argAfter(stream.GetArgs(), "-filter_complex")
			if !strings.Contains(graph, tt.want) {
				t.Errorf("filter graph missing %s: %s", tt.want, graph)
			}
			if strings.Contains(graph, "b:c.ttf") || strings.Contains(graph, "C:/") {
				t.Errorf("unescaped separator in font path: %s", graph)
			}
		})
	}
}

func TestEscapeOptionValue(t *testing.T) {
	tests := map[string]string{
		"Inter.ttf":  "Inter.ttf",
		"a:b":        `a\:b`,
		`C:\f\x.ttf`: `C\:\\f\\x.ttf`,
		"it's":       `it\'s`,
	}
	for in, want := range tests {
		if got := escapeOptionValue(in); got != want {
			t.Errorf("escapeOptionValue(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestBuildExtractRejectsEmptyWindow(t *testing.T) {
	if _, err := buildExtract(ExtractJob{Input: "a", Output: "b", Settings: testSettings()}); err == nil {
		t.Error("expected error for zero length")
	}
}

func TestCrossfadeOffsets(t *testing.T) {
	durations := []time.Duration{30 * time.Second, 30 * time.Second, 20 * time.Second}
	overlaps := []time.Duration{5 * time.Second, 2 * time.Second}

	got := CrossfadeOffsets(durations, overlaps)
	want := []time.Duration{25 * time.Second, 53 * time.Second}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("offset[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestBuildCrossfade(t *testing.T) {
	stream, err := buildCrossfade(CrossfadeJob{
		Inputs: []CrossfadeInput{
			{Path: "/work/a.mp4", Duration: 30 * time.Second},
			{Path: "/work/b.mp4", Duration: 30 * time.Second},
		},
		Overlaps: []time.Duration{5 * time.Second},
		Output:   "/work/stitched.mp4",
		Settings: testSettings(),
	})
	if err != nil {
		t.Fatal(err)
	}
	args := stream.GetArgs()
	graph := argAfter(args, "-filter_complex")
	for _, want := range []string{"xfade", "transition=fade", "duration=5.000", "offset=25.000", "acrossfade", "d=5.000"} {
		if !strings.Contains(graph, want) {
			t.Errorf("filter graph missing %q: %s", want, graph)
		}
	}

	inputs := 0
	for _, a := range args {
		if a == "-i" {
			inputs++
		}
	}
	if inputs != 2 {
		t.Errorf("got %d inputs, want 2", inputs)
	}
}

func TestBuildCrossfadeZeroOverlapUsesConcat(t *testing.T) {
	stream, err := buildCrossfade(CrossfadeJob{
		Inputs: []CrossfadeInput{
			{Path: "a.mp4", Duration: 10 * time.Second},
			{Path: "b.mp4", Duration: 10 * time.Second},
		},
		Overlaps: []time.Duration{0},
		Output:   "out.mp4",
		Settings: testSettings(),
	})
	if err != nil {
		t.Fatal(err)
	}
	graph := argAfter(stream.GetArgs(), "-filter_complex")
	if strings.Contains(graph, "xfade") || !strings.Contains(graph, "concat") {
		t.Errorf("unexpected graph: %s", graph)
	}
}

func TestBuildCrossfadeValidatesOverlaps(t *testing.T) {
	_, err := buildCrossfade(CrossfadeJob{
		Inputs:   []CrossfadeInput{{Path: "a"}, {Path: "b"}},
		Overlaps: nil,
	})
	if err == nil {
		t.Error("expected error for missing overlaps")
	}
}

func TestBuildConcat(t *testing.T) {
	copyArgs := buildConcat(ConcatJob{ListFile: "/work/list.txt", Output: "/work/out.mp4"}).GetArgs()
	if argAfter(copyArgs, "-f") != "concat" || argAfter(copyArgs, "-c") != "copy" {
		t.Errorf("copy concat args: %v", copyArgs)
	}

	encodeArgs := buildConcat(ConcatJob{ListFile: "/work/list.txt", Output: "/work/out.mp4", ReEncode: true, Settings: testSettings()}).GetArgs()
	if argAfter(encodeArgs, "-c:v") != "libx264" || argAfter(encodeArgs, "-c:a") != "aac" {
		t.Errorf("re-encode concat args: %v", encodeArgs)
	}
}

func TestWriteConcatList(t *testing.T) {
	dir := t.TempDir()
	list := filepath.Join(dir, "list.txt")
	inputs := []string{filepath.Join(dir, "segment_001.mp4"), filepath.Join(dir, "it's.mp4")}

	if err := writeConcatList(list, inputs); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(list)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines", len(lines))
	}
	if !strings.HasPrefix(lines[0], "file '") || !strings.HasSuffix(lines[0], "segment_001.mp4'") {
		t.Errorf("line 0 = %q", lines[0])
	}
	if !strings.Contains(lines[1], `it'\''s.mp4`) {
		t.Errorf("quote not escaped: %q", lines[1])
	}
}

func TestTailBuffer(t *testing.T) {
	tb := &tailBuffer{limit: 5}
	tb.Write([]byte("hello"))
	tb.Write([]byte(" world"))
	if got := tb.String(); got != "world" {
		t.Errorf("tail = %q, want %q", got, "world")
	}
}

func TestOutputKwargsBitrateMode(t *testing.T) {
	s := testSettings()
	s.VideoBitrate = "4M"
	kwargs := s.outputKwargs()
	if _, ok := kwargs["crf"]; ok {
		t.Error("crf should not be set in bitrate mode")
	}
	if kwargs["bufsize"] != "8M" {
		t.Errorf("bufsize = %v", kwargs["bufsize"])
	}
}
