package ffmpeg

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	ffmpeg "github.com/u2takey/ffmpeg-go"
)

const probeTimeout = time.Minute

// MediaInfo contains the facts about a media file the pipeline relies on
type MediaInfo struct {
	Duration  time.Duration
	Width     int
	Height    int
	FrameRate float64
	Codec     string
	HasAudio  bool
}

// probeResult matches the subset of ffprobe's JSON output we read
type probeResult struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
	Streams []struct {
		CodecType  string `json:"codec_type"`
		CodecName  string `json:"codec_name"`
		Width      int    `json:"width"`
		Height     int    `json:"height"`
		Duration   string `json:"duration"`
		NbFrames   string `json:"nb_frames"`
		RFrameRate string `json:"r_frame_rate"`
	} `json:"streams"`
}

// Probe retrieves metadata about a media file
func (p *Processor) Probe(ctx context.Context, path string) (*MediaInfo, error) {
	timeout := probeTimeout
	if deadline, ok := ctx.Deadline(); ok {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, errors.Wrap(context.DeadlineExceeded, "probe")
		}
		if remaining < timeout {
			timeout = remaining
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "probe")
	}

	out, err := ffmpeg.ProbeWithTimeout(path, timeout, ffmpeg.KwArgs{})
	if err != nil {
		return nil, errors.Wrapf(err, "error probing %s", path)
	}

	info, err := parseProbe([]byte(out))
	if err != nil {
		return nil, errors.Wrapf(err, "error probing %s", path)
	}
	return info, nil
}

func parseProbe(data []byte) (*MediaInfo, error) {
	var probe probeResult
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, errors.Wrap(err, "parse ffprobe output")
	}
	if len(probe.Streams) == 0 {
		return nil, fmt.Errorf("no streams found in media")
	}

	info := &MediaInfo{}
	videoIdx := -1
	for i, stream := range probe.Streams {
		switch stream.CodecType {
		case "video":
			if videoIdx < 0 {
				videoIdx = i
			}
		case "audio":
			info.HasAudio = true
		}
	}
	if videoIdx < 0 {
		return nil, fmt.Errorf("no video stream found")
	}

	video := probe.Streams[videoIdx]
	info.Width = video.Width
	info.Height = video.Height
	info.Codec = video.CodecName
	info.FrameRate = parseFrameRate(video.RFrameRate)

	var duration float64

	// First try video stream duration
	if d, err := strconv.ParseFloat(strings.TrimSpace(video.Duration), 64); err == nil {
		duration = d
	}

	// If stream duration is not available, try format duration
	if duration == 0 {
		if d, err := strconv.ParseFloat(strings.TrimSpace(probe.Format.Duration), 64); err == nil {
			duration = d
		}
	}

	// If still no duration found, try calculating from frames and frame rate
	if duration == 0 && info.FrameRate > 0 {
		if frames, err := strconv.ParseFloat(video.NbFrames, 64); err == nil {
			duration = frames / info.FrameRate
		}
	}

	if duration <= 0 {
		return nil, fmt.Errorf("could not determine media duration")
	}
	info.Duration = time.Duration(duration * float64(time.Second))

	return info, nil
}

// parseFrameRate parses ffprobe rates such as "30000/1001"
func parseFrameRate(s string) float64 {
	nums := strings.Split(s, "/")
	if len(nums) != 2 {
		return 0
	}
	num, err1 := strconv.ParseFloat(nums[0], 64)
	den, err2 := strconv.ParseFloat(nums[1], 64)
	if err1 != nil || err2 != nil || den == 0 {
		return 0
	}
	return num / den
}
