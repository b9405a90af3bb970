package ffmpeg

import (
	"context"
	"fmt"
	"time"

	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// CrossfadeInput is one normalized segment taking part in a blended join
type CrossfadeInput struct {
	Path     string
	Duration time.Duration
}

// CrossfadeJob blends adjacent inputs. Overlaps[i] is the blend between
// Inputs[i] and Inputs[i+1]; a zero overlap joins that pair hard.
type CrossfadeJob struct {
	Inputs   []CrossfadeInput
	Overlaps []time.Duration
	Output   string
	Settings EncodeSettings
}

// Crossfade renders the job in a single filter graph
func (p *Processor) Crossfade(ctx context.Context, job CrossfadeJob) error {
	stream, err := buildCrossfade(job)
	if err != nil {
		return err
	}
	return p.run(ctx, stream, "crossfade")
}

// CrossfadeOffsets returns, for each boundary, where in the output timeline
// the incoming segment starts blending in.
func CrossfadeOffsets(durations, overlaps []time.Duration) []time.Duration {
	if len(durations) == 0 {
		return nil
	}
	offsets := make([]time.Duration, 0, len(overlaps))
	elapsed := durations[0]
	for i, overlap := range overlaps {
		if i+1 >= len(durations) {
			break
		}
		offsets = append(offsets, elapsed-overlap)
		elapsed = elapsed - overlap + durations[i+1]
	}
	return offsets
}

func buildCrossfade(job CrossfadeJob) (*ffmpeg.Stream, error) {
	if len(job.Inputs) == 0 {
		return nil, fmt.Errorf("no input files provided")
	}
	if len(job.Overlaps) != len(job.Inputs)-1 {
		return nil, fmt.Errorf("need %d overlaps for %d inputs, got %d",
			len(job.Inputs)-1, len(job.Inputs), len(job.Overlaps))
	}

	durations := make([]time.Duration, len(job.Inputs))
	for i, in := range job.Inputs {
		durations[i] = in.Duration
	}
	offsets := CrossfadeOffsets(durations, job.Overlaps)

	first := ffmpeg.Input(job.Inputs[0].Path)
	video, audio := first.Video(), first.Audio()

	for i := 1; i < len(job.Inputs); i++ {
		next := ffmpeg.Input(job.Inputs[i].Path)
		overlap := job.Overlaps[i-1]

		if overlap > 0 {
			video = ffmpeg.Filter([]*ffmpeg.Stream{video, next.Video()}, "xfade", ffmpeg.Args{}, ffmpeg.KwArgs{
				"transition": "fade",
				"duration":   seconds(overlap),
				"offset":     seconds(offsets[i-1]),
			})
			audio = ffmpeg.Filter([]*ffmpeg.Stream{audio, next.Audio()}, "acrossfade", ffmpeg.Args{}, ffmpeg.KwArgs{
				"d":  seconds(overlap),
				"c1": "tri",
				"c2": "tri",
			})
			continue
		}

		video = ffmpeg.Filter([]*ffmpeg.Stream{video, next.Video()}, "concat", ffmpeg.Args{}, ffmpeg.KwArgs{
			"n": 2, "v": 1, "a": 0,
		})
		audio = ffmpeg.Filter([]*ffmpeg.Stream{audio, next.Audio()}, "concat", ffmpeg.Args{}, ffmpeg.KwArgs{
			"n": 2, "v": 0, "a": 1,
		})
	}

	return ffmpeg.Output([]*ffmpeg.Stream{video, audio}, job.Output, job.Settings.outputKwargs()), nil
}
