package ffmpeg

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// ConcatJob joins inputs back to back. ListFile is where the concat
// demuxer's file list is written.
type ConcatJob struct {
	Inputs   []string
	Output   string
	ListFile string
	ReEncode bool
	Settings EncodeSettings
}

// Concat merges the inputs into one file, copying streams unless ReEncode
// is set
func (p *Processor) Concat(ctx context.Context, job ConcatJob) error {
	if len(job.Inputs) == 0 {
		return fmt.Errorf("no input files provided")
	}
	if err := writeConcatList(job.ListFile, job.Inputs); err != nil {
		return errors.Wrap(err, "failed to create concat list")
	}

	op := "concat"
	if job.ReEncode {
		op = "concat re-encode"
	}
	return p.run(ctx, buildConcat(job), op)
}

func buildConcat(job ConcatJob) *ffmpeg.Stream {
	input := ffmpeg.Input(job.ListFile, ffmpeg.KwArgs{
		"f":    "concat",
		"safe": 0,
	})

	var kwargs ffmpeg.KwArgs
	if job.ReEncode {
		kwargs = job.Settings.outputKwargs()
	} else {
		kwargs = ffmpeg.KwArgs{
			"c":        "copy",
			"movflags": "+faststart",
		}
	}
	kwargs["avoid_negative_ts"] = "make_zero"

	return input.Output(job.Output, kwargs)
}

func writeConcatList(path string, inputs []string) error {
	var sb strings.Builder
	for _, input := range inputs {
		absPath, err := filepath.Abs(input)
		if err != nil {
			return err
		}
		// Forward slashes work for ffmpeg on every platform
		absPath = filepath.ToSlash(absPath)
		sb.WriteString(fmt.Sprintf("file '%s'\n", strings.ReplaceAll(absPath, "'", `'\''`)))
	}
	return os.WriteFile(path, []byte(sb.String()), 0o644)
}
