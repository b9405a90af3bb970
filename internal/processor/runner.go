package processor

import (
	"context"
	"path/filepath"
	"sync"

	"github.com/ZacxDev/clip-stitcher/internal/config"
	"github.com/ZacxDev/clip-stitcher/internal/fetcher"
	"github.com/ZacxDev/clip-stitcher/internal/logging"
	"github.com/ZacxDev/clip-stitcher/internal/reference"
	"github.com/ZacxDev/clip-stitcher/internal/workspace"
	"github.com/ZacxDev/clip-stitcher/pkg/types"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/exp/slices"
	"golang.org/x/sync/errgroup"
)

// Runner drives one complete run: parse, fetch and extract every clip on a
// bounded pool, then plan and stitch the survivors in input order.
type Runner struct {
	opts      config.Options
	fetcher   Fetcher
	extractor *Extractor
	stitcher  *Stitcher
	base      zerolog.Logger
	log       zerolog.Logger
}

// NewRunner creates a runner. opts must already be validated.
func NewRunner(opts config.Options, fetcher Fetcher, engine Engine, logger zerolog.Logger) *Runner {
	return &Runner{
		opts:      opts,
		fetcher:   fetcher,
		extractor: NewExtractor(engine, opts, logger),
		stitcher:  NewStitcher(engine, opts.Quality, logger),
		base:      logger,
		log:       logging.WithComponent(logger, "processor"),
	}
}

type clipJob struct {
	index int
	line  reference.Line
	ref   types.SourceReference
}

type clipResult struct {
	job     clipJob
	segment types.Segment
	skip    *Skip
}

// Run processes lines into opts.OutputFile. A clip that fails is skipped and
// reported; the run only fails when nothing survives, stitching fails or ctx
// is cancelled. The workspace is released on every path.
func (r *Runner) Run(ctx context.Context, lines []reference.Line) (result *Result, err error) {
	result = &Result{}

	lock, err := workspace.LockOutput(r.opts.OutputFile)
	if err != nil {
		return result, &StitchError{Reason: ReasonPublish, Err: err}
	}
	defer func() {
		if uerr := lock.Unlock(); uerr != nil {
			r.log.Warn().Err(uerr).Msg("failed to release output lock")
		}
	}()

	ws, err := workspace.New(r.opts.WorkspaceRoot, r.opts.KeepWorkspace, r.base)
	if err != nil {
		return result, errors.Wrap(err, "failed to create workspace")
	}
	defer func() {
		retained, rerr := ws.Release()
		result.RetainedWorkspace = retained
		if rerr != nil {
			r.log.Warn().Err(rerr).Msg("workspace cleanup failed")
		}
	}()

	jobs := r.parse(lines, result)
	r.log.Info().
		Int("clips", len(jobs)).
		Int("skipped", len(result.Skipped)).
		Int("workers", r.opts.Workers).
		Msg("processing clips")

	results := r.process(ctx, ws, jobs)
	if ctx.Err() != nil {
		return result, &StitchError{Reason: ReasonAborted, Err: ctx.Err()}
	}

	slices.SortFunc(results, func(a, b clipResult) int { return a.job.index - b.job.index })

	var segments []types.Segment
	for _, res := range results {
		if res.skip != nil {
			result.Skipped = append(result.Skipped, *res.skip)
			continue
		}
		segments = append(segments, res.segment)
		result.Clips = append(result.Clips, ClipOutcome{
			Index:       res.job.index,
			Line:        res.job.line.Number,
			Input:       res.job.line.Text,
			ContentID:   res.job.ref.ContentID,
			StartOffset: res.job.ref.StartOffset,
			Duration:    res.segment.Duration,
		})
	}
	slices.SortFunc(result.Skipped, func(a, b Skip) int { return a.Index - b.Index })

	if len(segments) == 0 {
		r.log.Error().Int("skipped", len(result.Skipped)).Msg("no clips survived")
		return result, &StitchError{Reason: ReasonNoSurvivors}
	}

	plan := Plan(segments, r.opts.UseTransitions, r.opts.TransitionDuration.Std(), r.opts.Quality.FrameRate)
	r.logTransitions(len(segments), plan)
	result.Transitions = plan

	sctx, cancel := context.WithTimeout(ctx, r.opts.StitchTimeout.Std())
	defer cancel()

	expected, err := r.stitcher.Stitch(sctx, segments, plan, ws.Dir(), r.opts.OutputFile)
	if err != nil {
		return result, err
	}

	output, aerr := filepath.Abs(r.opts.OutputFile)
	if aerr != nil {
		output = r.opts.OutputFile
	}
	result.Output = output
	result.ExpectedDuration = expected
	return result, nil
}

// parse assigns each line its clip index. A line that fails to parse still
// uses up its index so numbering follows the input list.
func (r *Runner) parse(lines []reference.Line, result *Result) []clipJob {
	jobs := make([]clipJob, 0, len(lines))
	for i, line := range lines {
		index := i + 1
		ref, err := reference.Parse(line.Text)
		if err != nil {
			reason := "malformed url"
			var perr *reference.ParseError
			if errors.As(err, &perr) {
				reason = perr.Reason
			}
			r.log.Warn().Int("clip", index).Int("line", line.Number).Err(err).Msg("skipping unparsable line")
			result.Skipped = append(result.Skipped, Skip{
				Index:  index,
				Line:   line.Number,
				Input:  line.Text,
				Stage:  StageParse,
				Reason: reason,
				Err:    err,
			})
			continue
		}
		jobs = append(jobs, clipJob{index: index, line: line, ref: ref})
	}
	return jobs
}

// process runs fetch+extract for every job on a pool of opts.Workers.
// Results arrive in completion order.
func (r *Runner) process(ctx context.Context, ws *workspace.Workspace, jobs []clipJob) []clipResult {
	var (
		mu      sync.Mutex
		results = make([]clipResult, 0, len(jobs))
	)

	var g errgroup.Group
	g.SetLimit(r.opts.Workers)
	for _, job := range jobs {
		job := job
		g.Go(func() error {
			res := r.processClip(ctx, ws, job)
			mu.Lock()
			results = append(results, res)
			mu.Unlock()
			return nil
		})
	}
	g.Wait()
	return results
}

func (r *Runner) processClip(ctx context.Context, ws *workspace.Workspace, job clipJob) clipResult {
	log := logging.WithClip(r.log, job.index, job.ref.ContentID)
	skip := func(stage, reason string, err error) clipResult {
		log.Warn().Str("stage", stage).Str("reason", reason).Err(err).Msg("skipping clip")
		return clipResult{job: job, skip: &Skip{
			Index:  job.index,
			Line:   job.line.Number,
			Input:  job.line.Text,
			Stage:  stage,
			Reason: reason,
			Err:    err,
		}}
	}

	if ctx.Err() != nil {
		return skip(StageFetch, ReasonAborted, ctx.Err())
	}

	dir, err := ws.ClipDir(job.index)
	if err != nil {
		return skip(StageFetch, fetcher.ReasonFailed, err)
	}

	log.Info().Dur("start", job.ref.StartOffset).Msg("fetching source")
	media, err := r.fetch(ctx, job.ref, dir)
	if err != nil {
		return skip(StageFetch, fetchReason(ctx, err), err)
	}
	defer func() {
		if derr := ws.Discard(media.Path); derr != nil {
			log.Debug().Err(derr).Msg("could not remove source")
		}
	}()

	clip, err := NewClip(media, job.ref.StartOffset, r.opts.ClipDuration.Std(), job.index, r.opts.MinClipDuration.Std())
	if err != nil {
		return skip(StageExtract, extractReason(ctx, err), err)
	}
	if clip.Length < r.opts.ClipDuration.Std() {
		log.Info().Dur("length", clip.Length).Msg("clip clamped to end of source")
	}

	ectx, cancel := context.WithTimeout(ctx, r.opts.ExtractTimeout.Std())
	defer cancel()

	segment, err := r.extractor.Extract(ectx, clip, filepath.Join(dir, "segment.mp4"))
	if err != nil {
		return skip(StageExtract, extractReason(ctx, err), err)
	}

	log.Info().Dur("duration", segment.Duration).Msg("clip ready")
	return clipResult{job: job, segment: segment}
}

func (r *Runner) fetch(ctx context.Context, ref types.SourceReference, dir string) (types.LocalMedia, error) {
	fctx, cancel := context.WithTimeout(ctx, r.opts.FetchTimeout.Std())
	defer cancel()

	media, err := r.fetcher.Fetch(fctx, ref, dir)
	if err == nil {
		return media, nil
	}
	if ctx.Err() == nil && errors.Is(fctx.Err(), context.DeadlineExceeded) {
		var ferr *fetcher.FetchError
		if !errors.As(err, &ferr) {
			err = &fetcher.FetchError{ContentID: ref.ContentID, Reason: fetcher.ReasonTimeout, Err: err}
		}
	}
	return types.LocalMedia{}, err
}

func fetchReason(ctx context.Context, err error) string {
	if ctx.Err() != nil {
		return ReasonAborted
	}
	var ferr *fetcher.FetchError
	if errors.As(err, &ferr) {
		return ferr.Reason
	}
	return fetcher.ReasonFailed
}

func extractReason(ctx context.Context, err error) string {
	if ctx.Err() != nil {
		return ReasonAborted
	}
	var eerr *ExtractError
	if errors.As(err, &eerr) {
		return eerr.Reason
	}
	return ReasonCodec
}

func (r *Runner) logTransitions(segments int, plan types.TransitionPlan) {
	switch {
	case segments < 2:
		r.log.Info().Msg("single clip, no transitions")
	case !r.opts.UseTransitions:
		r.log.Info().Msg("transitions disabled")
	default:
		r.log.Info().
			Dur("transition", r.opts.TransitionDuration.Std()).
			Dur("total_overlap", plan.TotalOverlap()).
			Msg("transitions enabled")
	}
}
