package processor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ZacxDev/clip-stitcher/internal/fetcher"
	"github.com/ZacxDev/clip-stitcher/internal/ffmpeg"
	"github.com/ZacxDev/clip-stitcher/pkg/types"
)

// fakeEngine writes placeholder files instead of running ffmpeg. Probed
// durations of extracted segments equal the requested length.
type fakeEngine struct {
	mu         sync.Mutex
	extracts   []ffmpeg.ExtractJob
	concats    []ffmpeg.ConcatJob
	crossfades []ffmpeg.CrossfadeJob
	durations  map[string]time.Duration

	extractErr func(job ffmpeg.ExtractJob) error
	concatErr  func(job ffmpeg.ConcatJob) error
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{durations: map[string]time.Duration{}}
}

func (e *fakeEngine) Probe(ctx context.Context, path string) (*ffmpeg.MediaInfo, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	d, ok := e.durations[path]
	if !ok {
		return nil, fmt.Errorf("no such file %s", path)
	}
	return &ffmpeg.MediaInfo{Duration: d, Width: 1920, Height: 1080, FrameRate: 30, HasAudio: true}, nil
}

func (e *fakeEngine) Extract(ctx context.Context, job ffmpeg.ExtractJob) error {
	e.mu.Lock()
	e.extracts = append(e.extracts, job)
	fail := e.extractErr
	e.mu.Unlock()

	if fail != nil {
		if err := fail(job); err != nil {
			return err
		}
	}
	if err := os.WriteFile(job.Output, []byte(job.Overlay.Text), 0o644); err != nil {
		return err
	}
	e.mu.Lock()
	e.durations[job.Output] = job.Length
	e.mu.Unlock()
	return nil
}

func (e *fakeEngine) Concat(ctx context.Context, job ffmpeg.ConcatJob) error {
	e.mu.Lock()
	e.concats = append(e.concats, job)
	fail := e.concatErr
	e.mu.Unlock()

	if fail != nil {
		if err := fail(job); err != nil {
			return err
		}
	}
	return os.WriteFile(job.Output, []byte("concat"), 0o644)
}

func (e *fakeEngine) Crossfade(ctx context.Context, job ffmpeg.CrossfadeJob) error {
	e.mu.Lock()
	e.crossfades = append(e.crossfades, job)
	e.mu.Unlock()
	return os.WriteFile(job.Output, []byte("crossfade"), 0o644)
}

func (e *fakeEngine) extractJobs() []ffmpeg.ExtractJob {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]ffmpeg.ExtractJob(nil), e.extracts...)
}

type fakeSource struct {
	duration time.Duration
	noAudio  bool
	delay    time.Duration
	err      error
}

// fakeFetcher serves canned sources keyed by content id
type fakeFetcher struct {
	sources map[string]fakeSource

	mu      sync.Mutex
	fetched []string
}

func (f *fakeFetcher) Fetch(ctx context.Context, ref types.SourceReference, dir string) (types.LocalMedia, error) {
	f.mu.Lock()
	f.fetched = append(f.fetched, ref.ContentID)
	f.mu.Unlock()

	src, ok := f.sources[ref.ContentID]
	if !ok {
		return types.LocalMedia{}, &fetcher.FetchError{ContentID: ref.ContentID, Reason: fetcher.ReasonUnavailable}
	}
	if src.delay > 0 {
		select {
		case <-time.After(src.delay):
		case <-ctx.Done():
			return types.LocalMedia{}, ctx.Err()
		}
	}
	if src.err != nil {
		return types.LocalMedia{}, src.err
	}

	path := filepath.Join(dir, ref.ContentID+"_full.mp4")
	if err := os.WriteFile(path, []byte("source"), 0o644); err != nil {
		return types.LocalMedia{}, err
	}
	return types.LocalMedia{
		Path:     path,
		Duration: src.duration,
		HasAudio: !src.noAudio,
		Width:    1280,
		Height:   720,
	}, nil
}
