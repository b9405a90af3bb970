// Package workspace owns the scratch directory of a single stitching run.
//
// Every intermediate artifact (downloads, segments, concat lists, the
// stitched file before it is published) lives under one uniquely named
// directory that is removed when the run ends, unless the caller asked to
// keep it for inspection.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ZacxDev/clip-stitcher/internal/config"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

type Workspace struct {
	dir  string
	keep bool
	log  zerolog.Logger

	mu       sync.Mutex
	released bool
}

// New creates a fresh directory under root (the OS temp dir when empty)
func New(root string, keep bool, logger zerolog.Logger) (*Workspace, error) {
	if root == "" {
		root = os.TempDir()
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create workspace root %s", root)
	}

	dir := filepath.Join(root, config.TempDirPrefix+uuid.NewString())
	if err := os.Mkdir(dir, 0o700); err != nil {
		return nil, errors.Wrap(err, "create workspace")
	}

	w := &Workspace{
		dir:  dir,
		keep: keep,
		log:  logger.With().Str("component", "workspace").Logger(),
	}
	w.log.Debug().Str("dir", dir).Msg("workspace created")
	return w, nil
}

func (w *Workspace) Dir() string {
	return w.dir
}

// Path returns a path inside the workspace
func (w *Workspace) Path(elem ...string) string {
	return filepath.Join(append([]string{w.dir}, elem...)...)
}

// ClipDir returns a per-clip directory so concurrent clips never share files
func (w *Workspace) ClipDir(index int) (string, error) {
	dir := w.Path(fmt.Sprintf("clip_%03d", index))
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", errors.Wrapf(err, "create clip dir %d", index)
	}
	return dir, nil
}

// Discard removes one artifact early. Paths outside the workspace are refused.
func (w *Workspace) Discard(path string) error {
	if !w.Contains(path) {
		return fmt.Errorf("refusing to remove %s outside workspace %s", path, w.dir)
	}
	if err := os.RemoveAll(path); err != nil {
		return errors.Wrapf(err, "remove %s", path)
	}
	return nil
}

// Contains reports whether path was issued by this workspace
func (w *Workspace) Contains(path string) bool {
	rel, err := filepath.Rel(w.dir, path)
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// Release removes the workspace, or keeps it when retention was requested.
// It returns the retained location ("" when removed) and is safe to call
// more than once.
func (w *Workspace) Release() (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.released {
		if w.keep {
			return w.dir, nil
		}
		return "", nil
	}
	w.released = true

	if w.keep {
		w.log.Info().Str("dir", w.dir).Msg("keeping workspace for inspection")
		return w.dir, nil
	}

	if err := os.RemoveAll(w.dir); err != nil {
		return w.dir, errors.Wrapf(err, "could not clean up workspace, manual cleanup may be needed: %s", w.dir)
	}
	w.log.Debug().Str("dir", w.dir).Msg("workspace removed")
	return "", nil
}
