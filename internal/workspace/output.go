package workspace

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// OutputLock keeps two runs from publishing to the same output file
type OutputLock struct {
	lock *flock.Flock
}

// LockOutput takes an exclusive lock next to output without blocking
func LockOutput(output string) (*OutputLock, error) {
	abs, err := filepath.Abs(output)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return nil, errors.Wrapf(err, "create output directory %s", filepath.Dir(abs))
	}

	lock := flock.New(abs + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return nil, errors.Wrapf(err, "lock %s", lock.Path())
	}
	if !locked {
		return nil, fmt.Errorf("another run is already writing %s", output)
	}
	return &OutputLock{lock: lock}, nil
}

// Unlock releases the lock and removes the lock file
func (l *OutputLock) Unlock() error {
	if err := l.lock.Unlock(); err != nil {
		return errors.Wrapf(err, "unlock %s", l.lock.Path())
	}
	if err := os.Remove(l.lock.Path()); err != nil && !os.IsNotExist(err) {
		return errors.WithStack(err)
	}
	return nil
}

// Publish moves a finished file to dst. dst only ever holds a complete
// file: a cross-device move is copied to a hidden sibling first and renamed
// into place.
func Publish(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return errors.Wrapf(err, "create output directory %s", filepath.Dir(dst))
	}
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	partial := filepath.Join(filepath.Dir(dst), "."+filepath.Base(dst)+".partial-"+uuid.NewString())
	if err := copyFile(src, partial); err != nil {
		os.Remove(partial)
		return errors.Wrapf(err, "copy %s to %s", src, dst)
	}
	if err := os.Rename(partial, dst); err != nil {
		os.Remove(partial)
		return errors.Wrapf(err, "move %s into place", dst)
	}
	return os.Remove(src)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
