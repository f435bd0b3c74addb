package artifacts

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/afero"

	"github.com/kuitang/shop-e2e/internal/errs"
)

// maxNameAttempts bounds the collision search for one Save.
const maxNameAttempts = 1000

// FSStore writes artifacts to a directory on an afero filesystem.
type FSStore struct {
	fs  afero.Fs
	dir string
	now func() time.Time

	mu sync.Mutex
}

// NewFSStore returns a store rooted at dir on fs. A nil fs means the OS filesystem.
func NewFSStore(fs afero.Fs, dir string) *FSStore {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &FSStore{fs: fs, dir: dir, now: time.Now}
}

// Dir returns the directory artifacts are written to.
func (s *FSStore) Dir() string {
	return s.dir
}

// Save writes data to <dir>/<name>-<epochMillis>.png. If that file already
// exists the millisecond stamp is bumped until a free name is found, so every
// call creates a new file.
func (s *FSStore) Save(ctx context.Context, name string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", errs.Wrap(errs.IO, "save artifact", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fs.MkdirAll(s.dir, 0o755); err != nil {
		return "", errs.Wrap(errs.IO, "create artifact directory "+s.dir, err)
	}

	stamp := s.now().UnixMilli()
	for attempt := 0; attempt < maxNameAttempts; attempt++ {
		path := filepath.Join(s.dir, FileName(name, stamp+int64(attempt)))
		if exists, err := afero.Exists(s.fs, path); err != nil {
			return "", errs.Wrap(errs.IO, "stat artifact "+path, err)
		} else if exists {
			continue
		}

		f, err := s.fs.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if os.IsExist(err) {
			continue
		}
		if err != nil {
			return "", errs.Wrap(errs.IO, "create artifact "+path, err)
		}
		if _, err := f.Write(data); err != nil {
			f.Close()
			_ = s.fs.Remove(path)
			return "", errs.Wrap(errs.IO, "write artifact "+path, err)
		}
		if err := f.Close(); err != nil {
			return "", errs.Wrap(errs.IO, "close artifact "+path, err)
		}
		return path, nil
	}
	return "", errs.New(errs.IO, "no free artifact name for "+SanitizeName(name))
}
