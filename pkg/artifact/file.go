package artifact

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"salesforecast/pkg/errs"
	"salesforecast/pkg/logger"
)

// FileStore keeps bundles as <dir>/<run-id>.gob next to a "latest" file
// holding the newest run ID.
type FileStore struct {
	dir string
	log logger.Logger
}

// NewFileStore creates dir if needed.
func NewFileStore(dir string, log logger.Logger) (*FileStore, error) {
	if log == nil {
		log = logger.NewNop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact dir: %w", err)
	}
	return &FileStore{dir: dir, log: log}, nil
}

// Save implements Store.Save. Files are written to a temp name and renamed
// into place.
func (s *FileStore) Save(ctx context.Context, b *Bundle) error {
	if err := checkRunID(b.RunID); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := Encode(&buf, b); err != nil {
		return err
	}
	path := filepath.Join(s.dir, objectName(b.RunID))
	if err := writeAtomic(path, buf.Bytes()); err != nil {
		return fmt.Errorf("save bundle %s: %w", b.RunID, err)
	}
	if err := writeAtomic(filepath.Join(s.dir, LatestRef), []byte(b.RunID+"\n")); err != nil {
		return fmt.Errorf("update latest pointer: %w", err)
	}
	s.log.Info("bundle saved",
		logger.String("run_id", b.RunID),
		logger.String("path", path),
		logger.Int("bytes", buf.Len()),
	)
	return nil
}

// Load implements Store.Load.
func (s *FileStore) Load(ctx context.Context, runID string) (*Bundle, error) {
	if runID == LatestRef || runID == "" {
		id, err := s.Latest(ctx)
		if err != nil {
			return nil, err
		}
		runID = id
	}
	if err := checkRunID(runID); err != nil {
		return nil, err
	}
	path := filepath.Join(s.dir, objectName(runID))
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errs.NotFound(err, "bundle %s not found", runID).With("path", path)
		}
		return nil, err
	}
	defer f.Close()
	return Decode(f)
}

// Latest implements Store.Latest.
func (s *FileStore) Latest(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	raw, err := os.ReadFile(filepath.Join(s.dir, LatestRef))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", errs.NotFound(err, "no bundle has been saved in %s", s.dir)
		}
		return "", err
	}
	return strings.TrimSpace(string(raw)), nil
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
