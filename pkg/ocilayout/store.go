// Package ocilayout reads and writes the blobs of an on-disk OCI image layout.
//
// A Store is not safe for concurrent mutation of the same layout root:
// callers must serialize writes and deletes, there is no internal locking.
package ocilayout

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"

	v1 "github.com/google/go-containerregistry/pkg/v1"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

const (
	IndexFile = "index.json"
	BlobsDir  = "blobs"

	blobPerm = 0644
	dirPerm  = 0755
)

type Store struct {
	fs   afero.Fs
	root string
}

func New(fs afero.Fs, root string) *Store {
	return &Store{fs: fs, root: root}
}

// NewOs returns a store for a layout directory on the local filesystem
func NewOs(root string) *Store {
	return New(afero.NewOsFs(), root)
}

func (s *Store) Root() string {
	return s.root
}

// BlobPath is where a blob with the given digest is stored, whether it exists or not
func (s *Store) BlobPath(h v1.Hash) string {
	return filepath.Join(s.root, BlobsDir, h.Algorithm, h.Hex)
}

func (s *Store) IndexPath() string {
	return filepath.Join(s.root, IndexFile)
}

func (s *Store) Read(h v1.Hash) ([]byte, error) {
	path := s.BlobPath(h)
	b, err := afero.ReadFile(s.fs, path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &NotFoundError{Digest: h, Path: path}
		}
		return nil, fmt.Errorf("read blob %s: %w", path, err)
	}
	return b, nil
}

// Open is Read for blobs that should be streamed, typically layers
func (s *Store) Open(h v1.Hash) (io.ReadCloser, error) {
	path := s.BlobPath(h)
	f, err := s.fs.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &NotFoundError{Digest: h, Path: path}
		}
		return nil, fmt.Errorf("open blob %s: %w", path, err)
	}
	return f, nil
}

func (s *Store) ReadJSON(h v1.Hash, v any) error {
	b, err := s.Read(h)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return &DecodeError{Path: s.BlobPath(h), Err: err}
	}
	return nil
}

// Write stores content at the path derived from its sha256 digest.
// Content that already exists at that path is left as is, the digest guarantees it's identical.
func (s *Store) Write(content []byte) (v1.Hash, int64, error) {
	h, size, err := v1.SHA256(bytes.NewReader(content))
	if err != nil {
		return v1.Hash{}, 0, err
	}
	path := s.BlobPath(h)
	exists, err := afero.Exists(s.fs, path)
	if err != nil {
		return v1.Hash{}, 0, fmt.Errorf("stat blob %s: %w", path, err)
	}
	if exists {
		zap.L().Debug("blob exists", zap.String("digest", h.String()))
		return h, size, nil
	}
	if err := s.fs.MkdirAll(filepath.Dir(path), dirPerm); err != nil {
		return v1.Hash{}, 0, fmt.Errorf("blob dir for %s: %w", path, err)
	}
	if err := afero.WriteFile(s.fs, path, content, blobPerm); err != nil {
		return v1.Hash{}, 0, fmt.Errorf("write blob %s: %w", path, err)
	}
	zap.L().Debug("blob written", zap.String("digest", h.String()), zap.Int64("size", size))
	return h, size, nil
}

// Delete removes a blob, and succeeds if it was already gone
func (s *Store) Delete(h v1.Hash) error {
	path := s.BlobPath(h)
	err := s.fs.Remove(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete blob %s: %w", path, err)
	}
	if err == nil {
		zap.L().Debug("blob deleted", zap.String("digest", h.String()))
	}
	return nil
}

func (s *Store) Exists(h v1.Hash) (bool, error) {
	return afero.Exists(s.fs, s.BlobPath(h))
}

// ReadIndex reads the layout's index.json, which unlike blobs has a fixed name
func (s *Store) ReadIndex() (*v1.IndexManifest, error) {
	path := s.IndexPath()
	b, err := afero.ReadFile(s.fs, path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &NotFoundError{Path: path}
		}
		return nil, fmt.Errorf("read index %s: %w", path, err)
	}
	index, err := v1.ParseIndexManifest(bytes.NewReader(b))
	if err != nil {
		return nil, &DecodeError{Path: path, Err: err}
	}
	return index, nil
}

// WriteIndex replaces index.json through a rename so readers never see partial content
func (s *Store) WriteIndex(index *v1.IndexManifest) error {
	b, err := json.Marshal(index)
	if err != nil {
		return fmt.Errorf("encode index: %w", err)
	}
	path := s.IndexPath()
	tmp, err := afero.TempFile(s.fs, s.root, ".index-*.json")
	if err != nil {
		return fmt.Errorf("temp index in %s: %w", s.root, err)
	}
	tmpPath := tmp.Name()
	_, err = tmp.Write(b)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = s.fs.Chmod(tmpPath, blobPerm)
	}
	if err != nil {
		s.fs.Remove(tmpPath) //nolint:errcheck
		return fmt.Errorf("write index %s: %w", tmpPath, err)
	}
	if err := s.fs.Rename(tmpPath, path); err != nil {
		s.fs.Remove(tmpPath) //nolint:errcheck
		return fmt.Errorf("replace index %s: %w", path, err)
	}
	zap.L().Debug("index written", zap.String("path", path), zap.Int("size", len(b)))
	return nil
}
