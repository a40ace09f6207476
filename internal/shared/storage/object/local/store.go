package local

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"vitaeforge/internal/shared/storage/object"
)

// Store implements object.Store using the local filesystem.
type Store struct {
	baseDir string
}

// New creates a new local object store rooted at baseDir.
func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

// Save writes the reader to disk under the owner's namespace with a random prefix.
func (s *Store) Save(ctx context.Context, ownerID string, fileName string, r io.Reader) (object.Object, error) {
	if err := ctx.Err(); err != nil {
		return object.Object{}, err
	}

	head, contentType, err := object.Sniff(r)
	if err != nil {
		return object.Object{}, fmt.Errorf("read sniff: %w", err)
	}

	storageKey, err := object.NewKey(ownerID, fileName, contentType)
	if err != nil {
		return object.Object{}, fmt.Errorf("object key: %w", err)
	}

	fullPath := filepath.Join(s.baseDir, filepath.FromSlash(storageKey))
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return object.Object{}, fmt.Errorf("mkdir: %w", err)
	}
	f, err := os.OpenFile(fullPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return object.Object{}, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	written, err := io.Copy(f, io.MultiReader(bytes.NewReader(head), r))
	if err != nil {
		return object.Object{}, fmt.Errorf("write body: %w", err)
	}

	return object.Object{Key: storageKey, Size: written, ContentType: contentType}, nil
}

// Open opens a stored object for reading.
func (s *Store) Open(ctx context.Context, storageKey string) (io.ReadCloser, object.Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, object.Object{}, err
	}

	clean := filepath.Clean(filepath.FromSlash(strings.TrimPrefix(storageKey, "/")))
	if clean == "." || strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return nil, object.Object{}, object.ErrInvalidKey
	}

	f, err := os.Open(filepath.Join(s.baseDir, clean))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, object.Object{}, fmt.Errorf("%w: %s", object.ErrNotFound, storageKey)
		}
		return nil, object.Object{}, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, object.Object{}, err
	}
	return f, object.Object{
		Key:         filepath.ToSlash(clean),
		Size:        info.Size(),
		ContentType: object.ContentTypeForKey(clean),
	}, nil
}

var _ object.Store = (*Store)(nil)
