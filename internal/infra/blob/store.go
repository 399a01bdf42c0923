package blob

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"

	"truthsig/internal/domain"
)

// Store is a content-addressed filesystem blob store. Blobs are keyed by
// their sha256 hex digest and laid out two fan-out levels deep
// (ab/cd/abcd...). Writes go through a temp file and a rename, so a
// partially written blob is never visible under its digest; writing
// bytes that already exist is a no-op.
type Store struct {
	root string
}

var digestPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

func NewStore(root string) (*Store, error) {
	if root == "" {
		return nil, errors.New("blob root directory required")
	}
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create blob root: %w", err)
	}
	return &Store{root: root}, nil
}

func (s *Store) Put(ctx context.Context, r io.Reader) (string, int64, error) {
	if err := ctx.Err(); err != nil {
		return "", 0, err
	}
	tmp, err := os.CreateTemp(s.root, "incoming-*")
	if err != nil {
		return "", 0, fmt.Errorf("create temp blob: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	hasher := sha256.New()
	size, err := io.Copy(io.MultiWriter(tmp, hasher), r)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", 0, fmt.Errorf("write blob: %w", err)
	}

	digest := hex.EncodeToString(hasher.Sum(nil))
	path := s.pathFor(digest)
	if _, err := os.Stat(path); err == nil {
		return digest, size, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return "", 0, fmt.Errorf("create blob dir: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		// A concurrent writer may have landed the same digest first.
		if _, statErr := os.Stat(path); statErr == nil {
			return digest, size, nil
		}
		return "", 0, fmt.Errorf("commit blob: %w", err)
	}
	return digest, size, nil
}

func (s *Store) PutBytes(ctx context.Context, data []byte) (string, error) {
	digest, _, err := s.Put(ctx, bytes.NewReader(data))
	return digest, err
}

func (s *Store) Open(ctx context.Context, digest string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := s.Path(digest)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: blob %s", domain.ErrNotFound, digest)
	}
	return f, err
}

func (s *Store) Path(digest string) (string, error) {
	if !digestPattern.MatchString(digest) {
		return "", fmt.Errorf("%w: invalid blob digest", domain.ErrNotFound)
	}
	path := s.pathFor(digest)
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("%w: blob %s", domain.ErrNotFound, digest)
	} else if err != nil {
		return "", err
	}
	return path, nil
}

func (s *Store) pathFor(digest string) string {
	return filepath.Join(s.root, digest[0:2], digest[2:4], digest)
}
