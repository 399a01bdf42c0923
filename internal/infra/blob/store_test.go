package blob

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"truthsig/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return store
}

func TestStore_PutAndOpen(t *testing.T) {
	store := newTestStore(t)
	data := []byte("evidence bytes")

	digest, size, err := store.Put(context.Background(), bytes.NewReader(data))
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if size != int64(len(data)) {
		t.Fatalf("size = %d, want %d", size, len(data))
	}
	if digest != domain.SHA256Hex(data) {
		t.Fatalf("digest = %s, want content sha256", digest)
	}

	r, err := store.Open(context.Background(), digest)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer r.Close()
	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Fatal("roundtrip bytes differ")
	}
}

func TestStore_PutIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	data := []byte("same bytes twice")

	first, _, err := store.Put(context.Background(), bytes.NewReader(data))
	if err != nil {
		t.Fatalf("first put: %v", err)
	}
	second, _, err := store.Put(context.Background(), bytes.NewReader(data))
	if err != nil {
		t.Fatalf("second put: %v", err)
	}
	if first != second {
		t.Fatalf("digests differ: %s vs %s", first, second)
	}

	// No stray temp files left behind.
	entries, err := os.ReadDir(store.root)
	if err != nil {
		t.Fatalf("read root: %v", err)
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			t.Fatalf("unexpected file in blob root: %s", entry.Name())
		}
	}
}

func TestStore_FanoutLayout(t *testing.T) {
	store := newTestStore(t)
	digest, err := store.PutBytes(context.Background(), []byte("layout"))
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	path, err := store.Path(digest)
	if err != nil {
		t.Fatalf("path: %v", err)
	}
	want := filepath.Join(store.root, digest[0:2], digest[2:4], digest)
	if path != want {
		t.Fatalf("path = %s, want %s", path, want)
	}
}

func TestStore_MissingAndInvalidDigests(t *testing.T) {
	store := newTestStore(t)

	missing := domain.SHA256Hex([]byte("never stored"))
	if _, err := store.Open(context.Background(), missing); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found for missing blob, got %v", err)
	}
	if _, err := store.Path("../../etc/passwd"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("path traversal input must be rejected, got %v", err)
	}
	if _, err := store.Path("ZZZZ"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("non-hex digest must be rejected, got %v", err)
	}
}
