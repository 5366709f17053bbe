package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCompressed_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	local, err := NewLocalStore(dir)
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}
	store := NewCompressed(local)
	ctx := context.Background()

	content := strings.Repeat("id,name,score\n1,alice,99\n", 500)
	n, err := store.Put(ctx, "k", strings.NewReader(content))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if n != int64(len(content)) {
		t.Errorf("size: got %d, want %d (uncompressed)", n, len(content))
	}

	raw, err := os.ReadFile(filepath.Join(dir, "k"))
	if err != nil {
		t.Fatalf("read raw: %v", err)
	}
	if len(raw) >= len(content) {
		t.Errorf("stored %d bytes, expected compression below %d", len(raw), len(content))
	}

	if got := readAll(t, store, "k"); got != content {
		t.Errorf("content mismatch after decompression")
	}
}

func TestCompressed_PutErrorPropagates(t *testing.T) {
	store := NewCompressed(newLocal(t))
	boom := errors.New("source failed")
	_, err := store.Put(context.Background(), "k", io.MultiReader(bytes.NewReader([]byte("abc")), errReader{boom}))
	if !errors.Is(err, boom) {
		t.Fatalf("expected %v, got %v", boom, err)
	}
}

func TestCompressed_OpenNotFound(t *testing.T) {
	store := NewCompressed(newLocal(t))
	if _, err := store.Open(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
