package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/klauspost/compress/zstd"
)

// Compressed wraps a ContentStore and keeps content zstd-compressed at rest.
// Sizes reported by Put are uncompressed sizes.
type Compressed struct {
	inner ContentStore
}

func NewCompressed(inner ContentStore) *Compressed {
	return &Compressed{inner: inner}
}

func (c *Compressed) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	rc, err := c.inner.Open(ctx, key)
	if err != nil {
		return nil, err
	}
	dec, err := zstd.NewReader(rc, zstd.WithDecoderConcurrency(1))
	if err != nil {
		rc.Close()
		return nil, fmt.Errorf("zstd reader for %s: %w", key, err)
	}
	return &zstdReadCloser{dec: dec, src: rc}, nil
}

func (c *Compressed) Put(ctx context.Context, key string, r io.Reader) (int64, error) {
	pr, pw := io.Pipe()
	var n int64
	done := make(chan struct{})
	go func() {
		defer close(done)
		enc, err := zstd.NewWriter(pw)
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		n, err = io.Copy(enc, r)
		if cerr := enc.Close(); err == nil {
			err = cerr
		}
		pw.CloseWithError(err)
	}()

	_, err := c.inner.Put(ctx, key, pr)
	// Unblock the encoder if the inner store stopped reading early.
	pr.CloseWithError(io.ErrClosedPipe)
	<-done
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (c *Compressed) Delete(ctx context.Context, key string) error {
	return c.inner.Delete(ctx, key)
}

func (c *Compressed) Keys(ctx context.Context) ([]string, error) {
	return c.inner.Keys(ctx)
}

// RemoveStale forwards to the wrapped store when it keeps scratch files.
func (c *Compressed) RemoveStale(ctx context.Context, olderThan time.Duration) (int, error) {
	if sc, ok := c.inner.(StaleCleaner); ok {
		return sc.RemoveStale(ctx, olderThan)
	}
	return 0, nil
}

type zstdReadCloser struct {
	dec *zstd.Decoder
	src io.ReadCloser
}

func (z *zstdReadCloser) Read(p []byte) (int, error) {
	return z.dec.Read(p)
}

func (z *zstdReadCloser) Close() error {
	z.dec.Close()
	return z.src.Close()
}
