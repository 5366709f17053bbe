package services

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/soochol/datafiles/internal/datafile"
	"github.com/soochol/datafiles/internal/metrics"
	"github.com/soochol/datafiles/internal/repository"
	"github.com/soochol/datafiles/internal/storage"
	"github.com/soochol/datafiles/internal/upload"
)

const pong = "PONG DataFileService"

// DataFileService exposes the data file operations over a record store and a
// content store. It holds no per-request state.
type DataFileService struct {
	repo     repository.DataFileRepository
	store    storage.ContentStore
	classify datafile.Classifier
	decoder  upload.Decoder
}

func NewDataFileService(repo repository.DataFileRepository, store storage.ContentStore, classify datafile.Classifier) *DataFileService {
	return &DataFileService{
		repo:     repo,
		store:    store,
		classify: classify,
		decoder:  upload.CodecDecoder{},
	}
}

// Ping is a liveness probe.
func (s *DataFileService) Ping() string {
	return pong
}

// List returns every data file ordered by id.
func (s *DataFileService) List(ctx context.Context) ([]datafile.Descriptor, error) {
	recs, err := s.repo.List(ctx)
	observe("list", err)
	if err != nil {
		return nil, fmt.Errorf("list data files: %w", err)
	}
	slices.SortFunc(recs, func(a, b *datafile.Record) int { return cmp.Compare(a.ID, b.ID) })
	out := make([]datafile.Descriptor, len(recs))
	for i, rec := range recs {
		out[i] = datafile.ToDescriptor(rec)
	}
	return out, nil
}

// Get returns the descriptor for id, or nil when no such data file exists.
func (s *DataFileService) Get(ctx context.Context, id int64) (*datafile.Descriptor, error) {
	rec, err := s.repo.Get(ctx, id)
	observe("get", err)
	if errors.Is(err, datafile.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get data file %d: %w", id, err)
	}
	d := datafile.ToDescriptor(rec)
	return &d, nil
}

// Save creates or updates a data file from the parts of an upload. A
// descriptor without an id creates a new data file; with an id it updates
// the mutable fields of that data file. A binary part replaces the content.
//
// New content is written under a fresh key before the record is touched, so
// a failed save never leaves a record pointing at missing content. The
// superseded blob is removed afterwards on a best-effort basis.
func (s *DataFileService) Save(ctx context.Context, parts []upload.Part) (*datafile.Descriptor, error) {
	d, err := s.save(ctx, parts)
	observe("save", err)
	return d, err
}

func (s *DataFileService) save(ctx context.Context, parts []upload.Part) (*datafile.Descriptor, error) {
	res, err := upload.Dispatch(parts, s.decoder)
	if err != nil {
		return nil, err
	}
	rec, err := datafile.Reconcile(ctx, s.repo.Get, res.Descriptor)
	if err != nil {
		return nil, err
	}

	creating := rec.ID == 0
	oldKey := rec.StorageKey
	var newKey string
	if res.Content != nil || creating {
		content := res.Content
		if content == nil {
			content = strings.NewReader("")
		}
		newKey = storage.NewKey()
		n, err := s.store.Put(ctx, newKey, content)
		if err != nil {
			return nil, fmt.Errorf("store content: %w", err)
		}
		rec.StorageKey = newKey
		rec.Size = n
		metrics.RecordUpload(n)
	}

	if creating {
		err = s.repo.Create(ctx, rec)
	} else {
		err = s.repo.Update(ctx, rec)
	}
	if err != nil {
		if newKey != "" {
			s.discard(ctx, newKey)
		}
		return nil, fmt.Errorf("save data file: %w", err)
	}
	if newKey != "" && oldKey != "" {
		s.discard(ctx, oldKey)
	}

	slog.Info("data file saved", "id", rec.ID, "name", rec.Path, "created", creating, "size", rec.Size)
	d := datafile.ToDescriptor(rec)
	return &d, nil
}

// Delete removes the record and then its content. Content removal failures
// are logged; the sweeper picks up what is left behind.
func (s *DataFileService) Delete(ctx context.Context, id int64) error {
	err := s.delete(ctx, id)
	observe("delete", err)
	return err
}

func (s *DataFileService) delete(ctx context.Context, id int64) error {
	rec, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	if rec.StorageKey != "" {
		s.discard(ctx, rec.StorageKey)
	}
	slog.Info("data file deleted", "id", id)
	return nil
}

// Open resolves id to its content. The caller must Stream or Close the result.
func (s *DataFileService) Open(ctx context.Context, id int64) (*Content, error) {
	c, err := s.open(ctx, id)
	observe("open", err)
	return c, err
}

func (s *DataFileService) open(ctx context.Context, id int64) (*Content, error) {
	rec, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	body, err := s.store.Open(ctx, rec.StorageKey)
	if err != nil {
		return nil, fmt.Errorf("open content of data file %d: %w", id, err)
	}
	return &Content{
		ID:        rec.ID,
		Name:      rec.Path,
		Size:      rec.Size,
		Delimited: s.classify != nil && s.classify(rec.Path),
		body:      body,
	}, nil
}

// discard deletes a blob without failing the caller. It runs even when ctx
// is already cancelled.
func (s *DataFileService) discard(ctx context.Context, key string) {
	if err := s.store.Delete(context.WithoutCancel(ctx), key); err != nil {
		slog.Warn("discard content failed", "key", key, "err", err)
	}
}

func observe(op string, err error) {
	metrics.RecordOperation(op, err, errors.Is(err, datafile.ErrNotFound))
}

// Content is an opened data file body.
type Content struct {
	ID        int64
	Name      string
	Size      int64
	Delimited bool

	body      io.ReadCloser
	closeOnce sync.Once
	closeErr  error
}

// Stream writes the content to dst. For delimited files only lines
// [offset, offset+limit) are written; a negative limit writes every line.
// Other files are copied unchanged. The body is closed on return.
func (c *Content) Stream(dst io.Writer, offset, limit int) (int64, error) {
	defer c.Close()
	n, err := datafile.WriteWindow(dst, c.body, datafile.Window{
		Delimited: c.Delimited,
		Offset:    offset,
		Limit:     limit,
	})
	metrics.RecordDownload(n)
	if err != nil {
		return n, fmt.Errorf("stream data file %d: %w", c.ID, err)
	}
	return n, nil
}

// Close releases the body. It is safe to call more than once.
func (c *Content) Close() error {
	c.closeOnce.Do(func() {
		if err := c.body.Close(); err != nil {
			slog.Warn("close content failed", "id", c.ID, "err", err)
			c.closeErr = err
		}
	})
	return c.closeErr
}
