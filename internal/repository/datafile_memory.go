package repository

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync/atomic"
	"time"

	"github.com/soochol/datafiles/internal/datafile"
	memstore "github.com/soochol/datafiles/internal/repository/memory"
)

// MemoryDataFileRepository is a thread-safe in-memory record store. Records
// are copied on the way in and out, so callers never share state with it.
type MemoryDataFileRepository struct {
	store *memstore.Store[int64, *datafile.Record]
	seq   atomic.Int64
	now   func() time.Time
}

func NewMemoryDataFileRepository() *MemoryDataFileRepository {
	return &MemoryDataFileRepository{
		store: memstore.New(func(r *datafile.Record) int64 { return r.ID }),
		now:   time.Now,
	}
}

func (r *MemoryDataFileRepository) Create(ctx context.Context, rec *datafile.Record) error {
	now := r.now().UTC()
	rec.ID = r.seq.Add(1)
	rec.CreatedAt = now
	rec.ModifiedAt = now
	cp := *rec
	return r.store.Set(ctx, &cp)
}

func (r *MemoryDataFileRepository) Get(ctx context.Context, id int64) (*datafile.Record, error) {
	rec, err := r.store.Get(ctx, id)
	if errors.Is(err, memstore.ErrNotFound) {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	cp := *rec
	return &cp, nil
}

// List returns all records ordered by id.
func (r *MemoryDataFileRepository) List(ctx context.Context) ([]*datafile.Record, error) {
	all, err := r.store.All(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*datafile.Record, len(all))
	for i, rec := range all {
		cp := *rec
		out[i] = &cp
	}
	slices.SortFunc(out, func(a, b *datafile.Record) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (r *MemoryDataFileRepository) Update(ctx context.Context, rec *datafile.Record) error {
	old, err := r.store.Get(ctx, rec.ID)
	if errors.Is(err, memstore.ErrNotFound) {
		return fmt.Errorf("%w: %d", ErrNotFound, rec.ID)
	}
	if err != nil {
		return err
	}
	rec.CreatedAt = old.CreatedAt
	rec.ModifiedAt = r.now().UTC()
	cp := *rec
	if err := r.store.Replace(ctx, &cp); errors.Is(err, memstore.ErrNotFound) {
		return fmt.Errorf("%w: %d", ErrNotFound, rec.ID)
	}
	return nil
}

func (r *MemoryDataFileRepository) Delete(ctx context.Context, id int64) error {
	err := r.store.Delete(ctx, id)
	if errors.Is(err, memstore.ErrNotFound) {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return err
}
