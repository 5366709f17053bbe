package repository

import (
	"context"

	"github.com/soochol/datafiles/internal/datafile"
)

// ErrNotFound is returned for unknown data file ids. It is datafile.ErrNotFound
// so callers can match on either.
var ErrNotFound = datafile.ErrNotFound

// DataFileRepository stores data file records.
type DataFileRepository interface {
	// Create assigns rec.ID and the creation timestamps.
	Create(ctx context.Context, rec *datafile.Record) error
	Get(ctx context.Context, id int64) (*datafile.Record, error)
	List(ctx context.Context) ([]*datafile.Record, error)
	// Update replaces the record with rec.ID and refreshes ModifiedAt.
	Update(ctx context.Context, rec *datafile.Record) error
	Delete(ctx context.Context, id int64) error
}
