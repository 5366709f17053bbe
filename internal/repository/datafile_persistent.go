package repository

import (
	"context"
	"fmt"

	"github.com/soochol/datafiles/internal/datafile"
)

// DataFileDB defines the DB-layer methods needed by the persistent data file repo.
// *db.DB satisfies this interface.
type DataFileDB interface {
	CreateDataFile(ctx context.Context, rec *datafile.Record) error
	GetDataFile(ctx context.Context, id int64) (*datafile.Record, error)
	ListDataFiles(ctx context.Context) ([]*datafile.Record, error)
	UpdateDataFile(ctx context.Context, rec *datafile.Record) error
	DeleteDataFile(ctx context.Context, id int64) error
}

// PersistentDataFileRepository keeps records in PostgreSQL. Reads always go
// to the database, so a content key replaced by another replica is never
// served stale. List either returns every record or an error; the sweeper
// relies on it being complete.
type PersistentDataFileRepository struct {
	db DataFileDB
}

func NewPersistentDataFileRepository(db DataFileDB) *PersistentDataFileRepository {
	return &PersistentDataFileRepository{db: db}
}

func (r *PersistentDataFileRepository) Create(ctx context.Context, rec *datafile.Record) error {
	if err := r.db.CreateDataFile(ctx, rec); err != nil {
		return fmt.Errorf("db create data file: %w", err)
	}
	return nil
}

func (r *PersistentDataFileRepository) Get(ctx context.Context, id int64) (*datafile.Record, error) {
	rec, err := r.db.GetDataFile(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("db get data file: %w", err)
	}
	return rec, nil
}

func (r *PersistentDataFileRepository) List(ctx context.Context) ([]*datafile.Record, error) {
	recs, err := r.db.ListDataFiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("db list data files: %w", err)
	}
	return recs, nil
}

func (r *PersistentDataFileRepository) Update(ctx context.Context, rec *datafile.Record) error {
	if err := r.db.UpdateDataFile(ctx, rec); err != nil {
		return fmt.Errorf("db update data file: %w", err)
	}
	return nil
}

func (r *PersistentDataFileRepository) Delete(ctx context.Context, id int64) error {
	if err := r.db.DeleteDataFile(ctx, id); err != nil {
		return fmt.Errorf("db delete data file: %w", err)
	}
	return nil
}
