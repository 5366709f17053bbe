package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/soochol/datafiles/internal/datafile"
)

const dataFileColumns = `id, path, comments, creator, storage_key, size, created_at, modified_at`

// CreateDataFile inserts rec and fills in the generated id and timestamps.
func (d *DB) CreateDataFile(ctx context.Context, rec *datafile.Record) error {
	err := d.Pool.QueryRowContext(ctx,
		`INSERT INTO data_files (path, comments, creator, storage_key, size)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at, modified_at`,
		rec.Path, rec.Comments, rec.Creator, rec.StorageKey, rec.Size,
	).Scan(&rec.ID, &rec.CreatedAt, &rec.ModifiedAt)
	if err != nil {
		return fmt.Errorf("insert data file: %w", err)
	}
	return nil
}

func (d *DB) GetDataFile(ctx context.Context, id int64) (*datafile.Record, error) {
	row := d.Pool.QueryRowContext(ctx,
		`SELECT `+dataFileColumns+` FROM data_files WHERE id = $1`, id,
	)
	rec, err := scanDataFile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", datafile.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get data file: %w", err)
	}
	return rec, nil
}

func (d *DB) ListDataFiles(ctx context.Context) ([]*datafile.Record, error) {
	rows, err := d.Pool.QueryContext(ctx,
		`SELECT `+dataFileColumns+` FROM data_files ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("list data files: %w", err)
	}
	defer rows.Close()

	var result []*datafile.Record
	for rows.Next() {
		rec, err := scanDataFile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan data file: %w", err)
		}
		result = append(result, rec)
	}
	return result, rows.Err()
}

// UpdateDataFile rewrites the mutable columns of rec and refreshes modified_at.
func (d *DB) UpdateDataFile(ctx context.Context, rec *datafile.Record) error {
	err := d.Pool.QueryRowContext(ctx,
		`UPDATE data_files
		 SET path=$1, comments=$2, creator=$3, storage_key=$4, size=$5, modified_at=NOW()
		 WHERE id=$6
		 RETURNING created_at, modified_at`,
		rec.Path, rec.Comments, rec.Creator, rec.StorageKey, rec.Size, rec.ID,
	).Scan(&rec.CreatedAt, &rec.ModifiedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %d", datafile.ErrNotFound, rec.ID)
	}
	if err != nil {
		return fmt.Errorf("update data file: %w", err)
	}
	return nil
}

func (d *DB) DeleteDataFile(ctx context.Context, id int64) error {
	res, err := d.Pool.ExecContext(ctx, `DELETE FROM data_files WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete data file: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete data file: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %d", datafile.ErrNotFound, id)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDataFile(s rowScanner) (*datafile.Record, error) {
	rec := &datafile.Record{}
	err := s.Scan(&rec.ID, &rec.Path, &rec.Comments, &rec.Creator, &rec.StorageKey,
		&rec.Size, &rec.CreatedAt, &rec.ModifiedAt)
	if err != nil {
		return nil, err
	}
	return rec, nil
}
