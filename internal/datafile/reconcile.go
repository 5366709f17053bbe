package datafile

import (
	"context"
	"fmt"
)

// Lookup resolves an existing record by id.
type Lookup func(ctx context.Context, id int64) (*Record, error)

// Reconcile turns an incoming descriptor into the record to persist.
//
// A descriptor without an id (or id 0) yields a new record and performs no
// lookup. Any other id must resolve through lookup; the resolved record is
// copied and only its path, comments and creator are replaced. Reconcile
// never persists anything.
func Reconcile(ctx context.Context, lookup Lookup, in *Descriptor) (*Record, error) {
	if in == nil {
		return nil, fmt.Errorf("reconcile: nil descriptor")
	}
	if in.ID == 0 {
		return FromDescriptor(in), nil
	}

	existing, err := lookup(ctx, in.ID)
	if err != nil {
		return nil, fmt.Errorf("reconcile data file %d: %w", in.ID, err)
	}
	if existing == nil {
		return nil, fmt.Errorf("reconcile data file %d: %w", in.ID, ErrNotFound)
	}

	rec := *existing
	rec.Comments = in.Comments
	rec.Path = in.Name
	rec.Creator = in.Creator
	return &rec, nil
}
