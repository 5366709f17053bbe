package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soochol/datafiles/internal/datafile"
	"github.com/soochol/datafiles/internal/repository"
	"github.com/soochol/datafiles/internal/storage"
	"github.com/soochol/datafiles/internal/upload"
)

// sharedDB stands in for one PostgreSQL database used by several replicas.
type sharedDB struct {
	mu      sync.Mutex
	records map[int64]datafile.Record
	nextID  int64
	listErr error
}

func newSharedDB() *sharedDB {
	return &sharedDB{records: make(map[int64]datafile.Record)}
}

func (db *sharedDB) CreateDataFile(_ context.Context, rec *datafile.Record) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.nextID++
	rec.ID = db.nextID
	db.records[rec.ID] = *rec
	return nil
}

func (db *sharedDB) GetDataFile(_ context.Context, id int64) (*datafile.Record, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	rec, ok := db.records[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", datafile.ErrNotFound, id)
	}
	return &rec, nil
}

func (db *sharedDB) ListDataFiles(_ context.Context) ([]*datafile.Record, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.listErr != nil {
		return nil, db.listErr
	}
	out := make([]*datafile.Record, 0, len(db.records))
	for _, rec := range db.records {
		out = append(out, &rec)
	}
	return out, nil
}

func (db *sharedDB) UpdateDataFile(_ context.Context, rec *datafile.Record) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if _, ok := db.records[rec.ID]; !ok {
		return fmt.Errorf("%w: %d", datafile.ErrNotFound, rec.ID)
	}
	db.records[rec.ID] = *rec
	return nil
}

func (db *sharedDB) DeleteDataFile(_ context.Context, id int64) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if _, ok := db.records[id]; !ok {
		return fmt.Errorf("%w: %d", datafile.ErrNotFound, id)
	}
	delete(db.records, id)
	return nil
}

func TestReplicas_SeeContentReplacedElsewhere(t *testing.T) {
	ctx := context.Background()
	store, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	db := newSharedDB()
	classify := datafile.ExtensionClassifier(".csv")
	a := NewDataFileService(repository.NewPersistentDataFileRepository(db), store, classify)
	b := NewDataFileService(repository.NewPersistentDataFileRepository(db), store, classify)

	created, err := a.Save(ctx, []upload.Part{jsonPart(`{"name":"a.csv"}`), binPart("v1\n")})
	require.NoError(t, err)

	// b reads the record, then a replaces its content.
	got, err := b.Get(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	_, err = a.Save(ctx, []upload.Part{
		jsonPart(fmt.Sprintf(`{"id":%d,"name":"a.csv"}`, created.ID)),
		binPart("v2\n"),
	})
	require.NoError(t, err)

	c, err := b.Open(ctx, created.ID)
	require.NoError(t, err)
	var sb strings.Builder
	_, err = c.Stream(&sb, 0, -1)
	require.NoError(t, err)
	assert.Equal(t, "v2\n", sb.String())

	// A metadata-only update on b keeps the current content key.
	_, err = b.Save(ctx, []upload.Part{
		jsonPart(fmt.Sprintf(`{"id":%d,"name":"a.csv","comments":"from b"}`, created.ID)),
	})
	require.NoError(t, err)
	rec, err := db.GetDataFile(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "from b", rec.Comments)
	body, err := store.Open(ctx, rec.StorageKey)
	require.NoError(t, err)
	body.Close()
}

func TestSweeper_SkipsRunWhenRecordsUnavailable(t *testing.T) {
	ctx := context.Background()
	store, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	db := newSharedDB()
	db.records[1] = datafile.Record{ID: 1, Path: "a.csv", StorageKey: "live-key"}
	db.nextID = 1
	_, err = store.Put(ctx, "live-key", strings.NewReader("kept"))
	require.NoError(t, err)

	// A fresh replica: nothing has been read through it yet.
	sw := NewSweeper(repository.NewPersistentDataFileRepository(db), store)
	outage := errors.New("connection refused")
	db.listErr = outage

	for i := 0; i < 2; i++ {
		removed, err := sw.Sweep(ctx)
		require.ErrorIs(t, err, outage)
		assert.Zero(t, removed)
	}

	body, err := store.Open(ctx, "live-key")
	require.NoError(t, err)
	body.Close()

	// Once the database is back the key is still referenced.
	db.listErr = nil
	for i := 0; i < 2; i++ {
		removed, err := sw.Sweep(ctx)
		require.NoError(t, err)
		assert.Zero(t, removed)
	}
}
