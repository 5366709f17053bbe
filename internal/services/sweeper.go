package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/soochol/datafiles/internal/metrics"
	"github.com/soochol/datafiles/internal/repository"
	"github.com/soochol/datafiles/internal/storage"
)

// staleTempAge is how long a content store scratch file may sit unwritten
// before the sweeper treats it as left over from a crashed save.
const staleTempAge = time.Hour

// Sweeper removes content blobs that no record references. A blob is only
// removed once it has been unreferenced on two consecutive runs, which leaves
// room for a save that has written its content but not yet its record.
type Sweeper struct {
	repo  repository.DataFileRepository
	store storage.ContentStore
	cron  *cron.Cron

	mu       sync.Mutex
	suspects map[string]struct{}
}

func NewSweeper(repo repository.DataFileRepository, store storage.ContentStore) *Sweeper {
	return &Sweeper{
		repo:     repo,
		store:    store,
		cron:     cron.New(),
		suspects: make(map[string]struct{}),
	}
}

// Start schedules Sweep with a standard cron expression or descriptor such
// as "@hourly". An empty schedule leaves the sweeper disabled.
func (s *Sweeper) Start(ctx context.Context, schedule string) error {
	if schedule == "" {
		slog.Info("sweeper: disabled")
		return nil
	}
	_, err := s.cron.AddFunc(schedule, func() {
		if _, err := s.Sweep(ctx); err != nil {
			slog.Warn("sweeper: run failed", "err", err)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule sweeper %q: %w", schedule, err)
	}
	s.cron.Start()
	slog.Info("sweeper: started", "schedule", schedule)
	return nil
}

// Stop halts scheduling and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}

// Sweep runs one pass and returns the number of blobs removed.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Keys are listed before records: a blob whose record lands in between
	// shows up as referenced.
	keys, err := s.store.Keys(ctx)
	if err != nil {
		return 0, fmt.Errorf("list content keys: %w", err)
	}
	recs, err := s.repo.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list records: %w", err)
	}
	referenced := make(map[string]struct{}, len(recs))
	for _, rec := range recs {
		referenced[rec.StorageKey] = struct{}{}
	}

	removed := 0
	next := make(map[string]struct{})
	for _, key := range keys {
		if _, ok := referenced[key]; ok {
			continue
		}
		if _, seen := s.suspects[key]; !seen {
			next[key] = struct{}{}
			continue
		}
		if err := s.store.Delete(ctx, key); err != nil {
			slog.Warn("sweeper: delete orphan failed", "key", key, "err", err)
			next[key] = struct{}{}
			continue
		}
		removed++
	}
	s.suspects = next

	if sc, ok := s.store.(storage.StaleCleaner); ok {
		n, err := sc.RemoveStale(ctx, staleTempAge)
		if err != nil {
			slog.Warn("sweeper: remove stale temp files failed", "err", err)
		}
		if n > 0 {
			slog.Info("sweeper: removed stale temp files", "count", n)
		}
	}

	metrics.RecordSwept(removed)
	if removed > 0 || len(next) > 0 {
		slog.Info("sweeper: pass complete", "removed", removed, "pending", len(next))
	}
	return removed, nil
}
