package worker

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"previewd/internal/frames"
	"previewd/internal/jobs"
	"previewd/internal/logging"
	"previewd/internal/services"
	"previewd/internal/services/plex"
)

type fakeCatalog struct {
	libraries []plex.Library
	items     map[string][]plex.MediaItem
}

func (f *fakeCatalog) Libraries(context.Context) ([]plex.Library, error) {
	return f.libraries, nil
}

func (f *fakeCatalog) Items(_ context.Context, libraryID string) ([]plex.MediaItem, error) {
	return f.items[libraryID], nil
}

func poolCatalog(count int) *fakeCatalog {
	items := make([]plex.MediaItem, count)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range items {
		items[i] = plex.MediaItem{
			RatingKey:  fmt.Sprintf("rk-%d", i),
			Title:      fmt.Sprintf("Movie %d", i),
			File:       fmt.Sprintf("/media/movie-%d.mkv", i),
			BundleHash: fmt.Sprintf("%040d", i),
			AddedAt:    base.Add(time.Duration(i) * time.Hour),
		}
	}
	return &fakeCatalog{
		libraries: []plex.Library{{ID: "1", Name: "Movies", Type: "movie"}},
		items:     map[string][]plex.MediaItem{"1": items},
	}
}

func waitForStatus(t *testing.T, m *jobs.Manager, id string, want jobs.Status) *jobs.Snapshot {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		snap, err := m.Get(id)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if snap.Status == want {
			return snap
		}
		time.Sleep(5 * time.Millisecond)
	}
	snap, _ := m.Get(id)
	t.Fatalf("job never reached %s, stuck at %s", want, snap.Status)
	return nil
}

func TestPoolDrivesJobToCompletion(t *testing.T) {
	cfg := testConfig(t)
	cfg.Workers.AcceleratedThreads = 0
	cfg.Workers.StandardThreads = 2

	catalog := poolCatalog(5)
	m := jobs.NewManager(cfg, catalog, nil, logging.NewNop())
	t.Cleanup(m.Close)

	proc := NewProcessor(cfg, &fakeExtractor{frames: testFrames()}, logging.NewNop())
	pool := NewPool(cfg, m, nil, proc, logging.NewNop())
	pool.Start(context.Background())
	defer pool.Stop()

	snap, err := m.CreateJob(context.Background(), jobs.Selection{AllLibraries: true}, jobs.SortNewest, false)
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	final := waitForStatus(t, m, snap.ID, jobs.StatusCompleted)
	if final.CompletedItems != 5 {
		t.Fatalf("completed = %d, want 5", final.CompletedItems)
	}

	for _, item := range catalog.items["1"] {
		target, err := plex.BundleIndexPath(cfg.Paths.PlexConfigDir, item.BundleHash)
		if err != nil {
			t.Fatalf("BundleIndexPath: %v", err)
		}
		if _, err := os.Stat(target); err != nil {
			t.Fatalf("missing artifact for %s: %v", item.Title, err)
		}
	}
}

func TestPoolFailsJobOnFatalError(t *testing.T) {
	cfg := testConfig(t)
	cfg.Workers.AcceleratedThreads = 0
	cfg.Workers.StandardThreads = 1

	fatal := services.Wrap(services.ErrJobFatal, "plex", "get", "server unreachable", nil)
	extractor := &fakeExtractor{failures: []error{fatal, fatal, fatal, fatal}}

	m := jobs.NewManager(cfg, poolCatalog(4), nil, logging.NewNop())
	t.Cleanup(m.Close)

	pool := NewPool(cfg, m, nil, NewProcessor(cfg, extractor, logging.NewNop()), logging.NewNop())
	pool.Start(context.Background())
	defer pool.Stop()

	snap, err := m.CreateJob(context.Background(), jobs.Selection{AllLibraries: true}, jobs.SortNewest, false)
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	final := waitForStatus(t, m, snap.ID, jobs.StatusFailed)
	if final.Error == "" {
		t.Fatal("expected error message on failed job")
	}
	if final.CompletedItems != 0 {
		t.Fatalf("completed = %d, want 0", final.CompletedItems)
	}
}

func TestPoolStartRegistersSlotsSynchronously(t *testing.T) {
	cfg := testConfig(t)
	cfg.Workers.AcceleratedThreads = 0
	cfg.Workers.StandardThreads = 3

	m := jobs.NewManager(cfg, poolCatalog(0), nil, logging.NewNop())
	t.Cleanup(m.Close)

	pool := NewPool(cfg, m, nil, NewProcessor(cfg, &fakeExtractor{frames: testFrames()}, logging.NewNop()), logging.NewNop())
	pool.Start(context.Background())
	defer pool.Stop()

	// No polling: every slot must be visible the moment Start returns, or a
	// job created right after daemon startup would sit pending.
	if workers := m.Workers(); len(workers) != 3 {
		t.Fatalf("slots registered after Start = %d, want 3", len(workers))
	}
}

func TestFasterSlotTakesMoreItems(t *testing.T) {
	cfg := testConfig(t)
	cfg.Workers.AcceleratedThreads = 1
	cfg.Workers.StandardThreads = 1

	fast := &fakeExtractor{frames: testFrames(), delay: 3 * time.Millisecond, kind: frames.KindAccelerated}
	slow := &fakeExtractor{frames: testFrames(), delay: 6 * time.Millisecond}

	m := jobs.NewManager(cfg, poolCatalog(36), nil, logging.NewNop())
	t.Cleanup(m.Close)

	pool := NewPool(cfg, m,
		NewProcessor(cfg, fast, logging.NewNop()),
		NewProcessor(cfg, slow, logging.NewNop()),
		logging.NewNop())
	pool.Start(context.Background())
	defer pool.Stop()

	snap, err := m.CreateJob(context.Background(), jobs.Selection{AllLibraries: true}, jobs.SortNewest, false)
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	waitForStatus(t, m, snap.ID, jobs.StatusCompleted)

	fastItems, slowItems := fast.callCount(), slow.callCount()
	if fastItems+slowItems != 36 {
		t.Fatalf("extractor calls = %d+%d, want 36 total", fastItems, slowItems)
	}
	if fastItems <= slowItems {
		t.Fatalf("fast slot took %d items, slow took %d; shared feed should favor the faster slot", fastItems, slowItems)
	}
	// The 2x speed difference should show up as roughly a 2:1 split; allow
	// slack for scheduling noise but insist on at least 1.5:1.
	if fastItems*2 < slowItems*3 {
		t.Fatalf("fast/slow split = %d/%d, want at least 3:2", fastItems, slowItems)
	}
}

func TestPoolStopWaitsForSlots(t *testing.T) {
	cfg := testConfig(t)
	cfg.Workers.AcceleratedThreads = 0
	cfg.Workers.StandardThreads = 2

	m := jobs.NewManager(cfg, poolCatalog(1), nil, logging.NewNop())
	t.Cleanup(m.Close)

	pool := NewPool(cfg, m, nil, NewProcessor(cfg, &fakeExtractor{frames: testFrames()}, logging.NewNop()), logging.NewNop())
	pool.Start(context.Background())
	pool.Stop()

	if workers := m.Workers(); len(workers) != 0 {
		t.Fatalf("slots still registered after Stop: %v", workers)
	}
}
