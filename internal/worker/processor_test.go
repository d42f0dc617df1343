package worker

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"previewd/internal/bif"
	"previewd/internal/config"
	"previewd/internal/frames"
	"previewd/internal/jobs"
	"previewd/internal/logging"
	"previewd/internal/services"
)

type fakeExtractor struct {
	mu       sync.Mutex
	calls    int
	failures []error
	frames   []bif.Frame
	delay    time.Duration
	kind     frames.Kind
}

func (f *fakeExtractor) Extract(ctx context.Context, _ string, _ time.Duration) ([]bif.Frame, error) {
	f.mu.Lock()
	f.calls++
	var err error
	if len(f.failures) > 0 {
		err = f.failures[0]
		f.failures = f.failures[1:]
	}
	result := f.frames
	delay := f.delay
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (f *fakeExtractor) Kind() frames.Kind {
	if f.kind != "" {
		return f.kind
	}
	return frames.KindStandard
}

func (f *fakeExtractor) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func testFrames() []bif.Frame {
	return []bif.Frame{
		{Timestamp: 0, Data: []byte("jpeg-0")},
		{Timestamp: 10 * time.Second, Data: []byte("jpeg-1")},
	}
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Paths.PlexConfigDir = t.TempDir()
	cfg.Paths.TmpDir = t.TempDir()
	return &cfg
}

func testItem(t *testing.T) *jobs.Item {
	t.Helper()
	return &jobs.Item{
		Source: "/media/movie.mkv",
		Target: filepath.Join(t.TempDir(), "bundle", "Contents", "Indexes", "index-sd.bif"),
		Title:  "Movie",
	}
}

func TestProcessWritesDecodableArtifact(t *testing.T) {
	extractor := &fakeExtractor{frames: testFrames()}
	proc := NewProcessor(testConfig(t), extractor, logging.NewNop())
	item := testItem(t)

	outcome, err := proc.Process(context.Background(), item, false)
	if err != nil || outcome != jobs.OutcomeCompleted {
		t.Fatalf("Process = %s/%v", outcome, err)
	}

	file, err := os.Open(item.Target)
	if err != nil {
		t.Fatalf("artifact missing: %v", err)
	}
	defer file.Close()
	decoded, interval, err := bif.Decode(file)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(decoded) != 2 || interval != 10*time.Second {
		t.Fatalf("decoded %d frames at interval %v", len(decoded), interval)
	}

	// No tmp leftovers beside the artifact.
	entries, err := os.ReadDir(filepath.Dir(item.Target))
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected only the artifact, found %d entries", len(entries))
	}
}

func TestProcessSkipsFreshArtifact(t *testing.T) {
	extractor := &fakeExtractor{frames: testFrames()}
	proc := NewProcessor(testConfig(t), extractor, logging.NewNop())
	item := testItem(t)

	if err := os.MkdirAll(filepath.Dir(item.Target), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(item.Target, []byte("existing"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	outcome, err := proc.Process(context.Background(), item, false)
	if err != nil || outcome != jobs.OutcomeSkipped {
		t.Fatalf("Process = %s/%v, want skipped", outcome, err)
	}
	if extractor.callCount() != 0 {
		t.Fatalf("extractor invoked %d times for a skip", extractor.callCount())
	}
}

func TestProcessRegenerateOverwrites(t *testing.T) {
	extractor := &fakeExtractor{frames: testFrames()}
	proc := NewProcessor(testConfig(t), extractor, logging.NewNop())
	item := testItem(t)

	if err := os.MkdirAll(filepath.Dir(item.Target), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(item.Target, []byte("stale"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	outcome, err := proc.Process(context.Background(), item, true)
	if err != nil || outcome != jobs.OutcomeCompleted {
		t.Fatalf("Process = %s/%v, want completed", outcome, err)
	}
	if extractor.callCount() != 1 {
		t.Fatalf("extractor calls = %d", extractor.callCount())
	}
}

func TestProcessRetriesTransientOnce(t *testing.T) {
	old := retryDelay
	retryDelay = time.Millisecond
	defer func() { retryDelay = old }()

	transient := services.Wrap(services.ErrTransient, "frames", "extract", "busy", nil)
	extractor := &fakeExtractor{failures: []error{transient}, frames: testFrames()}
	proc := NewProcessor(testConfig(t), extractor, logging.NewNop())

	outcome, err := proc.Process(context.Background(), testItem(t), false)
	if err != nil || outcome != jobs.OutcomeCompleted {
		t.Fatalf("Process = %s/%v, want completed after retry", outcome, err)
	}
	if extractor.callCount() != 2 {
		t.Fatalf("extractor calls = %d, want 2", extractor.callCount())
	}
}

func TestProcessTransientTwiceFailsItem(t *testing.T) {
	old := retryDelay
	retryDelay = time.Millisecond
	defer func() { retryDelay = old }()

	transient := services.Wrap(services.ErrTransient, "frames", "extract", "busy", nil)
	extractor := &fakeExtractor{failures: []error{transient, transient}}
	proc := NewProcessor(testConfig(t), extractor, logging.NewNop())

	outcome, err := proc.Process(context.Background(), testItem(t), false)
	if outcome != jobs.OutcomeFailed || !services.IsTransient(err) {
		t.Fatalf("Process = %s/%v, want failed/transient", outcome, err)
	}
	if extractor.callCount() != 2 {
		t.Fatalf("extractor calls = %d, want 2", extractor.callCount())
	}
}

func TestProcessPermanentFailureNoRetry(t *testing.T) {
	permanent := services.Wrap(services.ErrItemProcessing, "frames", "extract", "corrupt file", nil)
	extractor := &fakeExtractor{failures: []error{permanent}}
	proc := NewProcessor(testConfig(t), extractor, logging.NewNop())
	item := testItem(t)

	outcome, err := proc.Process(context.Background(), item, false)
	if outcome != jobs.OutcomeFailed || err == nil {
		t.Fatalf("Process = %s/%v, want failed", outcome, err)
	}
	if extractor.callCount() != 1 {
		t.Fatalf("extractor calls = %d, want 1", extractor.callCount())
	}
	if _, statErr := os.Stat(item.Target); !os.IsNotExist(statErr) {
		t.Fatal("failed item must not leave an artifact behind")
	}
}
