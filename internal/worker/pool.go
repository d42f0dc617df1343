package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"previewd/internal/config"
	"previewd/internal/frames"
	"previewd/internal/jobs"
	"previewd/internal/logging"
	"previewd/internal/services"
)

// Pool runs the configured number of accelerated and standard worker slots.
// Every slot pulls from the manager's shared feed, so faster slots naturally
// take more items and no per-kind queue bookkeeping is needed.
type Pool struct {
	cfg     *config.Config
	manager *jobs.Manager
	logger  *slog.Logger

	accelerated *Processor
	standard    *Processor

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPool wires processors for both extractor kinds. Either processor may be
// nil when its thread count is zero.
func NewPool(cfg *config.Config, manager *jobs.Manager, accelerated, standard *Processor, logger *slog.Logger) *Pool {
	return &Pool{
		cfg:         cfg,
		manager:     manager,
		logger:      logging.NewComponentLogger(logger, "worker"),
		accelerated: accelerated,
		standard:    standard,
	}
}

// NewPoolFromConfig builds the pool with ffmpeg-backed extractors.
func NewPoolFromConfig(cfg *config.Config, manager *jobs.Manager, logger *slog.Logger) *Pool {
	var accelerated, standard *Processor
	if cfg.Workers.AcceleratedThreads > 0 {
		accelerated = NewProcessor(cfg, frames.NewAccelerated(cfg, logger), logger)
	}
	if cfg.Workers.StandardThreads > 0 {
		standard = NewProcessor(cfg, frames.NewStandard(cfg, logger), logger)
	}
	return NewPool(cfg, manager, accelerated, standard, logger)
}

// Start launches every slot. All slots are registered with the manager by
// the time Start returns, which releases any pending jobs.
func (p *Pool) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	if p.accelerated != nil {
		for i := 1; i <= p.cfg.Workers.AcceleratedThreads; i++ {
			p.launch(ctx, fmt.Sprintf("accelerated-%d", i), string(frames.KindAccelerated), p.accelerated)
		}
	}
	if p.standard != nil {
		for i := 1; i <= p.cfg.Workers.StandardThreads; i++ {
			p.launch(ctx, fmt.Sprintf("standard-%d", i), string(frames.KindStandard), p.standard)
		}
	}
}

// Stop halts all slots and waits for in-flight items to finish reporting.
func (p *Pool) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
}

func (p *Pool) launch(ctx context.Context, id, kind string, proc *Processor) {
	// Register before the goroutine starts so pending jobs are released as
	// soon as Start returns.
	p.manager.RegisterWorker(id, kind)
	p.logger.Info("worker slot started", logging.String(logging.FieldWorkerID, id))
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer p.manager.UnregisterWorker(id)
		p.run(ctx, id, proc)
	}()
}

func (p *Pool) run(ctx context.Context, id string, proc *Processor) {
	for {
		select {
		case <-ctx.Done():
			return
		case assignment := <-p.manager.Feed():
			p.handle(ctx, id, proc, assignment)
		}
	}
}

func (p *Pool) handle(ctx context.Context, id string, proc *Processor, assignment jobs.Assignment) {
	// The job may have been cancelled after this assignment left the feed.
	if !p.manager.ItemStarted(assignment.Job, assignment.Item, id) {
		return
	}

	started := time.Now()
	outcome, err := proc.Process(ctx, assignment.Item, assignment.Job.Regenerate())
	elapsed := time.Since(started)

	p.manager.ReportOutcome(assignment.Job, assignment.Item, outcome, elapsed, id, err)
	if err != nil && services.IsJobFatal(err) {
		p.manager.FailJob(assignment.Job, err)
	}
}
