package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"previewd/internal/logging"
	"previewd/internal/services"
	"previewd/internal/store"
)

// LaunchFunc starts the job a schedule describes. Launch failures are the
// launcher's to log; the scheduler keeps firing on its cadence regardless.
type LaunchFunc func(sched store.Schedule)

// Scheduler drives recurring preview jobs from persisted schedule
// definitions. Cron-expression schedules and fixed-interval schedules share
// one cron runner.
type Scheduler struct {
	store  *store.Store
	launch LaunchFunc
	logger *slog.Logger

	cron *cron.Cron

	mu      sync.Mutex
	entries map[int64]cron.EntryID
}

// New builds a scheduler over persisted schedules.
func New(st *store.Store, launch LaunchFunc, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		store:   st,
		launch:  launch,
		logger:  logging.NewComponentLogger(logger, "schedule"),
		cron:    cron.New(),
		entries: make(map[int64]cron.EntryID),
	}
}

// Start registers every enabled schedule and begins firing. A schedule whose
// cadence elapsed entirely while the daemon was down fires once immediately.
func (s *Scheduler) Start(ctx context.Context) error {
	schedules, err := s.store.ListSchedules(ctx)
	if err != nil {
		return err
	}
	for _, sched := range schedules {
		if !sched.Enabled {
			continue
		}
		if err := s.register(sched); err != nil {
			s.logger.Warn("skipping unschedulable entry",
				logging.String(logging.FieldSchedule, sched.Name), logging.Error(err))
			continue
		}
		if missedFire(sched, time.Now()) {
			s.logger.Info("firing schedule missed while stopped",
				logging.String(logging.FieldSchedule, sched.Name))
			go s.fire(sched)
		}
	}
	s.cron.Start()
	return nil
}

// Stop halts the cron runner and waits for running fire callbacks.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// Add validates, persists, and registers a new schedule.
func (s *Scheduler) Add(ctx context.Context, sched store.Schedule) error {
	if err := sched.Validate(); err != nil {
		return err
	}
	if sched.CronExpr != "" {
		if _, err := cron.ParseStandard(sched.CronExpr); err != nil {
			return services.Wrap(services.ErrValidation, "schedule", "add",
				fmt.Sprintf("bad cron expression %q", sched.CronExpr), err)
		}
	}
	if err := s.store.AddSchedule(ctx, &sched); err != nil {
		return err
	}
	if sched.Enabled {
		if err := s.register(sched); err != nil {
			return err
		}
	}
	s.logger.Info("schedule added", logging.String(logging.FieldSchedule, sched.Name))
	return nil
}

// Remove deletes a schedule and stops firing it.
func (s *Scheduler) Remove(ctx context.Context, name string) error {
	sched, err := s.store.GetSchedule(ctx, name)
	if err != nil {
		return err
	}
	if err := s.store.DeleteSchedule(ctx, name); err != nil {
		return err
	}
	s.unregister(sched.ID)
	s.logger.Info("schedule removed", logging.String(logging.FieldSchedule, name))
	return nil
}

// SetEnabled toggles a schedule, registering or unregistering it with the
// runner as needed.
func (s *Scheduler) SetEnabled(ctx context.Context, name string, enabled bool) error {
	sched, err := s.store.GetSchedule(ctx, name)
	if err != nil {
		return err
	}
	if err := s.store.SetScheduleEnabled(ctx, name, enabled); err != nil {
		return err
	}
	if enabled {
		sched.Enabled = true
		return s.register(*sched)
	}
	s.unregister(sched.ID)
	return nil
}

// RunNow fires a schedule immediately, outside its cadence.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	sched, err := s.store.GetSchedule(ctx, name)
	if err != nil {
		return err
	}
	go s.fire(*sched)
	return nil
}

// List returns every persisted schedule.
func (s *Scheduler) List(ctx context.Context) ([]store.Schedule, error) {
	return s.store.ListSchedules(ctx)
}

func (s *Scheduler) register(sched store.Schedule) error {
	var (
		entryID cron.EntryID
		err     error
	)
	run := func() { s.fire(sched) }
	if sched.CronExpr != "" {
		entryID, err = s.cron.AddFunc(sched.CronExpr, run)
		if err != nil {
			return services.Wrap(services.ErrValidation, "schedule", "register",
				fmt.Sprintf("bad cron expression %q", sched.CronExpr), err)
		}
	} else {
		entryID = s.cron.Schedule(cron.Every(time.Duration(sched.IntervalMinutes)*time.Minute), cron.FuncJob(run))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.entries[sched.ID]; ok {
		s.cron.Remove(old)
	}
	s.entries[sched.ID] = entryID
	return nil
}

func (s *Scheduler) unregister(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entryID, ok := s.entries[id]; ok {
		s.cron.Remove(entryID)
		delete(s.entries, id)
	}
}

func (s *Scheduler) fire(sched store.Schedule) {
	s.logger.Info("schedule fired", logging.String(logging.FieldSchedule, sched.Name))
	s.launch(sched)
	if err := s.store.MarkScheduleRun(context.Background(), sched.ID, time.Now()); err != nil {
		s.logger.Warn("failed to record schedule run",
			logging.String(logging.FieldSchedule, sched.Name), logging.Error(err))
	}
}

// missedFire reports whether a schedule's next fire after its last recorded
// run already passed while the daemon was stopped. Schedules that never ran
// wait for their first regular fire.
func missedFire(sched store.Schedule, now time.Time) bool {
	if sched.LastRunAt.IsZero() {
		return false
	}
	if sched.CronExpr != "" {
		parsed, err := cron.ParseStandard(sched.CronExpr)
		if err != nil {
			return false
		}
		return parsed.Next(sched.LastRunAt).Before(now)
	}
	interval := time.Duration(sched.IntervalMinutes) * time.Minute
	return now.Sub(sched.LastRunAt) > interval
}
