package jobs

import (
	"sync"
	"time"
)

const (
	// etaSettleElapsed is the warm-up window before any estimate is offered;
	// early samples are dominated by cache effects and queue ramp-up.
	etaSettleElapsed = 5 * time.Minute
	// etaRecompute bounds how often the estimate is recalculated.
	etaRecompute = 3 * time.Second
)

// Estimator tracks per-item processing durations for one running job and
// projects a remaining-time estimate from their mean. Skipped items never
// contribute samples, so a mostly pre-generated library does not drag the
// estimate toward zero.
type Estimator struct {
	mu        sync.Mutex
	startedAt time.Time
	count     int
	totalDur  time.Duration

	cachedAt  time.Time
	cachedVal time.Duration
	cachedOK  bool

	now func() time.Time
}

// NewEstimator starts estimation for a job that began running at startedAt.
func NewEstimator(startedAt time.Time) *Estimator {
	return &Estimator{startedAt: startedAt, now: time.Now}
}

// AddSample records the wall-clock duration of one processed item.
func (e *Estimator) AddSample(d time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.count++
	e.totalDur += d
}

// Estimate projects the remaining time for the given number of unstarted
// items. It reports false while the job is too young for the mean to be
// meaningful. Results are cached briefly so hot status polling does not churn.
func (e *Estimator) Estimate(remaining int) (time.Duration, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	elapsed := now.Sub(e.startedAt)
	if elapsed < etaSettleElapsed || e.count == 0 {
		return 0, false
	}
	if remaining <= 0 {
		return 0, true
	}

	if e.cachedOK && now.Sub(e.cachedAt) < etaRecompute {
		return e.cachedVal, true
	}

	mean := e.totalDur / time.Duration(e.count)
	e.cachedVal = mean * time.Duration(remaining)
	e.cachedAt = now
	e.cachedOK = true
	return e.cachedVal, true
}
