// Package schedule fires recurring preview jobs from persisted definitions,
// either on a cron expression or a fixed interval.
package schedule
