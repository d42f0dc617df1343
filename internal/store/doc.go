// Package store provides SQLite persistence for the pieces of daemon state
// that must survive a restart: recurring schedule definitions, received
// import notifications, and the results of finished jobs.
package store
