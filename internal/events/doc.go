// Package events carries job status changes from the job runner to anyone
// watching a job.
//
// The runner emits a JobEvent each time a job changes status. The emitter
// fans the event out to registered handlers; the Hub handler forwards events
// to per-job subscribers such as websocket connections.
package events
