// Package job runs transcriptions asynchronously.
//
// Uploads are spooled to disk and recorded as pending jobs in a
// store.JobStore. A Runner feeds job IDs through a bounded queue to a fixed
// set of workers, recovers unfinished jobs at start-up, and periodically
// requeues jobs that have been processing for too long. Every status change
// is published through an events.EventEmitter.
package job
