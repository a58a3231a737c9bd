// Package queue implements the durable job-queue layer for tripmailer on top
// of a Redis broker: named queues with priority/delay/retry semantics, named
// workers with bounded concurrency and optional rate limiting, and a
// process-wide registry that owns both and coordinates ordered shutdown.
package queue
