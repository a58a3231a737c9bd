// Package events publishes email delivery outcomes to external consumers.
// Events are emitted best-effort through a bounded asynchronous queue: a slow
// or unavailable sink never blocks or fails the delivery worker, it only
// drops events.
package events
