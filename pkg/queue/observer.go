package queue

import "go.uber.org/zap"

// Observer is notified synchronously by a worker whenever a job reaches a
// settled outcome. Implementations must be fast and non-blocking; anything
// expensive belongs behind its own queue (see pkg/events).
type Observer interface {
	// JobCompleted is invoked after a job transitions to completed.
	JobCompleted(job *Job)
	// JobFailed is invoked after a job settles an attempt with an error.
	// terminal reports whether the failure was permanent or a retry has been
	// scheduled.
	JobFailed(job *Job, err error, terminal bool)
}

// LoggingObserver logs job outcomes. The registry attaches one to every
// worker it creates.
type LoggingObserver struct {
	Log *zap.SugaredLogger
}

func (o LoggingObserver) JobCompleted(job *Job) {
	o.Log.Infow("job completed", "jobID", job.ID, "queue", job.Queue, "type", job.Type, "attempts", job.Attempts)
}

func (o LoggingObserver) JobFailed(job *Job, err error, terminal bool) {
	if terminal {
		o.Log.Errorw("job failed permanently", "jobID", job.ID, "queue", job.Queue, "type", job.Type, "attempts", job.Attempts, "error", err)
		return
	}
	o.Log.Warnw("job attempt failed, retry scheduled", "jobID", job.ID, "queue", job.Queue, "type", job.Type, "attempts", job.Attempts, "error", err)
}
