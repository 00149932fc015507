// Package prune runs the periodic sweep that deletes UploadSessions (and,
// by cascade, their Records) once they age past the retention horizon.
package prune

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/recordkeeper/api/internal/db"
	"github.com/recordkeeper/api/internal/events"
	"github.com/recordkeeper/api/internal/logger"
)

// batchSize bounds each delete statement so a single tick never holds a
// long-running lock over the whole table.
const batchSize = 500

// Job is the cron-scheduled retention sweep.
type Job struct {
	uploadSessionDB *db.UploadSessionDB
	publisher       *events.Publisher
	retention       time.Duration
	timeout         time.Duration

	cron *cron.Cron
}

// NewJob builds a Job that deletes sessions older than retention, bounding
// each tick by timeout. It does not start running until Start is called.
func NewJob(uploadSessionDB *db.UploadSessionDB, publisher *events.Publisher, runInterval time.Duration, timeout time.Duration, retention time.Duration) *Job {
	c := cron.New(cron.WithChain(
		cron.Recover(cronLogger{}),
		cron.SkipIfStillRunning(cronLogger{}),
	))

	job := &Job{
		uploadSessionDB: uploadSessionDB,
		publisher:       publisher,
		retention:       retention,
		timeout:         timeout,
		cron:            c,
	}

	spec := fmt.Sprintf("@every %ds", int(runInterval.Seconds()))
	if _, err := c.AddFunc(spec, job.runOnce); err != nil {
		// Only reachable if runInterval produces a malformed cron spec,
		// which a positive integer second count never does.
		panic(fmt.Sprintf("prune: invalid schedule %q: %v", spec, err))
	}
	return job
}

// Start begins the scheduler in the background. Stop must be called to
// drain a run in flight before shutdown.
func (j *Job) Start() {
	j.cron.Start()
}

// Stop blocks until any in-flight tick finishes, then stops the scheduler.
func (j *Job) Stop() {
	<-j.cron.Stop().Done()
}

func (j *Job) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	cutoff := time.Now().Add(-j.retention)
	var total int64
	for {
		n, err := j.uploadSessionDB.DeleteUploadSessionsOlderThan(ctx, cutoff, batchSize)
		if err != nil {
			logger.Prune().Error().Err(err).Msg("prune batch failed")
			return
		}
		total += n
		if n < batchSize || ctx.Err() != nil {
			break
		}
	}

	logger.Prune().Info().Int64("count", total).Time("cutoff", cutoff).Msg("prune sweep complete")
	if total > 0 {
		j.publisher.Publish(events.UploadSessionsPruned{Count: total, Cutoff: cutoff.Format(time.RFC3339)})
	}
}

// cronLogger adapts the structured component logger to cron.Logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	logger.Prune().Info().Fields(keysAndValues).Msg(msg)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	logger.Prune().Error().Err(err).Fields(keysAndValues).Msg(msg)
}
