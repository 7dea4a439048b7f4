// Package scheduler runs the periodic market scans served by the API.
package scheduler

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	"agro-trader/pkg/logging"
)

// Runner wraps a cron scheduler whose jobs share a base context that is
// cancelled on Stop
type Runner struct {
	cron    *cron.Cron
	logger  *logging.StructuredLogger
	baseCtx context.Context
	cancel  context.CancelFunc
}

// New creates a runner. Overlapping runs of the same job are skipped and a
// panicking job is logged rather than crashing the process.
func New(baseCtx context.Context, logger *logging.StructuredLogger) *Runner {
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(baseCtx)
	cl := cronLogger{logger: logger}
	return &Runner{
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		logger:  logger,
		baseCtx: ctx,
		cancel:  cancel,
	}
}

// Add schedules job under spec, which accepts standard five-field
// expressions and descriptors such as "@every 30m"
func (r *Runner) Add(name, spec string, job func(context.Context)) (cron.EntryID, error) {
	id, err := r.cron.AddFunc(spec, func() {
		r.logger.Debug(r.baseCtx, "[CRON_JOB_START] Running scheduled job", logging.Fields{"job": name})
		job(r.baseCtx)
	})
	if err != nil {
		return 0, fmt.Errorf("invalid schedule %q for %s: %w", spec, name, err)
	}
	r.logger.Info(r.baseCtx, "[CRON_JOB_ADDED] Job scheduled", logging.Fields{
		"job":      name,
		"schedule": spec,
	})
	return id, nil
}

// Start runs the scheduler in its own goroutine
func (r *Runner) Start() {
	r.logger.Info(r.baseCtx, "[CRON_STARTED] Scheduler started", logging.Fields{
		"jobs": len(r.cron.Entries()),
	})
	r.cron.Start()
}

// Stop cancels running jobs and waits for them to return
func (r *Runner) Stop() {
	r.cancel()
	<-r.cron.Stop().Done()
	r.logger.Info(context.Background(), "[CRON_STOPPED] Scheduler stopped", nil)
}

// cronLogger adapts StructuredLogger to cron.Logger
type cronLogger struct {
	logger *logging.StructuredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(context.Background(), "[CRON] "+msg, kvFields(keysAndValues))
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(context.Background(), "[CRON] "+msg, kvFields(keysAndValues), err)
}

func kvFields(kv []interface{}) logging.Fields {
	fields := make(logging.Fields, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		fields[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return fields
}
