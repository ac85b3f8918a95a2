package service

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync"
)

// Dispatcher runs mutation jobs in background goroutines. Jobs are
// detached from the request context: an HTTP request that started a
// build returns immediately while the build keeps running. Shutdown
// waits for in-flight jobs.
type Dispatcher struct {
	logger *slog.Logger
	wg     sync.WaitGroup
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{logger: logger}
}

// Dispatch runs job in a new goroutine under a fresh background
// context. A panic in the job is recovered and logged; the job's own
// error handling is expected to have recorded failure state already.
func (d *Dispatcher) Dispatch(name string, job func(ctx context.Context)) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				d.logger.Error("background job panicked",
					slog.String("job", name),
					slog.Any("panic", r),
					slog.String("stack", string(debug.Stack())),
				)
			}
		}()
		d.logger.Debug("background job started", slog.String("job", name))
		job(context.Background())
		d.logger.Debug("background job finished", slog.String("job", name))
	}()
}

// Shutdown blocks until every dispatched job has finished or ctx is done.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
