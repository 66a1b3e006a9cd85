package task

import (
	"sync"
	"time"

	"github.com/golang/glog"
)

// Runner is one unit of recurring work, e.g. a cache expiry sweep.
type Runner interface {
	Run() error
}

// RunnerFunc adapts a plain function to the Runner interface.
type RunnerFunc func() error

func (f RunnerFunc) Run() error {
	return f()
}

// TickerTask executes a Runner at a fixed interval until stopped. Errors from
// the runner are logged and do not stop the schedule.
type TickerTask struct {
	interval time.Duration
	runner   Runner
	done     chan struct{}
	stopOnce sync.Once
}

func NewTickerTask(interval time.Duration, runner Runner) *TickerTask {
	return &TickerTask{
		interval: interval,
		runner:   runner,
		done:     make(chan struct{}),
	}
}

// Start schedules the task to run periodically. A non-positive interval
// disables the schedule entirely.
func (t *TickerTask) Start() {
	if t.interval <= 0 {
		return
	}
	go t.runRecurring()
}

// Stop halts the periodic task. It is safe to call on a nil task and more
// than once; the runner keeps whatever state it holds.
func (t *TickerTask) Stop() {
	if t == nil {
		return
	}
	t.stopOnce.Do(func() {
		close(t.done)
	})
}

// Done exposes the readonly done channel.
func (t *TickerTask) Done() <-chan struct{} {
	return t.done
}

func (t *TickerTask) runRecurring() {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := t.runner.Run(); err != nil {
				glog.Warningf("recurring task failed: %v", err)
			}
		case <-t.done:
			return
		}
	}
}
