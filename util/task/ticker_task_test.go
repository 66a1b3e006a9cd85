package task

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTickerTaskRunsOnInterval(t *testing.T) {
	var runs int64
	task := NewTickerTask(5*time.Millisecond, RunnerFunc(func() error {
		atomic.AddInt64(&runs, 1)
		return nil
	}))

	task.Start()
	time.Sleep(40 * time.Millisecond)
	task.Stop()

	assert.GreaterOrEqual(t, atomic.LoadInt64(&runs), int64(2), "runner should have executed at least twice")
}

func TestTickerTaskDisabledInterval(t *testing.T) {
	var runs int64
	task := NewTickerTask(0, RunnerFunc(func() error {
		atomic.AddInt64(&runs, 1)
		return nil
	}))

	task.Start()
	time.Sleep(20 * time.Millisecond)

	assert.Equal(t, int64(0), atomic.LoadInt64(&runs), "disabled task should never run")
}

func TestTickerTaskStop(t *testing.T) {
	task := NewTickerTask(time.Hour, RunnerFunc(func() error { return nil }))
	task.Start()
	task.Stop()

	select {
	case <-task.Done():
	case <-time.After(time.Second):
		t.Fatal("done channel not closed after Stop")
	}
}

func TestTickerTaskStopIdempotent(t *testing.T) {
	task := NewTickerTask(time.Hour, RunnerFunc(func() error { return nil }))
	task.Start()

	assert.NotPanics(t, func() {
		task.Stop()
		task.Stop()
	})

	var unused *TickerTask
	assert.NotPanics(t, func() { unused.Stop() })
}
