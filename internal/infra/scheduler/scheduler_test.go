//go:build !integration

package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type countingJob struct {
	runs int32
	err  error
}

func (j *countingJob) Name() string { return "counting" }
func (j *countingJob) Run(ctx context.Context) error {
	atomic.AddInt32(&j.runs, 1)
	return j.err
}

func TestScheduler_RunsImmediatelyAndPeriodically(t *testing.T) {
	job := &countingJob{err: errors.New("ignored")}
	s := NewScheduler(10*time.Millisecond, job, nil)
	s.Start(context.Background())
	s.Start(context.Background()) // no second loop

	deadline := time.Now().Add(time.Second)
	for atomic.LoadInt32(&job.runs) < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	s.Stop()
	s.Stop()

	if got := atomic.LoadInt32(&job.runs); got < 3 {
		t.Errorf("expected at least 3 runs, got %d", got)
	}
}
