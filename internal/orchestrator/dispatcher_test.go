package orchestrator

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/livingdocs/pipeline/internal/core"
)

type countingJob struct {
	mu      sync.Mutex
	runs    []core.Trigger
	release chan struct{}
}

func (j *countingJob) Run(_ context.Context, t core.Trigger) error {
	if j.release != nil {
		<-j.release
	}
	j.mu.Lock()
	j.runs = append(j.runs, t)
	j.mu.Unlock()
	return nil
}

func (j *countingJob) count() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.runs)
}

func waitForCount(t *testing.T, job *countingJob, n int) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		if job.count() >= n {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for %d runs, got %d", n, job.count())
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestDispatcher_RunsDistinctKeys(t *testing.T) {
	job := &countingJob{}
	d := NewDispatcher(context.Background(), job, 2, nil)
	defer d.Stop()

	require.NoError(t, d.Dispatch(context.Background(), core.Trigger{ProjectID: "p1", CommitSHA: "a"}))
	require.NoError(t, d.Dispatch(context.Background(), core.Trigger{ProjectID: "p1", CommitSHA: "b"}))

	waitForCount(t, job, 2)
}

func TestDispatcher_CoalescesSameKey(t *testing.T) {
	release := make(chan struct{})
	job := &countingJob{release: release}
	d := NewDispatcher(context.Background(), job, 1, nil)
	defer d.Stop()

	require.NoError(t, d.Dispatch(context.Background(), core.Trigger{ProjectID: "p1", CommitSHA: "a", Branch: "first"}))
	// Give the worker a moment to pick up the first trigger and mark it in-flight.
	time.Sleep(20 * time.Millisecond)

	require.NoError(t, d.Dispatch(context.Background(), core.Trigger{ProjectID: "p1", CommitSHA: "a", Branch: "second"}))
	require.NoError(t, d.Dispatch(context.Background(), core.Trigger{ProjectID: "p1", CommitSHA: "a", Branch: "third"}))

	close(release)
	waitForCount(t, job, 2)

	job.mu.Lock()
	defer job.mu.Unlock()
	require.Len(t, job.runs, 2)
	assert.Equal(t, "first", job.runs[0].Branch)
	assert.Equal(t, "third", job.runs[1].Branch, "coalescing keeps the newest pending payload")
}

func TestDispatcher_QueueFullReturnsError(t *testing.T) {
	release := make(chan struct{})
	job := &countingJob{release: release}
	d := NewDispatcher(context.Background(), job, 1, nil)
	defer func() {
		close(release)
		d.Stop()
	}()
	d.queue = make(chan core.Trigger) // unbuffered, force the full-queue path deterministically
	d.startWorkers(context.Background())

	var accepted int32
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			err := d.Dispatch(context.Background(), core.Trigger{ProjectID: "p", CommitSHA: string(rune('a' + n))})
			if err == nil {
				atomic.AddInt32(&accepted, 1)
			}
		}(i)
	}
	wg.Wait()
	assert.GreaterOrEqual(t, atomic.LoadInt32(&accepted), int32(1))
	assert.Less(t, atomic.LoadInt32(&accepted), int32(5), "a full queue rejects at least one dispatch with an error")
}
