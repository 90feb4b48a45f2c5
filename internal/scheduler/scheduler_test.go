package scheduler

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ejames/nowcast/pkg/logger"
)

type countingJob struct {
	name     string
	schedule string
	failures int32 // fail this many runs before succeeding
	runs     atomic.Int32
}

func (j *countingJob) Name() string     { return j.name }
func (j *countingJob) Schedule() string { return j.schedule }

func (j *countingJob) Run(ctx context.Context) error {
	n := j.runs.Add(1)
	if n <= atomic.LoadInt32(&j.failures) {
		return errors.New("transient failure")
	}
	return nil
}

func testLogger() *logger.Logger {
	return logger.NewWithWriter(io.Discard, "error")
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestAddJobRejectsDuplicates(t *testing.T) {
	s := New(0, 0, testLogger())
	job := &countingJob{name: "dup", schedule: "0 0 0 * * *"}

	require.NoError(t, s.AddJob(job))
	err := s.AddJob(job)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")
}

func TestAddJobRejectsBadSchedule(t *testing.T) {
	s := New(0, 0, testLogger())
	err := s.AddJob(&countingJob{name: "bad", schedule: "not a cron"})
	require.Error(t, err)
}

func TestTriggerJobRunsImmediately(t *testing.T) {
	s := New(0, 0, testLogger())
	job := &countingJob{name: "manual", schedule: "0 0 0 1 1 *"}
	require.NoError(t, s.AddJob(job))

	require.NoError(t, s.TriggerJob("manual"))
	waitFor(t, time.Second, func() bool { return job.runs.Load() == 1 })

	waitFor(t, time.Second, func() bool {
		st, ok := s.Stats()["manual"]
		return ok && st.TotalRuns == 1
	})
	st := s.Stats()["manual"]
	assert.Equal(t, 0, st.FailureCount)
	assert.Equal(t, 1.0, st.SuccessRate)
	require.NotNil(t, st.LastRun)
}

func TestTriggerJobUnknown(t *testing.T) {
	s := New(0, 0, testLogger())
	require.Error(t, s.TriggerJob("missing"))
}

func TestRunJobRetriesUntilSuccess(t *testing.T) {
	s := New(2, time.Millisecond, testLogger())
	job := &countingJob{name: "flaky", schedule: "0 0 0 1 1 *", failures: 2}
	require.NoError(t, s.AddJob(job))

	require.NoError(t, s.TriggerJob("flaky"))
	waitFor(t, time.Second, func() bool {
		st, ok := s.Stats()["flaky"]
		return ok && st.TotalRuns == 1
	})

	assert.Equal(t, int32(3), job.runs.Load(), "two failed attempts plus the success")
	st := s.Stats()["flaky"]
	assert.Equal(t, 0, st.FailureCount, "the run as a whole succeeded")
	assert.Empty(t, st.LastError)
}

func TestRunJobRecordsExhaustedRetries(t *testing.T) {
	s := New(1, time.Millisecond, testLogger())
	job := &countingJob{name: "broken", schedule: "0 0 0 1 1 *", failures: 100}
	require.NoError(t, s.AddJob(job))

	require.NoError(t, s.TriggerJob("broken"))
	waitFor(t, time.Second, func() bool {
		st, ok := s.Stats()["broken"]
		return ok && st.TotalRuns == 1
	})

	st := s.Stats()["broken"]
	assert.Equal(t, 1, st.FailureCount)
	assert.Equal(t, "transient failure", st.LastError)
	assert.Equal(t, 0.0, st.SuccessRate)
}

func TestJobHistoryBounded(t *testing.T) {
	h := &JobHistory{}
	for i := 0; i < historyLimit+25; i++ {
		h.Add(JobResult{JobName: "x", Success: i%2 == 0})
	}
	assert.Len(t, h.Results, historyLimit)
}

func TestJobHistoryEmpty(t *testing.T) {
	h := &JobHistory{}
	assert.Nil(t, h.Latest())
	assert.Equal(t, 0.0, h.SuccessRate())
}
