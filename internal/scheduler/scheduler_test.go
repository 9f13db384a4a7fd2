package scheduler

import (
	"errors"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeJob struct {
	name    string
	calls   int32
	failing bool
	panics  bool
}

func (j *fakeJob) Name() string { return j.name }
func (j *fakeJob) Run() error {
	atomic.AddInt32(&j.calls, 1)
	if j.panics {
		panic("boom")
	}
	if j.failing {
		return errors.New("job failed")
	}
	return nil
}

func TestScheduler_RunNowExecutesRegisteredJob(t *testing.T) {
	s := New(zerolog.Nop())
	job := &fakeJob{name: "cleanup"}
	require.NoError(t, s.AddJob("0 3 * * *", job))

	require.NoError(t, s.RunNow("cleanup"))

	assert.Equal(t, int32(1), atomic.LoadInt32(&job.calls))
}

func TestScheduler_RunNowUnknownJobErrors(t *testing.T) {
	s := New(zerolog.Nop())
	assert.Error(t, s.RunNow("nonexistent"))
}

func TestScheduler_RunAndLogRecoversFromPanic(t *testing.T) {
	s := New(zerolog.Nop())
	job := &fakeJob{name: "panicky", panics: true}

	assert.NotPanics(t, func() { s.runAndLog(job) })
	assert.Equal(t, int32(1), atomic.LoadInt32(&job.calls))
}

func TestScheduler_RecordRunAccumulatesMetrics(t *testing.T) {
	s := New(zerolog.Nop())
	job := &fakeJob{name: "ingest"}

	s.runAndLog(job)
	s.runAndLog(job)

	m := s.metrics["ingest"]
	require.NotNil(t, m)
	assert.Equal(t, int64(2), m.CallCount)
}
