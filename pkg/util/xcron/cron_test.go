package xcron

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omeyang/xcachekit/pkg/observability/xlog"
)

func newTestScheduler(opts ...SchedulerOption) *Scheduler {
	return New(append([]SchedulerOption{WithLogger(xlog.Discard())}, opts...)...)
}

func TestScheduler_AddFuncValidation(t *testing.T) {
	s := newTestScheduler()
	defer func() { <-s.Stop().Done() }()

	_, err := s.AddFunc("* * * * *", nil)
	assert.ErrorIs(t, err, ErrNilJob)

	_, err = s.AddJob("* * * * *", nil)
	assert.ErrorIs(t, err, ErrNilJob)

	_, err = s.AddFunc("not a spec", func(context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrInvalidSpec)

	id, err := s.AddFunc("@every 1h", func(context.Context) error { return nil }, WithName("hourly"))
	require.NoError(t, err)
	assert.Len(t, s.Entries(), 1)

	s.Remove(id)
	assert.Empty(t, s.Entries())
}

func TestScheduler_Validate(t *testing.T) {
	s := newTestScheduler()
	defer func() { <-s.Stop().Done() }()

	assert.NoError(t, s.Validate("*/5 * * * *"))
	assert.NoError(t, s.Validate("@every 30s"))
	assert.ErrorIs(t, s.Validate("*/5 * * * * *"), ErrInvalidSpec)

	sec := newTestScheduler(WithSeconds())
	defer func() { <-sec.Stop().Done() }()
	assert.NoError(t, sec.Validate("*/5 * * * * *"))
}

func TestScheduler_Immediate(t *testing.T) {
	s := newTestScheduler()

	done := make(chan struct{})
	_, err := s.AddFunc("@every 1h", func(context.Context) error {
		close(done)
		return nil
	}, WithName("now"), WithImmediate())
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("immediate job did not run")
	}

	<-s.Stop().Done()
	assert.Equal(t, int64(1), s.Stats().Executions())
	assert.Zero(t, s.Stats().Failures())
}

func TestScheduler_ScheduledRuns(t *testing.T) {
	s := newTestScheduler(WithSeconds())

	var runs atomic.Int32
	_, err := s.AddFunc("@every 1s", func(context.Context) error {
		runs.Add(1)
		return nil
	})
	require.NoError(t, err)
	s.Start()

	assert.Eventually(t, func() bool { return runs.Load() >= 1 }, 3*time.Second, 20*time.Millisecond)
	<-s.Stop().Done()
}

func TestScheduler_FailureAndPanic(t *testing.T) {
	s := newTestScheduler()
	boom := errors.New("boom")

	_, err := s.AddFunc("@every 1h", func(context.Context) error { return boom }, WithImmediate())
	require.NoError(t, err)
	_, err = s.AddFunc("@every 1h", func(context.Context) error { panic("bad") }, WithImmediate())
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return s.Stats().Executions() == 2 }, 2*time.Second, 10*time.Millisecond)
	<-s.Stop().Done()

	assert.Equal(t, int64(2), s.Stats().Failures())
	assert.Equal(t, int64(1), s.Stats().Panics())
	_, _, last := s.Stats().LastExecution()
	assert.Error(t, last)
}

func TestScheduler_StopCancelsRunningJob(t *testing.T) {
	s := newTestScheduler()

	started := make(chan struct{})
	_, err := s.AddFunc("@every 1h", func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}, WithImmediate())
	require.NoError(t, err)

	<-started
	stopped := s.Stop()
	select {
	case <-stopped.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("stop did not wait for the running job")
	}
	_, _, last := s.Stats().LastExecution()
	assert.ErrorIs(t, last, context.Canceled)
}

func TestScheduler_Timeout(t *testing.T) {
	s := newTestScheduler()

	_, err := s.AddFunc("@every 1h", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}, WithImmediate(), WithTimeout(20*time.Millisecond))
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return s.Stats().Executions() == 1 }, 2*time.Second, 10*time.Millisecond)
	<-s.Stop().Done()

	_, d, last := s.Stats().LastExecution()
	assert.ErrorIs(t, last, context.DeadlineExceeded)
	assert.Less(t, d, time.Second)
}

func TestKVAttrs(t *testing.T) {
	attrs := kvAttrs([]any{"entry", 1, 7, "x", "dangling"})
	require.Len(t, attrs, 3)
	assert.Equal(t, "entry", attrs[0].Key)
	assert.Equal(t, "7", attrs[1].Key)
	assert.Equal(t, "!BADKEY", attrs[2].Key)
}
