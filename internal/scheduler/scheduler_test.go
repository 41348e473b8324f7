package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestScheduler_RunsJobs(t *testing.T) {
	s := New(context.Background(), zap.NewNop())

	var runs atomic.Int32
	done := make(chan struct{}, 1)
	require.NoError(t, s.Every(time.Second, NewJob("refresh", func(context.Context) error {
		if runs.Add(1) == 1 {
			done <- struct{}{}
		}
		return nil
	})))

	s.Start()
	defer s.Stop()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("job did not run")
	}
	assert.GreaterOrEqual(t, runs.Load(), int32(1))
}

func TestScheduler_InvalidSchedule(t *testing.T) {
	s := New(context.Background(), nil)
	job := NewJob("noop", func(context.Context) error { return nil })

	assert.Error(t, s.AddJob("every now and then", job))
	assert.Error(t, s.Every(0, job))
	assert.NoError(t, s.AddJob("0 */5 * * * *", job))
	assert.NoError(t, s.AddJob("@hourly", job))
}

func TestScheduler_RunNow(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := New(ctx, nil)

	boom := errors.New("boom")
	err := s.RunNow(NewJob("fail", func(got context.Context) error {
		assert.Equal(t, ctx, got)
		return boom
	}))
	assert.ErrorIs(t, err, boom)
}
