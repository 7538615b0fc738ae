package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/fitpanel/internal/application"
	"github.com/ericfisherdev/fitpanel/internal/domain/model"
)

// --- Mock implementations ---

type mockRefresher struct {
	mu      sync.Mutex
	calls   []application.RefreshRequest
	called  chan struct{}
	err     error
	panics  bool
	counter atomic.Int32
}

func newMockRefresher() *mockRefresher {
	return &mockRefresher{called: make(chan struct{}, 16)}
}

func (m *mockRefresher) Refresh(_ context.Context, req application.RefreshRequest) (*application.RunResult, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	m.mu.Unlock()
	m.counter.Add(1)
	m.called <- struct{}{}

	if m.panics {
		panic("refresh exploded")
	}
	if m.err != nil {
		return nil, m.err
	}
	return &application.RunResult{RunID: time.Now().UTC(), Method: req.Method}, nil
}

// --- Tests ---

func TestNew_RejectsBadSchedule(t *testing.T) {
	_, err := New(newMockRefresher(), "every so often", time.UTC)
	require.Error(t, err)
}

func TestNew_AcceptsDescriptor(t *testing.T) {
	s, err := New(newMockRefresher(), "@hourly", nil)
	require.NoError(t, err)
	assert.Equal(t, time.Local, s.loc)
}

func TestRun_RefreshesImmediatelyAndStops(t *testing.T) {
	ref := newMockRefresher()
	s, err := New(ref, "@every 1h", time.UTC)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	select {
	case <-ref.called:
	case <-time.After(5 * time.Second):
		t.Fatal("no immediate refresh")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	ref.mu.Lock()
	defer ref.mu.Unlock()
	require.Len(t, ref.calls, 1)
	assert.Equal(t, model.RefreshMethodSystem, ref.calls[0].Method)
	assert.False(t, ref.calls[0].Truncate)
}

func TestTick_HandlesErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{name: "success", err: nil},
		{name: "lock held", err: application.ErrRefreshInProgress},
		{name: "profile incomplete", err: application.ErrProfileIncomplete},
		{name: "aborted", err: errors.Join(application.ErrRunAborted, errors.New("disk full"))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ref := newMockRefresher()
			ref.err = tt.err
			s, err := New(ref, "@hourly", time.UTC)
			require.NoError(t, err)

			assert.NotPanics(t, func() { s.Tick(context.Background()) })
			assert.Equal(t, int32(1), ref.counter.Load())
		})
	}
}

func TestTick_SkipsWhenContextDone(t *testing.T) {
	ref := newMockRefresher()
	s, err := New(ref, "@hourly", time.UTC)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s.Tick(ctx)

	assert.Zero(t, ref.counter.Load())
}

func TestRun_RecoversPanickingTick(t *testing.T) {
	ref := newMockRefresher()
	ref.panics = true
	s, err := New(ref, "@every 1h", time.UTC)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	select {
	case <-ref.called:
	case <-time.After(5 * time.Second):
		t.Fatal("no immediate refresh")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
