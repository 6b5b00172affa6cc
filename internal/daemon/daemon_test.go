package daemon

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeScheduler struct {
	started atomic.Int32
	stopped atomic.Int32
}

func (s *fakeScheduler) Start() { s.started.Add(1) }

func (s *fakeScheduler) Stop() error {
	s.stopped.Add(1)
	return nil
}

type fakeAPI struct {
	startErr error
	started  chan string
	shutdown atomic.Bool
	done     chan struct{}
}

func newFakeAPI(startErr error) *fakeAPI {
	return &fakeAPI{startErr: startErr, started: make(chan string, 1), done: make(chan struct{})}
}

func (a *fakeAPI) Start(address string) error {
	a.started <- address
	if a.startErr != nil {
		return a.startErr
	}
	<-a.done
	return nil
}

func (a *fakeAPI) Shutdown(context.Context) error {
	if a.shutdown.CompareAndSwap(false, true) {
		close(a.done)
	}
	return nil
}

func TestLockPath(t *testing.T) {
	assert.Equal(t, filepath.Join("data", "aiodarr.lock"), LockPath(filepath.Join("data", "aiodarr.db")))
}

func TestNew_Validation(t *testing.T) {
	_, err := New("x.lock", nil, nil, "", zerolog.Nop())
	assert.Error(t, err)

	_, err = New("x.lock", &fakeScheduler{}, newFakeAPI(nil), "", zerolog.Nop())
	assert.Error(t, err)
}

func TestSingleInstance(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "nested", "aiodarr.lock")

	first, err := New(lockPath, &fakeScheduler{}, nil, "", zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, first.Start())
	assert.True(t, first.Running())

	secondSched := &fakeScheduler{}
	second, err := New(lockPath, secondSched, nil, "", zerolog.Nop())
	require.NoError(t, err)
	assert.ErrorIs(t, second.Start(), ErrAlreadyRunning)
	assert.Equal(t, int32(0), secondSched.started.Load())

	first.Stop(context.Background())
	assert.False(t, first.Running())

	require.NoError(t, second.Start())
	second.Stop(context.Background())
}

func TestAcquireLock(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "aiodarr.lock")

	unlock, err := AcquireLock(lockPath)
	require.NoError(t, err)

	d, err := New(lockPath, &fakeScheduler{}, nil, "", zerolog.Nop())
	require.NoError(t, err)
	assert.ErrorIs(t, d.Start(), ErrAlreadyRunning)

	_, err = AcquireLock(lockPath)
	assert.ErrorIs(t, err, ErrAlreadyRunning)

	require.NoError(t, unlock())
	require.NoError(t, d.Start())
	d.Stop(context.Background())
}

func TestRun_StopsOnCancel(t *testing.T) {
	sched := &fakeScheduler{}
	api := newFakeAPI(nil)
	d, err := New(filepath.Join(t.TempDir(), "aiodarr.lock"), sched, api, ":0", zerolog.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	select {
	case addr := <-api.started:
		assert.Equal(t, ":0", addr)
	case <-time.After(time.Second):
		t.Fatal("api server not started")
	}
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("daemon did not stop")
	}
	assert.Equal(t, int32(1), sched.started.Load())
	assert.Equal(t, int32(1), sched.stopped.Load())
	assert.True(t, api.shutdown.Load())
}

func TestRun_APIFailure(t *testing.T) {
	sched := &fakeScheduler{}
	api := newFakeAPI(errors.New("address in use"))
	d, err := New(filepath.Join(t.TempDir(), "aiodarr.lock"), sched, api, ":8080", zerolog.Nop())
	require.NoError(t, err)

	err = d.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "address in use")
	assert.Equal(t, int32(1), sched.stopped.Load())
	assert.False(t, d.Running())
}
