// Package daemon runs the scheduler and the optional status API under a
// single-instance lock.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/gofrs/flock"
	"github.com/rs/zerolog"
)

const lockFileName = "aiodarr.lock"

// ErrAlreadyRunning is returned when another process holds the lock.
var ErrAlreadyRunning = errors.New("another aiodarr instance is already running")

// Scheduler is the background task runner.
type Scheduler interface {
	Start()
	Stop() error
}

// APIServer is the HTTP status server.
type APIServer interface {
	Start(address string) error
	Shutdown(ctx context.Context) error
}

// Daemon coordinates background services and enforces single-instance execution.
type Daemon struct {
	scheduler  Scheduler
	api        APIServer
	apiAddress string
	logger     zerolog.Logger

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	apiErr  chan error
}

// LockPath returns the lock file location for a database path.
func LockPath(databasePath string) string {
	return filepath.Join(filepath.Dir(databasePath), lockFileName)
}

// New constructs a daemon. api may be nil, in which case no HTTP server runs.
func New(lockPath string, sched Scheduler, api APIServer, apiAddress string, logger zerolog.Logger) (*Daemon, error) {
	if sched == nil {
		return nil, errors.New("daemon requires a scheduler")
	}
	if api != nil && apiAddress == "" {
		return nil, errors.New("daemon requires an address for the API server")
	}
	return &Daemon{
		scheduler:  sched,
		api:        api,
		apiAddress: apiAddress,
		logger:     logger.With().Str("component", "daemon").Logger(),
		lockPath:   lockPath,
		lock:       flock.New(lockPath),
		apiErr:     make(chan error, 1),
	}, nil
}

// AcquireLock takes the single-instance lock at path for short-lived
// commands. The returned function releases it.
func AcquireLock(path string) (func() error, error) {
	lock := flock.New(path)
	if err := tryLock(lock); err != nil {
		return nil, err
	}
	return lock.Unlock, nil
}

func tryLock(lock *flock.Flock) error {
	if err := os.MkdirAll(filepath.Dir(lock.Path()), 0o755); err != nil {
		return fmt.Errorf("create lock directory: %w", err)
	}
	ok, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return ErrAlreadyRunning
	}
	return nil
}

// Start acquires the lock and launches the scheduler and API server.
func (d *Daemon) Start() error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	if err := tryLock(d.lock); err != nil {
		return err
	}

	d.scheduler.Start()

	if d.api != nil {
		go func() {
			if err := d.api.Start(d.apiAddress); err != nil {
				d.apiErr <- fmt.Errorf("api server: %w", err)
			}
		}()
	}

	d.running.Store(true)
	d.logger.Info().Str("lock", d.lockPath).Msg("aiodarr daemon started")
	return nil
}

// Run starts the daemon and blocks until ctx is done or the API server fails.
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.Start(); err != nil {
		return err
	}

	var runErr error
	select {
	case <-ctx.Done():
		d.logger.Info().Msg("Shutdown requested")
	case runErr = <-d.apiErr:
		d.logger.Error().Err(runErr).Msg("API server stopped unexpectedly")
	}

	d.Stop(context.WithoutCancel(ctx))
	return runErr
}

// Stop shuts down the API server and scheduler and releases the lock.
func (d *Daemon) Stop(ctx context.Context) {
	if !d.running.Load() {
		return
	}

	if d.api != nil {
		if err := d.api.Shutdown(ctx); err != nil {
			d.logger.Warn().Err(err).Msg("Failed to shut down API server")
		}
	}
	if err := d.scheduler.Stop(); err != nil {
		d.logger.Warn().Err(err).Msg("Failed to stop scheduler")
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn().Err(err).Msg("Failed to release daemon lock")
	}

	d.running.Store(false)
	d.logger.Info().Msg("aiodarr daemon stopped")
}

// Running reports whether Start has succeeded and Stop has not been called.
func (d *Daemon) Running() bool {
	return d.running.Load()
}
