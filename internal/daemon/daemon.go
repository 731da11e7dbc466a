package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync/atomic"

	"github.com/gofrs/flock"

	"groundlink/internal/capture"
	"groundlink/internal/config"
	"groundlink/internal/events"
	"groundlink/internal/jobs"
	"groundlink/internal/logging"
	"groundlink/internal/mission"
	"groundlink/internal/store"
	"groundlink/internal/ws"
)

// Daemon coordinates the fleet services and enforces single-instance execution.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger
	store  *store.Store

	registry    *events.Registry
	broadcaster *events.Broadcaster
	executor    *mission.Executor
	captures    *capture.Manager
	jobs        *jobs.Processor
	wsServer    *ws.Server
	api         *apiServer

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running       bool
	PID           int
	Observers     int
	Executing     []string
	EntityCounts  store.Counts
	DatabasePath  string
	LockFilePath  string
	ListenAddress string
}

// New constructs a daemon with its full service graph wired.
func New(cfg *config.Config, st *store.Store, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || st == nil || logger == nil {
		return nil, errors.New("daemon requires config, store, and logger")
	}

	registry := events.NewRegistry()
	broadcaster := events.NewBroadcaster(registry, logger)

	d := &Daemon{
		cfg:         cfg,
		logger:      logging.NewComponentLogger(logger, "daemon"),
		store:       st,
		registry:    registry,
		broadcaster: broadcaster,
		executor:    mission.NewExecutor(cfg, st, broadcaster, logger),
		captures:    capture.NewManager(cfg, st, broadcaster, logger),
		jobs:        jobs.NewProcessor(st, broadcaster, logger),
		lockPath:    cfg.LockPath(),
		lock:        flock.New(cfg.LockPath()),
	}
	d.wsServer = ws.NewServer(cfg, registry, broadcaster, st, d, logger)
	d.api = newAPIServer(cfg, d, logger)
	return d, nil
}

// Start acquires the daemon lock and brings up the command surface.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another groundlink daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	if err := d.api.start(d.ctx); err != nil {
		_ = d.lock.Unlock()
		d.cancel()
		d.ctx = nil
		d.cancel = nil
		return err
	}

	d.running.Store(true)
	d.logger.Info("groundlink daemon started",
		logging.String("lock", d.lockPath),
		logging.String("bind", d.api.address()),
	)
	return nil
}

// Stop aborts in-flight work, drains it, and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.api.stop()

	d.executor.AbortAll()
	d.executor.Wait()
	d.jobs.Wait()

	for _, connection := range d.registry.Snapshot() {
		d.registry.Unregister(connection.ID())
		_ = connection.Close()
	}

	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("groundlink daemon stopped")
}

// Close stops the daemon and releases its resources.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Status reports runtime information for the status endpoint and CLI.
func (d *Daemon) Status(ctx context.Context) Status {
	counts, err := d.store.CountEntities(ctx)
	if err != nil {
		d.logger.Warn("entity counts unavailable", logging.Error(err))
	}
	executing := d.executor.InFlight()
	sort.Strings(executing)
	return Status{
		Running:       d.running.Load(),
		PID:           os.Getpid(),
		Observers:     d.registry.Len(),
		Executing:     executing,
		EntityCounts:  counts,
		DatabasePath:  d.cfg.DatabasePath(),
		LockFilePath:  d.lockPath,
		ListenAddress: d.api.address(),
	}
}
