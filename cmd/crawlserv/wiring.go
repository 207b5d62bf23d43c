package main

import (
	"context"
	"sync"
	"time"

	"github.com/crawlserv/crawlserv"
	"github.com/crawlserv/crawlserv/control"
	"github.com/crawlserv/crawlserv/logging"
	"github.com/crawlserv/crawlserv/network"
	"github.com/crawlserv/crawlserv/semaphore"
	"github.com/crawlserv/crawlserv/store"
	"github.com/crawlserv/crawlserv/thread"
)

// buildStore translates config.go's ServerConfig.Storage block into a
// store.Config and opens the connection pool.
func buildStore(cfg crawlserv.ServerConfig) (*store.Store, error) {
	maxIdle, err := parseDuration(cfg.Storage.MaxIdleTime, 10*time.Minute)
	if err != nil {
		return nil, err
	}
	retryDelay, err := parseDuration(cfg.Storage.DeadlockRetryDelay, 200*time.Millisecond)
	if err != nil {
		return nil, err
	}

	return store.NewStore(store.Config{
		DSN:                cfg.Storage.DSN,
		MaxOpenConns:       cfg.Storage.MaxOpenConns,
		MaxIdleTime:        maxIdle,
		DeadlockRetries:    cfg.Storage.DeadlockRetries,
		DeadlockRetryDelay: retryDelay,
	})
}

// buildSupervisor translates ServerConfig.Supervisor into a thread.Config
// and constructs the Supervisor every module type registers threads with.
func buildSupervisor(backend store.Backend, cfg crawlserv.ServerConfig) (*thread.Supervisor, error) {
	flush, err := parseDuration(cfg.Supervisor.StatusFlushInterval, 2*time.Second)
	if err != nil {
		return nil, err
	}
	sleepConnErr, err := parseDuration(cfg.Supervisor.SleepOnConnectionError, 10*time.Second)
	if err != nil {
		return nil, err
	}

	return thread.NewSupervisor(backend, thread.Config{
		FlushInterval:        flush,
		SleepOnConnectionErr: sleepConnErr,
	}), nil
}

// buildNetworkClient translates ServerConfig.Network into a network.Client.
func buildNetworkClient(cfg crawlserv.ServerConfig) (network.Client, error) {
	timeout, err := parseDuration(cfg.Network.HTTPTimeout, 30*time.Second)
	if err != nil {
		return nil, err
	}

	return network.New(network.Config{
		UserAgent:          cfg.Network.UserAgent,
		Timeout:            timeout,
		MaxDNSCacheEntries: cfg.Network.MaxDNSCacheEntries,
	})
}

// buildControlServer translates ServerConfig.Control into control.Options
// and wires up the full command plane, grounded on control/server.go's
// New, which deliberately can't accept ServerConfig directly (that block
// is an anonymous struct — see control/server.go's Options doc).
func buildControlServer(backend store.Backend, supervisor *thread.Supervisor, launcher control.Launcher, cfg crawlserv.ServerConfig) *control.Server {
	return control.New(backend, supervisor, launcher, control.Options{
		AllowedIPs:        cfg.Control.AllowedIPs,
		AllowOrigin:       cfg.Control.AllowOrigin,
		TemplateDirectory: cfg.Control.TemplateDirectory,
		SessionSecret:     cfg.Control.SessionSecret,
	})
}

// resumeThreads re-registers every persisted Thread row whose status
// implies it was active when the process last stopped (running, paused or
// interrupted), so an operator doesn't have to manually restart each one
// after a restart. Building each thread's Module does I/O (GetWebsite/
// GetList/GetConfiguration), so the fan-out runs concurrently; semaphore
// stands in for sync.WaitGroup here only because none of this package's
// other goroutines share a WaitGroup with it, matching semaphore's own
// stated reason for existing (avoiding WaitGroup/race-detector friction),
// not because any concurrency limit is needed.
func resumeThreads(ctx context.Context, backend store.Backend, supervisor *thread.Supervisor, launcher control.Launcher) error {
	rows, err := backend.ListThreads(ctx)
	if err != nil {
		return err
	}

	sem := semaphore.New()
	var mu sync.Mutex
	var firstErr error
	setFirst := func(err error) {
		mu.Lock()
		defer mu.Unlock()
		if firstErr == nil {
			firstErr = err
		}
	}

	for _, row := range rows {
		if !resumable(row.Status) {
			continue
		}

		sem.Add(1)
		go func(row crawlserv.Thread) {
			defer sem.Done()

			resumed := row.Status == crawlserv.ThreadInterrupted
			module, err := launcher.Launch(ctx, row, resumed)
			if err != nil {
				logging.Error("resume thread %d: launch failed: %v", row.ID, err)
				setFirst(err)
				return
			}
			if err := supervisor.Register(ctx, row, module, resumed); err != nil {
				logging.Error("resume thread %d: register failed: %v", row.ID, err)
				setFirst(err)
			}
		}(row)
	}

	sem.Wait()
	return firstErr
}

func resumable(status crawlserv.ThreadStatus) bool {
	switch status {
	case crawlserv.ThreadRunning, crawlserv.ThreadPaused, crawlserv.ThreadInterrupted:
		return true
	default:
		return false
	}
}
