// Package thread implements the thread lifecycle and supervisor (C3)
// shared by every module type: crawler, parser, extractor and analyzer
// threads are all, from the supervisor's point of view, a Module run on a
// goroutine-per-thread schedule. Grounded on dispatcher.go's Start/Stop and
// fetcher.go's FetchManager.Start/Stop quit/done-channel-pair-per-worker
// shape, generalized from "one goroutine per fetcher" to "one goroutine per
// registered Thread row".
package thread

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/crawlserv/crawlserv"
	"github.com/crawlserv/crawlserv/errs"
	"github.com/crawlserv/crawlserv/logging"
	"github.com/crawlserv/crawlserv/store"
)

// Module is the contract every crawler/parser/extractor/analyzer
// implementation satisfies; the supervisor knows nothing about what a tick
// actually does.
type Module interface {
	// OnInit prepares the module to run. resumed is true when the thread is
	// being re-instantiated from a persisted Interrupted row rather than
	// started fresh (spec.md §4.3).
	OnInit(ctx context.Context, resumed bool) error

	// OnTick performs one unit of work. Returning errs classified Transient
	// causes the supervisor to sleep and retry; any other error terminates
	// the thread.
	OnTick(ctx context.Context) error

	// OnPause is asked whether pausing is currently allowed (a module may
	// reject a pause mid-initialization); returning false keeps the thread
	// running.
	OnPause() bool

	// OnUnpause notifies the module that it has resumed running.
	OnUnpause()

	// OnClear releases any resources OnInit acquired.
	OnClear() error
}

// Supervisor runs one goroutine per registered Thread row, flushes status
// periodically, and exposes the control operations spec.md §4.3 names:
// start, pause, unpause, stop, send_interrupt, finish_interrupt.
type Supervisor struct {
	backend store.Backend

	flushInterval   time.Duration
	sleepOnConnErr  time.Duration
	maxConnErrRetry int

	mu      sync.Mutex
	threads map[uint64]*runningThread
}

// Config bundles the Supervisor's timing knobs, mirroring
// config.go's ServerConfig.Supervisor fields.
type Config struct {
	FlushInterval        time.Duration
	SleepOnConnectionErr time.Duration
	MaxConnectionRetries int
}

// NewSupervisor constructs a Supervisor. backend is used only to persist
// Thread row status; the Module passed to Register does its own storage
// work.
func NewSupervisor(backend store.Backend, cfg Config) *Supervisor {
	s := &Supervisor{
		backend:         backend,
		flushInterval:   cfg.FlushInterval,
		sleepOnConnErr:  cfg.SleepOnConnectionErr,
		maxConnErrRetry: cfg.MaxConnectionRetries,
		threads:         make(map[uint64]*runningThread),
	}
	if s.flushInterval <= 0 {
		s.flushInterval = 2 * time.Second
	}
	if s.sleepOnConnErr <= 0 {
		s.sleepOnConnErr = 10 * time.Second
	}
	if s.maxConnErrRetry <= 0 {
		s.maxConnErrRetry = 10
	}
	return s
}

// runningThread is the supervisor's live bookkeeping for one Thread row.
type runningThread struct {
	row    crawlserv.Thread
	module Module

	pauseMu sync.Mutex
	cond    *sync.Cond
	paused  bool

	quit chan struct{}
	done chan struct{}

	// termMu guards quitClosed/termStatus/termMessage: the terminal status
	// a caller (Stop or SendInterrupt) requested before closing quit. run
	// is the only goroutine that ever finalizes a thread, and it reads
	// these once it observes quit closed, so exactly one finalize happens
	// per thread and it persists the status the caller actually asked for.
	termMu      sync.Mutex
	quitClosed  bool
	termStatus  crawlserv.ThreadStatus
	termMessage string

	runtime   time.Duration
	pausetime time.Duration
	statusMu  sync.Mutex
	status    string
}

// requestStop closes quit exactly once, recording the terminal status/
// message run's own finalize call will use once it observes the close.
func (rt *runningThread) requestStop(status crawlserv.ThreadStatus, message string) {
	rt.termMu.Lock()
	defer rt.termMu.Unlock()
	if rt.quitClosed {
		return
	}
	rt.quitClosed = true
	rt.termStatus = status
	rt.termMessage = message
	close(rt.quit)
}

func (rt *runningThread) terminal() (crawlserv.ThreadStatus, string) {
	rt.termMu.Lock()
	defer rt.termMu.Unlock()
	return rt.termStatus, rt.termMessage
}

// Register creates a runningThread for row and starts its goroutine. resumed
// should be true when row.Status was crawlserv.ThreadInterrupted at startup.
func (s *Supervisor) Register(ctx context.Context, row crawlserv.Thread, module Module, resumed bool) error {
	const op = "thread.Register"

	rt := &runningThread{
		row:    row,
		module: module,
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	rt.cond = sync.NewCond(&rt.pauseMu)
	rt.paused = row.Paused

	if err := module.OnInit(ctx, resumed); err != nil {
		return errs.Wrapf(errs.Internal, op, err, "module init failed for thread %d", row.ID)
	}

	s.mu.Lock()
	s.threads[row.ID] = rt
	s.mu.Unlock()

	row.Status = crawlserv.ThreadRunning
	if err := s.backend.UpdateThreadStatus(ctx, row); err != nil {
		logging.Error("thread %d: failed to persist running status: %v", row.ID, err)
	}

	go s.run(ctx, rt)
	return nil
}

// run is the per-thread goroutine: tick, flush, repeat, until quit is
// closed or OnTick returns a non-Transient error. Mirrors fetcher.go's
// fetcher.start/crawl loop structure (select on quit inside the hot loop,
// signal done on exit).
func (s *Supervisor) run(ctx context.Context, rt *runningThread) {
	defer close(rt.done)

	flushTicker := time.NewTicker(s.flushInterval)
	defer flushTicker.Stop()

	connErrStreak := 0

	for {
		select {
		case <-rt.quit:
			status, msg := rt.terminal()
			s.finalize(ctx, rt, status, msg)
			return
		case <-ctx.Done():
			s.finalize(ctx, rt, crawlserv.ThreadInterrupted, "process shutting down")
			return
		case <-flushTicker.C:
			s.flush(ctx, rt)
			continue
		default:
		}

		rt.pauseMu.Lock()
		for rt.paused {
			pauseStart := time.Now()
			rt.cond.Wait()
			rt.pausetime += time.Since(pauseStart)
		}
		rt.pauseMu.Unlock()

		select {
		case <-rt.quit:
			status, msg := rt.terminal()
			s.finalize(ctx, rt, status, msg)
			return
		default:
		}

		tickStart := time.Now()
		err := rt.module.OnTick(ctx)
		rt.runtime += time.Since(tickStart)

		if err == nil {
			connErrStreak = 0
			continue
		}

		if errs.ClassOf(err) == errs.Transient {
			connErrStreak++
			if connErrStreak > s.maxConnErrRetry {
				s.finalize(ctx, rt, crawlserv.ThreadStopped, fmt.Sprintf("exceeded connection retry budget: %v", err))
				return
			}
			s.setStatus(rt, fmt.Sprintf("retrying after transient error: %v", err))
			select {
			case <-rt.quit:
				status, msg := rt.terminal()
				s.finalize(ctx, rt, status, msg)
				return
			case <-time.After(s.sleepOnConnErr):
			}
			continue
		}

		s.finalize(ctx, rt, crawlserv.ThreadStopped, err.Error())
		return
	}
}

func (s *Supervisor) setStatus(rt *runningThread, msg string) {
	rt.statusMu.Lock()
	rt.status = msg
	rt.statusMu.Unlock()
}

// lastReporter is an optional capability a Module may implement to expose
// its monotone progress cursor (spec.md §4.3 invariant 3: "on resume the
// module must re-read last and resume idempotently"), so the supervisor
// can persist it alongside status/runtime without the Module interface
// itself needing to know about Thread rows.
type lastReporter interface {
	Last() uint64
}

func (s *Supervisor) flush(ctx context.Context, rt *runningThread) {
	rt.statusMu.Lock()
	msg := rt.status
	rt.statusMu.Unlock()

	rt.pauseMu.Lock()
	paused := rt.paused
	rt.pauseMu.Unlock()

	row := rt.row
	row.Paused = paused
	row.Message = msg
	if paused {
		row.Status = crawlserv.ThreadPaused
		row.Message = "{PAUSED} " + msg
	} else {
		row.Status = crawlserv.ThreadRunning
	}
	row.Runtime = rt.runtime
	row.PauseTime = rt.pausetime
	if lr, ok := rt.module.(lastReporter); ok {
		row.Last = lr.Last()
	}

	if err := s.backend.UpdateThreadStatus(ctx, row); err != nil {
		logging.Error("thread %d: failed to flush status: %v", row.ID, err)
	}
}

func (s *Supervisor) finalize(ctx context.Context, rt *runningThread, status crawlserv.ThreadStatus, message string) {
	if err := rt.module.OnClear(); err != nil {
		logging.Error("thread %d: OnClear failed: %v", rt.row.ID, err)
	}

	row := rt.row
	row.Status = status
	row.Message = message
	row.Paused = false
	row.Runtime = rt.runtime
	row.PauseTime = rt.pausetime
	if lr, ok := rt.module.(lastReporter); ok {
		row.Last = lr.Last()
	}

	if err := s.backend.UpdateThreadStatus(ctx, row); err != nil {
		logging.Error("thread %d: failed to persist final status: %v", row.ID, err)
	}

	s.mu.Lock()
	delete(s.threads, rt.row.ID)
	s.mu.Unlock()
}

// Pause returns false if the module currently disallows pausing (spec.md
// §4.3: "pause returns false if pausing is disallowed").
func (s *Supervisor) Pause(id uint64) (bool, error) {
	rt, err := s.lookup(id)
	if err != nil {
		return false, err
	}
	if !rt.module.OnPause() {
		return false, nil
	}
	rt.pauseMu.Lock()
	rt.paused = true
	rt.pauseMu.Unlock()
	return true, nil
}

// Unpause is idempotent (spec.md §4.3).
func (s *Supervisor) Unpause(id uint64) error {
	rt, err := s.lookup(id)
	if err != nil {
		return err
	}
	rt.pauseMu.Lock()
	rt.paused = false
	rt.pauseMu.Unlock()
	rt.cond.Broadcast()
	rt.module.OnUnpause()
	return nil
}

// Stop requests cooperative shutdown and blocks until the thread's
// goroutine has exited.
func (s *Supervisor) Stop(id uint64) error {
	rt, err := s.lookup(id)
	if err != nil {
		return err
	}
	rt.requestStop(crawlserv.ThreadStopped, "")
	// Wake the goroutine in case it is blocked on the pause condition.
	rt.pauseMu.Lock()
	rt.paused = false
	rt.pauseMu.Unlock()
	rt.cond.Broadcast()
	<-rt.done
	return nil
}

// SendInterrupt marks a running thread for crash-recoverable shutdown: the
// next supervisor startup will call OnInit(resumed=true) on it rather than
// starting fresh (spec.md §4.3). The actual finalize — OnClear plus
// persisting the Interrupted status — happens exactly once, inside run,
// once it observes quit closed; SendInterrupt itself must not finalize,
// or run's own quit-triggered finalize would immediately overwrite the
// persisted status back to Stopped (see run's quit case).
func (s *Supervisor) SendInterrupt(ctx context.Context, id uint64) error {
	rt, err := s.lookup(id)
	if err != nil {
		return err
	}
	rt.requestStop(crawlserv.ThreadInterrupted, "interrupted by operator")
	// Wake the goroutine in case it is blocked on the pause condition, so
	// it observes the close promptly instead of waiting for an Unpause
	// that may never come.
	rt.pauseMu.Lock()
	rt.paused = false
	rt.pauseMu.Unlock()
	rt.cond.Broadcast()
	return nil
}

// FinishInterrupt clears the persisted Interrupted state after a successful
// resume, transitioning the Thread row to Running.
func (s *Supervisor) FinishInterrupt(ctx context.Context, id uint64) error {
	t, err := s.backend.GetThread(ctx, id)
	if err != nil {
		return err
	}
	t.Status = crawlserv.ThreadRunning
	return s.backend.UpdateThreadStatus(ctx, t)
}

func (s *Supervisor) lookup(id uint64) (*runningThread, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rt, ok := s.threads[id]
	if !ok {
		return nil, errs.New(errs.NotFound, "thread.lookup", fmt.Sprintf("no running thread %d", id))
	}
	return rt, nil
}
