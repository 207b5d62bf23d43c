// Package store implements the storage layer (C1): connection management,
// the deadlock-retry wrapper, named advisory locks, and CRUD over every
// entity in the data model. It generalizes the teacher's cassandra package
// from CQL/Cassandra to SQL/MySQL, since the original system this spec was
// distilled from is MySQL-backed (see original_source).
package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/crawlserv/crawlserv/errs"
)

// Store is the primary storage implementation. Exported methods that run
// SQL verify the connection is alive first, except ReadColumn and
// CreateSchema. Methods that change rows or tables run their SQL inside the
// deadlock-retry loop, except CreateSchema; queries that only read run
// once, without retry. This mirrors the teacher's Datastore methods, which
// always go through a live *gocql.Session.
//
// NewStore should be used to create one.
type Store struct {
	db *sql.DB

	maxIdleTime time.Duration
	lastPing    time.Time
	pingMu      sync.Mutex

	deadlockRetries    int
	deadlockRetryDelay time.Duration

	namedLocksMu sync.Mutex
	namedLocks   map[string]*sync.Mutex

	stmtsMu sync.Mutex
	stmts   []*sql.Stmt
	queries []string
}

// Config bundles the knobs NewStore needs, mirroring config.go's
// ServerConfig.Storage fields without creating an import cycle back to the
// root package.
type Config struct {
	DSN                string
	MaxOpenConns       int
	MaxIdleTime        time.Duration
	DeadlockRetries    int
	DeadlockRetryDelay time.Duration
}

// NewStore opens a connection pool and verifies it is reachable.
func NewStore(cfg Config) (*Store, error) {
	db, err := sql.Open("mysql", cfg.DSN)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, "store.NewStore", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	s := &Store{
		db:                 db,
		maxIdleTime:        cfg.MaxIdleTime,
		deadlockRetries:    cfg.DeadlockRetries,
		deadlockRetryDelay: cfg.DeadlockRetryDelay,
		namedLocks:         make(map[string]*sync.Mutex),
	}
	if s.deadlockRetries <= 0 {
		s.deadlockRetries = 5
	}
	if s.deadlockRetryDelay <= 0 {
		s.deadlockRetryDelay = 200 * time.Millisecond
	}
	if s.maxIdleTime <= 0 {
		s.maxIdleTime = 10 * time.Minute
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, classify("store.NewStore", err)
	}
	s.lastPing = time.Now()
	return s, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// EngineVersion reports the storage engine's own version string (MySQL's
// SELECT VERSION()), mirroring the original source's Helper/Versions
// library-version report — surfaced by buildinfo over the control
// surface's status command.
func (s *Store) EngineVersion(ctx context.Context) (string, error) {
	const op = "store.EngineVersion"
	if err := s.checkConnection(ctx); err != nil {
		return "", err
	}
	var version string
	if err := s.db.QueryRowContext(ctx, "SELECT VERSION()").Scan(&version); err != nil {
		return "", classify(op, err)
	}
	return version, nil
}

// checkConnection verifies the pool is alive, recycling idle connections
// older than maxIdleTime. Exported methods that run SQL call this first
// (ReadColumn and CreateSchema do not), matching
// spec.md §4.1's connection-hygiene contract.
func (s *Store) checkConnection(ctx context.Context) error {
	s.pingMu.Lock()
	defer s.pingMu.Unlock()

	if time.Since(s.lastPing) < s.maxIdleTime {
		return nil
	}
	if err := s.db.PingContext(ctx); err != nil {
		return classify("store.checkConnection", err)
	}
	s.lastPing = time.Now()

	// Re-prepare statements invalidated by a possible reconnect, matching
	// spec.md §4.1's "all prepared statements are re-prepared after
	// recycling".
	s.stmtsMu.Lock()
	defer s.stmtsMu.Unlock()
	for i, old := range s.stmts {
		if old == nil {
			continue
		}
		stmt, err := s.db.PrepareContext(ctx, s.queries[i])
		if err != nil {
			return classify("store.checkConnection", err)
		}
		old.Close()
		s.stmts[i] = stmt
	}
	return nil
}

// prepare registers query under a stable small integer id, the teacher's
// addPreparedStatement/getPreparedStatement pattern (spec.md Design Notes)
// generalized from a Cassandra query handle registry to database/sql
// *sql.Stmt. Call once per distinct query at Store construction time or
// lazily; the returned id never changes across a reconnect.
func (s *Store) prepare(ctx context.Context, query string) (int, error) {
	stmt, err := s.db.PrepareContext(ctx, query)
	if err != nil {
		return 0, classify("store.prepare", err)
	}
	s.stmtsMu.Lock()
	defer s.stmtsMu.Unlock()
	id := len(s.stmts)
	s.stmts = append(s.stmts, stmt)
	s.queries = append(s.queries, query)
	return id, nil
}

func (s *Store) stmt(id int) *sql.Stmt {
	s.stmtsMu.Lock()
	defer s.stmtsMu.Unlock()
	return s.stmts[id]
}

// withDeadlockRetry runs fn, retrying when the failure classifies as
// Transient (MySQL 1213 deadlock / 1205 lock wait timeout), up to
// deadlockRetries times with a fixed delay between attempts. Every
// multi-statement store operation goes through this, per spec.md §4.1 "all
// SQL execution is wrapped with a deadlock-retry loop".
func (s *Store) withDeadlockRetry(ctx context.Context, op string, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= s.deadlockRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if !errs.IsTransient(err) {
			return err
		}
		select {
		case <-ctx.Done():
			return errs.Wrap(errs.Transient, op, ctx.Err())
		case <-time.After(s.deadlockRetryDelay):
		}
	}
	return fmt.Errorf("%s: exhausted %d deadlock retries: %w", op, s.deadlockRetries, lastErr)
}

// LockNamed acquires a process-wide advisory lock identified by name and
// returns a function that releases it. Used to serialize cross-module
// operations such as AddOrGetTargetTable (spec.md §4.1 lock_named).
//
// This mirrors the teacher's single console-wide datastore mutex, widened
// from "one lock for everything" to one lock per name so unrelated
// provisioning operations don't serialize against each other.
func (s *Store) LockNamed(name string) (unlock func()) {
	s.namedLocksMu.Lock()
	mu, ok := s.namedLocks[name]
	if !ok {
		mu = &sync.Mutex{}
		s.namedLocks[name] = mu
	}
	s.namedLocksMu.Unlock()

	mu.Lock()
	return mu.Unlock
}
