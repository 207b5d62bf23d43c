package control

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/crawlserv/crawlserv"
	"github.com/crawlserv/crawlserv/errs"
)

// handleListThreads implements the read side of spec.md §4.7's thread CRUD.
func (s *Server) handleListThreads(w http.ResponseWriter, r *http.Request) {
	threads, err := s.backend.ListThreads(r.Context())
	if err != nil {
		replyServerError(w, "ListThreads", err)
		return
	}
	replyJSON(w, http.StatusOK, ok(threads))
}

type startThreadRequest struct {
	Module    crawlserv.Module `json:"module"`
	WebsiteID uint64           `json:"website_id"`
	ListID    uint64           `json:"list_id"`
	ConfigID  uint64           `json:"config_id"`
}

// handleStart implements spec.md §4.3's start: create a fresh Thread row and
// hand it to the Launcher/Supervisor pair.
func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req startThreadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		replyJSON(w, http.StatusBadRequest, fail("bad-json-decode", "%v", err))
		return
	}

	row := crawlserv.Thread{
		Module:    req.Module,
		WebsiteID: req.WebsiteID,
		ListID:    req.ListID,
		ConfigID:  req.ConfigID,
		Status:    crawlserv.ThreadNew,
	}

	ctx := r.Context()
	id, err := s.backend.CreateThread(ctx, row)
	if err != nil {
		replyServerError(w, "CreateThread", err)
		return
	}
	row.ID = id

	if err := s.launch(ctx, row, false); err != nil {
		replyServerError(w, "start", err)
		return
	}
	replyJSON(w, http.StatusOK, ok(map[string]uint64{"id": id}))
}

func (s *Server) launch(ctx context.Context, row crawlserv.Thread, resumed bool) error {
	const op = "control.launch"
	module, err := s.launcher.Launch(ctx, row, resumed)
	if err != nil {
		return errs.Wrap(errs.Internal, op, err)
	}
	return s.supervisor.Register(ctx, row, module, resumed)
}

func threadIDFromPath(r *http.Request) (uint64, error) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		return 0, errs.New(errs.InvalidInput, "control.threadIDFromPath", "invalid thread id")
	}
	return id, nil
}

// handlePause implements spec.md §4.3's pause, which may be refused.
func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	id, err := threadIDFromPath(r)
	if err != nil {
		replyJSON(w, http.StatusBadRequest, fail("bad-id", "%v", err))
		return
	}
	paused, err := s.supervisor.Pause(id)
	if err != nil {
		replyJSON(w, http.StatusNotFound, fail("not-found", "%v", err))
		return
	}
	if !paused {
		replyJSON(w, http.StatusOK, fail("pause-disallowed", "thread %d refused to pause", id))
		return
	}
	replyJSON(w, http.StatusOK, ok(nil))
}

// handleUnpause implements spec.md §4.3's unpause (idempotent).
func (s *Server) handleUnpause(w http.ResponseWriter, r *http.Request) {
	id, err := threadIDFromPath(r)
	if err != nil {
		replyJSON(w, http.StatusBadRequest, fail("bad-id", "%v", err))
		return
	}
	if err := s.supervisor.Unpause(id); err != nil {
		replyJSON(w, http.StatusNotFound, fail("not-found", "%v", err))
		return
	}
	replyJSON(w, http.StatusOK, ok(nil))
}

// handleStop implements spec.md §4.3's stop: cooperative shutdown, row kept
// for inspection.
func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	id, err := threadIDFromPath(r)
	if err != nil {
		replyJSON(w, http.StatusBadRequest, fail("bad-id", "%v", err))
		return
	}
	if err := s.supervisor.Stop(id); err != nil {
		replyJSON(w, http.StatusNotFound, fail("not-found", "%v", err))
		return
	}
	replyJSON(w, http.StatusOK, ok(nil))
}

// handleReset stops a thread (if running) and removes its Thread row
// entirely, so the next start begins from a clean row — a deliberate scope
// decision for the command spec.md §4.7 names only as a category, recorded
// in DESIGN.md's control ledger entry.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	id, err := threadIDFromPath(r)
	if err != nil {
		replyJSON(w, http.StatusBadRequest, fail("bad-id", "%v", err))
		return
	}
	_ = s.supervisor.Stop(id) // already-stopped threads are not an error here
	if err := s.backend.DeleteThread(r.Context(), id); err != nil {
		replyServerError(w, "DeleteThread", err)
		return
	}
	replyJSON(w, http.StatusOK, ok(nil))
}

// handleSendInterrupt implements spec.md §4.3's send_interrupt.
func (s *Server) handleSendInterrupt(w http.ResponseWriter, r *http.Request) {
	id, err := threadIDFromPath(r)
	if err != nil {
		replyJSON(w, http.StatusBadRequest, fail("bad-id", "%v", err))
		return
	}
	if err := s.supervisor.SendInterrupt(r.Context(), id); err != nil {
		replyJSON(w, http.StatusNotFound, fail("not-found", "%v", err))
		return
	}
	replyJSON(w, http.StatusOK, ok(nil))
}

// handleFinishInterrupt implements spec.md §4.3's finish_interrupt: resume
// an interrupted Thread row by re-launching its Module with resumed=true.
func (s *Server) handleFinishInterrupt(w http.ResponseWriter, r *http.Request) {
	id, err := threadIDFromPath(r)
	if err != nil {
		replyJSON(w, http.StatusBadRequest, fail("bad-id", "%v", err))
		return
	}

	ctx := r.Context()
	row, err := s.backend.GetThread(ctx, id)
	if err != nil {
		replyJSON(w, http.StatusNotFound, fail("not-found", "%v", err))
		return
	}
	if row.Status != crawlserv.ThreadInterrupted {
		replyJSON(w, http.StatusConflict, fail("not-interrupted", "thread %d is not interrupted", id))
		return
	}

	if err := s.launch(ctx, row, true); err != nil {
		replyServerError(w, "finish_interrupt", err)
		return
	}
	if err := s.supervisor.FinishInterrupt(ctx, id); err != nil {
		replyServerError(w, "FinishInterrupt", err)
		return
	}
	replyJSON(w, http.StatusOK, ok(nil))
}
