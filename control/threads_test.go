package control

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/mock"

	"github.com/crawlserv/crawlserv"
	"github.com/crawlserv/crawlserv/store"
	"github.com/crawlserv/crawlserv/thread"
)

type stubLauncher struct {
	module thread.Module
	err    error
}

func (l *stubLauncher) Launch(ctx context.Context, t crawlserv.Thread, resumed bool) (thread.Module, error) {
	return l.module, l.err
}

func testSupervisor(backend store.Backend) *thread.Supervisor {
	return thread.NewSupervisor(backend, thread.Config{
		FlushInterval:        20 * time.Millisecond,
		SleepOnConnectionErr: 5 * time.Millisecond,
		MaxConnectionRetries: 2,
	})
}

func withIDVar(req *http.Request, id string) *http.Request {
	return mux.SetURLVars(req, map[string]string{"id": id})
}

func TestHandleListThreads(t *testing.T) {
	backend := &store.MockBackend{}
	backend.On("ListThreads", mock.Anything).Return([]crawlserv.Thread{{ID: 1}}, error(nil))

	s := &Server{backend: backend}
	req := httptest.NewRequest(http.MethodGet, "/rest/threads", nil)
	rec := httptest.NewRecorder()

	s.handleListThreads(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	backend.AssertExpectations(t)
}

func TestHandleStartPropagatesLaunchFailure(t *testing.T) {
	backend := &store.MockBackend{}
	backend.On("CreateThread", mock.Anything, mock.Anything).Return(uint64(7), error(nil))

	s := &Server{
		backend:    backend,
		supervisor: testSupervisor(backend),
		launcher:   &stubLauncher{err: errors.New("bad config")},
	}

	body, _ := json.Marshal(startThreadRequest{Module: crawlserv.ModuleCrawler, WebsiteID: 1, ListID: 1, ConfigID: 1})
	req := httptest.NewRequest(http.MethodPost, "/rest/threads", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	s.handleStart(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 on launch failure, got %d", rec.Code)
	}
	backend.AssertCalled(t, "CreateThread", mock.Anything, mock.Anything)
}

func TestHandleStartRegistersThread(t *testing.T) {
	backend := &store.MockBackend{}
	backend.On("CreateThread", mock.Anything, mock.Anything).Return(uint64(9), error(nil))
	backend.On("UpdateThreadStatus", mock.Anything, mock.Anything).Return(error(nil)).Maybe()

	module := &thread.MockModule{}
	module.On("OnInit", mock.Anything, false).Return(error(nil))
	module.On("OnTick", mock.Anything).Return(errors.New("stop immediately"))
	module.On("OnClear").Return(error(nil))

	s := &Server{
		backend:    backend,
		supervisor: testSupervisor(backend),
		launcher:   &stubLauncher{module: module},
	}

	body, _ := json.Marshal(startThreadRequest{Module: crawlserv.ModuleCrawler, WebsiteID: 1, ListID: 1, ConfigID: 1})
	req := httptest.NewRequest(http.MethodPost, "/rest/threads", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	s.handleStart(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHandlePauseNotFound(t *testing.T) {
	backend := &store.MockBackend{}
	s := &Server{backend: backend, supervisor: testSupervisor(backend)}

	req := httptest.NewRequest(http.MethodPost, "/rest/threads/1/pause", nil)
	req = withIDVar(req, "1")
	rec := httptest.NewRecorder()

	s.handlePause(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown thread, got %d", rec.Code)
	}
}

func TestHandlePauseBadID(t *testing.T) {
	s := &Server{}
	req := httptest.NewRequest(http.MethodPost, "/rest/threads/abc/pause", nil)
	req = withIDVar(req, "abc")
	rec := httptest.NewRecorder()

	s.handlePause(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for non-numeric id, got %d", rec.Code)
	}
}

func TestHandleResetDeletesThreadRow(t *testing.T) {
	backend := &store.MockBackend{}
	backend.On("DeleteThread", mock.Anything, uint64(42)).Return(error(nil))

	s := &Server{backend: backend, supervisor: testSupervisor(backend)}

	req := httptest.NewRequest(http.MethodPost, "/rest/threads/42/reset", nil)
	req = withIDVar(req, "42")
	rec := httptest.NewRecorder()

	s.handleReset(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	backend.AssertCalled(t, "DeleteThread", mock.Anything, uint64(42))
}

func TestHandleFinishInterruptRejectsNonInterruptedThread(t *testing.T) {
	backend := &store.MockBackend{}
	backend.On("GetThread", mock.Anything, uint64(3)).Return(crawlserv.Thread{ID: 3, Status: crawlserv.ThreadRunning}, error(nil))

	s := &Server{backend: backend, supervisor: testSupervisor(backend)}

	req := httptest.NewRequest(http.MethodPost, "/rest/threads/3/finish_interrupt", nil)
	req = withIDVar(req, "3")
	rec := httptest.NewRecorder()

	s.handleFinishInterrupt(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for a non-interrupted thread, got %d", rec.Code)
	}
}
