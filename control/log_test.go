package control

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/mock"

	"github.com/crawlserv/crawlserv"
	"github.com/crawlserv/crawlserv/store"
)

func withModuleVar(req *http.Request, module string) *http.Request {
	return mux.SetURLVars(req, map[string]string{"module": module})
}

func TestHandleRecentLogDefaultsCount(t *testing.T) {
	backend := &store.MockBackend{}
	backend.On("RecentLogs", mock.Anything, crawlserv.ModuleCrawler, 100).
		Return([]crawlserv.LogEntry{{ID: 1, Entry: "hello"}}, error(nil))

	s := &Server{backend: backend}
	req := httptest.NewRequest(http.MethodGet, "/rest/log/crawler", nil)
	req = withModuleVar(req, "crawler")
	rec := httptest.NewRecorder()

	s.handleRecentLog(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	backend.AssertExpectations(t)
}

func TestHandleRecentLogHonorsCountParam(t *testing.T) {
	backend := &store.MockBackend{}
	backend.On("RecentLogs", mock.Anything, crawlserv.ModuleParser, 5).
		Return([]crawlserv.LogEntry{}, error(nil))

	s := &Server{backend: backend}
	req := httptest.NewRequest(http.MethodGet, "/rest/log/parser?count=5", nil)
	req = withModuleVar(req, "parser")
	rec := httptest.NewRecorder()

	s.handleRecentLog(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	backend.AssertExpectations(t)
}

func TestHandleAppendLog(t *testing.T) {
	backend := &store.MockBackend{}
	backend.On("InsertLog", mock.Anything, crawlserv.ModuleExtractor, "did a thing").Return(error(nil))

	s := &Server{backend: backend}
	body, _ := json.Marshal(appendLogRequest{Entry: "did a thing"})
	req := httptest.NewRequest(http.MethodPost, "/rest/log/extractor", bytes.NewReader(body))
	req = withModuleVar(req, "extractor")
	rec := httptest.NewRecorder()

	s.handleAppendLog(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	backend.AssertExpectations(t)
}

func TestHandleClearLog(t *testing.T) {
	backend := &store.MockBackend{}
	backend.On("ClearLog", mock.Anything, crawlserv.ModuleAnalyzer).Return(error(nil))

	s := &Server{backend: backend}
	req := httptest.NewRequest(http.MethodPost, "/rest/log/analyzer/clear", nil)
	req = withModuleVar(req, "analyzer")
	rec := httptest.NewRecorder()

	s.handleClearLog(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	backend.AssertExpectations(t)
}
