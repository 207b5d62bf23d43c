package control

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/mock"

	"github.com/crawlserv/crawlserv/store"
)

func TestHandleStatusReportsEngineVersion(t *testing.T) {
	backend := &store.MockBackend{}
	backend.On("EngineVersion", mock.Anything).Return("8.0.35", error(nil))

	s := &Server{backend: backend}
	req := httptest.NewRequest(http.MethodGet, "/rest/status", nil)
	rec := httptest.NewRecorder()

	s.handleStatus(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHandleStatusPropagatesBackendFailure(t *testing.T) {
	backend := &store.MockBackend{}
	backend.On("EngineVersion", mock.Anything).Return("", errNotFound)

	s := &Server{backend: backend}
	req := httptest.NewRequest(http.MethodGet, "/rest/status", nil)
	rec := httptest.NewRecorder()

	s.handleStatus(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}
