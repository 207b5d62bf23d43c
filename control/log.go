package control

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/crawlserv/crawlserv"
)

// handleRecentLog implements spec.md §4.7's log command: the most recent N
// entries for one module, newest first.
func (s *Server) handleRecentLog(w http.ResponseWriter, r *http.Request) {
	module := crawlserv.Module(mux.Vars(r)["module"])
	count := 100
	if raw := r.URL.Query().Get("count"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			count = n
		}
	}
	entries, err := s.backend.RecentLogs(r.Context(), module, count)
	if err != nil {
		replyServerError(w, "RecentLogs", err)
		return
	}
	replyJSON(w, http.StatusOK, ok(entries))
}

type appendLogRequest struct {
	Entry string `json:"entry"`
}

func (s *Server) handleAppendLog(w http.ResponseWriter, r *http.Request) {
	module := crawlserv.Module(mux.Vars(r)["module"])
	var req appendLogRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		replyJSON(w, http.StatusBadRequest, fail("bad-json-decode", "%v", err))
		return
	}
	if err := s.backend.InsertLog(r.Context(), module, req.Entry); err != nil {
		replyServerError(w, "InsertLog", err)
		return
	}
	replyJSON(w, http.StatusOK, ok(nil))
}

// handleClearLog implements spec.md §4.7's clearlog command.
func (s *Server) handleClearLog(w http.ResponseWriter, r *http.Request) {
	module := crawlserv.Module(mux.Vars(r)["module"])
	if err := s.backend.ClearLog(r.Context(), module); err != nil {
		replyServerError(w, "ClearLog", err)
		return
	}
	replyJSON(w, http.StatusOK, ok(nil))
}
