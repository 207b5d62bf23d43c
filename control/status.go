package control

import (
	"net/http"

	"github.com/crawlserv/crawlserv/buildinfo"
)

// handleStatus reports the running binary's version and the storage
// engine's reported version string, grounded on original_source's
// Helper/Versions startup banner and surfaced here instead as an on-demand
// control-surface command.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	report, err := buildinfo.Collect(r.Context(), s.backend)
	if err != nil {
		replyServerError(w, "buildinfo.Collect", err)
		return
	}
	replyJSON(w, http.StatusOK, ok(report))
}
