package control

import (
	"net/http"
	"strconv"
)

// handleDashboardHome renders the landing page: counts only, grounded on
// console/controllers.go's HomeController.
func (s *Server) handleDashboardHome(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	threads, err := s.backend.ListThreads(ctx)
	if err != nil {
		replyServerError(w, "ListThreads", err)
		return
	}
	sites, err := s.backend.ListWebsites(ctx)
	if err != nil {
		replyServerError(w, "ListWebsites", err)
		return
	}
	s.render.HTML(w, http.StatusOK, "home", map[string]interface{}{
		"ThreadCount":  len(threads),
		"WebsiteCount": len(sites),
	})
}

// handleDashboardThreads renders the thread list, paginated by a cursor
// remembered in the visitor's session, grounded on console/controllers.go's
// ListDomainsController/console/rendering.go's Session pagination.
func (s *Server) handleDashboardThreads(w http.ResponseWriter, r *http.Request) {
	sess, err := getSession(s.sessionStore, w, r)
	if err != nil {
		replyServerError(w, "getSession", err)
		return
	}

	if raw := r.URL.Query().Get("cursor"); raw != "" {
		if c, err := strconv.ParseUint(raw, 10, 64); err == nil {
			sess.setCursor(c)
		}
	}

	threads, err := s.backend.ListThreads(r.Context())
	if err != nil {
		replyServerError(w, "ListThreads", err)
		return
	}

	s.render.HTML(w, http.StatusOK, "threads", map[string]interface{}{
		"Threads": threads,
		"Cursor":  sess.cursor(),
		"Ftime":   ftimeFunc,
	})
}

// handleDashboardWebsites renders the website list.
func (s *Server) handleDashboardWebsites(w http.ResponseWriter, r *http.Request) {
	sites, err := s.backend.ListWebsites(r.Context())
	if err != nil {
		replyServerError(w, "ListWebsites", err)
		return
	}
	s.render.HTML(w, http.StatusOK, "websites", map[string]interface{}{
		"Websites": sites,
	})
}
