package control

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/sessions"
	"github.com/unrolled/render"

	"github.com/crawlserv/crawlserv/store"
	"github.com/crawlserv/crawlserv/thread"
)

// Server is the control surface's dependency set: the storage backend, the
// thread supervisor shared by every running module, and a Launcher that
// knows how to build a thread.Module from a Thread row. cmd/crawlserv wires
// concrete implementations of all three; control itself stays ignorant of
// crawler/parser/extractor/markov.
type Server struct {
	backend    store.Backend
	supervisor *thread.Supervisor
	launcher   Launcher

	access       *AccessList
	allowOrigin  string
	render       *render.Render
	sessionStore *sessions.CookieStore
}

// Options holds the same fields as config.go's ServerConfig.Control block;
// cmd/crawlserv passes Config.Control's fields through by value since that
// block is an anonymous struct and cannot be named from outside the package.
type Options struct {
	AllowedIPs        []string
	AllowOrigin       string
	TemplateDirectory string
	SessionSecret     string
}

// New builds a Server from the already-constructed backend/supervisor/
// launcher plus config.go's ServerConfig.Control block.
func New(backend store.Backend, supervisor *thread.Supervisor, launcher Launcher, opts Options) *Server {
	return &Server{
		backend:      backend,
		supervisor:   supervisor,
		launcher:     launcher,
		access:       NewAccessList(opts.AllowedIPs),
		allowOrigin:  opts.AllowOrigin,
		render:       buildRender(opts.TemplateDirectory),
		sessionStore: sessions.NewCookieStore([]byte(opts.SessionSecret)),
	}
}

// RestRoutes enumerates the JSON command plane, grounded on
// console/rest.go's RestRoutes.
func (s *Server) RestRoutes() []Route {
	return []Route{
		{Path: "/rest/status", Methods: []string{"GET"}, Handler: s.handleStatus},

		{Path: "/rest/threads", Methods: []string{"GET"}, Handler: s.handleListThreads},
		{Path: "/rest/threads", Methods: []string{"POST"}, Handler: s.handleStart},
		{Path: "/rest/threads/{id}/pause", Methods: []string{"POST"}, Handler: s.handlePause},
		{Path: "/rest/threads/{id}/unpause", Methods: []string{"POST"}, Handler: s.handleUnpause},
		{Path: "/rest/threads/{id}/stop", Methods: []string{"POST"}, Handler: s.handleStop},
		{Path: "/rest/threads/{id}/reset", Methods: []string{"POST"}, Handler: s.handleReset},
		{Path: "/rest/threads/{id}/send_interrupt", Methods: []string{"POST"}, Handler: s.handleSendInterrupt},
		{Path: "/rest/threads/{id}/finish_interrupt", Methods: []string{"POST"}, Handler: s.handleFinishInterrupt},

		{Path: "/rest/access", Methods: []string{"GET"}, Handler: s.handleListAccess},
		{Path: "/rest/access/allow", Methods: []string{"POST"}, Handler: s.handleAllow},
		{Path: "/rest/access/disallow", Methods: []string{"POST"}, Handler: s.handleDisallow},
		{Path: "/rest/access/kill", Methods: []string{"POST"}, Handler: s.handleKill},

		{Path: "/rest/log/{module}", Methods: []string{"GET"}, Handler: s.handleRecentLog},
		{Path: "/rest/log/{module}", Methods: []string{"POST"}, Handler: s.handleAppendLog},
		{Path: "/rest/log/{module}/clear", Methods: []string{"POST"}, Handler: s.handleClearLog},

		{Path: "/rest/websites", Methods: []string{"GET"}, Handler: s.handleListWebsites},
		{Path: "/rest/websites", Methods: []string{"POST"}, Handler: s.handleCreateWebsite},
		{Path: "/rest/websites/{id}", Methods: []string{"GET"}, Handler: s.handleGetWebsite},
		{Path: "/rest/websites/{id}", Methods: []string{"DELETE"}, Handler: s.handleDeleteWebsite},

		{Path: "/rest/lists", Methods: []string{"GET"}, Handler: s.handleListLists},
		{Path: "/rest/lists", Methods: []string{"POST"}, Handler: s.handleCreateList},
		{Path: "/rest/lists/{id}", Methods: []string{"GET"}, Handler: s.handleGetList},
		{Path: "/rest/lists/{id}", Methods: []string{"DELETE"}, Handler: s.handleDeleteList},

		{Path: "/rest/queries", Methods: []string{"GET"}, Handler: s.handleListQueries},
		{Path: "/rest/queries", Methods: []string{"POST"}, Handler: s.handleCreateQuery},
		{Path: "/rest/queries/{id}", Methods: []string{"GET"}, Handler: s.handleGetQuery},
		{Path: "/rest/queries/{id}", Methods: []string{"DELETE"}, Handler: s.handleDeleteQuery},

		{Path: "/rest/configs", Methods: []string{"GET"}, Handler: s.handleListConfigs},
		{Path: "/rest/configs", Methods: []string{"POST"}, Handler: s.handleCreateConfig},
		{Path: "/rest/configs/{id}", Methods: []string{"GET"}, Handler: s.handleGetConfig},
		{Path: "/rest/configs/{id}", Methods: []string{"PUT"}, Handler: s.handleUpdateConfig},
		{Path: "/rest/configs/{id}", Methods: []string{"DELETE"}, Handler: s.handleDeleteConfig},

		{Path: "/rest/tables", Methods: []string{"POST"}, Handler: s.handleAddOrGetTargetTable},
	}
}

// Routes enumerates the read-only HTML dashboard, grounded on
// console/controllers.go's Routes.
func (s *Server) Routes() []Route {
	return []Route{
		{Path: "/", Methods: []string{"GET"}, Handler: s.handleDashboardHome},
		{Path: "/threads", Methods: []string{"GET"}, Handler: s.handleDashboardThreads},
		{Path: "/websites", Methods: []string{"GET"}, Handler: s.handleDashboardWebsites},
	}
}

func (s *Server) buildRouter() *mux.Router {
	router := mux.NewRouter()
	for _, route := range s.RestRoutes() {
		router.HandleFunc(route.Path, route.Handler).Methods(route.Methods...)
	}
	for _, route := range s.Routes() {
		router.HandleFunc(route.Path, route.Handler).Methods(route.Methods...)
	}
	return router
}

// Handler builds the fully wired http.Handler: IP allow-list, then CORS,
// then routing, matching spec.md §4.7's "allow-list of client IPs;
// Access-Control-Allow-Origin configurable".
func (s *Server) Handler() http.Handler {
	return ipAllowMiddleware(s.access, corsMiddleware(s.allowOrigin, s.buildRouter()))
}

// ListenAndServe starts the control surface on addr, blocking until the
// listener returns (typically on process shutdown or a listener error).
func (s *Server) ListenAndServe(addr string) error {
	return http.ListenAndServe(addr, s.Handler())
}
