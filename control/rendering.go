package control

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/sessions"
	"github.com/unrolled/render"

	"github.com/crawlserv/crawlserv/logging"
)

var timeFormat = "2006-01-02 15:04:05 -0700"

func ftimeFunc(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.Format(timeFormat)
}

// buildRender constructs the unrolled/render instance the dashboard's HTML
// controllers share, grounded on console/rendering.go's BuildRender.
func buildRender(templateDir string) *render.Render {
	return render.New(render.Options{
		Directory:  templateDir,
		Layout:     "layout",
		IndentJSON: true,
	})
}

// replyJSON writes env as the response body with the given status code.
// Callers pass a 4xx status for command failures (400, 404, 409) and the
// envelope still reports the failure's tag/message, since JSON clients
// parse the envelope either way.
func replyJSON(w http.ResponseWriter, status int, env envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(env); err != nil {
		logging.Error("control: failed to encode response: %v", err)
	}
}

func replyServerError(w http.ResponseWriter, op string, err error) {
	logging.Error("control: %s failed: %v", op, err)
	replyJSON(w, http.StatusInternalServerError, fail("server-error", "%s: %v", op, err))
}

// session wraps one request's gorilla/sessions cookie, used only for the
// HTML dashboard's pagination cursor — the JSON command API is stateless
// and authenticates solely via the IP allow-list.
type session struct {
	req  *http.Request
	w    http.ResponseWriter
	sess *sessions.Session
}

const dashboardCursorKey = "dashboard-cursor"

func getSession(store *sessions.CookieStore, w http.ResponseWriter, req *http.Request) (*session, error) {
	sess, err := store.Get(req, "crawlserv-dashboard")
	if err != nil {
		return nil, err
	}
	return &session{req: req, w: w, sess: sess}, nil
}

func (s *session) cursor() uint64 {
	v, ok := s.sess.Values[dashboardCursorKey]
	if !ok {
		return 0
	}
	c, ok := v.(uint64)
	if !ok {
		return 0
	}
	return c
}

func (s *session) setCursor(c uint64) {
	s.sess.Values[dashboardCursorKey] = c
	if err := s.sess.Save(s.req, s.w); err != nil {
		logging.Error("control: failed to save dashboard session: %v", err)
	}
}
