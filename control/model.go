// Package control implements the control surface (C7): a JSON-over-HTTP
// command plane plus a small read-only HTML status dashboard, grounded on
// the teacher's console package (console/rest.go's version/tag/message
// envelope, console/controllers.go's Route-table-over-mux.Router shape,
// console/rendering.go's unrolled/render + gorilla/sessions pairing),
// generalized from walker's domain/link-focused routes to spec.md §4.7's
// command categories: kill/allow/disallow, log/clearlog,
// start/pause/unpause/stop/reset, and CRUD over website/list/query/config.
package control

import (
	"context"
	"fmt"
	"net/http"

	"github.com/crawlserv/crawlserv"
	"github.com/crawlserv/crawlserv/thread"
)

// Route pairs a path with its handler, mirroring console/controllers.go's
// Route struct; Server.buildRouter walks a []Route into a *mux.Router.
type Route struct {
	Path    string
	Methods []string
	Handler http.HandlerFunc
}

// Launcher builds the thread.Module implementation a Thread row's Module
// field names, decoding that row's Configuration JSON blob as needed.
// control depends on this instead of importing crawler/parser/extractor/
// markov directly, keeping the command plane ignorant of any one module's
// concrete config shape — cmd/crawlserv supplies the real implementation at
// wire-up time.
type Launcher interface {
	Launch(ctx context.Context, t crawlserv.Thread, resumed bool) (thread.Module, error)
}

// envelope is the JSON response shape every command reply shares, grounded
// on console/rest.go's restErrorResponse (version/tag/message), generalized
// to also carry a successful payload.
type envelope struct {
	Version int         `json:"version"`
	Tag     string      `json:"tag"`
	Message string      `json:"message,omitempty"`
	Payload interface{} `json:"payload,omitempty"`
}

const envelopeVersion = 1

func ok(payload interface{}) envelope {
	return envelope{Version: envelopeVersion, Tag: "ok", Payload: payload}
}

func fail(tag, format string, args ...interface{}) envelope {
	return envelope{Version: envelopeVersion, Tag: tag, Message: fmt.Sprintf(format, args...)}
}
