package control

import (
	"encoding/json"
	"net/http"
)

type ipRequest struct {
	IP string `json:"ip"`
}

func decodeIPRequest(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req ipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		replyJSON(w, http.StatusBadRequest, fail("bad-json-decode", "%v", err))
		return "", false
	}
	if req.IP == "" {
		replyJSON(w, http.StatusBadRequest, fail("missing-ip", "ip is required"))
		return "", false
	}
	return req.IP, true
}

// handleListAccess is the read side of allow/disallow: the current
// allow-list snapshot.
func (s *Server) handleListAccess(w http.ResponseWriter, r *http.Request) {
	replyJSON(w, http.StatusOK, ok(map[string][]string{"allowed": s.access.Snapshot()}))
}

func (s *Server) handleAllow(w http.ResponseWriter, r *http.Request) {
	ip, valid := decodeIPRequest(w, r)
	if !valid {
		return
	}
	s.access.Allow(ip)
	replyJSON(w, http.StatusOK, ok(nil))
}

func (s *Server) handleDisallow(w http.ResponseWriter, r *http.Request) {
	ip, valid := decodeIPRequest(w, r)
	if !valid {
		return
	}
	s.access.Disallow(ip)
	replyJSON(w, http.StatusOK, ok(nil))
}

// handleKill is spec.md §4.7's kill command: functionally identical to
// disallow, but recorded at warn level by AccessList.Kill as an operator
// cutting off a client actively misbehaving.
func (s *Server) handleKill(w http.ResponseWriter, r *http.Request) {
	ip, valid := decodeIPRequest(w, r)
	if !valid {
		return
	}
	s.access.Kill(ip)
	replyJSON(w, http.StatusOK, ok(nil))
}
