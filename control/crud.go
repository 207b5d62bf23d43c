package control

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/crawlserv/crawlserv"
	"github.com/crawlserv/crawlserv/store"
)

func idFromPath(r *http.Request, name string) (uint64, bool) {
	id, err := strconv.ParseUint(mux.Vars(r)[name], 10, 64)
	return id, err == nil
}

func queryUint(r *http.Request, name string) uint64 {
	v, _ := strconv.ParseUint(r.URL.Query().Get(name), 10, 64)
	return v
}

// -- websites --

func (s *Server) handleCreateWebsite(w http.ResponseWriter, r *http.Request) {
	var site crawlserv.Website
	if err := json.NewDecoder(r.Body).Decode(&site); err != nil {
		replyJSON(w, http.StatusBadRequest, fail("bad-json-decode", "%v", err))
		return
	}
	id, err := s.backend.CreateWebsite(r.Context(), site)
	if err != nil {
		replyServerError(w, "CreateWebsite", err)
		return
	}
	replyJSON(w, http.StatusOK, ok(map[string]uint64{"id": id}))
}

func (s *Server) handleGetWebsite(w http.ResponseWriter, r *http.Request) {
	id, valid := idFromPath(r, "id")
	if !valid {
		replyJSON(w, http.StatusBadRequest, fail("bad-id", "invalid website id"))
		return
	}
	site, err := s.backend.GetWebsite(r.Context(), id)
	if err != nil {
		replyJSON(w, http.StatusNotFound, fail("not-found", "%v", err))
		return
	}
	replyJSON(w, http.StatusOK, ok(site))
}

func (s *Server) handleListWebsites(w http.ResponseWriter, r *http.Request) {
	sites, err := s.backend.ListWebsites(r.Context())
	if err != nil {
		replyServerError(w, "ListWebsites", err)
		return
	}
	replyJSON(w, http.StatusOK, ok(sites))
}

func (s *Server) handleDeleteWebsite(w http.ResponseWriter, r *http.Request) {
	id, valid := idFromPath(r, "id")
	if !valid {
		replyJSON(w, http.StatusBadRequest, fail("bad-id", "invalid website id"))
		return
	}
	if err := s.backend.DeleteWebsite(r.Context(), id); err != nil {
		replyServerError(w, "DeleteWebsite", err)
		return
	}
	replyJSON(w, http.StatusOK, ok(nil))
}

// -- lists --

type createListRequest struct {
	List       crawlserv.UrlList `json:"list"`
	Compressed bool              `json:"compressed"`
}

func (s *Server) handleCreateList(w http.ResponseWriter, r *http.Request) {
	var req createListRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		replyJSON(w, http.StatusBadRequest, fail("bad-json-decode", "%v", err))
		return
	}
	ctx := r.Context()
	site, err := s.backend.GetWebsite(ctx, req.List.WebsiteID)
	if err != nil {
		replyJSON(w, http.StatusNotFound, fail("not-found", "%v", err))
		return
	}
	id, err := s.backend.CreateList(ctx, site, req.List, req.Compressed)
	if err != nil {
		replyServerError(w, "CreateList", err)
		return
	}
	replyJSON(w, http.StatusOK, ok(map[string]uint64{"id": id}))
}

func (s *Server) handleGetList(w http.ResponseWriter, r *http.Request) {
	id, valid := idFromPath(r, "id")
	if !valid {
		replyJSON(w, http.StatusBadRequest, fail("bad-id", "invalid list id"))
		return
	}
	list, err := s.backend.GetList(r.Context(), id)
	if err != nil {
		replyJSON(w, http.StatusNotFound, fail("not-found", "%v", err))
		return
	}
	replyJSON(w, http.StatusOK, ok(list))
}

func (s *Server) handleListLists(w http.ResponseWriter, r *http.Request) {
	lists, err := s.backend.ListLists(r.Context(), queryUint(r, "website_id"))
	if err != nil {
		replyServerError(w, "ListLists", err)
		return
	}
	replyJSON(w, http.StatusOK, ok(lists))
}

func (s *Server) handleDeleteList(w http.ResponseWriter, r *http.Request) {
	id, valid := idFromPath(r, "id")
	if !valid {
		replyJSON(w, http.StatusBadRequest, fail("bad-id", "invalid list id"))
		return
	}
	ctx := r.Context()
	list, err := s.backend.GetList(ctx, id)
	if err != nil {
		replyJSON(w, http.StatusNotFound, fail("not-found", "%v", err))
		return
	}
	site, err := s.backend.GetWebsite(ctx, list.WebsiteID)
	if err != nil {
		replyJSON(w, http.StatusNotFound, fail("not-found", "%v", err))
		return
	}
	if err := s.backend.DeleteList(ctx, site, list); err != nil {
		replyServerError(w, "DeleteList", err)
		return
	}
	replyJSON(w, http.StatusOK, ok(nil))
}

// -- queries --

func (s *Server) handleCreateQuery(w http.ResponseWriter, r *http.Request) {
	var q crawlserv.Query
	if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
		replyJSON(w, http.StatusBadRequest, fail("bad-json-decode", "%v", err))
		return
	}
	id, err := s.backend.CreateQuery(r.Context(), q)
	if err != nil {
		replyServerError(w, "CreateQuery", err)
		return
	}
	replyJSON(w, http.StatusOK, ok(map[string]uint64{"id": id}))
}

func (s *Server) handleGetQuery(w http.ResponseWriter, r *http.Request) {
	id, valid := idFromPath(r, "id")
	if !valid {
		replyJSON(w, http.StatusBadRequest, fail("bad-id", "invalid query id"))
		return
	}
	q, err := s.backend.GetQuery(r.Context(), id)
	if err != nil {
		replyJSON(w, http.StatusNotFound, fail("not-found", "%v", err))
		return
	}
	replyJSON(w, http.StatusOK, ok(q))
}

func (s *Server) handleListQueries(w http.ResponseWriter, r *http.Request) {
	queries, err := s.backend.ListQueries(r.Context(), queryUint(r, "website_id"))
	if err != nil {
		replyServerError(w, "ListQueries", err)
		return
	}
	replyJSON(w, http.StatusOK, ok(queries))
}

func (s *Server) handleDeleteQuery(w http.ResponseWriter, r *http.Request) {
	id, valid := idFromPath(r, "id")
	if !valid {
		replyJSON(w, http.StatusBadRequest, fail("bad-id", "invalid query id"))
		return
	}
	if err := s.backend.DeleteQuery(r.Context(), id); err != nil {
		replyServerError(w, "DeleteQuery", err)
		return
	}
	replyJSON(w, http.StatusOK, ok(nil))
}

// -- configurations --

func (s *Server) handleCreateConfig(w http.ResponseWriter, r *http.Request) {
	var c crawlserv.Configuration
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		replyJSON(w, http.StatusBadRequest, fail("bad-json-decode", "%v", err))
		return
	}
	id, err := s.backend.CreateConfiguration(r.Context(), c)
	if err != nil {
		replyServerError(w, "CreateConfiguration", err)
		return
	}
	replyJSON(w, http.StatusOK, ok(map[string]uint64{"id": id}))
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	id, valid := idFromPath(r, "id")
	if !valid {
		replyJSON(w, http.StatusBadRequest, fail("bad-id", "invalid config id"))
		return
	}
	c, err := s.backend.GetConfiguration(r.Context(), id)
	if err != nil {
		replyJSON(w, http.StatusNotFound, fail("not-found", "%v", err))
		return
	}
	replyJSON(w, http.StatusOK, ok(c))
}

func (s *Server) handleListConfigs(w http.ResponseWriter, r *http.Request) {
	module := crawlserv.Module(r.URL.Query().Get("module"))
	configs, err := s.backend.ListConfigurations(r.Context(), queryUint(r, "website_id"), module)
	if err != nil {
		replyServerError(w, "ListConfigurations", err)
		return
	}
	replyJSON(w, http.StatusOK, ok(configs))
}

type updateConfigRequest struct {
	JSON json.RawMessage `json:"json"`
}

func (s *Server) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	id, valid := idFromPath(r, "id")
	if !valid {
		replyJSON(w, http.StatusBadRequest, fail("bad-id", "invalid config id"))
		return
	}
	var req updateConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		replyJSON(w, http.StatusBadRequest, fail("bad-json-decode", "%v", err))
		return
	}
	if err := s.backend.UpdateConfiguration(r.Context(), id, req.JSON); err != nil {
		replyServerError(w, "UpdateConfiguration", err)
		return
	}
	replyJSON(w, http.StatusOK, ok(nil))
}

func (s *Server) handleDeleteConfig(w http.ResponseWriter, r *http.Request) {
	id, valid := idFromPath(r, "id")
	if !valid {
		replyJSON(w, http.StatusBadRequest, fail("bad-id", "invalid config id"))
		return
	}
	if err := s.backend.DeleteConfiguration(r.Context(), id); err != nil {
		replyServerError(w, "DeleteConfiguration", err)
		return
	}
	replyJSON(w, http.StatusOK, ok(nil))
}

// -- target tables --

type addOrGetTargetTableRequest struct {
	WebsiteNamespace string            `json:"website_namespace"`
	ListNamespace    string            `json:"list_namespace"`
	Type             string            `json:"type"`
	Name             string            `json:"name"`
	Columns          []store.ColumnDef `json:"columns"`
	Compressed       bool              `json:"compressed"`
}

// handleAddOrGetTargetTable implements spec.md §4.1's add_or_get_target_table
// as a control-surface command, for operators provisioning a new parser or
// extractor output table ahead of a thread start.
func (s *Server) handleAddOrGetTargetTable(w http.ResponseWriter, r *http.Request) {
	var req addOrGetTargetTableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		replyJSON(w, http.StatusBadRequest, fail("bad-json-decode", "%v", err))
		return
	}
	table, err := s.backend.AddOrGetTargetTable(r.Context(), req.WebsiteNamespace, req.ListNamespace, req.Type, req.Name, req.Columns, req.Compressed)
	if err != nil {
		replyServerError(w, "AddOrGetTargetTable", err)
		return
	}
	replyJSON(w, http.StatusOK, ok(map[string]string{"table": table}))
}
