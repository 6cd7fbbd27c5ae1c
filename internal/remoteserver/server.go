// Package remoteserver is the demo/reference remote collection server: the
// server side of the Network Gateway contract. It is not part of the core
// sync engine (the Network Gateway is an out-of-scope external
// collaborator per spec §1/§6) — it exists so the module is runnable and
// testable end-to-end without a hand-waved mock, grounded on the teacher's
// internal/server (gorilla/mux router + gorilla/handlers logging
// middleware) backed here by a second entitystore.BadgerStore standing in
// for "the remote".
package remoteserver

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/cachesync/cachesync/internal/entity"
	"github.com/cachesync/cachesync/internal/entitystore"
	"github.com/cachesync/cachesync/internal/query"
)

// Server is a minimal JSON CRUD + delta-fetch remote, one per appKey,
// backed by an entitystore.Store.
type Server struct {
	store     entitystore.Store
	namespace string
	appKey    string
	logger    *logrus.Logger
	router    *mux.Router
}

// New builds a Server. An empty appKey disables the X-App-Key credential
// check entirely (useful for tests that don't exercise InsufficientCredentials).
func New(store entitystore.Store, namespace, appKey string, logger *logrus.Logger) *Server {
	if logger == nil {
		logger = logrus.New()
	}
	s := &Server{store: store, namespace: namespace, appKey: appKey, logger: logger}
	s.router = s.buildRouter()
	return s
}

// Handler returns the http.Handler to mount, wrapped with the teacher's
// access-log middleware style (gorilla/handlers.CombinedLoggingHandler).
func (s *Server) Handler() http.Handler {
	return handlers.CombinedLoggingHandler(s.logger.Writer(), s.authMiddleware(s.router))
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.appKey != "" && r.Header.Get("X-App-Key") != s.appKey {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"error": "insufficient credentials"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) buildRouter() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/{collection}/_count", s.handleCount).Methods(http.MethodGet)
	r.HandleFunc("/{collection}/_group", s.handleGroup).Methods(http.MethodPost)
	r.HandleFunc("/{collection}/{id}", s.handleGet).Methods(http.MethodGet)
	r.HandleFunc("/{collection}/{id}", s.handlePut).Methods(http.MethodPut)
	r.HandleFunc("/{collection}/{id}", s.handleDelete).Methods(http.MethodDelete)
	r.HandleFunc("/{collection}", s.handleFind).Methods(http.MethodGet)
	r.HandleFunc("/{collection}", s.handleCreate).Methods(http.MethodPost)
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	e, err := s.store.Get(r.Context(), s.namespace, "remote", vars["collection"], vars["id"])
	if err == entitystore.ErrNotFound {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) handleFind(w http.ResponseWriter, r *http.Request) {
	collection := mux.Vars(r)["collection"]
	q := parseQuery(r)

	if since := r.URL.Query().Get("since"); since != "" {
		t, err := time.Parse(time.RFC3339Nano, since)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid since"})
			return
		}
		entities, err := s.store.Find(r.Context(), s.namespace, "remote", collection, query.Empty())
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		out := make([]*entity.Entity, 0, len(entities))
		for _, e := range entities {
			if e.LastModified().After(t) {
				out = append(out, e)
			}
		}
		writeJSON(w, http.StatusOK, out)
		return
	}

	entities, err := s.store.Find(r.Context(), s.namespace, "remote", collection, q)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, entities)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	collection := mux.Vars(r)["collection"]
	var e entity.Entity
	if err := json.NewDecoder(r.Body).Decode(&e); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	e.ID = newServerID()
	e.Metadata = stampLmt(e.Metadata)

	if err := s.store.Put(r.Context(), s.namespace, "remote", collection, &e); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusCreated, &e)
}

func (s *Server) handlePut(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	var e entity.Entity
	if err := json.NewDecoder(r.Body).Decode(&e); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	e.ID = vars["id"]
	e.Metadata = stampLmt(e.Metadata)

	if err := s.store.Put(r.Context(), s.namespace, "remote", vars["collection"], &e); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, &e)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	count, err := s.store.Delete(r.Context(), s.namespace, "remote", vars["collection"], vars["id"])
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if count == 0 {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": count})
}

func (s *Server) handleCount(w http.ResponseWriter, r *http.Request) {
	collection := mux.Vars(r)["collection"]
	count, err := s.store.Count(r.Context(), s.namespace, "remote", collection, parseQuery(r))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": count})
}

func (s *Server) handleGroup(w http.ResponseWriter, r *http.Request) {
	collection := mux.Vars(r)["collection"]
	entities, err := s.store.Find(r.Context(), s.namespace, "remote", collection, query.Empty())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": len(entities)})
}

func parseQuery(r *http.Request) query.Query {
	if ids := r.URL.Query().Get("ids"); ids != "" {
		return query.ByIDs(strings.Split(ids, ",")...)
	}
	return query.Empty()
}

func stampLmt(md *entity.Metadata) *entity.Metadata {
	now := time.Now().UTC()
	if md == nil {
		md = &entity.Metadata{}
	}
	md.LastModifiedTime = &now
	md.Local = false
	return md
}

func newServerID() string {
	return "srv-" + uuid.New().String()
}
