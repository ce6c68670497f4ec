package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/undercontrol/gateway/internal/adapter"
	"github.com/undercontrol/gateway/internal/registry"
	"github.com/undercontrol/gateway/internal/router"
)

// handleListAdapters returns the discovered adapter type catalog.
func (s *Server) handleListAdapters(w http.ResponseWriter, _ *http.Request) {
	types := s.catalog.Types()
	writeJSON(w, http.StatusOK, map[string]any{
		"adapters": types,
		"count":    len(types),
	})
}

// entryView is the public shape of a configured entry. Settings are not
// exposed; they may carry credentials (hosts, client keys).
type entryView struct {
	ID         string   `json:"id"`
	Type       string   `json:"type"`
	Operations []string `json:"operations"`
}

// handleListEntries returns all configured entries with their declared
// operations, sorted by entry id.
func (s *Server) handleListEntries(w http.ResponseWriter, _ *http.Request) {
	entries := s.registry.List()
	views := make([]entryView, 0, len(entries))
	for _, e := range entries {
		views = append(views, entryView{
			ID:         e.Config.EntryID,
			Type:       e.Descriptor.TypeName,
			Operations: e.Descriptor.Operations,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"entries": views,
		"count":   len(views),
	})
}

// commandRequest is the body of POST /entries/{id}/commands.
type commandRequest struct {
	Operation string         `json:"operation"`
	Params    adapter.Params `json:"params"`
}

// handleCommand dispatches one command to the entry named in the URL.
//
// The response body is always the command envelope; the HTTP status is
// derived from the outcome so plain HTTP clients can branch without
// parsing the body.
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Operation == "" {
		writeBadRequest(w, "operation is required")
		return
	}

	env := s.commands.Route(r.Context(), router.Command{
		EntryID:   id,
		Operation: req.Operation,
		Params:    req.Params,
	})

	writeJSON(w, statusForEnvelope(env), env)
}

// handleReload re-reads entry configuration and atomically swaps the
// registry's instance set. On failure the previous set keeps serving and
// every collected problem is returned.
func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if s.reloader == nil {
		writeUnavailable(w, "reload not configured")
		return
	}

	if err := s.reloader.Reload(r.Context()); err != nil {
		var cfgErr *registry.ConfigError
		if errors.As(err, &cfgErr) {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
				"reloaded": false,
				"problems": cfgErr.Problems,
			})
			return
		}
		s.logger.Error("configuration reload failed", "error", err)
		writeInternalError(w, "reload failed: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"reloaded": true,
		"entries":  s.registry.Count(),
	})
}
