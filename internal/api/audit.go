package api

import (
	"net/http"
	"strconv"

	"github.com/undercontrol/gateway/internal/audit"
)

// handleListAudit returns paginated command audit records with optional
// filters.
//
// Query parameters:
//   - entry_id: filter by entry
//   - operation: filter by operation name
//   - outcome: filter by outcome ("success" or a failure kind)
//   - limit: max results (default 50, max 200)
//   - offset: pagination offset
func (s *Server) handleListAudit(w http.ResponseWriter, r *http.Request) {
	if s.auditRepo == nil {
		writeUnavailable(w, "audit trail not configured")
		return
	}

	q := r.URL.Query()
	filter := audit.Filter{
		EntryID:   q.Get("entry_id"),
		Operation: q.Get("operation"),
		Outcome:   q.Get("outcome"),
	}

	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Offset = n
		}
	}

	result, err := s.auditRepo.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed to list audit records", "error", err)
		writeInternalError(w, "failed to list audit records")
		return
	}

	writeJSON(w, http.StatusOK, result)
}
