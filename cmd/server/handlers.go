package main

import (
	"fmt"
	"net/http"

	"github.com/askql-io/askql"
)

// handleAsk handles POST /api/v1/ask
func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req askql.AskRequest
	if err := readJSONBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid json body: %v", err))
		return
	}

	result, err := s.planner.Answer(r.Context(), req)
	if err != nil {
		writeAskError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, result)
}

// handleTables handles POST /api/v1/tables (register) and GET /api/v1/tables (list)
func (s *Server) handleTables(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var entry askql.TableEntry
		if err := readJSONBody(r, &entry); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid json body: %v", err))
			return
		}
		if entry.LogicalName == "" || entry.PhysicalName == "" {
			writeError(w, http.StatusBadRequest, "logical_name and physical_name are required")
			return
		}
		s.registry.Register(entry.LogicalName, entry.PhysicalName, entry.Columns, entry.Description)
		writeSuccess(w, http.StatusCreated, entry)
	case http.MethodGet:
		writeSuccess(w, http.StatusOK, s.registry.ListAll())
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}
