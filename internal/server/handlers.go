package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"github.com/mmcdole/pickflix/internal/domain"
)

// PostgREST-compatible error codes
const (
	codeUniqueViolation = "23505"
	codeUndefinedTable  = "42P01"
	codeInvalidBody     = "PGRST102"
	codeInvalidFilter   = "PGRST100"
	codeMissingWhere    = "21000"
	codeInternal        = "XX000"
)

// APIError is the PostgREST error body.
type APIError struct {
	Code    string  `json:"code"`
	Message string  `json:"message"`
	Details *string `json:"details"`
	Hint    *string `json:"hint"`
}

type pickRow struct {
	ID       int    `json:"id"`
	PickedAt string `json:"picked_at"`
}

type pickInsert struct {
	ID *int `json:"id"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// listPicks serves GET ?select=id,picked_at&order=picked_at.desc.
// Rows always come back most recent first.
func (s *Server) listPicks(w http.ResponseWriter, r *http.Request) {
	if order := r.URL.Query().Get("order"); order != "" && order != "picked_at.desc" {
		s.writeError(w, http.StatusBadRequest, APIError{
			Code:    codeInvalidFilter,
			Message: fmt.Sprintf("unsupported order %q", order),
		})
		return
	}

	picks, err := s.store.List(r.Context())
	if err != nil {
		s.writeStoreError(w, err)
		return
	}

	rows := make([]pickRow, len(picks))
	for i, p := range picks {
		rows[i] = pickRow{ID: p.ID, PickedAt: p.PickedAt.UTC().Format(time.RFC3339Nano)}
	}
	writeJSON(w, http.StatusOK, rows)
}

// createPick serves POST {"id":N}.
func (s *Server) createPick(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 4096))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, APIError{Code: codeInvalidBody, Message: "could not read body"})
		return
	}

	var in pickInsert
	if err := json.Unmarshal(body, &in); err != nil || in.ID == nil {
		s.writeError(w, http.StatusBadRequest, APIError{Code: codeInvalidBody, Message: "body must be an object with an integer id"})
		return
	}
	id := *in.ID

	if err := s.store.Record(r.Context(), id); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			s.logger.Debug("duplicate pick rejected", "id", id)
		}
		s.writeStoreErrorFor(w, err, id)
		return
	}

	s.logger.Info("pick recorded", "id", id, "request_id", requestID(r))
	if strings.Contains(r.Header.Get("Prefer"), "return=representation") {
		writeJSON(w, http.StatusCreated, []pickRow{{ID: id, PickedAt: time.Now().UTC().Format(time.RFC3339Nano)}})
		return
	}
	w.WriteHeader(http.StatusCreated)
}

// deletePicks serves DELETE ?id=neq.N. A filter is required.
func (s *Server) deletePicks(w http.ResponseWriter, r *http.Request) {
	filter := r.URL.Query().Get("id")
	if filter == "" {
		s.writeError(w, http.StatusBadRequest, APIError{Code: codeMissingWhere, Message: "DELETE requires a WHERE clause"})
		return
	}

	keep, ok := parseNeq(filter)
	if !ok {
		s.writeError(w, http.StatusBadRequest, APIError{
			Code:    codeInvalidFilter,
			Message: fmt.Sprintf("unsupported filter id=%s", filter),
		})
		return
	}

	n, err := s.store.DeleteExcept(r.Context(), keep)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.logger.Info("picks cleared", "deleted", n, "request_id", requestID(r))
	w.WriteHeader(http.StatusNoContent)
}

func parseNeq(filter string) (int, bool) {
	v, ok := strings.CutPrefix(filter, "neq.")
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func (s *Server) writeStoreError(w http.ResponseWriter, err error) {
	s.writeStoreErrorFor(w, err, 0)
}

func (s *Server) writeStoreErrorFor(w http.ResponseWriter, err error, id int) {
	switch domain.KindOf(err) {
	case domain.KindConflict:
		details := fmt.Sprintf("Key (id)=(%d) already exists.", id)
		s.writeError(w, http.StatusConflict, APIError{
			Code:    codeUniqueViolation,
			Message: `duplicate key value violates unique constraint "picks_pkey"`,
			Details: &details,
		})
	case domain.KindSchemaMissing:
		s.writeError(w, http.StatusNotFound, APIError{
			Code:    codeUndefinedTable,
			Message: `relation "public.picks" does not exist`,
		})
	default:
		s.logger.Error("store failure", "error", err)
		s.writeError(w, http.StatusInternalServerError, APIError{Code: codeInternal, Message: err.Error()})
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, apiErr APIError) {
	writeJSON(w, status, apiErr)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func requestID(r *http.Request) string {
	return chimiddleware.GetReqID(r.Context())
}
