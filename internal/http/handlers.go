package http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"fintrack/internal/core"
)

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	in, ok := decodeInput(w, r)
	if !ok {
		return
	}

	t, err := s.service.Create(r.Context(), in)
	if err != nil {
		respondStoreError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, t)
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	items, err := s.service.List(r.Context(), f)
	if err != nil {
		respondStoreError(w, r, err)
		return
	}

	if items == nil {
		items = []core.Transaction{}
	}
	respondJSON(w, http.StatusOK, items)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	t, err := s.service.Get(r.Context(), id)
	if err != nil {
		respondStoreError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, t)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	in, ok := decodeInput(w, r)
	if !ok {
		return
	}

	t, err := s.service.Update(r.Context(), id, in)
	if err != nil {
		respondStoreError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, t)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	if err := s.service.Delete(r.Context(), id); err != nil {
		respondStoreError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, messageResponse{Message: "transaction deleted"})
}

func (s *Server) handleBulkCreateTransactions(w http.ResponseWriter, r *http.Request) {
	var inputs []core.TransactionInput
	if err := json.NewDecoder(r.Body).Decode(&inputs); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	n, err := s.service.BulkCreate(r.Context(), inputs)
	if err != nil {
		respondStoreError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, bulkResponse{Created: n})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	start, err := parseDateParam(r, "start_date")
	if err != nil {
		respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	end, err := parseDateParam(r, "end_date")
	if err != nil {
		respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	summary, err := s.service.Summarize(r.Context(), start, end)
	if err != nil {
		respondStoreError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, summary)
}

func decodeInput(w http.ResponseWriter, r *http.Request) (core.TransactionInput, bool) {
	var in core.TransactionInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return core.TransactionInput{}, false
	}
	return in, true
}

func parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid transaction id: "+raw)
		return 0, false
	}
	return id, true
}

func parseDateParam(r *http.Request, key string) (*core.Date, error) {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if v == "" {
		return nil, nil
	}
	d, err := core.ParseDate(v)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// parseFilter reads the list query parameters. An unknown type value is
// rejected rather than silently matching nothing.
func parseFilter(r *http.Request) (core.Filter, error) {
	q := r.URL.Query()
	var f core.Filter
	var err error

	if f.StartDate, err = parseDateParam(r, "start_date"); err != nil {
		return core.Filter{}, err
	}
	if f.EndDate, err = parseDateParam(r, "end_date"); err != nil {
		return core.Filter{}, err
	}

	f.Category = strings.TrimSpace(q.Get("category"))

	if v := strings.TrimSpace(q.Get("type")); v != "" {
		t, err := core.ParseType(v)
		if err != nil {
			return core.Filter{}, err
		}
		f.Type = t
	}

	if v := strings.TrimSpace(q.Get("skip")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			f.Skip = n
		}
	}
	if v := strings.TrimSpace(q.Get("limit")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			f.Limit = n
		}
	}

	return f, nil
}
