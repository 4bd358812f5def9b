package http

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"foretrack/internal/analytics"
	"foretrack/internal/core"
)

func (s *Server) handleListRecurring(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userID(w, r)
	if !ok {
		return
	}
	list, err := s.deps.Recurring.List(r.Context(), userID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]recurringResponse, 0, len(list))
	for _, rt := range list {
		out = append(out, newRecurringResponse(rt))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateRecurring(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userID(w, r)
	if !ok {
		return
	}
	rt, ok := s.recurringFromRequest(w, r, userID)
	if !ok {
		return
	}
	created, err := s.deps.Recurring.Create(r.Context(), userID, rt)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newRecurringResponse(created))
}

func (s *Server) handleUpdateRecurring(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userID(w, r)
	if !ok {
		return
	}
	rt, ok := s.recurringFromRequest(w, r, userID)
	if !ok {
		return
	}
	rt.ID = mux.Vars(r)["id"]
	updated, err := s.deps.Recurring.Update(r.Context(), userID, rt)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newRecurringResponse(updated))
}

func (s *Server) handleDeleteRecurring(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userID(w, r)
	if !ok {
		return
	}
	if err := s.deps.Recurring.Delete(r.Context(), userID, mux.Vars(r)["id"]); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) recurringFromRequest(w http.ResponseWriter, r *http.Request, userID string) (core.RecurringTransaction, bool) {
	var req recurringRequest
	if !decodeJSON(w, r, &req) {
		return core.RecurringTransaction{}, false
	}
	req.Kind = core.Kind(strings.ToLower(strings.TrimSpace(string(req.Kind))))
	settings, err := s.deps.Settings.Get(r.Context(), userID)
	if err != nil {
		s.writeError(w, r, err)
		return core.RecurringTransaction{}, false
	}
	rt, err := req.toRecurring(settings.Currency, core.DateOf(s.now()))
	if err != nil {
		badRequest(w, "%s", err.Error())
		return core.RecurringTransaction{}, false
	}
	return rt, true
}

type exportRequest struct {
	SpreadsheetID string `json:"spreadsheet_id"`
	Sheet         string `json:"sheet"`
	Range         string `json:"range"`
}

// handleExportSheets appends the range's transactions to a spreadsheet.
// Without configured credentials it answers 503.
func (s *Server) handleExportSheets(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userID(w, r)
	if !ok {
		return
	}
	var req exportRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	rg := analytics.Month
	if strings.TrimSpace(req.Range) != "" {
		var err error
		if rg, err = analytics.ParseRange(req.Range); err != nil {
			badRequest(w, "%s", err.Error())
			return
		}
	}
	res, err := s.deps.Export.ExportToSheet(r.Context(), userID, sanitizeInput(req.SpreadsheetID), sanitizeInput(req.Sheet), rg, s.now())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
