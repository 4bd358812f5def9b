package http

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"foretrack/internal/analytics"
	"foretrack/internal/core"
)

func (s *Server) handleCurrencies(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, core.Currencies())
}

// handleListTransactions serves the ledger view: filters come from the
// query string, totals cover every matching record.
func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userID(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()

	f := analytics.Filter{
		Kind:  core.Kind(strings.ToLower(strings.TrimSpace(q.Get("kind")))),
		Query: sanitizeInput(q.Get("q")),
	}
	var err error
	if f.From, err = parseOptionalDate(q.Get("from"), core.Date{}); err != nil {
		badRequest(w, "invalid from: %s", err.Error())
		return
	}
	if f.To, err = parseOptionalDate(q.Get("to"), core.Date{}); err != nil {
		badRequest(w, "invalid to: %s", err.Error())
		return
	}
	order, err := analytics.ParseSortOrder(q.Get("sort"))
	if err != nil {
		badRequest(w, "%s", err.Error())
		return
	}
	page, err := queryInt(r, "page", 1)
	if err != nil {
		badRequest(w, "%s", err.Error())
		return
	}
	perPage, err := queryInt(r, "per_page", analytics.DefaultPerPage)
	if err != nil {
		badRequest(w, "%s", err.Error())
		return
	}

	p, err := s.deps.Transactions.List(r.Context(), userID, f, order, page, perPage)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newPageResponse(p))
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userID(w, r)
	if !ok {
		return
	}
	var req transactionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	kind := core.Kind(strings.ToLower(strings.TrimSpace(string(req.Kind))))
	if err := kind.Validate(); err != nil {
		badRequest(w, "%s", err.Error())
		return
	}
	tx, ok := s.transactionFromRequest(w, r, userID, req, kind)
	if !ok {
		return
	}
	created, err := s.deps.Transactions.Create(r.Context(), userID, tx)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newTransactionResponse(created))
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userID(w, r)
	if !ok {
		return
	}
	vars := mux.Vars(r)
	tx, err := s.deps.Transactions.Get(r.Context(), userID, core.Kind(vars["kind"]), vars["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newTransactionResponse(tx))
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userID(w, r)
	if !ok {
		return
	}
	vars := mux.Vars(r)
	kind := core.Kind(vars["kind"])
	if err := kind.Validate(); err != nil {
		badRequest(w, "%s", err.Error())
		return
	}
	var req transactionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Kind != "" && req.Kind != kind {
		badRequest(w, "kind cannot be changed")
		return
	}
	tx, ok := s.transactionFromRequest(w, r, userID, req, kind)
	if !ok {
		return
	}
	tx.ID = vars["id"]
	updated, err := s.deps.Transactions.Update(r.Context(), userID, tx)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newTransactionResponse(updated))
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userID(w, r)
	if !ok {
		return
	}
	vars := mux.Vars(r)
	if err := s.deps.Transactions.Delete(r.Context(), userID, core.Kind(vars["kind"]), vars["id"]); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// transactionFromRequest converts the body, defaulting currency to the
// user's setting and date to today.
func (s *Server) transactionFromRequest(w http.ResponseWriter, r *http.Request, userID string, req transactionRequest, kind core.Kind) (core.Transaction, bool) {
	settings, err := s.deps.Settings.Get(r.Context(), userID)
	if err != nil {
		s.writeError(w, r, err)
		return core.Transaction{}, false
	}
	tx, err := req.toTransaction(kind, settings.Currency, core.DateOf(s.now()))
	if err != nil {
		badRequest(w, "%s", err.Error())
		return core.Transaction{}, false
	}
	return tx, true
}
