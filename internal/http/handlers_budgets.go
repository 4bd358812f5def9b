package http

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"foretrack/internal/analytics"
	"foretrack/internal/core"
)

func (s *Server) handleListBudgets(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userID(w, r)
	if !ok {
		return
	}
	activeOnly, _ := strconv.ParseBool(r.URL.Query().Get("active"))
	budgets, err := s.deps.Budgets.List(r.Context(), userID, activeOnly)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]budgetResponse, 0, len(budgets))
	for _, b := range budgets {
		out = append(out, newBudgetResponse(b))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateBudget(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userID(w, r)
	if !ok {
		return
	}
	b, ok := s.budgetFromRequest(w, r, userID)
	if !ok {
		return
	}
	created, err := s.deps.Budgets.Create(r.Context(), userID, b)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newBudgetResponse(created))
}

func (s *Server) handleUpdateBudget(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userID(w, r)
	if !ok {
		return
	}
	b, ok := s.budgetFromRequest(w, r, userID)
	if !ok {
		return
	}
	b.ID = mux.Vars(r)["id"]
	updated, err := s.deps.Budgets.Update(r.Context(), userID, b)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newBudgetResponse(updated))
}

func (s *Server) handleDeleteBudget(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userID(w, r)
	if !ok {
		return
	}
	if err := s.deps.Budgets.Delete(r.Context(), userID, mux.Vars(r)["id"]); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleBudgetStatus reports each active budget against its own period
// window, plus the overall utilization. It degrades rather than failing.
func (s *Server) handleBudgetStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userID(w, r)
	if !ok {
		return
	}
	rep := s.deps.Analytics.Report(r.Context(), userID, analytics.Month, s.now())
	writeJSON(w, http.StatusOK, budgetStatusListResponse{
		Currency: string(rep.Currency),
		Budgets:  newBudgetStatuses(rep.Budgets, rep.Currency),
		Overall:  newOverallResponse(rep.Overall, rep.Currency),
		Degraded: rep.Degraded,
	})
}

func (s *Server) budgetFromRequest(w http.ResponseWriter, r *http.Request, userID string) (core.Budget, bool) {
	var req budgetRequest
	if !decodeJSON(w, r, &req) {
		return core.Budget{}, false
	}
	settings, err := s.deps.Settings.Get(r.Context(), userID)
	if err != nil {
		s.writeError(w, r, err)
		return core.Budget{}, false
	}
	b, err := req.toBudget(settings.Currency)
	if err != nil {
		badRequest(w, "%s", err.Error())
		return core.Budget{}, false
	}
	return b, true
}
