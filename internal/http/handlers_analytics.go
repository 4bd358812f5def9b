package http

import (
	"net/http"
	"strings"

	"foretrack/internal/analytics"
)

// parseRange reads ?range=, defaulting to a month. It writes a 400 for an
// unknown token.
func parseRange(w http.ResponseWriter, r *http.Request) (analytics.Range, bool) {
	v := strings.TrimSpace(r.URL.Query().Get("range"))
	if v == "" {
		return analytics.Month, true
	}
	rg, err := analytics.ParseRange(v)
	if err != nil {
		badRequest(w, "%s", err.Error())
		return "", false
	}
	return rg, true
}

func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userID(w, r)
	if !ok {
		return
	}
	rg, ok := parseRange(w, r)
	if !ok {
		return
	}
	rep := s.deps.Analytics.Report(r.Context(), userID, rg, s.now())
	recent := rep.Records
	if len(recent) > recentLimit {
		recent = recent[:recentLimit]
	}
	writeJSON(w, http.StatusOK, reportResponse{
		Range:    rep.Range,
		Currency: string(rep.Currency),
		Current:  newSummaryResponse(rep.Current, rep.Currency),
		Previous: newSummaryResponse(rep.Previous, rep.Currency),
		Changes:  changesResponse{Expense: rep.Changes.Expense, Income: rep.Changes.Income},
		Budgets:  newBudgetStatuses(rep.Budgets, rep.Currency),
		Overall:  newOverallResponse(rep.Overall, rep.Currency),
		Recent:   newTransactionList(recent),
		Degraded: rep.Degraded,
	})
}

// handleInsights never fails: the service falls back to defaults.
func (s *Server) handleInsights(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userID(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"insights": s.deps.Insights.Insights(r.Context(), userID),
	})
}

type chatRequest struct {
	Message string `json:"message"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userID(w, r)
	if !ok {
		return
	}
	var req chatRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	reply, err := s.deps.Insights.Chat(r.Context(), userID, req.Message)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"response": reply})
}

type categorizeRequest struct {
	Description string `json:"description"`
	Amount      string `json:"amount"`
}

func (s *Server) handleCategorize(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.userID(w, r); !ok {
		return
	}
	var req categorizeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	cat, err := s.deps.Insights.Categorize(r.Context(), req.Description, sanitizeInput(req.Amount))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"category": cat})
}

func (s *Server) handleTips(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userID(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"tips": s.deps.Insights.SavingsTips(r.Context(), userID),
	})
}

func (s *Server) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userID(w, r)
	if !ok {
		return
	}
	rg, ok := parseRange(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"range":    string(rg),
		"analysis": s.deps.Insights.Analysis(r.Context(), userID, rg),
	})
}
