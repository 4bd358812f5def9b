package http

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"foretrack/internal/analytics"
	"foretrack/internal/core"
)

// Amounts travel as decimal strings in major units ("12.50"). Requests also
// accept bare JSON numbers.

type transactionRequest struct {
	Kind     core.Kind       `json:"kind"`
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
	Category string          `json:"category"`
	Note     string          `json:"note"`
	Date     string          `json:"date"`
}

type transactionResponse struct {
	ID        string    `json:"id"`
	Kind      core.Kind `json:"kind"`
	Amount    string    `json:"amount"`
	Currency  string    `json:"currency"`
	Category  string    `json:"category"`
	Note      string    `json:"note"`
	Date      string    `json:"date"`
	CreatedAt time.Time `json:"created_at"`
}

type pageResponse struct {
	Items      []transactionResponse  `json:"items"`
	Page       int                    `json:"page"`
	PerPage    int                    `json:"per_page"`
	TotalItems int                    `json:"total_items"`
	TotalPages int                    `json:"total_pages"`
	Totals     []ledgerTotalsResponse `json:"totals"`
}

type ledgerTotalsResponse struct {
	Currency string `json:"currency"`
	Income   string `json:"income"`
	Expense  string `json:"expense"`
	Net      string `json:"net"`
}

type budgetRequest struct {
	Category string          `json:"category"`
	Limit    decimal.Decimal `json:"limit"`
	Currency string          `json:"currency"`
	Period   string          `json:"period"`
	Active   *bool           `json:"active"`
}

type budgetResponse struct {
	ID        string    `json:"id"`
	Category  string    `json:"category"`
	Limit     string    `json:"limit"`
	Currency  string    `json:"currency"`
	Period    string    `json:"period"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

type windowResponse struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type budgetStatusResponse struct {
	Budget    budgetResponse `json:"budget"`
	Window    windowResponse `json:"window"`
	Spent     string         `json:"spent"`
	Remaining string         `json:"remaining"`
	Percent   float64        `json:"percent"`
	Band      analytics.Band `json:"band"`
}

type overallResponse struct {
	Limit   string         `json:"limit"`
	Spent   string         `json:"spent"`
	Percent float64        `json:"percent"`
	Band    analytics.Band `json:"band"`
}

type budgetStatusListResponse struct {
	Currency string                 `json:"currency"`
	Budgets  []budgetStatusResponse `json:"budgets"`
	Overall  overallResponse        `json:"overall"`
	Degraded bool                   `json:"degraded"`
}

type categoryRequest struct {
	Kind  core.Kind `json:"kind"`
	Name  string    `json:"name"`
	Icon  string    `json:"icon"`
	Color string    `json:"color"`
}

type categoryResponse struct {
	ID     string    `json:"id,omitempty"`
	Kind   core.Kind `json:"kind"`
	Name   string    `json:"name"`
	Icon   string    `json:"icon"`
	Color  string    `json:"color"`
	Custom bool      `json:"custom"`
}

type settingsRequest struct {
	Currency      string `json:"currency"`
	Email         string `json:"email"`
	WeeklySummary bool   `json:"weekly_summary"`
}

type settingsResponse struct {
	Currency      string     `json:"currency"`
	Email         string     `json:"email"`
	WeeklySummary bool       `json:"weekly_summary"`
	UpdatedAt     *time.Time `json:"updated_at,omitempty"`
}

type recurringRequest struct {
	Kind      core.Kind       `json:"kind"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	Category  string          `json:"category"`
	Note      string          `json:"note"`
	Every     string          `json:"every"`
	StartDate string          `json:"start_date"`
	EndDate   string          `json:"end_date"`
	Active    *bool           `json:"active"`
}

type recurringResponse struct {
	ID        string     `json:"id"`
	Kind      core.Kind  `json:"kind"`
	Amount    string     `json:"amount"`
	Currency  string     `json:"currency"`
	Category  string     `json:"category"`
	Note      string     `json:"note"`
	Every     string     `json:"every"`
	StartDate string     `json:"start_date"`
	EndDate   string     `json:"end_date,omitempty"`
	LastRunAt *time.Time `json:"last_run_at,omitempty"`
	Active    bool       `json:"active"`
	CreatedAt time.Time  `json:"created_at"`
}

type totalResponse struct {
	Name   string `json:"name"`
	Amount string `json:"amount"`
}

type totalsResponse struct {
	Expense     string  `json:"expense"`
	Income      string  `json:"income"`
	Net         string  `json:"net"`
	SavingsRate float64 `json:"savings_rate"`
}

type summaryResponse struct {
	Window        windowResponse  `json:"window"`
	Totals        totalsResponse  `json:"totals"`
	Categories    []totalResponse `json:"categories"`
	Sources       []totalResponse `json:"sources"`
	Daily         []totalResponse `json:"daily"`
	AverageDaily  string          `json:"average_daily"`
	TopCategories []totalResponse `json:"top_categories"`
	ExpenseCount  int             `json:"expense_count"`
	IncomeCount   int             `json:"income_count"`
}

type changesResponse struct {
	Expense float64 `json:"expense"`
	Income  float64 `json:"income"`
}

type reportResponse struct {
	Range    analytics.Range        `json:"range"`
	Currency string                 `json:"currency"`
	Current  summaryResponse        `json:"current"`
	Previous summaryResponse        `json:"previous"`
	Changes  changesResponse        `json:"changes"`
	Budgets  []budgetStatusResponse `json:"budgets"`
	Overall  overallResponse        `json:"overall"`
	Recent   []transactionResponse  `json:"recent"`
	Degraded bool                   `json:"degraded"`
}

// recentLimit caps the transactions embedded in an analytics report.
const recentLimit = 10

// parseCurrency falls back to def for an empty code.
func parseCurrency(code string, def core.Currency) (core.Currency, error) {
	if strings.TrimSpace(code) == "" {
		return def, nil
	}
	return core.ParseCurrency(code)
}

// parseOptionalDate returns def for an empty string.
func parseOptionalDate(s string, def core.Date) (core.Date, error) {
	if strings.TrimSpace(s) == "" {
		return def, nil
	}
	return core.ParseDate(strings.TrimSpace(s))
}

func (req transactionRequest) toTransaction(kind core.Kind, def core.Currency, today core.Date) (core.Transaction, error) {
	cur, err := parseCurrency(req.Currency, def)
	if err != nil {
		return core.Transaction{}, err
	}
	amount, err := core.FromDecimal(req.Amount, cur)
	if err != nil {
		return core.Transaction{}, err
	}
	date, err := parseOptionalDate(req.Date, today)
	if err != nil {
		return core.Transaction{}, err
	}
	return core.Transaction{
		Kind:     kind,
		Amount:   amount,
		Currency: cur,
		Category: sanitizeInput(req.Category),
		Note:     sanitizeInput(req.Note),
		Date:     date,
	}, nil
}

func newTransactionResponse(tx core.Transaction) transactionResponse {
	return transactionResponse{
		ID:        tx.ID,
		Kind:      tx.Kind,
		Amount:    tx.Amount.Text(tx.Currency),
		Currency:  string(tx.Currency),
		Category:  tx.Category,
		Note:      tx.Note,
		Date:      tx.Date.String(),
		CreatedAt: tx.CreatedAt,
	}
}

func newTransactionList(txs []core.Transaction) []transactionResponse {
	out := make([]transactionResponse, 0, len(txs))
	for _, tx := range txs {
		out = append(out, newTransactionResponse(tx))
	}
	return out
}

func newPageResponse(p analytics.Page) pageResponse {
	totals := make([]ledgerTotalsResponse, 0, len(p.Totals))
	for _, t := range p.Totals {
		totals = append(totals, ledgerTotalsResponse{
			Currency: string(t.Currency),
			Income:   t.Income.Text(t.Currency),
			Expense:  t.Expense.Text(t.Currency),
			Net:      t.Net.Text(t.Currency),
		})
	}
	return pageResponse{
		Items:      newTransactionList(p.Items),
		Page:       p.Page,
		PerPage:    p.PerPage,
		TotalItems: p.TotalItems,
		TotalPages: p.TotalPages,
		Totals:     totals,
	}
}

func (req budgetRequest) toBudget(def core.Currency) (core.Budget, error) {
	cur, err := parseCurrency(req.Currency, def)
	if err != nil {
		return core.Budget{}, err
	}
	limit, err := core.FromDecimal(req.Limit, cur)
	if err != nil {
		return core.Budget{}, err
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	return core.Budget{
		Category: sanitizeInput(req.Category),
		Limit:    limit,
		Currency: cur,
		Period:   core.BudgetPeriod(strings.ToLower(strings.TrimSpace(req.Period))),
		Active:   active,
	}, nil
}

func newBudgetResponse(b core.Budget) budgetResponse {
	return budgetResponse{
		ID:        b.ID,
		Category:  b.Category,
		Limit:     b.Limit.Text(b.Currency),
		Currency:  string(b.Currency),
		Period:    string(b.Period),
		Active:    b.Active,
		CreatedAt: b.CreatedAt,
	}
}

func newWindowResponse(w analytics.Window) windowResponse {
	return windowResponse{Start: w.Start.String(), End: w.End.String()}
}

func newBudgetStatuses(statuses []analytics.BudgetStatus, cur core.Currency) []budgetStatusResponse {
	out := make([]budgetStatusResponse, 0, len(statuses))
	for _, st := range statuses {
		out = append(out, budgetStatusResponse{
			Budget:    newBudgetResponse(st.Budget),
			Window:    newWindowResponse(st.Window),
			Spent:     st.Spent.Text(cur),
			Remaining: st.Remaining.Text(cur),
			Percent:   st.Percent,
			Band:      st.Band,
		})
	}
	return out
}

func newOverallResponse(o analytics.OverallStatus, cur core.Currency) overallResponse {
	return overallResponse{
		Limit:   o.Limit.Text(cur),
		Spent:   o.Spent.Text(cur),
		Percent: o.Percent,
		Band:    o.Band,
	}
}

func newCategoryResponse(c core.Category) categoryResponse {
	return categoryResponse{
		ID:     c.ID,
		Kind:   c.Kind,
		Name:   c.Name,
		Icon:   c.Icon,
		Color:  c.Color,
		Custom: c.Custom,
	}
}

func newSettingsResponse(st core.Settings) settingsResponse {
	resp := settingsResponse{
		Currency:      string(st.Currency),
		Email:         st.Email,
		WeeklySummary: st.WeeklySummary,
	}
	if !st.UpdatedAt.IsZero() {
		t := st.UpdatedAt
		resp.UpdatedAt = &t
	}
	return resp
}

func (req recurringRequest) toRecurring(def core.Currency, today core.Date) (core.RecurringTransaction, error) {
	cur, err := parseCurrency(req.Currency, def)
	if err != nil {
		return core.RecurringTransaction{}, err
	}
	amount, err := core.FromDecimal(req.Amount, cur)
	if err != nil {
		return core.RecurringTransaction{}, err
	}
	start, err := parseOptionalDate(req.StartDate, today)
	if err != nil {
		return core.RecurringTransaction{}, fmt.Errorf("start_date: %w", err)
	}
	end, err := parseOptionalDate(req.EndDate, core.Date{})
	if err != nil {
		return core.RecurringTransaction{}, fmt.Errorf("end_date: %w", err)
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	return core.RecurringTransaction{
		Kind:      req.Kind,
		Amount:    amount,
		Currency:  cur,
		Category:  sanitizeInput(req.Category),
		Note:      sanitizeInput(req.Note),
		Every:     core.Frequency(strings.ToLower(strings.TrimSpace(req.Every))),
		StartDate: start,
		EndDate:   end,
		Active:    active,
	}, nil
}

func newRecurringResponse(r core.RecurringTransaction) recurringResponse {
	resp := recurringResponse{
		ID:        r.ID,
		Kind:      r.Kind,
		Amount:    r.Amount.Text(r.Currency),
		Currency:  string(r.Currency),
		Category:  r.Category,
		Note:      r.Note,
		Every:     string(r.Every),
		StartDate: r.StartDate.String(),
		Active:    r.Active,
		CreatedAt: r.CreatedAt,
	}
	if !r.EndDate.IsZero() {
		resp.EndDate = r.EndDate.String()
	}
	if !r.LastRunAt.IsZero() {
		t := r.LastRunAt
		resp.LastRunAt = &t
	}
	return resp
}

func newTotals(items []analytics.Total, cur core.Currency) []totalResponse {
	out := make([]totalResponse, 0, len(items))
	for _, it := range items {
		out = append(out, totalResponse{Name: it.Name, Amount: it.Amount.Text(cur)})
	}
	return out
}

func newSummaryResponse(s analytics.Summary, cur core.Currency) summaryResponse {
	return summaryResponse{
		Window: newWindowResponse(s.Window),
		Totals: totalsResponse{
			Expense:     s.Totals.Expense.Text(cur),
			Income:      s.Totals.Income.Text(cur),
			Net:         s.Totals.Net.Text(cur),
			SavingsRate: s.Totals.SavingsRate,
		},
		Categories:    newTotals(s.Categories, cur),
		Sources:       newTotals(s.Sources, cur),
		Daily:         newTotals(s.Daily, cur),
		AverageDaily:  s.AverageDaily.Text(cur),
		TopCategories: newTotals(s.TopCategories, cur),
		ExpenseCount:  s.ExpenseCount,
		IncomeCount:   s.IncomeCount,
	}
}
