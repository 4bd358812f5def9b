package insights

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"foretrack/internal/analytics"
	"foretrack/internal/core"
)

// ExpenseData is one expense as serialized into a prompt.
type ExpenseData struct {
	Category    string `json:"category"`
	Amount      string `json:"amount"`
	Description string `json:"description,omitempty"`
	Date        string `json:"date"`
}

// BudgetData is one budget status as serialized into a prompt.
type BudgetData struct {
	Category   string  `json:"category"`
	Amount     string  `json:"amount"`
	Spent      string  `json:"spent"`
	Percentage float64 `json:"percentage"`
}

// Data is the ledger context shared by every prompt. Amounts are decimal
// strings in the user's currency.
type Data struct {
	Expenses   []ExpenseData
	Budgets    []BudgetData
	TotalSpent string
}

// NewData serializes expenses and budget statuses, keeping at most
// MaxExpenses and MaxBudgets entries. Income records are ignored.
func NewData(txs []core.Transaction, statuses []analytics.BudgetStatus, cur core.Currency) Data {
	d := Data{Expenses: []ExpenseData{}, Budgets: []BudgetData{}}
	var total core.Money
	for _, tx := range txs {
		if tx.Kind != core.Expense {
			continue
		}
		total = total.Add(tx.Amount)
		if len(d.Expenses) == MaxExpenses {
			continue
		}
		d.Expenses = append(d.Expenses, ExpenseData{
			Category:    tx.CategoryOrOther(),
			Amount:      tx.Amount.Text(cur),
			Description: tx.Note,
			Date:        tx.Date.String(),
		})
	}
	for i, st := range statuses {
		if i == MaxBudgets {
			break
		}
		d.Budgets = append(d.Budgets, BudgetData{
			Category:   st.Budget.Category,
			Amount:     st.Budget.Limit.Text(cur),
			Spent:      st.Spent.Text(cur),
			Percentage: float64(int64(st.Percent*10+0.5)) / 10,
		})
	}
	d.TotalSpent = total.Display(cur)
	return d
}

// HasExpenses reports whether any expense made it into the context.
func (d Data) HasExpenses() bool {
	return len(d.Expenses) > 0
}

func (d Data) recent() []ExpenseData {
	if len(d.Expenses) > RecentExpenses {
		return d.Expenses[:RecentExpenses]
	}
	return d.Expenses
}

var funcs = template.FuncMap{
	"json": func(v any) (string, error) {
		b, err := json.MarshalIndent(v, "", "  ")
		return string(b), err
	},
	"compact": func(v any) (string, error) {
		b, err := json.Marshal(v)
		return string(b), err
	},
}

var prompts = template.Must(template.New("prompts").Funcs(funcs).Parse(`
{{define "insights"}}You are a helpful financial advisor AI. Analyze the following financial data and provide 2-3 personalized insights.

Expenses this period:
{{json .Expenses}}

Budget status:
{{json .Budgets}}

Total spent this period: {{.TotalSpent}}

Provide insights in the following JSON format (return ONLY the JSON array, no markdown):
[
  {
    "type": "tip" | "warning" | "achievement" | "suggestion",
    "title": "Short title (3-5 words)",
    "message": "Detailed insight (1-2 sentences)",
    "icon": "emoji that represents this insight"
  }
]

Guidelines:
- "warning" for categories near or over budget
- "achievement" for good spending habits or staying under budget
- "tip" for general financial advice based on spending patterns
- "suggestion" for specific actionable recommendations
- Keep messages concise and actionable
- Be encouraging but honest{{end}}

{{define "analysis"}}You are a friendly financial advisor. Provide a brief, conversational analysis of this spending data.

Expenses this period:
{{json .Expenses}}

Budget status:
{{json .Budgets}}

Write a 2-3 sentence summary that:
1. Highlights the main spending pattern
2. Gives one actionable tip
3. Uses a warm, encouraging tone

Keep it under 100 words. No bullet points or lists - just natural conversation.{{end}}

{{define "chat"}}You are Foretrack AI, a friendly and helpful personal finance assistant. The user is asking about their finances.

User's financial context:
- Total spent this month: {{.Data.TotalSpent}}
- Recent expenses: {{compact .Recent}}
- Budget status: {{compact .Data.Budgets}}

User's question: "{{.Message}}"

Provide a helpful, concise response (2-4 sentences). Be friendly, use emojis sparingly, and give specific advice when possible. If the question isn't about finances, politely redirect to financial topics.{{end}}
`))

func render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := prompts.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s prompt: %w", name, err)
	}
	return buf.String(), nil
}

// InsightsPrompt asks for a JSON array of insight cards.
func InsightsPrompt(d Data) (string, error) {
	return render("insights", d)
}

// AnalysisPrompt asks for a short narrative.
func AnalysisPrompt(d Data) (string, error) {
	return render("analysis", d)
}

// ChatPrompt answers a sanitized user question against the recent expenses.
func ChatPrompt(d Data, message string) (string, error) {
	return render("chat", struct {
		Data    Data
		Recent  []ExpenseData
		Message string
	}{d, d.recent(), message})
}

// CategorizePrompt asks for exactly one built-in expense category name.
func CategorizePrompt(description, amount string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Categorize this expense description into one of these categories: %s\n\n",
		strings.Join(core.ExpenseCategoryNames(), ", "))
	fmt.Fprintf(&b, "Expense description: %q\n", description)
	if amount != "" {
		fmt.Fprintf(&b, "Amount: %s\n", amount)
	}
	b.WriteString("\nReturn ONLY the category name, nothing else.")
	return b.String()
}

// TipsPrompt asks for three tips as a JSON array of strings.
func TipsPrompt(top []analytics.Total, cur core.Currency) string {
	var b strings.Builder
	b.WriteString("Based on these top spending categories, provide 3 specific, actionable tips to save money:\n\n")
	b.WriteString("Top spending categories:\n")
	for _, t := range top {
		fmt.Fprintf(&b, "- %s: %s\n", t.Name, t.Amount.Display(cur))
	}
	b.WriteString("\nReturn ONLY a JSON array of 3 tip strings (no markdown):\n")
	b.WriteString(`["tip 1", "tip 2", "tip 3"]`)
	b.WriteString("\n\nMake tips specific to the categories shown, practical, and encouraging.")
	return b.String()
}
