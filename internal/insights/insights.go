// Package insights builds model prompts from ledger data and parses model
// output defensively. Every parser returns an error on anything unexpected;
// callers substitute the fixed fallbacks defined here.
package insights

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"foretrack/internal/core"
)

// Type classifies an insight card.
type Type string

const (
	Tip         Type = "tip"
	Warning     Type = "warning"
	Achievement Type = "achievement"
	Suggestion  Type = "suggestion"
)

// Input caps.
const (
	MaxExpenses      = 500
	MaxBudgets       = 50
	MaxMessageLength = 1000
	MaxDescription   = 500
	RecentExpenses   = 5
)

// Insight is one card shown on the dashboard.
type Insight struct {
	Type    Type   `json:"type"`
	Title   string `json:"title"`
	Message string `json:"message"`
	Icon    string `json:"icon"`
}

// Fallback is served whenever generation or parsing fails.
var Fallback = Insight{
	Type:    Tip,
	Title:   "Track Your Spending",
	Message: "Keep logging your expenses to get personalized AI insights about your spending habits.",
	Icon:    "💡",
}

// StartTracking is served to users without any expenses in range.
var StartTracking = Insight{
	Type:    Tip,
	Title:   "Start Tracking",
	Message: "Add your first expense to unlock AI-powered financial insights!",
	Icon:    "🚀",
}

const (
	ChatErrorReply   = "I'm having trouble processing that right now. Please try again!"
	ChatEmptyReply   = "I'm here to help with your finances! Try asking about your spending patterns or budget tips."
	AnalysisFallback = "Keep tracking your expenses to unlock personalized insights!"
)

// FallbackTips are returned when tip generation fails.
var FallbackTips = []string{
	"Set a weekly spending limit for your top categories",
	"Look for discounts and deals before making purchases",
	"Review your subscriptions and cancel unused ones",
}

var (
	ErrNoJSON       = errors.New("no JSON in model output")
	ErrEmptyResult  = errors.New("model output has no usable entries")
	ErrInputTooLong = errors.New("input too long")
	ErrInputEmpty   = errors.New("input is empty")
)

// Sanitize strips angle brackets, trims, and rejects input that is empty or
// longer than max runes.
func Sanitize(s string, max int) (string, error) {
	s = strings.TrimSpace(strings.NewReplacer("<", "", ">", "").Replace(s))
	if s == "" {
		return "", ErrInputEmpty
	}
	if utf8.RuneCountInString(s) > max {
		return "", fmt.Errorf("%w: max %d characters", ErrInputTooLong, max)
	}
	return s, nil
}

// StripFences removes markdown code fences around model output.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```JSON", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}

// extractArray returns the outermost [...] slice of s.
func extractArray(s string) (string, error) {
	s = StripFences(s)
	lo := strings.Index(s, "[")
	hi := strings.LastIndex(s, "]")
	if lo < 0 || hi <= lo {
		return "", ErrNoJSON
	}
	return s[lo : hi+1], nil
}

// ParseInsights decodes a JSON array of insights. Entries without a title or
// message are dropped; unknown types become Tip. An array with nothing left
// is an error.
func ParseInsights(raw string) ([]Insight, error) {
	body, err := extractArray(raw)
	if err != nil {
		return nil, err
	}
	var decoded []Insight
	if err := json.Unmarshal([]byte(body), &decoded); err != nil {
		return nil, fmt.Errorf("decode insights: %w", err)
	}
	out := make([]Insight, 0, len(decoded))
	for _, in := range decoded {
		in.Title = strings.TrimSpace(in.Title)
		in.Message = strings.TrimSpace(in.Message)
		if in.Title == "" || in.Message == "" {
			continue
		}
		switch in.Type {
		case Tip, Warning, Achievement, Suggestion:
		default:
			in.Type = Tip
		}
		if strings.TrimSpace(in.Icon) == "" {
			in.Icon = Fallback.Icon
		}
		out = append(out, in)
	}
	if len(out) == 0 {
		return nil, ErrEmptyResult
	}
	return out, nil
}

// ParseTips decodes a JSON array of strings, dropping blanks.
func ParseTips(raw string) ([]string, error) {
	body, err := extractArray(raw)
	if err != nil {
		return nil, err
	}
	var decoded []string
	if err := json.Unmarshal([]byte(body), &decoded); err != nil {
		return nil, fmt.Errorf("decode tips: %w", err)
	}
	out := decoded[:0]
	for _, t := range decoded {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	if len(out) == 0 {
		return nil, ErrEmptyResult
	}
	return out, nil
}

// NormalizeCategory maps a model answer onto a built-in expense category,
// ignoring case and surrounding punctuation. Anything else is Other.
func NormalizeCategory(raw string) string {
	answer := strings.Trim(StripFences(raw), " \t\r\n.\"'`*")
	for _, name := range core.ExpenseCategoryNames() {
		if strings.EqualFold(answer, name) {
			return name
		}
	}
	return core.OtherCategory
}

// NormalizeText trims model prose and reports whether anything is left.
func NormalizeText(raw string) (string, bool) {
	s := strings.TrimSpace(StripFences(raw))
	return s, s != ""
}
