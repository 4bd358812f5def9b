// Package notify delivers the weekly summary by email.
package notify

import (
	"context"
	"errors"
	"fmt"
	"net/smtp"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/jordan-wright/email"

	"foretrack/internal/analytics"
	"foretrack/internal/core"
	"foretrack/internal/log"
	"foretrack/internal/services"
)

// ErrDisabled is returned by a sender without an SMTP host.
var ErrDisabled = errors.New("email is not configured")

// SMTPConfig holds the outgoing mail server settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type sendFunc func(e *email.Email, addr string, auth smtp.Auth) error

// EmailSender sends mail through one SMTP server with PLAIN auth.
type EmailSender struct {
	cfg    SMTPConfig
	send   sendFunc
	logger *log.Logger
}

func NewEmailSender(cfg SMTPConfig, logger *log.Logger) *EmailSender {
	return &EmailSender{
		cfg: cfg,
		send: func(e *email.Email, addr string, auth smtp.Auth) error {
			return e.Send(addr, auth)
		},
		logger: logger.WithComponent(log.ComponentNotify),
	}
}

// Enabled reports whether a host is configured.
func (s *EmailSender) Enabled() bool {
	return s != nil && s.cfg.Host != ""
}

// SendWeeklySummary mails the report and its narrative to one recipient.
func (s *EmailSender) SendWeeklySummary(ctx context.Context, to string, rep services.Report, narrative string) error {
	if !s.Enabled() {
		return ErrDisabled
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	subject, body := ComposeWeeklySummary(rep, narrative)
	e := email.NewEmail()
	e.From = s.cfg.From
	e.To = []string{to}
	e.Subject = subject
	e.Text = []byte(body)

	addr := s.cfg.Host + ":" + strconv.Itoa(s.cfg.Port)
	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}
	if err := s.send(e, addr, auth); err != nil {
		s.logger.ErrorContext(ctx, "Failed to send weekly summary", "to", to, log.FieldError, err)
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.InfoContext(ctx, "Email sent", "to", to, "subject", subject)
	return nil
}

// ComposeWeeklySummary renders the subject and plain-text body of a weekly
// summary. Amounts are shown in the report's currency.
func ComposeWeeklySummary(rep services.Report, narrative string) (subject, body string) {
	cur := rep.Currency
	w := rep.Current.Window
	subject = fmt.Sprintf("Your week in spending: %s", span(w))

	var b strings.Builder
	fmt.Fprintf(&b, "Here is your summary for %s.\n\n", span(w))

	t := rep.Current.Totals
	fmt.Fprintf(&b, "Spent:  %s across %s %s\n", amount(t.Expense, cur),
		humanize.Comma(int64(rep.Current.ExpenseCount)), plural(rep.Current.ExpenseCount, "expense", "expenses"))
	fmt.Fprintf(&b, "Earned: %s\n", amount(t.Income, cur))
	fmt.Fprintf(&b, "Net:    %s\n", amount(t.Net, cur))
	if rep.Previous.Totals.Expense.Minor > 0 {
		fmt.Fprintf(&b, "Spending is %s compared to the week before.\n", direction(rep.Changes.Expense))
	}

	if top := rep.Current.TopCategories; len(top) > 0 {
		b.WriteString("\nTop categories\n")
		for _, c := range top {
			fmt.Fprintf(&b, "- %s: %s\n", c.Name, amount(c.Amount, cur))
		}
	}

	if len(rep.Budgets) > 0 {
		b.WriteString("\nBudgets\n")
		for _, st := range rep.Budgets {
			fmt.Fprintf(&b, "- %s (%s): %s of %s, %s%%%s\n",
				st.Budget.Category, st.Budget.Period,
				amount(st.Spent, cur), amount(st.Budget.Limit, cur),
				humanize.FtoaWithDigits(st.Percent, 1), bandNote(st.Band))
		}
	}

	if narrative = strings.TrimSpace(narrative); narrative != "" {
		b.WriteString("\n")
		b.WriteString(narrative)
		b.WriteString("\n")
	}
	b.WriteString("\nYou are receiving this because weekly summaries are on in your settings.\n")
	return subject, b.String()
}

func span(w analytics.Window) string {
	return fmt.Sprintf("%s %s to %s %s, %d",
		w.Start.Month().String()[:3], humanize.Ordinal(w.Start.Day()),
		w.End.Month().String()[:3], humanize.Ordinal(w.End.Day()),
		w.End.Year())
}

func direction(pct float64) string {
	switch {
	case pct > 0:
		return "up " + humanize.FtoaWithDigits(pct, 1) + "%"
	case pct < 0:
		return "down " + humanize.FtoaWithDigits(-pct, 1) + "%"
	default:
		return "unchanged"
	}
}

func bandNote(b analytics.Band) string {
	switch b {
	case analytics.BandOver:
		return " (over budget)"
	case analytics.BandNear:
		return " (nearly spent)"
	default:
		return ""
	}
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

// amount formats minor units with thousands separators, e.g. "$1,234.50".
func amount(m core.Money, cur core.Currency) string {
	sign := ""
	minor := m.Minor
	if minor < 0 {
		sign, minor = "-", -minor
	}
	exp := cur.Exponent()
	if exp == 0 {
		return sign + cur.Symbol() + humanize.Comma(minor)
	}
	div := int64(1)
	for i := 0; i < exp; i++ {
		div *= 10
	}
	return fmt.Sprintf("%s%s%s.%0*d", sign, cur.Symbol(), humanize.Comma(minor/div), exp, minor%div)
}
