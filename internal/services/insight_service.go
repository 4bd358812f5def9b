package services

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"foretrack/internal/analytics"
	"foretrack/internal/cache"
	"foretrack/internal/core"
	"foretrack/internal/inference"
	"foretrack/internal/insights"
	"foretrack/internal/log"
	"foretrack/internal/ports"
)

// InsightScope names the persisted dashboard insight snapshot.
const InsightScope = "insights"

// InsightStore is what InsightService persists through.
type InsightStore interface {
	ports.RevisionStore
	ports.SnapshotStore
}

// InsightCacheEntry is a cached result, the revision it was computed at and
// the day its month window ended.
type InsightCacheEntry struct {
	Revision int64
	Day      core.Date
	Items    []insights.Insight
}

// InsightService asks the model about a user's ledger. Every method degrades
// to fixed text instead of failing.
//
// Dashboard insights are keyed by the user's revision and the current day: a
// cached or persisted result computed today at the current revision is served
// as is, and a result computed at an older revision is never published over a
// newer one. Users marked stale by Invalidate skip both until a new result is
// published.
type InsightService struct {
	analytics *AnalyticsService
	store     InsightStore
	model     inference.Generator
	cache     *cache.LRUCache[InsightCacheEntry]
	gens      *analytics.Generations
	group     singleflight.Group
	stale     sync.Map // userID -> struct{}
	logger    *log.Logger
	now       func() time.Time
}

func NewInsightService(a *AnalyticsService, store InsightStore, model inference.Generator, c *cache.LRUCache[InsightCacheEntry], logger *log.Logger) *InsightService {
	if model == nil {
		model = inference.Disabled{}
	}
	return &InsightService{
		analytics: a,
		store:     store,
		model:     model,
		cache:     c,
		gens:      analytics.NewGenerations(),
		logger:    logger.WithComponent(log.ComponentInsights),
		now:       utcNow,
	}
}

// NewInsightCache builds the LRU cache InsightService keeps results in.
func NewInsightCache(size int, ttl time.Duration) *cache.LRUCache[InsightCacheEntry] {
	return cache.NewLRUCache[InsightCacheEntry](size, ttl)
}

// Insights returns the dashboard cards for the month range. It never fails.
func (s *InsightService) Insights(ctx context.Context, userID string) []insights.Insight {
	rev, err := s.store.Revision(ctx, userID)
	if err != nil {
		// Without a revision nothing can be matched or published safely.
		s.logger.WarnContext(ctx, "Revision lookup failed", log.FieldUserID, userID, log.FieldError, err)
		return s.generate(ctx, userID, rev, false)
	}

	today := core.DateOf(s.now())
	if !s.isStale(userID) {
		if c, ok := s.cache.Get(userID); ok && c.Revision == rev && c.Day.Equal(today.Time) {
			return c.Items
		}
		if items, ok := s.loadSnapshot(ctx, userID, rev, today); ok {
			return items
		}
	}

	key := userID + "@" + strconv.FormatInt(rev, 10) + "@" + today.String()
	v, _, _ := s.group.Do(key, func() (any, error) {
		return s.generate(ctx, userID, rev, true), nil
	})
	return v.([]insights.Insight)
}

// Refresh regenerates insights for an event carrying revision. Events older
// than the user's current revision, or already covered by a snapshot stored
// today, are ignored.
func (s *InsightService) Refresh(ctx context.Context, userID string, revision int64) error {
	current, err := s.store.Revision(ctx, userID)
	if err != nil {
		return err
	}
	if revision < current {
		s.logger.DebugContext(ctx, "Skipping stale refresh",
			log.FieldUserID, userID, log.FieldRevision, revision, "current", current)
		return nil
	}
	today := core.DateOf(s.now())
	snap, err := s.store.LoadSnapshot(ctx, userID, InsightScope)
	switch {
	case err == nil && snap.Revision >= revision && core.DateOf(snap.CreatedAt).Equal(today.Time) && !s.isStale(userID):
		return nil
	case err != nil && !errors.Is(err, core.ErrNotFound):
		return err
	}
	key := userID + "@" + strconv.FormatInt(revision, 10) + "@" + today.String()
	s.group.Do(key, func() (any, error) {
		return s.generate(ctx, userID, revision, true), nil
	})
	return nil
}

// Invalidate drops the cached insights of userID and stops its stored
// snapshot from being served until a new result is published. Writes call it
// when they could not bump the user's revision.
func (s *InsightService) Invalidate(userID string) {
	s.stale.Store(userID, struct{}{})
	s.cache.Delete(userID)
}

func (s *InsightService) isStale(userID string) bool {
	_, ok := s.stale.Load(userID)
	return ok
}

// loadSnapshot serves a snapshot stored today at revision rev. Older
// snapshots would describe a month window that has since moved.
func (s *InsightService) loadSnapshot(ctx context.Context, userID string, rev int64, today core.Date) ([]insights.Insight, bool) {
	snap, err := s.store.LoadSnapshot(ctx, userID, InsightScope)
	if err != nil || snap.Revision != rev || !core.DateOf(snap.CreatedAt).Equal(today.Time) {
		return nil, false
	}
	var items []insights.Insight
	if err := json.Unmarshal(snap.Payload, &items); err != nil || len(items) == 0 {
		return nil, false
	}
	s.cache.Set(userID, InsightCacheEntry{Revision: rev, Day: today, Items: items})
	return items, true
}

// generate asks the model at revision rev. Only parsed model output is
// published, and only when publish is set; fallbacks are returned but never
// cached or stored.
func (s *InsightService) generate(ctx context.Context, userID string, rev int64, publish bool) []insights.Insight {
	gen := s.gens.Next(userID)
	now := s.now()

	rep := s.analytics.Report(ctx, userID, analytics.Month, now)
	if rep.Degraded {
		return []insights.Insight{insights.Fallback}
	}
	data := insights.NewData(rep.Records, rep.Budgets, rep.Currency)
	if !data.HasExpenses() {
		return []insights.Insight{insights.StartTracking}
	}

	prompt, err := insights.InsightsPrompt(data)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to build insights prompt", log.FieldError, err)
		return []insights.Insight{insights.Fallback}
	}
	raw, err := s.model.Generate(ctx, prompt)
	if err != nil {
		s.logFallback(ctx, userID, "insights", err)
		return []insights.Insight{insights.Fallback}
	}
	items, err := insights.ParseInsights(raw)
	if err != nil {
		s.logFallback(ctx, userID, "insights", err)
		return []insights.Insight{insights.Fallback}
	}

	if !publish {
		return items
	}
	if !s.gens.Accept(userID, gen) {
		s.logger.DebugContext(ctx, "Dropping superseded insights",
			log.FieldUserID, userID, log.FieldGeneration, gen)
		return items
	}
	s.publish(ctx, userID, rev, now, items)
	return items
}

func (s *InsightService) publish(ctx context.Context, userID string, rev int64, now time.Time, items []insights.Insight) {
	s.stale.Delete(userID)
	if c, ok := s.cache.Get(userID); !ok || c.Revision <= rev {
		s.cache.Set(userID, InsightCacheEntry{Revision: rev, Day: core.DateOf(now), Items: items})
	}

	payload, err := json.Marshal(items)
	if err != nil {
		return
	}
	written, err := s.store.SaveSnapshot(ctx, core.InsightSnapshot{
		UserID:    userID,
		Scope:     InsightScope,
		Revision:  rev,
		Payload:   payload,
		CreatedAt: now,
	})
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to persist insights", log.FieldUserID, userID, log.FieldError, err)
		return
	}
	s.logger.DebugContext(ctx, "Insights generated",
		log.FieldUserID, userID, log.FieldRevision, rev, "persisted", written, "count", len(items))
}

// Chat answers a question about the user's month. Empty or oversized
// messages are a ValidationError; model failures become a fixed reply.
func (s *InsightService) Chat(ctx context.Context, userID, message string) (string, error) {
	msg, err := insights.Sanitize(message, insights.MaxMessageLength)
	if err != nil {
		return "", invalid(err)
	}

	rep := s.analytics.Report(ctx, userID, analytics.Month, s.now())
	prompt, err := insights.ChatPrompt(insights.NewData(rep.Records, rep.Budgets, rep.Currency), msg)
	if err != nil {
		return insights.ChatErrorReply, nil
	}
	raw, err := s.model.Generate(ctx, prompt)
	if err != nil {
		s.logFallback(ctx, userID, "chat", err)
		return insights.ChatErrorReply, nil
	}
	if reply, ok := insights.NormalizeText(raw); ok {
		return reply, nil
	}
	return insights.ChatEmptyReply, nil
}

// Categorize suggests a built-in expense category for a description.
func (s *InsightService) Categorize(ctx context.Context, description, amount string) (string, error) {
	desc, err := insights.Sanitize(description, insights.MaxDescription)
	if err != nil {
		return "", invalid(err)
	}
	raw, err := s.model.Generate(ctx, insights.CategorizePrompt(desc, amount))
	if err != nil {
		s.logFallback(ctx, "", "categorize", err)
		return core.OtherCategory, nil
	}
	return insights.NormalizeCategory(raw), nil
}

// SavingsTips returns three tips for the month's top categories.
func (s *InsightService) SavingsTips(ctx context.Context, userID string) []string {
	rep := s.analytics.Report(ctx, userID, analytics.Month, s.now())
	if rep.Degraded || len(rep.Current.TopCategories) == 0 {
		return fallbackTips()
	}
	raw, err := s.model.Generate(ctx, insights.TipsPrompt(rep.Current.TopCategories, rep.Currency))
	if err != nil {
		s.logFallback(ctx, userID, "tips", err)
		return fallbackTips()
	}
	tips, err := insights.ParseTips(raw)
	if err != nil {
		s.logFallback(ctx, userID, "tips", err)
		return fallbackTips()
	}
	return tips
}

// Analysis returns a short narrative about the range.
func (s *InsightService) Analysis(ctx context.Context, userID string, r analytics.Range) string {
	return s.Narrate(ctx, s.analytics.Report(ctx, userID, r, s.now()))
}

// Narrate writes the narrative for an already computed report.
func (s *InsightService) Narrate(ctx context.Context, rep Report) string {
	if rep.Degraded {
		return insights.AnalysisFallback
	}
	data := insights.NewData(rep.Records, rep.Budgets, rep.Currency)
	if !data.HasExpenses() {
		return insights.AnalysisFallback
	}
	prompt, err := insights.AnalysisPrompt(data)
	if err != nil {
		return insights.AnalysisFallback
	}
	raw, err := s.model.Generate(ctx, prompt)
	if err != nil {
		s.logFallback(ctx, "", "analysis", err)
		return insights.AnalysisFallback
	}
	if text, ok := insights.NormalizeText(raw); ok {
		return text
	}
	return insights.AnalysisFallback
}

func (s *InsightService) logFallback(ctx context.Context, userID, what string, err error) {
	level := s.logger.WarnContext
	if errors.Is(err, inference.ErrDisabled) {
		level = s.logger.DebugContext
	}
	level(ctx, "Serving fallback", log.FieldUserID, userID, log.FieldOperation, what, log.FieldError, err)
}

func fallbackTips() []string {
	return append([]string(nil), insights.FallbackTips...)
}
