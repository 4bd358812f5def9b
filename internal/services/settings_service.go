package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"foretrack/internal/core"
	"foretrack/internal/ports"
)

// SettingsStore is what SettingsService needs from storage.
type SettingsStore interface {
	ports.SettingsStore
	ports.RevisionStore
}

// SettingsService reads and saves user settings. The base currency shapes
// every report, so saving bumps the user's revision.
type SettingsService struct {
	store SettingsStore
	revs  *revisions
	now   func() time.Time
}

func NewSettingsService(store SettingsStore) *SettingsService {
	return &SettingsService{store: store, revs: newRevisions(store), now: utcNow}
}

// NotifyStale registers inv to be told when a save could not bump the
// user's revision.
func (s *SettingsService) NotifyStale(inv Invalidator) {
	s.revs.notify(inv)
}

// Get returns the stored settings, or the defaults when none were saved.
func (s *SettingsService) Get(ctx context.Context, userID string) (core.Settings, error) {
	st, err := s.store.GetSettings(ctx, userID)
	if errors.Is(err, core.ErrNotFound) {
		return core.DefaultSettings(userID), nil
	}
	if err != nil {
		return core.Settings{}, fmt.Errorf("get settings: %w", err)
	}
	return st, nil
}

func (s *SettingsService) Put(ctx context.Context, userID string, st core.Settings) (core.Settings, error) {
	st.UserID = userID
	st.Email = strings.TrimSpace(st.Email)
	if st.Currency == "" {
		st.Currency = core.USD
	}
	if err := st.Validate(); err != nil {
		return core.Settings{}, invalid(err)
	}
	st.UpdatedAt = s.now()
	if err := s.store.PutSettings(ctx, st); err != nil {
		return core.Settings{}, fmt.Errorf("save settings: %w", err)
	}
	// The settings are saved; a failed bump only invalidates derived data.
	_, _ = s.revs.bump(ctx, userID)
	return st, nil
}
