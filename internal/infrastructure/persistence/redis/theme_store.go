package redis

import (
	"context"
	"errors"
	"strconv"

	"github.com/bilim-hub/bilim-reward-hub/internal/domain/student"
)

// ThemeStore implements student.ThemeStore on the shared Redis database.
// The theme key is written by the rendering layer and by other portal
// surfaces; this store only reflects it.
type ThemeStore struct {
	store     *Store
	sessionID string
}

// NewThemeStore creates a ThemeStore bound to one portal session.
func NewThemeStore(store *Store, sessionID string) *ThemeStore {
	return &ThemeStore{store: store, sessionID: sessionID}
}

// Theme returns the current theme value. Empty string means unset.
func (t *ThemeStore) Theme(ctx context.Context) (string, error) {
	val, err := t.store.GetString(ctx, ThemeKey(t.sessionID))
	if err != nil {
		if errors.Is(err, ErrKeyMiss) {
			return "", nil
		}
		return "", err
	}
	return val, nil
}

// SetTheme writes the theme value and announces the change so other
// sessions can reconcile without waiting for their next poll.
func (t *ThemeStore) SetTheme(ctx context.Context, theme string) error {
	if err := t.store.SetString(ctx, ThemeKey(t.sessionID), theme, 0); err != nil {
		return err
	}
	// Best effort: a missed announcement is caught by the next poll.
	_ = t.store.Publish(ctx, ChannelThemeChanged, theme)
	return nil
}

// ViewportWidth returns the last viewport width reported by the rendering
// layer. Zero means unset.
func (t *ThemeStore) ViewportWidth(ctx context.Context) (int, error) {
	val, err := t.store.GetString(ctx, ViewportKey(t.sessionID))
	if err != nil {
		if errors.Is(err, ErrKeyMiss) {
			return 0, nil
		}
		return 0, err
	}

	width, err := strconv.Atoi(val)
	if err != nil {
		return 0, nil
	}
	return width, nil
}

// SetViewportWidth records the viewport width.
func (t *ThemeStore) SetViewportWidth(ctx context.Context, width int) error {
	return t.store.SetString(ctx, ViewportKey(t.sessionID), strconv.Itoa(width), 0)
}

var _ student.ThemeStore = (*ThemeStore)(nil)
