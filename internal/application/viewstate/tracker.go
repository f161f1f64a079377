// Package viewstate отслеживает состояние отображения портала: тему
// и класс устройства. Внешний слой отображения пишет свои значения в
// общее хранилище, движок замечает расхождения фоновым опросом.
package viewstate

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/bilim-hub/bilim-reward-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// DEVICE CLASS
// ══════════════════════════════════════════════════════════════════════════════

// DeviceClass - класс устройства по ширине окна.
type DeviceClass string

const (
	// DeviceMobile - узкий экран, компактная раскладка.
	DeviceMobile DeviceClass = "mobile"

	// DeviceDesktop - широкий экран.
	DeviceDesktop DeviceClass = "desktop"
)

// MobileBreakpoint - граница мобильной раскладки в пикселях.
// Ширина строго меньше границы считается мобильной.
const MobileBreakpoint = 768

// ClassifyWidth возвращает класс устройства для указанной ширины.
func ClassifyWidth(width int) DeviceClass {
	if width < MobileBreakpoint {
		return DeviceMobile
	}
	return DeviceDesktop
}

// Темы портала. Пустой ключ в хранилище означает тему по умолчанию.
const (
	ThemeLight   = "light"
	ThemeDark    = "dark"
	DefaultTheme = ThemeLight
)

// ══════════════════════════════════════════════════════════════════════════════
// TRACKER
// ══════════════════════════════════════════════════════════════════════════════

// Store - доступ к ключам темы и ширины окна, которые пишет внешний слой.
type Store interface {
	Theme(ctx context.Context) (string, error)
	SetTheme(ctx context.Context, theme string) error
	ViewportWidth(ctx context.Context) (int, error)
	SetViewportWidth(ctx context.Context, width int) error
}

// Tracker кэширует тему и класс устройства и сверяет кэш с хранилищем.
// Reconcile вызывается фоновым опросом раз в секунду.
type Tracker struct {
	store     Store
	publisher shared.EventPublisher
	logger    *slog.Logger

	mu     sync.Mutex
	theme  string
	device DeviceClass
	width  int

	newID func() string
}

// NewTracker создаёт трекер с темой по умолчанию и настольным классом.
func NewTracker(store Store, publisher shared.EventPublisher, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}

	return &Tracker{
		store:     store,
		publisher: publisher,
		logger:    logger,
		theme:     DefaultTheme,
		device:    DeviceDesktop,
		width:     MobileBreakpoint,
		newID:     uuid.NewString,
	}
}

// Theme возвращает закэшированную тему.
func (t *Tracker) Theme() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.theme
}

// Device возвращает закэшированный класс устройства.
func (t *Tracker) Device() DeviceClass {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.device
}

// SetTheme переключает тему со стороны движка: пишет и в кэш,
// и в общее хранилище.
func (t *Tracker) SetTheme(ctx context.Context, theme string) error {
	if theme != ThemeLight && theme != ThemeDark {
		return fmt.Errorf("unknown theme %q", theme)
	}

	if err := t.store.SetTheme(ctx, theme); err != nil {
		return fmt.Errorf("set theme: %w", err)
	}

	t.mu.Lock()
	old := t.theme
	t.theme = theme
	t.mu.Unlock()

	if old != theme {
		t.publish(shared.NewThemeChangedEvent(t.newID(), old, theme))
	}
	return nil
}

// ReportViewport фиксирует ширину окна со стороны слоя отображения.
func (t *Tracker) ReportViewport(ctx context.Context, width int) error {
	if width <= 0 {
		return fmt.Errorf("viewport width must be positive")
	}
	if err := t.store.SetViewportWidth(ctx, width); err != nil {
		return fmt.Errorf("set viewport width: %w", err)
	}
	return nil
}

// Reconcile сверяет кэш с хранилищем и публикует события по расхождениям.
// Возвращает true, если хоть что-то поменялось.
func (t *Tracker) Reconcile(ctx context.Context) (changed bool, err error) {
	stored, err := t.store.Theme(ctx)
	if err != nil {
		return false, fmt.Errorf("reconcile theme: %w", err)
	}
	if stored == "" {
		stored = DefaultTheme
	}

	width, err := t.store.ViewportWidth(ctx)
	if err != nil {
		return false, fmt.Errorf("reconcile viewport: %w", err)
	}

	t.mu.Lock()
	oldTheme := t.theme
	oldDevice := t.device

	themeChanged := stored != t.theme
	if themeChanged {
		t.theme = stored
	}

	deviceChanged := false
	if width > 0 {
		t.width = width
		if next := ClassifyWidth(width); next != t.device {
			t.device = next
			deviceChanged = true
		}
	}
	newDevice := t.device
	t.mu.Unlock()

	if themeChanged {
		t.logger.Info("theme reconciled",
			slog.String("old", oldTheme),
			slog.String("new", stored),
		)
		t.publish(shared.NewThemeChangedEvent(t.newID(), oldTheme, stored))
	}
	if deviceChanged {
		t.logger.Info("device class changed",
			slog.String("old", string(oldDevice)),
			slog.String("new", string(newDevice)),
			slog.Int("width", width),
		)
		t.publish(shared.NewDeviceClassChangedEvent(t.newID(), string(oldDevice), string(newDevice), width))
	}

	return themeChanged || deviceChanged, nil
}

func (t *Tracker) publish(event shared.Event) {
	if t.publisher == nil {
		return
	}
	if err := t.publisher.Publish(event); err != nil {
		t.logger.Warn("failed to publish viewstate event",
			slog.String("event_type", string(event.EventType())),
			slog.String("error", err.Error()),
		)
	}
}
