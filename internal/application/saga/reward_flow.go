// Package saga contains complex business processes that orchestrate
// multiple domain operations in a coordinated manner.
package saga

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bilim-hub/bilim-reward-hub/internal/application/command"
	"github.com/bilim-hub/bilim-reward-hub/internal/domain/achievement"
	"github.com/bilim-hub/bilim-reward-hub/internal/domain/catalog"
	"github.com/bilim-hub/bilim-reward-hub/internal/domain/shared"
	"github.com/bilim-hub/bilim-reward-hub/internal/domain/student"
	"github.com/bilim-hub/bilim-reward-hub/internal/domain/toast"
)

// ══════════════════════════════════════════════════════════════════════════════
// REWARD FLOW SAGA
// Бизнес-процесс начисления наград за достижения.
// Flow: Purchase Event → Evaluate Conditions → Unlock → Credit Rewards →
//
//	Persist → Audit → Toast per Achievement → Popup → Publish Events
//
// Условия проверяются в порядке идентификаторов, уже открытые достижения
// пропускаются навсегда. Открытие за одну покупку сразу нескольких
// достижений - нормальный случай: награды суммируются в одном сохранении.
// ══════════════════════════════════════════════════════════════════════════════

// Notifier enqueues toasts for unlocked achievements.
type Notifier interface {
	Enqueue(severity toast.Severity, title, message string) (toast.ID, error)
}

// AchievementRecorder receives unlock counts for instrumentation.
type AchievementRecorder interface {
	RecordAchievement(code string)
}

// RewardFlowConfig contains configuration for the reward flow saga.
type RewardFlowConfig struct {
	// PopupDuration - сколько держится попап достижения.
	PopupDuration time.Duration

	// MaxPersistRetries - попыток сохранения при гонке версий.
	MaxPersistRetries int
}

// DefaultRewardFlowConfig returns default configuration.
func DefaultRewardFlowConfig() RewardFlowConfig {
	return RewardFlowConfig{
		PopupDuration:     5 * time.Second,
		MaxPersistRetries: 3,
	}
}

// Popup - текущий попап достижения. Слот один: новое открытие
// замещает предыдущее, последний пишущий выигрывает.
type Popup struct {
	Achievement achievement.Achievement
	ShownAt     time.Time
}

// RewardFlowResult contains the result of one evaluation pass.
type RewardFlowResult struct {
	// Unlocked - открытые за этот проход достижения.
	Unlocked []achievement.Achievement

	// TotalReward - суммарная награда в aqcha.
	TotalReward int

	// NewBalance - баланс после начисления. Равен прежнему, если
	// ничего не открылось.
	NewBalance int
}

// RewardFlowSaga слушает события покупок и начисляет награды за достижения.
//
// Набор достижений живёт в памяти процесса. При старте сага прогревается:
// условия, уже выполненные сохранённой записью, помечаются открытыми без
// начисления, чтобы перезапуск не раздавал награды повторно.
type RewardFlowSaga struct {
	records   student.RecordRepository
	catalog   *catalog.Catalog
	ledger    student.AuditLedger
	notifier  Notifier
	publisher shared.EventPublisher
	recorder  AchievementRecorder
	logger    *slog.Logger
	config    RewardFlowConfig

	mu  sync.Mutex
	set *achievement.Set

	popupMu    sync.Mutex
	popup      *Popup
	popupTimer *time.Timer

	now   func() time.Time
	newID func() string
}

// NewRewardFlowSaga creates the saga with the default achievement set.
func NewRewardFlowSaga(
	records student.RecordRepository,
	cat *catalog.Catalog,
	ledger student.AuditLedger,
	notifier Notifier,
	publisher shared.EventPublisher,
	recorder AchievementRecorder,
	logger *slog.Logger,
	config RewardFlowConfig,
) *RewardFlowSaga {
	if logger == nil {
		logger = slog.Default()
	}
	if config.PopupDuration <= 0 {
		config.PopupDuration = DefaultRewardFlowConfig().PopupDuration
	}
	if config.MaxPersistRetries <= 0 {
		config.MaxPersistRetries = DefaultRewardFlowConfig().MaxPersistRetries
	}

	return &RewardFlowSaga{
		records:   records,
		catalog:   cat,
		ledger:    ledger,
		notifier:  notifier,
		publisher: publisher,
		recorder:  recorder,
		logger:    logger,
		config:    config,
		set:       achievement.Defaults(),
		now:       func() time.Time { return time.Now().UTC() },
		newID:     uuid.NewString,
	}
}

// Attach subscribes the saga to purchase events on the bus.
func (s *RewardFlowSaga) Attach(bus shared.EventSubscriber) error {
	handler := func(event shared.Event) error {
		_, err := s.Execute(context.Background())
		return err
	}

	if err := bus.Subscribe(shared.EventPurchaseCompleted, handler); err != nil {
		return fmt.Errorf("subscribe purchase_completed: %w", err)
	}
	if err := bus.Subscribe(shared.EventCheckoutCompleted, handler); err != nil {
		return fmt.Errorf("subscribe checkout_completed: %w", err)
	}
	return nil
}

// Prime помечает уже выполненные условия открытыми без начисления наград.
// Вызывается один раз при старте, до подписки на события.
func (s *RewardFlowSaga) Prime(ctx context.Context) error {
	rec, err := s.records.Load(ctx)
	if err != nil {
		if errors.Is(err, student.ErrRecordNotFound) {
			return nil
		}
		return fmt.Errorf("prime reward flow: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	primed := s.set.Evaluate(rec, s.catalog, s.now())
	if len(primed) > 0 {
		codes := make([]string, 0, len(primed))
		for _, a := range primed {
			codes = append(codes, a.Code)
		}
		s.logger.Info("reward flow primed", slog.Any("already_unlocked", codes))
	}
	return nil
}

// Execute прогоняет один проход оценки достижений.
func (s *RewardFlowSaga) Execute(ctx context.Context) (*RewardFlowResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Шаг 1: перечитать запись. Команда уже сохранила покупку,
	// поэтому оцениваем именно то, что лежит в хранилище.
	rec, err := s.records.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("reward flow: load record: %w", err)
	}

	// Шаг 2: оценить условия в порядке идентификаторов.
	unlocked := s.set.Evaluate(rec, s.catalog, s.now())
	if len(unlocked) == 0 {
		return &RewardFlowResult{NewBalance: int(rec.Aqcha)}, nil
	}

	totalReward := 0
	for _, a := range unlocked {
		totalReward += a.Reward
	}

	// Шаг 3: начислить награды и сохранить. При гонке версий запись
	// перечитывается и начисление повторяется на свежей копии.
	rec, err = s.creditWithRetry(ctx, rec, totalReward)
	if err != nil {
		return nil, err
	}

	// Шаг 4: журнал аудита, по строке на достижение.
	for _, a := range unlocked {
		s.appendAudit(ctx, rec, a)
	}

	// Шаг 5: тост на каждое достижение и попап на последнее.
	result := &RewardFlowResult{TotalReward: totalReward, NewBalance: int(rec.Aqcha)}
	for _, a := range unlocked {
		result.Unlocked = append(result.Unlocked, *a)

		s.notifier.Enqueue(
			toast.SeveritySuccess,
			"Достижение открыто",
			fmt.Sprintf("%s: +%d aqcha", a.Title, a.Reward),
		)
		s.showPopup(*a)

		if s.recorder != nil {
			s.recorder.RecordAchievement(a.Code)
		}

		// Шаг 6: событие на каждое достижение.
		if s.publisher != nil {
			event := shared.NewAchievementUnlockedEvent(s.newID(), rec.ID, a.Code, a.Reward)
			if err := s.publisher.Publish(event); err != nil {
				s.logger.Warn("failed to publish achievement event",
					slog.String("code", a.Code),
					slog.String("error", err.Error()),
				)
			}
		}

		s.logger.Info("achievement unlocked",
			slog.String("code", a.Code),
			slog.Int("reward", a.Reward),
		)
	}

	return result, nil
}

// creditWithRetry начисляет награду и сохраняет запись, повторяя
// на свежей копии при устаревшей версии.
func (s *RewardFlowSaga) creditWithRetry(ctx context.Context, rec *student.Record, reward int) (*student.Record, error) {
	for attempt := 0; ; attempt++ {
		if err := rec.Credit(reward); err != nil {
			return nil, fmt.Errorf("reward flow: credit: %w", err)
		}

		err := s.records.Persist(ctx, rec)
		if err == nil {
			return rec, nil
		}
		if !errors.Is(err, student.ErrStaleRecord) || attempt >= s.config.MaxPersistRetries-1 {
			return nil, fmt.Errorf("reward flow: persist: %w", err)
		}

		fresh, loadErr := s.records.Load(ctx)
		if loadErr != nil {
			return nil, fmt.Errorf("reward flow: reload after stale: %w", loadErr)
		}
		rec = fresh
	}
}

// showPopup помещает достижение в единственный слот попапа.
// Последний пишущий выигрывает, слот очищается сам по таймеру.
func (s *RewardFlowSaga) showPopup(a achievement.Achievement) {
	s.popupMu.Lock()
	defer s.popupMu.Unlock()

	if s.popupTimer != nil {
		s.popupTimer.Stop()
	}

	shownAt := s.now()
	s.popup = &Popup{Achievement: a, ShownAt: shownAt}
	s.popupTimer = time.AfterFunc(s.config.PopupDuration, func() {
		s.clearPopup(shownAt)
	})
}

// clearPopup очищает слот, только если его не заняли позже.
func (s *RewardFlowSaga) clearPopup(shownAt time.Time) {
	s.popupMu.Lock()
	defer s.popupMu.Unlock()

	if s.popup != nil && s.popup.ShownAt.Equal(shownAt) {
		s.popup = nil
	}
}

// CurrentPopup возвращает текущий попап или nil.
func (s *RewardFlowSaga) CurrentPopup() *Popup {
	s.popupMu.Lock()
	defer s.popupMu.Unlock()

	if s.popup == nil {
		return nil
	}
	p := *s.popup
	return &p
}

// DismissPopup очищает слот вручную.
func (s *RewardFlowSaga) DismissPopup() {
	s.popupMu.Lock()
	defer s.popupMu.Unlock()

	if s.popupTimer != nil {
		s.popupTimer.Stop()
		s.popupTimer = nil
	}
	s.popup = nil
}

// Achievements возвращает снимок текущего состояния достижений
// в порядке идентификаторов.
func (s *RewardFlowSaga) Achievements() []achievement.Achievement {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := s.set.All()
	out := make([]achievement.Achievement, 0, len(all))
	for _, a := range all {
		out = append(out, *a)
	}
	return out
}

// Close останавливает таймер попапа.
func (s *RewardFlowSaga) Close() {
	s.popupMu.Lock()
	defer s.popupMu.Unlock()

	if s.popupTimer != nil {
		s.popupTimer.Stop()
		s.popupTimer = nil
	}
}

func (s *RewardFlowSaga) appendAudit(ctx context.Context, rec *student.Record, a *achievement.Achievement) {
	if s.ledger == nil {
		return
	}

	entry := student.LedgerEntry{
		StudentID:  rec.ID,
		Kind:       "credit",
		Amount:     a.Reward,
		Balance:    int(rec.Aqcha),
		Source:     command.SourceReward + ":" + a.Code,
		OccurredAt: s.now(),
	}
	if err := s.ledger.Append(ctx, entry); err != nil {
		s.logger.Warn("failed to append reward audit entry",
			slog.String("code", a.Code),
			slog.String("error", err.Error()),
		)
	}
}
