package saga

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bilim-hub/bilim-reward-hub/internal/domain/student"
	"github.com/bilim-hub/bilim-reward-hub/internal/domain/toast"
)

// ══════════════════════════════════════════════════════════════════════════════
// ONBOARDING SAGA
// Бизнес-процесс начала сессии студента.
// Flow: Load Record → (миграция схемы происходит в хранилище) →
//
//	Provision при отсутствии → Persist → Welcome Toast
//
// Запись прошлых версий схемы мигрирует прозрачно при чтении: хранилище
// само пересохраняет её в текущей схеме. Сага отвечает только за случай,
// когда записи нет вовсе.
// ══════════════════════════════════════════════════════════════════════════════

// OnboardingInput contains data required to start a session.
type OnboardingInput struct {
	// StudentID - идентификатор студента.
	StudentID string

	// Name - отображаемое имя.
	Name string

	// Username - логин на портале.
	Username string
}

// ErrInvalidOnboardingInput - вход сценария не прошёл проверку.
var ErrInvalidOnboardingInput = errors.New("invalid onboarding input")

// Validate checks if the input is valid.
func (i OnboardingInput) Validate() error {
	if i.StudentID == "" {
		return fmt.Errorf("%w: student id is required", ErrInvalidOnboardingInput)
	}
	if i.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidOnboardingInput)
	}
	return nil
}

// OnboardingConfig contains configuration for the onboarding saga.
type OnboardingConfig struct {
	// InitialBalance - стартовый баланс новой записи.
	InitialBalance int

	// WelcomeToast - показывать ли приветственный тост новичку.
	WelcomeToast bool
}

// DefaultOnboardingConfig returns default configuration.
func DefaultOnboardingConfig() OnboardingConfig {
	return OnboardingConfig{
		InitialBalance: 0,
		WelcomeToast:   true,
	}
}

// OnboardingResult contains the result of session start.
type OnboardingResult struct {
	// Record - запись студента после входа.
	Record *student.Record

	// Provisioned - была ли запись создана заново.
	Provisioned bool
}

// OnboardingSaga готовит запись студента к сессии.
type OnboardingSaga struct {
	records  student.RecordRepository
	notifier Notifier
	logger   *slog.Logger
	config   OnboardingConfig
}

// NewOnboardingSaga creates the onboarding saga.
func NewOnboardingSaga(
	records student.RecordRepository,
	notifier Notifier,
	logger *slog.Logger,
	config OnboardingConfig,
) *OnboardingSaga {
	if logger == nil {
		logger = slog.Default()
	}

	return &OnboardingSaga{
		records:  records,
		notifier: notifier,
		logger:   logger,
		config:   config,
	}
}

// Execute загружает запись, создавая новую при отсутствии.
func (s *OnboardingSaga) Execute(ctx context.Context, input OnboardingInput) (*OnboardingResult, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	// Шаг 1: попытка загрузки. Миграция старых схем происходит внутри.
	rec, err := s.records.Load(ctx)
	if err == nil {
		s.logger.Info("session started with existing record",
			slog.Int("balance", int(rec.Aqcha)),
			slog.Int("schema", rec.SchemaVersion),
		)
		return &OnboardingResult{Record: rec}, nil
	}
	if !errors.Is(err, student.ErrRecordNotFound) {
		return nil, fmt.Errorf("onboarding: load record: %w", err)
	}

	// Шаг 2: записи нет, создаём новую.
	rec, err = student.NewRecord(student.NewRecordParams{
		ID:             input.StudentID,
		Name:           input.Name,
		Username:       input.Username,
		InitialBalance: s.config.InitialBalance,
	})
	if err != nil {
		return nil, fmt.Errorf("onboarding: new record: %w", err)
	}

	if err := s.records.Persist(ctx, rec); err != nil {
		return nil, fmt.Errorf("onboarding: persist record: %w", err)
	}

	// Шаг 3: приветствие.
	if s.config.WelcomeToast && s.notifier != nil {
		s.notifier.Enqueue(
			toast.SeverityInfo,
			"Добро пожаловать",
			fmt.Sprintf("Привет, %s! Твой баланс: %d aqcha", rec.Name, rec.Aqcha),
		)
	}

	s.logger.Info("new student record provisioned",
		slog.String("student_id", rec.ID),
		slog.Int("initial_balance", int(rec.Aqcha)),
	)

	return &OnboardingResult{Record: rec, Provisioned: true}, nil
}
