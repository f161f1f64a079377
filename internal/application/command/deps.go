// Package command contains write operations (CQRS - Commands).
// Every economic mutation follows the same sequence: validate against the
// loaded record, mutate, persist, then notify. A validation failure leaves
// the record untouched and surfaces as a single error toast.
package command

import (
	"time"

	"github.com/bilim-hub/bilim-reward-hub/internal/domain/toast"
)

// Notifier enqueues ephemeral toasts for the rendering layer.
type Notifier interface {
	Enqueue(severity toast.Severity, title, message string) (toast.ID, error)
}

// TransactionRecorder receives transaction outcomes for instrumentation.
type TransactionRecorder interface {
	RecordTransaction(operation, outcome string, seconds float64)
}

// nopRecorder is used when no metrics sink is wired.
type nopRecorder struct{}

func (nopRecorder) RecordTransaction(string, string, float64) {}

// clock abstracts time.Now for tests.
type clock func() time.Time

func defaultClock() time.Time {
	return time.Now().UTC()
}

// Audit sources for ledger entries.
const (
	SourceBuy        = "buy"
	SourceCheckout   = "checkout"
	SourceOffer      = "offer"
	SourceConversion = "conversion"
	SourceReward     = "reward"
)
