package ingest

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/bilgisen/newswire/internal/feed"
	"github.com/bilgisen/newswire/internal/models"
)

var (
	ErrCooldownActive      = errors.New("ingestion cooldown active")
	ErrProviderUnavailable = errors.New("provider unavailable")
	ErrValidationFailed    = errors.New("validation failed")
	ErrStorageFailure      = errors.New("storage failure")
)

// FailureKind classifies why a category failed.
type FailureKind string

const (
	KindProviderUnavailable FailureKind = "provider_unavailable"
	KindValidationFailed    FailureKind = "validation_failed"
	KindStorageFailure      FailureKind = "storage_failure"
)

func (k FailureKind) sentinel() error {
	switch k {
	case KindProviderUnavailable:
		return ErrProviderUnavailable
	case KindValidationFailed:
		return ErrValidationFailed
	default:
		return ErrStorageFailure
	}
}

// CooldownError rejects a run that starts too soon after the last successful one.
type CooldownError struct {
	DaysRemaining int
	LastRun       time.Time
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("cooldown active, %d days remaining", e.DaysRemaining)
}

func (e *CooldownError) Is(target error) bool {
	return target == ErrCooldownActive
}

func newCooldownError(lastRun, now time.Time, cooldown time.Duration) *CooldownError {
	remaining := lastRun.Add(cooldown).Sub(now)
	return &CooldownError{
		DaysRemaining: int(math.Ceil(remaining.Hours() / 24)),
		LastRun:       lastRun,
	}
}

// CategoryError reports the failure of a single category.
type CategoryError struct {
	Category models.Category
	Kind     FailureKind
	Err      error
}

func (e *CategoryError) Error() string {
	return fmt.Sprintf("category %s: %s: %v", e.Category, e.Kind, e.Err)
}

func (e *CategoryError) Unwrap() error {
	return e.Err
}

func (e *CategoryError) Is(target error) bool {
	return target == e.Kind.sentinel()
}

// classify maps an error from the feed pipeline to a failure kind.
func classify(err error) FailureKind {
	switch {
	case errors.Is(err, feed.ErrProviderUnavailable):
		return KindProviderUnavailable
	case errors.Is(err, feed.ErrInvalidPayload):
		return KindValidationFailed
	default:
		return KindStorageFailure
	}
}
