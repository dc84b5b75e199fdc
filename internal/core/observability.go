package core

import (
	"context"
	"time"

	"admissions/pkg/domain"
)

// MetricsRecorder receives one observation per service operation.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

// StateObserver is implemented by recorders that also track aggregate gauges.
// The service calls it after every committed mutation.
type StateObserver interface {
	ObserveState(state domain.AppState)
}

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

type noopMetrics struct{}

func (noopMetrics) Observe(context.Context, string, bool, time.Duration) {}
