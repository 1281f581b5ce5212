package service

import (
	"context"
	"io"
	"time"

	"github.com/sirupsen/logrus"
)

// UseCaseEvent captures lightweight execution telemetry for a service use case.
type UseCaseEvent struct {
	Name      string
	Duration  time.Duration
	Success   bool
	Err       error
	Fields    map[string]any
	StartedAt time.Time
}

// UseCaseObserver receives use-case execution events.
type UseCaseObserver interface {
	ObserveUseCase(ctx context.Context, event UseCaseEvent)
}

// NoopUseCaseObserver ignores all events.
type NoopUseCaseObserver struct{}

func (NoopUseCaseObserver) ObserveUseCase(context.Context, UseCaseEvent) {}

type logUseCaseObserver struct {
	logger logrus.FieldLogger
}

// NewLogUseCaseObserver writes use-case events to logger.
func NewLogUseCaseObserver(logger logrus.FieldLogger) UseCaseObserver {
	if logger == nil {
		return NoopUseCaseObserver{}
	}
	return &logUseCaseObserver{logger: logger}
}

func (o *logUseCaseObserver) ObserveUseCase(ctx context.Context, event UseCaseEvent) {
	fields := logrus.Fields{
		"use_case":    event.Name,
		"duration_ms": event.Duration.Milliseconds(),
		"success":     event.Success,
	}
	for k, v := range event.Fields {
		fields[k] = v
	}
	entry := o.logger.WithFields(fields)
	if event.Err != nil {
		entry.WithError(event.Err).Warn("service_use_case")
		return
	}
	entry.Debug("service_use_case")
}

func useCaseObserverOrNoop(observers ...UseCaseObserver) UseCaseObserver {
	for _, obs := range observers {
		if obs != nil {
			return obs
		}
	}
	return NoopUseCaseObserver{}
}

// observe times fn and reports it as one use case.
func observe(ctx context.Context, obs UseCaseObserver, name string, fields map[string]any, fn func() error) error {
	start := time.Now()
	err := fn()
	obs.ObserveUseCase(ctx, UseCaseEvent{
		Name:      name,
		Duration:  time.Since(start),
		Success:   err == nil,
		Err:       err,
		Fields:    fields,
		StartedAt: start,
	})
	return err
}

func discardLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
