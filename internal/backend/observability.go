package backend

import (
	"github.com/sirupsen/logrus"
)

// CallEvent records metadata about a single backend operation.
type CallEvent struct {
	Operation  string
	Method     string
	Path       string
	StatusCode int
	Attempts   int
	LatencyMs  int64
	Success    bool
	ErrorCode  string
}

// Observer receives events about backend calls for logging and metrics.
type Observer interface {
	OnCallComplete(event CallEvent)
}

// LogObserver writes call events to a logrus logger.
type LogObserver struct {
	logger logrus.FieldLogger
}

// NewLogObserver creates an Observer that logs events to logger.
func NewLogObserver(logger logrus.FieldLogger) *LogObserver {
	return &LogObserver{logger: logger}
}

func (o *LogObserver) OnCallComplete(event CallEvent) {
	entry := o.logger.WithFields(logrus.Fields{
		"operation":   event.Operation,
		"method":      event.Method,
		"path":        event.Path,
		"status_code": event.StatusCode,
		"attempts":    event.Attempts,
		"latency_ms":  event.LatencyMs,
	})
	if !event.Success {
		entry.WithField("error_code", event.ErrorCode).Warn("backend_call")
		return
	}
	entry.Debug("backend_call")
}

// NoopObserver discards all events. Useful for tests.
type NoopObserver struct{}

func (NoopObserver) OnCallComplete(CallEvent) {}
