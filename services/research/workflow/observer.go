// Copyright (C) 2026 Harborline Research (dev@harborline.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package workflow

import (
	"log/slog"
	"time"
)

// Observer receives stage lifecycle notifications during a run.
//
// Description:
//
//	The Executor invokes observers from stage goroutines, so
//	implementations must not block; hand off to a channel or goroutine
//	if the work is slow. Observer failures must not influence the run.
//
// Thread Safety:
//
//	Implementations must be safe for concurrent use; callbacks for
//	stages of the same wave arrive concurrently.
type Observer interface {
	// OnStageStart is called when a stage begins executing.
	OnStageStart(stage string)

	// OnStageSuccess is called when a stage completes successfully.
	OnStageSuccess(stage string, duration time.Duration)

	// OnStageFailure is called when a stage fails; the message is the
	// recorded diagnostic.
	OnStageFailure(stage string, message string, duration time.Duration)
}

// NopObserver ignores all notifications. It is the Executor default.
type NopObserver struct{}

// OnStageStart implements Observer.
func (NopObserver) OnStageStart(string) {}

// OnStageSuccess implements Observer.
func (NopObserver) OnStageSuccess(string, time.Duration) {}

// OnStageFailure implements Observer.
func (NopObserver) OnStageFailure(string, string, time.Duration) {}

// LogObserver writes stage transitions to a slog logger.
type LogObserver struct {
	logger *slog.Logger
}

// NewLogObserver creates a LogObserver. A nil logger falls back to
// slog.Default().
func NewLogObserver(logger *slog.Logger) *LogObserver {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogObserver{logger: logger}
}

// OnStageStart implements Observer.
func (o *LogObserver) OnStageStart(stage string) {
	o.logger.Debug("stage started", slog.String("stage", stage))
}

// OnStageSuccess implements Observer.
func (o *LogObserver) OnStageSuccess(stage string, duration time.Duration) {
	o.logger.Info("stage succeeded",
		slog.String("stage", stage),
		slog.Duration("duration", duration),
	)
}

// OnStageFailure implements Observer.
func (o *LogObserver) OnStageFailure(stage string, message string, duration time.Duration) {
	o.logger.Warn("stage failed",
		slog.String("stage", stage),
		slog.String("error", message),
		slog.Duration("duration", duration),
	)
}

// MultiObserver fans notifications out to several observers in order.
type MultiObserver struct {
	observers []Observer
}

// NewMultiObserver creates an observer that forwards to all given
// observers. Nil entries are skipped.
func NewMultiObserver(observers ...Observer) *MultiObserver {
	kept := make([]Observer, 0, len(observers))
	for _, o := range observers {
		if o != nil {
			kept = append(kept, o)
		}
	}
	return &MultiObserver{observers: kept}
}

// OnStageStart implements Observer.
func (m *MultiObserver) OnStageStart(stage string) {
	for _, o := range m.observers {
		o.OnStageStart(stage)
	}
}

// OnStageSuccess implements Observer.
func (m *MultiObserver) OnStageSuccess(stage string, duration time.Duration) {
	for _, o := range m.observers {
		o.OnStageSuccess(stage, duration)
	}
}

// OnStageFailure implements Observer.
func (m *MultiObserver) OnStageFailure(stage string, message string, duration time.Duration) {
	for _, o := range m.observers {
		o.OnStageFailure(stage, message, duration)
	}
}
