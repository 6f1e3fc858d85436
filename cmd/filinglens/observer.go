// Copyright (C) 2026 Harborline Research (dev@harborline.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"time"

	"github.com/harborline/filinglens/pkg/ux"
	"github.com/harborline/filinglens/services/research/workflow"
)

// progressObserver prints stage lifecycle lines through the styled
// output helpers. Callbacks arrive concurrently within a wave; each
// prints a single line.
type progressObserver struct{}

var _ workflow.Observer = progressObserver{}

func (progressObserver) OnStageStart(stage string) {
	if !ux.ShowProgress() {
		return
	}
	ux.StageStart(stage)
}

func (progressObserver) OnStageSuccess(stage string, duration time.Duration) {
	if !ux.ShowProgress() {
		return
	}
	ux.StageDone(stage, duration)
}

// Failures print in every mode; plain mode routes them to stderr.
func (progressObserver) OnStageFailure(stage string, message string, duration time.Duration) {
	ux.StageFailed(stage, message, duration)
}
