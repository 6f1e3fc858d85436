// Copyright (C) 2026 Harborline Research (dev@harborline.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/harborline/filinglens/services/research/workflow"
)

func TestJoinStageErrors(t *testing.T) {
	errs := []workflow.StageError{
		{Stage: "financial_analysis", Message: "llm timeout"},
		{Stage: "risk_analysis", Message: "empty response"},
	}
	joined := joinStageErrors(errs)
	assert.Equal(t, "financial_analysis: llm timeout\nrisk_analysis: empty response", joined)

	assert.Empty(t, joinStageErrors(nil))
}
