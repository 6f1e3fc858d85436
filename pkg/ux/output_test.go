// Copyright (C) 2026 Harborline Research (dev@harborline.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ux

import (
	"testing"
	"time"
)

func TestParseMode(t *testing.T) {
	tests := []struct {
		in   string
		want Mode
	}{
		{"rich", ModeRich},
		{"minimal", ModeMinimal},
		{"min", ModeMinimal},
		{"plain", ModePlain},
		{"machine", ModePlain},
		{"quiet", ModePlain},
		{"", ModeRich},
		{"bogus", ModeRich},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ParseMode(tt.in); got != tt.want {
				t.Errorf("ParseMode(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestSetGetMode(t *testing.T) {
	orig := GetMode()
	defer SetMode(orig)

	SetMode(ModePlain)
	if GetMode() != ModePlain {
		t.Errorf("GetMode() = %v, want %v", GetMode(), ModePlain)
	}
	SetMode(ModeRich)
	if GetMode() != ModeRich {
		t.Errorf("GetMode() = %v, want %v", GetMode(), ModeRich)
	}
}

func TestIconRender_NotEmpty(t *testing.T) {
	icons := []Icon{IconSuccess, IconWarning, IconError, IconPending, IconRunning, IconArrow, IconBullet}
	for _, ic := range icons {
		if ic.Render() == "" {
			t.Errorf("Icon(%q).Render() is empty", string(ic))
		}
	}
}

func TestPrintHelpers_PlainMode(t *testing.T) {
	orig := GetMode()
	defer SetMode(orig)
	SetMode(ModePlain)

	// Exercise each helper; they must not panic in any mode.
	Title("title")
	Success("ok")
	Warning("careful")
	Error("broken")
	Info("note")
	Muted("faint")
	Box("box", "content")
	WarningBox("warn", "content")
	StageStart("fetch")
	StageDone("fetch", 120*time.Millisecond)
	StageFailed("fetch", "timeout", time.Second)
	KeyValue("doc_id", "S100TEST")
}

func TestPrintHelpers_RichMode(t *testing.T) {
	orig := GetMode()
	defer SetMode(orig)
	SetMode(ModeRich)

	Success("ok")
	StageDone("normalize", 5*time.Millisecond)
	StageFailed("risk_extraction", "timeout", time.Second)
}

func TestTable_AllModes(t *testing.T) {
	orig := GetMode()
	defer SetMode(orig)

	headers := []string{"DOC ID", "COMPANY", "TYPE"}
	rows := [][]string{
		{"S100AAAA", "テスト株式会社", "120"},
		{"S100BBBB", "サンプル商事", "140"},
	}

	for _, mode := range []Mode{ModeRich, ModeMinimal, ModePlain} {
		SetMode(mode)
		Table(headers, rows)
		Table(headers, nil)
	}
}

func TestSpinner_StartStop(t *testing.T) {
	orig := GetMode()
	defer SetMode(orig)
	SetMode(ModePlain)

	s := NewSpinner("working")
	s.Start()
	s.UpdateMessage("still working")
	s.Stop()

	// Double stop must be safe.
	s.Stop()
}

func TestWithSpinner(t *testing.T) {
	orig := GetMode()
	defer SetMode(orig)
	SetMode(ModePlain)

	if err := WithSpinner("op", func() error { return nil }); err != nil {
		t.Errorf("WithSpinner() error = %v", err)
	}
}
