// Copyright (C) 2026 Harborline Research (dev@harborline.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ux

import (
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"
)

// Mode controls how much styling terminal output carries.
type Mode string

const (
	// ModeRich enables colors, icons, and boxes.
	ModeRich Mode = "rich"

	// ModeMinimal keeps icons but drops colors and boxes.
	ModeMinimal Mode = "minimal"

	// ModePlain emits prefix-tagged plain text for scripts and pipes.
	ModePlain Mode = "plain"
)

var (
	currentMode = ModeRich
	modeMu      sync.RWMutex
)

// GetMode returns the active output mode.
func GetMode() Mode {
	modeMu.RLock()
	defer modeMu.RUnlock()
	return currentMode
}

// SetMode sets the active output mode.
func SetMode(m Mode) {
	modeMu.Lock()
	defer modeMu.Unlock()
	currentMode = m
}

// ParseMode converts a config string to a Mode. Unknown values fall
// back to ModeRich.
func ParseMode(s string) Mode {
	switch strings.ToLower(s) {
	case "minimal", "min", "m":
		return ModeMinimal
	case "plain", "machine", "quiet", "q":
		return ModePlain
	default:
		return ModeRich
	}
}

// InitMode picks the output mode from FILINGLENS_OUTPUT, falling back
// to plain when stdout is not a terminal.
func InitMode() {
	if env := os.Getenv("FILINGLENS_OUTPUT"); env != "" {
		SetMode(ParseMode(env))
		return
	}
	if !isTerminal() {
		SetMode(ModePlain)
		return
	}
	SetMode(ModeRich)
}

func isTerminal() bool {
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}

// IsInteractive reports whether prompting the user makes sense.
func IsInteractive() bool {
	return GetMode() != ModePlain && isTerminal()
}

// ShowProgress reports whether animated progress output is wanted.
func ShowProgress() bool {
	return GetMode() != ModePlain
}
