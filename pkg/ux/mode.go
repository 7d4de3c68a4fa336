// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ux renders riskctl output for terminals and for scripts.
package ux

import (
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

// Mode selects how much styling output gets.
type Mode string

const (
	// ModeRich uses colors, icons and boxes.
	ModeRich Mode = "rich"

	// ModePlain keeps icons and layout but drops colors.
	ModePlain Mode = "plain"

	// ModeMachine prints tab-separated lines with no decoration.
	ModeMachine Mode = "machine"
)

// ParseMode maps a user-supplied name to a Mode. Unknown names are plain.
func ParseMode(s string) Mode {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "rich", "full", "color":
		return ModeRich
	case "machine", "quiet", "q":
		return ModeMachine
	default:
		return ModePlain
	}
}

// DetectMode picks a mode for w. RISKCTL_OUTPUT wins when set; otherwise
// a terminal gets ModeRich (ModePlain under NO_COLOR) and anything else
// gets ModeMachine.
func DetectMode(w io.Writer) Mode {
	if env := os.Getenv("RISKCTL_OUTPUT"); env != "" {
		return ParseMode(env)
	}
	if !isTerminal(w) {
		return ModeMachine
	}
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return ModePlain
	}
	return ModeRich
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
