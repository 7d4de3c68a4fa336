// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ux

import (
	"fmt"
	"io"
	"strings"

	"github.com/AleutianAI/ingredientrisk/services/risk_labeler"
	"github.com/charmbracelet/lipgloss"
)

var (
	ColorTeal    = lipgloss.Color("#20B9B4")
	ColorSlate   = lipgloss.Color("#2C4A54")
	ColorSuccess = lipgloss.Color("#2CD7C7")
	ColorWarning = lipgloss.Color("#F4D03F")
	ColorError   = lipgloss.Color("#E74C3C")
)

// levelColors runs from green (Very Safe) to red (High Risk).
var levelColors = map[risk_labeler.RiskLevel]lipgloss.Color{
	risk_labeler.VeryLow:    lipgloss.Color("#2ECC71"),
	risk_labeler.Safe:       lipgloss.Color("#2CD7C7"),
	risk_labeler.Moderate:   lipgloss.Color("#F4D03F"),
	risk_labeler.Concerning: lipgloss.Color("#E67E22"),
	risk_labeler.HighRisk:   lipgloss.Color("#E74C3C"),
}

// Styles are the shared lipgloss styles.
var Styles = struct {
	Title   lipgloss.Style
	Bold    lipgloss.Style
	Muted   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Box     lipgloss.Style
}{
	Title:   lipgloss.NewStyle().Bold(true).Foreground(ColorTeal),
	Bold:    lipgloss.NewStyle().Bold(true),
	Muted:   lipgloss.NewStyle().Foreground(ColorSlate),
	Success: lipgloss.NewStyle().Foreground(ColorSuccess),
	Warning: lipgloss.NewStyle().Foreground(ColorWarning),
	Error:   lipgloss.NewStyle().Foreground(ColorError),
	Box: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorTeal).
		Padding(0, 1),
}

type Icon string

const (
	IconSuccess Icon = "✓"
	IconWarning Icon = "⚠"
	IconError   Icon = "✗"
	IconBullet  Icon = "•"
)

// Printer writes styled output to one writer.
//
// # Thread Safety
//
// Not safe for concurrent use.
type Printer struct {
	w    io.Writer
	mode Mode
}

// NewPrinter creates a Printer for w in the given mode.
func NewPrinter(w io.Writer, mode Mode) *Printer {
	return &Printer{w: w, mode: mode}
}

// Mode returns the printer's mode.
func (p *Printer) Mode() Mode { return p.mode }

func (p *Printer) style(s lipgloss.Style, text string) string {
	if p.mode != ModeRich {
		return text
	}
	return s.Render(text)
}

func (p *Printer) icon(i Icon, s lipgloss.Style) string {
	return p.style(s, string(i))
}

// Title prints a heading. Machine mode prints nothing.
func (p *Printer) Title(text string) {
	if p.mode == ModeMachine {
		return
	}
	fmt.Fprintln(p.w, p.style(Styles.Title, text))
}

func (p *Printer) Success(text string) {
	if p.mode == ModeMachine {
		fmt.Fprintf(p.w, "OK\t%s\n", text)
		return
	}
	fmt.Fprintf(p.w, "%s %s\n", p.icon(IconSuccess, Styles.Success), text)
}

func (p *Printer) Warning(text string) {
	if p.mode == ModeMachine {
		fmt.Fprintf(p.w, "WARN\t%s\n", text)
		return
	}
	fmt.Fprintf(p.w, "%s %s\n", p.icon(IconWarning, Styles.Warning), p.style(Styles.Warning, text))
}

func (p *Printer) Error(text string) {
	if p.mode == ModeMachine {
		fmt.Fprintf(p.w, "ERROR\t%s\n", text)
		return
	}
	fmt.Fprintf(p.w, "%s %s\n", p.icon(IconError, Styles.Error), p.style(Styles.Error, text))
}

// Field prints one "key: value" line, or "key<TAB>value" in machine mode.
func (p *Printer) Field(key string, value any) {
	if p.mode == ModeMachine {
		fmt.Fprintf(p.w, "%s\t%v\n", key, value)
		return
	}
	fmt.Fprintf(p.w, "%s %v\n", p.style(Styles.Muted, key+":"), value)
}

// Box prints content under a title inside a rounded border.
func (p *Printer) Box(title, content string) {
	switch p.mode {
	case ModeMachine:
		fmt.Fprintf(p.w, "%s\t%s\n", title, strings.ReplaceAll(content, "\n", " | "))
	case ModePlain:
		fmt.Fprintf(p.w, "%s\n%s\n", title, content)
	default:
		fmt.Fprintln(p.w, Styles.Box.Width(72).Render(Styles.Title.Render(title)+"\n"+content))
	}
}

// RiskBadge renders a level as "[5 High Risk]", colored by severity.
func (p *Printer) RiskBadge(level risk_labeler.RiskLevel) string {
	text := fmt.Sprintf("[%d %s]", int(level), level)
	if p.mode == ModeMachine {
		return fmt.Sprintf("%d", int(level))
	}
	c, ok := levelColors[level]
	if !ok {
		return text
	}
	return p.style(lipgloss.NewStyle().Bold(true).Foreground(c), text)
}

// Bar renders count/total as a fixed-width bar with a percentage.
func (p *Printer) Bar(count, total, width int) string {
	if p.mode == ModeMachine || total <= 0 {
		return fmt.Sprintf("%d/%d", count, total)
	}
	pct := float64(count) / float64(total)
	filled := int(pct * float64(width))
	bar := p.style(Styles.Success, strings.Repeat("█", filled)) +
		p.style(Styles.Muted, strings.Repeat("░", width-filled))
	return fmt.Sprintf("%s %3.0f%%", bar, pct*100)
}
