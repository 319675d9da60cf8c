// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package ux provides terminal output styling for the sentinel CLI.
package ux

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
)

// Sentinel color palette - steel blues with signal colors for state.
var (
	ColorSteelBright  = lipgloss.Color("#00BFFF") // status values, highlights
	ColorSteelPrimary = lipgloss.Color("#3A9BDC") // titles, brand
	ColorSteelDeep    = lipgloss.Color("#1F6FA8") // borders, accents
	ColorSlate        = lipgloss.Color("#4A5A66") // muted text

	ColorSuccess = lipgloss.Color("#2ECC71") // running services
	ColorWarning = lipgloss.Color("#F4D03F") // missing image, unset interface
	ColorError   = lipgloss.Color("#E74C3C") // failed operations
)

// Styles provides pre-configured lipgloss styles.
var Styles = struct {
	Title    lipgloss.Style
	Subtitle lipgloss.Style
	Bold     lipgloss.Style
	Muted    lipgloss.Style
	Value    lipgloss.Style
	Success  lipgloss.Style
	Warning  lipgloss.Style
	Error    lipgloss.Style
}{
	Title:    lipgloss.NewStyle().Bold(true).Foreground(ColorSteelPrimary),
	Subtitle: lipgloss.NewStyle().Foreground(ColorSteelDeep),
	Bold:     lipgloss.NewStyle().Bold(true),
	Muted:    lipgloss.NewStyle().Foreground(ColorSlate),
	Value:    lipgloss.NewStyle().Foreground(ColorSteelBright),
	Success:  lipgloss.NewStyle().Foreground(ColorSuccess),
	Warning:  lipgloss.NewStyle().Foreground(ColorWarning),
	Error:    lipgloss.NewStyle().Foreground(ColorError),
}

// Title prints a bold section title followed by a blank line.
func Title(text string) {
	fmt.Println(Styles.Title.Render(text))
	fmt.Println()
}

// Status prints a "label: value" line with the value colorized, e.g.
// "suricata: running".
func Status(label, value string) {
	fmt.Printf("%s: %s\n", label, Styles.Value.Render(value))
}

// StatusGood prints a status line with a success-colored value.
func StatusGood(label, value string) {
	fmt.Printf("%s: %s\n", label, Styles.Success.Render(value))
}

// Warn prints a warning-colored line to stdout, where the menu is
// rendered.
func Warn(text string) {
	fmt.Println(Styles.Warning.Render(text))
}

// Error prints an error-colored line to stderr.
func Error(text string) {
	fmt.Fprintln(os.Stderr, Styles.Error.Render(text))
}

// Errorf formats and prints an error-colored line to stderr.
func Errorf(format string, args ...any) {
	Error(fmt.Sprintf(format, args...))
}
