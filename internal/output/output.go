// Copyright © 2025 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: Apache-2.0

package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss/v2"
	"github.com/charmbracelet/lipgloss/v2/table"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"
)

// Formats accepted by the renderers.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
	FormatRaw  = "raw"
)

// Formats lists every accepted format, in help order.
var Formats = []string{FormatText, FormatJSON, FormatYAML, FormatRaw}

// Options control rendering. Stderr receives notices that must not be
// mixed into machine-readable output.
type Options struct {
	Format string
	Color  bool
	Stderr io.Writer
	Now    func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Format == "" {
		o.Format = FormatText
	}
	if o.Stderr == nil {
		o.Stderr = os.Stderr
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// ColorEnabled reports whether colored output should be used on w. want
// is the user's preference; color is never used off a terminal.
func ColorEnabled(w io.Writer, want bool) bool {
	if !want {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

type palette struct {
	title lipgloss.Style
	label lipgloss.Style
	ok    lipgloss.Style
	warn  lipgloss.Style
	bad   lipgloss.Style
}

func newPalette(color bool) palette {
	p := palette{
		title: lipgloss.NewStyle().Bold(color),
		label: lipgloss.NewStyle(),
		ok:    lipgloss.NewStyle(),
		warn:  lipgloss.NewStyle(),
		bad:   lipgloss.NewStyle(),
	}
	if color {
		p.title = p.title.Foreground(lipgloss.Color("#f6be00"))
		p.label = p.label.Foreground(lipgloss.Color("#00c8f0"))
		p.ok = p.ok.Foreground(lipgloss.Color("#00d75f"))
		p.warn = p.warn.Foreground(lipgloss.Color("#ffaf00")).Bold(true)
		p.bad = p.bad.Foreground(lipgloss.Color("#ff5f5f")).Bold(true)
	}
	return p
}

// kvTable renders label/value rows with a hidden border, the way the
// result tables are drawn.
func kvTable(rows [][]string, p palette) string {
	t := table.New().
		BorderBottom(false).
		BorderTop(false).
		BorderLeft(false).
		BorderRight(false).
		BorderColumn(false).
		Border(lipgloss.HiddenBorder()).
		StyleFunc(func(row, col int) lipgloss.Style {
			if col == 0 {
				return p.label.PaddingLeft(2).PaddingRight(1) //nolint:mnd
			}
			return lipgloss.NewStyle()
		}).
		Rows(rows...)
	return t.String()
}

func writeJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode json: %w", err)
	}
	b = append(b, '\n')
	_, err = w.Write(b)
	return err
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2) //nolint:mnd
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode yaml: %w", err)
	}
	return enc.Close()
}
