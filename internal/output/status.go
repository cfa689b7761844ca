// Copyright © 2025 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: Apache-2.0

package output

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/staranto/sangre/internal/status"
)

type statusDoc struct {
	RateLimit struct {
		Endpoint       string  `json:"endpoint" yaml:"endpoint"`
		Used           int     `json:"used" yaml:"used"`
		Quota          int     `json:"quota" yaml:"quota"`
		Remaining      int     `json:"remaining" yaml:"remaining"`
		WindowSeconds  int64   `json:"window_seconds" yaml:"window_seconds"`
		Limited        bool    `json:"limited" yaml:"limited"`
		ResetInSeconds float64 `json:"reset_in_seconds,omitempty" yaml:"reset_in_seconds,omitempty"`
	} `json:"rate_limit" yaml:"rate_limit"`
	Cache struct {
		Entries    int        `json:"entries" yaml:"entries"`
		Oldest     *time.Time `json:"oldest,omitempty" yaml:"oldest,omitempty"`
		Location   string     `json:"location" yaml:"location"`
		SizeBytes  int64      `json:"size_bytes" yaml:"size_bytes"`
		TTLSeconds int64      `json:"ttl_seconds" yaml:"ttl_seconds"`
	} `json:"cache" yaml:"cache"`
	Notes []string `json:"notes,omitempty" yaml:"notes,omitempty"`
}

func newStatusDoc(rep status.Report) statusDoc {
	var d statusDoc
	d.RateLimit.Endpoint = rep.Limit.Endpoint
	d.RateLimit.Used = rep.Limit.Used
	d.RateLimit.Quota = rep.Limit.Quota
	d.RateLimit.Remaining = rep.Limit.Remaining
	d.RateLimit.WindowSeconds = int64(rep.Limit.Window / time.Second)
	d.RateLimit.Limited = rep.Limit.Limited
	if rep.Limit.Limited {
		d.RateLimit.ResetInSeconds = rep.Limit.RetryAfter.Seconds()
	}

	d.Cache.Entries = rep.Cache.Entries
	if !rep.Cache.Oldest.IsZero() {
		o := rep.Cache.Oldest.UTC()
		d.Cache.Oldest = &o
	}
	d.Cache.Location = rep.Cache.Location
	d.Cache.SizeBytes = rep.Cache.Size
	d.Cache.TTLSeconds = int64(rep.TTL / time.Second)
	d.Notes = rep.Notes
	return d
}

// RenderStatus writes a status report. raw is treated as json.
func RenderStatus(w io.Writer, rep status.Report, opts Options) error {
	opts = opts.withDefaults()

	switch opts.Format {
	case FormatJSON, FormatRaw:
		return writeJSON(w, newStatusDoc(rep))
	case FormatYAML:
		return writeYAML(w, newStatusDoc(rep))
	case FormatText:
		return renderStatusText(w, rep, opts)
	default:
		return fmt.Errorf("unknown output format %q", opts.Format)
	}
}

func renderStatusText(w io.Writer, rep status.Report, opts Options) error {
	p := newPalette(opts.Color)
	now := opts.Now()

	state := p.ok.Render("OK")
	if rep.Limit.Limited {
		state = p.bad.Render(fmt.Sprintf("RATE LIMITED (resets in %.1f minutes)", rep.Limit.RetryAfter.Minutes()))
	}

	limitRows := [][]string{
		{"Requests made", fmt.Sprintf("%d/%d (last %s)", rep.Limit.Used, rep.Limit.Quota, shortDuration(rep.Limit.Window))},
		{"Requests remaining", fmt.Sprint(rep.Limit.Remaining)},
		{"Status", state},
	}

	oldest := "-"
	if !rep.Cache.Oldest.IsZero() {
		oldest = humanize.RelTime(rep.Cache.Oldest, now, "ago", "from now")
	}
	size := "-"
	if rep.Cache.Size > 0 {
		size = humanize.Bytes(uint64(rep.Cache.Size))
	}
	cacheRows := [][]string{
		{"Entries", humanize.Comma(int64(rep.Cache.Entries))},
		{"Oldest entry", oldest},
		{"Location", rep.Cache.Location},
		{"Size", size},
		{"TTL", fmt.Sprintf("%.1f hours", rep.TTL.Hours())},
	}

	var b strings.Builder
	b.WriteString(p.title.Render("Rate Limit"))
	b.WriteByte('\n')
	b.WriteString(kvTable(limitRows, p))
	b.WriteString("\n\n")
	b.WriteString(p.title.Render("Cache"))
	b.WriteByte('\n')
	b.WriteString(kvTable(cacheRows, p))
	b.WriteByte('\n')
	for _, n := range rep.Notes {
		b.WriteString(p.warn.Render("note: " + n))
		b.WriteByte('\n')
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// shortDuration trims the zero units time.Duration prints, so 1h0m0s is
// shown as 1h.
func shortDuration(d time.Duration) string {
	s := d.String()
	if strings.HasSuffix(s, "m0s") {
		s = s[:len(s)-2]
	}
	if strings.HasSuffix(s, "h0m") {
		s = s[:len(s)-2]
	}
	return s
}
