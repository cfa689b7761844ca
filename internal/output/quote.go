// Copyright © 2025 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: Apache-2.0

package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/tidwall/gjson"

	"github.com/staranto/sangre/internal/fetch"
	"github.com/staranto/sangre/internal/yahoo"
)

// Quote is the outcome of fetching one ticker. Result may carry a stale
// payload even when Err is set.
type Quote struct {
	Ticker string
	Result fetch.Result
	Err    error
}

// field is a displayed quote attribute and where to find it in the
// quoteSummary document.
type field struct {
	Label string
	Paths []string
}

var quoteFields = []field{
	{"Price", []string{"price.regularMarketPrice.fmt", "financialData.currentPrice.fmt"}},
	{"Change", []string{"price.regularMarketChangePercent.fmt"}},
	{"Currency", []string{"price.currency"}},
	{"Exchange", []string{"price.exchangeName", "price.exchange"}},
	{"Market Cap", []string{"price.marketCap.fmt", "summaryDetail.marketCap.fmt"}},
	{"Volume", []string{"price.regularMarketVolume.fmt", "summaryDetail.volume.fmt"}},
	{"52w High", []string{"summaryDetail.fiftyTwoWeekHigh.fmt"}},
	{"52w Low", []string{"summaryDetail.fiftyTwoWeekLow.fmt"}},
	{"Sector", []string{"summaryProfile.sector"}},
	{"Industry", []string{"summaryProfile.industry"}},
	{"Country", []string{"summaryProfile.country"}},
	{"Employees", []string{"summaryProfile.fullTimeEmployees"}},
	{"Shares Out", []string{"defaultKeyStatistics.sharesOutstanding.fmt"}},
	{"Short % Float", []string{"defaultKeyStatistics.shortPercentOfFloat.fmt"}},
	{"Debt/Equity", []string{"financialData.debtToEquity.fmt"}},
	{"Website", []string{"summaryProfile.website"}},
}

func lookup(doc gjson.Result, paths ...string) string {
	for _, p := range paths {
		if v := doc.Get(p); v.Exists() && v.Type != gjson.Null && v.String() != "" {
			return v.String()
		}
	}
	return ""
}

// RenderQuotes writes quotes to w in the requested format. Stale payloads
// are always marked.
func RenderQuotes(w io.Writer, quotes []Quote, opts Options) error {
	opts = opts.withDefaults()

	switch opts.Format {
	case FormatRaw:
		return renderQuotesRaw(w, quotes, opts)
	case FormatJSON:
		return writeJSON(w, quoteDocs(quotes, true))
	case FormatYAML:
		return writeYAML(w, quoteDocs(quotes, false))
	case FormatText:
		return renderQuotesText(w, quotes, opts)
	default:
		return fmt.Errorf("unknown output format %q", opts.Format)
	}
}

// StaleNotice describes a served-stale result.
func StaleNotice(r fetch.Result, now time.Time) string {
	return "STALE (cached " + humanize.RelTime(r.FetchedAt, now, "ago", "from now") + ")"
}

func renderQuotesText(w io.Writer, quotes []Quote, opts Options) error {
	p := newPalette(opts.Color)
	now := opts.Now()

	var b strings.Builder
	for i, q := range quotes {
		if i > 0 {
			b.WriteByte('\n')
		}

		if len(q.Result.Payload) == 0 {
			b.WriteString(p.title.Render(q.Ticker))
			b.WriteString("  ")
			b.WriteString(p.bad.Render("error: " + errString(q.Err)))
			b.WriteByte('\n')
			continue
		}

		doc := gjson.GetBytes(q.Result.Payload, yahoo.ResultPath)
		header := p.title.Render(q.Ticker)
		if name := lookup(doc, "price.longName", "price.shortName"); name != "" {
			header += "  " + name
		}
		if q.Result.ServedStale {
			header += "  " + p.warn.Render(StaleNotice(q.Result, now))
		}
		b.WriteString(header)
		b.WriteByte('\n')

		var rows [][]string
		for _, f := range quoteFields {
			if v := lookup(doc, f.Paths...); v != "" {
				rows = append(rows, []string{f.Label, v})
			}
		}
		if len(rows) > 0 {
			b.WriteString(kvTable(rows, p))
			b.WriteByte('\n')
		}
		if q.Err != nil {
			b.WriteString("  ")
			b.WriteString(p.bad.Render("refresh failed: " + q.Err.Error()))
			b.WriteByte('\n')
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// renderQuotesRaw writes payloads untouched, one per line. Notices go to
// Stderr so the payload stream stays parseable.
func renderQuotesRaw(w io.Writer, quotes []Quote, opts Options) error {
	now := opts.Now()
	for _, q := range quotes {
		if q.Result.ServedStale {
			fmt.Fprintf(opts.Stderr, "%s: %s\n", q.Ticker, StaleNotice(q.Result, now))
		}
		if q.Err != nil {
			fmt.Fprintf(opts.Stderr, "%s: error: %v\n", q.Ticker, q.Err)
		}
		if len(q.Result.Payload) == 0 {
			continue
		}
		if _, err := w.Write(q.Result.Payload); err != nil {
			return err
		}
		if _, err := io.WriteString(w, "\n"); err != nil {
			return err
		}
	}
	return nil
}

type quoteDoc struct {
	Ticker    string     `json:"ticker" yaml:"ticker"`
	Source    string     `json:"source,omitempty" yaml:"source,omitempty"`
	Stale     bool       `json:"stale" yaml:"stale"`
	FetchedAt *time.Time `json:"fetched_at,omitempty" yaml:"fetched_at,omitempty"`
	Attempts  int        `json:"attempts" yaml:"attempts"`
	Data      any        `json:"data,omitempty" yaml:"data,omitempty"`
	Error     string     `json:"error,omitempty" yaml:"error,omitempty"`
}

func quoteDocs(quotes []Quote, rawJSON bool) []quoteDoc {
	docs := make([]quoteDoc, 0, len(quotes))
	for _, q := range quotes {
		d := quoteDoc{
			Ticker:   q.Ticker,
			Stale:    q.Result.ServedStale,
			Attempts: q.Result.Attempts,
		}
		if q.Err != nil {
			d.Error = q.Err.Error()
		}
		if len(q.Result.Payload) > 0 {
			d.Source = q.Result.Source.String()
			at := q.Result.FetchedAt.UTC()
			d.FetchedAt = &at

			doc := gjson.GetBytes(q.Result.Payload, yahoo.ResultPath)
			if !doc.Exists() {
				doc = gjson.ParseBytes(q.Result.Payload)
			}
			switch {
			case !gjson.Valid(doc.Raw):
				d.Data = string(q.Result.Payload)
			case rawJSON:
				d.Data = json.RawMessage(doc.Raw)
			default:
				d.Data = doc.Value()
			}
		}
		docs = append(docs, d)
	}
	return docs
}

func errString(err error) string {
	if err == nil {
		return "no data"
	}
	return err.Error()
}
