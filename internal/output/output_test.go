// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0
// no-cloc

package output

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v3"

	"github.com/staranto/sangre/internal/fetch"
	"github.com/staranto/sangre/internal/ratelimit"
	"github.com/staranto/sangre/internal/status"
	"github.com/staranto/sangre/internal/store"
)

var testNow = time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)

const msftBody = `{"quoteSummary":{"result":[{"price":{"symbol":"MSFT","longName":"Microsoft Corporation","regularMarketPrice":{"raw":410.2,"fmt":"410.20"},"currency":"USD"},"summaryProfile":{"sector":"Technology"}}],"error":null}}`

func testOpts(format string) (Options, *bytes.Buffer) {
	var stderr bytes.Buffer
	return Options{
		Format: format,
		Stderr: &stderr,
		Now:    func() time.Time { return testNow },
	}, &stderr
}

func fresh() Quote {
	return Quote{
		Ticker: "MSFT",
		Result: fetch.Result{
			Payload:   []byte(msftBody),
			Source:    fetch.SourceNetwork,
			FetchedAt: testNow,
			Attempts:  1,
		},
	}
}

func stale() Quote {
	q := fresh()
	q.Result.Source = fetch.SourceCache
	q.Result.ServedStale = true
	q.Result.FetchedAt = testNow.Add(-5 * time.Hour)
	q.Result.Attempts = 0
	return q
}

func TestRenderQuotes_Text(t *testing.T) {
	opts, _ := testOpts(FormatText)
	var buf bytes.Buffer

	quotes := []Quote{
		fresh(),
		{Ticker: "ZZZZ", Err: errors.New("fetch ZZZZ: symbol not found")},
	}
	require.NoError(t, RenderQuotes(&buf, quotes, opts))

	out := buf.String()
	assert.Contains(t, out, "MSFT  Microsoft Corporation")
	assert.Contains(t, out, "410.20")
	assert.Contains(t, out, "Technology")
	assert.Contains(t, out, "ZZZZ  error: fetch ZZZZ: symbol not found")
	assert.NotContains(t, out, "STALE")
}

func TestRenderQuotes_TextMarksStale(t *testing.T) {
	opts, _ := testOpts(FormatText)
	var buf bytes.Buffer

	q := stale()
	q.Err = &fetch.RetriesExhaustedError{Attempts: 5, LastCause: errors.New("http 503")}
	require.NoError(t, RenderQuotes(&buf, []Quote{q}, opts))

	assert.Contains(t, buf.String(), "STALE (cached 5 hours ago)")
	assert.Contains(t, buf.String(), "refresh failed:")
}

func TestRenderQuotes_JSON(t *testing.T) {
	opts, _ := testOpts(FormatJSON)
	var buf bytes.Buffer

	require.NoError(t, RenderQuotes(&buf, []Quote{fresh(), stale()}, opts))

	doc := gjson.Parse(buf.String())
	require.True(t, doc.IsArray())
	assert.Equal(t, "MSFT", doc.Get("0.ticker").String())
	assert.Equal(t, "network", doc.Get("0.source").String())
	assert.False(t, doc.Get("0.stale").Bool())
	assert.Equal(t, 410.2, doc.Get("0.data.price.regularMarketPrice.raw").Float())
	assert.True(t, doc.Get("1.stale").Bool())
	assert.Equal(t, "cache", doc.Get("1.source").String())
}

func TestRenderQuotes_YAML(t *testing.T) {
	opts, _ := testOpts(FormatYAML)
	var buf bytes.Buffer

	require.NoError(t, RenderQuotes(&buf, []Quote{stale()}, opts))

	var got []map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "MSFT", got[0]["ticker"])
	assert.Equal(t, true, got[0]["stale"])
	assert.Contains(t, got[0], "data")
}

func TestRenderQuotes_Raw(t *testing.T) {
	opts, stderr := testOpts(FormatRaw)
	var buf bytes.Buffer

	require.NoError(t, RenderQuotes(&buf, []Quote{stale()}, opts))

	assert.Equal(t, msftBody+"\n", buf.String())
	assert.Contains(t, stderr.String(), "MSFT: STALE")
}

func TestRenderQuotes_UnknownFormat(t *testing.T) {
	opts, _ := testOpts("csv")
	assert.Error(t, RenderQuotes(&bytes.Buffer{}, []Quote{fresh()}, opts))
}

func report(used int, limited bool) status.Report {
	rep := status.Report{
		Limit: ratelimit.Status{
			Endpoint:  "yahoo",
			Used:      used,
			Quota:     80,
			Remaining: max(0, 80-used),
			Window:    time.Hour,
			Limited:   limited,
		},
		Cache: store.Stats{
			Entries:  3,
			Oldest:   testNow.Add(-2 * time.Hour),
			Location: "/tmp/stock_cache.db",
			Size:     12288,
		},
		TTL: 4 * time.Hour,
	}
	if limited {
		rep.Limit.RetryAfter = 5 * time.Minute
	}
	return rep
}

func TestRenderStatus_Text(t *testing.T) {
	opts, _ := testOpts(FormatText)
	var buf bytes.Buffer

	require.NoError(t, RenderStatus(&buf, report(3, false), opts))

	out := buf.String()
	assert.Contains(t, out, "3/80 (last 1h)")
	assert.Contains(t, out, "77")
	assert.Contains(t, out, "OK")
	assert.Contains(t, out, "2 hours ago")
	assert.Contains(t, out, "/tmp/stock_cache.db")
	assert.Contains(t, out, "12 kB")
	assert.Contains(t, out, "4.0 hours")
}

func TestRenderStatus_TextLimited(t *testing.T) {
	opts, _ := testOpts(FormatText)
	var buf bytes.Buffer

	rep := report(80, true)
	rep.Notes = []string{"cache stats unavailable: disk I/O error"}
	require.NoError(t, RenderStatus(&buf, rep, opts))

	assert.Contains(t, buf.String(), "RATE LIMITED (resets in 5.0 minutes)")
	assert.Contains(t, buf.String(), "note: cache stats unavailable")
}

func TestRenderStatus_JSON(t *testing.T) {
	opts, _ := testOpts(FormatJSON)
	var buf bytes.Buffer

	require.NoError(t, RenderStatus(&buf, report(80, true), opts))

	doc := gjson.Parse(buf.String())
	assert.Equal(t, int64(80), doc.Get("rate_limit.used").Int())
	assert.Equal(t, int64(0), doc.Get("rate_limit.remaining").Int())
	assert.True(t, doc.Get("rate_limit.limited").Bool())
	assert.Equal(t, 300.0, doc.Get("rate_limit.reset_in_seconds").Float())
	assert.Equal(t, int64(3), doc.Get("cache.entries").Int())
	assert.Equal(t, int64(14400), doc.Get("cache.ttl_seconds").Int())
}

func TestShortDuration(t *testing.T) {
	assert.Equal(t, "1h", shortDuration(time.Hour))
	assert.Equal(t, "30m", shortDuration(30*time.Minute))
	assert.Equal(t, "1h30m", shortDuration(90*time.Minute))
	assert.Equal(t, "45s", shortDuration(45*time.Second))
}
