// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package yahoo

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/apex/log"
	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"

	"github.com/staranto/sangre/internal/fetch"
)

const (
	DefaultBaseURL   = "https://query2.finance.yahoo.com"
	DefaultTimeout   = 10 * time.Second
	DefaultUserAgent = "Mozilla/5.0 (compatible; sangre-signal)"

	quotePath = "/v10/finance/quoteSummary/{ticker}"
)

// DefaultModules are the quoteSummary modules requested for every ticker.
var DefaultModules = []string{
	"price",
	"summaryProfile",
	"summaryDetail",
	"defaultKeyStatistics",
	"financialData",
}

// ResultPath is the gjson path of the first quote in a quoteSummary body.
const ResultPath = "quoteSummary.result.0"

type clientOptions struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
	Modules   []string
}

// ClientOption configures a Client.
type ClientOption func(*clientOptions)

func WithBaseURL(u string) ClientOption {
	return func(o *clientOptions) {
		if u != "" {
			o.BaseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithTimeout bounds each attempt.
func WithTimeout(d time.Duration) ClientOption {
	return func(o *clientOptions) {
		if d > 0 {
			o.Timeout = d
		}
	}
}

func WithUserAgent(ua string) ClientOption {
	return func(o *clientOptions) {
		if ua != "" {
			o.UserAgent = ua
		}
	}
}

func WithModules(modules ...string) ClientOption {
	return func(o *clientOptions) {
		if len(modules) > 0 {
			o.Modules = modules
		}
	}
}

// Client fetches quoteSummary documents. It holds no cache or limiter of
// its own; every call is one network attempt.
type Client struct {
	resty   *resty.Client
	timeout time.Duration
	modules string
}

func NewClient(opts ...ClientOption) *Client {
	cfg := clientOptions{
		BaseURL:   DefaultBaseURL,
		Timeout:   DefaultTimeout,
		UserAgent: DefaultUserAgent,
		Modules:   DefaultModules,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	rc := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetHeader("User-Agent", cfg.UserAgent).
		SetHeader("Accept", "application/json")

	return &Client{
		resty:   rc,
		timeout: cfg.Timeout,
		modules: strings.Join(cfg.Modules, ","),
	}
}

// Quote returns a fetch.Func that performs one quoteSummary request for
// ticker, bounded by the client timeout.
func (c *Client) Quote(ticker string) fetch.Func {
	return func(ctx context.Context) ([]byte, error) {
		attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		log.WithField("ticker", ticker).Debug("requesting quote summary")
		resp, err := c.resty.R().
			SetContext(attemptCtx).
			SetPathParam("ticker", ticker).
			SetQueryParam("modules", c.modules).
			Get(quotePath)
		if err != nil {
			if ctx.Err() == nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
				return nil, fetch.Transient(fmt.Errorf("quote %s: timed out after %s", ticker, c.timeout))
			}
			return nil, fmt.Errorf("quote %s: %w", ticker, err)
		}

		body := resp.Body()
		if err := classifyResponse(ticker, resp.StatusCode(), body); err != nil {
			return nil, err
		}
		return body, nil
	}
}

// classifyResponse maps an HTTP status and body onto the fetch error
// kinds. A 200 whose body carries no result is treated as not found.
func classifyResponse(ticker string, status int, body []byte) error {
	code := gjson.GetBytes(body, "quoteSummary.error.code").String()
	desc := gjson.GetBytes(body, "quoteSummary.error.description").String()
	if desc == "" {
		desc = strings.TrimSpace(string(body))
		if len(desc) > 200 { //nolint:mnd
			desc = desc[:200]
		}
	}

	switch {
	case status == http.StatusNotFound, strings.EqualFold(code, "Not Found"):
		return fmt.Errorf("quote %s: %s: %w", ticker, desc, fetch.ErrNotFound)
	case status == http.StatusTooManyRequests:
		return fetch.Transient(fmt.Errorf("quote %s: http 429 too many requests", ticker))
	case status >= http.StatusInternalServerError:
		return fetch.Transient(fmt.Errorf("quote %s: http %d: %s", ticker, status, desc))
	case status >= http.StatusBadRequest:
		return fetch.Fatal(fmt.Errorf("quote %s: http %d: %s", ticker, status, desc))
	case code != "":
		return fetch.Fatal(fmt.Errorf("quote %s: %s: %s", ticker, code, desc))
	}

	if !gjson.GetBytes(body, ResultPath).Exists() {
		return fmt.Errorf("quote %s: no data returned: %w", ticker, fetch.ErrNotFound)
	}
	return nil
}
