// Package transport implements the three pluggable HTTP strategies of
// spec.md §4.2: L1 plain, L2 TLS-impersonating with warm-up, and L3
// browser-driven response interception.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/schema"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/gilby125/flightcrawler/retry"
)

var formEncoder = schema.NewEncoder()

// L1Config configures the plain HTTP client (spec.md §4.2 "standard
// client supporting GET/POST with headers, form data, JSON body,
// cookies").
type L1Config struct {
	Timeout   time.Duration
	ProxyURL  string // empty means no proxy (CRAWLER_L1_PROXY_URL)
	Retry     retry.Policy
	UserAgent string
}

// L1 is the plain HTTP transport, built on hashicorp/go-retryablehttp the
// way the teacher's flights/session.go builds its client, but generalized
// to any source instead of hardcoded to Google Flights.
type L1 struct {
	client  *retryablehttp.Client
	cfg     L1Config
	cookies []*http.Cookie
}

// NewL1 builds an L1 transport from config.
func NewL1(cfg L1Config) (*L1, error) {
	if cfg.Retry.MaxRetries == 0 && cfg.Retry.BaseDelay == 0 {
		cfg.Retry = retry.DefaultPolicy()
	}
	client := retryablehttp.NewClient()
	client.Logger = nil
	client.RetryMax = cfg.Retry.MaxRetries
	client.RetryWaitMin = cfg.Retry.BaseDelay
	client.RetryWaitMax = cfg.Retry.MaxDelay
	client.CheckRetry = cfg.Retry.CheckRetry
	client.Backoff = cfg.Retry.Backoff
	client.HTTPClient.Timeout = cfg.Timeout

	if cfg.ProxyURL != "" {
		proxyURL, err := url.Parse(cfg.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("l1: invalid proxy url: %w", err)
		}
		transport := client.HTTPClient.Transport
		if transport == nil {
			transport = http.DefaultTransport
		}
		if ht, ok := transport.(*http.Transport); ok {
			cloned := ht.Clone()
			cloned.Proxy = http.ProxyURL(proxyURL)
			client.HTTPClient.Transport = cloned
		} else {
			client.HTTPClient.Transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
		}
	}

	return &L1{client: client, cfg: cfg}, nil
}

// Request describes one call through any transport strategy.
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Query   url.Values
	// Form, when non-nil, is struct-encoded via gorilla/schema into a
	// application/x-www-form-urlencoded body.
	Form any
	// JSON, when non-nil, is marshaled as the request body with
	// Content-Type: application/json.
	JSON any
}

// Response is the strategy-agnostic result of a Request.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Do executes req against the target site, honoring ctx's deadline.
func (l *L1) Do(ctx context.Context, req Request) (*Response, error) {
	var body io.Reader
	contentType := ""

	if req.Form != nil {
		values := url.Values{}
		if err := formEncoder.Encode(req.Form, values); err != nil {
			return nil, fmt.Errorf("l1: encode form: %w", err)
		}
		body = strings.NewReader(values.Encode())
		contentType = "application/x-www-form-urlencoded"
	} else if req.JSON != nil {
		buf, err := json.Marshal(req.JSON)
		if err != nil {
			return nil, fmt.Errorf("l1: encode json: %w", err)
		}
		body = bytes.NewReader(buf)
		contentType = "application/json"
	}

	target := req.URL
	if len(req.Query) > 0 {
		if strings.Contains(target, "?") {
			target += "&" + req.Query.Encode()
		} else {
			target += "?" + req.Query.Encode()
		}
	}

	rreq, err := retryablehttp.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		return nil, fmt.Errorf("l1: new request: %w", err)
	}
	if contentType != "" {
		rreq.Header.Set("Content-Type", contentType)
	}
	if l.cfg.UserAgent != "" {
		rreq.Header.Set("User-Agent", l.cfg.UserAgent)
	}
	for k, v := range req.Headers {
		rreq.Header.Set(k, v)
	}
	for _, c := range l.cookies {
		rreq.AddCookie(c)
	}

	resp, err := l.client.Do(rreq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	l.cookies = append(l.cookies, resp.Cookies()...)

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("l1: read body: %w", err)
	}
	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: data}, nil
}

// Cookies returns the cookie jar accumulated across calls (ground:
// teacher flights/session.go Session.cookies).
func (l *L1) Cookies() []*http.Cookie { return l.cookies }
