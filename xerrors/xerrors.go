// Package xerrors classifies the error taxonomy of spec.md §7 so the
// retry policy (package retry) and the dispatcher can decide retryable
// vs. non-retryable without every adapter reimplementing the same
// sniffing logic.
package xerrors

import (
	"errors"
	"net/http"
	"strings"

	cockroacherrors "github.com/cockroachdb/errors"
)

// Kind is a closed taxonomy of error categories, not a type hierarchy —
// spec.md is explicit that this is "kinds, not type names".
type Kind int

const (
	KindUnknown Kind = iota
	KindTransport
	KindHTTP5xx
	KindHTTP429
	KindHTTP4xxOther
	KindAntiBot
	KindAuthExpired
	KindResponseShape
	KindUpstreamAdvisory
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindHTTP5xx:
		return "http_5xx"
	case KindHTTP429:
		return "http_429"
	case KindHTTP4xxOther:
		return "http_4xx_other"
	case KindAntiBot:
		return "anti_bot"
	case KindAuthExpired:
		return "auth_expired"
	case KindResponseShape:
		return "response_shape"
	case KindUpstreamAdvisory:
		return "upstream_advisory"
	default:
		return "unknown"
	}
}

// Retryable reports whether the classified kind is retryable per spec.md
// §4.1 / §7. Auth-expired is handled by a dedicated refresh-and-retry-once
// path in the adapter, not by the generic retry loop, so it is not
// retryable here.
func (k Kind) Retryable() bool {
	switch k {
	case KindTransport, KindHTTP5xx, KindHTTP429, KindAntiBot:
		return true
	default:
		return false
	}
}

// classifiedError pairs an underlying error with its taxonomy kind. It
// wraps via cockroachdb/errors so a stack trace survives into logs when
// an adapter's crawl() boundary formats the final CrawlResult.Error.
type classifiedError struct {
	kind Kind
	err  error
}

func (c *classifiedError) Error() string { return c.err.Error() }
func (c *classifiedError) Unwrap() error { return c.err }

// Classify wraps err with a Kind so downstream policy can call KindOf.
func Classify(err error, kind Kind) error {
	if err == nil {
		return nil
	}
	return &classifiedError{kind: kind, err: cockroacherrors.WithStack(err)}
}

// KindOf extracts the Kind attached by Classify, or infers one from a
// bare *http.Response status / a transport-looking message when the
// caller never classified explicitly. Unrecognized errors are KindUnknown
// (non-retryable), matching "Non-classified errors surface immediately."
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var ce *classifiedError
	if errors.As(err, &ce) {
		return ce.kind
	}
	return KindUnknown
}

// ClassifyHTTPStatus maps an HTTP status code to a Kind per spec.md §7.
func ClassifyHTTPStatus(status int) Kind {
	switch {
	case status == http.StatusTooManyRequests:
		return KindHTTP429
	case status == http.StatusUnauthorized:
		return KindAuthExpired
	case status == http.StatusForbidden:
		return KindAntiBot
	case status >= 500:
		return KindHTTP5xx
	case status >= 400:
		return KindHTTP4xxOther
	default:
		return KindUnknown
	}
}

// antiBotMarkers are body substrings that indicate a challenge page rather
// than a genuine 403 (spec.md §7 "403 plus site-specific markers").
var antiBotMarkers = []string{
	"just a moment",
	"cf-challenge",
	"turnstile",
	"ds-30037",
	"captcha",
}

// LooksLikeAntiBot reports whether a response body carries a known
// anti-bot challenge marker.
func LooksLikeAntiBot(body string) bool {
	lower := strings.ToLower(body)
	for _, m := range antiBotMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

// Wrap attaches a message to err with a stack trace, for surfacing at an
// adapter's crawl() boundary. Kind is preserved if err was classified.
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	if ce := new(classifiedError); errors.As(err, &ce) {
		return &classifiedError{kind: ce.kind, err: cockroacherrors.Wrap(ce.err, msg)}
	}
	return cockroacherrors.Wrap(err, msg)
}

// New constructs a plain error with an attached stack, for adapter code
// that needs to report a failure with no external cause.
func New(msg string) error {
	return cockroacherrors.New(msg)
}

// Upstream wraps an upstream-advisory error (documented error code from
// the source API) — non-retryable, surfaced verbatim (spec.md §7).
func Upstream(msg string) error {
	return Classify(cockroacherrors.New(msg), KindUpstreamAdvisory)
}

// ResponseShape wraps a parse/shape failure (spec.md §9 design note:
// response-shape errors should not collapse into retries).
func ResponseShape(err error) error {
	return Classify(err, KindResponseShape)
}
