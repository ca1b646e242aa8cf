package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
)

// ErrNoResult is returned by Client.Call once every attempt has failed.
var ErrNoResult = errors.New("reasoning service gave no result")

// Kind classifies a failed reasoning call.
type Kind int

const (
	KindServerError Kind = iota
	KindTimeout
	KindRateLimited
	KindConnection
	KindMalformed
)

func (k Kind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindRateLimited:
		return "rate_limited"
	case KindConnection:
		return "connection_error"
	case KindMalformed:
		return "malformed"
	default:
		return "server_error"
	}
}

// Error is a classified provider failure.
type Error struct {
	Kind       Kind
	Provider   string
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("provider %s: %s (HTTP %d)", e.Provider, e.Message, e.StatusCode)
	}
	return fmt.Sprintf("provider %s: %s", e.Provider, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the classification of err, treating unclassified errors
// as server errors.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindServerError
}

// statusError classifies a non-2xx response.
func statusError(providerName string, statusCode int, body []byte) *Error {
	kind := KindServerError
	if statusCode == 429 {
		kind = KindRateLimited
	}
	return &Error{
		Kind:       kind,
		Provider:   providerName,
		StatusCode: statusCode,
		Message:    parseProviderError(statusCode, body),
	}
}

// transportError classifies a failure to get any response at all.
func transportError(providerName string, err error) *Error {
	kind := KindConnection
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		kind = KindTimeout
	}
	return &Error{Kind: kind, Provider: providerName, Message: friendlyProviderError(err), Err: err}
}

// parseProviderError extracts a human-readable error from provider API responses.
func parseProviderError(statusCode int, body []byte) string {
	var errResp struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
			Code    string `json:"code"`
		} `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &errResp) == nil {
		msg := errResp.Error.Message
		if msg == "" {
			msg = errResp.Message
		}
		if msg != "" {
			return msg
		}
	}

	switch statusCode {
	case 401:
		return "authentication failed, check XAI_API_KEY"
	case 403:
		return "access denied, the API key may not have access to this model"
	case 404:
		return "model or endpoint not found"
	case 429:
		return "rate limited, too many requests"
	case 500:
		return "internal server error on the provider side"
	case 502, 503:
		return "provider service temporarily unavailable"
	case 529:
		return "provider is overloaded"
	}

	s := string(body)
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return fmt.Sprintf("HTTP %d: %s", statusCode, s)
}

// friendlyProviderError converts common network errors to user-friendly messages.
func friendlyProviderError(err error) string {
	msg := err.Error()
	if strings.Contains(msg, "connection refused") {
		return "connection refused (is the service running?)"
	}
	if strings.Contains(msg, "no such host") {
		return "host not found (check the URL)"
	}
	if strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline exceeded") {
		return "request timed out"
	}
	if strings.Contains(msg, "EOF") {
		return "connection closed unexpectedly"
	}
	if strings.Contains(msg, "reset by peer") {
		return "connection reset by server"
	}
	return msg
}
