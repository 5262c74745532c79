package provider

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind classifies a failed provider call. The set is closed: every failure
// maps to exactly one Kind, and each Kind has one recovery policy.
type Kind int

const (
	KindNone Kind = iota
	KindNoCredential
	KindInvalidKey
	KindInsufficientCredits
	KindModelNotFound
	KindRateLimited
	KindTransient
	KindFallbackNotConfigured
	KindFallbackFailed
)

// String returns the canonical upper-case label for the kind.
func (k Kind) String() string {
	switch k {
	case KindNone:
		return "NONE"
	case KindNoCredential:
		return "NO_CREDENTIAL"
	case KindInvalidKey:
		return "INVALID_KEY"
	case KindInsufficientCredits:
		return "INSUFFICIENT_CREDITS"
	case KindModelNotFound:
		return "MODEL_NOT_FOUND"
	case KindRateLimited:
		return "RATE_LIMITED"
	case KindTransient:
		return "TRANSIENT"
	case KindFallbackNotConfigured:
		return "FALLBACK_NOT_CONFIGURED"
	case KindFallbackFailed:
		return "FALLBACK_FAILED"
	default:
		return "UNKNOWN"
	}
}

// MarshalText encodes the kind as its label.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Recovery is what the gateway does about a failure.
type Recovery int

const (
	// Fatal ends the turn with a guidance message.
	Fatal Recovery = iota

	// RecoverFallback makes exactly one call to the fallback provider.
	RecoverFallback
)

// Recovery returns the recovery policy for the kind. Only a rate limit is
// recoverable, and only by a single fallback hop: there is no retry loop.
func (k Kind) Recovery() Recovery {
	if k == KindRateLimited {
		return RecoverFallback
	}
	return Fatal
}

// Classify maps a non-2xx HTTP status to a Kind.
func Classify(status int) Kind {
	switch status {
	case http.StatusUnauthorized:
		return KindInvalidKey
	case http.StatusPaymentRequired:
		return KindInsufficientCredits
	case http.StatusNotFound:
		return KindModelNotFound
	case http.StatusTooManyRequests:
		return KindRateLimited
	default:
		return KindTransient
	}
}

// Error is a classified provider failure.
type Error struct {
	Kind     Kind
	Provider string

	// Status is the HTTP status, or 0 when no response was received.
	Status int

	// Message is the provider's error.message, or "HTTP <status>" when the
	// body was not JSON.
	Message string

	// Primary is the rate-limit error that triggered the fallback, set on
	// KindFallbackFailed and KindFallbackNotConfigured.
	Primary error

	// Err is the underlying cause.
	Err error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Provider != "" {
		b.WriteString(e.Provider)
		b.WriteString(": ")
	}
	b.WriteString(strings.ToLower(e.Kind.String()))
	if e.Status != 0 {
		fmt.Fprintf(&b, " (HTTP %d)", e.Status)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	} else if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	if e.Primary != nil {
		b.WriteString(" (after ")
		b.WriteString(e.Primary.Error())
		b.WriteString(")")
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind of err, KindTransient for unclassified errors and
// KindNone for nil.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	var perr *Error
	if errors.As(err, &perr) {
		return perr.Kind
	}
	return KindTransient
}

// errorFromResponse classifies a non-2xx response.
func errorFromResponse(providerName string, status int, body []byte) *Error {
	return &Error{
		Kind:     Classify(status),
		Provider: providerName,
		Status:   status,
		Message:  errorMessage(status, body),
	}
}

// errorMessage extracts error.message (or a top-level message) from a JSON
// error body, falling back to the bare status.
func errorMessage(status int, body []byte) string {
	var envelope struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Sprintf("HTTP %d", status)
	}

	if len(envelope.Error) > 0 {
		var nested struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(envelope.Error, &nested); err == nil && nested.Message != "" {
			return nested.Message
		}
		var plain string
		if err := json.Unmarshal(envelope.Error, &plain); err == nil && plain != "" {
			return plain
		}
	}
	if envelope.Message != "" {
		return envelope.Message
	}
	return fmt.Sprintf("HTTP %d", status)
}
