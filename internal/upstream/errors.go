// Streamglass - Live-Stream Alert Pipeline and TTS Gateway
// Copyright 2026 Streamglass contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/streamglass/streamglass

package upstream

import (
	"errors"
	"fmt"
)

// Kind classifies upstream failures. The session supervisor retries
// transient kinds with backoff and stops on terminal ones.
type Kind string

const (
	// KindNotFound: the handle does not exist or is not live. Terminal.
	KindNotFound Kind = "not_found"

	// KindBlocked: device/IP blocked or a premium endpoint is required.
	// Terminal; never retried.
	KindBlocked Kind = "blocked"

	// KindRateLimited: upstream throttling. Retryable.
	KindRateLimited Kind = "rate_limited"

	// KindSignatureError: request signing rejected. Retryable.
	KindSignatureError Kind = "signature_error"

	// KindTransport: socket closed, decode error. Retryable.
	KindTransport Kind = "transport"

	// KindUnknown: unclassified. Retryable with capped attempts.
	KindUnknown Kind = "unknown"
)

// Error is a classified upstream failure.
type Error struct {
	Kind   Kind
	Handle string
	Cause  error
}

// Error implements error.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("upstream %s for %q: %v", e.Kind, e.Handle, e.Cause)
	}
	return fmt.Sprintf("upstream %s for %q", e.Kind, e.Handle)
}

// Unwrap exposes the cause for errors.Is/As chains.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Terminal reports whether the failure must not be retried.
func (e *Error) Terminal() bool {
	return e.Kind == KindNotFound || e.Kind == KindBlocked
}

// NewError builds a classified error.
func NewError(kind Kind, handle string, cause error) *Error {
	return &Error{Kind: kind, Handle: handle, Cause: cause}
}

// KindOf extracts the failure kind from err, defaulting to KindUnknown.
func KindOf(err error) Kind {
	var ue *Error
	if errors.As(err, &ue) {
		return ue.Kind
	}
	return KindUnknown
}

// IsTerminal reports whether err carries a terminal classification.
func IsTerminal(err error) bool {
	var ue *Error
	return errors.As(err, &ue) && ue.Terminal()
}
