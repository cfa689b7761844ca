// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package fetch

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

// ErrNotFound is returned by a Func when the upstream does not know the
// requested symbol. It is never retried.
var ErrNotFound = errors.New("symbol not found")

// QuotaExceededError is returned when the local rate limiter denies the
// call and there is no cached payload to fall back on.
type QuotaExceededError struct {
	RetryAfter time.Duration
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("local rate limit exceeded, resets in %s", e.RetryAfter.Round(time.Second))
}

// RetriesExhaustedError is returned after the last transient failure.
type RetriesExhaustedError struct {
	Attempts  int
	LastCause error
}

func (e *RetriesExhaustedError) Error() string {
	return fmt.Sprintf("giving up after %d attempts: %v", e.Attempts, e.LastCause)
}

func (e *RetriesExhaustedError) Unwrap() error { return e.LastCause }

// FatalError is a failure that retrying cannot fix.
type FatalError struct {
	Cause error
}

func (e *FatalError) Error() string { return "fatal fetch error: " + e.Cause.Error() }

func (e *FatalError) Unwrap() error { return e.Cause }

// Fatal marks err as not worth retrying.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &FatalError{Cause: err}
}

type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }

func (e *transientError) Unwrap() error { return e.err }

// Transient marks err as retryable.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

type kind int

const (
	kindFatal kind = iota
	kindTransient
	kindNotFound
)

// transientMarkers are lower-case fragments of error messages that signal
// a retryable upstream condition.
var transientMarkers = []string{
	"429",
	"too many requests",
	"rate limit",
	"timeout",
	"timed out",
	"connection",
	"temporary",
	"500", "502", "503", "504",
}

// classify decides how the coordinator reacts to a Func error. Explicit
// markers win; otherwise the error chain and then the message are checked.
func classify(err error) kind {
	var (
		te *transientError
		fe *FatalError
		ne net.Error
	)
	switch {
	case errors.Is(err, ErrNotFound):
		return kindNotFound
	case errors.As(err, &fe):
		return kindFatal
	case errors.As(err, &te):
		return kindTransient
	case errors.Is(err, context.DeadlineExceeded):
		return kindTransient
	case errors.As(err, &ne) && ne.Timeout():
		return kindTransient
	}

	msg := strings.ToLower(err.Error())
	for _, m := range transientMarkers {
		if strings.Contains(msg, m) {
			return kindTransient
		}
	}
	return kindFatal
}

// IsTransient reports whether err would be retried.
func IsTransient(err error) bool {
	return err != nil && classify(err) == kindTransient
}
