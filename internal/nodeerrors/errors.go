// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package nodeerrors provides the structured, kind-tagged error type used
// throughout the packet pipeline.
package nodeerrors

import (
	"errors"
	"fmt"
)

// Kind categorizes an error by the pipeline stage that raised it.
type Kind int

const (
	KindUnknown Kind = iota
	// KindStartupConfig: missing or malformed configuration, interface
	// selection, or database connectivity at startup. Fatal.
	KindStartupConfig
	// KindParseReject: a captured frame failed header validation and was
	// dropped before reaching the firewall. Not fatal.
	KindParseReject
	// KindFirewallDeny: a parsed packet was denied by the rule Set. Not
	// fatal, not even an error condition by itself — callers use this
	// kind only when logging a denial as a diagnostic event.
	KindFirewallDeny
	// KindStorageTransient: a database operation failed but may succeed
	// on retry (connection hiccup, deadlock).
	KindStorageTransient
	// KindStoragePermanent: a database operation failed in a way retries
	// cannot fix (schema mismatch, row-count mismatch after insert).
	KindStoragePermanent
	// KindTaskExit: a supervised task (capture/writer/reader) returned or
	// panicked before a shutdown was requested. Fatal to the process.
	KindTaskExit
	// KindShutdownTimeout: tasks did not quiesce within the shutdown
	// deadline.
	KindShutdownTimeout
)

func (k Kind) String() string {
	switch k {
	case KindStartupConfig:
		return "startup_config"
	case KindParseReject:
		return "parse_reject"
	case KindFirewallDeny:
		return "firewall_deny"
	case KindStorageTransient:
		return "storage_transient"
	case KindStoragePermanent:
		return "storage_permanent"
	case KindTaskExit:
		return "task_exit"
	case KindShutdownTimeout:
		return "shutdown_timeout"
	default:
		return "unknown"
	}
}

// Error is a structured error carrying a Kind, a human message, and an
// optional wrapped cause.
type Error struct {
	Kind       Kind
	Message    string
	Underlying error
	Attributes map[string]any
}

func (e *Error) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Underlying)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Underlying
}

// New creates an Error of the given Kind.
func New(kind Kind, msg string) error {
	return &Error{Kind: kind, Message: msg}
}

// Errorf creates an Error of the given Kind with a formatted message.
func Errorf(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps err as a new Error of the given Kind. Returns nil if err is
// nil.
func Wrap(err error, kind Kind, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: msg, Underlying: err}
}

// Wrapf wraps err as a new Error of the given Kind with a formatted
// message. Returns nil if err is nil.
func Wrapf(err error, kind Kind, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Underlying: err}
}

// Attr attaches a key/value attribute, wrapping non-Error values as
// KindUnknown first.
func Attr(err error, key string, val any) error {
	if err == nil {
		return nil
	}
	var e *Error
	if !errors.As(err, &e) {
		e = &Error{Kind: KindUnknown, Message: err.Error(), Underlying: err}
	}
	if e.Attributes == nil {
		e.Attributes = make(map[string]any)
	}
	e.Attributes[key] = val
	return e
}

// GetKind returns the Kind of err, or KindUnknown if err is not (or does
// not wrap) a *Error.
func GetKind(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool { return errors.Is(err, target) }

// As finds the first error in err's chain matching target's type.
func As(err error, target any) bool { return errors.As(err, target) }
