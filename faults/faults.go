// Package faults codifies the error taxonomy from the error-handling design:
// ConfigurationFault, ConnectionFault, ParserFault, BackpressureDrop, and
// ShutdownRequested. Every fault carries a stable code so callers can switch
// on Code(err) instead of a type assertion, matching agilira-argus's own
// errors.New(code, msg) / errors.Wrap(err, code, msg) idiom built on
// github.com/agilira/go-errors.
package faults

import (
	"strings"

	"github.com/agilira/go-errors"
)

// Codes for the five error kinds named in the error-handling design. These
// are process-stable strings, not typed errors, so they survive wrapping.
const (
	CodeConfiguration = "MDFH_CONFIGURATION_FAULT"
	CodeConnection    = "MDFH_CONNECTION_FAULT"
	CodeParser        = "MDFH_PARSER_FAULT"
	CodeBackpressure  = "MDFH_BACKPRESSURE_DROP"
	CodeShutdown      = "MDFH_SHUTDOWN_REQUESTED"
)

// Configuration wraps a startup configuration error. The caller aborts the
// process with exit code 1.
func Configuration(msg string) error {
	return errors.New(CodeConfiguration, msg)
}

// ConfigurationWrap wraps an underlying error as a configuration fault.
func ConfigurationWrap(err error, msg string) error {
	return errors.Wrap(err, CodeConfiguration, msg)
}

// Connection wraps a transient connection error. The driver retries at a
// one-second backoff; the caller does not abort the process.
func Connection(msg string) error {
	return errors.New(CodeConnection, msg)
}

// ConnectionWrap wraps an underlying error as a connection fault.
func ConnectionWrap(err error, msg string) error {
	return errors.Wrap(err, CodeConnection, msg)
}

// Parser wraps a partial-record overflow: input longer than the carry
// buffer accumulated before any record completed. Fatal for the feed.
func Parser(msg string) error {
	return errors.New(CodeParser, msg)
}

// Backpressure reports that a ring rejected a push. Counted, never fatal;
// exposed as an error value only for callers that want to log it uniformly
// with the other fault kinds.
func Backpressure(msg string) error {
	return errors.New(CodeBackpressure, msg)
}

// Shutdown reports cooperative termination via a stop flag.
func Shutdown(msg string) error {
	return errors.New(CodeShutdown, msg)
}

// Is reports whether err was constructed (directly or via Wrap) with the
// given fault code. go-errors folds the code into Error()'s output, so
// membership is a substring check, matching the idiom agilira-argus's own
// error-handling example uses to identify a wrapped error's code.
func Is(err error, code string) bool {
	return err != nil && strings.Contains(err.Error(), code)
}
