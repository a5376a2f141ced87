// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package errors constructs errors that remember where they were created.
//
// Use New or Errorf for fresh errors and Wrap or Wrapf to add context to an
// existing one:
//
//	errors.Errorf("launcher %q not found", path)
//	errors.Wrapf(err, "failed to parse %q", decl)
//
// Formatting an error with "%+v" prints every link of the chain with the
// frames it was created at, which is what generated test units print when a
// distributed run cannot even be started.
//
// Is and As are re-exported from the standard library so that callers can
// match the typed errors of this module (decl.ConfigError,
// launch.ExitError, ...) through wrapped chains without a second import.
package errors

import (
	stderrors "errors"
	"fmt"
	"io"
	"strings"

	"mpitest/errors/stack"
)

// impl is the error implementation used by this package.
type impl struct {
	msg   string      // message prepended to cause
	stk   stack.Stack // where the error was created
	cause error       // wrapped error, may be nil
}

// Error implements the error interface.
func (e *impl) Error() string {
	if e.cause == nil {
		return e.msg
	}
	return fmt.Sprintf("%s: %s", e.msg, e.cause.Error())
}

// Unwrap returns the wrapped error so that Is and As can walk the chain.
func (e *impl) Unwrap() error {
	return e.cause
}

// Format implements fmt.Formatter. "%+v" prints the chain with stack traces.
func (e *impl) Format(s fmt.State, verb rune) {
	if verb == 'v' && s.Flag('+') {
		io.WriteString(s, FormatChain(e))
		return
	}
	io.WriteString(s, e.Error())
}

// FormatChain renders err and every error it wraps, one block per link.
// Links created outside this package are printed without a location.
func FormatChain(err error) string {
	var chain []string
	for err != nil {
		e, ok := err.(*impl)
		if !ok {
			chain = append(chain, fmt.Sprintf("%s\n\tat ???", err.Error()))
			break
		}
		chain = append(chain, fmt.Sprintf("%s\n%v", e.msg, e.stk))
		err = e.cause
	}
	return strings.Join(chain, "\n")
}

// New creates an error with the given message, recording the caller.
func New(msg string) error {
	return &impl{msg: msg, stk: stack.New(1)}
}

// Errorf creates an error with a formatted message, recording the caller.
func Errorf(format string, args ...interface{}) error {
	return &impl{msg: fmt.Sprintf(format, args...), stk: stack.New(1)}
}

// Wrap adds msg in front of cause. If cause is nil, Wrap behaves like New.
func Wrap(cause error, msg string) error {
	return &impl{msg: msg, stk: stack.New(1), cause: cause}
}

// Wrapf is Wrap with a formatted message.
func Wrapf(cause error, format string, args ...interface{}) error {
	return &impl{msg: fmt.Sprintf(format, args...), stk: stack.New(1), cause: cause}
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return stderrors.As(err, target)
}
