// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package errors

import (
	stderrors "errors"
	"fmt"
	"os"
	"regexp"
	"testing"
)

func check(t *testing.T, err error, msg string, traceRegexp *regexp.Regexp) {
	t.Helper()
	if s := err.Error(); s != msg {
		t.Errorf("Wrong error message %q; want %q", s, msg)
	}
	if s := fmt.Sprintf("%v", err); s != msg {
		t.Errorf("Wrong default value %q; want %q", s, msg)
	}
	if tr := fmt.Sprintf("%+v", err); !traceRegexp.MatchString(tr) {
		t.Errorf("Wrong trace %q; should match %q", tr, traceRegexp)
	}
}

func TestNew(t *testing.T) {
	traceRegexp := regexp.MustCompile(`^no launcher
	at mpitest/errors\.TestNew \(errors_test.go:\d+\)`)

	check(t, New("no launcher"), "no launcher", traceRegexp)
}

func TestErrorf(t *testing.T) {
	traceRegexp := regexp.MustCompile(`^np 0 is not positive
	at mpitest/errors\.TestErrorf \(errors_test.go:\d+\)`)

	check(t, Errorf("np %d is not positive", 0), "np 0 is not positive", traceRegexp)
}

func TestWrap(t *testing.T) {
	traceRegexp := regexp.MustCompile(`(?s)^launch failed
	at mpitest/errors\.TestWrap \(errors_test.go:\d+\)
.*
exit 3
	at mpitest/errors\.TestWrap \(errors_test.go:\d+\)`)

	check(t, Wrap(New("exit 3"), "launch failed"), "launch failed: exit 3", traceRegexp)
}

func TestWrapForeignError(t *testing.T) {
	traceRegexp := regexp.MustCompile(`(?s)^launch failed
	at mpitest/errors\.TestWrapForeignError \(errors_test.go:\d+\)
.*
exit 3
	at \?\?\?$`)

	check(t, Wrap(stderrors.New("exit 3"), "launch failed"), "launch failed: exit 3", traceRegexp)
}

func TestWrapNil(t *testing.T) {
	traceRegexp := regexp.MustCompile(`^launch failed
	at mpitest/errors\.TestWrapNil \(errors_test.go:\d+\)`)

	check(t, Wrap(nil, "launch failed"), "launch failed", traceRegexp)
}

type codeError struct{ code int }

func (e *codeError) Error() string { return fmt.Sprintf("code %d", e.code) }

func TestIsAs(t *testing.T) {
	err := Wrapf(Wrap(&codeError{7}, "inner"), "outer %d", 1)

	var ce *codeError
	if !As(err, &ce) {
		t.Fatalf("As(%v) = false; want true", err)
	}
	if ce.code != 7 {
		t.Errorf("As found code %d; want 7", ce.code)
	}

	wrapped := Wrap(os.ErrNotExist, "stat")
	if !Is(wrapped, os.ErrNotExist) {
		t.Errorf("Is(%v, os.ErrNotExist) = false; want true", wrapped)
	}
	if Is(err, os.ErrNotExist) {
		t.Errorf("Is(%v, os.ErrNotExist) = true; want false", err)
	}
}
