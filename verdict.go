// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package mpitest

import (
	"bytes"
	"strings"
	"sync"

	"mpitest/errors"
	"mpitest/internal/expand"
	"mpitest/internal/launch"
)

// matchWriter records whether a substring was ever written to it, including
// occurrences split across writes.
type matchWriter struct {
	needle []byte

	mu    sync.Mutex
	tail  []byte
	found bool
}

func newMatchWriter(needle string) *matchWriter {
	return &matchWriter{needle: []byte(needle)}
}

func (w *matchWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.found || len(w.needle) == 0 {
		return len(p), nil
	}
	buf := append(append([]byte(nil), w.tail...), p...)
	if bytes.Contains(buf, w.needle) {
		w.found = true
		w.tail = nil
		return len(p), nil
	}
	if keep := len(w.needle) - 1; len(buf) > keep {
		buf = buf[len(buf)-keep:]
	}
	w.tail = buf
	return len(p), nil
}

// Found returns true if the substring has been seen.
func (w *matchWriter) Found() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.found
}

// judge maps the result of a launch to a unit verdict under policy p. A nil
// return means the unit passes. out has seen the launcher's output.
//
// A launch that was never attempted fails the unit under any policy, since
// the body did not run.
func judge(p expand.Policy, err error, out *matchWriter) error {
	if err != nil && launch.StatusOf(err) == launch.NotStarted {
		return errors.Wrap(err, "distributed run was not attempted")
	}
	if !p.ExpectFailure {
		if err == nil {
			return nil
		}
		switch launch.StatusOf(err) {
		case launch.LaunchFailed:
			return errors.Wrap(err, "could not start the distributed run")
		default:
			return errors.Wrap(err, "distributed run failed")
		}
	}

	if err == nil {
		return errors.New("distributed run succeeded, but it was expected to fail")
	}
	if p.Message == "" || out.Found() || strings.Contains(err.Error(), p.Message) {
		return nil
	}
	return errors.Wrapf(err, "distributed run failed as expected, but %q was not in its output", p.Message)
}
