// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package mpitest

import (
	"context"
	"io"
	"strings"
	"testing"

	"mpitest/errors"
	"mpitest/internal/expand"
	"mpitest/internal/launch"
)

func TestMatchWriter(t *testing.T) {
	for _, tc := range []struct {
		name   string
		needle string
		chunks []string
		want   bool
	}{
		{"single write", "boom", []string{"rank 1: boom\n"}, true},
		{"split", "sum mismatch", []string{"rank 0: sum mis", "match\n"}, true},
		{"split many", "abc", []string{"a", "b", "c"}, true},
		{"absent", "boom", []string{"all good\n", "bo", "o"}, false},
		{"empty needle", "", []string{"anything"}, false},
	} {
		w := newMatchWriter(tc.needle)
		for _, c := range tc.chunks {
			if _, err := io.WriteString(w, c); err != nil {
				t.Fatal(err)
			}
		}
		if got := w.Found(); got != tc.want {
			t.Errorf("%s: Found() = %v; want %v", tc.name, got, tc.want)
		}
	}
}

func TestJudge(t *testing.T) {
	normal := expand.Policy{}
	expectAny := expand.Policy{ExpectFailure: true}
	expectMsg := expand.Policy{ExpectFailure: true, Message: "sum mismatch"}

	exitErr := &launch.ExitError{Code: 1, State: "exit status 1", Err: errors.New("exit status 1")}
	startErr := &launch.StartError{Launcher: "mpiexec", Err: errors.New("not found")}
	skipErr := errors.Wrap(context.DeadlineExceeded, "launch not attempted")

	seen := newMatchWriter("sum mismatch")
	io.WriteString(seen, "rank 0: sum mismatch: got 3\n")
	unseen := newMatchWriter("sum mismatch")

	for _, tc := range []struct {
		name   string
		p      expand.Policy
		err    error
		out    *matchWriter
		pass   bool
		reason string
	}{
		{"normal success", normal, nil, unseen, true, ""},
		{"normal exit failure", normal, exitErr, unseen, false, "distributed run failed"},
		{"normal start failure", normal, startErr, unseen, false, "could not start"},
		{"expected but succeeded", expectAny, nil, unseen, false, "expected to fail"},
		{"expected any failure", expectAny, exitErr, unseen, true, ""},
		{"expected start failure", expectAny, startErr, unseen, true, ""},
		{"expected message in output", expectMsg, exitErr, seen, true, ""},
		{"expected message missing", expectMsg, exitErr, unseen, false, `"sum mismatch" was not in its output`},
		{"expected message in error", expandPolicy("not found"), startErr, newMatchWriter("not found"), true, ""},
		{"normal not attempted", normal, skipErr, unseen, false, "not attempted"},
		{"expected but not attempted", expectAny, skipErr, unseen, false, "not attempted"},
	} {
		err := judge(tc.p, tc.err, tc.out)
		if tc.pass {
			if err != nil {
				t.Errorf("%s: judge = %v; want pass", tc.name, err)
			}
			continue
		}
		if err == nil {
			t.Errorf("%s: judge passed; want failure", tc.name)
			continue
		}
		if !strings.Contains(err.Error(), tc.reason) {
			t.Errorf("%s: judge = %q; want it to contain %q", tc.name, err.Error(), tc.reason)
		}
		if tc.err != nil && !errors.Is(err, tc.err) {
			t.Errorf("%s: judge = %v; want it to wrap %v", tc.name, err, tc.err)
		}
	}
}

func expandPolicy(msg string) expand.Policy {
	return expand.Policy{ExpectFailure: true, Message: msg}
}
