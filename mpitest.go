// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package mpitest

import (
	"context"
	"io"
	"os/exec"
	"path"
	"testing"
	"time"

	"mpitest/errors"
	"mpitest/internal/config"
	"mpitest/internal/decl"
	"mpitest/internal/expand"
	"mpitest/internal/launch"
	"mpitest/internal/logging"
)

// Func is a test body. It runs once in every launched process.
type Func func(t *testing.T, s *State)

// Param is one parameter case. A case without a name is called "case_<i>".
type Param = expand.Param

// Axis is one named dimension passed to Cartesian.
type Axis = expand.Axis

// Values returns an axis for Cartesian.
func Values(name string, vals ...interface{}) Axis {
	return expand.Values(name, vals...)
}

// Cartesian returns one parameter case per combination of axis values.
func Cartesian(axes ...Axis) []Param {
	return expand.Cartesian(axes...)
}

// Test declares a test body to be run under a launcher.
type Test struct {
	// NP lists the process counts, as "np = [2, 4]", "np(2, 4)", "np = 2"
	// or "np(2)".
	NP string
	// Func is the body.
	Func Func
	// Params, if non-nil, are parameter cases crossed with the process
	// counts. Each case becomes a subtest holding one unit per count.
	Params []Param
	// ExpectFailure inverts the verdict: units pass iff the distributed run
	// fails.
	ExpectFailure bool
	// FailureMessage, if set with ExpectFailure, must occur in the output or
	// error of the failed run.
	FailureMessage string
}

// deadlineMargin is kept between the launch deadline and the test binary's
// own deadline, on top of the kill grace period.
const deadlineMargin = 2 * time.Second

// RunNP is a shorthand for Run with no parameters and a normal outcome.
func RunNP(t *testing.T, np string, f Func) {
	t.Helper()
	Run(t, &Test{NP: np, Func: f})
}

// Run registers test's units as subtests of t and runs them.
//
// In the orchestrating process every unit launches the test binary and
// waits for the launcher. In a process started by the launcher the selected
// unit runs test.Func directly.
func Run(t *testing.T, test *Test) {
	t.Helper()

	groups, err := plan(t.Name(), test)
	if err != nil {
		t.Fatalf("mpitest: %v", err)
	}
	for _, g := range groups {
		g := g
		body := func(t *testing.T) {
			if err := checkRegistered(t.Name(), g.units[0].Identity.Path); err != nil {
				t.Fatalf("mpitest: %v", err)
			}
			for _, u := range g.units {
				u := u
				t.Run(u.Name, func(t *testing.T) {
					if err := checkRegistered(t.Name(), u.Path()); err != nil {
						t.Fatalf("mpitest: %v", err)
					}
					runUnit(t, u, g.param, test.Func)
				})
			}
		}
		if g.param == nil {
			body(t)
		} else {
			t.Run(g.units[0].Identity.Name, body)
		}
	}
}

// checkRegistered returns *expand.CollisionError if the testing package
// registered a subtest as got instead of the planned path want. This happens
// when the name was already taken, e.g. by a second Run in the same test, and
// the launch would then select the other body.
func checkRegistered(got, want string) error {
	if got == want {
		return nil
	}
	return errors.Wrapf(&expand.CollisionError{Scope: path.Dir(want), Names: []string{path.Base(want)}},
		"subtest was registered as %s", got)
}

// group is the set of units sharing one identity.
type group struct {
	param *Param
	units []*expand.Unit
}

// plan expands test into unit groups, one per parameter case. Nothing is
// registered if any part of the declaration is invalid.
func plan(testPath string, test *Test) ([]*group, error) {
	if test.Func == nil {
		return nil, errors.New("test has no body")
	}
	if test.FailureMessage != "" && !test.ExpectFailure {
		return nil, errors.Errorf("failure message %q given without ExpectFailure", test.FailureMessage)
	}
	if test.Params != nil && len(test.Params) == 0 {
		return nil, errors.New("parameter list is empty")
	}

	nps, err := decl.Parse(test.NP)
	if err != nil {
		return nil, err
	}

	base := &expand.Identity{
		Name:   path.Base(testPath),
		Path:   testPath,
		Policy: expand.Policy{ExpectFailure: test.ExpectFailure, Message: test.FailureMessage},
	}
	ids := []*expand.Identity{base}
	if test.Params != nil {
		if ids, err = expand.Cases(base, test.Params); err != nil {
			return nil, err
		}
	}

	units, err := expand.Matrix(ids, nps)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot expand %q", test.NP)
	}

	groups := make([]*group, len(ids))
	for i, id := range ids {
		groups[i] = &group{}
		if test.Params != nil {
			groups[i].param = &test.Params[i]
		}
		for _, u := range units {
			if u.Identity == id {
				groups[i].units = append(groups[i].units, u)
			}
		}
	}
	return groups, nil
}

func runUnit(t *testing.T, u *expand.Unit, param *Param, f Func) {
	t.Helper()

	var val interface{}
	if param != nil {
		val = param.Val
	}

	if Isolated() {
		if *npFlag != 0 && *npFlag != u.NP {
			t.Fatalf("mpitest: launched with -%s=%d but unit %s expects %d processes", launch.NPFlag, *npFlag, u.Path(), u.NP)
		}
		f(t, &State{t: t, np: u.NP, param: val})
		return
	}

	cfg, err := config.FromEnvironment()
	if err != nil {
		t.Fatalf("mpitest: %v", err)
	}
	if cfg.SkipIfNoLauncher {
		if _, err := exec.LookPath(cfg.Launcher); err != nil {
			t.Skipf("mpitest: launcher %q not available: %v", cfg.Launcher, err)
		}
	}

	if err := launchUnit(t, cfg, u); err != nil {
		t.Fatalf("mpitest: %v", err)
	}
}

// launchUnit runs u through the launcher described by cfg and returns the
// unit's verdict.
func launchUnit(t *testing.T, cfg *config.Config, u *expand.Unit) error {
	logger := logging.NewFuncLogger(func(level logging.Level, ts time.Time, msg string) {
		t.Helper()
		if level == logging.LevelDebug && !testing.Verbose() {
			return
		}
		t.Log(msg)
	})
	ctx := logging.AttachLoggerNoPropagation(context.Background(), logger)

	var cancel context.CancelFunc
	if dl, ok := t.Deadline(); ok {
		if ldl, ok := launchDeadline(dl, cfg.KillGrace, time.Now()); ok {
			ctx, cancel = context.WithDeadlineCause(ctx, ldl, errors.Errorf("test binary deadline %v is near", dl))
		} else {
			logging.Infof(ctx, "Test binary deadline %v leaves no room to reap the launcher; launching without a deadline", dl)
		}
	}
	if cancel == nil {
		ctx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	logging.Debugf(ctx, "Unit %s: %d processes, %v", u.Path(), u.NP, u.Identity.Policy)

	match := newMatchWriter(u.Identity.Policy.Message)
	out := logging.NewWriter(logging.SetLogPrefix(ctx, "> "), logging.LevelInfo)
	w := io.MultiWriter(out, match)

	l := cfg.NewLauncher()
	l.Stdout = w
	l.Stderr = w
	runErr := l.Run(ctx, u.Path(), u.NP)
	out.Close()

	return judge(u.Identity.Policy, runErr, match)
}

// launchDeadline returns the deadline for a launch in a test binary that is
// aborted at dl, leaving grace plus deadlineMargin to reap the process tree.
// It returns false if that deadline is not after now.
func launchDeadline(dl time.Time, grace time.Duration, now time.Time) (time.Time, bool) {
	ldl := dl.Add(-grace - deadlineMargin)
	if !ldl.After(now) {
		return time.Time{}, false
	}
	return ldl, true
}
