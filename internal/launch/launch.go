// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package launch runs one selected test body under a parallel launcher such
// as mpiexec.
//
// The launcher is handed the current test binary together with flags that
// select exactly one subtest and put the binary into isolated-run mode, so
// that the body runs directly in every spawned process instead of launching
// again.
package launch

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"syscall"
	"time"

	"code.cloudfoundry.org/clock"
	"github.com/shirou/gopsutil/v3/cpu"

	"mpitest/errors"
	"mpitest/internal/logging"
	"mpitest/shutil"
)

const (
	// IsolatedFlag is the test binary flag that selects isolated-run mode.
	IsolatedFlag = "mpitest.isolated"
	// NPFlag is the test binary flag carrying the process count to ranks.
	NPFlag = "mpitest.np"
	// IsolatedEnv is the environment variable equivalent of IsolatedFlag.
	IsolatedEnv = "MPITEST_ISOLATED"

	// DefaultKillGrace is how long a terminated launcher is given to exit
	// after SIGTERM before its process group is killed.
	DefaultKillGrace = 5 * time.Second
)

// logicalCPUs is replaced in unit tests.
var logicalCPUs = func() (int, error) { return cpu.Counts(true) }

// Launcher describes how to start a parallel launcher.
type Launcher struct {
	// Path is the launcher executable, e.g. "mpiexec". It is resolved via PATH
	// if it contains no slash.
	Path string
	// CountFlag is the launcher flag taking the process count, e.g. "-n".
	CountFlag string
	// Args are extra launcher arguments placed before CountFlag.
	Args []string
	// Self is the test binary to launch. If empty, the running executable is
	// used.
	Self string
	// TestArgs are extra test binary arguments appended after the selection
	// flags.
	TestArgs []string
	// Env holds extra "key=value" environment variables for the launcher.
	Env []string
	// Stdout and Stderr receive launcher output. Nil discards it.
	Stdout, Stderr io.Writer
	// KillGrace is the time between SIGTERM and SIGKILL on cancellation.
	// Zero means DefaultKillGrace.
	KillGrace time.Duration
	// Clock is used for timing. Nil means the real clock.
	Clock clock.Clock
}

// Pattern converts a slash-delimited test path into a -test.run pattern that
// matches exactly that path, anchoring every element.
func Pattern(testPath string) string {
	elems := strings.Split(testPath, "/")
	for i, e := range elems {
		elems[i] = "^" + regexp.QuoteMeta(e) + "$"
	}
	return strings.Join(elems, "/")
}

// selfExecutable returns the path of the running binary.
func selfExecutable() (string, error) {
	if exe, err := os.Executable(); err == nil {
		return exe, nil
	}
	if len(os.Args) > 0 && os.Args[0] != "" {
		return os.Args[0], nil
	}
	return "", errors.New("cannot determine the running executable")
}

// Command returns the full launcher command line that runs testPath under
// np processes. The first element is the launcher.
func (l *Launcher) Command(testPath string, np int) ([]string, error) {
	if l.Path == "" {
		return nil, errors.New("no launcher configured")
	}
	if l.CountFlag == "" {
		return nil, errors.New("no launcher count flag configured")
	}
	if np <= 0 {
		return nil, errors.Errorf("process count %d is not positive", np)
	}
	if testPath == "" {
		return nil, errors.New("empty test path")
	}

	self := l.Self
	if self == "" {
		var err error
		if self, err = selfExecutable(); err != nil {
			return nil, err
		}
	}

	args := []string{l.Path}
	args = append(args, l.Args...)
	args = append(args, l.CountFlag, strconv.Itoa(np), self,
		"-test.run", Pattern(testPath),
		"-test.v",
		"-test.count=1",
		"-"+IsolatedFlag,
		fmt.Sprintf("-%s=%d", NPFlag, np))
	args = append(args, l.TestArgs...)
	return args, nil
}

func (l *Launcher) clock() clock.Clock {
	if l.Clock != nil {
		return l.Clock
	}
	return clock.NewClock()
}

func (l *Launcher) killGrace() time.Duration {
	if l.KillGrace > 0 {
		return l.KillGrace
	}
	return DefaultKillGrace
}

// warnOversubscribed logs a warning when np exceeds the logical CPU count.
// Launchers usually refuse to oversubscribe unless told to.
func warnOversubscribed(ctx context.Context, np int) {
	n, err := logicalCPUs()
	if err != nil {
		logging.Debugf(ctx, "Failed to count CPUs: %v", err)
		return
	}
	if n > 0 && np > n {
		logging.Infof(ctx, "Warning: %d processes requested on %d logical CPUs; the launcher may need an oversubscribe option", np, n)
	}
}

// Run launches testPath under np processes and waits for the launcher to
// exit. It returns nil on a zero exit status, *StartError if the launcher
// could not be spawned and *ExitError if it ran and failed. If ctx is done
// before the launcher is spawned, the context's cause is returned wrapped.
//
// Run has no timeout of its own. When ctx is done the launcher's process
// tree is terminated and *ExitError wrapping the context's cause is returned.
func (l *Launcher) Run(ctx context.Context, testPath string, np int) error {
	status := NotStarted
	setStatus := func(s Status) {
		logging.Debugf(ctx, "Launch of %s with %d processes: %v -> %v", testPath, np, status, s)
		status = s
	}

	startErr := func(err error) error {
		setStatus(LaunchFailed)
		return &StartError{Launcher: l.Path, Err: err}
	}

	args, err := l.Command(testPath, np)
	if err != nil {
		return startErr(err)
	}
	if ctx.Err() != nil {
		logging.Debugf(ctx, "Launch of %s with %d processes skipped: %v", testPath, np, context.Cause(ctx))
		return errors.Wrap(context.Cause(ctx), "launch not attempted")
	}

	logging.Infof(ctx, "Launching: %s", shutil.EscapeSlice(args))
	warnOversubscribed(ctx, np)

	cmd := exec.Command(args[0], args[1:]...)
	cmd.Stdout = l.Stdout
	cmd.Stderr = l.Stderr
	cmd.Env = append(os.Environ(), l.Env...)
	// Keeps ranks from launching again even if the flag is lost on the way.
	cmd.Env = append(cmd.Env, IsolatedEnv+"=1")
	// Own process group, so the whole tree can be signaled at once.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	// Ranks that left the process group may hold the output pipes open
	// after the launcher is gone.
	cmd.WaitDelay = l.killGrace()

	clk := l.clock()
	start := clk.Now()
	if err := cmd.Start(); err != nil {
		return startErr(err)
	}
	setStatus(Launching)

	exited := make(chan struct{})
	watcherDone := make(chan struct{})
	terminated := false
	go func() {
		defer close(watcherDone)
		select {
		case <-exited:
		case <-ctx.Done():
			select {
			case <-exited:
				return
			default:
			}
			terminated = true
			terminate(ctx, clk, cmd.Process.Pid, l.killGrace(), exited)
		}
	}()

	err = cmd.Wait()
	close(exited)
	<-watcherDone

	elapsed := clk.Since(start)
	if err == nil && !terminated {
		setStatus(Succeeded)
		logging.Infof(ctx, "Launcher exited successfully in %v", elapsed.Round(time.Millisecond))
		return nil
	}

	setStatus(LauncherReportedFailure)
	xe := &ExitError{Code: -1, Err: err}
	if st := cmd.ProcessState; st != nil {
		xe.Code = st.ExitCode()
		xe.State = st.String()
	}
	if terminated {
		xe.Err = context.Cause(ctx)
	}
	logging.Infof(ctx, "Launcher failed in %v: %v", elapsed.Round(time.Millisecond), xe)
	return xe
}
