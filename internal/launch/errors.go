// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package launch

import (
	"fmt"

	"mpitest/errors"
)

// Status is the lifecycle state of a single launch.
type Status int

const (
	// NotStarted means the launcher has not been spawned yet.
	NotStarted Status = iota
	// Launching means the launcher is running and being waited on.
	Launching
	// Succeeded means the launcher exited with status 0.
	Succeeded
	// LaunchFailed means the launcher could not be spawned.
	LaunchFailed
	// LauncherReportedFailure means the launcher ran and exited abnormally.
	LauncherReportedFailure
)

func (s Status) String() string {
	switch s {
	case NotStarted:
		return "not started"
	case Launching:
		return "launching"
	case Succeeded:
		return "succeeded"
	case LaunchFailed:
		return "launch failed"
	case LauncherReportedFailure:
		return "launcher reported failure"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Terminal returns true if s is a final state.
func (s Status) Terminal() bool {
	return s == Succeeded || s == LaunchFailed || s == LauncherReportedFailure
}

// StatusOf classifies the result of Launcher.Run. Errors that are neither
// *StartError nor *ExitError mean the launcher was never spawned, e.g.
// because the context was already done, and map to NotStarted.
func StatusOf(err error) Status {
	if err == nil {
		return Succeeded
	}
	var xe *ExitError
	if errors.As(err, &xe) {
		return LauncherReportedFailure
	}
	var se *StartError
	if errors.As(err, &se) {
		return LaunchFailed
	}
	return NotStarted
}

// StartError is returned when the launcher process could not be spawned,
// e.g. because it is not installed.
type StartError struct {
	Launcher string
	Err      error
}

func (e *StartError) Error() string {
	return fmt.Sprintf("failed to start launcher %q: %v", e.Launcher, e.Err)
}

func (e *StartError) Unwrap() error { return e.Err }

// ExitError is returned when the launcher ran but did not exit cleanly. It
// covers non-zero exit codes, deaths by signal and termination on context
// cancellation.
type ExitError struct {
	// Code is the exit code, or -1 if the launcher was killed by a signal.
	Code int
	// State is the raw process state, e.g. "exit status 1" or "signal: killed".
	State string
	// Err is the underlying error. It is the context's cause if the launcher
	// was terminated because the context was done.
	Err error
}

func (e *ExitError) Error() string {
	if e.State == "" {
		return fmt.Sprintf("launcher failed: %v", e.Err)
	}
	return fmt.Sprintf("launcher failed (%s): %v", e.State, e.Err)
}

func (e *ExitError) Unwrap() error { return e.Err }
