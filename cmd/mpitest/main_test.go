// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package main

import (
	"context"
	"flag"
	"testing"

	"github.com/google/subcommands"
)

// executeCmd parses args into cmd's flags and executes it.
func executeCmd(ctx context.Context, t *testing.T, cmd subcommands.Command, args []string) subcommands.ExitStatus {
	t.Helper()
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	cmd.SetFlags(flags)
	if err := flags.Parse(args); err != nil {
		t.Fatal(err)
	}
	return cmd.Execute(ctx, flags)
}

// clearEnv makes configuration come from defaults only.
func clearEnv(t *testing.T) {
	for _, name := range []string{
		"MPITEST_CONFIG",
		"MPITEST_LAUNCHER",
		"MPITEST_COUNT_FLAG",
		"MPITEST_LAUNCHER_ARGS",
		"MPITEST_TEST_ARGS",
		"MPITEST_SKIP_IF_NO_LAUNCHER",
		"MPITEST_KILL_GRACE",
	} {
		t.Setenv(name, "")
	}
}
