// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"path"

	"github.com/google/subcommands"
	"golang.org/x/sync/errgroup"

	"mpitest/internal/config"
	"mpitest/internal/decl"
	"mpitest/internal/expand"
	"mpitest/internal/launch"
	"mpitest/internal/logging"
)

// launchCmd implements subcommands.Command to launch units of a compiled
// test binary directly.
type launchCmd struct {
	np       string    // process count declaration
	parallel int       // max concurrent launches
	launcher string    // overrides the configured launcher
	stdout   io.Writer // where to write the summary
}

var _ = subcommands.Command(&launchCmd{})

func newLaunchCmd(stdout io.Writer) *launchCmd {
	return &launchCmd{stdout: stdout}
}

func (*launchCmd) Name() string     { return "launch" }
func (*launchCmd) Synopsis() string { return "launch test units of a compiled test binary" }
func (*launchCmd) Usage() string {
	return `Usage: launch [flag]... <test-binary> <test-path>

Description:
    Run the units of a test declared with mpitest, one launch per process
    count, against a test binary built with "go test -c". test-path is the
    base test, e.g. TestSum or TestSum/case_1.

    $ go test -c -o sum.test ./sum
    $ mpitest launch -np 'np = [2, 4]' ./sum.test TestSum

Flag:
`
}

func (lc *launchCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&lc.np, "np", "np = 1", "process count declaration")
	f.IntVar(&lc.parallel, "parallel", 1, "maximum number of concurrent launches")
	f.StringVar(&lc.launcher, "launcher", "", "launcher executable; overrides configuration")
}

// launchResult is the outcome of one unit.
type launchResult struct {
	unit *expand.Unit
	err  error
}

func (lc *launchCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 2 {
		logging.Info(ctx, "Need a test binary and a test path.\n\n"+lc.Usage())
		return subcommands.ExitUsageError
	}
	if lc.parallel < 1 {
		logging.Info(ctx, "-parallel must be positive")
		return subcommands.ExitUsageError
	}
	binary, testPath := f.Arg(0), f.Arg(1)

	cfg, err := config.FromEnvironment()
	if err != nil {
		logging.Info(ctx, "Failed to load configuration: ", err)
		return subcommands.ExitFailure
	}
	if lc.launcher != "" {
		cfg.Launcher = lc.launcher
	}

	nps, err := decl.Parse(lc.np)
	if err != nil {
		logging.Info(ctx, err)
		return subcommands.ExitUsageError
	}
	units, err := expand.Generate(&expand.Identity{Name: path.Base(testPath), Path: testPath}, nps)
	if err != nil {
		logging.Info(ctx, err)
		return subcommands.ExitUsageError
	}

	results := lc.run(ctx, cfg, binary, units)

	status := subcommands.ExitSuccess
	for _, r := range results {
		msg := launch.StatusOf(r.err).String()
		if r.err != nil {
			msg = fmt.Sprintf("%s: %v", msg, r.err)
			status = subcommands.ExitFailure
		}
		fmt.Fprintf(lc.stdout, "%s\t%s\n", r.unit.Path(), msg)
	}
	return status
}

// run launches every unit, at most lc.parallel at a time, and returns the
// results in unit order.
func (lc *launchCmd) run(ctx context.Context, cfg *config.Config, binary string, units []*expand.Unit) []*launchResult {
	results := make([]*launchResult, len(units))

	var g errgroup.Group
	g.SetLimit(lc.parallel)
	for i, u := range units {
		i, u := i, u
		g.Go(func() error {
			uctx := logging.SetLogPrefix(ctx, fmt.Sprintf("[np=%d] ", u.NP))
			out := logging.NewWriter(uctx, logging.LevelInfo)
			defer out.Close()

			l := cfg.NewLauncher()
			l.Self = binary
			l.Stdout = out
			l.Stderr = out
			results[i] = &launchResult{unit: u, err: l.Run(uctx, u.Path(), u.NP)}
			return nil
		})
	}
	g.Wait()
	return results
}
