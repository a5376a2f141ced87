// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os/exec"

	"github.com/google/subcommands"
	"github.com/shirou/gopsutil/v3/cpu"
	"gopkg.in/yaml.v2"

	"mpitest/internal/config"
	"mpitest/internal/logging"
)

// doctorCmd implements subcommands.Command to report the environment
// launches would run in.
type doctorCmd struct {
	stdout io.Writer
}

var _ = subcommands.Command(&doctorCmd{})

func newDoctorCmd(stdout io.Writer) *doctorCmd {
	return &doctorCmd{stdout: stdout}
}

func (*doctorCmd) Name() string     { return "doctor" }
func (*doctorCmd) Synopsis() string { return "check the launcher setup" }
func (*doctorCmd) Usage() string {
	return `Usage: doctor

Description:
    Print the effective configuration, whether the launcher can be found and
    how many CPUs are available to ranks.
`
}

func (*doctorCmd) SetFlags(f *flag.FlagSet) {}

// cpuCounts is replaced in unit tests.
var cpuCounts = cpu.Counts

func (dc *doctorCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, err := config.FromEnvironment()
	if err != nil {
		logging.Info(ctx, "Failed to load configuration: ", err)
		return subcommands.ExitFailure
	}

	b, err := yaml.Marshal(cfg)
	if err != nil {
		logging.Info(ctx, "Failed to marshal configuration: ", err)
		return subcommands.ExitFailure
	}
	fmt.Fprintf(dc.stdout, "# effective configuration\n%s\n", b)

	status := subcommands.ExitSuccess
	if p, err := exec.LookPath(cfg.Launcher); err != nil {
		fmt.Fprintf(dc.stdout, "launcher: NOT FOUND (%v)\n", err)
		status = subcommands.ExitFailure
	} else {
		fmt.Fprintf(dc.stdout, "launcher: %s\n", p)
	}

	for _, c := range []struct {
		name    string
		logical bool
	}{
		{"logical", true},
		{"physical", false},
	} {
		if n, err := cpuCounts(c.logical); err != nil {
			fmt.Fprintf(dc.stdout, "%s cpus: unknown (%v)\n", c.name, err)
		} else {
			fmt.Fprintf(dc.stdout, "%s cpus: %d\n", c.name, n)
		}
	}
	return status
}
