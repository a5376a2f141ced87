// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/google/subcommands"

	"mpitest/internal/decl"
	"mpitest/internal/expand"
	"mpitest/internal/launch"
	"mpitest/internal/logging"
)

// expandCmd implements subcommands.Command to show the units a declaration
// expands to.
type expandCmd struct {
	json   bool      // print units as JSON
	name   string    // base test name
	cases  string    // comma-separated case names
	stdout io.Writer // where to write units
}

var _ = subcommands.Command(&expandCmd{})

func newExpandCmd(stdout io.Writer) *expandCmd {
	return &expandCmd{stdout: stdout}
}

func (*expandCmd) Name() string     { return "expand" }
func (*expandCmd) Synopsis() string { return "show the units a declaration expands to" }
func (*expandCmd) Usage() string {
	return `Usage: expand [flag]... <declaration>

Description:
    Parse a process count declaration and print the subtests it registers,
    along with the -test.run pattern each of them launches.

    $ mpitest expand -name TestSum -cases small,large 'np = [2, 4]'

Flag:
`
}

func (ec *expandCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&ec.json, "json", false, "print units as JSON")
	f.StringVar(&ec.name, "name", "TestExample", "base test name")
	f.StringVar(&ec.cases, "cases", "", "comma-separated parameter case names; empty entries are numbered")
}

// unitInfo is the printed form of a unit.
type unitInfo struct {
	Path    string `json:"path"`
	NP      int    `json:"np"`
	Pattern string `json:"pattern"`
}

func (ec *expandCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() == 0 {
		logging.Info(ctx, "Missing declaration.\n\n"+ec.Usage())
		return subcommands.ExitUsageError
	}
	units, err := ec.expand(strings.Join(f.Args(), " "))
	if err != nil {
		logging.Info(ctx, "Failed to expand: ", err)
		return subcommands.ExitFailure
	}
	if err := ec.print(units); err != nil {
		logging.Info(ctx, "Failed to write units: ", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func (ec *expandCmd) expand(s string) ([]*expand.Unit, error) {
	nps, err := decl.Parse(s)
	if err != nil {
		return nil, err
	}
	base := &expand.Identity{Name: ec.name, Path: ec.name}
	ids := []*expand.Identity{base}
	if ec.cases != "" {
		var params []expand.Param
		for _, name := range strings.Split(ec.cases, ",") {
			params = append(params, expand.Param{Name: strings.TrimSpace(name)})
		}
		if ids, err = expand.Cases(base, params); err != nil {
			return nil, err
		}
	}
	return expand.Matrix(ids, nps)
}

func (ec *expandCmd) print(units []*expand.Unit) error {
	infos := make([]unitInfo, len(units))
	for i, u := range units {
		infos[i] = unitInfo{Path: u.Path(), NP: u.NP, Pattern: launch.Pattern(u.Path())}
	}

	if ec.json {
		enc := json.NewEncoder(ec.stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(infos)
	}
	for _, info := range infos {
		if _, err := fmt.Fprintf(ec.stdout, "%s\t%s\n", info.Path, info.Pattern); err != nil {
			return err
		}
	}
	return nil
}
