// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/subcommands"
	"golang.org/x/sync/errgroup"

	"mpitest/errors"
	"mpitest/internal/check"
	"mpitest/internal/logging"
)

// checkCmd implements subcommands.Command to check declarations in test
// sources without running them.
type checkCmd struct {
	fix    bool
	stdout io.Writer
}

var _ = subcommands.Command(&checkCmd{})

func newCheckCmd(stdout io.Writer) *checkCmd {
	return &checkCmd{stdout: stdout}
}

func (*checkCmd) Name() string     { return "check" }
func (*checkCmd) Synopsis() string { return "check mpitest declarations in test sources" }
func (*checkCmd) Usage() string {
	return `Usage: check [flag]... [path]...

Description:
    Inspect *_test.go files for mpitest.Run and mpitest.RunNP calls and
    report declarations that would fail at run time. Directories are walked
    recursively; the default is the current directory.

Flag:
`
}

func (cc *checkCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&cc.fix, "fix", false, "rewrite fixable declarations in place")
}

func (cc *checkCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	paths := f.Args()
	if len(paths) == 0 {
		paths = []string{"."}
	}
	files, err := testFiles(paths)
	if err != nil {
		logging.Info(ctx, "Failed to list files: ", err)
		return subcommands.ExitFailure
	}

	issues, err := cc.checkFiles(ctx, files)
	if err != nil {
		logging.Info(ctx, "Failed to check files: ", err)
		return subcommands.ExitFailure
	}
	if len(issues) == 0 {
		return subcommands.ExitSuccess
	}

	check.SortIssues(issues)
	for _, i := range issues {
		fmt.Fprintln(cc.stdout, i)
	}
	return subcommands.ExitFailure
}

// checkFiles checks files in parallel and returns all remaining issues.
func (cc *checkCmd) checkFiles(ctx context.Context, files []string) ([]*check.Issue, error) {
	var mu sync.Mutex // guards all
	var all []*check.Issue

	var g errgroup.Group
	for _, path := range files {
		path := path
		g.Go(func() error {
			src, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			issues, fixed, err := check.File(path, src, cc.fix)
			if err != nil {
				return errors.Wrapf(err, "%s", path)
			}
			if fixed != nil {
				if err := os.WriteFile(path, fixed, 0644); err != nil {
					return err
				}
				logging.Infof(ctx, "Fixed %s", path)
			}
			mu.Lock()
			all = append(all, issues...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return all, nil
}

// testFiles expands paths into Go test files. Directories named testdata or
// vendor, or starting with "." or "_", are skipped.
func testFiles(paths []string) ([]string, error) {
	var files []string
	for _, p := range paths {
		fi, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !fi.IsDir() {
			files = append(files, p)
			continue
		}
		if err := filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			name := d.Name()
			if d.IsDir() {
				if path != p && (name == "testdata" || name == "vendor" || strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_")) {
					return filepath.SkipDir
				}
				return nil
			}
			if d.Type().IsRegular() && strings.HasSuffix(name, "_test.go") {
				files = append(files, path)
			}
			return nil
		}); err != nil {
			return nil, err
		}
	}
	return files, nil
}
