// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package testutil provides support code for unit tests.
package testutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// TempDir creates a temporary directory prefixed by "mpitest_unittest_[TestName]." and returns its path.
// The directory is removed when t finishes.
func TempDir(t testing.TB) string {
	t.Helper()
	// Subtests have slashes in their name.
	name := strings.ReplaceAll(t.Name(), "/", "_")
	td, err := os.MkdirTemp("", "mpitest_unittest_"+name+".")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(td) })
	return td
}

// WriteFiles creates and writes files (keys are relative filenames,
// values are contents) within dir.
func WriteFiles(dir string, files map[string]string) error {
	for fn, c := range files {
		p := filepath.Join(dir, fn)
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			return err
		}
		if err := os.WriteFile(p, []byte(c), 0644); err != nil {
			return err
		}
	}
	return nil
}

// WriteScript writes an executable shell script named name into dir and
// returns its path. body is placed after a "#!/bin/sh" line.
func WriteScript(t testing.TB, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte("#!/bin/sh\n"+body), 0755); err != nil {
		t.Fatal(err)
	}
	return p
}

// FakeLauncher is a launcher script that imitates "mpiexec -n N prog args...":
// it runs prog N times in sequence with the rank and size environment
// variables OpenMPI would set, and exits with the first non-zero status.
// Flags before -n are ignored.
const FakeLauncher = `while [ "$1" != "-n" ]; do
  if [ $# -eq 0 ]; then echo "fake launcher: missing -n" >&2; exit 90; fi
  shift
done
n=$2
shift 2
i=0
while [ $i -lt $n ]; do
  OMPI_COMM_WORLD_RANK=$i OMPI_COMM_WORLD_SIZE=$n "$@" || exit $?
  i=$((i+1))
done
`
