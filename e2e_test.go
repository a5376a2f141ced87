// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package mpitest_test

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"mpitest"
	"mpitest/testutil"
)

// markerDirEnv tells launched bodies where to leave marker files.
const markerDirEnv = "MPITEST_E2E_MARKERS"

// setUp points the launcher configuration at a fake launcher that runs the
// test binary once per rank, and returns a directory for marker files.
// It must not be called inside a launch.
func setUp(t *testing.T) string {
	t.Helper()
	dir := testutil.TempDir(t)
	t.Setenv("MPITEST_CONFIG", "")
	t.Setenv("MPITEST_LAUNCHER", testutil.WriteScript(t, dir, "fake-mpiexec", testutil.FakeLauncher))
	t.Setenv("MPITEST_COUNT_FLAG", "-n")
	t.Setenv("MPITEST_LAUNCHER_ARGS", "")
	t.Setenv("MPITEST_TEST_ARGS", "")
	t.Setenv("MPITEST_SKIP_IF_NO_LAUNCHER", "")

	markers := filepath.Join(dir, "markers")
	if err := os.Mkdir(markers, 0755); err != nil {
		t.Fatal(err)
	}
	t.Setenv(markerDirEnv, markers)
	return markers
}

// mark records that the body ran in the current rank.
func mark(t *testing.T, s *mpitest.State, tag string) {
	name := fmt.Sprintf("%s_np%d_rank%d", tag, s.NP(), s.Rank())
	if err := os.WriteFile(filepath.Join(os.Getenv(markerDirEnv), name), nil, 0644); err != nil {
		t.Fatal(err)
	}
}

func readMarkers(t *testing.T, dir string) []string {
	t.Helper()
	fis, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, fi := range fis {
		names = append(names, fi.Name())
	}
	sort.Strings(names)
	return names
}

func checkRank(t *testing.T, s *mpitest.State) {
	if s.Size() != s.NP() {
		t.Errorf("Size() = %d; want %d", s.Size(), s.NP())
	}
	if r := s.Rank(); r < 0 || r >= s.NP() {
		t.Errorf("Rank() = %d; want [0, %d)", r, s.NP())
	}
}

// Two counts, both launches succeed.
func TestScenarioPass(t *testing.T) {
	var markers string
	if !mpitest.Isolated() {
		markers = setUp(t)
	}

	mpitest.RunNP(t, "np = [2, 4]", func(t *testing.T, s *mpitest.State) {
		checkRank(t, s)
		s.Logf("hello")
		mark(t, s, "pass")
	})

	if mpitest.Isolated() {
		return
	}
	want := []string{
		"pass_np2_rank0", "pass_np2_rank1",
		"pass_np4_rank0", "pass_np4_rank1", "pass_np4_rank2", "pass_np4_rank3",
	}
	if diff := cmp.Diff(readMarkers(t, markers), want); diff != "" {
		t.Errorf("Bodies ran in unexpected ranks (-got +want):\n%s", diff)
	}
}

// Every rank fails an assertion; the failure is declared as expected.
func TestScenarioExpectedFailure(t *testing.T) {
	if !mpitest.Isolated() {
		setUp(t)
	}

	mpitest.Run(t, &mpitest.Test{
		NP: "np = [2, 4]",
		Func: func(t *testing.T, s *mpitest.State) {
			t.Fatalf("sum mismatch in rank %d", s.Rank())
		},
		ExpectFailure:  true,
		FailureMessage: "sum mismatch",
	})
}

// Three parameter cases crossed with two counts make six units.
func TestScenarioParams(t *testing.T) {
	var markers string
	if !mpitest.Isolated() {
		markers = setUp(t)
	}

	mpitest.Run(t, &mpitest.Test{
		NP:     "np(2, 3)",
		Params: []mpitest.Param{{Val: 1}, {Val: 2}, {Val: 3}},
		Func: func(t *testing.T, s *mpitest.State) {
			checkRank(t, s)
			if s.Rank() == 0 {
				mark(t, s, fmt.Sprintf("case%v", s.Param()))
			}
		},
	})

	if mpitest.Isolated() {
		return
	}
	want := []string{
		"case1_np2_rank0", "case1_np3_rank0",
		"case2_np2_rank0", "case2_np3_rank0",
		"case3_np2_rank0", "case3_np3_rank0",
	}
	if diff := cmp.Diff(readMarkers(t, markers), want); diff != "" {
		t.Errorf("Units ran unexpectedly (-got +want):\n%s", diff)
	}
}

// The launcher is missing. The start failure is surfaced as a failure of
// the unit, which is declared as expected here so that the suite passes.
func TestScenarioMissingLauncher(t *testing.T) {
	if !mpitest.Isolated() {
		setUp(t)
		t.Setenv("MPITEST_LAUNCHER", filepath.Join(testutil.TempDir(t), "no-such-mpiexec"))
	}

	mpitest.Run(t, &mpitest.Test{
		NP: "np = [2, 4]",
		Func: func(t *testing.T, s *mpitest.State) {
			t.Error("Body ran without a launcher")
		},
		ExpectFailure:  true,
		FailureMessage: "failed to start launcher",
	})
}

func TestSkipIfNoLauncher(t *testing.T) {
	if !mpitest.Isolated() {
		setUp(t)
		t.Setenv("MPITEST_LAUNCHER", "no-such-mpiexec-on-path")
		t.Setenv("MPITEST_SKIP_IF_NO_LAUNCHER", "true")
	}

	mpitest.RunNP(t, "np = 2", func(t *testing.T, s *mpitest.State) {
		t.Error("Body ran without a launcher")
	})
}

func TestCartesianCases(t *testing.T) {
	var markers string
	if !mpitest.Isolated() {
		markers = setUp(t)
	}

	mpitest.Run(t, &mpitest.Test{
		NP:     "np = 1",
		Params: mpitest.Cartesian(mpitest.Values("op", "sum", "max"), mpitest.Values("n", 8)),
		Func: func(t *testing.T, s *mpitest.State) {
			vals := s.Param().([]interface{})
			mark(t, s, fmt.Sprintf("%v-%v", vals[0], vals[1]))
		},
	})

	if mpitest.Isolated() {
		return
	}
	want := []string{"max-8_np1_rank0", "sum-8_np1_rank0"}
	if diff := cmp.Diff(readMarkers(t, markers), want); diff != "" {
		t.Errorf("Units ran unexpectedly (-got +want):\n%s", diff)
	}
}

// duplicateEnv makes TestDuplicateDeclaration declare the same unit twice.
const duplicateEnv = "MPITEST_E2E_DUPLICATE"

// Declaring the same count twice in one test makes the testing package rename
// the second unit. It must fail instead of launching the first body again.
func TestDuplicateDeclaration(t *testing.T) {
	if os.Getenv(duplicateEnv) != "" {
		mpitest.RunNP(t, "np = 2", func(t *testing.T, s *mpitest.State) {
			mark(t, s, "first")
		})
		mpitest.RunNP(t, "np = 2", func(t *testing.T, s *mpitest.State) {
			mark(t, s, "second")
		})
		return
	}
	if mpitest.Isolated() {
		return
	}

	markers := setUp(t)
	t.Setenv(duplicateEnv, "1")

	exe, err := os.Executable()
	if err != nil {
		t.Fatal(err)
	}
	out, err := exec.Command(exe, "-test.run", "^"+t.Name()+"$", "-test.v", "-test.count=1").CombinedOutput()
	if err == nil {
		t.Fatalf("Duplicate declaration passed; output:\n%s", out)
	}
	for _, want := range []string{"mpitest: subtest was registered as " + t.Name() + "/mpi_np_2#01", "duplicate names would be registered: mpi_np_2"} {
		if !strings.Contains(string(out), want) {
			t.Errorf("Output does not contain %q; got:\n%s", want, out)
		}
	}

	want := []string{"first_np2_rank0", "first_np2_rank1"}
	if diff := cmp.Diff(readMarkers(t, markers), want); diff != "" {
		t.Errorf("Bodies ran unexpectedly (-got +want):\n%s", diff)
	}
}
