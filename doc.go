// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package mpitest runs Go test bodies under a parallel process launcher such
// as mpiexec, at several process counts, from a single declaration.
//
// A test declares the process counts it wants and the body to run:
//
//	func TestAllreduce(t *testing.T) {
//		mpitest.RunNP(t, "np = [2, 4]", func(t *testing.T, s *mpitest.State) {
//			// Runs in every rank; s.Rank() and s.Size() identify this one.
//		})
//	}
//
// This registers the subtests TestAllreduce/mpi_np_2 and
// TestAllreduce/mpi_np_4. Each of them re-executes the test binary through
// the launcher, e.g.
//
//	mpiexec -n 2 pkg.test -test.run '^TestAllreduce$/^mpi_np_2$' -mpitest.isolated ...
//
// and passes iff the launcher exits with status 0. Inside the launched
// processes the -mpitest.isolated flag makes the same subtest run the body
// directly instead of launching again.
//
// Parameter cases (Test.Params, Cartesian) add a level of subtests between
// the base test and the process-count units. Expected failures
// (Test.ExpectFailure) invert the verdict of the whole distributed run.
//
// The launcher is configured by an mpitest.yaml file or MPITEST_*
// environment variables; see internal/config.
package mpitest
