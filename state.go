// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package mpitest

import (
	"fmt"
	"os"
	"strconv"
	"testing"
)

// Environment variables set by common launchers, most specific first.
var (
	rankEnvs = []string{
		"OMPI_COMM_WORLD_RANK", // Open MPI
		"PMI_RANK",             // MPICH, Intel MPI
		"PMIX_RANK",            // PMIx
		"MV2_COMM_WORLD_RANK",  // MVAPICH2
		"SLURM_PROCID",         // srun
	}
	sizeEnvs = []string{
		"OMPI_COMM_WORLD_SIZE",
		"PMI_SIZE",
		"MV2_COMM_WORLD_SIZE",
		"SLURM_NTASKS",
	}
)

// State is passed to a test body running in one process of a launch.
type State struct {
	t     *testing.T
	np    int
	param interface{}
}

// NP returns the process count the unit was declared with.
func (s *State) NP() int { return s.np }

// Param returns the value of the parameter case, or nil for tests without
// parameters. Cases built by Cartesian hold a []interface{} with one value
// per axis.
func (s *State) Param() interface{} { return s.param }

// Rank returns the rank of the current process as reported by the launcher,
// or -1 if the launcher set none of the known variables.
func (s *State) Rank() int { return envInt(rankEnvs) }

// Size returns the number of processes as reported by the launcher, or -1 if
// unknown.
func (s *State) Size() int { return envInt(sizeEnvs) }

// Logf logs a message prefixed with the rank.
func (s *State) Logf(format string, args ...interface{}) {
	s.t.Helper()
	s.t.Logf("[rank %d/%d] %s", s.Rank(), s.np, fmt.Sprintf(format, args...))
}

func envInt(names []string) int {
	for _, name := range names {
		v := os.Getenv(name)
		if v == "" {
			continue
		}
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return -1
}
