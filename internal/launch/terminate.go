// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package launch

import (
	"context"
	"time"

	"code.cloudfoundry.org/clock"
	"github.com/shirou/gopsutil/v3/process"
	"golang.org/x/sys/unix"

	"mpitest/internal/logging"
)

// descendants returns the PIDs of all descendants of pid. Launchers may
// move ranks into process groups of their own, so the group alone is not
// enough to find them.
func descendants(pid int) []int {
	var pids []int
	queue := []int32{int32(pid)}
	seen := map[int32]bool{int32(pid): true}
	for len(queue) > 0 {
		p, err := process.NewProcess(queue[0])
		queue = queue[1:]
		if err != nil {
			continue
		}
		children, err := p.Children()
		if err != nil {
			continue
		}
		for _, c := range children {
			if seen[c.Pid] {
				continue
			}
			seen[c.Pid] = true
			pids = append(pids, int(c.Pid))
			queue = append(queue, c.Pid)
		}
	}
	return pids
}

// signalTree sends sig to the process group led by pgid and to every
// process in pids. Errors are ignored since processes may exit at any time.
func signalTree(pgid int, pids []int, sig unix.Signal) {
	unix.Kill(-pgid, sig)
	for _, pid := range pids {
		unix.Kill(pid, sig)
	}
}

// terminate stops the process tree rooted at the launcher pgid. It sends
// SIGTERM, then SIGKILL after grace unless exited is closed first.
func terminate(ctx context.Context, clk clock.Clock, pgid int, grace time.Duration, exited <-chan struct{}) {
	logging.Infof(ctx, "Terminating launcher process tree (pgid %d)", pgid)
	signalTree(pgid, descendants(pgid), unix.SIGTERM)

	tm := clk.NewTimer(grace)
	defer tm.Stop()
	select {
	case <-exited:
		// The launcher is gone, but ranks it left behind may linger in the
		// group, so fall through and kill them regardless.
	case <-tm.C():
		logging.Infof(ctx, "Launcher still alive after %v; sending SIGKILL", grace)
	}
	signalTree(pgid, descendants(pgid), unix.SIGKILL)
}
