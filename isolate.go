// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package mpitest

import (
	"flag"
	"os"

	"mpitest/internal/launch"
)

var (
	isolatedFlag = flag.Bool(launch.IsolatedFlag, false, "run mpitest bodies directly; set by the launcher, not by users")
	npFlag       = flag.Int(launch.NPFlag, 0, "process count of the launched unit; set by the launcher")
)

// Isolated returns true if the current process was started by a launcher to
// run a single test body, rather than to orchestrate launches.
func Isolated() bool {
	return *isolatedFlag || os.Getenv(launch.IsolatedEnv) == "1"
}
