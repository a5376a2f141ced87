// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package check finds mistakes in mpitest declarations by inspecting Go
// source, so that they are reported without building or running tests.
package check

import (
	"fmt"
	"go/token"
	"sort"
)

// Issue is a problem found in a source file.
type Issue struct {
	Pos     token.Position
	Msg     string
	Fixable bool
}

func (i *Issue) String() string {
	return fmt.Sprintf("%s: %s", i.Pos, i.Msg)
}

// SortIssues sorts issues by file position.
func SortIssues(issues []*Issue) {
	sort.SliceStable(issues, func(i, j int) bool {
		pi, pj := issues[i].Pos, issues[j].Pos
		if pi.Filename != pj.Filename {
			return pi.Filename < pj.Filename
		}
		if pi.Line != pj.Line {
			return pi.Line < pj.Line
		}
		return pi.Column < pj.Column
	})
}
