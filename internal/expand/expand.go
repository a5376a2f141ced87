// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package expand turns a declared test into the units that are registered
// with the testing package.
//
// A base test identity crossed with a process-count set yields one Unit per
// count. Parameter cases are expanded first, each case becoming an identity
// of its own, so that a test with m cases and k counts yields k*m units.
// Expansion is pure: it never runs anything.
package expand

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/exp/slices"

	"mpitest/errors"
	"mpitest/internal/decl"
)

// unitPrefix is prepended to the process count to form a unit name.
const unitPrefix = "mpi_np_"

// nameRE matches case names that the testing package keeps as they are.
var nameRE = regexp.MustCompile(`^[A-Za-z0-9_.=-]+$`)

// Policy is the expected outcome of a base test. The zero value expects the
// distributed run to succeed.
type Policy struct {
	// ExpectFailure is true if the whole distributed run is expected to fail.
	ExpectFailure bool
	// Message, if non-empty, must appear in the output of a failing run.
	Message string
}

// String describes the policy for logs.
func (p Policy) String() string {
	switch {
	case !p.ExpectFailure:
		return "normal"
	case p.Message == "":
		return "expected failure"
	default:
		return fmt.Sprintf("expected failure with %q", p.Message)
	}
}

// Identity identifies one invocable test body.
type Identity struct {
	// Name is the base name, unique within its enclosing scope.
	Name string
	// Path is the slash-delimited testing name that selects exactly this body
	// when the test binary is re-executed, e.g. "TestSum/case_1".
	Path string
	// Policy is inherited by every unit generated from the identity.
	Policy Policy
}

// Unit is one registered test entry: a body run under NP processes.
type Unit struct {
	// Name is the unit name within Identity.Path, e.g. "mpi_np_4".
	Name string
	// NP is the number of processes to launch.
	NP int
	// Identity is shared by all units generated from the same body.
	Identity *Identity
}

// Path returns the full testing name of the unit.
func (u *Unit) Path() string {
	return u.Identity.Path + "/" + u.Name
}

// Param is one parameter case of a base test.
type Param struct {
	// Name is the case name. An empty name is replaced by "case_<i>".
	Name string
	// Val is made available to the test body.
	Val interface{}
}

// CollisionError is returned when expansion would register two entries with
// the same name in one scope.
type CollisionError struct {
	Scope string   // path of the enclosing scope
	Names []string // colliding names, sorted
}

func (e *CollisionError) Error() string {
	return fmt.Sprintf("%s: duplicate names would be registered: %s", e.Scope, strings.Join(e.Names, ", "))
}

// UnitName returns the name of the unit running with np processes.
func UnitName(np int) string {
	return unitPrefix + strconv.Itoa(np)
}

// Generate returns one unit per count in nps, in declaration order.
// Repeated counts are rejected with *CollisionError.
func Generate(id *Identity, nps decl.ProcessCountSet) ([]*Unit, error) {
	if err := id.validate(); err != nil {
		return nil, err
	}
	if len(nps) == 0 {
		return nil, &decl.ConfigError{Decl: nps.String(), Reason: "requires np values"}
	}

	units := make([]*Unit, 0, len(nps))
	names := make([]string, 0, len(nps))
	for _, np := range nps {
		u := &Unit{Name: UnitName(np), NP: np, Identity: id}
		units = append(units, u)
		names = append(names, u.Name)
	}
	if dups := duplicates(names); len(dups) > 0 {
		return nil, &CollisionError{Scope: id.Path, Names: dups}
	}
	return units, nil
}

// Cases returns one identity per parameter case, in order. Each case is
// scoped under base.Path and inherits base.Policy.
func Cases(base *Identity, params []Param) ([]*Identity, error) {
	if err := base.validate(); err != nil {
		return nil, err
	}

	ids := make([]*Identity, 0, len(params))
	names := make([]string, 0, len(params))
	for i, p := range params {
		name := p.Name
		if name == "" {
			name = fmt.Sprintf("case_%d", i+1)
		}
		if !nameRE.MatchString(name) {
			return nil, errors.Errorf("%s: invalid case name %q (must match %s)", base.Path, name, nameRE)
		}
		ids = append(ids, &Identity{
			Name:   name,
			Path:   base.Path + "/" + name,
			Policy: base.Policy,
		})
		names = append(names, name)
	}
	if dups := duplicates(names); len(dups) > 0 {
		return nil, &CollisionError{Scope: base.Path, Names: dups}
	}
	return ids, nil
}

// Matrix generates units for every identity, one per (identity, count) pair.
func Matrix(ids []*Identity, nps decl.ProcessCountSet) ([]*Unit, error) {
	var all []*Unit
	for _, id := range ids {
		units, err := Generate(id, nps)
		if err != nil {
			return nil, err
		}
		all = append(all, units...)
	}
	return all, nil
}

func (id *Identity) validate() error {
	if id == nil {
		return errors.New("nil test identity")
	}
	if id.Name == "" {
		return errors.Errorf("test identity at %q has no name", id.Path)
	}
	if id.Path == "" {
		return errors.Errorf("test identity %q has no path", id.Name)
	}
	if !id.Policy.ExpectFailure && id.Policy.Message != "" {
		return errors.Errorf("%s: failure message %q given without expecting failure", id.Path, id.Policy.Message)
	}
	return nil
}

// duplicates returns the names occurring more than once, sorted.
func duplicates(names []string) []string {
	seen := make(map[string]int, len(names))
	var dups []string
	for _, n := range names {
		seen[n]++
		if seen[n] == 2 {
			dups = append(dups, n)
		}
	}
	slices.Sort(dups)
	return dups
}
