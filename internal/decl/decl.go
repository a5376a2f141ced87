// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package decl parses process-count declarations.
//
// A declaration names the process counts a test body should be launched
// with. Two surface forms are accepted, each with a single-integer variant:
//
//	np = [2, 4]    np = 2
//	np(2, 4)       np(2)
//
// Both forms are a small step away from Go syntax, so the declaration is
// rewritten into a Go expression (a composite literal or a call) and handed
// to go/parser; the resulting tree is then checked node by node.
package decl

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"go/types"
	"strconv"
	"strings"
)

// key is the only declaration key understood.
const key = "np"

// ProcessCountSet is an ordered, non-empty list of positive process counts.
// Duplicates are allowed here; the generator rejects them.
type ProcessCountSet []int

// String renders the set in the named array form.
func (s ProcessCountSet) String() string {
	parts := make([]string, len(s))
	for i, n := range s {
		parts[i] = strconv.Itoa(n)
	}
	return fmt.Sprintf("%s = [%s]", key, strings.Join(parts, ", "))
}

// SyntaxError is returned for declarations that are not in one of the
// accepted forms, including elements that are not integer literals.
type SyntaxError struct {
	Decl      string // declaration as given
	Construct string // offending construct, if one can be named
	Reason    string
}

func (e *SyntaxError) Error() string {
	if e.Construct != "" {
		return fmt.Sprintf("invalid np declaration %q: %s: %s", e.Decl, e.Reason, e.Construct)
	}
	return fmt.Sprintf("invalid np declaration %q: %s", e.Decl, e.Reason)
}

// ConfigError is returned for syntactically valid declarations that do not
// describe a usable set of process counts.
type ConfigError struct {
	Decl   string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("bad np declaration %q: %s", e.Decl, e.Reason)
}

// Parse parses a declaration into a ProcessCountSet.
func Parse(s string) (ProcessCountSet, error) {
	src := strings.TrimSpace(s)
	if src == "" {
		return nil, &SyntaxError{Decl: s, Reason: "empty declaration"}
	}

	var elems []ast.Expr
	if i := strings.IndexByte(src, '='); i >= 0 {
		var err error
		if elems, err = parseNamed(s, strings.TrimSpace(src[:i]), strings.TrimSpace(src[i+1:])); err != nil {
			return nil, err
		}
	} else {
		var err error
		if elems, err = parsePositional(s, src); err != nil {
			return nil, err
		}
	}

	set := make(ProcessCountSet, 0, len(elems))
	for _, e := range elems {
		n, err := intValue(s, e)
		if err != nil {
			return nil, err
		}
		set = append(set, n)
	}
	return validate(s, set)
}

// MustParse is like Parse but panics on error. It is meant for package-level
// declarations in tests.
func MustParse(s string) ProcessCountSet {
	set, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return set
}

func validate(d string, set ProcessCountSet) (ProcessCountSet, error) {
	if len(set) == 0 {
		return nil, &ConfigError{Decl: d, Reason: "requires np values"}
	}
	for _, n := range set {
		if n <= 0 {
			return nil, &ConfigError{Decl: d, Reason: fmt.Sprintf("process count %d is not positive", n)}
		}
	}
	return set, nil
}

// parseNamed handles "np = [a, b]" and "np = a".
func parseNamed(d, lhs, rhs string) ([]ast.Expr, error) {
	if lhs != key {
		return nil, &SyntaxError{Decl: d, Construct: lhs, Reason: "unknown key"}
	}
	if rhs == "" {
		return nil, &SyntaxError{Decl: d, Reason: "missing value after ="}
	}
	if !strings.HasPrefix(rhs, "[") {
		e, err := parser.ParseExpr(rhs)
		if err != nil {
			return nil, &SyntaxError{Decl: d, Construct: rhs, Reason: "np must be an array like [2, 4] or a single integer"}
		}
		return []ast.Expr{e}, nil
	}
	if !strings.HasSuffix(rhs, "]") {
		return nil, &SyntaxError{Decl: d, Construct: rhs, Reason: "unterminated array"}
	}
	e, err := parser.ParseExpr("[]int{" + rhs[1:len(rhs)-1] + "}")
	if err != nil {
		return nil, &SyntaxError{Decl: d, Construct: rhs, Reason: "malformed array"}
	}
	lit, ok := e.(*ast.CompositeLit)
	if !ok {
		return nil, &SyntaxError{Decl: d, Construct: rhs, Reason: "malformed array"}
	}
	return lit.Elts, nil
}

// parsePositional handles "np(a, b)".
func parsePositional(d, src string) ([]ast.Expr, error) {
	e, err := parser.ParseExpr(src)
	if err != nil {
		return nil, &SyntaxError{Decl: d, Reason: "expected np = [...] or np(...)"}
	}
	call, ok := e.(*ast.CallExpr)
	if !ok {
		return nil, &SyntaxError{Decl: d, Construct: types.ExprString(e), Reason: "expected np = [...] or np(...)"}
	}
	if id, ok := call.Fun.(*ast.Ident); !ok || id.Name != key {
		return nil, &SyntaxError{Decl: d, Construct: types.ExprString(call.Fun), Reason: "unknown key"}
	}
	if call.Ellipsis.IsValid() {
		return nil, &SyntaxError{Decl: d, Construct: "...", Reason: "variadic arguments are not allowed"}
	}
	return call.Args, nil
}

// intValue converts an integer literal, optionally negated, to int.
func intValue(d string, e ast.Expr) (int, error) {
	neg := false
	if u, ok := e.(*ast.UnaryExpr); ok && u.Op == token.SUB {
		neg = true
		e = u.X
	}
	lit, ok := e.(*ast.BasicLit)
	if !ok || lit.Kind != token.INT {
		return 0, &SyntaxError{Decl: d, Construct: types.ExprString(e), Reason: "not an integer literal"}
	}
	v, err := strconv.ParseInt(lit.Value, 0, 32)
	if err != nil {
		return 0, &ConfigError{Decl: d, Reason: fmt.Sprintf("process count %s is out of range", lit.Value)}
	}
	if neg {
		v = -v
	}
	return int(v), nil
}
