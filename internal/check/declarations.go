// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package check

import (
	"bytes"
	"fmt"
	"go/ast"
	"go/format"
	"go/parser"
	"go/token"
	"path"
	"strconv"
	"strings"

	"golang.org/x/tools/go/ast/astutil"

	"mpitest/internal/decl"
)

// ImportPath is the import path of the package whose calls are checked.
const ImportPath = "mpitest"

// Exposed here for unit tests.
const (
	nonLiteralNPMsg     = `NP should be a string literal so that it can be checked`
	badNPMsg            = `bad process count declaration: %v`
	repeatedNPMsg       = `process counts are repeated; use %q`
	strayFailureMsgMsg  = `FailureMessage has no effect without ExpectFailure: true`
	repeatedParamMsg    = `parameter case name %q is used more than once`
	nonLiteralParamsMsg = `Params should be a slice literal of Param struct literals so that it can be checked`
)

// Declarations checks the mpitest.Run and mpitest.RunNP calls in f. If fix is
// true, fixable issues are fixed in f instead of being reported.
func Declarations(fs *token.FileSet, f *ast.File, fix bool) []*Issue {
	name := importName(f, ImportPath)
	if name == "" || name == "_" || name == "." {
		return nil
	}

	var issues []*Issue
	ast.Inspect(f, func(n ast.Node) bool {
		call, ok := n.(*ast.CallExpr)
		if !ok {
			return true
		}
		switch toQualifiedName(call.Fun) {
		case name + ".RunNP":
			if len(call.Args) == 3 {
				issues = append(issues, verifyNP(fs, call, call.Args[1], fix)...)
			}
		case name + ".Run":
			if len(call.Args) == 2 {
				issues = append(issues, verifyTest(fs, call.Args[1], fix)...)
			}
		}
		return true
	})
	return issues
}

// importName returns the name under which f imports importPath, or an empty
// string if it does not.
func importName(f *ast.File, importPath string) string {
	for _, imp := range f.Imports {
		p, err := strconv.Unquote(imp.Path.Value)
		if err != nil || p != importPath {
			continue
		}
		if imp.Name != nil {
			return imp.Name.Name
		}
		return path.Base(p)
	}
	return ""
}

// toQualifiedName stringifies an identifier or a selector expression, e.g.
// "mpitest.Run". It returns an empty string for other nodes.
func toQualifiedName(node ast.Node) string {
	var comp []string
	for {
		s, ok := node.(*ast.SelectorExpr)
		if !ok {
			break
		}
		comp = append([]string{s.Sel.Name}, comp...)
		node = s.X
	}
	id, ok := node.(*ast.Ident)
	if !ok {
		return ""
	}
	return strings.Join(append([]string{id.Name}, comp...), ".")
}

// testFields returns the keyed fields of a &mpitest.Test{...} literal, or nil
// if node is not such a literal.
func testFields(node ast.Expr) map[string]*ast.KeyValueExpr {
	u, ok := node.(*ast.UnaryExpr)
	if !ok || u.Op != token.AND {
		return nil
	}
	comp, ok := u.X.(*ast.CompositeLit)
	if !ok {
		return nil
	}
	return keyedFields(comp)
}

func keyedFields(comp *ast.CompositeLit) map[string]*ast.KeyValueExpr {
	res := make(map[string]*ast.KeyValueExpr)
	for _, el := range comp.Elts {
		kv, ok := el.(*ast.KeyValueExpr)
		if !ok {
			continue
		}
		if ident, ok := kv.Key.(*ast.Ident); ok {
			res[ident.Name] = kv
		}
	}
	return res
}

func verifyTest(fs *token.FileSet, node ast.Expr, fix bool) []*Issue {
	fields := testFields(node)
	if fields == nil {
		// Tests built elsewhere are checked when they run.
		return nil
	}

	var issues []*Issue
	if kv, ok := fields["NP"]; ok {
		issues = append(issues, verifyNP(fs, kv, kv.Value, fix)...)
	}
	if kv, ok := fields["FailureMessage"]; ok {
		if ef, ok := fields["ExpectFailure"]; !ok || isFalse(ef.Value) {
			issues = append(issues, &Issue{Pos: fs.Position(kv.Pos()), Msg: strayFailureMsgMsg})
		}
	}
	if kv, ok := fields["Params"]; ok {
		issues = append(issues, verifyParams(fs, kv.Value)...)
	}
	return issues
}

func isFalse(e ast.Expr) bool {
	id, ok := e.(*ast.Ident)
	return ok && id.Name == "false"
}

// verifyNP checks a process count declaration given as a string literal.
// parent is the node containing node, where a fixed literal is put.
func verifyNP(fs *token.FileSet, parent ast.Node, node ast.Expr, fix bool) []*Issue {
	lit, ok := node.(*ast.BasicLit)
	if !ok || lit.Kind != token.STRING {
		return []*Issue{{Pos: fs.Position(node.Pos()), Msg: nonLiteralNPMsg}}
	}
	s, err := strconv.Unquote(lit.Value)
	if err != nil {
		return nil
	}
	nps, err := decl.Parse(s)
	if err != nil {
		return []*Issue{{Pos: fs.Position(node.Pos()), Msg: fmt.Sprintf(badNPMsg, err)}}
	}

	uniq := dedupe(nps)
	if len(uniq) == len(nps) {
		return nil
	}
	if !fix {
		return []*Issue{{
			Pos:     fs.Position(node.Pos()),
			Msg:     fmt.Sprintf(repeatedNPMsg, uniq.String()),
			Fixable: true,
		}}
	}
	astutil.Apply(parent, func(c *astutil.Cursor) bool {
		if c.Node() != node {
			return true
		}
		c.Replace(&ast.BasicLit{
			ValuePos: lit.ValuePos,
			Kind:     token.STRING,
			Value:    quoteLike(uniq.String(), lit.Value),
		})
		return false
	}, nil)
	return nil
}

// quoteLike quotes s with back quotes if orig is a raw string literal and s
// can be back-quoted, and with double quotes otherwise.
func quoteLike(s, orig string) string {
	if strings.HasPrefix(orig, "`") && strconv.CanBackquote(s) {
		return "`" + s + "`"
	}
	return strconv.Quote(s)
}

func dedupe(nps decl.ProcessCountSet) decl.ProcessCountSet {
	seen := make(map[int]bool)
	var res decl.ProcessCountSet
	for _, np := range nps {
		if !seen[np] {
			seen[np] = true
			res = append(res, np)
		}
	}
	return res
}

// verifyParams reports parameter case names that would collide.
func verifyParams(fs *token.FileSet, node ast.Expr) []*Issue {
	comp, ok := node.(*ast.CompositeLit)
	if !ok {
		if call, ok := node.(*ast.CallExpr); ok && strings.HasSuffix(toQualifiedName(call.Fun), ".Cartesian") {
			return nil
		}
		return []*Issue{{Pos: fs.Position(node.Pos()), Msg: nonLiteralParamsMsg}}
	}

	var issues []*Issue
	seen := make(map[string]bool)
	for i, el := range comp.Elts {
		name := fmt.Sprintf("case_%d", i+1)
		pos := el.Pos()
		if pc, ok := el.(*ast.CompositeLit); ok {
			if kv, ok := keyedFields(pc)["Name"]; ok {
				lit, ok := kv.Value.(*ast.BasicLit)
				if !ok || lit.Kind != token.STRING {
					continue
				}
				if s, err := strconv.Unquote(lit.Value); err == nil && s != "" {
					name = s
				}
				pos = kv.Pos()
			}
		}
		if seen[name] {
			issues = append(issues, &Issue{Pos: fs.Position(pos), Msg: fmt.Sprintf(repeatedParamMsg, name)})
		}
		seen[name] = true
	}
	return issues
}

// File parses and checks the Go source src read from filename. If fix is
// true, the returned source has fixable issues fixed; it is nil if nothing
// changed.
func File(filename string, src []byte, fix bool) (issues []*Issue, fixed []byte, err error) {
	fs := token.NewFileSet()
	f, err := parser.ParseFile(fs, filename, src, parser.ParseComments)
	if err != nil {
		return nil, nil, err
	}

	// Run the check read-only first to know whether anything is fixable.
	issues = Declarations(fs, f, false)
	if !fix {
		return issues, nil, nil
	}

	var remaining []*Issue
	fixable := false
	for _, i := range issues {
		if i.Fixable {
			fixable = true
		} else {
			remaining = append(remaining, i)
		}
	}
	if !fixable {
		return issues, nil, nil
	}

	Declarations(fs, f, true)
	var buf bytes.Buffer
	if err := format.Node(&buf, fs, f); err != nil {
		return nil, nil, err
	}
	return remaining, buf.Bytes(), nil
}
