// Copyright 2026 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package expand

import (
	"fmt"
	"regexp"
	"strings"
)

// unsafeRE matches characters dropped from values embedded in case names.
var unsafeRE = regexp.MustCompile(`[^A-Za-z0-9_.=-]+`)

// Axis is one named dimension of a parameter matrix.
type Axis struct {
	Name   string
	Values []interface{}
}

// Values is a convenience constructor for Axis.
func Values(name string, vals ...interface{}) Axis {
	return Axis{Name: name, Values: vals}
}

// Cartesian returns the product of axes as parameter cases. The first axis
// varies slowest. Each case's Val is a []interface{} holding one value per
// axis, and its name joins "<axis>_<index>_<value>" parts with "__", with
// 1-based indices:
//
//	Cartesian(Values("x", 1, 2), Values("y", "a"))
//	  -> x_1_1__y_1_a, x_2_2__y_1_a
//
// No axes yields nil; an axis without values yields an empty, non-nil slice.
func Cartesian(axes ...Axis) []Param {
	if len(axes) == 0 {
		return nil
	}
	params := []Param{{}}
	for _, ax := range axes {
		next := make([]Param, 0, len(params)*len(ax.Values))
		for _, p := range params {
			for i, v := range ax.Values {
				part := fmt.Sprintf("%s_%d_%s", ax.Name, i+1, sanitize(v))
				name := part
				var vals []interface{}
				if p.Name != "" {
					name = p.Name + "__" + part
					vals = append(vals, p.Val.([]interface{})...)
				}
				next = append(next, Param{Name: name, Val: append(vals, v)})
			}
		}
		params = next
	}
	return params
}

func sanitize(v interface{}) string {
	s := unsafeRE.ReplaceAllString(fmt.Sprint(v), "_")
	return strings.Trim(s, "_")
}
