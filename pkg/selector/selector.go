// Copyright 2021 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package selector implements the label selector ADT (spec §4.2,
// §9 "Selector ADT"): a composable, value-semantics builder over
// k8s.io/apimachinery/pkg/labels. Selector itself only tracks what the
// caller asked for (overwrite-on-repeat equality labels, deduplicated
// match expressions); building the serialized form, parsing it back,
// and evaluating it against a resource's labels are all delegated to
// apimachinery's own Requirement/Selector - the same library the
// teacher's operator (pkg/operator/operator.go, target_status.go) uses
// for exactly this, rather than a hand-rolled grammar.
package selector

import (
	"sort"

	"k8s.io/apimachinery/pkg/labels"
	"k8s.io/apimachinery/pkg/selection"
)

// Operator is the comparison kind of a match expression; an alias of
// apimachinery's own operator type so a Selector's Exprs can be fed
// straight into labels.NewRequirement.
type Operator = selection.Operator

const (
	In           = selection.In
	NotIn        = selection.NotIn
	Exists       = selection.Exists
	DoesNotExist = selection.DoesNotExist
)

// Expr is one structured match expression (spec §3 Selector.matchExpressions).
// Values are kept sorted so two structurally equal expressions compare
// equal regardless of the order the caller listed them in, matching
// apimachinery's own canonicalization.
type Expr struct {
	Key      string
	Operator Operator
	Values   []string
}

func (e Expr) equal(other Expr) bool {
	if e.Key != other.Key || e.Operator != other.Operator || len(e.Values) != len(other.Values) {
		return false
	}
	for i := range e.Values {
		if e.Values[i] != other.Values[i] {
			return false
		}
	}
	return true
}

// Selector is the immutable composition of an AND of labels plus an
// ordered sequence of match expressions. The zero value is the
// empty/always-true selector.
type Selector struct {
	labels map[string]string
	exprs  []Expr
}

// New returns the empty selector.
func New() Selector {
	return Selector{}
}

func (s Selector) clone() Selector {
	out := Selector{
		labels: make(map[string]string, len(s.labels)),
		exprs:  append([]Expr(nil), s.exprs...),
	}
	for k, v := range s.labels {
		out.labels[k] = v
	}
	return out
}

// Label adds (or overwrites) an equality match on key.
func (s Selector) Label(key, value string) Selector {
	out := s.clone()
	if out.labels == nil {
		out.labels = map[string]string{}
	}
	out.labels[key] = value
	return out
}

// LabelIn adds a `key in (values...)` match expression.
func (s Selector) LabelIn(key string, values ...string) Selector {
	return s.addExpr(newExpr(key, In, values))
}

// LabelNotIn adds a `key notin (values...)` match expression.
func (s Selector) LabelNotIn(key string, values ...string) Selector {
	return s.addExpr(newExpr(key, NotIn, values))
}

// LabelExists adds a `key` (presence-only) match expression.
func (s Selector) LabelExists(key string) Selector {
	return s.addExpr(newExpr(key, Exists, nil))
}

// LabelDoesNotExist adds a `!key` match expression.
func (s Selector) LabelDoesNotExist(key string) Selector {
	return s.addExpr(newExpr(key, DoesNotExist, nil))
}

func newExpr(key string, op Operator, values []string) Expr {
	sorted := append([]string(nil), values...)
	sort.Strings(sorted)
	return Expr{Key: key, Operator: op, Values: sorted}
}

func (s Selector) addExpr(e Expr) Selector {
	out := s.clone()
	for _, existing := range out.exprs {
		if existing.equal(e) {
			return out
		}
	}
	out.exprs = append(out.exprs, e)
	return out
}

// Merge unions matchLabels (right wins on conflict) and concatenates match
// expressions, deduplicated by structural equality, per spec §4.2.
func (s Selector) Merge(other Selector) Selector {
	out := s.clone()
	for k, v := range other.labels {
		if out.labels == nil {
			out.labels = map[string]string{}
		}
		out.labels[k] = v
	}
	for _, e := range other.exprs {
		out = out.addExpr(e)
	}
	return out
}

// IsEmpty reports whether the selector matches everything.
func (s Selector) IsEmpty() bool {
	return len(s.labels) == 0 && len(s.exprs) == 0
}

// Labels returns the matchLabels map (read-only use expected by callers).
func (s Selector) Labels() map[string]string { return s.labels }

// Exprs returns the match expressions in insertion order; only the
// serialized form is key-sorted (see toAPI).
func (s Selector) Exprs() []Expr { return s.exprs }

// toAPI builds the apimachinery labels.Selector backing this Selector's
// String/Matches. Requirement.String()/Selector.Add() canonicalize by
// sorting on key, so the serialized order is deterministic (spec §3)
// without this package re-deriving that rule itself.
func (s Selector) toAPI() (labels.Selector, error) {
	sel := labels.NewSelector()

	keys := make([]string, 0, len(s.labels))
	for k := range s.labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		req, err := labels.NewRequirement(k, selection.Equals, []string{s.labels[k]})
		if err != nil {
			return nil, err
		}
		sel = sel.Add(*req)
	}
	for _, e := range s.exprs {
		req, err := labels.NewRequirement(e.Key, e.Operator, e.Values)
		if err != nil {
			return nil, err
		}
		sel = sel.Add(*req)
	}
	return sel, nil
}

// String serializes the selector via apimachinery's own Requirement
// grammar (k=v, k in (v1,v2), k notin (v1,v2), k, !k), so the result
// parses identically under apimachinery elsewhere in the cluster.
//
// A builder method only ever reaches here with keys/values an earlier
// Label/LabelIn/... call already accepted, so a validation failure at
// this point means corrupted internal state, not bad caller input -
// the same contract as regexp.MustCompile.
func (s Selector) String() string {
	sel, err := s.toAPI()
	if err != nil {
		panic(err)
	}
	return sel.String()
}

// Matches evaluates the selector against a flat label map, per spec §4.2
// ("evaluate selectors against resource maps"), via apimachinery's own
// Requirement.Matches.
func (s Selector) Matches(obj map[string]string) bool {
	sel, err := s.toAPI()
	if err != nil {
		panic(err)
	}
	return sel.Matches(labels.Set(obj))
}
