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

package selector

import (
	"k8s.io/apimachinery/pkg/labels"
	"k8s.io/apimachinery/pkg/selection"
)

// Parse is the inverse of String: it reads the same grammar
// k8s.io/apimachinery/pkg/labels emits (k=v, k in (a,b), k notin (a,b), k,
// !k joined by commas) and reconstructs a Selector, used by the testable
// round-trip property (spec §8 property 3) and by callers that need to
// merge a raw labelSelector query string back into structured form.
// Parsing itself is apimachinery's own labels.Parse; this just folds the
// resulting Requirements back into a Selector's builder shape.
func Parse(s string) (Selector, error) {
	parsed, err := labels.Parse(s)
	if err != nil {
		return Selector{}, err
	}

	reqs, _ := parsed.Requirements()
	out := New()
	for _, r := range reqs {
		values := r.Values().List()
		switch r.Operator() {
		case selection.Equals, selection.DoubleEquals:
			if len(values) == 1 {
				out = out.Label(r.Key(), values[0])
				continue
			}
			out = out.addExpr(newExpr(r.Key(), In, values))
		case selection.In:
			out = out.LabelIn(r.Key(), values...)
		case selection.NotIn:
			out = out.LabelNotIn(r.Key(), values...)
		case selection.Exists:
			out = out.LabelExists(r.Key())
		case selection.DoesNotExist:
			out = out.LabelDoesNotExist(r.Key())
		}
	}
	return out, nil
}
