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

// Package resource implements the structural accessors spec §9 asks for
// ("Dynamic maps as resource data: keep resources as string-keyed nested
// maps ... prefer structural accessors so the core never depends on
// generated types"). Resource bodies flow through this engine as
// map[string]any; this package is the only place that knows their shape,
// and it reads that shape through k8s.io/apimachinery/pkg/apis/meta/v1/
// unstructured rather than indexing the map by hand.
package resource

import (
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
)

// Map is a Kubernetes resource represented as a decoded JSON object - the
// same underlying shape unstructured.Unstructured.Object wraps.
type Map = map[string]any

func wrap(obj Map) *unstructured.Unstructured {
	if obj == nil {
		obj = Map{}
	}
	return &unstructured.Unstructured{Object: obj}
}

// APIVersion returns obj["apiVersion"], or "" if absent/wrong type.
func APIVersion(obj Map) string { return wrap(obj).GetAPIVersion() }

// Kind returns obj["kind"].
func Kind(obj Map) string { return wrap(obj).GetKind() }

// Name returns obj["metadata"]["name"].
func Name(obj Map) string { return wrap(obj).GetName() }

// Namespace returns obj["metadata"]["namespace"].
func Namespace(obj Map) string { return wrap(obj).GetNamespace() }

// ResourceVersion returns obj["metadata"]["resourceVersion"].
func ResourceVersion(obj Map) string { return wrap(obj).GetResourceVersion() }

// Continue returns obj["metadata"]["continue"] - the List Stream's
// pagination token (spec §4.9). There's no typed accessor for this field
// on unstructured.Unstructured, so it's read with the same
// NestedString helper GetResourceVersion et al. are built on.
func Continue(obj Map) string {
	v, _, _ := unstructured.NestedString(obj, "metadata", "continue")
	return v
}

// Label returns the value of label k, and whether it was present.
func Label(obj Map, k string) (string, bool) {
	v, ok := wrap(obj).GetLabels()[k]
	return v, ok
}

// Labels flattens obj's metadata.labels into a plain map[string]string,
// for use with pkg/selector.Selector.Matches.
func Labels(obj Map) map[string]string { return wrap(obj).GetLabels() }

// Items returns obj["items"], the array a list response carries.
func Items(obj Map) []any {
	items, _, _ := unstructured.NestedSlice(obj, "items")
	return items
}
