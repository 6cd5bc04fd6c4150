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

package kube

// ResourceDescriptor is the product of discovery (spec §3): the REST
// metadata needed to turn a Kind into a URL path.
type ResourceDescriptor struct {
	Kind       string
	RESTName   string
	Namespaced bool
	Verbs      map[Verb]bool
}

// SupportsVerb implements the invariant "an operation is rejected if verb
// not in r.verbs; watch is special-cased to require list" (spec §3). The
// *_all_namespaces variants are a client-side view of list/watch, not a
// distinct verb the server advertises, so they fall back to the base
// verb whenever discovery never populated the suffixed form directly
// (e.g. a Static driver fixture authored with the explicit verb still
// wins).
func (r ResourceDescriptor) SupportsVerb(v Verb) bool {
	switch v {
	case Watch, WatchAllNamespaces:
		return r.Verbs[Watch] || r.Verbs[WatchAllNamespaces] || r.Verbs[List] || r.Verbs[ListAllNamespaces]
	case ListAllNamespaces:
		return r.Verbs[ListAllNamespaces] || r.Verbs[List]
	default:
		return r.Verbs[v]
	}
}

// Name is the operation's target: either a bare Kind ("Deployment"), a
// "{resource}/{subresource}" string ("pods/exec"), or a {Kind, SubKind}
// pair for subresource creates like eviction (spec §3, §9 "Operation
// polymorphism"). Exactly one of Kind or (Kind && SubKind) is meaningful;
// Raw holds the original string form when the operation was built from one.
type Name struct {
	Kind    string
	SubKind string // e.g. "exec" in "pods/exec"; empty when Name is a bare kind.
	Raw     string // original "pods/exec" form, if constructed that way.
}

// NewKindName builds a Name that is a bare kind, e.g. "Deployment".
func NewKindName(kind string) Name {
	return Name{Kind: kind}
}

// NewSubresourceName builds a {kind, subKind} pair, e.g. for
// create(pod, "eviction") (spec §4.3 connect/subresource construction).
func NewSubresourceName(kind, subKind string) Name {
	return Name{Kind: kind, SubKind: subKind}
}

// String renders the Name the way discovery/path-building expect to
// match it against a ResourceDescriptor.
func (n Name) String() string {
	if n.Raw != "" {
		return n.Raw
	}
	if n.SubKind != "" {
		return n.Kind + "/" + n.SubKind
	}
	return n.Kind
}
