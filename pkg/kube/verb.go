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

// Package kube holds the small set of types shared by the path builder,
// the operation engine and the discovery cache, so none of those three
// packages has to import another to agree on what a Verb or a
// ResourceDescriptor is (spec §2 C1/C3/C4, §3 data model).
package kube

import "net/http"

// Verb is the Kubernetes action taxonomy (spec Glossary).
type Verb string

const (
	Get                Verb = "get"
	List               Verb = "list"
	ListAllNamespaces  Verb = "list_all_namespaces"
	Watch              Verb = "watch"
	WatchAllNamespaces Verb = "watch_all_namespaces"
	Create             Verb = "create"
	Update             Verb = "update"
	Patch              Verb = "patch"
	Apply              Verb = "apply"
	Delete             Verb = "delete"
	DeleteCollection   Verb = "deletecollection"
	Connect            Verb = "connect"
)

// collectionVerbs are the verbs that operate on the collection endpoint
// (no {name} path segment), per spec §4.1.
var collectionVerbs = map[Verb]bool{
	Create:             true,
	List:               true,
	ListAllNamespaces:  true,
	DeleteCollection:   true,
	WatchAllNamespaces: true,
}

// IsCollectionVerb reports whether v addresses the collection endpoint
// rather than a single named resource.
func IsCollectionVerb(v Verb) bool { return collectionVerbs[v] }

// allNamespacesVerbs never get a /namespaces/{ns} path segment, even for a
// namespaced resource, per spec §4.1 "Namespace inclusion".
var allNamespacesVerbs = map[Verb]bool{
	ListAllNamespaces:  true,
	WatchAllNamespaces: true,
}

// IsAllNamespacesVerb reports whether v is one of the *_all_namespaces
// variants.
func IsAllNamespacesVerb(v Verb) bool { return allNamespacesVerbs[v] }

// Method returns the HTTP method a verb is dispatched as (spec §3
// "method - HTTP method derived from verb").
func Method(v Verb) string {
	switch v {
	case List, ListAllNamespaces, Watch, WatchAllNamespaces, Get, Connect:
		return http.MethodGet
	case Create:
		return http.MethodPost
	case Update:
		return http.MethodPut
	case Patch, Apply:
		return http.MethodPatch
	case Delete, DeleteCollection:
		return http.MethodDelete
	default:
		return http.MethodGet
	}
}

// RequiresUpgrade reports whether the verb's request is expected to
// upgrade the connection (connect -> GET+upgrade, spec §3).
func RequiresUpgrade(v Verb) bool { return v == Connect }
