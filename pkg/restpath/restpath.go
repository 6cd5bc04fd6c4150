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

// Package restpath implements the pure path builder (spec §4.1, C1):
// given a resource descriptor, verb and path parameters, produce a REST
// URL path, or name the missing placeholder.
package restpath

import (
	"strings"

	"github.com/GoogleCloudPlatform/kube-rest-engine/pkg/kerrors"
	"github.com/GoogleCloudPlatform/kube-rest-engine/pkg/kube"
)

// Params are the only recognized placeholders (spec §4.1): {name},
// {namespace}, {path}, {logpath}.
type Params struct {
	Namespace string
	Name      string
	Path      string
	LogPath   string
}

// Build renders the absolute URL path for one REST call.
//
// Rules (spec §4.1):
//   - prefix is /api/{apiVersion} when apiVersion has no "/", else
//     /apis/{apiVersion}.
//   - suffix is restName for collection-scoped verbs, else
//     {restName}/{name}; subresources append /{subresource}. A
//     subresource always gets {restName}/{name}/{subresource}, even for a
//     collection-scoped verb such as create (pods/{name}/eviction).
//   - a /namespaces/{namespace} segment is inserted between prefix and
//     suffix iff descriptor.Namespaced and the verb isn't an
//     *_all_namespaces variant.
func Build(apiVersion string, d kube.ResourceDescriptor, verb kube.Verb, name kube.Name, params Params) (string, error) {
	var b strings.Builder

	if strings.Contains(apiVersion, "/") {
		b.WriteString("/apis/")
	} else {
		b.WriteString("/api/")
	}
	b.WriteString(apiVersion)

	if d.Namespaced && !kube.IsAllNamespacesVerb(verb) {
		if params.Namespace == "" {
			return "", &kerrors.OperationError{Message: "missing required path parameter: namespace"}
		}
		b.WriteString("/namespaces/")
		b.WriteString(params.Namespace)
	}

	b.WriteString("/")
	b.WriteString(d.RESTName)

	if !kube.IsCollectionVerb(verb) || name.SubKind != "" {
		if params.Name == "" {
			return "", &kerrors.OperationError{Message: "missing required path parameter: name"}
		}
		b.WriteString("/")
		b.WriteString(params.Name)

		if name.SubKind != "" {
			b.WriteString("/")
			b.WriteString(name.SubKind)

			// The proxy/log subresources accept an arbitrary trailing
			// path, carried in pathParams.path / pathParams.logpath
			// (spec §3, §4.1 "{path}, {logpath}" placeholders).
			switch name.SubKind {
			case "proxy":
				if params.Path != "" {
					b.WriteString("/")
					b.WriteString(strings.TrimPrefix(params.Path, "/"))
				}
			case "log":
				if params.LogPath != "" {
					b.WriteString("/")
					b.WriteString(strings.TrimPrefix(params.LogPath, "/"))
				}
			}
		}
	}

	out := b.String()
	if rest := leftoverPlaceholder(out); rest != "" {
		return "", &kerrors.OperationError{Message: "unresolved path placeholder: " + rest}
	}
	return out, nil
}

// leftoverPlaceholder returns the first "{...}" substring still present
// in s, or "" if none remain (spec §4.1 "any remaining placeholder after
// substitution is a fatal operation error").
func leftoverPlaceholder(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}
	end := strings.IndexByte(s[start:], '}')
	if end < 0 {
		return ""
	}
	return s[start : start+end+1]
}
