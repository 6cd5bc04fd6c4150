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

// Package httpdriver implements discovery.Driver by issuing GETs against
// a live API server's /api and /apis discovery documents (spec §4.4,
// "HTTP" driver).
package httpdriver

import (
	"context"
	"encoding/json"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/GoogleCloudPlatform/kube-rest-engine/pkg/discovery"
	"github.com/GoogleCloudPlatform/kube-rest-engine/pkg/kube"
)

// Driver decodes standard Kubernetes discovery documents
// (metav1.APIVersions, metav1.APIGroupList, metav1.APIResourceList).
type Driver struct{}

// New constructs an HTTP discovery Driver.
func New() Driver { return Driver{} }

// Versions implements discovery.Driver: GET /api then /apis, collecting
// every apiVersion (spec §4.4 "issues GETs against /api and /apis").
func (Driver) Versions(ctx context.Context, dc discovery.Context) ([]string, error) {
	var out []string

	coreBody, err := dc.Do(ctx, "/api")
	if err != nil {
		return nil, err
	}
	var core metav1.APIVersions
	if err := json.Unmarshal(coreBody, &core); err != nil {
		return nil, err
	}
	out = append(out, core.Versions...)

	groupsBody, err := dc.Do(ctx, "/apis")
	if err != nil {
		return nil, err
	}
	var groups metav1.APIGroupList
	if err := json.Unmarshal(groupsBody, &groups); err != nil {
		return nil, err
	}
	for _, g := range groups.Groups {
		for _, v := range g.Versions {
			out = append(out, v.GroupVersion)
		}
	}
	return out, nil
}

// Resources implements discovery.Driver: GET /api/{v} for the core
// group, or /apis/{gv} for everything else, and maps each APIResource
// into a kube.ResourceDescriptor (spec §4.4).
func (Driver) Resources(ctx context.Context, dc discovery.Context, apiVersion string) ([]kube.ResourceDescriptor, error) {
	path := "/api/" + apiVersion
	if containsSlash(apiVersion) {
		path = "/apis/" + apiVersion
	}

	body, err := dc.Do(ctx, path)
	if err != nil {
		return nil, err
	}
	var list metav1.APIResourceList
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, err
	}

	out := make([]kube.ResourceDescriptor, 0, len(list.APIResources))
	for _, r := range list.APIResources {
		if containsSlash(r.Name) {
			// Subresources (e.g. "pods/exec", "pods/status") are skipped:
			// no descriptor is kept for them and their verbs are not added
			// to the parent's descriptor - the Path Builder derives the
			// subresource path segment from the Operation's Name, not
			// from discovery.
			continue
		}
		verbs := map[kube.Verb]bool{}
		for _, v := range r.Verbs {
			verbs[kube.Verb(v)] = true
		}
		out = append(out, kube.ResourceDescriptor{
			Kind:       r.Kind,
			RESTName:   r.Name,
			Namespaced: r.Namespaced,
			Verbs:      verbs,
		})
	}
	return out, nil
}

func containsSlash(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] == '/' {
			return true
		}
	}
	return false
}
