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

package discovery

import (
	"context"

	"github.com/GoogleCloudPlatform/kube-rest-engine/pkg/kerrors"
	"github.com/GoogleCloudPlatform/kube-rest-engine/pkg/kube"
	"github.com/GoogleCloudPlatform/kube-rest-engine/pkg/operation"
	"github.com/GoogleCloudPlatform/kube-rest-engine/pkg/restpath"
)

// Resolved is the output of resolving one Operation against a Driver:
// the ResourceDescriptor it matched and the request path the Path
// Builder produced from it (spec §4.4 "urlFor").
type Resolved struct {
	Descriptor kube.ResourceDescriptor
	Path       string
}

// Resolve implements spec §4.4's `urlFor(conn, op)`: find the descriptor
// matching op.Name under op.APIVersion, validate it supports op.Verb,
// then defer to restpath.Build.
func Resolve(ctx context.Context, driver Driver, dc Context, op operation.Operation) (Resolved, error) {
	descs, err := driver.Resources(ctx, dc, op.APIVersion)
	if err != nil {
		return Resolved{}, err
	}

	d, ok := match(descs, op.Name)
	if !ok {
		// A cache miss gets one synchronous refresh before failing
		// (DESIGN.md Open Question #3), in case the resource appeared
		// between the cached snapshot and now.
		if cd, isCaching := driver.(*CachingDriver); isCaching {
			cd.Invalidate(dc.Identity, op.APIVersion)
			descs, err = cd.Resources(ctx, dc, op.APIVersion)
			if err == nil {
				d, ok = match(descs, op.Name)
			}
		}
	}
	if !ok {
		return Resolved{}, &kerrors.DiscoveryError{
			Kind:    kerrors.DiscoveryNotDiscovered,
			Message: "no resource matches " + op.Name.String() + " in " + op.APIVersion,
		}
	}
	if !d.SupportsVerb(op.Verb) {
		return Resolved{}, &kerrors.DiscoveryError{
			Kind:    kerrors.DiscoveryUnsupportedVerb,
			Message: d.Kind + " does not support " + string(op.Verb),
		}
	}

	path, err := restpath.Build(op.APIVersion, d, op.Verb, op.Name, op.PathParams)
	if err != nil {
		return Resolved{}, err
	}
	return Resolved{Descriptor: d, Path: path}, nil
}

// match finds the descriptor whose Kind or RESTName matches name.Kind
// (spec §4.4 "kind, restName, or {kind, subKind}").
func match(descs []kube.ResourceDescriptor, name kube.Name) (kube.ResourceDescriptor, bool) {
	for _, d := range descs {
		if d.Kind == name.Kind || d.RESTName == name.Kind {
			return d, true
		}
	}
	return kube.ResourceDescriptor{}, false
}
