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

// Package operation implements the canonical, immutable description of
// one Kubernetes REST call (spec §3, §4.3, C3). Every mutator returns a
// new Operation - value semantics, as spec §4.3 requires.
package operation

import (
	"strings"

	"github.com/GoogleCloudPlatform/kube-rest-engine/internal/resource"
	"github.com/GoogleCloudPlatform/kube-rest-engine/pkg/kube"
	"github.com/GoogleCloudPlatform/kube-rest-engine/pkg/restpath"
	"github.com/GoogleCloudPlatform/kube-rest-engine/pkg/selector"
)

// QueryValue is one query parameter value: a string, a []string (repeated
// param, as exec's `command=`), or a bool (spec §3).
type QueryValue any

// Operation is immutable; every Put* method returns a modified copy.
type Operation struct {
	Verb       kube.Verb
	APIVersion string
	Name       kube.Name
	PathParams restpath.Params
	Data       resource.Map
	Query      map[string]QueryValue
	Selector   selector.Selector
}

// Build constructs an explicit-form Operation (spec §4.3 second
// constructor): verb, apiVersion, a Kind or "{resource}/{subresource}"
// name, path params, and an optional body.
func Build(verb kube.Verb, apiVersion, nameOrKind string, params restpath.Params, body resource.Map) Operation {
	return Operation{
		Verb:       verb,
		APIVersion: apiVersion,
		Name:       kube.Name{Raw: nameOrKind, Kind: nameOrKind},
		PathParams: params,
		Data:       body,
		Query:      map[string]QueryValue{},
	}
}

// BuildFromResource infers apiVersion, kind, namespace and name from a
// decoded resource map's own apiVersion/kind/metadata fields (spec §4.3
// first constructor).
func BuildFromResource(verb kube.Verb, obj resource.Map) Operation {
	return Operation{
		Verb:       verb,
		APIVersion: resource.APIVersion(obj),
		Name:       kube.NewKindName(resource.Kind(obj)),
		PathParams: restpath.Params{Namespace: resource.Namespace(obj), Name: resource.Name(obj)},
		Data:       obj,
		Query:      map[string]QueryValue{},
	}
}

// BuildSubresource constructs a {kind, subKind} operation, e.g.
// create(pod, eviction) (spec §8 S3).
func BuildSubresource(verb kube.Verb, apiVersion, kind, subKind string, params restpath.Params, body resource.Map) Operation {
	return Operation{
		Verb:       verb,
		APIVersion: apiVersion,
		Name:       kube.NewSubresourceName(kind, subKind),
		PathParams: params,
		Data:       body,
		Query:      map[string]QueryValue{},
	}
}

// Connect builds a `connect` operation against pods/exec or pods/log,
// attaching opts as query params (spec §4.3). nameOrSubresource is the
// "{resource}/{subresource}" form, e.g. "pods/exec".
func Connect(apiVersion, nameOrSubresource string, params restpath.Params, opts map[string]QueryValue) Operation {
	op := Operation{
		Verb:       kube.Connect,
		APIVersion: apiVersion,
		Name:       parseConnectName(nameOrSubresource),
		PathParams: params,
		Query:      map[string]QueryValue{},
	}
	for k, v := range opts {
		op = op.PutQueryParam(k, v)
	}
	return op
}

// parseConnectName splits "pods/exec" into {Kind: "pods", SubKind:
// "exec"} so the Path Builder's subresource-suffix rule applies, while
// keeping Raw for discovery matching and logging.
func parseConnectName(raw string) kube.Name {
	if i := strings.IndexByte(raw, '/'); i >= 0 {
		return kube.Name{Raw: raw, Kind: raw[:i], SubKind: raw[i+1:]}
	}
	return kube.Name{Raw: raw, Kind: raw}
}

func (o Operation) clone() Operation {
	out := o
	out.Query = make(map[string]QueryValue, len(o.Query))
	for k, v := range o.Query {
		out.Query[k] = v
	}
	return out
}

// PutQueryParam returns a copy with query key set to value.
func (o Operation) PutQueryParam(key string, value QueryValue) Operation {
	out := o.clone()
	out.Query[key] = value
	return out
}

// PutSelector merges sel into the operation's structured selector, which
// is folded into labelSelector at serialization time (spec §3).
func (o Operation) PutSelector(sel selector.Selector) Operation {
	out := o.clone()
	out.Selector = out.Selector.Merge(sel)
	return out
}

// PutLabelSelector is shorthand for a single-label-equality merge.
func (o Operation) PutLabelSelector(key, value string) Operation {
	return o.PutSelector(selector.New().Label(key, value))
}

// PutPathParam returns a copy whose path params are replaced by params.
func (o Operation) PutPathParam(params restpath.Params) Operation {
	out := o.clone()
	out.PathParams = params
	return out
}

// EffectiveLabelSelector returns the query's labelSelector merged with the
// structured Selector, per spec §3 ("selector - merged into labelSelector
// at serialization").
func (o Operation) EffectiveLabelSelector() string {
	text := o.Selector.String()
	if raw, ok := o.Query["labelSelector"].(string); ok && raw != "" {
		if text == "" {
			return raw
		}
		return raw + "," + text
	}
	return text
}

// Method returns the HTTP method this operation dispatches as.
func (o Operation) Method() string { return kube.Method(o.Verb) }
