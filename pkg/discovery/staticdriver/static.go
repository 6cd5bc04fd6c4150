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

// Package staticdriver implements discovery.Driver from an in-memory or
// on-disk fixture, used by tests (spec §4.4, "Static" driver).
package staticdriver

import (
	"context"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/GoogleCloudPlatform/kube-rest-engine/pkg/discovery"
	"github.com/GoogleCloudPlatform/kube-rest-engine/pkg/kube"
)

// Driver serves a fixed apiVersion -> []ResourceDescriptor mapping.
type Driver struct {
	resources map[string][]kube.ResourceDescriptor
}

// New constructs a Driver directly from a mapping, for tests that build
// their own fixtures in-process.
func New(resources map[string][]kube.ResourceDescriptor) Driver {
	return Driver{resources: resources}
}

// fixtureEntry is the on-disk shape of one resource: a YAML-friendly
// mirror of kube.ResourceDescriptor (spec §4.4's Static driver "loads a
// JSON mapping"; this module accepts YAML too, via gopkg.in/yaml.v3,
// matching the teacher's own fixture format).
type fixtureEntry struct {
	Kind       string   `yaml:"kind"`
	RESTName   string   `yaml:"restName"`
	Namespaced bool     `yaml:"namespaced"`
	Verbs      []string `yaml:"verbs"`
}

// LoadFile reads a YAML (or JSON, which is a YAML subset) file shaped as
// `apiVersion: [fixtureEntry, ...]` into a Driver.
func LoadFile(path string) (Driver, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Driver{}, err
	}
	return Load(raw)
}

// Load parses raw fixture bytes into a Driver.
func Load(raw []byte) (Driver, error) {
	var doc map[string][]fixtureEntry
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return Driver{}, err
	}

	resources := make(map[string][]kube.ResourceDescriptor, len(doc))
	for apiVersion, entries := range doc {
		descs := make([]kube.ResourceDescriptor, 0, len(entries))
		for _, e := range entries {
			verbs := make(map[kube.Verb]bool, len(e.Verbs))
			for _, v := range e.Verbs {
				verbs[kube.Verb(v)] = true
			}
			descs = append(descs, kube.ResourceDescriptor{
				Kind:       e.Kind,
				RESTName:   e.RESTName,
				Namespaced: e.Namespaced,
				Verbs:      verbs,
			})
		}
		resources[apiVersion] = descs
	}
	return Driver{resources: resources}, nil
}

// Versions implements discovery.Driver.
func (d Driver) Versions(_ context.Context, _ discovery.Context) ([]string, error) {
	out := make([]string, 0, len(d.resources))
	for v := range d.resources {
		out = append(out, v)
	}
	return out, nil
}

// Resources implements discovery.Driver.
func (d Driver) Resources(_ context.Context, _ discovery.Context, apiVersion string) ([]kube.ResourceDescriptor, error) {
	return d.resources[apiVersion], nil
}
