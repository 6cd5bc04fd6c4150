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

package restpath

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/GoogleCloudPlatform/kube-rest-engine/pkg/kube"
)

func TestBuild(t *testing.T) {
	deployments := kube.ResourceDescriptor{
		Kind: "Deployment", RESTName: "deployments", Namespaced: true,
		Verbs: map[kube.Verb]bool{kube.Get: true, kube.List: true, kube.Watch: true},
	}
	namespaces := kube.ResourceDescriptor{
		Kind: "Namespace", RESTName: "namespaces", Namespaced: false,
		Verbs: map[kube.Verb]bool{kube.ListAllNamespaces: true},
	}
	pods := kube.ResourceDescriptor{
		Kind: "Pod", RESTName: "pods", Namespaced: true,
		Verbs: map[kube.Verb]bool{kube.Get: true, kube.Connect: true},
	}

	cases := []struct {
		name string
		d    kube.ResourceDescriptor
		verb kube.Verb
		n    kube.Name
		p    Params
		want string
	}{
		{
			// spec §8 S1.
			name: "get by name", d: deployments, verb: kube.Get, n: kube.NewKindName("Deployment"),
			p:    Params{Namespace: "default", Name: "nginx"},
			want: "/apis/apps/v1/namespaces/default/deployments/nginx",
		},
		{
			// spec §8 S2.
			name: "cluster scoped list all", d: namespaces, verb: kube.ListAllNamespaces, n: kube.NewKindName("Namespace"),
			p:    Params{},
			want: "/api/v1/namespaces",
		},
		{
			// spec §8 S3.
			name: "subresource create", d: pods, verb: kube.Create, n: kube.NewSubresourceName("Pod", "eviction"),
			p:    Params{Namespace: "default", Name: "nginx"},
			want: "/api/v1/namespaces/default/pods/nginx/eviction",
		},
		{
			name: "connect exec subresource", d: pods, verb: kube.Connect, n: kube.NewSubresourceName("Pod", "exec"),
			p:    Params{Namespace: "default", Name: "p"},
			want: "/api/v1/namespaces/default/pods/p/exec",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			apiVersion := "apps/v1"
			if tc.d.Kind == "Namespace" || tc.d.Kind == "Pod" {
				apiVersion = "v1"
			}
			got, err := Build(apiVersion, tc.d, tc.verb, tc.n, tc.p)
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestBuildMissingName(t *testing.T) {
	d := kube.ResourceDescriptor{RESTName: "pods", Namespaced: true, Verbs: map[kube.Verb]bool{kube.Get: true}}
	_, err := Build("v1", d, kube.Get, kube.NewKindName("Pod"), Params{Namespace: "default"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "name")
}

func TestBuildMissingNamespace(t *testing.T) {
	d := kube.ResourceDescriptor{RESTName: "pods", Namespaced: true, Verbs: map[kube.Verb]bool{kube.Get: true}}
	_, err := Build("v1", d, kube.Get, kube.NewKindName("Pod"), Params{Name: "p"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "namespace")
}

func TestBuildClusterScopedHasNoNamespaceSegment(t *testing.T) {
	// spec §8 property 2: namespace discipline.
	d := kube.ResourceDescriptor{RESTName: "nodes", Namespaced: false, Verbs: map[kube.Verb]bool{kube.Get: true}}
	got, err := Build("v1", d, kube.Get, kube.NewKindName("Node"), Params{Name: "n1"})
	require.NoError(t, err)
	require.NotContains(t, got, "/namespaces/")
}

func TestBuildProxySubresourceAppendsPath(t *testing.T) {
	d := kube.ResourceDescriptor{RESTName: "pods", Namespaced: true, Verbs: map[kube.Verb]bool{kube.Connect: true}}
	got, err := Build("v1", d, kube.Connect, kube.NewSubresourceName("Pod", "proxy"),
		Params{Namespace: "default", Name: "p", Path: "/healthz"})
	require.NoError(t, err)
	require.Equal(t, "/api/v1/namespaces/default/pods/p/proxy/healthz", got)
}
