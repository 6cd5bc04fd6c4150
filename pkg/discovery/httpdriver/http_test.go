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

package httpdriver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/GoogleCloudPlatform/kube-rest-engine/pkg/discovery"
)

func fakeDo(byPath map[string]string) func(context.Context, string) ([]byte, error) {
	return func(_ context.Context, path string) ([]byte, error) {
		return []byte(byPath[path]), nil
	}
}

func TestVersionsCombinesCoreAndGroups(t *testing.T) {
	dc := discovery.Context{Do: fakeDo(map[string]string{
		"/api":  `{"kind":"APIVersions","versions":["v1"]}`,
		"/apis": `{"kind":"APIGroupList","groups":[{"name":"apps","versions":[{"groupVersion":"apps/v1","version":"v1"}]}]}`,
	})}

	versions, err := New().Versions(context.Background(), dc)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"v1", "apps/v1"}, versions)
}

func TestResourcesSkipsSubresourcesAndParsesVerbs(t *testing.T) {
	dc := discovery.Context{Do: fakeDo(map[string]string{
		"/api/v1": `{
			"kind":"APIResourceList",
			"groupVersion":"v1",
			"resources":[
				{"name":"pods","singularName":"","namespaced":true,"kind":"Pod","verbs":["get","list","watch","create","update","patch","delete"]},
				{"name":"pods/exec","namespaced":true,"kind":"PodExecOptions","verbs":["create"]},
				{"name":"namespaces","namespaced":false,"kind":"Namespace","verbs":["get","list"]}
			]
		}`,
	})}

	descs, err := New().Resources(context.Background(), dc, "v1")
	require.NoError(t, err)
	require.Len(t, descs, 2)

	var pod *struct{ namespaced bool }
	for _, d := range descs {
		if d.Kind == "Pod" {
			require.True(t, d.Namespaced)
			require.True(t, d.Verbs["watch"])
			pod = &struct{ namespaced bool }{d.Namespaced}
		}
	}
	require.NotNil(t, pod)
}

func TestResourcesUsesApisPrefixForGroupedVersions(t *testing.T) {
	var gotPath string
	dc := discovery.Context{Do: func(_ context.Context, path string) ([]byte, error) {
		gotPath = path
		return []byte(`{"resources":[]}`), nil
	}}

	_, err := New().Resources(context.Background(), dc, "apps/v1")
	require.NoError(t, err)
	require.Equal(t, "/apis/apps/v1", gotPath)
}
