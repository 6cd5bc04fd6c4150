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

package staticdriver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/GoogleCloudPlatform/kube-rest-engine/pkg/discovery"
)

const fixtureYAML = `
v1:
  - kind: Pod
    restName: pods
    namespaced: true
    verbs: [get, list, watch, connect]
  - kind: Namespace
    restName: namespaces
    namespaced: false
    verbs: [get, list]
apps/v1:
  - kind: Deployment
    restName: deployments
    namespaced: true
    verbs: [get, list, watch, create, update, patch, delete]
`

func TestLoadAndResources(t *testing.T) {
	d, err := Load([]byte(fixtureYAML))
	require.NoError(t, err)

	descs, err := d.Resources(context.Background(), discovery.Context{}, "v1")
	require.NoError(t, err)
	require.Len(t, descs, 2)

	versions, err := d.Versions(context.Background(), discovery.Context{})
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"v1", "apps/v1"}, versions)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	_, err := Load([]byte("not: [valid"))
	require.Error(t, err)
}
