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

package operation

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/GoogleCloudPlatform/kube-rest-engine/pkg/kube"
	"github.com/GoogleCloudPlatform/kube-rest-engine/pkg/restpath"
	"github.com/GoogleCloudPlatform/kube-rest-engine/pkg/selector"
)

func TestExecQueryEncoding(t *testing.T) {
	// spec §8 S5.
	op := Connect("v1", "pods/exec", restpath.Params{Namespace: "default", Name: "p"}, map[string]QueryValue{
		"command": []string{"/bin/sh", "-c", "echo ok"},
		"stdin":   true,
		"stdout":  true,
		"stderr":  true,
		"tty":     false,
	})
	require.Equal(t, "command=%2Fbin%2Fsh&command=-c&command=echo+ok&stderr=true&stdin=true&stdout=true&tty=false", op.EncodeQuery())
}

func TestLabelSelectorQueryEncoding(t *testing.T) {
	// spec §8 S6.
	op := BuildFromResource(kube.List, map[string]any{"apiVersion": "v1", "kind": "Pod"}).
		PutSelector(selector.New().Label("app", "nginx")).
		PutSelector(selector.New().LabelIn("env", "qa", "prod"))
	require.Equal(t, "labelSelector=app%3Dnginx%2Cenv+in+%28prod%2Cqa%29", op.EncodeQuery())
}

func TestBuildFromResourceInfersCoordinates(t *testing.T) {
	op := BuildFromResource(kube.Create, map[string]any{
		"apiVersion": "apps/v1",
		"kind":       "Deployment",
		"metadata":   map[string]any{"name": "nginx", "namespace": "default"},
	})
	require.Equal(t, "apps/v1", op.APIVersion)
	require.Equal(t, "Deployment", op.Name.Kind)
	require.Equal(t, "default", op.PathParams.Namespace)
	require.Equal(t, "nginx", op.PathParams.Name)
}

func TestPutQueryParamIsValueSemantics(t *testing.T) {
	base := Build(kube.List, "v1", "Pod", restpath.Params{}, nil)
	withLimit := base.PutQueryParam("limit", "50")
	require.Empty(t, base.Query)
	require.Equal(t, QueryValue("50"), withLimit.Query["limit"])
}
