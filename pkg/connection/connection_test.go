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

package connection

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/GoogleCloudPlatform/kube-rest-engine/pkg/kube"
	"github.com/GoogleCloudPlatform/kube-rest-engine/pkg/operation"
	"github.com/GoogleCloudPlatform/kube-rest-engine/pkg/restpath"
)

func TestNewDefaultsMiddlewareAndRegistry(t *testing.T) {
	c, err := New("https://10.0.0.1:6443")
	require.NoError(t, err)
	require.Len(t, c.Middleware(), 2)
	require.NotNil(t, c.Registry())
	require.NotNil(t, c.DiscoveryDriver())
}

func TestDestinationDefaultsPortFromScheme(t *testing.T) {
	c, err := New("https://cluster.example")
	require.NoError(t, err)
	require.Equal(t, 443, c.Destination().Port)
}

func TestDestinationOptsKeyDistinguishesInsecure(t *testing.T) {
	a, err := New("https://cluster.example:6443")
	require.NoError(t, err)
	b, err := New("https://cluster.example:6443", WithInsecureSkipVerify(true))
	require.NoError(t, err)
	require.NotEqual(t, a.Destination().Key(), b.Destination().Key())
}

func TestDefaultMiddlewareInitializesAndEncodesBody(t *testing.T) {
	op := operation.Build(kube.Create, "apps/v1", "Deployment", restpath.Params{Namespace: "default"},
		map[string]any{"kind": "Deployment"})

	req, err := RunMiddleware([]Middleware{InitializeMiddleware{}, EncodeBodyMiddleware{}}, op, Request{Path: "/apis/apps/v1/namespaces/default/deployments"})
	require.NoError(t, err)
	require.Equal(t, "POST", req.Method)
	require.Equal(t, "application/json", req.Headers.Get("Content-Type"))
	require.JSONEq(t, `{"kind":"Deployment"}`, string(req.Body))
}

func TestEncodeBodySkipsReadVerbs(t *testing.T) {
	op := operation.Build(kube.Get, "v1", "Pod", restpath.Params{Namespace: "default", Name: "x"}, nil)
	req, err := RunMiddleware([]Middleware{InitializeMiddleware{}, EncodeBodyMiddleware{}}, op, Request{})
	require.NoError(t, err)
	require.Empty(t, req.Body)
}

func TestMiddlewareErrorIsWrappedWithIdentity(t *testing.T) {
	failing := failingMiddleware{}
	_, err := RunMiddleware([]Middleware{failing}, operation.Build(kube.Get, "v1", "Pod", restpath.Params{}, nil), Request{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "boom-middleware")
}

type failingMiddleware struct{}

func (failingMiddleware) Name() string { return "boom-middleware" }
func (failingMiddleware) Apply(operation.Operation, Request) (Request, error) {
	return Request{}, errors.New("boom")
}
