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

package list

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/GoogleCloudPlatform/kube-rest-engine/pkg/connection"
	"github.com/GoogleCloudPlatform/kube-rest-engine/pkg/discovery/staticdriver"
	"github.com/GoogleCloudPlatform/kube-rest-engine/pkg/kube"
	"github.com/GoogleCloudPlatform/kube-rest-engine/pkg/operation"
	"github.com/GoogleCloudPlatform/kube-rest-engine/pkg/restpath"
)

func podListDriver() staticdriver.Driver {
	return staticdriver.New(map[string][]kube.ResourceDescriptor{
		"v1": {{
			Kind:       "Pod",
			RESTName:   "pods",
			Namespaced: true,
			Verbs:      map[kube.Verb]bool{kube.List: true},
		}},
	})
}

func collect(t *testing.T, ch <-chan Item) []Item {
	t.Helper()
	var items []Item
	for it := range ch {
		items = append(items, it)
	}
	return items
}

func TestListFollowsContinueTokens(t *testing.T) {
	pages := []string{
		`{"kind":"PodList","metadata":{"continue":"page2"},"items":[{"metadata":{"name":"a"}}]}`,
		`{"kind":"PodList","metadata":{},"items":[{"metadata":{"name":"b"}}]}`,
	}
	var call int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(pages[call]))
		call++
	}))
	defer srv.Close()

	conn, err := connection.New(srv.URL, connection.WithDiscoveryDriver(podListDriver()))
	require.NoError(t, err)
	op := operation.Build(kube.List, "v1", "Pod", restpath.Params{Namespace: "default"}, nil)

	items := collect(t, List(context.Background(), conn, op))
	require.Len(t, items, 2)
	require.Equal(t, "a", items[0].Value["metadata"].(map[string]any)["name"])
	require.Equal(t, "b", items[1].Value["metadata"].(map[string]any)["name"])
	require.Equal(t, 2, call)
}

func TestListFoldsPathNameIntoFieldSelector(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"kind":"PodList","items":[]}`))
	}))
	defer srv.Close()

	conn, err := connection.New(srv.URL, connection.WithDiscoveryDriver(podListDriver()))
	require.NoError(t, err)
	op := operation.Build(kube.List, "v1", "Pod", restpath.Params{Namespace: "default", Name: "x"}, nil)

	_ = collect(t, List(context.Background(), conn, op))
	require.Equal(t, "fieldSelector=metadata.name%3Dx", gotQuery)
}

func TestListEmitsErrorAsFinalElement(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	conn, err := connection.New(srv.URL, connection.WithDiscoveryDriver(podListDriver()))
	require.NoError(t, err)
	op := operation.Build(kube.List, "v1", "Pod", restpath.Params{Namespace: "default"}, nil)

	items := collect(t, List(context.Background(), conn, op))
	require.Len(t, items, 1)
	require.Error(t, items[0].Err)
}

func TestListStopsOnContextCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"kind":"PodList","metadata":{"continue":"more"},"items":[{"metadata":{"name":"a"}}]}`))
	}))
	defer srv.Close()

	conn, err := connection.New(srv.URL, connection.WithDiscoveryDriver(podListDriver()))
	require.NoError(t, err)
	op := operation.Build(kube.List, "v1", "Pod", restpath.Params{Namespace: "default"}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	ch := List(ctx, conn, op)
	<-ch
	cancel()
	collect(t, ch)
}
