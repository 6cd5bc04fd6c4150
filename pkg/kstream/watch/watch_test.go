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

package watch

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/GoogleCloudPlatform/kube-rest-engine/pkg/connection"
	"github.com/GoogleCloudPlatform/kube-rest-engine/pkg/discovery/staticdriver"
	"github.com/GoogleCloudPlatform/kube-rest-engine/pkg/kube"
	"github.com/GoogleCloudPlatform/kube-rest-engine/pkg/operation"
	"github.com/GoogleCloudPlatform/kube-rest-engine/pkg/restpath"
)

func podWatchDriver() staticdriver.Driver {
	return staticdriver.New(map[string][]kube.ResourceDescriptor{
		"v1": {{
			Kind:       "Pod",
			RESTName:   "pods",
			Namespaced: true,
			Verbs:      map[kube.Verb]bool{kube.Watch: true},
		}},
	})
}

func TestWatchEmitsEventsAndTracksResourceVersion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("watch") != "true" {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"kind":"PodList","metadata":{"resourceVersion":"100"},"items":[]}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		flusher := w.(http.Flusher)
		fmt.Fprintln(w, `{"type":"ADDED","object":{"metadata":{"name":"a","resourceVersion":"101"}}}`)
		flusher.Flush()
		fmt.Fprintln(w, `{"type":"MODIFIED","object":{"metadata":{"name":"a","resourceVersion":"102"}}}`)
		flusher.Flush()
		<-r.Context().Done()
	}))
	defer srv.Close()

	conn, err := connection.New(srv.URL, connection.WithDiscoveryDriver(podWatchDriver()))
	require.NoError(t, err)
	op := operation.Build(kube.Watch, "v1", "Pod", restpath.Params{Namespace: "default"}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := Watch(ctx, conn, op)

	ev1 := <-ch
	require.NoError(t, ev1.Err)
	require.Equal(t, "ADDED", ev1.Type)

	ev2 := <-ch
	require.NoError(t, ev2.Err)
	require.Equal(t, "MODIFIED", ev2.Type)

	cancel()
	for range ch {
	}
}

func TestWatchSkipsBookmarksAndDedupsResourceVersion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("watch") != "true" {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"kind":"PodList","metadata":{"resourceVersion":"100"},"items":[]}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		flusher := w.(http.Flusher)
		fmt.Fprintln(w, `{"type":"BOOKMARK","object":{"metadata":{"resourceVersion":"101"}}}`)
		flusher.Flush()
		fmt.Fprintln(w, `{"type":"ADDED","object":{"metadata":{"name":"a","resourceVersion":"102"}}}`)
		flusher.Flush()
		<-r.Context().Done()
	}))
	defer srv.Close()

	conn, err := connection.New(srv.URL, connection.WithDiscoveryDriver(podWatchDriver()))
	require.NoError(t, err)
	op := operation.Build(kube.Watch, "v1", "Pod", restpath.Params{Namespace: "default"}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := Watch(ctx, conn, op)

	ev := <-ch
	require.NoError(t, ev.Err)
	require.Equal(t, "ADDED", ev.Type)

	cancel()
	for range ch {
	}
}

func TestWatchReconnectsOnExpiredWithRelist(t *testing.T) {
	var relists, watches int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("watch") != "true" {
			n := atomic.AddInt32(&relists, 1)
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(fmt.Sprintf(`{"kind":"PodList","metadata":{"resourceVersion":"%d"},"items":[]}`, n*100)))
			return
		}
		n := atomic.AddInt32(&watches, 1)
		if n == 1 {
			w.WriteHeader(http.StatusGone)
			_, _ = w.Write([]byte(`{"kind":"Status","reason":"Expired","message":"too old resource version","code":410}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		flusher := w.(http.Flusher)
		fmt.Fprintln(w, `{"type":"ADDED","object":{"metadata":{"name":"a","resourceVersion":"201"}}}`)
		flusher.Flush()
		<-r.Context().Done()
	}))
	defer srv.Close()

	conn, err := connection.New(srv.URL, connection.WithDiscoveryDriver(podWatchDriver()))
	require.NoError(t, err)
	op := operation.Build(kube.Watch, "v1", "Pod", restpath.Params{Namespace: "default"}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := Watch(ctx, conn, op)

	ev := <-ch
	require.NoError(t, ev.Err)
	require.Equal(t, "ADDED", ev.Type)
	require.Equal(t, int32(2), atomic.LoadInt32(&relists))

	cancel()
	for range ch {
	}
}

func TestWatchStopsOnContextCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("watch") != "true" {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"kind":"PodList","metadata":{"resourceVersion":"1"},"items":[]}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		flusher := w.(http.Flusher)
		fmt.Fprintln(w, `{"type":"ADDED","object":{"metadata":{"name":"a","resourceVersion":"2"}}}`)
		flusher.Flush()
		<-r.Context().Done()
	}))
	defer srv.Close()

	conn, err := connection.New(srv.URL, connection.WithDiscoveryDriver(podWatchDriver()))
	require.NoError(t, err)
	op := operation.Build(kube.Watch, "v1", "Pod", restpath.Params{Namespace: "default"}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	ch := Watch(ctx, conn, op)
	<-ch
	cancel()
	for range ch {
	}
}
