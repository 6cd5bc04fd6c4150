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

package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/GoogleCloudPlatform/kube-rest-engine/internal/kmetrics"
)

func testDestination(t *testing.T, srv *httptest.Server) Destination {
	t.Helper()
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)
	return Destination{Scheme: u.Scheme, Host: u.Hostname(), Port: port}
}

func drain(t *testing.T, a *Adapter, ref RequestRef) []Part {
	t.Helper()
	var parts []Part
	for {
		p, ok := a.Recv(ref)
		if !ok {
			return parts
		}
		parts = append(parts, p)
		if p.Kind == PartDone || p.Kind == PartError {
			return parts
		}
	}
}

func TestAdapterRequestDeliversOrderedParts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"kind":"Pod"}`))
	}))
	defer srv.Close()

	a := NewAdapter(testDestination(t, srv), srv.Client(), nil, kmetrics.NoOp())
	defer a.Close()

	ref, err := a.Request(context.Background(), http.MethodGet, "/api/v1/namespaces/default/pods/x", nil, nil, nil, nil)
	require.NoError(t, err)

	parts := drain(t, a, ref)
	require.GreaterOrEqual(t, len(parts), 3)
	require.Equal(t, PartStatus, parts[0].Kind)
	require.Equal(t, http.StatusOK, parts[0].Status)
	require.Equal(t, PartHeaders, parts[1].Kind)
	require.Equal(t, PartDone, parts[len(parts)-1].Kind)
}

func TestAdapterRequestSurfacesTransportError(t *testing.T) {
	a := NewAdapter(Destination{Scheme: "http", Host: "127.0.0.1", Port: 1}, &http.Client{Timeout: time.Second}, nil, kmetrics.NoOp())
	defer a.Close()

	ref, err := a.Request(context.Background(), http.MethodGet, "/", nil, nil, nil, nil)
	require.NoError(t, err)

	parts := drain(t, a, ref)
	require.NotEmpty(t, parts)
	require.Equal(t, PartError, parts[len(parts)-1].Kind)
}

func TestAdapterSinkDeliveryBypassesBuffer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	a := NewAdapter(testDestination(t, srv), srv.Client(), nil, kmetrics.NoOp())
	defer a.Close()

	ch := make(chan Part, 8)
	_, err := a.Request(context.Background(), http.MethodGet, "/", nil, nil, nil, ChanSink(ch))
	require.NoError(t, err)

	var kinds []PartKind
	for p := range ch {
		kinds = append(kinds, p.Kind)
		if p.Kind == PartDone {
			break
		}
	}
	require.Equal(t, []PartKind{PartStatus, PartHeaders, PartDone}, kinds)
}

func TestAdapterCancelPropagates(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	a := NewAdapter(testDestination(t, srv), srv.Client(), nil, kmetrics.NoOp())
	defer a.Close()

	ref, err := a.Request(context.Background(), http.MethodGet, "/", nil, nil, nil, nil)
	require.NoError(t, err)

	a.Cancel(ref)
	parts := drain(t, a, ref)
	require.NotEmpty(t, parts)
	require.Equal(t, PartError, parts[len(parts)-1].Kind)
}

func TestAdapterCloseRejectsNewRequests(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	a := NewAdapter(testDestination(t, srv), srv.Client(), nil, kmetrics.NoOp())
	a.Close()

	_, err := a.Request(context.Background(), http.MethodGet, "/", nil, nil, nil, nil)
	require.Error(t, err)
}
