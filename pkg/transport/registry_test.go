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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/GoogleCloudPlatform/kube-rest-engine/internal/kmetrics"
)

func TestRegistryPlaintextDestinationUsesPool(t *testing.T) {
	srv := httptest.NewServer(nil)
	defer srv.Close()

	r := NewRegistry(nil, kmetrics.NoOp())
	defer r.Close()

	dest := testDestination(t, srv)
	leased1, err := r.Lease(context.Background(), dest, nil)
	require.NoError(t, err)
	require.NotNil(t, leased1.Adapter)

	e, err := r.acquire(context.Background(), dest, nil)
	require.NoError(t, err)
	require.Nil(t, e.singleton)
	require.NotNil(t, e.pool)
}

func TestRegistryReusesSameEntryForSameDestination(t *testing.T) {
	srv := httptest.NewServer(nil)
	defer srv.Close()

	r := NewRegistry(nil, kmetrics.NoOp())
	defer r.Close()

	dest := testDestination(t, srv)
	e1, err := r.acquire(context.Background(), dest, nil)
	require.NoError(t, err)
	e2, err := r.acquire(context.Background(), dest, nil)
	require.NoError(t, err)
	require.Same(t, e1, e2)
}

func TestRegistryHTTPSDestinationNegotiatesHTTP2(t *testing.T) {
	srv := httptest.NewUnstartedServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.EnableHTTP2 = true
	srv.StartTLS()
	defer srv.Close()

	tlsConfig := srv.Client().Transport.(*http.Transport).TLSClientConfig.Clone()

	r := NewRegistry(nil, kmetrics.NoOp())
	defer r.Close()

	dest := testDestination(t, srv)
	e, err := r.acquire(context.Background(), dest, tlsConfig)
	require.NoError(t, err)
	require.NotNil(t, e.singleton)
	require.Nil(t, e.pool)
}

func TestRegistryHTTPSDestinationWithoutHTTP2UsesPool(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	defer srv.Close()

	tlsConfig := srv.Client().Transport.(*http.Transport).TLSClientConfig.Clone()

	r := NewRegistry(nil, kmetrics.NoOp())
	defer r.Close()

	dest := testDestination(t, srv)
	e, err := r.acquire(context.Background(), dest, tlsConfig)
	require.NoError(t, err)
	require.Nil(t, e.singleton)
	require.NotNil(t, e.pool)
}

func TestPoolCheckoutExhaustion(t *testing.T) {
	srv := httptest.NewServer(nil)
	defer srv.Close()
	dest := testDestination(t, srv)

	p := NewPool(dest, func() *Adapter { return NewAdapter(dest, srv.Client(), nil, kmetrics.NoOp()) })
	defer p.Close()

	var handles []*PoolHandle
	for i := 0; i < poolCapacity; i++ {
		_, h, err := p.Checkout(context.Background())
		require.NoError(t, err)
		handles = append(handles, h)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := p.Checkout(ctx)
	require.Error(t, err)

	for _, h := range handles {
		p.checkin(h.slot)
	}
}
