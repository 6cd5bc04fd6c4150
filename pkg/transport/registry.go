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
	"crypto/tls"
	"fmt"
	"net/http"
	"sync"

	"github.com/go-kit/log"
	"github.com/pkg/errors"
	"golang.org/x/net/http2"

	"github.com/GoogleCloudPlatform/kube-rest-engine/internal/kmetrics"
)

// entry is what the registry keeps per Destination: either a singleton
// HTTP/2 Adapter, or an HTTP/1.1 Pool - never both (spec §4.7).
type entry struct {
	singleton *Adapter
	pool      *Pool
}

// Registry maps (scheme,host,port,opts) destinations to the adapter or
// pool serving them, probing each destination's protocol exactly once
// (spec §4.7, C7).
type Registry struct {
	logger  log.Logger
	metrics *kmetrics.Metrics

	mu      sync.Mutex
	entries map[string]*entry
}

// NewRegistry constructs an empty Registry.
func NewRegistry(logger log.Logger, metrics *kmetrics.Metrics) *Registry {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	if metrics == nil {
		metrics = kmetrics.NoOp()
	}
	return &Registry{logger: logger, metrics: metrics, entries: map[string]*entry{}}
}

// Leased is the handle a caller uses to issue requests against a
// destination: either a singleton adapter shared by everyone, or a
// checked-out pool adapter that must be released via ReleasePool, or by
// passing Handle() to a request, which checks the slot back in when it
// finishes.
type Leased struct {
	Adapter *Adapter
	handle  *PoolHandle
}

// Handle returns the PoolHandle to thread into Adapter.Request/
// WebsocketRequest so the slot is checked back in when the request
// finishes. It is nil for a singleton (HTTP/2) lease.
func (l Leased) Handle() *PoolHandle { return l.handle }

// acquire returns (or lazily creates) the entry for dest, probing its
// protocol on first use by opening a real TLS connection and reading
// back the negotiated ALPN protocol (spec §4.7 step 1).
func (r *Registry) acquire(ctx context.Context, dest Destination, tlsConfig *tls.Config) (*entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.entries[dest.Key()]; ok {
		return e, nil
	}

	e := &entry{}
	useHTTP2 := false
	if dest.Scheme == "https" {
		negotiated, err := probeALPN(ctx, dest, tlsConfig)
		if err != nil {
			return nil, errors.Wrap(err, "probe negotiated protocol")
		}
		useHTTP2 = negotiated
	}
	if useHTTP2 {
		client := newHTTP2Client(tlsConfig)
		e.singleton = NewAdapter(dest, client, r.logger, r.metrics)
	} else {
		e.pool = NewPoolWithMetrics(dest, func() *Adapter {
			return NewAdapter(dest, newHTTP1Client(tlsConfig), r.logger, r.metrics)
		}, r.metrics)
	}
	r.entries[dest.Key()] = e
	return e, nil
}

// Lease returns the Adapter to use for dest, checking one out of the
// HTTP/1 pool if that's what this destination got (spec §4.7: HTTP/2
// destinations share one adapter, HTTP/1 destinations get a pool slot
// each).
func (r *Registry) Lease(ctx context.Context, dest Destination, tlsConfig *tls.Config) (Leased, error) {
	e, err := r.acquire(ctx, dest, tlsConfig)
	if err != nil {
		return Leased{}, err
	}
	if e.singleton != nil {
		return Leased{Adapter: e.singleton}, nil
	}
	a, handle, err := e.pool.Checkout(ctx)
	if err != nil {
		return Leased{}, err
	}
	return Leased{Adapter: a, handle: handle}, nil
}

// ReleasePool returns a pooled lease's slot directly, without requiring
// the caller to hold a *Pool reference - Registry never exposes one.
// A no-op for singleton (HTTP/2) leases. Pool leases consumed via
// Request/WebsocketRequest's pool handle release automatically on
// completion; this is for a caller that opens a Lease without ever
// handing the handle to a request, e.g. a websocket upgrade, whose
// Adapter it then owns and releases only once the connection closes.
func (l Leased) ReleasePool() {
	if l.handle != nil {
		l.handle.pool.checkin(l.handle.slot)
	}
}

// Evict forcibly closes and forgets the entry for dest, used when a
// destination's connection is known to be permanently broken.
func (r *Registry) Evict(dest Destination) {
	r.mu.Lock()
	e, ok := r.entries[dest.Key()]
	if ok {
		delete(r.entries, dest.Key())
	}
	r.mu.Unlock()

	if !ok {
		return
	}
	if e.singleton != nil {
		e.singleton.Close()
	}
	if e.pool != nil {
		e.pool.Close()
	}
}

// Close tears down every entry the registry holds.
func (r *Registry) Close() {
	r.mu.Lock()
	entries := make([]*entry, 0, len(r.entries))
	for _, e := range r.entries {
		entries = append(entries, e)
	}
	r.entries = map[string]*entry{}
	r.mu.Unlock()

	for _, e := range entries {
		if e.singleton != nil {
			e.singleton.Close()
		}
		if e.pool != nil {
			e.pool.Close()
		}
	}
}

// probeALPN opens a probe TLS connection to dest and reports whether the
// server negotiated h2 over ALPN (spec §4.7 step 1), closing the probe
// connection before returning (spec §4.7 step 4) - the actual registry
// entry's adapter/pool dials its own connections afterward.
func probeALPN(ctx context.Context, dest Destination, tlsConfig *tls.Config) (bool, error) {
	cfg := tlsConfig.Clone()
	if cfg == nil {
		cfg = &tls.Config{}
	}
	if len(cfg.NextProtos) == 0 {
		cfg.NextProtos = []string{"h2", "http/1.1"}
	}

	dialer := tls.Dialer{Config: cfg}
	conn, err := dialer.DialContext(ctx, "tcp", fmt.Sprintf("%s:%d", dest.Host, dest.Port))
	if err != nil {
		return false, err
	}
	defer conn.Close()

	tlsConn, ok := conn.(*tls.Conn)
	if !ok {
		return false, errors.New("probe connection is not a *tls.Conn")
	}
	return tlsConn.ConnectionState().NegotiatedProtocol == "h2", nil
}

func newHTTP2Client(tlsConfig *tls.Config) *http.Client {
	tr := &http2.Transport{TLSClientConfig: tlsConfig}
	return &http.Client{Transport: tr}
}

func newHTTP1Client(tlsConfig *tls.Config) *http.Client {
	tr := &http.Transport{TLSClientConfig: tlsConfig}
	return &http.Client{Transport: tr}
}
