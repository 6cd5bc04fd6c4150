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

// Package connection holds the Connection data model (spec §3, C5):
// cluster coordinates, credential, middleware stack and the per-connection
// Registry/Discovery handles a Runner consults to reach a cluster.
package connection

import (
	"context"
	"crypto/tls"
	"net/url"
	"time"

	"github.com/go-kit/log"

	"github.com/GoogleCloudPlatform/kube-rest-engine/internal/kmetrics"
	"github.com/GoogleCloudPlatform/kube-rest-engine/pkg/auth"
	"github.com/GoogleCloudPlatform/kube-rest-engine/pkg/discovery"
	"github.com/GoogleCloudPlatform/kube-rest-engine/pkg/discovery/httpdriver"
	"github.com/GoogleCloudPlatform/kube-rest-engine/pkg/kerrors"
	"github.com/GoogleCloudPlatform/kube-rest-engine/pkg/transport"
)

// discoveryCacheTTL is the default CachingDriver TTL (DESIGN.md Open
// Question #3).
const discoveryCacheTTL = 10 * time.Minute

func defaultHTTPDriver() discovery.Driver { return httpdriver.New() }

// Connection is immutable after construction, exactly like the
// kubeconfig- or service-account-derived rest.Config a caller builds
// once and reuses (spec §3 "Created by an external collaborator ...
// Immutable after construction").
type Connection struct {
	baseURL            *url.URL
	caCert             []byte
	insecureSkipVerify bool
	credential         auth.Credential
	middleware         []Middleware
	discoveryDriver    discovery.Driver
	registry           *transport.Registry
	logger             log.Logger
	metrics            *kmetrics.Metrics
}

// Option configures a Connection at construction time, the same
// functional-options shape the teacher uses for its own config structs.
type Option func(*Connection)

// WithCACert sets the PEM-encoded CA certificate used to verify the
// server (spec §4.5 "CA cert taken from connection").
func WithCACert(pem []byte) Option { return func(c *Connection) { c.caCert = pem } }

// WithInsecureSkipVerify disables peer certificate verification.
func WithInsecureSkipVerify(skip bool) Option {
	return func(c *Connection) { c.insecureSkipVerify = skip }
}

// WithCredential sets the credential chain tried in auth priority order.
func WithCredential(cred auth.Credential) Option { return func(c *Connection) { c.credential = cred } }

// WithMiddleware appends middleware after the default Initialize+EncodeBody
// stack (spec §4.8).
func WithMiddleware(mw ...Middleware) Option {
	return func(c *Connection) { c.middleware = append(c.middleware, mw...) }
}

// WithDiscoveryDriver overrides the default HTTP discovery driver, e.g.
// with a staticdriver.Driver or a discovery.CachingDriver in tests.
func WithDiscoveryDriver(d discovery.Driver) Option {
	return func(c *Connection) { c.discoveryDriver = d }
}

// WithLogger sets the connection's go-kit logger, propagated to the
// registry/adapters it creates.
func WithLogger(logger log.Logger) Option { return func(c *Connection) { c.logger = logger } }

// WithMetrics sets the Prometheus metrics bundle propagated to the
// registry/adapters this connection creates.
func WithMetrics(m *kmetrics.Metrics) Option { return func(c *Connection) { c.metrics = m } }

// New constructs a Connection against baseURL (e.g.
// "https://10.0.0.1:6443"), wiring a fresh Registry and the default
// middleware stack, then applying opts.
func New(baseURL string, opts ...Option) (*Connection, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, &kerrors.ConfigurationError{Message: "invalid connection URL", Cause: err}
	}

	c := &Connection{
		baseURL:    u,
		middleware: []Middleware{InitializeMiddleware{}, EncodeBodyMiddleware{}},
		logger:     log.NewNopLogger(),
		metrics:    kmetrics.NoOp(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.discoveryDriver == nil {
		c.discoveryDriver = discovery.NewCachingDriver(defaultHTTPDriver(), discoveryCacheTTL)
	}
	if c.registry == nil {
		c.registry = transport.NewRegistry(c.logger, c.metrics)
	}
	return c, nil
}

// Identity is the stable key the discovery cache and pool keying use to
// distinguish otherwise-identical hosts by TLS options - the skip-verify
// flag and whether a CA certificate is set; the credential is not part
// of it (spec §4.7 "opts" component of the destination tuple).
func (c *Connection) Identity() string {
	return c.baseURL.String() + "#" + c.optsFingerprint()
}

func (c *Connection) optsFingerprint() string {
	fp := ""
	if c.insecureSkipVerify {
		fp += "insecure;"
	}
	if len(c.caCert) > 0 {
		fp += "ca;"
	}
	return fp
}

// BaseURL returns the cluster's base URL.
func (c *Connection) BaseURL() *url.URL { return c.baseURL }

// Destination returns the transport.Destination this connection's
// requests are dispatched against.
func (c *Connection) Destination() transport.Destination {
	port := c.baseURL.Port()
	if port == "" {
		if c.baseURL.Scheme == "https" {
			port = "443"
		} else {
			port = "80"
		}
	}
	return transport.Destination{Scheme: c.baseURL.Scheme, Host: c.baseURL.Hostname(), Port: atoiPort(port), OptsKey: c.optsFingerprint()}
}

func atoiPort(s string) int {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0
		}
		n = n*10 + int(r-'0')
	}
	return n
}

// TLSConfig builds the *tls.Config this connection's requests (and
// websocket upgrades) negotiate with, folding in any TLS material the
// credential chain contributes (spec §4.5 "Client-certificate ...
// contributes {cert, key} TLS material").
func (c *Connection) TLSConfig(ctx context.Context) (*tls.Config, error) {
	opts, _, err := c.Credential().Resolve(ctx)
	if err != nil {
		return nil, &kerrors.ConfigurationError{Message: "resolve credential", Cause: err}
	}
	return auth.TLSConfig(c.caCert, c.insecureSkipVerify, opts.ClientCert, c.baseURL.Hostname())
}

// Credential returns the connection's credential chain, or a chain that
// always declines if none was configured.
func (c *Connection) Credential() auth.Credential {
	if c.credential == nil {
		return auth.Chain(nil)
	}
	return c.credential
}

// DiscoveryDriver returns the connection's discovery.Driver handle.
func (c *Connection) DiscoveryDriver() discovery.Driver { return c.discoveryDriver }

// DiscoveryContext builds the discovery.Context Runner/Streams pass to
// Resolve, wiring Do to issue GETs through this connection's own
// registry/adapter machinery.
func (c *Connection) DiscoveryContext(doer func(ctx context.Context, path string) ([]byte, error)) discovery.Context {
	return discovery.Context{Identity: c.Identity(), Do: doer}
}

// Registry returns the connection's Connection Registry (C7) handle.
func (c *Connection) Registry() *transport.Registry { return c.registry }

// Middleware returns the ordered middleware stack (spec §4.8).
func (c *Connection) Middleware() []Middleware { return c.middleware }

// Logger returns the connection's logger.
func (c *Connection) Logger() log.Logger { return c.logger }

// Metrics returns the connection's metrics bundle.
func (c *Connection) Metrics() *kmetrics.Metrics { return c.metrics }
