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

// Package auth implements the Auth/Request Options abstraction (spec
// §4.5, C5): a credential value that produces, on demand, per-request
// headers plus TLS material. Acquiring the underlying secret (parsing a
// kubeconfig, running an exec plugin, talking to an auth-provider shell
// command) is explicitly out of scope (spec §1) and left to the caller;
// this package only defines the interface point and the five built-in
// variants' *shapes*.
package auth

import (
	"context"
	"crypto/tls"
	"net/http"
)

// RequestOptions is what a Credential contributes to one request.
type RequestOptions struct {
	Headers    http.Header
	ClientCert *tls.Certificate // non-nil only for the client-certificate variant.
}

// Credential produces RequestOptions on demand, or declines (ok=false) so
// the next variant in a Chain can try (spec §4.5 "the first that does not
// decline wins").
type Credential interface {
	Resolve(ctx context.Context) (opts RequestOptions, ok bool, err error)
}

// Chain tries each Credential in order and returns the first that doesn't
// decline (spec §4.5: client-certificate, bearer token, auth-provider,
// exec plugin, HTTP basic, in that order). Chain itself implements
// Credential, so a fully-assembled chain is indistinguishable from any of
// its members to a caller holding just the interface.
type Chain []Credential

func (c Chain) Resolve(ctx context.Context) (RequestOptions, bool, error) {
	for _, cred := range c {
		opts, ok, err := cred.Resolve(ctx)
		if err != nil {
			return RequestOptions{}, false, err
		}
		if ok {
			return opts, true, nil
		}
	}
	return RequestOptions{}, false, nil
}

// ClientCertificate contributes {cert, key} TLS material (spec §4.5 #1).
type ClientCertificate struct {
	Cert tls.Certificate
}

func (c ClientCertificate) Resolve(context.Context) (RequestOptions, bool, error) {
	return RequestOptions{ClientCert: &c.Cert}, true, nil
}

// BearerToken contributes `Authorization: Bearer ...` (spec §4.5 #2).
// Token may be a static value or re-read on every call (e.g. a
// projected-service-account token file) - that refresh policy belongs to
// the caller supplying TokenFunc.
type BearerToken struct {
	TokenFunc func(ctx context.Context) (string, error)
}

func (b BearerToken) Resolve(ctx context.Context) (RequestOptions, bool, error) {
	if b.TokenFunc == nil {
		return RequestOptions{}, false, nil
	}
	tok, err := b.TokenFunc(ctx)
	if err != nil {
		return RequestOptions{}, false, err
	}
	if tok == "" {
		return RequestOptions{}, false, nil
	}
	h := http.Header{}
	h.Set("Authorization", "Bearer "+tok)
	return RequestOptions{Headers: h}, true, nil
}

// AuthProvider models a shell-exec-mediated token source (spec §4.5 #3):
// a persistent credential plugin configured in kubeconfig's
// `users[].user.auth-provider`. Acquiring/refreshing the token is the
// external collaborator's job; TokenFunc is that collaborator's hook.
type AuthProvider struct {
	Name      string
	TokenFunc func(ctx context.Context) (string, error)
}

func (a AuthProvider) Resolve(ctx context.Context) (RequestOptions, bool, error) {
	return BearerToken{TokenFunc: a.TokenFunc}.Resolve(ctx)
}

// ExecCredential models kubeconfig's `users[].user.exec` credential
// plugin protocol (spec §4.5 #4) - an external process invoked per the
// client.authentication.k8s.io ExecCredential schema. Running the plugin
// is out of scope; TokenFunc is the collaborator's hook.
type ExecCredential struct {
	TokenFunc func(ctx context.Context) (string, error)
}

func (e ExecCredential) Resolve(ctx context.Context) (RequestOptions, bool, error) {
	return BearerToken{TokenFunc: e.TokenFunc}.Resolve(ctx)
}

// BasicAuth contributes HTTP Basic credentials (spec §4.5 #5).
type BasicAuth struct {
	Username, Password string
}

func (b BasicAuth) Resolve(context.Context) (RequestOptions, bool, error) {
	if b.Username == "" {
		return RequestOptions{}, false, nil
	}
	h := http.Header{}
	req := &http.Request{Header: h}
	req.SetBasicAuth(b.Username, b.Password)
	return RequestOptions{Headers: h}, true, nil
}
