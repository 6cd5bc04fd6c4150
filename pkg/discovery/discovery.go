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

// Package discovery implements the Discovery Cache (C4): resolving
// (apiVersion, kind) to a kube.ResourceDescriptor via a pluggable Driver,
// and building request URLs from the result (spec §4.4).
package discovery

import (
	"context"

	"github.com/GoogleCloudPlatform/kube-rest-engine/pkg/kube"
)

// Context is everything a Driver needs to reach an API server, carried
// separately from pkg/connection.Connection so this package never
// depends on the connection/transport layer above it (discovery sits
// below Runner/Streams and above transport in the dependency graph, but
// must not import either).
type Context struct {
	// Identity is a stable key (e.g. the connection's base URL plus
	// TLS-options fingerprint) the caching driver keys its TTL entries by.
	Identity string
	// Do issues a GET against path (already absolute, e.g. "/apis") and
	// returns the decoded discovery document body. Supplied by the
	// connection layer so this package never constructs its own client.
	Do func(ctx context.Context, path string) ([]byte, error)
}

// Driver resolves API groups/versions and their resources (spec §4.4).
type Driver interface {
	// Versions lists every apiVersion the server/fixture advertises.
	Versions(ctx context.Context, dc Context) ([]string, error)
	// Resources lists the ResourceDescriptors for one apiVersion.
	Resources(ctx context.Context, dc Context, apiVersion string) ([]kube.ResourceDescriptor, error)
}
