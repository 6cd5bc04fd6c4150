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

package discovery

import (
	"context"
	"sync"
	"time"

	"github.com/GoogleCloudPlatform/kube-rest-engine/pkg/kube"
)

// cacheEntry holds one apiVersion's resolved resources plus the time it
// was fetched, for TTL expiry.
type cacheEntry struct {
	resources []kube.ResourceDescriptor
	fetchedAt time.Time
}

// CachingDriver wraps another Driver with a per-Connection-identity TTL
// cache (DESIGN.md Open Question #3; SPEC_FULL.md [SUPPLEMENT]). Unlike a
// package-level cache, each CachingDriver instance is scoped to the
// Connection that created it, so test suites get isolation for free by
// constructing one per test instead of sharing global state.
type CachingDriver struct {
	inner Driver
	ttl   time.Duration

	mu    sync.Mutex
	byKey map[string]map[string]cacheEntry // identity -> apiVersion -> entry.
}

// NewCachingDriver wraps inner with a cache whose entries expire after ttl.
func NewCachingDriver(inner Driver, ttl time.Duration) *CachingDriver {
	return &CachingDriver{inner: inner, ttl: ttl, byKey: map[string]map[string]cacheEntry{}}
}

// Versions always defers to inner - version lists are cheap and change
// rarely enough that caching them isn't worth the staleness risk.
func (c *CachingDriver) Versions(ctx context.Context, dc Context) ([]string, error) {
	return c.inner.Versions(ctx, dc)
}

// Resources serves from cache when a fresh entry exists, refreshing
// through inner otherwise.
func (c *CachingDriver) Resources(ctx context.Context, dc Context, apiVersion string) ([]kube.ResourceDescriptor, error) {
	if descs, ok := c.lookup(dc.Identity, apiVersion); ok {
		return descs, nil
	}
	descs, err := c.inner.Resources(ctx, dc, apiVersion)
	if err != nil {
		return nil, err
	}
	c.store(dc.Identity, apiVersion, descs)
	return descs, nil
}

// Invalidate forces the next Resources call for identity/apiVersion to
// refresh through inner - used when a DiscoveryError{NotDiscovered} is
// observed, per DESIGN.md Open Question #3 ("a cache miss forces one
// synchronous refresh before failing").
func (c *CachingDriver) Invalidate(identity, apiVersion string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if m, ok := c.byKey[identity]; ok {
		delete(m, apiVersion)
	}
}

func (c *CachingDriver) lookup(identity, apiVersion string) ([]kube.ResourceDescriptor, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.byKey[identity]
	if !ok {
		return nil, false
	}
	e, ok := m[apiVersion]
	if !ok || time.Since(e.fetchedAt) > c.ttl {
		return nil, false
	}
	return e.resources, true
}

func (c *CachingDriver) store(identity, apiVersion string, descs []kube.ResourceDescriptor) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.byKey[identity]
	if !ok {
		m = map[string]cacheEntry{}
		c.byKey[identity] = m
	}
	m[apiVersion] = cacheEntry{resources: descs, fetchedAt: time.Now()}
}
