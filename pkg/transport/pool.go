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
	"time"

	"github.com/GoogleCloudPlatform/kube-rest-engine/internal/kmetrics"
	"github.com/GoogleCloudPlatform/kube-rest-engine/pkg/kerrors"
)

// poolBaseSize and poolOverflowSize implement spec §4.7's HTTP/1 pool
// sizing: 10 warm adapters plus 20 overflow created on demand and
// discarded when idle.
const (
	poolBaseSize     = 10
	poolOverflowSize = 20
	poolCapacity     = poolBaseSize + poolOverflowSize
)

// checkoutTimeout is how long Checkout waits for a free slot before
// surfacing a pool-exhausted error (DESIGN.md Open Question #4).
const checkoutTimeout = 30 * time.Second

// Pool is a bounded FIFO of HTTP/1.1 Adapters sharing one Destination,
// used when the registry's protocol probe finds no HTTP/2 support
// (spec §4.7).
type Pool struct {
	dest    Destination
	newFunc func() *Adapter
	metrics *kmetrics.Metrics

	tokens chan int  // free slot indices, FIFO via buffered channel.
	slots  []*Adapter // lazily populated, index-addressed by token.
}

// NewPool constructs a pool that lazily creates up to poolCapacity
// adapters via newFunc.
func NewPool(dest Destination, newFunc func() *Adapter) *Pool {
	return NewPoolWithMetrics(dest, newFunc, kmetrics.NoOp())
}

// NewPoolWithMetrics is NewPool with an explicit metrics bundle, used by
// the registry so pool wait time and checkout outcomes are observable.
func NewPoolWithMetrics(dest Destination, newFunc func() *Adapter, metrics *kmetrics.Metrics) *Pool {
	p := &Pool{
		dest:    dest,
		newFunc: newFunc,
		metrics: metrics,
		tokens:  make(chan int, poolCapacity),
		slots:   make([]*Adapter, poolCapacity),
	}
	for i := 0; i < poolCapacity; i++ {
		p.tokens <- i
	}
	return p
}

// Checkout reserves a slot and returns its Adapter (creating one lazily
// on first use of that slot) and a PoolHandle to check it back in.
// It surfaces a pool-exhausted error if no slot frees up within
// checkoutTimeout (spec §4.7 "connection pool empty").
func (p *Pool) Checkout(ctx context.Context) (*Adapter, *PoolHandle, error) {
	start := time.Now()
	timer := time.NewTimer(checkoutTimeout)
	defer timer.Stop()

	select {
	case slot := <-p.tokens:
		p.metrics.PoolCheckouts.WithLabelValues("ok").Inc()
		p.metrics.PoolWaitSeconds.WithLabelValues(p.dest.Key()).Observe(time.Since(start).Seconds())
		if p.slots[slot] == nil {
			p.slots[slot] = p.newFunc()
		}
		return p.slots[slot], &PoolHandle{pool: p, slot: slot}, nil
	case <-ctx.Done():
		p.metrics.PoolCheckouts.WithLabelValues("canceled").Inc()
		return nil, nil, ctx.Err()
	case <-timer.C:
		p.metrics.PoolCheckouts.WithLabelValues("timeout").Inc()
		return nil, nil, &kerrors.HTTPError{Message: "connection pool empty: checkout timed out"}
	}
}

// checkin returns a slot to the FIFO; overflow slots (index >=
// poolBaseSize) are torn down rather than kept warm, matching the
// spec's "overflow created on demand, discarded when idle" policy.
func (p *Pool) checkin(slot int) {
	if slot >= poolBaseSize && p.slots[slot] != nil {
		p.slots[slot].Close()
		p.slots[slot] = nil
	}
	p.tokens <- slot
}

// Close tears down every adapter the pool has created.
func (p *Pool) Close() {
	for _, a := range p.slots {
		if a != nil {
			a.Close()
		}
	}
}
