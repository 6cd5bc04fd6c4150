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

// Package watch implements the Watch Stream (C10): an infinite lazy
// sequence of ADDED/MODIFIED/DELETED events, tracking resourceVersion
// and resuming across expired watches, idle timeouts, malformed chunks
// and async closes (spec §4.10).
package watch

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"k8s.io/client-go/util/workqueue"

	"github.com/GoogleCloudPlatform/kube-rest-engine/internal/resource"
	"github.com/GoogleCloudPlatform/kube-rest-engine/internal/wireframe"
	"github.com/GoogleCloudPlatform/kube-rest-engine/pkg/connection"
	"github.com/GoogleCloudPlatform/kube-rest-engine/pkg/kerrors"
	"github.com/GoogleCloudPlatform/kube-rest-engine/pkg/operation"
	"github.com/GoogleCloudPlatform/kube-rest-engine/pkg/runner"
)

// backoffBase/backoffCap are the reconnect backoff bounds (DESIGN.md
// Open Question #2): spec §4.10 step 5 says only "log and reconnect",
// not a numeric schedule.
const (
	backoffBase = 200 * time.Millisecond
	backoffCap  = 10 * time.Second
	backoffKey  = "watch"
)

// Event is one decoded watch event, or - terminally - the error that
// ended the sequence (spec §4.10 "{type, object}", and §4.9's
// error-as-final-element convention applied the same way here).
type Event struct {
	Type   string
	Object resource.Map
	Err    error
}

// rawEvent is the wire shape of one NDJSON watch chunk.
type rawEvent struct {
	Type   string       `json:"type"`
	Object resource.Map `json:"object"`
}

// outcome is what one streaming connection attempt ended with.
type outcome int

const (
	outcomeReconnect outcome = iota
	outcomeExpired
	outcomeFatal
	outcomeCancelled
)

// Watch runs op (a Watch/WatchAllNamespaces operation) and returns a
// channel of Events. The channel stays open across transient failures,
// reconnecting with backoff, and closes only when ctx is cancelled or a
// fatal server error ends the sequence.
func Watch(ctx context.Context, conn *connection.Connection, op operation.Operation) <-chan Event {
	out := make(chan Event)
	go run(ctx, conn, op, out)
	return out
}

func run(ctx context.Context, conn *connection.Connection, op operation.Operation, out chan<- Event) {
	defer close(out)

	resolved, err := runner.Resolve(ctx, conn, op)
	if err != nil {
		emit(ctx, out, Event{Err: err})
		return
	}

	rv, err := relist(ctx, conn, resolved.Path, op)
	if err != nil {
		emit(ctx, out, Event{Err: err})
		return
	}

	limiter := workqueue.NewItemExponentialFailureRateLimiter(backoffBase, backoffCap)
	logger := conn.Logger()

	for {
		if ctx.Err() != nil {
			return
		}

		status, headers, handle, err := runner.Stream(ctx, conn, http.MethodGet, watchPath(resolved.Path, op, rv), nil)
		if err != nil {
			level.Debug(logger).Log("msg", "watch connect failed, reconnecting", "err", err)
			if !backoffSleep(ctx, limiter) {
				return
			}
			continue
		}

		if status < 200 || status >= 300 {
			body := drainBody(handle)
			serr := runner.DecodeStatusError(status, headers, body)
			if kerrors.IsExpired(serr) {
				rv, err = relist(ctx, conn, resolved.Path, op)
				if err != nil {
					emit(ctx, out, Event{Err: err})
					return
				}
				limiter.Forget(backoffKey)
				continue
			}
			emit(ctx, out, Event{Err: serr})
			return
		}

		var result outcome
		rv, result = decodeEvents(ctx, handle, rv, out, limiter, logger)
		switch result {
		case outcomeFatal, outcomeCancelled:
			return
		case outcomeExpired:
			rv, err = relist(ctx, conn, resolved.Path, op)
			if err != nil {
				emit(ctx, out, Event{Err: err})
				return
			}
			limiter.Forget(backoffKey)
		case outcomeReconnect:
			if !backoffSleep(ctx, limiter) {
				return
			}
		}
	}
}

// decodeEvents reads events from handle until the stream ends, updating
// rv as it goes, and reports why it stopped.
func decodeEvents(ctx context.Context, handle runner.StreamHandle, rv string, out chan<- Event, limiter workqueue.RateLimiter, logger log.Logger) (string, outcome) {
	dec := wireframe.NewEventDecoder(handle.Next)
	for {
		var raw rawEvent
		if err := dec.Decode(&raw); err != nil {
			if ctx.Err() != nil {
				return rv, outcomeCancelled
			}
			level.Debug(logger).Log("msg", "watch stream ended, reconnecting", "err", err)
			return rv, outcomeReconnect
		}

		if raw.Type == "ERROR" {
			apiErr := statusError(raw.Object)
			if kerrors.IsExpired(apiErr) {
				return rv, outcomeExpired
			}
			emit(ctx, out, Event{Err: apiErr})
			return rv, outcomeFatal
		}

		if newRV := resource.ResourceVersion(raw.Object); newRV != "" {
			if newRV == rv {
				continue // dedup after reconnect (spec §4.10 step 4)
			}
			rv = newRV
		}

		if raw.Type == "BOOKMARK" {
			continue
		}

		if !emit(ctx, out, Event{Type: raw.Type, Object: raw.Object}) {
			return rv, outcomeCancelled
		}
		limiter.Forget(backoffKey)
	}
}

// statusError builds a kerrors.APIError from an ERROR event's embedded
// Kubernetes Status object.
func statusError(obj resource.Map) *kerrors.APIError {
	reason, _ := obj["reason"].(string)
	message, _ := obj["message"].(string)
	code := 0
	if c, ok := obj["code"].(float64); ok {
		code = int(c)
	}
	return &kerrors.APIError{Reason: reason, Message: message, Code: code}
}

// relist issues the non-watch GET spec §4.10 step 1 describes, to seed
// (or reseed, after a 410) resourceVersion.
func relist(ctx context.Context, conn *connection.Connection, path string, op operation.Operation) (string, error) {
	full := path
	if q := op.EncodeQuery(); q != "" {
		full += "?" + q
	}
	status, headers, body, err := runner.Dispatch(ctx, conn, http.MethodGet, full, nil, nil)
	if err != nil {
		return "", err
	}
	if status < 200 || status >= 300 {
		return "", runner.DecodeStatusError(status, headers, body)
	}
	var obj resource.Map
	if err := json.Unmarshal(body, &obj); err != nil {
		return "", &kerrors.HTTPError{Message: "decode list response: " + err.Error()}
	}
	return resource.ResourceVersion(obj), nil
}

// watchPath appends the watch query params spec §4.10 step 2 names to
// path, preserving op's own selectors/limit.
func watchPath(path string, op operation.Operation, rv string) string {
	wop := op.
		PutQueryParam("watch", true).
		PutQueryParam("resourceVersion", rv).
		PutQueryParam("allowWatchBookmarks", true)
	return path + "?" + wop.EncodeQuery()
}

func drainBody(h runner.StreamHandle) []byte {
	var body []byte
	for {
		data, ok, err := h.Next()
		if !ok || err != nil {
			return body
		}
		body = append(body, data...)
	}
}

func emit(ctx context.Context, out chan<- Event, ev Event) bool {
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

func backoffSleep(ctx context.Context, limiter workqueue.RateLimiter) bool {
	t := time.NewTimer(limiter.When(backoffKey))
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
