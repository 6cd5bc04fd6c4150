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

// Package exec implements the Exec/Attach Stream (C11): a bidirectional
// WebSocket session against pods/exec or pods/attach, demultiplexing
// stdout/stderr/error channels and accepting stdin writes (spec §4.6,
// §4.3 connect operations).
package exec

import (
	"context"

	"github.com/GoogleCloudPlatform/kube-rest-engine/pkg/connection"
	"github.com/GoogleCloudPlatform/kube-rest-engine/pkg/kerrors"
	"github.com/GoogleCloudPlatform/kube-rest-engine/pkg/operation"
	"github.com/GoogleCloudPlatform/kube-rest-engine/pkg/runner"
	"github.com/GoogleCloudPlatform/kube-rest-engine/pkg/transport"
)

// FrameEvent is one demultiplexed event off an exec/attach WebSocket, or
// - terminally - the error the session ended with (the same
// error-as-final-element convention as List/Watch).
type FrameEvent struct {
	Kind       transport.FrameKind
	Data       []byte
	CloseCode  int
	CloseError string
	Err        error
}

// Stream is a live exec/attach session: Events delivers demultiplexed
// frames, Send/Close drive the outgoing direction.
type Stream struct {
	adapter *transport.Adapter
	leased  transport.Leased
	ref     transport.RequestRef
	events  chan FrameEvent
}

// Events returns the channel of demultiplexed frames, closed once the
// session ends (cleanly or with an error as its final element).
func (s *Stream) Events() <-chan FrameEvent { return s.events }

// Send writes stdin bytes to the session (spec §6 "outgoing frame
// mapping", channel 0).
func (s *Stream) Send(data []byte) error {
	return s.adapter.WebsocketSend(s.ref, transport.Outgoing{Stdin: data})
}

// Close sends a normal WebSocket close frame.
func (s *Stream) Close() error {
	return s.adapter.WebsocketSend(s.ref, transport.Outgoing{Close: true})
}

// Cancel tears the session down immediately (spec §4.6 "cancellation
// must free adapter resources"), releasing the pool slot the lease
// checked out if this session rode an HTTP/1 pool.
func (s *Stream) Cancel() {
	s.adapter.Cancel(s.ref)
	s.leased.ReleasePool()
}

// Open resolves op (a Connect operation against pods/exec, pods/attach
// or pods/log -f) and upgrades a WebSocket to it, returning a Stream
// whose Events channel is fed in the background.
func Open(ctx context.Context, conn *connection.Connection, op operation.Operation) (*Stream, error) {
	resolved, err := runner.Resolve(ctx, conn, op)
	if err != nil {
		return nil, err
	}
	path := resolved.Path
	if q := op.EncodeQuery(); q != "" {
		path += "?" + q
	}

	tlsConfig, err := conn.TLSConfig(ctx)
	if err != nil {
		return nil, err
	}
	leased, err := conn.Registry().Lease(ctx, conn.Destination(), tlsConfig)
	if err != nil {
		return nil, &kerrors.HTTPError{Message: "lease adapter", Cause: err}
	}

	creds, _, err := conn.Credential().Resolve(ctx)
	if err != nil {
		leased.ReleasePool()
		return nil, &kerrors.ConfigurationError{Message: "resolve credential", Cause: err}
	}
	headers := creds.Headers.Clone()

	ref, err := leased.Adapter.WebsocketRequest(ctx, path, headers, tlsConfig)
	if err != nil {
		leased.ReleasePool()
		return nil, err
	}

	s := &Stream{adapter: leased.Adapter, leased: leased, ref: ref, events: make(chan FrameEvent)}
	go s.pump()
	return s, nil
}

func (s *Stream) pump() {
	defer close(s.events)
	defer s.leased.ReleasePool()

	for {
		part, ok := s.adapter.Recv(s.ref)
		if !ok {
			return
		}
		switch part.Kind {
		case transport.PartFrame:
			f := part.Frame
			s.events <- FrameEvent{Kind: f.Kind, Data: f.Data, CloseCode: f.CloseCode, CloseError: f.CloseError}
			if f.Kind == transport.FrameClose {
				return
			}
		case transport.PartDone:
			return
		case transport.PartError:
			s.events <- FrameEvent{Err: part.Err}
			return
		}
	}
}

// Result is the blocking-aggregate view of an exec session (spec §4.6
// "Aggregate ... collects stdout/stderr/error into buffers"): the
// non-interactive convenience Run offers callers who don't need to
// drive stdin live.
type Result struct {
	Stdout     []byte
	Stderr     []byte
	ErrorData  []byte
	CloseCode  int
	CloseError string
}

// Run opens op, writes stdin (if non-empty) once the session is live,
// and blocks until the session closes, returning the aggregated
// stdout/stderr/error buffers.
func Run(ctx context.Context, conn *connection.Connection, op operation.Operation, stdin []byte) (Result, error) {
	s, err := Open(ctx, conn, op)
	if err != nil {
		return Result{}, err
	}

	var res Result
	for ev := range s.Events() {
		if ev.Err != nil {
			return res, ev.Err
		}
		switch ev.Kind {
		case transport.FrameOpen:
			if len(stdin) > 0 {
				if err := s.Send(stdin); err != nil {
					return res, err
				}
			}
		case transport.FrameStdout:
			res.Stdout = append(res.Stdout, ev.Data...)
		case transport.FrameStderr:
			res.Stderr = append(res.Stderr, ev.Data...)
		case transport.FrameError:
			res.ErrorData = append(res.ErrorData, ev.Data...)
		case transport.FrameClose:
			res.CloseCode = ev.CloseCode
			res.CloseError = ev.CloseError
		}
	}
	return res, nil
}
