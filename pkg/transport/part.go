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

// Package transport implements the HTTP Adapter (C6) and Connection
// Registry (C7): a per-destination worker that owns one transport
// connection and multiplexes requests/websockets over it, plus the
// registry that maps destinations to adapters or HTTP/1 pools (spec §4.6,
// §4.7).
package transport

import "net/http"

// PartKind tags a Part's payload (spec §4.6 "Response-part taxonomy").
type PartKind int

const (
	PartStatus PartKind = iota
	PartHeaders
	PartData
	PartDone
	PartError
	// PartFrame carries a demultiplexed WebSocket Frame (exec/log streams,
	// spec §4.6 "Frame taxonomy"); Part.Frame is non-nil only for this kind.
	PartFrame
)

func (k PartKind) String() string {
	switch k {
	case PartStatus:
		return "status"
	case PartHeaders:
		return "headers"
	case PartData:
		return "data"
	case PartDone:
		return "done"
	case PartError:
		return "error"
	default:
		return "unknown"
	}
}

// Part is one response-part delivered to a sink, strictly ordered per
// request: status, then headers, then any number of data parts, then
// done (or error) - spec §5 "Ordering guarantees".
type Part struct {
	Kind    PartKind
	Status  int
	Headers http.Header
	Data    []byte
	Err     error
	Frame   *Frame
	Tag     any // set by a Tagged sink; nil otherwise.
}

// Sink is the destination for streamed response parts (spec §3, Glossary
// "Sink"). A sink is one of: none (buffer, drained via Adapter.Recv), a
// channel (the "process/channel" variant), or a Tagged wrapper.
type Sink interface {
	Send(Part)
}

// SinkFunc adapts a plain function to a Sink.
type SinkFunc func(Part)

func (f SinkFunc) Send(p Part) { f(p) }

// ChanSink delivers every part to a channel - the "process/channel" sink
// policy (spec §4.6).
type ChanSink chan Part

func (c ChanSink) Send(p Part) { c <- p }

// TaggedPart wraps a Part with an identifying tag - the "{sink,tag}"
// sink policy (spec §4.6).
type TaggedPart struct {
	Tag  any
	Part Part
}

// Tagged wraps an inner Sink so every delivered Part carries Tag.
type Tagged struct {
	Inner Sink
	Tag   any
}

func (t Tagged) Send(p Part) {
	p.Tag = t.Tag
	t.Inner.Send(p)
}

// TaggedChanSink is a ChanSink variant carrying TaggedPart values instead
// of bare Parts, for callers that want {tag, part} delivery on a typed
// channel rather than through the Tagged/Sink indirection.
type TaggedChanSink struct {
	Ch  chan TaggedPart
	Tag any
}

func (t TaggedChanSink) Send(p Part) { t.Ch <- TaggedPart{Tag: t.Tag, Part: p} }
