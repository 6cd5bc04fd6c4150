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

// Package wireframe implements the wire-framing codecs the streaming
// runners share: the Watch Stream's newline-delimited JSON event decoder
// (spec §4.10 "parse chunks as newline-delimited JSON; buffer partial
// chunks across reads"). The Exec Stream's channel-prefixed WebSocket
// frame codec lives next to the transport it rides on instead
// (pkg/transport/frame.go), since it is inseparable from the adapter's
// own demux loop.
package wireframe

import (
	"encoding/json"
	"io"
)

// ChunkSource pulls the next chunk of a streaming response body: ok is
// false once the stream ends cleanly, err is set on a transport failure.
type ChunkSource func() (data []byte, ok bool, err error)

// chunkReader adapts a ChunkSource into an io.Reader, buffering any part
// of a delivered chunk that doesn't fit the caller's read buffer - the
// "buffer partial chunks across reads" requirement, pushed down to the
// one place it needs to live instead of duplicated in every stream.
type chunkReader struct {
	next ChunkSource
	buf  []byte
}

func (r *chunkReader) Read(p []byte) (int, error) {
	for len(r.buf) == 0 {
		data, ok, err := r.next()
		if err != nil {
			return 0, err
		}
		if !ok {
			return 0, io.EOF
		}
		r.buf = data
	}
	n := copy(p, r.buf)
	r.buf = r.buf[n:]
	return n, nil
}

// NewEventDecoder wraps next in a json.Decoder for repeated Decode calls
// over a stream of concatenated JSON values - Kubernetes' watch response
// framing (one JSON object per line, though encoding/json's Decoder
// doesn't require the newlines to find value boundaries).
func NewEventDecoder(next ChunkSource) *json.Decoder {
	return json.NewDecoder(&chunkReader{next: next})
}
