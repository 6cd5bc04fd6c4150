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

import "github.com/pkg/errors"

// FrameKind tags a demultiplexed WebSocket frame from a pods/exec or
// pods/log connection (spec §4.6, §6, Glossary "Channel (WS)").
type FrameKind int

const (
	FrameStdout FrameKind = iota
	FrameStderr
	FrameError
	FrameClose
	FrameOpen
)

// Channel byte prefixes for the Kubernetes exec/log WebSocket
// sub-protocol (spec §6 "byte 0 is the channel id").
const (
	ChannelStdin  byte = 0
	ChannelStdout byte = 1
	ChannelStderr byte = 2
	ChannelError  byte = 3
)

// Frame is one demultiplexed exec/log event.
type Frame struct {
	Kind       FrameKind
	Data       []byte
	CloseCode  int
	CloseError string
}

// DemuxFrame implements spec §8 property 7: an incoming binary frame
// <<channel, payload>> becomes the matching Frame. An empty frame or an
// unknown channel byte is returned as an error, not a Frame; the
// adapter's demux loop logs and skips such frames.
func DemuxFrame(raw []byte) (Frame, error) {
	if len(raw) == 0 {
		return Frame{}, errors.New("transport: empty exec frame")
	}
	channel, payload := raw[0], raw[1:]
	switch channel {
	case ChannelStdout:
		return Frame{Kind: FrameStdout, Data: payload}, nil
	case ChannelStderr:
		return Frame{Kind: FrameStderr, Data: payload}, nil
	case ChannelError:
		return Frame{Kind: FrameError, Data: payload}, nil
	default:
		return Frame{}, errors.Errorf("transport: unrecognized exec channel byte %d", channel)
	}
}

// Outgoing is what a caller may send back over an exec/log WebSocket:
// stdin bytes, or a close request (spec §4.6 "Outgoing frame mapping").
type Outgoing struct {
	Stdin      []byte // non-nil for a stdin write.
	Close      bool
	Exit       bool
	CloseCode  int
	CloseError string
}

// EncodeOutgoing renders an Outgoing value as the raw bytes to send as a
// binary WebSocket message, or reports that the payload isn't a
// recognized outgoing shape (spec §8 property 8, §9 open question: the
// outgoing frame is channel-prefixed binary in both directions, mirroring
// the incoming taxonomy exactly - channel 0 for stdin).
func EncodeOutgoing(o Outgoing) ([]byte, error) {
	switch {
	case o.Stdin != nil:
		return append([]byte{ChannelStdin}, o.Stdin...), nil
	case o.Close || o.Exit:
		return nil, nil // handled as a control close frame by the caller, not a data frame.
	default:
		return nil, errors.New("transport: rejected outgoing exec payload: must be stdin, close, or exit")
	}
}
