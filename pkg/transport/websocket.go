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
	"crypto/tls"
	"fmt"
	"net"
	"net/http"

	"github.com/go-kit/log/level"
	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"

	"github.com/GoogleCloudPlatform/kube-rest-engine/pkg/kerrors"
)

// WebsocketRequest upgrades path to a WebSocket (pods/exec, pods/attach,
// pods/log -f, spec §6) and starts demultiplexing incoming frames into
// PartFrame deliveries. The caller drives the connection via Recv and
// WebsocketSend using the returned RequestRef exactly like an ordinary
// HTTP request.
func (a *Adapter) WebsocketRequest(ctx context.Context, path string, headers http.Header, tlsConfig *tls.Config) (RequestRef, error) {
	if a.isClosed() {
		return 0, &kerrors.HTTPError{Message: "adapter is closed"}
	}

	url := wsURL(a.dest, path)
	dialer := ws.Dialer{TLSConfig: tlsConfig, Header: ws.HandshakeHeaderHTTP(headers)}

	reqCtx, cancel := context.WithCancel(ctx)
	conn, _, _, err := dialer.Dial(reqCtx, url)
	if err != nil {
		cancel()
		return 0, &kerrors.HTTPError{Message: "websocket dial", Cause: err}
	}

	ref := a.newRef()
	st := newRequestState(nil)
	st.cancel = cancel
	st.wsConn = conn
	a.register(ref, st)
	a.metrics.OpenRequests.WithLabelValues(a.dest.Key()).Inc()

	st.deliver(Part{Kind: PartFrame, Frame: &Frame{Kind: FrameOpen}})
	go a.demuxLoop(ref, st, conn)
	return ref, nil
}

// demuxLoop reads binary WebSocket messages off conn and turns each into
// a PartFrame delivery via DemuxFrame, until the connection closes.
func (a *Adapter) demuxLoop(ref RequestRef, st *requestState, conn net.Conn) {
	defer a.finishWebsocket(ref, st, conn)

	for {
		raw, op, err := wsutil.ReadServerData(conn)
		if err != nil {
			if closed, ok := err.(wsutil.ClosedError); ok {
				st.deliver(Part{Kind: PartFrame, Frame: &Frame{
					Kind:       FrameClose,
					CloseCode:  int(closed.Code),
					CloseError: closed.Reason,
				}})
			} else {
				st.deliver(Part{Kind: PartError, Err: &kerrors.HTTPError{Message: "websocket read", Cause: err}})
			}
			return
		}
		if op != ws.OpBinary {
			continue
		}
		frame, err := DemuxFrame(raw)
		if err != nil {
			level.Warn(a.logger).Log("msg", "dropping malformed exec frame", "destination", a.dest.Key(), "err", err)
			continue
		}
		st.deliver(Part{Kind: PartFrame, Frame: &frame})
	}
}

func (a *Adapter) finishWebsocket(ref RequestRef, st *requestState, conn net.Conn) {
	_ = conn.Close()
	a.finishRequest(ref, st)
}

// WebsocketSend writes an Outgoing payload (stdin bytes, or a close
// request) to the websocket behind ref (spec §8 property 8).
func (a *Adapter) WebsocketSend(ref RequestRef, out Outgoing) error {
	st, ok := a.lookup(ref)
	if !ok || st.wsConn == nil {
		return &kerrors.HTTPError{Message: "websocket send: no such connection"}
	}

	if out.Close || out.Exit {
		code, reason := ws.StatusNormalClosure, ""
		if out.CloseCode != 0 {
			code, reason = ws.StatusCode(out.CloseCode), out.CloseError
		}
		return wsutil.WriteClientMessage(st.wsConn, ws.OpClose, ws.NewCloseFrameBody(code, reason))
	}

	raw, err := EncodeOutgoing(out)
	if err != nil {
		return err
	}
	return wsutil.WriteClientMessage(st.wsConn, ws.OpBinary, raw)
}

func wsURL(dest Destination, path string) string {
	scheme := "ws"
	if dest.Scheme == "https" {
		scheme = "wss"
	}
	return fmt.Sprintf("%s://%s:%d%s", scheme, dest.Host, dest.Port, path)
}
