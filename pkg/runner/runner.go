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

// Package runner implements the Request Runner (C8): synchronous
// operation execution composing the Operation (C3), Discovery Cache
// (C4), Path Builder (C1), Connection Registry (C7) and HTTP Adapter
// (C6) into one `run(conn, op) -> {ok, decoded} | {error}` call (spec
// §4.8).
package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/GoogleCloudPlatform/kube-rest-engine/internal/resource"
	"github.com/GoogleCloudPlatform/kube-rest-engine/pkg/connection"
	"github.com/GoogleCloudPlatform/kube-rest-engine/pkg/discovery"
	"github.com/GoogleCloudPlatform/kube-rest-engine/pkg/kerrors"
	"github.com/GoogleCloudPlatform/kube-rest-engine/pkg/operation"
	"github.com/GoogleCloudPlatform/kube-rest-engine/pkg/transport"
)

// Result is what Run returns on a non-error response (spec §4.8 "{ok,
// decoded}"): Body is the decoded value (resource.Map for JSON, []byte
// for text/plain or a response with no Content-Type, nil for anything
// else); Status and Headers are always populated.
type Result struct {
	Status  int
	Headers http.Header
	Body    any
}

// Run resolves op's URL via discovery, runs conn's middleware stack,
// dispatches the request through the registry/adapter, and decodes the
// response (spec §4.8). It never retries.
func Run(ctx context.Context, conn *connection.Connection, op operation.Operation) (Result, error) {
	path, err := resolve(ctx, conn, op)
	if err != nil {
		return Result{}, err
	}

	req := connection.Request{Path: path}
	req, err = connection.RunMiddleware(conn.Middleware(), op, req)
	if err != nil {
		return Result{}, err
	}

	status, headers, body, err := Dispatch(ctx, conn, req.Method, req.Path, req.Headers, req.Body)
	if err != nil {
		return Result{}, err
	}

	decoded, err := decodeResponse(status, headers, body)
	if err != nil {
		return Result{}, err
	}
	return Result{Status: status, Headers: headers, Body: decoded}, nil
}

// resolve runs discovery for op and returns its resolved path+query
// string. Exported as Resolve for the streaming runners, which need the
// bare Resolved value too.
func resolve(ctx context.Context, conn *connection.Connection, op operation.Operation) (string, error) {
	resolved, err := Resolve(ctx, conn, op)
	if err != nil {
		return "", err
	}
	path := resolved.Path
	if q := op.EncodeQuery(); q != "" {
		path += "?" + q
	}
	return path, nil
}

// Resolve runs discovery for op against conn, reusing Dispatch as the
// discovery context's HTTP primitive. Exposed for the streaming runners
// (List/Watch/Exec), which resolve once and then issue their own request
// shapes against the same path.
func Resolve(ctx context.Context, conn *connection.Connection, op operation.Operation) (discovery.Resolved, error) {
	dc := conn.DiscoveryContext(func(ctx context.Context, path string) ([]byte, error) {
		_, _, body, err := Dispatch(ctx, conn, http.MethodGet, path, nil, nil)
		return body, err
	})
	return discovery.Resolve(ctx, conn.DiscoveryDriver(), dc, op)
}

// lease resolves conn's TLS config and credential headers, checks out
// an adapter for conn's destination, and returns headers merged with
// whatever the credential chain contributes - the setup shared by
// Dispatch and Stream.
func lease(ctx context.Context, conn *connection.Connection, headers http.Header) (transport.Leased, http.Header, error) {
	tlsConfig, err := conn.TLSConfig(ctx)
	if err != nil {
		return transport.Leased{}, nil, err
	}

	leased, err := conn.Registry().Lease(ctx, conn.Destination(), tlsConfig)
	if err != nil {
		return transport.Leased{}, nil, &kerrors.HTTPError{Message: "lease adapter", Cause: err}
	}

	creds, _, err := conn.Credential().Resolve(ctx)
	if err != nil {
		return transport.Leased{}, nil, &kerrors.ConfigurationError{Message: "resolve credential", Cause: err}
	}
	if headers == nil {
		headers = http.Header{}
	}
	for k, vs := range creds.Headers {
		for _, v := range vs {
			headers.Add(k, v)
		}
	}
	return leased, headers, nil
}

// Dispatch leases an adapter for conn's destination, issues one
// request, and drains its response parts into a single buffer. It is
// also the low-level primitive discovery and the Runner's own Run build
// on.
func Dispatch(ctx context.Context, conn *connection.Connection, method, path string, headers http.Header, body []byte) (int, http.Header, []byte, error) {
	leased, headers, err := lease(ctx, conn, headers)
	if err != nil {
		return 0, nil, nil, err
	}

	var bodyReader io.Reader
	if len(body) > 0 {
		bodyReader = bytes.NewReader(body)
	}

	ref, err := leased.Adapter.Request(ctx, method, path, headers, bodyReader, leased.Handle(), nil)
	if err != nil {
		return 0, nil, nil, err
	}

	var status int
	var respHeaders http.Header
	var buf bytes.Buffer
	for {
		part, ok := leased.Adapter.Recv(ref)
		if !ok {
			break
		}
		switch part.Kind {
		case transport.PartStatus:
			status = part.Status
		case transport.PartHeaders:
			respHeaders = part.Headers
		case transport.PartData:
			buf.Write(part.Data)
		case transport.PartDone:
			return status, respHeaders, buf.Bytes(), nil
		case transport.PartError:
			return status, respHeaders, buf.Bytes(), part.Err
		}
	}
	return status, respHeaders, buf.Bytes(), nil
}

// StreamHandle lets a streaming runner pull a response body
// incrementally instead of waiting for it to finish, the primitive the
// Watch Stream needs (spec §4.10 "read the chunked response").
type StreamHandle struct {
	adapter *transport.Adapter
	ref     transport.RequestRef
}

// Next implements wireframe.ChunkSource.
func (h StreamHandle) Next() ([]byte, bool, error) {
	part, ok := h.adapter.Recv(h.ref)
	if !ok {
		return nil, false, nil
	}
	switch part.Kind {
	case transport.PartData:
		return part.Data, true, nil
	case transport.PartError:
		return nil, false, part.Err
	case transport.PartDone:
		return nil, false, nil
	default:
		return nil, true, nil
	}
}

// Cancel tears down the underlying request (RST_STREAM for HTTP/2),
// freeing the adapter resources the stream held (spec §4.10
// "cancellation ... must free adapter resources").
func (h StreamHandle) Cancel() { h.adapter.Cancel(h.ref) }

// Stream issues method/path and returns as soon as the status/headers
// arrive, handing back a StreamHandle for pulling the body
// incrementally.
func Stream(ctx context.Context, conn *connection.Connection, method, path string, headers http.Header) (int, http.Header, StreamHandle, error) {
	leased, headers, err := lease(ctx, conn, headers)
	if err != nil {
		return 0, nil, StreamHandle{}, err
	}

	ref, err := leased.Adapter.Request(ctx, method, path, headers, nil, leased.Handle(), nil)
	if err != nil {
		return 0, nil, StreamHandle{}, err
	}

	var status int
	var respHeaders http.Header
	for i := 0; i < 2; i++ {
		part, ok := leased.Adapter.Recv(ref)
		if !ok {
			break
		}
		switch part.Kind {
		case transport.PartStatus:
			status = part.Status
		case transport.PartHeaders:
			respHeaders = part.Headers
		}
	}
	return status, respHeaders, StreamHandle{adapter: leased.Adapter, ref: ref}, nil
}

// DecodeStatusError maps a non-2xx status/body pair to an APIError
// (JSON Kubernetes Status body) or a generic HTTPError, the same rule
// Run's own decodeResponse applies - exposed for the Watch Stream, which
// hits this same classification when its streaming GET itself fails
// before any event is read.
func DecodeStatusError(status int, headers http.Header, body []byte) error {
	_, err := decodeResponse(status, headers, body)
	return err
}

// statusBody mirrors the subset of a Kubernetes Status object the Runner
// needs to build an APIError (spec §4.8).
type statusBody struct {
	Kind    string `json:"kind"`
	Status  string `json:"status"`
	Message string `json:"message"`
	Reason  string `json:"reason"`
	Code    int    `json:"code"`
}

// decodeResponse implements spec §4.8's status-to-result mapping.
func decodeResponse(status int, headers http.Header, body []byte) (any, error) {
	contentType := ""
	if headers != nil {
		contentType = headers.Get("Content-Type")
	}

	if status >= 200 && status < 300 {
		return decodeBody(contentType, body)
	}

	if isJSON(contentType) && len(body) > 0 {
		var st statusBody
		if err := json.Unmarshal(body, &st); err == nil && st.Kind == "Status" {
			return nil, &kerrors.APIError{Reason: st.Reason, Message: st.Message, Code: status}
		}
	}
	return nil, &kerrors.HTTPError{Code: status, Message: "unexpected status"}
}

func decodeBody(contentType string, body []byte) (any, error) {
	switch {
	case isJSON(contentType):
		if len(body) == 0 {
			return resource.Map(nil), nil
		}
		var m resource.Map
		if err := json.Unmarshal(body, &m); err != nil {
			return nil, &kerrors.HTTPError{Message: "decode json body: " + err.Error()}
		}
		return m, nil
	case contentType == "text/plain" || strings.HasPrefix(contentType, "text/plain;") || contentType == "":
		if len(body) == 0 {
			return nil, nil
		}
		return body, nil
	default:
		return nil, nil
	}
}

func isJSON(contentType string) bool {
	for i := 0; i < len(contentType); i++ {
		if contentType[i] == ';' {
			contentType = contentType[:i]
			break
		}
	}
	return contentType == "application/json"
}
