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

package connection

import (
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"

	"github.com/GoogleCloudPlatform/kube-rest-engine/pkg/kerrors"
	"github.com/GoogleCloudPlatform/kube-rest-engine/pkg/kube"
	"github.com/GoogleCloudPlatform/kube-rest-engine/pkg/operation"
)

// Request is the mutable request state middleware transforms before the
// Runner dispatches it (spec §4.8 "Request → {ok, Request} | {error,
// cause}"). Path is already the discovery-resolved, query-encoded path
// by the time the default middleware stack sees it.
type Request struct {
	Method  string
	Path    string
	Headers http.Header
	Body    []byte
}

// Middleware transforms a Request derived from op, or reports an error.
// Composition halts on first error (spec §4.8).
type Middleware interface {
	Name() string
	Apply(op operation.Operation, req Request) (Request, error)
}

// RunMiddleware threads req through stack in order, wrapping any failure
// with the offending middleware's identity (spec §7 "Middleware errors
// are wrapped with the offending middleware identity and the original
// request state for diagnosis").
func RunMiddleware(stack []Middleware, op operation.Operation, req Request) (Request, error) {
	for _, mw := range stack {
		next, err := mw.Apply(op, req)
		if err != nil {
			return Request{}, errors.Wrapf(err, "middleware %q (request %s %s)", mw.Name(), req.Method, req.Path)
		}
		req = next
	}
	return req, nil
}

// InitializeMiddleware populates Method/Headers from the operation (spec
// §4.8 default stack, step 1).
type InitializeMiddleware struct{}

func (InitializeMiddleware) Name() string { return "Initialize" }

func (InitializeMiddleware) Apply(op operation.Operation, req Request) (Request, error) {
	req.Method = op.Method()
	if req.Headers == nil {
		req.Headers = http.Header{}
	}
	req.Headers.Set("Accept", "application/json")
	return req, nil
}

// bodyBearingVerbs are the verbs EncodeBodyMiddleware serializes op.Data
// for.
var bodyBearingVerbs = map[kube.Verb]bool{
	kube.Create: true,
	kube.Update: true,
	kube.Patch:  true,
	kube.Apply:  true,
}

// EncodeBodyMiddleware JSON-encodes op.Data for body-bearing methods
// (spec §4.8 default stack, step 2).
type EncodeBodyMiddleware struct{}

func (EncodeBodyMiddleware) Name() string { return "EncodeBody" }

func (EncodeBodyMiddleware) Apply(op operation.Operation, req Request) (Request, error) {
	if !bodyBearingVerbs[op.Verb] || op.Data == nil {
		return req, nil
	}
	body, err := json.Marshal(op.Data)
	if err != nil {
		return Request{}, &kerrors.OperationError{Message: "encode request body: " + err.Error()}
	}
	req.Body = body
	if req.Headers == nil {
		req.Headers = http.Header{}
	}
	contentType := "application/json"
	if op.Verb == kube.Patch {
		contentType = "application/merge-patch+json"
	} else if op.Verb == kube.Apply {
		contentType = "application/apply-patch+yaml"
	}
	req.Headers.Set("Content-Type", contentType)
	return req, nil
}
