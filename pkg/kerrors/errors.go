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

// Package kerrors implements the error taxonomy of the request engine:
// APIError, HTTPError, DiscoveryError, OperationError and
// ConfigurationError. All of them wrap an underlying cause and support
// errors.Is/errors.As through Unwrap, the way k8s.io/apimachinery/pkg/api/errors
// lets callers probe a *StatusError with IsNotFound et al.
package kerrors

import (
	"errors"
	"fmt"
)

// APIError is returned when the API server answered with a Kubernetes
// Status object describing a non-2xx result.
type APIError struct {
	Reason  string // canonical reason token, e.g. "NotFound", "Conflict".
	Message string
	Code    int
	Cause   error
}

func (e *APIError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("api error (code %d): %s", e.Code, e.Message)
	}
	return fmt.Sprintf("api error %s (code %d): %s", e.Reason, e.Code, e.Message)
}

func (e *APIError) Unwrap() error { return e.Cause }

// Well-known reason tokens, mirrored from k8s.io/apimachinery/pkg/apis/meta/v1
// StatusReason constants so callers can compare against the same strings
// client-go callers already know.
const (
	ReasonNotFound      = "NotFound"
	ReasonUnauthorized  = "Unauthorized"
	ReasonForbidden     = "Forbidden"
	ReasonConflict      = "Conflict"
	ReasonAlreadyExists = "AlreadyExists"
	ReasonInvalid       = "Invalid"
	ReasonExpired       = "Expired"
	ReasonTimeout       = "Timeout"
	ReasonServerError   = "InternalError"
)

// IsNotFound reports whether err is an APIError with reason NotFound.
func IsNotFound(err error) bool { return hasReason(err, ReasonNotFound) }

// IsConflict reports whether err is an APIError with reason Conflict.
func IsConflict(err error) bool { return hasReason(err, ReasonConflict) }

// IsAlreadyExists reports whether err is an APIError with reason AlreadyExists.
func IsAlreadyExists(err error) bool { return hasReason(err, ReasonAlreadyExists) }

// IsExpired reports whether err is an APIError with reason Expired, or
// carries HTTP status 410 - the watch-stream resync trigger.
func IsExpired(err error) bool {
	if hasReason(err, ReasonExpired) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == 410
	}
	return false
}

func hasReason(err error, reason string) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Reason == reason
}

// HTTPError wraps a transport/protocol failure: closed connections, TLS
// handshake errors, or a non-2xx response with no decodable body.
type HTTPError struct {
	Code    int // 0 when no response was ever received.
	Message string
	Cause   error
}

func (e *HTTPError) Error() string {
	if e.Code == 0 {
		return fmt.Sprintf("http error: %s", e.Message)
	}
	return fmt.Sprintf("http error (code %d): %s", e.Code, e.Message)
}

func (e *HTTPError) Unwrap() error { return e.Cause }

// DiscoveryError is always fatal for the operation it was raised from.
type DiscoveryError struct {
	Kind    string // NotDiscovered, UnsupportedResource, UnsupportedVerb.
	Message string
}

const (
	DiscoveryNotDiscovered   = "NotDiscovered"
	DiscoveryUnsupportedKind = "UnsupportedResource"
	DiscoveryUnsupportedVerb = "UnsupportedVerb"
)

func (e *DiscoveryError) Error() string {
	return fmt.Sprintf("discovery error (%s): %s", e.Kind, e.Message)
}

// OperationError signals a programmer error: a missing required path
// parameter, or an operation handed to the wrong runner.
type OperationError struct {
	Message string
}

func (e *OperationError) Error() string { return fmt.Sprintf("operation error: %s", e.Message) }

// ConfigurationError is raised by external collaborators (kubeconfig
// parsing, credential acquisition) and surfaced unchanged by the core.
type ConfigurationError struct {
	Message string
	Cause   error
}

func (e *ConfigurationError) Error() string { return fmt.Sprintf("configuration error: %s", e.Message) }
func (e *ConfigurationError) Unwrap() error { return e.Cause }
