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

// Package list implements the List Stream (C9): a paginated `list`
// operation exposed as a lazy sequence of resources, following
// `metadata.continue` tokens until the server stops returning one (spec
// §4.9).
package list

import (
	"context"

	"github.com/GoogleCloudPlatform/kube-rest-engine/internal/resource"
	"github.com/GoogleCloudPlatform/kube-rest-engine/pkg/connection"
	"github.com/GoogleCloudPlatform/kube-rest-engine/pkg/kerrors"
	"github.com/GoogleCloudPlatform/kube-rest-engine/pkg/operation"
	"github.com/GoogleCloudPlatform/kube-rest-engine/pkg/runner"
)

// Item is one element of the sequence: either a decoded resource, or -
// as the sequence's final element - the error that ended it (spec §4.9
// "the error is emitted as the final element of the sequence so
// consumers can observe it without raising").
type Item struct {
	Value resource.Map
	Err   error
}

// List runs op (which must be a List/ListAllNamespaces operation) and
// returns a channel of Items. The channel is closed once pagination
// completes; dropping it before that (letting it fall out of scope
// while the caller stops reading) combined with cancelling ctx frees
// the underlying adapter resources, the same ctx-driven liveness
// contract the Watch stream honors.
func List(ctx context.Context, conn *connection.Connection, op operation.Operation) <-chan Item {
	out := make(chan Item)
	go run(ctx, conn, op, out)
	return out
}

func run(ctx context.Context, conn *connection.Connection, op operation.Operation, out chan<- Item) {
	defer close(out)

	op = foldNameIntoFieldSelector(op)

	for {
		res, err := runner.Run(ctx, conn, op)
		if err != nil {
			emit(ctx, out, Item{Err: err})
			return
		}

		body, ok := res.Body.(resource.Map)
		if !ok {
			emit(ctx, out, Item{Err: &kerrors.OperationError{Message: "list response was not a JSON object"}})
			return
		}

		for _, raw := range resource.Items(body) {
			item, ok := raw.(resource.Map)
			if !ok {
				continue
			}
			if !emit(ctx, out, Item{Value: item}) {
				return
			}
		}

		cont := resource.Continue(body)
		if cont == "" {
			return
		}
		op = op.PutQueryParam("continue", cont)
	}
}

// emit delivers it, or reports false if ctx was cancelled first - the
// caller should stop immediately either way.
func emit(ctx context.Context, out chan<- Item, it Item) bool {
	select {
	case out <- it:
		return true
	case <-ctx.Done():
		return false
	}
}

// foldNameIntoFieldSelector implements spec §4.9's "if the operation
// carries a path name, fold it into fieldSelector=metadata.name={name}
// and drop it from the path" rule, so get-by-name-via-list behaves as a
// list of at most one item.
func foldNameIntoFieldSelector(op operation.Operation) operation.Operation {
	params := op.PathParams
	if params.Name == "" {
		return op
	}
	op = op.PutQueryParam("fieldSelector", "metadata.name="+params.Name)
	params.Name = ""
	return op.PutPathParam(params)
}
