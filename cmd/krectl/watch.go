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

package main

import (
	"fmt"

	"github.com/go-kit/log"
	"github.com/spf13/cobra"

	"github.com/GoogleCloudPlatform/kube-rest-engine/internal/resource"
	"github.com/GoogleCloudPlatform/kube-rest-engine/pkg/kstream/watch"
	"github.com/GoogleCloudPlatform/kube-rest-engine/pkg/kube"
	"github.com/GoogleCloudPlatform/kube-rest-engine/pkg/operation"
	"github.com/GoogleCloudPlatform/kube-rest-engine/pkg/restpath"
)

func newWatchCmd(flags *connFlags, logger log.Logger) *cobra.Command {
	var (
		apiVersion    string
		allNamespaces bool
	)
	cmd := &cobra.Command{
		Use:   "watch KIND",
		Short: "Stream add/update/delete events for a collection.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := flags.connect(logger)
			if err != nil {
				return err
			}

			verb := kube.Watch
			if allNamespaces {
				verb = kube.WatchAllNamespaces
			}
			op := operation.Build(verb, apiVersion, args[0], restpath.Params{Namespace: flags.namespace}, nil)

			for ev := range watch.Watch(cmd.Context(), conn, op) {
				if ev.Err != nil {
					return ev.Err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-10s %s/%s (rv=%s)\n",
					ev.Type, resource.Namespace(ev.Object), resource.Name(ev.Object), resource.ResourceVersion(ev.Object))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&apiVersion, "api-version", "v1", "apiVersion of the resource")
	cmd.Flags().BoolVarP(&allNamespaces, "all-namespaces", "A", false, "watch across every namespace")
	return cmd
}
