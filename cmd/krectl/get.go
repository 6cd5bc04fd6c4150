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
	"os"

	"github.com/aquasecurity/table"
	"github.com/go-kit/log"
	"github.com/spf13/cobra"

	"github.com/GoogleCloudPlatform/kube-rest-engine/internal/resource"
	"github.com/GoogleCloudPlatform/kube-rest-engine/pkg/kstream/list"
	"github.com/GoogleCloudPlatform/kube-rest-engine/pkg/kube"
	"github.com/GoogleCloudPlatform/kube-rest-engine/pkg/operation"
	"github.com/GoogleCloudPlatform/kube-rest-engine/pkg/restpath"
	"github.com/GoogleCloudPlatform/kube-rest-engine/pkg/runner"
)

func newGetCmd(flags *connFlags, logger log.Logger) *cobra.Command {
	var (
		apiVersion    string
		allNamespaces bool
		labelSelector string
		fieldSelector string
	)
	cmd := &cobra.Command{
		Use:   "get KIND [NAME]",
		Short: "Get a single resource, or list a collection.",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := flags.connect(logger)
			if err != nil {
				return err
			}

			kind := args[0]
			params := restpath.Params{Namespace: flags.namespace}
			if len(args) == 2 {
				params.Name = args[1]
				op := operation.Build(kube.Get, apiVersion, kind, params, nil)
				res, err := runner.Run(cmd.Context(), conn, op)
				if err != nil {
					return err
				}
				obj, _ := res.Body.(resource.Map)
				return printTable([]resource.Map{obj})
			}

			verb := kube.List
			if allNamespaces {
				verb = kube.ListAllNamespaces
			}
			op := operation.Build(verb, apiVersion, kind, params, nil)
			if fieldSelector != "" {
				op = op.PutQueryParam("fieldSelector", fieldSelector)
			}
			if labelSelector != "" {
				op = op.PutQueryParam("labelSelector", labelSelector)
			}

			var items []resource.Map
			for item := range list.List(cmd.Context(), conn, op) {
				if item.Err != nil {
					return item.Err
				}
				items = append(items, item.Value)
			}
			return printTable(items)
		},
	}
	cmd.Flags().StringVar(&apiVersion, "api-version", "v1", "apiVersion of the resource")
	cmd.Flags().BoolVarP(&allNamespaces, "all-namespaces", "A", false, "list across every namespace")
	cmd.Flags().StringVarP(&labelSelector, "selector", "l", "", "label selector")
	cmd.Flags().StringVar(&fieldSelector, "field-selector", "", "field selector")
	return cmd
}

func printTable(items []resource.Map) error {
	t := table.New(os.Stdout)
	t.SetHeaders("NAMESPACE", "NAME", "KIND", "RESOURCE VERSION")
	for _, obj := range items {
		if obj == nil {
			continue
		}
		t.AddRow(resource.Namespace(obj), resource.Name(obj), resource.Kind(obj), resource.ResourceVersion(obj))
	}
	t.Render()
	return nil
}
