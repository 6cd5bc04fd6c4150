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
	"bufio"
	"io"
	"os"

	"github.com/go-kit/log"
	"github.com/spf13/cobra"

	"github.com/GoogleCloudPlatform/kube-rest-engine/pkg/kstream/exec"
	"github.com/GoogleCloudPlatform/kube-rest-engine/pkg/operation"
	"github.com/GoogleCloudPlatform/kube-rest-engine/pkg/restpath"
	"github.com/GoogleCloudPlatform/kube-rest-engine/pkg/transport"
)

func newExecCmd(flags *connFlags, logger log.Logger) *cobra.Command {
	var container string
	cmd := &cobra.Command{
		Use:   "exec POD -- COMMAND [ARGS...]",
		Short: "Run a command in a pod over the exec/attach WebSocket.",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := flags.connect(logger)
			if err != nil {
				return err
			}

			query := map[string]operation.QueryValue{
				"command": args[1:],
				"stdin":   true,
				"stdout":  true,
				"stderr":  true,
			}
			if container != "" {
				query["container"] = []string{container}
			}
			op := operation.Connect("v1", "pods/exec", restpath.Params{Namespace: flags.namespace, Name: args[0]}, query)

			stream, err := exec.Open(cmd.Context(), conn, op)
			if err != nil {
				return err
			}
			defer stream.Cancel()

			go pumpStdin(stream, cmd.InOrStdin())

			for ev := range stream.Events() {
				if ev.Err != nil {
					return ev.Err
				}
				switch ev.Kind {
				case transport.FrameStdout:
					_, _ = cmd.OutOrStdout().Write(ev.Data)
				case transport.FrameStderr:
					_, _ = cmd.ErrOrStderr().Write(ev.Data)
				case transport.FrameError:
					_, _ = cmd.ErrOrStderr().Write(ev.Data)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&container, "container", "c", "", "container name, if the pod has more than one")
	return cmd
}

// pumpStdin relays r to the exec session's stdin until EOF or a read
// error, at which point it sends a close frame; if a send fails it stops
// without sending one.
func pumpStdin(stream *exec.Stream, r io.Reader) {
	buf := make([]byte, 4096)
	br := bufio.NewReader(r)
	for {
		n, err := br.Read(buf)
		if n > 0 {
			if sendErr := stream.Send(buf[:n]); sendErr != nil {
				return
			}
		}
		if err != nil {
			if err != io.EOF {
				_, _ = os.Stderr.WriteString("krectl: stdin: " + err.Error() + "\n")
			}
			_ = stream.Close()
			return
		}
	}
}
