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
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/oklog/run"
)

func main() {
	logger := log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
	logger = log.With(logger, "ts", log.DefaultTimestampUTC)
	logger = level.NewFilter(logger, level.AllowInfo())

	root := NewRootCmd(logger)

	ctx, cancelCmd := context.WithCancel(context.Background())
	var g run.Group
	{
		term := make(chan os.Signal, 1)
		stop := make(chan struct{})
		signal.Notify(term, os.Interrupt, syscall.SIGTERM)

		g.Add(
			func() error {
				select {
				case <-term:
					level.Info(logger).Log("msg", "received interrupt, cancelling")
					cancelCmd()
				case <-stop:
				}
				return nil
			},
			func(error) {
				close(stop)
			},
		)
	}
	{
		cmdCtx, cancel := context.WithCancel(ctx)
		g.Add(
			func() error {
				root.SetContext(cmdCtx)
				return root.Execute()
			},
			func(error) {
				cancel()
			},
		)
	}

	if err := g.Run(); err != nil {
		level.Error(logger).Log("msg", "command failed", "err", err)
		os.Exit(1)
	}
}
