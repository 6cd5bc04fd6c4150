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

import "fmt"

// Destination is the normalized (scheme,host,port,opts) tuple the
// Connection Registry keys adapters by (spec §4.7).
type Destination struct {
	Scheme  string
	Host    string
	Port    int
	OptsKey string // fingerprint of TLS options distinguishing otherwise-identical hosts.
}

// Key returns the registry's map key for this destination.
func (d Destination) Key() string {
	return fmt.Sprintf("%s://%s:%d#%s", d.Scheme, d.Host, d.Port, d.OptsKey)
}

// BaseURL returns the scheme://host:port prefix to join request paths onto.
func (d Destination) BaseURL() string {
	return fmt.Sprintf("%s://%s:%d", d.Scheme, d.Host, d.Port)
}
