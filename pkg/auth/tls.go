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

package auth

import (
	"crypto/tls"

	"k8s.io/client-go/transport"
)

// TLSConfig builds the *tls.Config for one destination, per spec §4.5 /
// §6: InsecureSkipVerify overrides peer verification; a missing CA cert
// falls through to the OS default trust store; an optional client
// certificate is attached for mTLS. Assembly itself is delegated to
// k8s.io/client-go/transport.TLSConfigFor, the same rest.Config->tls.Config
// path the teacher's own clientcmd-based clients ride.
func TLSConfig(caCert []byte, insecureSkipVerify bool, clientCert *tls.Certificate, serverName string) (*tls.Config, error) {
	cfg := &transport.Config{
		TLS: transport.TLSConfig{
			CAData:     caCert,
			Insecure:   insecureSkipVerify,
			ServerName: serverName,
		},
	}
	if clientCert != nil {
		cert := clientCert
		cfg.TLS.GetCert = func() (*tls.Certificate, error) { return cert, nil }
	}

	tlsConfig, err := transport.TLSConfigFor(cfg)
	if err != nil {
		return nil, err
	}
	if tlsConfig == nil {
		tlsConfig = &tls.Config{ServerName: serverName}
	}
	return tlsConfig, nil
}
