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

package operation

import (
	"net/url"
	"sort"
	"strconv"
)

// EncodeQuery renders the operation's query parameters (spec §3, §6) as a
// URL query string. Values may be string, []string (repeated params, e.g.
// exec's command=...), or bool. The structured Selector is merged into
// labelSelector first.
func (o Operation) EncodeQuery() string {
	values := url.Values{}

	keys := make([]string, 0, len(o.Query))
	for k := range o.Query {
		if k == "labelSelector" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		addQueryValue(values, k, o.Query[k])
	}

	if sel := o.EffectiveLabelSelector(); sel != "" {
		values.Set("labelSelector", sel)
	}

	return values.Encode()
}

func addQueryValue(values url.Values, key string, v QueryValue) {
	switch t := v.(type) {
	case string:
		values.Add(key, t)
	case []string:
		for _, s := range t {
			values.Add(key, s)
		}
	case bool:
		values.Add(key, strconv.FormatBool(t))
	case int:
		values.Add(key, strconv.Itoa(t))
	}
}
