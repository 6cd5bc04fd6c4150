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

package selector

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestString(t *testing.T) {
	// Serialization order follows apimachinery's own Requirement sort (by
	// key, then by value within a set expression), not caller insertion
	// order - spec §3 only requires the result be deterministic.
	cases := []struct {
		name string
		sel  Selector
		want string
	}{
		{
			name: "label only",
			sel:  New().Label("app", "nginx"),
			want: "app=nginx",
		},
		{
			name: "label then expression, key-sorted, values sorted",
			sel:  New().Label("app", "nginx").LabelIn("env", "qa", "prod"),
			want: "app=nginx,env in (prod,qa)",
		},
		{
			name: "multiple labels sorted by key",
			sel:  New().Label("zeta", "1").Label("alpha", "2"),
			want: "alpha=2,zeta=1",
		},
		{
			name: "exists and does not exist, key-sorted",
			sel:  New().LabelExists("tier").LabelDoesNotExist("deprecated"),
			want: "!deprecated,tier",
		},
		{
			name: "notin",
			sel:  New().LabelNotIn("env", "dev"),
			want: "env notin (dev)",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, tc.sel.String())
		})
	}
}

func TestParseRoundTrip(t *testing.T) {
	// spec §8 property 3: parsing serialize(L,E) back yields {L,E} (modulo
	// deterministic ordering, which labels already impose via sorting).
	original := New().
		Label("app", "nginx").
		Label("tier", "frontend").
		LabelIn("env", "qa", "prod").
		LabelExists("stable").
		LabelDoesNotExist("canary")

	parsed, err := Parse(original.String())
	require.NoError(t, err)
	require.Equal(t, original.Labels(), parsed.Labels())
	require.ElementsMatch(t, original.Exprs(), parsed.Exprs())
}

func TestMerge(t *testing.T) {
	a := New().Label("app", "nginx").LabelIn("env", "qa")
	b := New().Label("app", "override").LabelExists("tier")

	merged := a.Merge(b)
	require.Equal(t, "override", merged.Labels()["app"])
	require.Equal(t, "app=override,env in (qa),tier", merged.String())
}

func TestMergeDedupesExpressions(t *testing.T) {
	a := New().LabelIn("env", "qa")
	b := New().LabelIn("env", "qa")
	merged := a.Merge(b)
	require.Len(t, merged.Exprs(), 1)
}

func TestMatches(t *testing.T) {
	sel := New().Label("app", "nginx").LabelIn("env", "qa", "prod").LabelDoesNotExist("canary")

	require.True(t, sel.Matches(map[string]string{"app": "nginx", "env": "qa"}))
	require.False(t, sel.Matches(map[string]string{"app": "nginx", "env": "dev"}))
	require.False(t, sel.Matches(map[string]string{"app": "other", "env": "qa"}))
	require.False(t, sel.Matches(map[string]string{"app": "nginx", "env": "qa", "canary": "true"}))
}

func TestIsEmpty(t *testing.T) {
	require.True(t, New().IsEmpty())
	require.False(t, New().Label("a", "b").IsEmpty())
}
