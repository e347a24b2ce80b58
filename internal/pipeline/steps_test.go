package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitSteps(t *testing.T) {
	t.Parallel()

	isModule := func(s string) bool { return s == "a" || s == "b" }

	testCases := []struct {
		name      string
		args      []string
		want      []Step
		wantError string
	}{
		{
			name: "modules with arguments",
			args: []string{"a", "--x", "1", "b", "a", "-y"},
			want: []Step{
				{Module: "a", Args: []string{"--x", "1"}},
				{Module: "b", Args: []string{}},
				{Module: "a", Args: []string{"-y"}},
			},
		},
		{name: "leading junk", args: []string{"--x", "a"}, wantError: "unknown module '--x'"},
		{name: "empty", args: nil, wantError: "no module specified"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := SplitSteps(tc.args, isModule)

			if tc.wantError != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.wantError)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, "a --x 1 b a -y", CommandLine(got))
		})
	}
}
