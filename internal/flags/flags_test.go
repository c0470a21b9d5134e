package flags

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistry_Enabled(t *testing.T) {
	tests := []struct {
		name     string
		registry *Registry
		flag     string
		expected bool
	}{
		{
			name:     "known flag set to true returns true",
			registry: New(map[string]bool{FlagAuthEnable: true}),
			flag:     FlagAuthEnable,
			expected: true,
		},
		{
			name:     "known flag set to false returns false",
			registry: New(map[string]bool{FlagResolveCache: false}),
			flag:     FlagResolveCache,
			expected: false,
		},
		{
			name:     "unknown flag returns false",
			registry: New(map[string]bool{FlagAuthEnable: true}),
			flag:     "unknown-flag",
			expected: false,
		},
		{
			name:     "nil registry returns false",
			registry: nil,
			flag:     FlagAuthEnable,
			expected: false,
		},
		{
			name:     "nil flags map returns false",
			registry: New(nil),
			flag:     FlagSeedOnStart,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, tt.registry.Enabled(tt.flag))
		})
	}
}

func TestDefaults(t *testing.T) {
	r := New(Defaults())
	require.False(t, r.Enabled(FlagAuthEnable), "authorization is opt-in")
	require.True(t, r.Enabled(FlagResolveCache))
	require.True(t, r.Enabled(FlagSeedOnStart))
	require.Equal(t, []string{FlagResolveCache, FlagSeedOnStart}, r.EnabledNames())
}

func TestNew_CopiesInput(t *testing.T) {
	input := map[string]bool{FlagAuthEnable: false}
	r := New(input)

	input[FlagAuthEnable] = true
	require.False(t, r.Enabled(FlagAuthEnable), "mutating the source map must not change the registry")
}

func TestRegistry_All_ReturnsDefensiveCopy(t *testing.T) {
	r := New(map[string]bool{FlagAuthEnable: true})

	all := r.All()
	all[FlagAuthEnable] = false
	all["new-flag"] = true

	require.True(t, r.Enabled(FlagAuthEnable))
	require.False(t, r.Enabled("new-flag"))
	require.Equal(t, map[string]bool{FlagAuthEnable: true}, r.All())
}

func TestRegistry_NilSafe(t *testing.T) {
	var r *Registry
	require.Equal(t, map[string]bool{}, r.All())
	require.Nil(t, r.EnabledNames())
}
