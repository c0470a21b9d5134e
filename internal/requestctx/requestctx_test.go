package requestctx

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestProjectIDRoundTrip(t *testing.T) {
	ctx := WithProjectID(context.Background(), "proj-42")
	require.Equal(t, "proj-42", ProjectIDFromContext(ctx))
	require.Equal(t, "", UserIDFromContext(ctx))
}

func TestUserIDRoundTrip(t *testing.T) {
	ctx := WithUserID(WithProjectID(context.Background(), "p"), "alice")
	require.Equal(t, "alice", UserIDFromContext(ctx))
	require.Equal(t, "p", ProjectIDFromContext(ctx))
}

func TestEmptyContext(t *testing.T) {
	require.Equal(t, "", ProjectIDFromContext(context.Background()))
	require.Equal(t, "", UserIDFromContext(context.Background()))
}

//nolint:staticcheck // SA1012: nil contexts are handled on purpose
func TestNilContext(t *testing.T) {
	require.Equal(t, "", ProjectIDFromContext(nil))
	require.Equal(t, "", UserIDFromContext(nil))

	ctx := WithProjectID(nil, "p")
	require.NotNil(t, ctx)
	require.Equal(t, "p", ProjectIDFromContext(ctx))

	ctx = WithUserID(nil, "u")
	require.Equal(t, "u", UserIDFromContext(ctx))
}
