package context_test

import (
	"context"
	"testing"

	icontext "github.com/metastage/metastage/context"
	"github.com/metastage/metastage/kit/platform/errors"
	"github.com/stretchr/testify/require"
)

func TestGetPrincipal(t *testing.T) {
	ctx := context.Background()
	_, err := icontext.GetPrincipal(ctx)
	require.Error(t, err)
	require.Equal(t, errors.EInternal, errors.ErrorCode(err))

	want := icontext.Principal{ID: "u123", FullName: "Jane Doe"}
	ctx = icontext.SetPrincipal(ctx, want)
	got, err := icontext.GetPrincipal(ctx)
	require.NoError(t, err)
	require.Equal(t, want, got)
}
