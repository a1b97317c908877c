package application_test

import (
	"context"
	"testing"

	"github.com/metastage/metastage"
	"github.com/metastage/metastage/application"
	"github.com/metastage/metastage/kit/platform/errors"
	platformtesting "github.com/metastage/metastage/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newService(t *testing.T, seed ...*metastage.Application) *application.Service {
	t.Helper()

	envs := platformtesting.NewEnvironments(t, "dev", "prod")
	t.Cleanup(envs.Close)
	for _, a := range seed {
		envs.Seed(t, "prod", "known-applications", a)
	}

	s, err := application.NewService(context.Background(), envs.Registry, "prod", zaptest.NewLogger(t))
	require.NoError(t, err)
	envs.WaitReady(t)
	return s
}

func TestService_GetApplication(t *testing.T) {
	s := newService(t,
		&metastage.Application{ID: "shop", Name: "Shop", Aliases: []string{"webshop"}},
		&metastage.Application{ID: "billing", Name: "Billing"},
	)
	ctx := context.Background()

	tests := []struct {
		id      string
		want    string
		wantErr bool
	}{
		{id: "shop", want: "shop"},
		{id: "webshop", want: "shop"},
		{id: "billing", want: "billing"},
		{id: "unknown", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			a, err := s.GetApplication(ctx, tt.id)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, errors.EInvalid, errors.ErrorCode(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, a.ID)
		})
	}

	all, err := s.ListApplications(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "billing", all[0].ID)
	assert.Equal(t, "shop", all[1].ID)
}

func TestService_RegisterApplication(t *testing.T) {
	s := newService(t)
	ctx := context.Background()

	require.NoError(t, s.RegisterApplication(ctx, &metastage.Application{ID: "shop", Name: "Shop"}))
	a, err := s.GetApplication(ctx, "shop")
	require.NoError(t, err)
	assert.Equal(t, "Shop", a.Name)

	err = s.RegisterApplication(ctx, &metastage.Application{Name: "Nameless"})
	assert.Equal(t, errors.EInvalid, errors.ErrorCode(err))
	err = s.RegisterApplication(ctx, &metastage.Application{ID: "x"})
	assert.Equal(t, errors.EInvalid, errors.ErrorCode(err))
}

func TestNewService_UnknownEnvironment(t *testing.T) {
	envs := platformtesting.NewEnvironments(t, "dev")
	t.Cleanup(envs.Close)

	_, err := application.NewService(context.Background(), envs.Registry, "prod", nil)
	require.Error(t, err)
}
