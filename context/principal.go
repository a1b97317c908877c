package context

import (
	"context"

	"github.com/metastage/metastage/kit/platform/errors"
)

type contextKey string

const (
	principalCtxKey = contextKey("metastage/principal/v1")
)

// Principal identifies who triggered a change. It ends up in change log entries.
type Principal struct {
	ID       string
	FullName string
}

// SetPrincipal sets the acting principal on context.
func SetPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalCtxKey, p)
}

// GetPrincipal retrieves the principal from context.
func GetPrincipal(ctx context.Context) (Principal, error) {
	p, ok := ctx.Value(principalCtxKey).(Principal)
	if !ok {
		return Principal{}, &errors.Error{
			Msg:  "principal not found on context",
			Code: errors.EInternal,
		}
	}

	return p, nil
}
