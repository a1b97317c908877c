package changes

import (
	"bytes"
	"context"
	"fmt"

	"github.com/metastage/metastage/kit/platform/errors"
	"github.com/metastage/metastage/pkg/future"
)

// historical change types that may still appear in old change logs. They
// decode to Legacy and are never produced.
var legacyTypes = map[Type]bool{
	"APPLICATION_REGISTERED":  true,
	"TOPIC_SCHEMA_ADDED":      true,
	"TOPIC_PRODUCER_ADDED":    true,
	"TOPIC_PRODUCER_REMOVED":  true,
	"SUBSCRIPTION_APPROVED":   true,
	"APPLICATION_OWNER_ADDED": true,
}

// Legacy is a change of a type that is no longer produced. It keeps the
// raw document so old change log entries can still be listed.
type Legacy struct {
	ChangeType Type
	Raw        []byte
}

func (c *Legacy) Type() Type { return c.ChangeType }

func (c *Legacy) ApplyTo(context.Context, ApplyContext) *future.Future[any] {
	return future.Failed[any](&errors.Error{
		Code: errors.ENotImplemented,
		Msg:  fmt.Sprintf("changes of type %s can no longer be applied", c.ChangeType),
	})
}

func (c *Legacy) Equal(other Change) bool {
	o, ok := other.(*Legacy)
	return ok && o.ChangeType == c.ChangeType && bytes.Equal(o.Raw, c.Raw)
}
