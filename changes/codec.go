package changes

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/buger/jsonparser"
	"github.com/metastage/metastage/kit/platform/errors"
)

const typeField = "changeType"

var constructors = map[Type]func() Change{
	TypeTopicCreated:            func() Change { return new(TopicCreated) },
	TypeTopicDeleted:            func() Change { return new(TopicDeleted) },
	TypeTopicDescriptionChanged: func() Change { return new(TopicDescriptionChanged) },
	TypeTopicDeprecated:         func() Change { return new(TopicDeprecated) },
	TypeTopicUndeprecated:       func() Change { return new(TopicUndeprecated) },
	TypeTopicSubscriptionApprovalRequiredFlagUpdated: func() Change {
		return new(TopicSubscriptionApprovalRequiredFlagUpdated)
	},
	TypeTopicSchemaVersionPublished:     func() Change { return new(TopicSchemaVersionPublished) },
	TypeTopicProducerApplicationAdded:   func() Change { return new(TopicProducerApplicationAdded) },
	TypeTopicProducerApplicationRemoved: func() Change { return new(TopicProducerApplicationRemoved) },
	TypeTopicOwnerChanged:               func() Change { return new(TopicOwnerChanged) },
	TypeTopicSubscribed:                 func() Change { return new(TopicSubscribed) },
	TypeTopicUnsubscribed:               func() Change { return new(TopicUnsubscribed) },
	TypeSubscriptionUpdated:             func() Change { return new(SubscriptionUpdated) },
	TypeCompound:                        func() Change { return new(Compound) },
}

// Marshal encodes c as a JSON document carrying its type in "changeType".
func Marshal(c Change) ([]byte, error) {
	if l, ok := c.(*Legacy); ok {
		return l.Raw, nil
	}
	b, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	return jsonparser.Set(b, []byte(strconv.Quote(string(c.Type()))), typeField)
}

// Unmarshal decodes a document produced by Marshal. Historical change types
// decode to *Legacy.
func Unmarshal(b []byte) (Change, error) {
	t, err := jsonparser.GetString(b, typeField)
	if err != nil {
		return nil, &errors.Error{
			Code: errors.EInvalid,
			Msg:  "change document has no change type",
			Err:  err,
		}
	}

	newChange, ok := constructors[Type(t)]
	if !ok {
		if legacyTypes[Type(t)] {
			return &Legacy{ChangeType: Type(t), Raw: append([]byte(nil), b...)}, nil
		}
		return nil, &errors.Error{
			Code: errors.EInvalid,
			Msg:  fmt.Sprintf("unknown change type %q", t),
		}
	}

	c := newChange()
	if err := json.Unmarshal(b, c); err != nil {
		return nil, &errors.Error{
			Code: errors.EInvalid,
			Msg:  fmt.Sprintf("invalid %s change", t),
			Err:  err,
		}
	}
	if v, ok := c.(validator); ok {
		if err := v.validate(); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// validator is implemented by changes carrying objects a decoded document
// may omit.
type validator interface {
	validate() error
}

func missing(t Type, field string) error {
	return &errors.Error{
		Code: errors.EInvalid,
		Msg:  fmt.Sprintf("%s change is missing %s", t, field),
	}
}

// MarshalList encodes changes as a JSON array.
func MarshalList(list []Change) ([]byte, error) {
	raw := make([]json.RawMessage, 0, len(list))
	for _, c := range list {
		b, err := Marshal(c)
		if err != nil {
			return nil, err
		}
		raw = append(raw, b)
	}
	return json.Marshal(raw)
}

// UnmarshalList decodes a JSON array of changes.
func UnmarshalList(b []byte) ([]Change, error) {
	list := []Change{}
	var decErr error
	_, err := jsonparser.ArrayEach(b, func(value []byte, dataType jsonparser.ValueType, _ int, _ error) {
		if decErr != nil {
			return
		}
		if dataType != jsonparser.Object {
			decErr = &errors.Error{Code: errors.EInvalid, Msg: "change list must contain objects"}
			return
		}
		c, err := Unmarshal(value)
		if err != nil {
			decErr = err
			return
		}
		list = append(list, c)
	})
	if err != nil {
		return nil, &errors.Error{
			Code: errors.EInvalid,
			Msg:  "invalid change list",
			Err:  err,
		}
	}
	if decErr != nil {
		return nil, decErr
	}
	return list, nil
}
