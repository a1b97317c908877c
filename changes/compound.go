package changes

import (
	"context"
	"encoding/json"

	"github.com/metastage/metastage/pkg/future"
)

// Compound applies a main change followed by additional changes, strictly
// in sequence. The first failure fails the compound and skips the rest;
// sub-changes that were already applied stay applied.
type Compound struct {
	MainChange        Change
	AdditionalChanges []Change
}

// NewCompound returns a compound of main followed by additional.
func NewCompound(main Change, additional ...Change) *Compound {
	return &Compound{MainChange: main, AdditionalChanges: additional}
}

func (c *Compound) Type() Type { return TypeCompound }

// Changes returns the sub-changes in apply order.
func (c *Compound) Changes() []Change {
	return append([]Change{c.MainChange}, c.AdditionalChanges...)
}

func (c *Compound) ApplyTo(ctx context.Context, ac ApplyContext) *future.Future[any] {
	return future.Go(func() (any, error) {
		all := c.Changes()
		for i, sub := range all {
			subCtx := ac.withSchemaFollowing(publishedSchemaTopics(all[i+1:]))
			if _, err := sub.ApplyTo(ctx, subCtx).Await(ctx); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
}

// publishedSchemaTopics returns the topics receiving a schema in changes.
func publishedSchemaTopics(changes []Change) []string {
	var topics []string
	for _, c := range changes {
		if p, ok := c.(*TopicSchemaVersionPublished); ok {
			topics = append(topics, p.TopicName)
		}
	}
	return topics
}

func (c *Compound) Equal(other Change) bool {
	o, ok := other.(*Compound)
	if !ok || len(o.AdditionalChanges) != len(c.AdditionalChanges) || !o.MainChange.Equal(c.MainChange) {
		return false
	}
	for i := range c.AdditionalChanges {
		if !c.AdditionalChanges[i].Equal(o.AdditionalChanges[i]) {
			return false
		}
	}
	return true
}

type compoundJSON struct {
	MainChange        json.RawMessage   `json:"mainChange"`
	AdditionalChanges []json.RawMessage `json:"additionalChanges"`
}

func (c *Compound) MarshalJSON() ([]byte, error) {
	main, err := Marshal(c.MainChange)
	if err != nil {
		return nil, err
	}
	enc := compoundJSON{
		MainChange:        main,
		AdditionalChanges: make([]json.RawMessage, 0, len(c.AdditionalChanges)),
	}
	for _, a := range c.AdditionalChanges {
		b, err := Marshal(a)
		if err != nil {
			return nil, err
		}
		enc.AdditionalChanges = append(enc.AdditionalChanges, b)
	}
	return json.Marshal(enc)
}

func (c *Compound) UnmarshalJSON(b []byte) error {
	var dec compoundJSON
	if err := json.Unmarshal(b, &dec); err != nil {
		return err
	}
	main, err := Unmarshal(dec.MainChange)
	if err != nil {
		return err
	}
	c.MainChange = main
	c.AdditionalChanges = make([]Change, 0, len(dec.AdditionalChanges))
	for _, raw := range dec.AdditionalChanges {
		a, err := Unmarshal(raw)
		if err != nil {
			return err
		}
		c.AdditionalChanges = append(c.AdditionalChanges, a)
	}
	return nil
}
