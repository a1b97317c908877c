package changelog

import (
	"encoding/json"
	"time"

	"github.com/metastage/metastage/changes"
)

// Entry is one applied change on one environment.
type Entry struct {
	ID                string
	Timestamp         time.Time
	Principal         string
	PrincipalFullName string
	Change            changes.Change
}

// Key implements metastore.Record.
func (e *Entry) Key() string { return e.ID }

type entryJSON struct {
	ID                string          `json:"id"`
	Timestamp         time.Time       `json:"timestamp"`
	Principal         string          `json:"principal,omitempty"`
	PrincipalFullName string          `json:"principalFullName,omitempty"`
	Change            json.RawMessage `json:"change"`
}

// MarshalJSON encodes the change with its changeType discriminant.
func (e *Entry) MarshalJSON() ([]byte, error) {
	c, err := changes.Marshal(e.Change)
	if err != nil {
		return nil, err
	}
	return json.Marshal(entryJSON{
		ID:                e.ID,
		Timestamp:         e.Timestamp,
		Principal:         e.Principal,
		PrincipalFullName: e.PrincipalFullName,
		Change:            c,
	})
}

// UnmarshalJSON decodes entries of any change type ever written, including
// historical ones.
func (e *Entry) UnmarshalJSON(b []byte) error {
	var raw entryJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	c, err := changes.Unmarshal(raw.Change)
	if err != nil {
		return err
	}
	*e = Entry{
		ID:                raw.ID,
		Timestamp:         raw.Timestamp,
		Principal:         raw.Principal,
		PrincipalFullName: raw.PrincipalFullName,
		Change:            c,
	}
	return nil
}
