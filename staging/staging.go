// Package staging computes the changes that promote an application's
// metadata from one environment to the next, and applies them.
package staging

import (
	"context"
	"encoding/json"

	"github.com/metastage/metastage/changes"
)

// Staging is the ordered list of changes that brings the target
// environment up to date with the source for one application.
type Staging struct {
	ApplicationID       string
	SourceEnvironmentID string
	TargetEnvironmentID string
	Changes             []changes.Change
}

// Result is the outcome of applying one top-level change.
type Result struct {
	Change       changes.Change
	Succeeded    bool
	ErrorMessage string
}

// Service is the staging API.
type Service interface {
	// Prepare computes the staging. A non-nil filter restricts the result to
	// changes equal to one in filter.
	Prepare(ctx context.Context, applicationID, sourceEnvID, targetEnvID string, filter []changes.Change) (*Staging, error)

	// Perform applies the staging's changes in order and returns one result
	// per change. Failing changes do not stop the remaining ones.
	Perform(ctx context.Context, s *Staging) ([]Result, error)
}

type stagingJSON struct {
	ApplicationID       string            `json:"applicationId"`
	SourceEnvironmentID string            `json:"sourceEnvironmentId"`
	TargetEnvironmentID string            `json:"targetEnvironmentId"`
	Changes             []json.RawMessage `json:"changes"`
}

// MarshalJSON encodes every change with its changeType discriminant.
func (s *Staging) MarshalJSON() ([]byte, error) {
	out := stagingJSON{
		ApplicationID:       s.ApplicationID,
		SourceEnvironmentID: s.SourceEnvironmentID,
		TargetEnvironmentID: s.TargetEnvironmentID,
		Changes:             make([]json.RawMessage, 0, len(s.Changes)),
	}
	for _, c := range s.Changes {
		b, err := changes.Marshal(c)
		if err != nil {
			return nil, err
		}
		out.Changes = append(out.Changes, b)
	}
	return json.Marshal(out)
}

type resultJSON struct {
	Change       json.RawMessage `json:"change"`
	Succeeded    bool            `json:"succeeded"`
	ErrorMessage string          `json:"errorMessage,omitempty"`
}

// MarshalJSON encodes the change with its changeType discriminant.
func (r Result) MarshalJSON() ([]byte, error) {
	c, err := changes.Marshal(r.Change)
	if err != nil {
		return nil, err
	}
	return json.Marshal(resultJSON{
		Change:       c,
		Succeeded:    r.Succeeded,
		ErrorMessage: r.ErrorMessage,
	})
}

// UnmarshalJSON decodes a result written by MarshalJSON.
func (r *Result) UnmarshalJSON(b []byte) error {
	var raw resultJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	c, err := changes.Unmarshal(raw.Change)
	if err != nil {
		return err
	}
	*r = Result{Change: c, Succeeded: raw.Succeeded, ErrorMessage: raw.ErrorMessage}
	return nil
}

// UnmarshalJSON decodes a staging written by MarshalJSON.
func (s *Staging) UnmarshalJSON(b []byte) error {
	var raw stagingJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	list := make([]changes.Change, 0, len(raw.Changes))
	for _, rc := range raw.Changes {
		c, err := changes.Unmarshal(rc)
		if err != nil {
			return err
		}
		list = append(list, c)
	}
	*s = Staging{
		ApplicationID:       raw.ApplicationID,
		SourceEnvironmentID: raw.SourceEnvironmentID,
		TargetEnvironmentID: raw.TargetEnvironmentID,
		Changes:             list,
	}
	return nil
}
