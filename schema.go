package metastage

import (
	"sort"
	"time"
)

// SchemaMetadata is one published JSON schema version of a topic.
type SchemaMetadata struct {
	ID                string    `json:"id"`
	TopicName         string    `json:"topicName"`
	SchemaVersion     int       `json:"schemaVersion"`
	JSONSchema        string    `json:"jsonSchema"`
	ChangeDescription string    `json:"changeDescription,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
	CreatedBy         string    `json:"createdBy,omitempty"`
}

// Key implements metastore.Record.
func (s *SchemaMetadata) Key() string { return s.ID }

// SortSchemas sorts schemas by ascending version.
func SortSchemas(schemas []*SchemaMetadata) {
	sort.Slice(schemas, func(i, j int) bool {
		return schemas[i].SchemaVersion < schemas[j].SchemaVersion
	})
}
