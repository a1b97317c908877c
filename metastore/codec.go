package metastore

import (
	"encoding/json"
)

// Codec converts records to and from the message values of a store's topic.
type Codec[T Record] interface {
	Encode(T) ([]byte, error)
	Decode([]byte) (T, error)
}

// JSONCodec stores records as JSON documents.
type JSONCodec[T Record] struct{}

func (JSONCodec[T]) Encode(v T) ([]byte, error) {
	return json.Marshal(v)
}

func (JSONCodec[T]) Decode(b []byte) (T, error) {
	var v T
	err := json.Unmarshal(b, &v)
	return v, err
}
