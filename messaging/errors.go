package messaging

import "errors"

var (
	// ErrClientClosed is returned when using a closed client.
	ErrClientClosed = errors.New("client closed")

	// ErrReaderClosed is returned when reading from a closed topic reader.
	ErrReaderClosed = errors.New("reader closed")

	// ErrTopicExists is returned when creating a duplicate topic.
	ErrTopicExists = errors.New("topic already exists")

	// ErrTopicNotFound is returned when referencing a topic that doesn't exist.
	ErrTopicNotFound = errors.New("topic not found")

	// ErrTopicRequired is returned when publishing a message without a topic.
	ErrTopicRequired = errors.New("topic required")

	// ErrBrokersRequired is returned when configuring a client without bootstrap servers.
	ErrBrokersRequired = errors.New("bootstrap servers required")
)
