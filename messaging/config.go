package messaging

import (
	"crypto/tls"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl"
	"github.com/segmentio/kafka-go/sasl/scram"
)

// DefaultTimeout bounds a single request to the broker.
const DefaultTimeout = 10 * time.Second

// Config holds the connection settings of one environment's Kafka cluster.
type Config struct {
	BootstrapServers []string      `yaml:"bootstrap-servers" toml:"bootstrap-servers" mapstructure:"bootstrap-servers"`
	SASLUsername     string        `yaml:"sasl-username,omitempty" toml:"sasl-username,omitempty" mapstructure:"sasl-username"`
	SASLPassword     string        `yaml:"sasl-password,omitempty" toml:"sasl-password,omitempty" mapstructure:"sasl-password"`
	TLS              bool          `yaml:"tls" toml:"tls" mapstructure:"tls"`
	Timeout          time.Duration `yaml:"timeout,omitempty" toml:"timeout,omitempty" mapstructure:"timeout"`
	// ReplicationFactor is used for topics created without an explicit one.
	// Zero leaves the choice to the broker.
	ReplicationFactor int `yaml:"replication-factor,omitempty" toml:"replication-factor,omitempty" mapstructure:"replication-factor"`
}

// Validate checks the config for obvious mistakes.
func (c Config) Validate() error {
	if len(c.BootstrapServers) == 0 {
		return ErrBrokersRequired
	}
	if c.SASLUsername != "" && c.SASLPassword == "" {
		return fmt.Errorf("kafka username specified without a password")
	}
	if c.SASLUsername == "" && c.SASLPassword != "" {
		return fmt.Errorf("kafka password specified without a username")
	}
	return nil
}

func (c Config) timeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return DefaultTimeout
}

func (c Config) tlsConfig() *tls.Config {
	if !c.TLS {
		return nil
	}
	return &tls.Config{MinVersion: tls.VersionTLS12}
}

func (c Config) mechanism() (sasl.Mechanism, error) {
	if c.SASLUsername == "" {
		return nil, nil
	}
	mechanism, err := scram.Mechanism(scram.SHA512, c.SASLUsername, c.SASLPassword)
	if err != nil {
		return nil, fmt.Errorf("kafka scram configuration failed: %w", err)
	}
	return mechanism, nil
}

// transport builds the round tripper used for admin and produce requests.
func (c Config) transport() (*kafka.Transport, error) {
	mechanism, err := c.mechanism()
	if err != nil {
		return nil, err
	}
	return &kafka.Transport{
		DialTimeout: c.timeout(),
		TLS:         c.tlsConfig(),
		SASL:        mechanism,
	}, nil
}

// dialer builds the dialer used by partition readers.
func (c Config) dialer() (*kafka.Dialer, error) {
	mechanism, err := c.mechanism()
	if err != nil {
		return nil, err
	}
	return &kafka.Dialer{
		Timeout:       c.timeout(),
		DualStack:     true,
		TLS:           c.tlsConfig(),
		SASLMechanism: mechanism,
	}, nil
}
