package messaging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{
			name:   "plain",
			config: Config{BootstrapServers: []string{"localhost:9092"}},
		},
		{
			name:    "no brokers",
			config:  Config{},
			wantErr: true,
		},
		{
			name:    "username without password",
			config:  Config{BootstrapServers: []string{"localhost:9092"}, SASLUsername: "u"},
			wantErr: true,
		},
		{
			name:    "password without username",
			config:  Config{BootstrapServers: []string{"localhost:9092"}, SASLPassword: "p"},
			wantErr: true,
		},
		{
			name: "scram over tls",
			config: Config{
				BootstrapServers: []string{"localhost:9093"},
				SASLUsername:     "u",
				SASLPassword:     "p",
				TLS:              true,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestConfig_Transport(t *testing.T) {
	c := Config{
		BootstrapServers: []string{"localhost:9093"},
		SASLUsername:     "u",
		SASLPassword:     "p",
		TLS:              true,
	}
	tr, err := c.transport()
	require.NoError(t, err)
	assert.NotNil(t, tr.TLS)
	require.NotNil(t, tr.SASL)
	assert.Equal(t, "SCRAM-SHA-512", tr.SASL.Name())
	assert.Equal(t, DefaultTimeout, tr.DialTimeout)

	d, err := Config{BootstrapServers: []string{"localhost:9092"}}.dialer()
	require.NoError(t, err)
	assert.Nil(t, d.TLS)
	assert.Nil(t, d.SASLMechanism)
}

func TestNewKafkaClient(t *testing.T) {
	_, err := NewKafkaClient(Config{}, nil)
	require.ErrorIs(t, err, ErrBrokersRequired)

	c, err := NewKafkaClient(Config{BootstrapServers: []string{"localhost:9092"}}, nil)
	require.NoError(t, err)
	require.NoError(t, c.Close())

	_, err = c.NewReader("t", FirstOffset)
	require.ErrorIs(t, err, ErrClientClosed)
}
