package environment

import (
	"fmt"

	"github.com/metastage/metastage"
	"github.com/metastage/metastage/messaging"
)

// Config describes one environment. The order of configs is the promotion order.
type Config struct {
	ID         string `yaml:"id" toml:"id" mapstructure:"id"`
	Name       string `yaml:"name" toml:"name" mapstructure:"name"`
	Production bool   `yaml:"production" toml:"production" mapstructure:"production"`
	// Stagable defaults to true for every environment but the first.
	Stagable *bool `yaml:"stagable,omitempty" toml:"stagable,omitempty" mapstructure:"stagable"`

	Kafka messaging.Config `yaml:",inline" toml:"kafka" mapstructure:",squash"`
}

// Environments turns configs into domain environments and validates them.
func Environments(configs []Config) ([]*metastage.Environment, error) {
	if len(configs) == 0 {
		return nil, fmt.Errorf("no environments configured")
	}

	seen := make(map[string]bool, len(configs))
	envs := make([]*metastage.Environment, 0, len(configs))
	for i, c := range configs {
		if c.ID == "" {
			return nil, fmt.Errorf("environment %d has no id", i)
		}
		if seen[c.ID] {
			return nil, fmt.Errorf("duplicate environment id %q", c.ID)
		}
		seen[c.ID] = true

		name := c.Name
		if name == "" {
			name = c.ID
		}
		stagable := i > 0
		if c.Stagable != nil {
			stagable = *c.Stagable
		}
		envs = append(envs, &metastage.Environment{
			ID:         c.ID,
			Name:       name,
			Production: c.Production,
			Stagable:   stagable,
		})
	}
	return envs, nil
}
