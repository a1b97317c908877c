package launcher

import (
	"fmt"
	"io"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/metastage/metastage/environment"
	"github.com/metastage/metastage/kit/cli"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

const redacted = "******"

func newPrintConfigCommand(v *viper.Viper, l *Launcher, opts []cli.Opt) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "print-config",
		Short: "Print the effective server configuration",
		Long: `Print the config that would be used by metastaged, merged from
the config file, METASTAGED_* environment variables and flag defaults.
SASL passwords are redacted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := l.loadEnvironments(v); err != nil {
				return err
			}
			return printAllConfigRunE(opts, l.environments, format, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&format, "format", "yaml", "output format (yaml or toml)")
	return cmd
}

func printAllConfigRunE(opts []cli.Opt, envs []environment.Config, format string, out io.Writer) error {
	config := make(map[string]interface{}, len(opts)+1)
	for _, o := range opts {
		config[o.Flag] = configValue(o.DestP)
	}
	if len(envs) > 0 {
		redactedEnvs := make([]environment.Config, len(envs))
		for i, env := range envs {
			if env.Kafka.SASLPassword != "" {
				env.Kafka.SASLPassword = redacted
			}
			redactedEnvs[i] = env
		}
		config[environmentsKey] = redactedEnvs
	}

	switch format {
	case "yaml":
		enc := yaml.NewEncoder(out)
		if err := enc.Encode(config); err != nil {
			return err
		}
		return enc.Close()
	case "toml":
		return toml.NewEncoder(out).Encode(config)
	default:
		return fmt.Errorf("unknown config format %q", format)
	}
}

// configValue dereferences an option destination into a printable value.
func configValue(destP interface{}) interface{} {
	switch v := destP.(type) {
	case *string:
		return *v
	case *int:
		return *v
	case *bool:
		return *v
	case *[]string:
		return *v
	case *time.Duration:
		return v.String()
	case *zapcore.Level:
		return v.String()
	case pflag.Value:
		return v.String()
	default:
		panic(fmt.Errorf("unknown destination type %T", destP))
	}
}
