package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
)

// Opt is a single command-line option
type Opt struct {
	DestP   interface{} // pointer to the destination
	Flag    string
	Default interface{}
	Desc    string
}

// NewOpt creates a new command line option.
func NewOpt(destP interface{}, flag string, dflt interface{}, desc string) Opt {
	return Opt{
		DestP:   destP,
		Flag:    flag,
		Default: dflt,
		Desc:    desc,
	}
}

// Program parses CLI options
type Program struct {
	// Run is invoked by cobra on execute.
	Run func() error
	// Name is the name of the program in help usage and the env var prefix.
	Name string
	// Opts are the command line/env var options to the program
	Opts []Opt
}

// NewCommand creates a new cobra command to be executed that respects env vars.
//
// Uses the upper-case version of the program's name as a prefix
// to all environment variables.
//
// This is to simplify the viper/cobra boilerplate.
func NewCommand(v *viper.Viper, p *Program) (*cobra.Command, error) {
	cmd := &cobra.Command{
		Use:  p.Name,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return p.Run()
		},
	}

	v.SetEnvPrefix(strings.ToUpper(p.Name))
	v.AutomaticEnv()
	// This normalizes "-" to an underscore in env names.
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	if err := initializeConfig(v, p.Name); err != nil {
		return nil, err
	}

	if err := BindOptions(v, cmd, p.Opts); err != nil {
		return nil, err
	}
	return cmd, nil
}

// BindOptions adds opts to the specified command and automatically
// registers those options with viper. Values already present in v (env vars,
// a config file) win over the flag defaults.
func BindOptions(v *viper.Viper, cmd *cobra.Command, opts []Opt) error {
	flags := cmd.Flags()
	for _, o := range opts {
		switch destP := o.DestP.(type) {
		case *string:
			var d string
			if o.Default != nil {
				d = o.Default.(string)
			}
			flags.StringVar(destP, o.Flag, d, o.Desc)
			if err := v.BindPFlag(o.Flag, flags.Lookup(o.Flag)); err != nil {
				return err
			}
			*destP = v.GetString(o.Flag)
		case *int:
			var d int
			if o.Default != nil {
				d = o.Default.(int)
			}
			flags.IntVar(destP, o.Flag, d, o.Desc)
			if err := v.BindPFlag(o.Flag, flags.Lookup(o.Flag)); err != nil {
				return err
			}
			*destP = v.GetInt(o.Flag)
		case *bool:
			var d bool
			if o.Default != nil {
				d = o.Default.(bool)
			}
			flags.BoolVar(destP, o.Flag, d, o.Desc)
			if err := v.BindPFlag(o.Flag, flags.Lookup(o.Flag)); err != nil {
				return err
			}
			*destP = v.GetBool(o.Flag)
		case *time.Duration:
			var d time.Duration
			if o.Default != nil {
				d = o.Default.(time.Duration)
			}
			flags.DurationVar(destP, o.Flag, d, o.Desc)
			if err := v.BindPFlag(o.Flag, flags.Lookup(o.Flag)); err != nil {
				return err
			}
			*destP = v.GetDuration(o.Flag)
		case *[]string:
			var d []string
			if o.Default != nil {
				d = o.Default.([]string)
			}
			flags.StringSliceVar(destP, o.Flag, d, o.Desc)
			if err := v.BindPFlag(o.Flag, flags.Lookup(o.Flag)); err != nil {
				return err
			}
			*destP = v.GetStringSlice(o.Flag)
		case *zapcore.Level:
			var l zapcore.Level
			if o.Default != nil {
				l = o.Default.(zapcore.Level)
			}
			LevelVar(flags, destP, o.Flag, l, o.Desc)
			if err := v.BindPFlag(o.Flag, flags.Lookup(o.Flag)); err != nil {
				return err
			}
			if s := v.GetString(o.Flag); s != "" {
				level, err := ParseLevel(s)
				if err != nil {
					return fmt.Errorf("invalid value for %s: %w", o.Flag, err)
				}
				*destP = level
			}
		case pflag.Value:
			if o.Default != nil {
				if err := destP.Set(fmt.Sprint(o.Default)); err != nil {
					return err
				}
			}
			flags.Var(destP, o.Flag, o.Desc)
			if err := v.BindPFlag(o.Flag, flags.Lookup(o.Flag)); err != nil {
				return err
			}
			if s := v.GetString(o.Flag); s != "" {
				if err := destP.Set(s); err != nil {
					return err
				}
			}
		default:
			// if you get a panic here, sorry about that!
			// anyway, go ahead and make a PR and add another type.
			panic(fmt.Errorf("unknown destination type %T", o.DestP))
		}
	}
	return nil
}

// initializeConfig reads the optional config file. The location comes from
// the <NAME>_CONFIG_PATH env var, which can point at a file or a directory
// holding config.{json,toml,yaml,yml}. Without it the working directory is searched.
func initializeConfig(v *viper.Viper, name string) error {
	configPath := os.Getenv(strings.ToUpper(name) + "_CONFIG_PATH")
	if configPath == "" {
		v.SetConfigName("config")
		v.AddConfigPath(".")
	} else if fi, err := os.Stat(configPath); err == nil && fi.IsDir() {
		v.SetConfigName("config")
		v.AddConfigPath(configPath)
	} else {
		v.SetConfigFile(configPath)
		if filepath.Ext(configPath) == "" {
			return fmt.Errorf("config file %q has no extension", configPath)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		if configPath == "" && os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading config: %w", err)
	}
	return nil
}
