package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"go.uber.org/zap/zapcore"
)

// supportedLevels are the levels a user may pick. Panic and fatal levels
// would silence the warnings the daemon relies on.
var supportedLevels = []zapcore.Level{
	zapcore.DebugLevel,
	zapcore.InfoLevel,
	zapcore.WarnLevel,
	zapcore.ErrorLevel,
}

// ParseLevel parses one of the supported log levels, in any case.
func ParseLevel(s string) (zapcore.Level, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(strings.ToLower(s))); err == nil {
		for _, l := range supportedLevels {
			if l == level {
				return level, nil
			}
		}
	}

	names := make([]string, len(supportedLevels))
	for i, l := range supportedLevels {
		names[i] = l.String()
	}
	return level, fmt.Errorf("unknown log level %q; supported levels are %s", s, strings.Join(names, ", "))
}

// levelFlag is a pflag.Value writing a parsed level through p.
type levelFlag struct {
	p *zapcore.Level
}

func (f levelFlag) String() string {
	if f.p == nil {
		return ""
	}
	return f.p.String()
}

func (f levelFlag) Set(s string) error {
	level, err := ParseLevel(s)
	if err != nil {
		return err
	}
	*f.p = level
	return nil
}

func (levelFlag) Type() string { return "level" }

// LevelVar defines a log level flag stored in p, starting at value.
func LevelVar(fs *pflag.FlagSet, p *zapcore.Level, name string, value zapcore.Level, usage string) {
	*p = value
	fs.Var(levelFlag{p: p}, name, usage)
}
