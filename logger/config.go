package logger

import (
	"io"

	"go.uber.org/zap/zapcore"
)

// Log formats understood by Config.
const (
	FormatAuto    = "auto"
	FormatConsole = "console"
	FormatLogfmt  = "logfmt"
	FormatJSON    = "json"
)

// Config selects the encoding and verbosity of the process logger.
type Config struct {
	Format string        `toml:"format" yaml:"format"`
	Level  zapcore.Level `toml:"level" yaml:"level"`
}

// NewConfig returns an info level config picking its format from the output.
func NewConfig() Config {
	return Config{
		Format: FormatAuto,
		Level:  zapcore.InfoLevel,
	}
}

// format resolves FormatAuto: console output for terminals, logfmt for
// everything else.
func (c *Config) format(w io.Writer) string {
	if c.Format != "" && c.Format != FormatAuto {
		return c.Format
	}
	if IsTerminal(w) {
		return FormatConsole
	}
	return FormatLogfmt
}
