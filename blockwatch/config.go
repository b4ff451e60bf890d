package blockwatch

import (
	"code.tidebook.io/tidebook/config/encoding"
	"code.tidebook.io/tidebook/logging"
)

const namedLogger = "blockwatch"

// Config is the block watcher configuration.
type Config struct {
	Level encoding.LogLevel `long:"log-level"`
	// Threshold is how many times a height must be reported before it
	// counts as settled.
	Threshold uint64 `long:"threshold"`
}

// NewDefaultConfig creates an instance of the package specific
// configuration.
func NewDefaultConfig() Config {
	return Config{
		Level:     encoding.LogLevel{Level: logging.InfoLevel},
		Threshold: 2,
	}
}
