package execution

import (
	"code.tidebook.io/tidebook/config/encoding"
	"code.tidebook.io/tidebook/logging"
)

const namedLogger = "execution"

// Config is the execution engine configuration.
type Config struct {
	Level encoding.LogLevel `long:"log-level"`
}

// NewDefaultConfig creates an instance of the package specific
// configuration.
func NewDefaultConfig() Config {
	return Config{
		Level: encoding.LogLevel{Level: logging.InfoLevel},
	}
}
