package offerlist

import (
	"code.tidebook.io/tidebook/config/encoding"
	"code.tidebook.io/tidebook/logging"
)

const namedLogger = "offerlist"

// Config represents the configuration of the offer list engine.
type Config struct {
	Level encoding.LogLevel `long:"log-level"`
}

// NewDefaultConfig creates an instance of config with default values.
func NewDefaultConfig() Config {
	return Config{
		Level: encoding.LogLevel{Level: logging.InfoLevel},
	}
}
