package market

import (
	"code.tidebook.io/tidebook/config/encoding"
	"code.tidebook.io/tidebook/logging"
)

const namedLogger = "market"

// Config is the market facade configuration.
type Config struct {
	Level encoding.LogLevel `long:"log-level"`
	// SubscriberBuffer is the event channel depth of the market's own
	// subscribers (caches, promises).
	SubscriberBuffer int `long:"subscriber-buffer"`
}

// NewDefaultConfig creates an instance of the package specific
// configuration.
func NewDefaultConfig() Config {
	return Config{
		Level:            encoding.LogLevel{Level: logging.InfoLevel},
		SubscriberBuffer: 100,
	}
}
