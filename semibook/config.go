package semibook

import (
	"code.tidebook.io/tidebook/config/encoding"
	"code.tidebook.io/tidebook/logging"
)

const namedLogger = "semibook"

// Config is the semibook cache configuration.
type Config struct {
	Level encoding.LogLevel `long:"log-level"`
	// MaxOffers bounds how many offers the cache keeps per book side,
	// zero means unbounded.
	MaxOffers int `long:"max-offers"`
	// ChunkSize is how many offers a catch up fetch pulls per call.
	ChunkSize int `long:"chunk-size"`
}

// NewDefaultConfig creates an instance of the package specific
// configuration.
func NewDefaultConfig() Config {
	return Config{
		Level:     encoding.LogLevel{Level: logging.InfoLevel},
		MaxOffers: 500,
		ChunkSize: 100,
	}
}
