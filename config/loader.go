package config

import (
	"bytes"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

// ConfigFileName is the name of the TOML file inside the root path.
const ConfigFileName = "config.toml"

var (
	// ErrConfigExists is returned when initializing over an existing file.
	ErrConfigExists = errors.New("configuration file already exists")
	// ErrConfigNotFound is returned when the root holds no configuration.
	ErrConfigNotFound = errors.New("configuration file not found")
)

// Read loads the configuration file found under rootPath, on top of the
// defaults: absent keys keep their default value.
func Read(rootPath string) (*Config, error) {
	path := filepath.Join(rootPath, ConfigFileName)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}
	cfg := NewDefaultConfig()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, errors.Wrap(err, "unable to decode configuration file")
	}
	return &cfg, nil
}

// Write serializes the configuration as TOML under rootPath. With force
// set an existing file is overwritten.
func Write(rootPath string, cfg Config, force bool) error {
	if err := os.MkdirAll(rootPath, 0o700); err != nil {
		return err
	}
	path := filepath.Join(rootPath, ConfigFileName)
	if !force {
		if _, err := os.Stat(path); err == nil {
			return ErrConfigExists
		}
	}
	buf := bytes.Buffer{}
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return errors.Wrap(err, "unable to encode configuration")
	}
	return os.WriteFile(path, buf.Bytes(), 0o600)
}
