// Package config handles loading and parsing application configuration.
// It supports two sources for the file path (in priority order):
//  1. An environment variable:  CONFIG_PATH=/path/to/config.yaml
//  2. A command-line flag:      --config=/path/to/config.yaml
//
// The config file is optional. Every field carries a default (port 80,
// 10 clients, 1024-byte reads), so the server runs with no file at all.
// Environment variables override both the file and the defaults.
package config

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/ilyakaznacheev/cleanenv"
)

// List modes for the list_users command.
const (
	// ListModeSnapshot copies rows under the store lock and writes them to
	// the client after the lock is released.
	ListModeSnapshot = "snapshot"
	// ListModeLocked writes every row to the client while the store lock is
	// held, blocking every other connection's store access meanwhile.
	ListModeLocked = "locked"
)

// Config is the root configuration structure.
// Every field maps to a key in the YAML file AND can be overridden
// by the corresponding environment variable (env:"...").
type Config struct {
	// Env controls log format and verbosity.
	// Valid values: "dev", "staging", "prod"
	Env string `yaml:"env" env:"ENV" env-default:"dev" validate:"oneof=dev staging prod"`

	// StoragePath is the filesystem path to the SQLite .db file.
	StoragePath string `yaml:"storage_path" env:"STORAGE_PATH" env-default:"users.db" validate:"required"`

	TCPServer `yaml:"tcp_server"`
}

// TCPServer holds settings specific to the command listener.
// Nested under tcp_server: in the YAML file.
type TCPServer struct {
	// Addr is the TCP address the server listens on, e.g. ":80".
	Addr string `yaml:"address" env:"TCP_SERVER_ADDR" env-default:":80" validate:"required"`

	// Capacity is the maximum number of connections served at once.
	// Connections beyond it get the busy message and are closed.
	Capacity int `yaml:"capacity" env:"TCP_SERVER_CAPACITY" env-default:"10" validate:"min=1"`

	// BufferSize bounds a single read, and therefore a single command.
	BufferSize int `yaml:"buffer_size" env:"TCP_SERVER_BUFFER" env-default:"1024" validate:"min=16"`

	// ListMode selects how list_users streams rows, see ListModeSnapshot
	// and ListModeLocked.
	ListMode string `yaml:"list_mode" env:"TCP_SERVER_LIST_MODE" env-default:"snapshot" validate:"oneof=snapshot locked"`

	// ListTerminator, when set, is written as its own line after the last
	// row of every listing. Empty means no end marker.
	ListTerminator string `yaml:"list_terminator" env:"TCP_SERVER_LIST_END"`
}

// Load reads the YAML file at path (or only the environment when path is
// empty), applies defaults and validates the result.
func Load(path string) (*Config, error) {
	var cfg Config

	if path == "" {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("config.Load: read env: %w", err)
		}
	} else {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config.Load: %w", err)
		}
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("config.Load: read %s: %w", path, err)
		}
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("config.Load: validate: %w", err)
	}

	return &cfg, nil
}

// MustLoad resolves the config path, loads the config and exits the
// process if anything is wrong. If this returns, the config is valid.
func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")

	if configPath == "" {
		flags := flag.String("config", "", "Path to the configuration YAML file")
		flag.Parse()
		configPath = *flags
	}

	cfg, err := Load(configPath)
	if err != nil {
		log.Fatalf("cannot load config: %s", err.Error())
	}

	return cfg
}
