package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/zylisp/nrepl"
)

// nreplctl config.toml key mapping to bridge settings.
type fileConfig struct {
	Host        string `toml:"host"`
	Port        int    `toml:"port"`
	EvalTimeout string `toml:"eval_timeout"`
	ReadTimeout string `toml:"read_timeout"`
	MaxReads    int    `toml:"max_reads"`
}

// loadFileConfig overlays config file values onto the stock defaults.
// Only keys present in the file override.
func loadFileConfig(path string) (nrepl.Config, error) {
	cfg := nrepl.DefaultConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return nrepl.Config{}, fmt.Errorf("load config: %w", err)
	}

	if meta.IsDefined("host") {
		cfg.Host = strings.TrimSpace(raw.Host)
	}
	if meta.IsDefined("port") {
		cfg.Port = raw.Port
	}
	if meta.IsDefined("eval_timeout") {
		d, err := time.ParseDuration(raw.EvalTimeout)
		if err != nil {
			return nrepl.Config{}, fmt.Errorf("load config: eval_timeout: %w", err)
		}
		cfg.EvalTimeout = d
	}
	if meta.IsDefined("read_timeout") {
		d, err := time.ParseDuration(raw.ReadTimeout)
		if err != nil {
			return nrepl.Config{}, fmt.Errorf("load config: read_timeout: %w", err)
		}
		cfg.ReadTimeout = d
	}
	if meta.IsDefined("max_reads") {
		cfg.MaxReads = raw.MaxReads
	}
	return cfg, nil
}

// effectiveConfig resolves defaults, then the config file, then any
// explicit flags, in that order.
func effectiveConfig() (nrepl.Config, error) {
	cfg := nrepl.DefaultConfig()
	if rootFlags.configPath != "" {
		var err error
		cfg, err = loadFileConfig(rootFlags.configPath)
		if err != nil {
			return nrepl.Config{}, err
		}
	}
	if rootFlags.host != "" {
		cfg.Host = rootFlags.host
	}
	if rootFlags.port != 0 {
		cfg.Port = rootFlags.port
	}
	if rootFlags.timeout != 0 {
		cfg.EvalTimeout = rootFlags.timeout
	}
	return cfg, nil
}
