// Package config loads application settings from an optional YAML file.
// CLI flags override file values; file values override defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config holds everything configurable outside CLI flags.
type Config struct {
	DataDir       string `mapstructure:"data_dir"`    // profile/history store location
	BackupsDir    string `mapstructure:"backups_dir"` // backup-stage dump files
	TempDir       string `mapstructure:"temp_dir"`    // dump scratch space, "" = system temp
	MinFreeTempMB uint64 `mapstructure:"min_free_temp_mb"`
	RestoreJobs   int    `mapstructure:"restore_jobs"` // 0 = derive from CPU count

	Tools struct {
		PgDump    string `mapstructure:"pg_dump"`
		Psql      string `mapstructure:"psql"`
		PgRestore string `mapstructure:"pg_restore"`
	} `mapstructure:"tools"`

	Logging struct {
		Verbose bool `mapstructure:"verbose"`
		Debug   bool `mapstructure:"debug"`
	} `mapstructure:"logging"`
}

// DefaultDataDir is <user config dir>/dbclone.
func DefaultDataDir() string {
	base, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "dbclone")
	}
	return filepath.Join(base, "dbclone")
}

// Load reads configuration from path. An empty path tries the default
// location (<data dir>/config.yaml) and a missing file there is not an
// error: defaults apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetDefault("data_dir", DefaultDataDir())
	v.SetDefault("backups_dir", "")
	v.SetDefault("temp_dir", "")
	v.SetDefault("min_free_temp_mb", 512)
	v.SetDefault("restore_jobs", 0)

	optional := path == ""
	if optional {
		path = filepath.Join(DefaultDataDir(), "config.yaml")
	}
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		var pathErr *os.PathError
		if !(optional && (errors.As(err, &pathErr) || os.IsNotExist(err))) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.BackupsDir == "" {
		cfg.BackupsDir = filepath.Join(cfg.DataDir, "backups")
	}
	return &cfg, nil
}

// ToolOverrides maps tool names to configured paths, skipping empty entries.
func (c *Config) ToolOverrides() map[string]string {
	m := map[string]string{}
	if c.Tools.PgDump != "" {
		m["pg_dump"] = c.Tools.PgDump
	}
	if c.Tools.Psql != "" {
		m["psql"] = c.Tools.Psql
	}
	if c.Tools.PgRestore != "" {
		m["pg_restore"] = c.Tools.PgRestore
	}
	return m
}
