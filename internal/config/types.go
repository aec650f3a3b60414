package config

import (
	"time"

	"github.com/bianoble/sfsync/internal/mapping"
)

// Config represents the sfsync.yaml (or sfsync.toml) configuration file.
type Config struct {
	Schedule   Schedule `yaml:"schedule" toml:"schedule"`
	Source     Source   `yaml:"source" toml:"source"`
	Target     Target   `yaml:"target" toml:"target"`
	Records    []Record `yaml:"records" toml:"records"`
	Logging    Logging  `yaml:"logging,omitempty" toml:"logging"`
	Server     Server   `yaml:"server,omitempty" toml:"server"`
	StatusFile string   `yaml:"status_file,omitempty" toml:"status_file"`
}

// Schedule controls how often the service runs a pass.
type Schedule struct {
	Interval   time.Duration `yaml:"interval" toml:"interval"`
	RunOnStart *bool         `yaml:"run_on_start,omitempty" toml:"run_on_start"`
}

// ShouldRunOnStart reports whether a pass starts immediately; unset means yes.
func (s Schedule) ShouldRunOnStart() bool {
	return s.RunOnStart == nil || *s.RunOnStart
}

// Source is the ERP database the records are read from.
type Source struct {
	Driver  string        `yaml:"driver" toml:"driver"` // "mysql", "sqlite3"
	DSN     string        `yaml:"dsn" toml:"dsn"`
	Timeout time.Duration `yaml:"timeout,omitempty" toml:"timeout"`
}

// Target is the CRM org the records are mirrored into.
type Target struct {
	InstanceURL    string        `yaml:"instance_url" toml:"instance_url"`
	APIVersion     string        `yaml:"api_version,omitempty" toml:"api_version"`
	RequestTimeout time.Duration `yaml:"request_timeout,omitempty" toml:"request_timeout"`
	Auth           Auth          `yaml:"auth" toml:"auth"`
}

// Auth holds the OAuth2 credentials for the target org.
type Auth struct {
	TokenURL     string        `yaml:"token_url,omitempty" toml:"token_url"`
	GrantType    string        `yaml:"grant_type" toml:"grant_type"` // "client_credentials", "password"
	ClientID     string        `yaml:"client_id" toml:"client_id"`
	ClientSecret string        `yaml:"client_secret" toml:"client_secret"`
	Username     string        `yaml:"username,omitempty" toml:"username"`
	Password     string        `yaml:"password,omitempty" toml:"password"`
	TokenTTL     time.Duration `yaml:"token_ttl,omitempty" toml:"token_ttl"`
}

// Record declares one record type: a source query mirrored into one object.
type Record struct {
	Name            string          `yaml:"name" toml:"name"`
	Object          string          `yaml:"object" toml:"object"`
	ExternalIDField string          `yaml:"external_id_field" toml:"external_id_field"`
	Query           string          `yaml:"query" toml:"query"`
	KeyColumn       string          `yaml:"key_column" toml:"key_column"`
	MaxPages        int             `yaml:"max_pages,omitempty" toml:"max_pages"`
	Fields          []mapping.Field `yaml:"fields" toml:"fields"`
}

// Logging configures the process logger.
type Logging struct {
	Level      string `yaml:"level,omitempty" toml:"level"`   // debug, info, warn, error
	Format     string `yaml:"format,omitempty" toml:"format"` // json, text
	Output     string `yaml:"output,omitempty" toml:"output"` // stdout, stderr, file, both
	FilePath   string `yaml:"file_path,omitempty" toml:"file_path"`
	MaxSizeMB  int    `yaml:"max_size_mb,omitempty" toml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups,omitempty" toml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days,omitempty" toml:"max_age_days"`
	Compress   bool   `yaml:"compress,omitempty" toml:"compress"`
}

// Server configures the admin HTTP listener used by `sfsync serve`.
type Server struct {
	Addr string `yaml:"addr,omitempty" toml:"addr"`
}
