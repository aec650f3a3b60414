package config

import (
	"bytes"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/bianoble/sfsync/internal/mapping"
	"github.com/bianoble/sfsync/internal/source"
)

// Defaults applied by Load when a value is left unset.
const (
	DefaultInterval       = 5 * time.Minute
	DefaultAPIVersion     = "v60.0"
	DefaultRequestTimeout = 30 * time.Second
	DefaultSourceTimeout  = 2 * time.Minute
	DefaultMaxPages       = 10000
	DefaultTokenTTL       = time.Hour
	DefaultStatusFile     = "sfsync-status.yaml"
	DefaultServerAddr     = ":8080"
)

// Grant types accepted in target.auth.grant_type.
const (
	GrantClientCredentials = "client_credentials"
	GrantPassword          = "password"
)

// Load reads, expands, defaults and validates a configuration file.
// Files ending in .toml are decoded as TOML; anything else as YAML.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg, err := Parse(data, formatOf(path))
	if err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if errs := Validate(cfg); len(errs) > 0 {
		return nil, &ValidationError{Errors: errs}
	}

	return cfg, nil
}

// Parse decodes data in the given format ("yaml" or "toml"), expands
// ${VAR} references in the connection and credential fields, then applies
// defaults. Queries and mappings are never expanded.
func Parse(data []byte, format string) (*Config, error) {
	var cfg Config
	switch format {
	case "toml":
		md, err := toml.Decode(string(data), &cfg)
		if err != nil {
			return nil, err
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("unknown keys: %v", undecoded)
		}
	case "yaml", "":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported config format '%s'", format)
	}

	expandEnv(&cfg)
	ApplyDefaults(&cfg)
	return &cfg, nil
}

var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnv replaces ${NAME} with the environment value. A bare $ is kept.
func expandEnv(cfg *Config) {
	for _, field := range []*string{
		&cfg.Source.DSN,
		&cfg.Target.InstanceURL,
		&cfg.Target.Auth.TokenURL,
		&cfg.Target.Auth.ClientID,
		&cfg.Target.Auth.ClientSecret,
		&cfg.Target.Auth.Username,
		&cfg.Target.Auth.Password,
		&cfg.Logging.FilePath,
		&cfg.StatusFile,
	} {
		*field = envRef.ReplaceAllStringFunc(*field, func(ref string) string {
			return os.Getenv(envRef.FindStringSubmatch(ref)[1])
		})
	}
}

func formatOf(path string) string {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return "toml"
	}
	return "yaml"
}

// ApplyDefaults fills every unset optional value.
func ApplyDefaults(cfg *Config) {
	if cfg.Schedule.Interval == 0 {
		cfg.Schedule.Interval = DefaultInterval
	}
	if cfg.Source.Timeout == 0 {
		cfg.Source.Timeout = DefaultSourceTimeout
	}
	if cfg.Target.APIVersion == "" {
		cfg.Target.APIVersion = DefaultAPIVersion
	}
	if cfg.Target.RequestTimeout == 0 {
		cfg.Target.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.Target.Auth.TokenURL == "" && cfg.Target.InstanceURL != "" {
		cfg.Target.Auth.TokenURL = strings.TrimRight(cfg.Target.InstanceURL, "/") + "/services/oauth2/token"
	}
	if cfg.Target.Auth.GrantType == "" {
		cfg.Target.Auth.GrantType = GrantClientCredentials
	}
	if cfg.Target.Auth.TokenTTL == 0 {
		cfg.Target.Auth.TokenTTL = DefaultTokenTTL
	}
	for i := range cfg.Records {
		if cfg.Records[i].MaxPages == 0 {
			cfg.Records[i].MaxPages = DefaultMaxPages
		}
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stderr"
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = DefaultServerAddr
	}
	if cfg.StatusFile == "" {
		cfg.StatusFile = DefaultStatusFile
	}
}

// ValidationError holds multiple validation failures.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed:\n  - %s", strings.Join(e.Errors, "\n  - "))
}

// Validate checks a Config for semantic correctness.
// Returns a list of validation error messages (empty if valid).
func Validate(cfg *Config) []string {
	var errs []string

	if cfg.Schedule.Interval < 0 {
		errs = append(errs, fmt.Sprintf("schedule: invalid interval %s — must be positive", cfg.Schedule.Interval))
	}

	// Source.
	switch {
	case cfg.Source.Driver == "":
		errs = append(errs, fmt.Sprintf("source: 'driver' is required — must be one of: %s", strings.Join(source.SupportedDrivers, ", ")))
	case !slices.Contains(source.SupportedDrivers, cfg.Source.Driver):
		errs = append(errs, fmt.Sprintf("source: unknown driver '%s' — must be one of: %s", cfg.Source.Driver, strings.Join(source.SupportedDrivers, ", ")))
	}
	if cfg.Source.DSN == "" {
		errs = append(errs, "source: 'dsn' is required")
	}

	// Target.
	errs = append(errs, validateTarget(cfg.Target)...)

	// Records.
	if len(cfg.Records) == 0 {
		errs = append(errs, "at least one record is required")
	}
	names := make(map[string]bool)
	for i, rec := range cfg.Records {
		prefix := fmt.Sprintf("record[%d]", i)
		if rec.Name != "" {
			prefix = fmt.Sprintf("record '%s'", rec.Name)
		}

		if rec.Name == "" {
			errs = append(errs, fmt.Sprintf("%s: 'name' is required", prefix))
		} else if names[rec.Name] {
			errs = append(errs, fmt.Sprintf("%s: duplicate record name '%s'", prefix, rec.Name))
		} else {
			names[rec.Name] = true
		}

		errs = append(errs, validateRecord(rec, prefix)...)
	}

	// Logging.
	switch strings.ToLower(cfg.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("logging: invalid level '%s' — must be one of: debug, info, warn, error", cfg.Logging.Level))
	}
	switch cfg.Logging.Format {
	case "json", "text":
	default:
		errs = append(errs, fmt.Sprintf("logging: invalid format '%s' — must be one of: json, text", cfg.Logging.Format))
	}
	switch cfg.Logging.Output {
	case "stdout", "stderr":
	case "file", "both":
		if cfg.Logging.FilePath == "" {
			errs = append(errs, fmt.Sprintf("logging: output '%s' requires 'file_path'", cfg.Logging.Output))
		}
	default:
		errs = append(errs, fmt.Sprintf("logging: invalid output '%s' — must be one of: stdout, stderr, file, both", cfg.Logging.Output))
	}

	return errs
}

func validateTarget(tgt Target) []string {
	var errs []string

	if tgt.InstanceURL == "" {
		errs = append(errs, "target: 'instance_url' is required — add 'instance_url: https://<domain>.my.salesforce.com'")
	} else if !isHTTPURL(tgt.InstanceURL) {
		errs = append(errs, fmt.Sprintf("target: invalid instance_url '%s' — must be an absolute http(s) URL", tgt.InstanceURL))
	}
	if tgt.Auth.TokenURL != "" && !isHTTPURL(tgt.Auth.TokenURL) {
		errs = append(errs, fmt.Sprintf("target.auth: invalid token_url '%s' — must be an absolute http(s) URL", tgt.Auth.TokenURL))
	}
	if tgt.RequestTimeout < 0 {
		errs = append(errs, "target: 'request_timeout' must be positive")
	}

	auth := tgt.Auth
	if auth.ClientID == "" {
		errs = append(errs, "target.auth: 'client_id' is required")
	}
	switch auth.GrantType {
	case GrantClientCredentials:
		if auth.ClientSecret == "" {
			errs = append(errs, "target.auth: grant 'client_credentials' requires 'client_secret'")
		}
	case GrantPassword:
		if auth.Username == "" || auth.Password == "" {
			errs = append(errs, "target.auth: grant 'password' requires 'username' and 'password'")
		}
	default:
		errs = append(errs, fmt.Sprintf("target.auth: unknown grant_type '%s' — must be one of: client_credentials, password", auth.GrantType))
	}

	return errs
}

func validateRecord(rec Record, prefix string) []string {
	var errs []string

	if rec.Object == "" {
		errs = append(errs, fmt.Sprintf("%s: 'object' is required", prefix))
	}
	if rec.ExternalIDField == "" {
		errs = append(errs, fmt.Sprintf("%s: 'external_id_field' is required", prefix))
	}
	if strings.TrimSpace(rec.Query) == "" {
		errs = append(errs, fmt.Sprintf("%s: 'query' is required", prefix))
	}
	if rec.KeyColumn == "" {
		errs = append(errs, fmt.Sprintf("%s: 'key_column' is required", prefix))
	}
	if rec.MaxPages < 0 {
		errs = append(errs, fmt.Sprintf("%s: 'max_pages' must be positive", prefix))
	}
	if len(rec.Fields) == 0 {
		errs = append(errs, fmt.Sprintf("%s: at least one field is required", prefix))
	} else if _, err := mapping.Compile(rec.Fields); err != nil {
		errs = append(errs, fmt.Sprintf("%s: %v", prefix, err))
	}

	return errs
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// SelectRecords returns the records named in names, in the order given.
// An empty names list selects every record.
func (c *Config) SelectRecords(names []string) ([]Record, error) {
	if len(names) == 0 {
		return c.Records, nil
	}
	byName := make(map[string]Record, len(c.Records))
	for _, rec := range c.Records {
		byName[rec.Name] = rec
	}
	out := make([]Record, 0, len(names))
	for _, name := range names {
		rec, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("unknown record '%s'", name)
		}
		out = append(out, rec)
	}
	return out, nil
}
