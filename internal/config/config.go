// Package config loads the certhealth YAML configuration.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sensiblebit/certhealth/internal/certmonger"
	"github.com/sensiblebit/certhealth/internal/expiry"
	"github.com/sensiblebit/certhealth/internal/inventory"
	"github.com/sensiblebit/certhealth/internal/nssdb"
)

// DefaultPath is read when no --config flag is given.
const DefaultPath = "/etc/certhealth/certhealth.yaml"

// Default values applied when fields are absent from the config file.
const (
	DefaultOutput   = "text"
	DefaultLogLevel = "info"
	DefaultCertutil = "certutil"
)

// CAMode says how to decide whether the CA subsystem is configured.
type CAMode string

const (
	CAAuto CAMode = "auto"
	CAYes  CAMode = "true"
	CANo   CAMode = "false"
)

// UnmarshalYAML accepts both the bare booleans and the "auto" string.
func (m *CAMode) UnmarshalYAML(n *yaml.Node) error {
	switch CAMode(n.Value) {
	case CAAuto, CAYes, CANo:
		*m = CAMode(n.Value)
		return nil
	case "":
		*m = CAAuto
		return nil
	}
	return fmt.Errorf("ca_configured: want auto, true or false, got %q", n.Value)
}

// Resolve returns whether the CA is configured, consulting the layout when
// the mode is auto.
func (m CAMode) Resolve(l inventory.Layout) bool {
	switch m {
	case CAYes:
		return true
	case CANo:
		return false
	default:
		return l.CAInstalled()
	}
}

// Config is the top-level configuration.
type Config struct {
	// CertExpirationDays is the warning horizon for expiring requests.
	CertExpirationDays int `yaml:"cert_expiration_days"`

	// MaxConcurrentChecks bounds how many checks run at once; zero runs
	// them all together.
	MaxConcurrentChecks int `yaml:"max_concurrent_checks"`

	// CAConfigured overrides CA subsystem detection.
	CAConfigured CAMode `yaml:"ca_configured"`

	// Layout holds the host paths and nicknames; unset fields keep the
	// stock IPA values.
	Layout inventory.Layout `yaml:"layout"`

	Tracking TrackingConfig `yaml:"tracking"`
	Trust    TrustConfig    `yaml:"trust"`
	Snapshot SnapshotConfig `yaml:"snapshot"`

	// Passwords are tried, after the defaults, on PKCS#12 and JKS files.
	Passwords    []string `yaml:"passwords"`
	PasswordFile string   `yaml:"password_file"`

	// Output is one of: text | json | yaml.
	Output    string `yaml:"output"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// TrackingConfig locates the tracking daemon's state.
type TrackingConfig struct {
	RequestDir string `yaml:"request_dir"`
}

// TrustConfig controls how certificate databases are read.
type TrustConfig struct {
	Certutil string        `yaml:"certutil"`
	Timeout  time.Duration `yaml:"timeout"`
	// ListingFile, when set, is a captured "certutil -L" listing of the CA
	// database used instead of running certutil.
	ListingFile string `yaml:"listing_file"`
}

// SnapshotConfig points the observers at a captured snapshot.
type SnapshotConfig struct {
	// Path of a snapshot database; when set, both observers read from it.
	Path string `yaml:"path"`
}

// Default returns a Config populated with default values.
func Default() *Config {
	return &Config{
		CertExpirationDays: expiry.DefaultWarnDays,
		CAConfigured:       CAAuto,
		Layout:             inventory.DefaultLayout(),
		Tracking:           TrackingConfig{RequestDir: certmonger.DefaultRequestDir},
		Trust:              TrustConfig{Certutil: DefaultCertutil, Timeout: nssdb.DefaultTimeout},
		Output:             DefaultOutput,
		LogLevel:           DefaultLogLevel,
		LogFormat:          "text",
	}
}

// Load reads and parses the YAML config file at path.
// Missing optional fields are filled with defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadOptional is Load, except that a missing file yields the defaults.
func LoadOptional(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	if c.CertExpirationDays < 0 {
		return fmt.Errorf("cert_expiration_days must not be negative, got %d", c.CertExpirationDays)
	}
	if c.MaxConcurrentChecks < 0 {
		return fmt.Errorf("max_concurrent_checks must not be negative, got %d", c.MaxConcurrentChecks)
	}
	switch c.Output {
	case "text", "json", "yaml":
	default:
		return fmt.Errorf("unknown output format %q (want text, json or yaml)", c.Output)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q (want text or json)", c.LogFormat)
	}
	if c.Trust.Timeout < 0 {
		return errors.New("trust.timeout must not be negative")
	}
	if c.Layout.CommandTemplate == "" {
		return errors.New("layout.command_template is required")
	}
	return nil
}
