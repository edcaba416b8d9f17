package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sensiblebit/certhealth/internal/inventory"
)

func loadFromString(t *testing.T, data string) (*Config, error) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "certhealth.yaml")
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}
	return Load(path)
}

func TestLoad_Valid(t *testing.T) {
	t.Parallel()

	cfg, err := loadFromString(t, `
cert_expiration_days: 14
ca_configured: true
layout:
  ds_server_id: EXAMPLE-TEST
  httpd_cert_file: /srv/httpd.pem
tracking:
  request_dir: /tmp/requests
trust:
  certutil: /usr/bin/certutil
  timeout: 5s
output: json
log_level: debug
`)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.CertExpirationDays != 14 {
		t.Errorf("cert_expiration_days: got %d", cfg.CertExpirationDays)
	}
	if cfg.CAConfigured != CAYes {
		t.Errorf("ca_configured: got %q", cfg.CAConfigured)
	}
	if cfg.Trust.Timeout != 5*time.Second {
		t.Errorf("trust.timeout: got %v", cfg.Trust.Timeout)
	}
	if cfg.Layout.DSDatabase() != "/etc/dirsrv/slapd-EXAMPLE-TEST" {
		t.Errorf("ds database: got %q", cfg.Layout.DSDatabase())
	}
	if cfg.Layout.HTTPDCertFile != "/srv/httpd.pem" {
		t.Errorf("httpd_cert_file: got %q", cfg.Layout.HTTPDCertFile)
	}
	if cfg.Output != "json" || cfg.LogLevel != "debug" {
		t.Errorf("output/log_level: got %q/%q", cfg.Output, cfg.LogLevel)
	}
}

func TestLoad_Defaults(t *testing.T) {
	// WHY: A partial layout must merge over the stock paths rather than
	// blanking every field the file leaves out.
	t.Parallel()

	cfg, err := loadFromString(t, "layout:\n  ds_server_id: EXAMPLE-TEST\n")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	def := inventory.DefaultLayout()
	if cfg.Layout.PKIAliasDir != def.PKIAliasDir || cfg.Layout.CommandTemplate != def.CommandTemplate {
		t.Errorf("layout defaults lost: %+v", cfg.Layout)
	}
	if cfg.CertExpirationDays != 28 {
		t.Errorf("default cert_expiration_days: got %d, want 28", cfg.CertExpirationDays)
	}
	if cfg.CAConfigured != CAAuto {
		t.Errorf("default ca_configured: got %q", cfg.CAConfigured)
	}
}

func TestLoad_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		data    string
		wantErr string
	}{
		{name: "negative_days", data: "cert_expiration_days: -1\n", wantErr: "must not be negative"},
		{name: "negative_concurrency", data: "max_concurrent_checks: -2\n", wantErr: "max_concurrent_checks"},
		{name: "bad_output", data: "output: xml\n", wantErr: "unknown output format"},
		{name: "bad_ca_mode", data: "ca_configured: maybe\n", wantErr: "ca_configured"},
		{name: "bad_log_format", data: "log_format: logfmt\n", wantErr: "unknown log format"},
		{name: "syntax", data: "output: [\n", wantErr: "parsing config"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := loadFromString(t, tt.data)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadOptional_Missing(t *testing.T) {
	t.Parallel()

	cfg, err := LoadOptional(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadOptional: %v", err)
	}
	if cfg.Output != DefaultOutput {
		t.Errorf("expected defaults, got output %q", cfg.Output)
	}
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("Load must fail for a missing file")
	}
}

func TestCAMode_Resolve(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	csCfg := filepath.Join(dir, "CS.cfg")
	if err := os.WriteFile(csCfg, nil, 0o600); err != nil {
		t.Fatal(err)
	}
	present := inventory.Layout{CAConfigFile: csCfg}
	absent := inventory.Layout{CAConfigFile: filepath.Join(dir, "missing.cfg")}

	tests := []struct {
		mode   CAMode
		layout inventory.Layout
		want   bool
	}{
		{CAAuto, present, true},
		{CAAuto, absent, false},
		{CAYes, absent, true},
		{CANo, present, false},
	}
	for _, tt := range tests {
		if got := tt.mode.Resolve(tt.layout); got != tt.want {
			t.Errorf("%s.Resolve(%s) = %v, want %v", tt.mode, tt.layout.CAConfigFile, got, tt.want)
		}
	}
}
