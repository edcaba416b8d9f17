package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sensiblebit/certhealth/internal/certmonger"
	"github.com/sensiblebit/certhealth/internal/config"
	"github.com/sensiblebit/certhealth/internal/container"
	"github.com/sensiblebit/certhealth/internal/healthcheck"
	"github.com/sensiblebit/certhealth/internal/inventory"
	"github.com/sensiblebit/certhealth/internal/nssdb"
	"github.com/sensiblebit/certhealth/internal/result"
	"github.com/sensiblebit/certhealth/internal/snapshot"
	"github.com/sensiblebit/certhealth/internal/tracking"
	"github.com/sensiblebit/certhealth/internal/trust"
)

// environment holds the observers for one run, live or from a snapshot.
type environment struct {
	cfg          *config.Config
	tracking     tracking.Observer
	trust        trust.Observer
	stores       inventory.StoreSource
	loader       container.Loader
	caConfigured bool
	close        func() error
}

func newEnvironment(ctx context.Context, cfg *config.Config) (*environment, error) {
	passwords, err := container.Passwords(cfg.Passwords, cfg.PasswordFile)
	if err != nil {
		return nil, err
	}

	if cfg.Snapshot.Path != "" {
		snap, err := snapshot.Load(cfg.Snapshot.Path)
		if err != nil {
			return nil, err
		}
		env := &environment{
			cfg:          cfg,
			tracking:     snap,
			trust:        snap,
			stores:       snap,
			loader:       container.Loader{Passwords: passwords, ReadFile: snap.ReadFile},
			caConfigured: cfg.CAConfigured.Resolve(cfg.Layout),
			close:        snap.Close,
		}
		if cfg.CAConfigured == config.CAAuto {
			info, ok, err := snap.Info(ctx)
			if err != nil {
				_ = snap.Close()
				return nil, err
			}
			if ok {
				env.caConfigured = info.CAConfigured
				slog.Info("using snapshot", "host", info.Hostname, "captured_at", info.CapturedAt)
			}
		}
		return env, nil
	}

	nss := nssdb.CommandObserver{Certutil: cfg.Trust.Certutil, Timeout: cfg.Trust.Timeout}
	env := &environment{
		cfg:          cfg,
		tracking:     certmonger.DirObserver{Dir: cfg.Tracking.RequestDir},
		trust:        nss,
		stores:       nss,
		loader:       container.Loader{Passwords: passwords},
		caConfigured: cfg.CAConfigured.Resolve(cfg.Layout),
		close:        func() error { return nil },
	}
	if cfg.Trust.ListingFile != "" {
		env.trust = nssdb.ListingFile{Path: cfg.Trust.ListingFile}
	}
	return env, nil
}

// builder returns the inventory builder, reading the CA bundle to decide
// which service certificates were issued by this host's CA.
func (e *environment) builder() (*inventory.Builder, error) {
	cas, err := e.loader.LoadCABundle(e.cfg.Layout.CACertFile)
	if err != nil {
		return nil, err
	}
	issuer, err := inventory.NewCAIssuerCheck(cas)
	if err != nil {
		return nil, fmt.Errorf("building issuer check: %w", err)
	}
	return &inventory.Builder{
		Layout: e.cfg.Layout,
		Issuer: issuer,
		Files:  e.loader,
		Stores: e.stores,
	}, nil
}

// checks returns the registered checks in reporting order. A CA bundle that
// cannot be read fails only the tracking check.
func (e *environment) checks() []healthcheck.Check {
	var tc healthcheck.Check
	if b, err := e.builder(); err != nil {
		tc = failedCheck{name: tracking.CheckName, err: err}
	} else {
		tc = &healthcheck.TrackingCheck{
			Inventory:    b,
			Tracking:     e.tracking,
			Trust:        e.trust,
			CAConfigured: e.caConfigured,
		}
	}
	return []healthcheck.Check{
		&healthcheck.ExpirationCheck{Tracking: e.tracking, WarnDays: e.cfg.CertExpirationDays},
		tc,
		&healthcheck.TrustCheck{
			Trust:        e.trust,
			Location:     e.cfg.Layout.PKIAliasDir,
			Policy:       trust.DefaultPolicy(),
			CAConfigured: e.caConfigured,
		},
	}
}

// failedCheck reports a setup error through the runner like any other
// check failure.
type failedCheck struct {
	name string
	err  error
}

func (f failedCheck) Name() string { return f.name }

func (f failedCheck) Run(context.Context) ([]result.Finding, error) { return nil, f.err }
