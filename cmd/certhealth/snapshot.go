package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/sensiblebit/certhealth/internal/certmonger"
	"github.com/sensiblebit/certhealth/internal/nssdb"
	"github.com/sensiblebit/certhealth/internal/snapshot"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot <out.db>",
	Short: "Capture the host's tracking and trust state into a SQLite file",
	Long: "Record the certmonger requests, the CA and directory server certificate databases " +
		"and the service certificate files, for later analysis with --snapshot.",
	Args: cobra.ExactArgs(1),
	RunE: runSnapshot,
}

func runSnapshot(cmd *cobra.Command, args []string) error {
	out := args[0]
	if _, err := os.Stat(out); err == nil {
		return fmt.Errorf("%s already exists", out)
	}
	if cfg.Snapshot.Path != "" {
		return errors.New("cannot capture a snapshot while reading from one")
	}
	ctx := cmd.Context()

	store, err := snapshot.New()
	if err != nil {
		return err
	}
	defer store.Close()

	reqs, err := certmonger.DirObserver{Dir: cfg.Tracking.RequestDir}.ListTracked(ctx)
	if err != nil {
		return fmt.Errorf("listing tracked requests: %w", err)
	}
	if err := store.PutRequests(ctx, reqs); err != nil {
		return err
	}

	caConfigured := cfg.CAConfigured.Resolve(cfg.Layout)
	nss := nssdb.CommandObserver{Certutil: cfg.Trust.Certutil, Timeout: cfg.Trust.Timeout, WithCertificates: true}
	locations := []string{cfg.Layout.DSDatabase()}
	if caConfigured {
		locations = append([]string{cfg.Layout.PKIAliasDir}, locations...)
	}
	for _, loc := range locations {
		entries, err := nss.ListEntries(ctx, loc)
		if err != nil {
			return err
		}
		if err := store.PutEntries(ctx, loc, entries); err != nil {
			return err
		}
	}

	for _, path := range []string{cfg.Layout.CACertFile, cfg.Layout.HTTPDCertFile, cfg.Layout.KDCCertFile} {
		data, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			slog.Warn("certificate file not found, not captured", "path", path)
			continue
		}
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		if err := store.PutFile(ctx, path, data); err != nil {
			return err
		}
	}

	host, err := os.Hostname()
	if err != nil {
		slog.Debug("hostname unavailable", "error", err)
	}
	if err := store.SetInfo(ctx, snapshot.Info{CapturedAt: time.Now().UTC(), Hostname: host, CAConfigured: caConfigured}); err != nil {
		return err
	}
	if err := store.Save(out); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Captured %d request(s) and %d database(s) into %s\n", len(reqs), len(locations), out)
	return nil
}
