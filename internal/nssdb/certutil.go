package nssdb

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/sensiblebit/certhealth"
	"github.com/sensiblebit/certhealth/internal/trust"
)

// DefaultTimeout bounds a single certutil invocation.
const DefaultTimeout = 30 * time.Second

// RunFunc executes a command and returns its standard output.
type RunFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

// CommandObserver reads NSS databases by running certutil.
type CommandObserver struct {
	// Certutil is the binary to run; "certutil" when empty.
	Certutil string
	// Timeout bounds each invocation; DefaultTimeout when zero.
	Timeout time.Duration
	// WithCertificates also fetches each listed certificate's DER.
	WithCertificates bool
	// Run overrides command execution, for tests.
	Run RunFunc
}

// ListEntries returns the certificates in the database at location with
// their trust flags, in certutil's listing order.
func (o CommandObserver) ListEntries(ctx context.Context, location string) ([]trust.Entry, error) {
	out, err := o.run(ctx, "-L", "-d", location)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", location, err)
	}
	entries, err := ParseListing(out)
	if err != nil {
		return nil, fmt.Errorf("parsing listing of %s: %w", location, err)
	}
	if o.WithCertificates {
		for i := range entries {
			der, err := o.Certificate(ctx, location, entries[i].Nickname)
			if err != nil {
				slog.Debug("certificate not readable", "database", location, "nickname", entries[i].Nickname, "error", err)
				continue
			}
			entries[i].Certificate = der
		}
	}
	slog.Debug("listed NSS database", "database", location, "entries", len(entries))
	return entries, nil
}

// Certificate returns the DER of the certificate stored under nickname.
func (o CommandObserver) Certificate(ctx context.Context, database, nickname string) ([]byte, error) {
	out, err := o.run(ctx, "-L", "-d", database, "-n", nickname, "-a")
	if err != nil {
		return nil, fmt.Errorf("reading %q from %s: %w", nickname, database, err)
	}
	cert, err := certhealth.ParsePEMCertificate(out)
	if err != nil {
		return nil, fmt.Errorf("parsing %q from %s: %w", nickname, database, err)
	}
	return cert.Raw, nil
}

func (o CommandObserver) run(ctx context.Context, args ...string) ([]byte, error) {
	timeout := o.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	bin := o.Certutil
	if bin == "" {
		bin = "certutil"
	}
	run := o.Run
	if run == nil {
		run = execRun
	}
	return run(ctx, bin, args...)
}

func execRun(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%s: %w: %s", name, err, msg)
		}
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%s: timed out: %w", name, ctx.Err())
		}
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return out, nil
}
