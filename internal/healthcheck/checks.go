// Package healthcheck runs the certificate checks of one diagnostic cycle.
package healthcheck

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sensiblebit/certhealth/internal/expiry"
	"github.com/sensiblebit/certhealth/internal/inventory"
	"github.com/sensiblebit/certhealth/internal/result"
	"github.com/sensiblebit/certhealth/internal/tracking"
	"github.com/sensiblebit/certhealth/internal/trust"
)

// ErrObserverUnavailable marks a check that could not query its source of
// state. Such a check produces no findings of its own.
var ErrObserverUnavailable = errors.New("observer unavailable")

// Check is one diagnostic. Run returns the check's findings in order, or an
// error when the check could not be carried out at all.
type Check interface {
	Name() string
	Run(ctx context.Context) ([]result.Finding, error)
}

func unavailable(what string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrObserverUnavailable, what, err)
}

// ExpirationCheck flags tracked certificates that are expired or expiring.
type ExpirationCheck struct {
	Tracking tracking.Observer
	WarnDays int
	// Now defaults to time.Now.
	Now func() time.Time
}

func (c *ExpirationCheck) Name() string { return expiry.CheckName }

func (c *ExpirationCheck) Run(ctx context.Context) ([]result.Finding, error) {
	reqs, err := c.Tracking.ListTracked(ctx)
	if err != nil {
		return nil, unavailable("listing tracked requests", err)
	}
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	return expiry.Analyze(reqs, c.WarnDays, now()), nil
}

// TrackingCheck compares the expected inventory with the tracked requests.
type TrackingCheck struct {
	Inventory    *inventory.Builder
	Tracking     tracking.Observer
	Trust        trust.Observer
	CAConfigured bool
	// NewResolver builds the entry resolver from the tracked requests;
	// tracking.NewCriteriaResolver when nil.
	NewResolver func([]tracking.Request) tracking.Resolver
}

func (c *TrackingCheck) Name() string { return tracking.CheckName }

func (c *TrackingCheck) Run(ctx context.Context) ([]result.Finding, error) {
	var chain []string
	if c.CAConfigured {
		entries, err := c.Trust.ListEntries(ctx, c.Inventory.Layout.PKIAliasDir)
		if err != nil {
			return nil, unavailable("listing CA certificate database", err)
		}
		for _, e := range entries {
			chain = append(chain, e.Nickname)
		}
	}

	expected, err := c.Inventory.Build(ctx, c.CAConfigured, chain)
	if err != nil {
		return nil, fmt.Errorf("building expected inventory: %w", err)
	}

	tracked, err := c.Tracking.ListTracked(ctx)
	if err != nil {
		return nil, unavailable("listing tracked requests", err)
	}

	var resolver tracking.Resolver
	if c.NewResolver != nil {
		resolver = c.NewResolver(tracked)
	} else {
		resolver = tracking.NewCriteriaResolver(tracked)
	}
	slog.Debug("reconciling tracking", "expected", len(expected), "tracked", len(tracked))
	return tracking.Reconcile(expected, tracked, resolver), nil
}

// TrustCheck verifies the trust flags of the CA subsystem certificates. It
// has nothing to verify when the CA is not configured.
type TrustCheck struct {
	Trust        trust.Observer
	Location     string
	Policy       trust.Policy
	CAConfigured bool
}

func (c *TrustCheck) Name() string { return trust.CheckName }

func (c *TrustCheck) Run(ctx context.Context) ([]result.Finding, error) {
	if !c.CAConfigured {
		slog.Debug("CA is not configured, skipping trust check")
		return nil, nil
	}
	entries, err := c.Trust.ListEntries(ctx, c.Location)
	if err != nil {
		return nil, unavailable("listing CA certificate database", err)
	}
	out := trust.Reconcile(c.Policy, entries)
	if len(out.Skipped) > 0 {
		slog.Debug("third-party certificates not reconciled", "count", len(out.Skipped))
	}
	return out.Findings, nil
}
