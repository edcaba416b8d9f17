// Package trust reconciles the trust flags recorded in the CA certificate
// database against the flags the CA subsystem requires.
package trust

import (
	"context"
	"fmt"
	"strings"

	"github.com/sensiblebit/certhealth/internal/inventory"
)

// Flags is an NSS trust triple: SSL, email and object-signing trust
// separated by commas, e.g. "CTu,Cu,Cu".
type Flags string

// ParseFlags validates s as a trust triple and returns its canonical form.
func ParseFlags(s string) (Flags, error) {
	parts := strings.Split(strings.TrimSpace(s), ",")
	if len(parts) != 3 {
		return "", fmt.Errorf("trust flags %q: want 3 comma-separated fields, got %d", s, len(parts))
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return Flags(strings.Join(parts, ",")), nil
}

// Canonical returns f with whitespace around fields removed. Malformed
// values are returned trimmed but otherwise unchanged so they still
// compare unequal to any valid expectation.
func (f Flags) Canonical() Flags {
	if c, err := ParseFlags(string(f)); err == nil {
		return c
	}
	return Flags(strings.TrimSpace(string(f)))
}

// Entry is one certificate in a certificate database.
type Entry struct {
	Nickname    string
	Flags       Flags
	Certificate []byte // DER, optional
}

// Observer lists the entries of the certificate database at location.
type Observer interface {
	ListEntries(ctx context.Context, location string) ([]Entry, error)
}

// Classification says how the policy treats a nickname.
type Classification int

const (
	// ClassThirdParty nicknames are outside the policy and never reconciled.
	ClassThirdParty Classification = iota
	// ClassFixed nicknames have an exact policy rule.
	ClassFixed
	// ClassCASigning nicknames carry the CA signing prefix.
	ClassCASigning
)

func (c Classification) String() string {
	switch c {
	case ClassFixed:
		return "fixed"
	case ClassCASigning:
		return "ca-signing"
	default:
		return "third-party"
	}
}

// Rule is the expected trust of one fixed nickname.
type Rule struct {
	Nickname string
	Flags    Flags
}

// Policy is the expected trust of the CA certificate database.
type Policy struct {
	// Fixed rules in declaration order. Missing certificates are reported
	// in this order.
	Fixed []Rule
	// CASigningPrefix marks CA signing certificates, which all expect
	// CASigningFlags regardless of suffix.
	CASigningPrefix string
	CASigningFlags  Flags
}

// DefaultPolicy returns the trust the CA subsystem is installed with.
func DefaultPolicy() Policy {
	return Policy{
		Fixed: []Rule{
			{Nickname: inventory.OCSPSigningNickname, Flags: "u,u,u"},
			{Nickname: inventory.SubsystemNickname, Flags: "u,u,u"},
			{Nickname: inventory.AuditSigningNickname, Flags: "u,u,Pu"},
			{Nickname: inventory.ServerCertNickname, Flags: "u,u,u"},
		},
		CASigningPrefix: inventory.CASigningNickname,
		CASigningFlags:  "CTu,Cu,Cu",
	}
}

// Classify returns how nickname is treated and, unless it is third-party,
// the flags it must carry.
func (p Policy) Classify(nickname string) (Classification, Flags) {
	if p.CASigningPrefix != "" && strings.HasPrefix(nickname, p.CASigningPrefix) {
		return ClassCASigning, p.CASigningFlags.Canonical()
	}
	for _, r := range p.Fixed {
		if r.Nickname == nickname {
			return ClassFixed, r.Flags.Canonical()
		}
	}
	return ClassThirdParty, ""
}
