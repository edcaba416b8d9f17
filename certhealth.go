// Package certhealth provides the certificate parsing and identification
// helpers shared by the health checks: PEM/DER/PKCS#7 decoding, issuer
// verification and fingerprinting.
package certhealth

import (
	"bytes"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ParsePEMCertificates parses all certificates from a PEM bundle.
func ParsePEMCertificates(pemData []byte) ([]*x509.Certificate, error) {
	var certs []*x509.Certificate
	rest := pemData
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("parsing certificate: %w", err)
		}
		certs = append(certs, cert)
	}
	if len(certs) == 0 {
		return nil, errors.New("no certificates found in PEM data")
	}
	return certs, nil
}

// ParsePEMCertificate parses a single certificate from PEM data.
func ParsePEMCertificate(pemData []byte) (*x509.Certificate, error) {
	certs, err := ParsePEMCertificates(pemData)
	if err != nil {
		return nil, err
	}
	return certs[0], nil
}

// ParseCertificatesAny attempts to parse certificates from raw bytes, trying
// DER first (a single certificate, the usual on-disk form for service
// certificates), then PEM (the CA bundle may carry several), then PKCS#7.
func ParseCertificatesAny(data []byte) ([]*x509.Certificate, error) {
	cert, derErr := x509.ParseCertificate(data)
	if derErr == nil {
		return []*x509.Certificate{cert}, nil
	}
	certs, pemErr := ParsePEMCertificates(data)
	if pemErr == nil {
		return certs, nil
	}
	certs, p7Err := DecodePKCS7(data)
	if p7Err == nil {
		return certs, nil
	}
	return nil, fmt.Errorf("not DER (%v) or PEM (%v) or PKCS#7 (%v)", derErr, pemErr, p7Err)
}

// IsPEM reports whether data contains a PEM header.
func IsPEM(data []byte) bool {
	return bytes.Contains(data, []byte("-----BEGIN"))
}

// CertFingerprint returns the lowercase hex SHA-256 of the certificate DER.
func CertFingerprint(cert *x509.Certificate) string {
	sum := sha256.Sum256(cert.Raw)
	return hex.EncodeToString(sum[:])
}

// IsIssuedBy reports whether cert names one of issuers as its issuer and
// carries a signature that verifies against that issuer's key. A matching
// issuer name alone is not enough: a reissued CA with the same subject but a
// different key does not count.
func IsIssuedBy(cert *x509.Certificate, issuers []*x509.Certificate) bool {
	for _, issuer := range issuers {
		if !bytes.Equal(cert.RawIssuer, issuer.RawSubject) {
			continue
		}
		if err := cert.CheckSignatureFrom(issuer); err == nil {
			return true
		}
	}
	return false
}

// DaysUntil returns the whole number of days from now until t, rounded
// toward zero. It is negative once t is in the past by at least a day.
func DaysUntil(t, now time.Time) int {
	return int(t.Sub(now) / (24 * time.Hour))
}

// DescribeIssuer returns the issuer name of cert for log messages, falling
// back to the authority key id for certificates with an empty issuer.
func DescribeIssuer(cert *x509.Certificate) string {
	if s := cert.Issuer.String(); strings.TrimSpace(s) != "" {
		return s
	}
	return fmt.Sprintf("akid:%x", cert.AuthorityKeyId)
}

// DefaultPasswords returns the passwords tried by default when opening
// PKCS#12 files and Java keystores. Returns a fresh copy each call.
func DefaultPasswords() []string {
	return []string{"", "password", "changeit", "keypassword"}
}

// DeduplicatePasswords merges additional passwords with the defaults and removes
// duplicates while preserving order. Defaults come first.
func DeduplicatePasswords(extra []string) []string {
	all := append(DefaultPasswords(), extra...)
	seen := make(map[string]bool, len(all))
	out := make([]string, 0, len(all))
	for _, p := range all {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}
