package inventory

import (
	"crypto/x509"
	"errors"
	"fmt"

	"github.com/sensiblebit/certhealth"
)

// IssuerCheck decides whether a live certificate was issued by this
// system's own CA.
type IssuerCheck interface {
	IsIssuedBySelf(der []byte) (bool, error)
}

// IssuerFunc adapts a function to IssuerCheck.
type IssuerFunc func(der []byte) (bool, error)

// IsIssuedBySelf calls f.
func (f IssuerFunc) IsIssuedBySelf(der []byte) (bool, error) {
	return f(der)
}

// CAIssuerCheck accepts certificates whose issuer name and signature match
// one of the CA certificates it was built with.
type CAIssuerCheck struct {
	cas []*x509.Certificate
}

// NewCAIssuerCheck returns an IssuerCheck for the given CA certificates.
func NewCAIssuerCheck(cas []*x509.Certificate) (*CAIssuerCheck, error) {
	if len(cas) == 0 {
		return nil, errors.New("no CA certificates provided")
	}
	return &CAIssuerCheck{cas: cas}, nil
}

// IsIssuedBySelf parses der and checks it against the CA certificates.
func (c *CAIssuerCheck) IsIssuedBySelf(der []byte) (bool, error) {
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return false, fmt.Errorf("parsing certificate: %w", err)
	}
	return certhealth.IsIssuedBy(cert, c.cas), nil
}
