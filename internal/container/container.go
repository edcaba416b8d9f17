// Package container loads certificates from the files a host keeps them in,
// whatever the encoding: PKCS#12, JKS, PKCS#7, PEM or DER.
package container

import (
	"crypto/x509"
	"errors"
	"fmt"
	"os"

	"github.com/sensiblebit/certhealth"
)

// Contents holds the certificates parsed from a container file. Leaf is the
// first certificate; Extra holds any that follow it.
type Contents struct {
	Leaf  *x509.Certificate
	Extra []*x509.Certificate
}

// All returns the leaf followed by the extra certificates.
func (c *Contents) All() []*x509.Certificate {
	return append([]*x509.Certificate{c.Leaf}, c.Extra...)
}

// ParseData attempts to parse raw data as PKCS#12, JKS, PKCS#7, PEM or DER,
// in that order.
func ParseData(data []byte, passwords []string) (*Contents, error) {
	// Try PKCS#12, with and without a key bag
	for _, pw := range passwords {
		if leaf, caCerts, err := certhealth.DecodePKCS12(data, pw); err == nil {
			return &Contents{Leaf: leaf, Extra: caCerts}, nil
		}
		if certs, err := certhealth.DecodePKCS12Trust(data, pw); err == nil {
			return split(certs), nil
		}
	}

	// Try JKS
	if certs, err := certhealth.DecodeJKS(data, passwords); err == nil {
		return split(certs), nil
	}

	// Try PKCS#7
	if certs, err := certhealth.DecodePKCS7(data); err == nil {
		return split(certs), nil
	}

	// Try PEM
	if certhealth.IsPEM(data) {
		if certs, err := certhealth.ParsePEMCertificates(data); err == nil {
			return split(certs), nil
		}
	}

	// Try DER certificate
	if cert, err := x509.ParseCertificate(data); err == nil {
		return &Contents{Leaf: cert}, nil
	}

	return nil, errors.New("could not parse as PEM, DER, PKCS#12, JKS, or PKCS#7")
}

func split(certs []*x509.Certificate) *Contents {
	return &Contents{Leaf: certs[0], Extra: certs[1:]}
}

// Loader reads service certificates and CA bundles.
type Loader struct {
	Passwords []string
	// ReadFile defaults to os.ReadFile.
	ReadFile func(path string) ([]byte, error)
}

// Load reads the file at path and parses it with ParseData.
func (l Loader) Load(path string) (*Contents, error) {
	read := l.ReadFile
	if read == nil {
		read = os.ReadFile
	}
	data, err := read(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	contents, err := ParseData(data, l.Passwords)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return contents, nil
}

// ReadCertificate returns the DER of the first certificate in the file at path.
func (l Loader) ReadCertificate(path string) ([]byte, error) {
	contents, err := l.Load(path)
	if err != nil {
		return nil, err
	}
	return contents.Leaf.Raw, nil
}

// LoadCABundle returns every certificate in the CA bundle at path.
func (l Loader) LoadCABundle(path string) ([]*x509.Certificate, error) {
	contents, err := l.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading CA bundle: %w", err)
	}
	return contents.All(), nil
}
