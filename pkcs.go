package certhealth

import (
	"crypto/x509"
	"errors"
	"fmt"

	"github.com/smallstep/pkcs7"
	gopkcs12 "software.sslmate.com/src/go-pkcs12"
)

// DecodePKCS12 decodes a PKCS#12/PFX bundle and returns the leaf certificate
// and any CA certificates it carries. The private key is discarded: the
// health checks only ever look at certificates.
func DecodePKCS12(pfxData []byte, password string) (*x509.Certificate, []*x509.Certificate, error) {
	_, leaf, caCerts, err := gopkcs12.DecodeChain(pfxData, password)
	if err != nil {
		return nil, nil, fmt.Errorf("decoding PKCS#12: %w", err)
	}
	return leaf, caCerts, nil
}

// DecodePKCS12Trust decodes a certificates-only PKCS#12 trust store, as
// written by keytool or openssl for CA bundles without private keys.
func DecodePKCS12Trust(pfxData []byte, password string) ([]*x509.Certificate, error) {
	certs, err := gopkcs12.DecodeTrustStore(pfxData, password)
	if err != nil {
		return nil, fmt.Errorf("decoding PKCS#12 trust store: %w", err)
	}
	if len(certs) == 0 {
		return nil, errors.New("PKCS#12 trust store contains no certificates")
	}
	return certs, nil
}

// DecodePKCS7 decodes a DER-encoded PKCS#7 bundle and returns the certificates it contains.
// Returns an error if decoding fails or the bundle contains no certificates.
func DecodePKCS7(derData []byte) ([]*x509.Certificate, error) {
	p7, err := pkcs7.Parse(derData)
	if err != nil {
		return nil, fmt.Errorf("parsing PKCS#7: %w", err)
	}
	if len(p7.Certificates) == 0 {
		return nil, errors.New("PKCS#7 bundle contains no certificates")
	}
	return p7.Certificates, nil
}
