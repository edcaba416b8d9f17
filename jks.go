package certhealth

import (
	"bytes"
	"crypto/x509"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pavlo-v-chernykh/keystore-go/v4"
)

// DecodeJKS decodes a Java KeyStore and returns every certificate it holds,
// in alias order. Each password is tried in turn against the store integrity
// check; the first that loads wins.
//
// TrustedCertificateEntry entries yield their certificate. PrivateKeyEntry
// entries yield their certificate chain without decrypting the key.
// Individual entries that fail to parse are skipped.
func DecodeJKS(data []byte, passwords []string) ([]*x509.Certificate, error) {
	var ks keystore.KeyStore
	var loadErr error
	loaded := false
	for _, pw := range passwords {
		ks = keystore.New(keystore.WithOrderedAliases())
		if loadErr = ks.Load(bytes.NewReader(data), []byte(pw)); loadErr == nil {
			loaded = true
			break
		}
	}
	if !loaded {
		if loadErr == nil {
			loadErr = errors.New("no passwords provided")
		}
		return nil, fmt.Errorf("loading JKS: %w", loadErr)
	}

	var certs []*x509.Certificate
	for _, alias := range ks.Aliases() {
		var raw []keystore.Certificate
		switch {
		case ks.IsTrustedCertificateEntry(alias):
			entry, err := ks.GetTrustedCertificateEntry(alias)
			if err != nil {
				slog.Debug("skipping JKS trusted entry", "alias", alias, "error", err)
				continue
			}
			raw = []keystore.Certificate{entry.Certificate}
		case ks.IsPrivateKeyEntry(alias):
			chain, err := ks.GetPrivateKeyEntryCertificateChain(alias)
			if err != nil {
				slog.Debug("skipping JKS key entry", "alias", alias, "error", err)
				continue
			}
			raw = chain
		}
		for _, c := range raw {
			cert, err := x509.ParseCertificate(c.Content)
			if err != nil {
				slog.Debug("skipping unparseable JKS certificate", "alias", alias, "error", err)
				continue
			}
			certs = append(certs, cert)
		}
	}

	if len(certs) == 0 {
		return nil, errors.New("JKS contains no usable certificates")
	}
	return certs, nil
}
