package certhealth

import (
	"crypto/x509"
	"encoding/pem"
	"sync"

	"github.com/breml/rootcerts/embedded"
)

var (
	mozillaOnce  sync.Once
	mozillaRoots map[string]bool
)

func loadMozillaRoots() {
	mozillaRoots = make(map[string]bool)
	rest := []byte(embedded.MozillaCACertificatesPEM())
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			return
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			continue
		}
		mozillaRoots[CertFingerprint(cert)] = true
	}
}

// IsMozillaRoot reports whether cert is one of the root certificates in the
// embedded Mozilla CA bundle.
func IsMozillaRoot(cert *x509.Certificate) bool {
	mozillaOnce.Do(loadMozillaRoots)
	return mozillaRoots[CertFingerprint(cert)]
}

