// Package inventory derives the certificates that are expected to exist and
// be tracked for renewal on a host, given which subsystems are configured.
package inventory

import (
	"fmt"
	"strings"
)

// Nicknames and authority names used by the CA subsystem.
const (
	AuditSigningNickname = "auditSigningCert cert-pki-ca"
	OCSPSigningNickname  = "ocspSigningCert cert-pki-ca"
	SubsystemNickname    = "subsystemCert cert-pki-ca"
	ServerCertNickname   = "Server-Cert cert-pki-ca"

	// CASigningNickname is both the nickname of the CA signing certificate
	// and the prefix of its renewed and sub-CA variants.
	CASigningNickname = "caSigningCert cert-pki-ca"

	// RenewAgentCA is the renewal helper used for CA subsystem certificates.
	RenewAgentCA = "dogtag-ipa-ca-renew-agent"
	// SelfCA is the renewal helper for certificates issued by the host's own CA.
	SelfCA = "IPA"

	// CACertProfile is the template profile requested for CA chain variants.
	CACertProfile = "caCACert"
)

// IsCASigningVariant reports whether nickname names a renewed or sub-CA
// signing certificate, i.e. the CA signing nickname followed by a suffix.
func IsCASigningVariant(nickname string) bool {
	return strings.HasPrefix(nickname, CASigningNickname+" ")
}

// IdentityKind distinguishes how a tracked certificate is stored.
type IdentityKind int

const (
	// KindInvalid is reported for identities with neither or both forms set.
	KindInvalid IdentityKind = iota
	// KindFile is a PEM certificate file plus a key file.
	KindFile
	// KindStore is a nickname inside a certificate database.
	KindStore
)

// Identity locates a certificate either as a file pair or as a slot in a
// certificate database. Exactly one form is populated.
type Identity struct {
	CertFile string
	KeyFile  string
	Database string
	Nickname string
}

// FileIdentity returns a file-pair identity.
func FileIdentity(certFile, keyFile string) Identity {
	return Identity{CertFile: certFile, KeyFile: keyFile}
}

// StoreIdentity returns a database-slot identity.
func StoreIdentity(database, nickname string) Identity {
	return Identity{Database: database, Nickname: nickname}
}

// Kind reports which form the identity uses.
func (i Identity) Kind() IdentityKind {
	file := i.CertFile != "" || i.KeyFile != ""
	store := i.Database != "" || i.Nickname != ""
	switch {
	case file && !store:
		return KindFile
	case store && !file:
		return KindStore
	default:
		return KindInvalid
	}
}

// Entry is one certificate that should exist and be tracked.
type Entry struct {
	Identity        Identity
	CAName          string
	PreSaveCommand  string
	PostSaveCommand string
	TemplateProfile string
	// NoProfile requires the tracking request to carry no template
	// profile. An empty TemplateProfile alone accepts any profile.
	NoProfile bool
}

// String renders the entry's tracking criteria in a stable order.
func (e Entry) String() string {
	var parts []string
	add := func(k, v string) {
		if v != "" {
			parts = append(parts, fmt.Sprintf("%s=%q", k, v))
		}
	}
	add("cert-file", e.Identity.CertFile)
	add("key-file", e.Identity.KeyFile)
	add("cert-database", e.Identity.Database)
	add("cert-nickname", e.Identity.Nickname)
	add("ca-name", e.CAName)
	add("template-profile", e.TemplateProfile)
	if e.NoProfile {
		parts = append(parts, "template-profile=none")
	}
	return "{" + strings.Join(parts, " ") + "}"
}
