package inventory

import (
	"context"
	"crypto/x509"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sensiblebit/certhealth"
)

// FileSource reads the DER bytes of a certificate stored on disk.
type FileSource interface {
	ReadCertificate(path string) ([]byte, error)
}

// StoreSource reads the DER bytes of a certificate held in a certificate
// database under the given nickname.
type StoreSource interface {
	Certificate(ctx context.Context, database, nickname string) ([]byte, error)
}

// Builder derives the expected tracking inventory.
type Builder struct {
	Layout Layout
	Issuer IssuerCheck
	Files  FileSource
	Stores StoreSource
}

// Build returns the expected entries: the CA subsystem entries when
// caConfigured is set (the RA agent file pair, the five fixed database
// certificates, then one per renewed CA signing variant among
// chainNicknames), followed by the web server,
// directory server and KDC certificates that were issued by the host's own
// CA. A certificate that cannot be read fails the whole build.
func (b *Builder) Build(ctx context.Context, caConfigured bool, chainNicknames []string) ([]Entry, error) {
	if b.Issuer == nil || b.Files == nil || b.Stores == nil {
		return nil, errors.New("inventory builder is missing a collaborator")
	}

	var entries []Entry
	if caConfigured {
		entries = append(entries, Entry{
			Identity:        FileIdentity(b.Layout.RAAgentCertFile, b.Layout.RAAgentKeyFile),
			CAName:          RenewAgentCA,
			PreSaveCommand:  b.Layout.Command("renew_ra_cert_pre"),
			PostSaveCommand: b.Layout.Command("renew_ra_cert"),
		})
		for _, nick := range []string{AuditSigningNickname, OCSPSigningNickname, SubsystemNickname, CASigningNickname, ServerCertNickname} {
			e := b.caEntry(nick, "")
			e.NoProfile = nick == CASigningNickname
			entries = append(entries, e)
		}
		for _, nick := range chainNicknames {
			if IsCASigningVariant(nick) {
				entries = append(entries, b.caEntry(nick, CACertProfile))
			}
		}
	} else {
		slog.Debug("CA is not configured, skipping CA tracking")
	}

	l := b.Layout

	der, err := b.Files.ReadCertificate(l.HTTPDCertFile)
	if err != nil {
		return nil, fmt.Errorf("reading web server certificate: %w", err)
	}
	if ok, err := b.Issuer.IsIssuedBySelf(der); err != nil {
		return nil, fmt.Errorf("checking web server certificate issuer: %w", err)
	} else if ok {
		entries = append(entries, Entry{
			Identity:        FileIdentity(l.HTTPDCertFile, l.HTTPDKeyFile),
			CAName:          SelfCA,
			PostSaveCommand: l.Command("restart_httpd"),
		})
	} else {
		slog.Debug("web server certificate not issued by own CA", "path", l.HTTPDCertFile, "issuer", issuerOf(der))
	}

	dsDB := l.DSDatabase()
	der, err = b.Stores.Certificate(ctx, dsDB, l.DSNickname)
	if err != nil {
		return nil, fmt.Errorf("reading directory server certificate: %w", err)
	}
	if ok, err := b.Issuer.IsIssuedBySelf(der); err != nil {
		return nil, fmt.Errorf("checking directory server certificate issuer: %w", err)
	} else if ok {
		entries = append(entries, Entry{
			Identity:        StoreIdentity(dsDB, l.DSNickname),
			CAName:          SelfCA,
			PostSaveCommand: fmt.Sprintf("%s %s", l.Command("restart_dirsrv"), l.DSServerID),
		})
	} else {
		slog.Debug("directory server certificate not issued by own CA", "database", dsDB, "issuer", issuerOf(der))
	}

	der, err = b.Files.ReadCertificate(l.KDCCertFile)
	if err != nil {
		return nil, fmt.Errorf("reading KDC certificate: %w", err)
	}
	if ok, err := b.Issuer.IsIssuedBySelf(der); err != nil {
		return nil, fmt.Errorf("checking KDC certificate issuer: %w", err)
	} else if ok {
		entries = append(entries, Entry{
			Identity:        FileIdentity(l.KDCCertFile, l.KDCKeyFile),
			CAName:          SelfCA,
			PostSaveCommand: l.Command("renew_kdc_cert"),
		})
	} else {
		slog.Debug("KDC certificate not issued by own CA", "path", l.KDCCertFile, "issuer", issuerOf(der))
	}

	return entries, nil
}

func (b *Builder) caEntry(nickname, profile string) Entry {
	return Entry{
		Identity:        StoreIdentity(b.Layout.PKIAliasDir, nickname),
		CAName:          RenewAgentCA,
		PreSaveCommand:  b.Layout.Command("stop_pkicad"),
		PostSaveCommand: b.Layout.Command(fmt.Sprintf("renew_ca_cert %q", nickname)),
		TemplateProfile: profile,
	}
}

func issuerOf(der []byte) string {
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return "unparseable certificate"
	}
	return certhealth.DescribeIssuer(cert)
}
