// Package tracking reconciles the expected certificate inventory against the
// requests a certmonger-style daemon is tracking for renewal.
package tracking

import (
	"context"
	"time"
)

// StorageType names where certmonger keeps a certificate or key.
type StorageType string

const (
	StorageFile  StorageType = "FILE"
	StorageNSSDB StorageType = "NSSDB"
)

// Request is one tracking request as reported by the daemon. The
// reconcilers only rely on ID and NotAfter; the storage and helper fields
// are the request's criteria and feed CriteriaResolver.
type Request struct {
	ID       string
	NotAfter time.Time

	CertStorage  StorageType
	CertLocation string // file path or database directory
	CertNickname string
	KeyStorage   StorageType
	KeyLocation  string
	KeyNickname  string

	CAName          string
	PreSaveCommand  string
	PostSaveCommand string
	TemplateProfile string
}

// Observer lists every request the tracking daemon currently holds.
type Observer interface {
	ListTracked(ctx context.Context) ([]Request, error)
}
