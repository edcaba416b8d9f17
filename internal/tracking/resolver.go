package tracking

import (
	"path/filepath"

	"github.com/sensiblebit/certhealth/internal/inventory"
)

// Resolver maps an expected entry to the id of the request that tracks it.
// ok is false when no request can be identified for the entry.
type Resolver interface {
	Resolve(entry inventory.Entry) (id string, ok bool)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(entry inventory.Entry) (string, bool)

// Resolve calls f.
func (f ResolverFunc) Resolve(entry inventory.Entry) (string, bool) {
	return f(entry)
}

// CriteriaResolver resolves entries the way certmonger looks up a request:
// the first request whose storage location matches the entry's identity and
// whose CA name, helper commands and template profile match every criterion
// the entry sets. An entry marked NoProfile only matches requests without a
// template profile.
type CriteriaResolver struct {
	requests []Request
}

// NewCriteriaResolver returns a resolver over the given requests. The slice
// is copied.
func NewCriteriaResolver(requests []Request) *CriteriaResolver {
	return &CriteriaResolver{requests: append([]Request(nil), requests...)}
}

// Resolve returns the id of the first matching request.
func (r *CriteriaResolver) Resolve(entry inventory.Entry) (string, bool) {
	for _, req := range r.requests {
		if matches(req, entry) {
			return req.ID, true
		}
	}
	return "", false
}

func matches(req Request, e inventory.Entry) bool {
	id := e.Identity
	switch id.Kind() {
	case inventory.KindFile:
		if req.CertStorage == StorageNSSDB || req.CertNickname != "" {
			return false
		}
		if !samePath(req.CertLocation, id.CertFile) || !samePath(req.KeyLocation, id.KeyFile) {
			return false
		}
	case inventory.KindStore:
		if req.CertStorage == StorageFile {
			return false
		}
		if !samePath(req.CertLocation, id.Database) || req.CertNickname != id.Nickname {
			return false
		}
	default:
		return false
	}
	if e.NoProfile && req.TemplateProfile != "" {
		return false
	}
	return criterion(e.CAName, req.CAName) &&
		criterion(e.PreSaveCommand, req.PreSaveCommand) &&
		criterion(e.PostSaveCommand, req.PostSaveCommand) &&
		criterion(e.TemplateProfile, req.TemplateProfile)
}

// criterion matches when the expected value is unset or equal.
func criterion(want, got string) bool {
	return want == "" || want == got
}

func samePath(a, b string) bool {
	if a == "" || b == "" {
		return a == b
	}
	return filepath.Clean(a) == filepath.Clean(b)
}
