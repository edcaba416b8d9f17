// Package expiry flags tracked certificates that are expired or close to
// expiring.
package expiry

import (
	"time"

	"github.com/sensiblebit/certhealth"
	"github.com/sensiblebit/certhealth/internal/result"
	"github.com/sensiblebit/certhealth/internal/tracking"
)

// CheckName identifies the expiration analysis in findings.
const CheckName = "CertExpirationCheck"

// DefaultWarnDays is the warning horizon used when none is configured.
const DefaultWarnDays = 28

// Analyze reports every request that is past its NotAfter as an ERROR and
// every request with fewer than warnDays whole days left as a WARNING.
// Healthy requests produce no finding.
func Analyze(tracked []tracking.Request, warnDays int, now time.Time) []result.Finding {
	out := result.New(result.Source, CheckName)
	for _, req := range tracked {
		if now.After(req.NotAfter) {
			out.Add(result.Error, req.ID, "Request id %s is expired: not valid after %s",
				req.ID, req.NotAfter.UTC().Format(time.RFC3339))
			continue
		}
		days := certhealth.DaysUntil(req.NotAfter, now)
		if days < warnDays {
			out.Add(result.Warning, req.ID, "Request id %s expires in %d days", req.ID, days)
		}
	}
	return out.Findings()
}
