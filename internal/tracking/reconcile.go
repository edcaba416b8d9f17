package tracking

import (
	"github.com/sensiblebit/certhealth/internal/inventory"
	"github.com/sensiblebit/certhealth/internal/result"
)

// CheckName identifies the tracking reconciliation in findings.
const CheckName = "CertTrackingCheck"

// idMultiset is an ordered multiset of request ids from which occurrences
// are consumed earliest-first.
type idMultiset struct {
	order    []string
	counts   map[string]int
	consumed map[string]int
}

func newIDMultiset(ids []string) *idMultiset {
	m := &idMultiset{
		order:    ids,
		counts:   make(map[string]int, len(ids)),
		consumed: make(map[string]int),
	}
	for _, id := range ids {
		m.counts[id]++
	}
	return m
}

// consume removes one occurrence of id and reports whether one was present.
func (m *idMultiset) consume(id string) bool {
	if m.counts[id] == 0 {
		return false
	}
	m.counts[id]--
	m.consumed[id]++
	return true
}

// remaining returns the unconsumed ids in their original order. Consumed
// occurrences are the earliest ones.
func (m *idMultiset) remaining() []string {
	skip := make(map[string]int, len(m.consumed))
	for id, n := range m.consumed {
		skip[id] = n
	}
	var out []string
	for _, id := range m.order {
		if skip[id] > 0 {
			skip[id]--
			continue
		}
		out = append(out, id)
	}
	return out
}

// Reconcile compares the expected entries with the tracked requests.
//
// Each expected entry is resolved to a request id. An unresolvable entry is
// an ERROR. A resolved id consumes one matching tracked request and produces
// no finding; if no unconsumed occurrence is left the entry is an ERROR.
// Tracked requests never consumed are reported as WARNINGs afterwards, in
// the order they were observed.
func Reconcile(expected []inventory.Entry, tracked []Request, resolver Resolver) []result.Finding {
	out := result.New(result.Source, CheckName)

	ids := make([]string, 0, len(tracked))
	for _, req := range tracked {
		ids = append(ids, req.ID)
	}
	observed := newIDMultiset(ids)

	for _, e := range expected {
		id, ok := resolver.Resolve(e)
		switch {
		case !ok:
			out.Add(result.Error, "", "Missing tracking for %s", e)
		case observed.consume(id):
		default:
			out.Add(result.Error, id, "Request id %s is not tracked: %s not found", id, id)
		}
	}

	for _, id := range observed.remaining() {
		out.Add(result.Warning, id, "Unknown certmonger id %s", id)
	}
	return out.Findings()
}
