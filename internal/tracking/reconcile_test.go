package tracking

import (
	"fmt"
	"math/rand/v2"
	"reflect"
	"strings"
	"testing"

	"github.com/sensiblebit/certhealth/internal/inventory"
	"github.com/sensiblebit/certhealth/internal/result"
)

// nickEntry returns a store-slot entry whose nickname doubles as the id a
// mapResolver resolves it to.
func nickEntry(nick string) inventory.Entry {
	return inventory.Entry{Identity: inventory.StoreIdentity("/db", nick), CAName: inventory.SelfCA}
}

// mapResolver resolves entries by nickname; nicknames absent from the map
// are unresolvable.
func mapResolver(m map[string]string) Resolver {
	return ResolverFunc(func(e inventory.Entry) (string, bool) {
		id, ok := m[e.Identity.Nickname]
		return id, ok
	})
}

func requests(ids ...string) []Request {
	out := make([]Request, len(ids))
	for i, id := range ids {
		out[i] = Request{ID: id}
	}
	return out
}

func TestReconcile_AllMatched(t *testing.T) {
	t.Parallel()

	expected := []inventory.Entry{nickEntry("a"), nickEntry("b")}
	got := Reconcile(expected, requests("2", "1"), mapResolver(map[string]string{"a": "1", "b": "2"}))
	if len(got) != 0 {
		t.Errorf("expected no findings, got %v", got)
	}
}

func TestReconcile_Classification(t *testing.T) {
	// WHY: Covers all three outcomes and their fixed ordering: per-entry
	// errors in expected order, then unknown ids in observed order.
	t.Parallel()

	expected := []inventory.Entry{
		nickEntry("unresolvable"),
		nickEntry("matched"),
		nickEntry("gone"),
	}
	resolver := mapResolver(map[string]string{"matched": "10", "gone": "99"})
	got := Reconcile(expected, requests("30", "10", "20"), resolver)

	want := []result.Finding{
		{Severity: result.Error, Message: "Missing tracking for " + nickEntry("unresolvable").String()},
		{Severity: result.Error, Key: "99", Message: "Request id 99 is not tracked: 99 not found"},
		{Severity: result.Warning, Key: "30", Message: "Unknown certmonger id 30"},
		{Severity: result.Warning, Key: "20", Message: "Unknown certmonger id 20"},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d findings, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		want[i].Check = CheckName
		want[i].Source = result.Source
		if got[i] != want[i] {
			t.Errorf("finding %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestReconcile_ConsumeOnce(t *testing.T) {
	// WHY: Two expected entries resolving to the same id consume it only
	// once; the second reports "not tracked" and the id is never also
	// reported as unknown.
	t.Parallel()

	expected := []inventory.Entry{nickEntry("first"), nickEntry("second")}
	resolver := mapResolver(map[string]string{"first": "7", "second": "7"})
	got := Reconcile(expected, requests("7"), resolver)

	if len(got) != 1 {
		t.Fatalf("got %d findings, want 1: %v", len(got), got)
	}
	if got[0].Severity != result.Error || !strings.Contains(got[0].Message, "is not tracked") {
		t.Errorf("unexpected finding %+v", got[0])
	}
}

func TestReconcile_DuplicateObservedIDs(t *testing.T) {
	// WHY: The tracked list is a multiset. Consuming an id removes its
	// earliest occurrence; later duplicates remain and are reported.
	t.Parallel()

	expected := []inventory.Entry{nickEntry("a")}
	got := Reconcile(expected, requests("5", "6", "5"), mapResolver(map[string]string{"a": "5"}))

	var keys []string
	for _, f := range got {
		keys = append(keys, f.Key)
	}
	if want := []string{"6", "5"}; !reflect.DeepEqual(keys, want) {
		t.Errorf("unknown ids = %v, want %v", keys, want)
	}
}

func TestReconcile_Empty(t *testing.T) {
	t.Parallel()

	if got := Reconcile(nil, nil, mapResolver(nil)); len(got) != 0 {
		t.Errorf("expected no findings, got %v", got)
	}
	got := Reconcile(nil, requests("1"), mapResolver(nil))
	if len(got) != 1 || got[0].Severity != result.Warning {
		t.Errorf("expected one unknown id warning, got %v", got)
	}
}

func TestReconcile_Properties(t *testing.T) {
	// WHY: Exercises exactly-once consumption, count conservation and
	// idempotence over many generated inputs, including duplicate ids on
	// both sides and unresolvable entries.
	t.Parallel()

	rng := rand.New(rand.NewPCG(1, 2))
	for iter := range 500 {
		nExpected := rng.IntN(8)
		nTracked := rng.IntN(8)

		var tracked []Request
		for range nTracked {
			tracked = append(tracked, Request{ID: fmt.Sprint(rng.IntN(6))})
		}
		resolve := map[string]string{}
		var expected []inventory.Entry
		for i := range nExpected {
			nick := fmt.Sprintf("e%d", i)
			if rng.IntN(4) != 0 {
				resolve[nick] = fmt.Sprint(rng.IntN(6))
			}
			expected = append(expected, nickEntry(nick))
		}
		resolver := mapResolver(resolve)

		got := Reconcile(expected, tracked, resolver)

		// Recompute the expected partition independently.
		pool := map[string]int{}
		for _, r := range tracked {
			pool[r.ID]++
		}
		matched := map[string]int{}
		expectedErrors := 0
		for _, e := range expected {
			id, ok := resolve[e.Identity.Nickname]
			if ok && pool[id] > 0 {
				pool[id]--
				matched[id]++
				continue
			}
			expectedErrors++
		}
		unclaimed := 0
		for _, n := range pool {
			unclaimed += n
		}

		if len(got) != expectedErrors+unclaimed {
			t.Fatalf("iter %d: got %d findings, want %d errors + %d unclaimed", iter, len(got), expectedErrors, unclaimed)
		}
		if n := result.Count(got, result.Error); n != expectedErrors {
			t.Fatalf("iter %d: got %d errors, want %d", iter, n, expectedErrors)
		}

		unknown := map[string]int{}
		seenWarning := false
		for _, f := range got {
			if f.Severity == result.Warning {
				seenWarning = true
				unknown[f.Key]++
			} else if seenWarning {
				t.Fatalf("iter %d: error finding after unknown-id warnings: %v", iter, got)
			}
		}
		for id, n := range unknown {
			total := 0
			for _, r := range tracked {
				if r.ID == id {
					total++
				}
			}
			if n+matched[id] > total {
				t.Fatalf("iter %d: id %s reported %d times as unknown and matched %d times of %d", iter, id, n, matched[id], total)
			}
		}

		if again := Reconcile(expected, tracked, resolver); !reflect.DeepEqual(got, again) {
			t.Fatalf("iter %d: not idempotent", iter)
		}
	}
}
