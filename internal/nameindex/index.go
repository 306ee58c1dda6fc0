// Package nameindex implements spec §4.B: an in-process index of known
// package names, a filter-expression grammar, and the two-step evaluator
// that combines cheap name-predicate filtering with bounded-fanout metadata
// enrichment.
package nameindex

import (
	"context"
	"sort"
	"sync/atomic"
)

// Index holds an immutable, sorted snapshot of known package names. Rebuilds
// swap the snapshot atomically; readers never block on a rebuild in
// progress (spec §5: "read-mostly; rebuild swaps a new immutable snapshot
// atomically").
type Index struct {
	snapshot atomic.Pointer[[]string]
	ready    atomic.Bool
}

// New returns an empty, not-yet-ready Index.
func New() *Index {
	idx := &Index{}
	empty := []string{}
	idx.snapshot.Store(&empty)
	return idx
}

// Ready reports whether the index has loaded at least one non-empty name set.
func (idx *Index) Ready() bool {
	return idx.ready.Load()
}

// Names returns the current sorted name snapshot.
func (idx *Index) Names() []string {
	return *idx.snapshot.Load()
}

// Load replaces the snapshot with a freshly sorted copy of names. The index
// is marked ready only once it actually holds at least one name — an empty
// Load (e.g. a boot call with no seed yet available) leaves Ready() false, so
// sorted queries keep waiting for a populated index. No upstream search is
// made while the index is not ready: name-filtered queries without a sort
// are evaluated against the index as it stands.
func (idx *Index) Load(names []string) {
	sorted := make([]string, len(names))
	copy(sorted, names)
	sort.Strings(sorted)
	idx.snapshot.Store(&sorted)
	if len(sorted) > 0 {
		idx.ready.Store(true)
	}
}

// LoadAsync runs fetchNames in the background and installs its result via
// Load when it completes, without blocking the caller (spec §4.B: "index
// construction is asynchronous and does not block serving"). Errors are
// dropped and leave the index as it was.
func (idx *Index) LoadAsync(ctx context.Context, fetchNames func(context.Context) ([]string, error)) {
	go func() {
		names, err := fetchNames(ctx)
		if err != nil {
			return
		}
		idx.Load(names)
	}()
}

// MatchName returns every indexed name satisfying every name-scoped
// predicate, in sorted order. With no predicates, it returns every name.
func (idx *Index) MatchName(predicates []Predicate) []string {
	names := idx.Names()
	if len(predicates) == 0 {
		out := make([]string, len(names))
		copy(out, names)
		return out
	}

	out := make([]string, 0, len(names))
	for _, n := range names {
		if matchesAll(n, predicates) {
			out = append(out, n)
		}
	}
	return out
}

func matchesAll(candidate string, predicates []Predicate) bool {
	for _, p := range predicates {
		if !p.Match(candidate) {
			return false
		}
	}
	return true
}

// PrefixOf returns the literal prefix of a name-filter value up to its first
// wildcard, used to order Step 2 metadata fetches prefix-match-first.
func PrefixOf(value string) string {
	for i, r := range value {
		if r == '*' {
			return value[:i]
		}
	}
	return value
}
