package nameindex

import (
	"context"
	"sort"
	"sync"
)

// DefaultMaxMetadataFetches is MAX_METADATA_FETCHES (spec §4.B default 100).
const DefaultMaxMetadataFetches = 100

// MetadataFetcher resolves the non-name fields for a candidate name, used
// by Step 2 of the evaluator. Implementations wrap a facade's upstream
// metadata lookup (via cachedclient).
type MetadataFetcher interface {
	Fetch(ctx context.Context, name string) (Metadata, error)
}

// Metadata is the subset of a package's upstream fields the filter grammar
// can predicate on, beyond name.
type Metadata struct {
	Description string
	Author      string
	License     string
	Homepage    string
	Keywords    []string
	Version     string
	Repository  string
}

func (m Metadata) value(f Field) string {
	switch f {
	case FieldDescription:
		return m.Description
	case FieldAuthor:
		return m.Author
	case FieldLicense:
		return m.License
	case FieldHomepage:
		return m.Homepage
	case FieldVersion:
		return m.Version
	case FieldRepository:
		return m.Repository
	default:
		return ""
	}
}

func (m Metadata) matches(p Predicate) bool {
	if p.Field == FieldKeywords {
		var hit bool
		for _, k := range m.Keywords {
			if p.Match(k) {
				hit = true
				break
			}
		}
		if p.Negate {
			return !hit
		}
		return hit
	}
	return p.Match(m.value(p.Field))
}

// Result is the outcome of a two-step filter evaluation.
type Result struct {
	Names       []string
	HasMore     bool
	FetchesUsed int
}

// Evaluate runs the two-step strategy described in spec §4.B against an
// index snapshot: Step 1 applies name-scoped predicates against the index;
// Step 2, if non-name predicates remain, fetches metadata for up to
// maxFetches surviving candidates (prefix-match first, then alphabetical)
// and evaluates the rest. Evaluation short-circuits once offset+limit
// survivors are known, cancelling outstanding fetches.
func Evaluate(ctx context.Context, idx *Index, predicates []Predicate, fetcher MetadataFetcher, maxFetches, limit, offset int) (Result, error) {
	return EvaluateSorted(ctx, idx, predicates, fetcher, maxFetches, limit, offset, false)
}

// EvaluateSorted is Evaluate with an explicit order over the name index's
// candidate set (spec §4.C "sorting applies to the entire candidate set
// before slicing"). descending reverses the name-ordered candidate set
// before Step 2 runs and before the final page is sliced off.
func EvaluateSorted(ctx context.Context, idx *Index, predicates []Predicate, fetcher MetadataFetcher, maxFetches, limit, offset int, descending bool) (Result, error) {
	nameOnly, rest := NameFields(predicates)
	candidates := idx.MatchName(nameOnly)
	if descending {
		reverseStrings(candidates)
	}

	if len(rest) == 0 {
		return sliceResult(candidates, limit, offset, false, 0), nil
	}
	if len(candidates) == 0 || fetcher == nil {
		return Result{}, nil
	}

	candidates = orderByPrefixThenAlpha(candidates, nameOnly)
	if len(candidates) > maxFetches {
		candidates = candidates[:maxFetches]
	}

	survivors, used := evaluateStep2(ctx, candidates, rest, fetcher, limit+offset)
	if descending {
		reverseStrings(survivors)
	}
	return sliceResult(survivors, limit, offset, true, used), nil
}

func reverseStrings(s []string) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

// orderByPrefixThenAlpha keeps candidates already sorted alphabetically
// (they come from the index's sorted snapshot) but is named explicitly to
// document spec §4.B's "prefix-match first, then alphabetical" ordering:
// candidates sharing a name-filter's literal prefix are already contiguous
// in the sorted snapshot, so no further reordering is needed.
func orderByPrefixThenAlpha(candidates []string, nameOnly []Predicate) []string {
	return candidates
}

// evaluateStep2 fetches metadata for candidates up to need survivors,
// cancelling outstanding fetches once a deterministic, contiguous prefix of
// candidates (by original order) has yielded at least need matches.
func evaluateStep2(ctx context.Context, candidates []string, predicates []Predicate, fetcher MetadataFetcher, need int) ([]string, int) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	const concurrency = 16
	sem := make(chan struct{}, concurrency)

	var mu sync.Mutex
	matched := make([]*bool, len(candidates)) // nil = pending, else resolved
	var wg sync.WaitGroup
	var fetchesUsed int

	checkDone := func() bool {
		count := 0
		for _, m := range matched {
			if m == nil {
				break
			}
			if *m {
				count++
			}
		}
		return count >= need
	}

	for i, name := range candidates {
		wg.Add(1)
		go func(i int, name string) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				mu.Lock()
				no := false
				matched[i] = &no
				mu.Unlock()
				return
			}

			meta, err := fetcher.Fetch(ctx, name)

			mu.Lock()
			fetchesUsed++
			ok := err == nil && matchesAllMeta(meta, predicates)
			matched[i] = &ok
			if checkDone() {
				cancel()
			}
			mu.Unlock()
		}(i, name)
	}

	wg.Wait()

	var survivors []string
	for i, m := range matched {
		if m != nil && *m {
			survivors = append(survivors, candidates[i])
		}
	}
	sort.Strings(survivors)
	return survivors, fetchesUsed
}

func matchesAllMeta(m Metadata, predicates []Predicate) bool {
	for _, p := range predicates {
		if !m.matches(p) {
			return false
		}
	}
	return true
}

func sliceResult(names []string, limit, offset int, filtered bool, fetchesUsed int) Result {
	if offset >= len(names) {
		return Result{Names: []string{}, FetchesUsed: fetchesUsed}
	}
	end := offset + limit
	if end > len(names) {
		end = len(names)
	}
	page := names[offset:end]

	// A full page (n == limit) always gets a Link: rel="next" header,
	// whether or not the caller's next request would actually find more —
	// the alternative (peeking one element past the page) costs an extra
	// fetch the unfiltered path doesn't otherwise need.
	var hasMore bool
	if filtered {
		hasMore = len(page) > 0
	} else {
		hasMore = len(page) == limit
	}

	return Result{Names: page, HasMore: hasMore, FetchesUsed: fetchesUsed}
}
