package nameindex

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

type fakeFetcher struct {
	meta map[string]Metadata
	err  map[string]error
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{meta: map[string]Metadata{}, err: map[string]error{}}
}

func (f *fakeFetcher) Fetch(ctx context.Context, name string) (Metadata, error) {
	if err, ok := f.err[name]; ok {
		return Metadata{}, err
	}
	return f.meta[name], nil
}

func TestEvaluateNameOnlyNeedsNoFetcher(t *testing.T) {
	idx := New()
	idx.Load([]string{"react", "react-dom", "redux"})
	preds, _ := ParseFilter("name=react*")

	result, err := Evaluate(context.Background(), idx, preds, nil, DefaultMaxMetadataFetches, 10, 0)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if len(result.Names) != 2 {
		t.Errorf("expected 2 names, got %v", result.Names)
	}
	if result.FetchesUsed != 0 {
		t.Errorf("expected 0 metadata fetches for a name-only filter, got %d", result.FetchesUsed)
	}
}

func TestEvaluateTwoStepFiltersOnMetadata(t *testing.T) {
	idx := New()
	idx.Load([]string{"react", "react-dom", "react-native"})
	preds, _ := ParseFilter("name=react*&license=MIT")

	fetcher := newFakeFetcher()
	fetcher.meta["react"] = Metadata{License: "MIT"}
	fetcher.meta["react-dom"] = Metadata{License: "MIT"}
	fetcher.meta["react-native"] = Metadata{License: "BSD"}

	result, err := Evaluate(context.Background(), idx, preds, fetcher, DefaultMaxMetadataFetches, 10, 0)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if len(result.Names) != 2 {
		t.Errorf("expected 2 survivors, got %v", result.Names)
	}
	for _, n := range result.Names {
		if n == "react-native" {
			t.Errorf("react-native should have been filtered out by license=MIT")
		}
	}
}

func TestEvaluateDropsCandidatesOnFetchError(t *testing.T) {
	idx := New()
	idx.Load([]string{"a", "b"})
	preds, _ := ParseFilter("name=*&license=MIT")

	fetcher := newFakeFetcher()
	fetcher.meta["a"] = Metadata{License: "MIT"}
	fetcher.err["b"] = errors.New("boom")

	result, err := Evaluate(context.Background(), idx, preds, fetcher, DefaultMaxMetadataFetches, 10, 0)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if len(result.Names) != 1 || result.Names[0] != "a" {
		t.Errorf("expected only 'a' to survive, got %v", result.Names)
	}
}

func TestEvaluateCapsMetadataFetchesAtMax(t *testing.T) {
	idx := New()
	names := make([]string, 0, 250)
	for i := 0; i < 250; i++ {
		names = append(names, string(rune('a'+i%26))+string(rune('0'+i/26)))
	}
	idx.Load(names)
	preds, _ := ParseFilter("name=*&license=MIT")

	fetcher := newFakeFetcher()
	for _, n := range names {
		fetcher.meta[n] = Metadata{License: "NOTMIT"}
	}

	result, err := Evaluate(context.Background(), idx, preds, fetcher, 50, 10, 0)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if result.FetchesUsed > 50 {
		t.Errorf("FetchesUsed = %d, want <= 50 (MAX_METADATA_FETCHES cap)", result.FetchesUsed)
	}
}

func TestSliceResultPagination(t *testing.T) {
	r := sliceResult([]string{"a", "b", "c", "d", "e"}, 2, 1, false, 0)
	if len(r.Names) != 2 || r.Names[0] != "b" || r.Names[1] != "c" {
		t.Errorf("unexpected page: %v", r.Names)
	}
	if !r.HasMore {
		t.Error("expected HasMore for a full unfiltered page")
	}
}

func TestSliceResultOffsetBeyondLength(t *testing.T) {
	r := sliceResult([]string{"a"}, 10, 5, false, 0)
	if len(r.Names) != 0 {
		t.Errorf("expected empty page, got %v", r.Names)
	}
}

func TestSliceResultPaginationExactBoundary(t *testing.T) {
	names := make([]string, 25)
	for i := range names {
		names[i] = fmt.Sprintf("pkg%02d", i)
	}
	r := sliceResult(names, 5, 20, false, 0)
	if len(r.Names) != 5 {
		t.Fatalf("expected a full 5-item page, got %d", len(r.Names))
	}
	if !r.HasMore {
		t.Error("expected HasMore for a full unfiltered page even at the end of the name list")
	}
}
