package nameindex

import (
	"context"
	"testing"
	"time"
)

func TestLoadSortsAndMarksReady(t *testing.T) {
	idx := New()
	if idx.Ready() {
		t.Error("new index should not be ready")
	}

	idx.Load([]string{"react", "express", "lodash"})
	if !idx.Ready() {
		t.Error("expected index to be ready after Load")
	}

	names := idx.Names()
	want := []string{"express", "lodash", "react"}
	for i, n := range want {
		if names[i] != n {
			t.Errorf("names[%d] = %q, want %q", i, names[i], n)
		}
	}
}

func TestLoadWithEmptySliceStaysNotReady(t *testing.T) {
	idx := New()
	idx.Load(nil)
	if idx.Ready() {
		t.Error("Load with no names should leave the index not ready")
	}
	idx.Load([]string{"lodash"})
	if !idx.Ready() {
		t.Error("expected index to become ready once it holds a real name")
	}
}

func TestLoadAsyncDoesNotBlock(t *testing.T) {
	idx := New()
	done := make(chan struct{})

	idx.LoadAsync(context.Background(), func(ctx context.Context) ([]string, error) {
		time.Sleep(20 * time.Millisecond)
		close(done)
		return []string{"a", "b"}, nil
	})

	select {
	case <-done:
		t.Fatal("LoadAsync blocked the caller")
	default:
	}

	<-done
	time.Sleep(5 * time.Millisecond)
	if !idx.Ready() {
		t.Error("expected index to become ready after async load completes")
	}
}

func TestMatchNameWithNoPredicatesReturnsAll(t *testing.T) {
	idx := New()
	idx.Load([]string{"a", "b", "c"})
	if got := idx.MatchName(nil); len(got) != 3 {
		t.Errorf("expected all 3 names, got %v", got)
	}
}

func TestMatchNameAppliesWildcard(t *testing.T) {
	idx := New()
	idx.Load([]string{"react", "react-dom", "redux", "express"})
	preds, _ := ParseFilter("name=react*")

	got := idx.MatchName(preds)
	if len(got) != 2 {
		t.Fatalf("expected 2 matches, got %v", got)
	}
}

func TestPrefixOfStopsAtWildcard(t *testing.T) {
	if got := PrefixOf("react*"); got != "react" {
		t.Errorf("PrefixOf = %q, want react", got)
	}
	if got := PrefixOf("lodash"); got != "lodash" {
		t.Errorf("PrefixOf = %q, want lodash", got)
	}
}
