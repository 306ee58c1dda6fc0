package nameindex

import "testing"

func TestParseFilterSingleClause(t *testing.T) {
	preds, err := ParseFilter("name=react")
	if err != nil {
		t.Fatalf("ParseFilter failed: %v", err)
	}
	if len(preds) != 1 || preds[0].Field != FieldName || preds[0].Value != "react" {
		t.Errorf("unexpected predicates: %+v", preds)
	}
}

func TestParseFilterMultipleClausesAndNegation(t *testing.T) {
	preds, err := ParseFilter("name=react*&license!=GPL")
	if err != nil {
		t.Fatalf("ParseFilter failed: %v", err)
	}
	if len(preds) != 2 {
		t.Fatalf("expected 2 predicates, got %d", len(preds))
	}
	if preds[0].Wildcard == nil {
		t.Error("expected wildcard predicate for name=react*")
	}
	if !preds[1].Negate {
		t.Error("expected license!=GPL to be negated")
	}
}

func TestParseFilterUnknownField(t *testing.T) {
	if _, err := ParseFilter("bogus=x"); err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestParseFilterMalformedClause(t *testing.T) {
	if _, err := ParseFilter("name"); err == nil {
		t.Fatal("expected error for clause missing a comparator")
	}
}

func TestWildcardMatchIsAnchoredAndCaseInsensitive(t *testing.T) {
	preds, err := ParseFilter("name=React*")
	if err != nil {
		t.Fatalf("ParseFilter failed: %v", err)
	}
	p := preds[0]

	if !p.Match("react-dom") {
		t.Error("expected react-dom to match react* case-insensitively")
	}
	if p.Match("preact") {
		t.Error("expected preact not to match the anchored prefix react*")
	}
}

func TestNameFieldsSplitsStepOneAndStepTwo(t *testing.T) {
	preds, _ := ParseFilter("name=react*&license=MIT&author=facebook")
	nameOnly, rest := NameFields(preds)
	if len(nameOnly) != 1 {
		t.Errorf("expected 1 name predicate, got %d", len(nameOnly))
	}
	if len(rest) != 2 {
		t.Errorf("expected 2 remaining predicates, got %d", len(rest))
	}
}
