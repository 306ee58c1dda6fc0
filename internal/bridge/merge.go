package bridge

import "encoding/json"

// MergeModels unions the "groups" object of each ecosystem's static
// model.json into one combined document, the way a real xRegistry root
// describes every group type it knows about in a single schema.
func MergeModels(docs [][]byte) []byte {
	groups := map[string]any{}
	for _, doc := range docs {
		var parsed struct {
			Groups map[string]any `json:"groups"`
		}
		if err := json.Unmarshal(doc, &parsed); err != nil {
			continue
		}
		for k, v := range parsed.Groups {
			groups[k] = v
		}
	}
	out, _ := json.Marshal(map[string]any{"groups": groups})
	return out
}

// MergeCapabilities unions the string-array fields across every ecosystem's
// capabilities.json. In practice every facade advertises the same flag set,
// but the merge is defensive against a future facade advertising less (or
// more).
func MergeCapabilities(docs [][]byte) []byte {
	type capsDoc struct {
		APIs         []string `json:"apis"`
		Flags        []string `json:"flags"`
		Mutable      []string `json:"mutable"`
		Pagination   bool     `json:"pagination"`
		Schemas      []string `json:"schemas"`
		ShortSelf    bool     `json:"shortself"`
		SpecVersions []string `json:"specversions"`
		SortOptions  []string `json:"sortoptions"`
	}

	merged := capsDoc{Pagination: true}
	seen := map[string]map[string]bool{
		"apis": {}, "flags": {}, "mutable": {}, "schemas": {}, "specversions": {}, "sortoptions": {},
	}
	add := func(field *[]string, key, val string) {
		if !seen[key][val] {
			seen[key][val] = true
			*field = append(*field, val)
		}
	}

	for _, doc := range docs {
		var d capsDoc
		if err := json.Unmarshal(doc, &d); err != nil {
			continue
		}
		for _, v := range d.APIs {
			add(&merged.APIs, "apis", v)
		}
		for _, v := range d.Flags {
			add(&merged.Flags, "flags", v)
		}
		for _, v := range d.Mutable {
			add(&merged.Mutable, "mutable", v)
		}
		for _, v := range d.Schemas {
			add(&merged.Schemas, "schemas", v)
		}
		for _, v := range d.SpecVersions {
			add(&merged.SpecVersions, "specversions", v)
		}
		for _, v := range d.SortOptions {
			add(&merged.SortOptions, "sortoptions", v)
		}
		merged.ShortSelf = merged.ShortSelf || d.ShortSelf
	}

	out, _ := json.Marshal(merged)
	return out
}
