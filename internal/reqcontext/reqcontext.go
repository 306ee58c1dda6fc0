// Package reqcontext parses per-request flags and trace/correlation
// identifiers (spec §4.F) and writes the permissive CORS headers every
// bridge and facade response carries.
package reqcontext

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Flags is the typed form of the query/header flags every facade request
// carries. Unknown inline/sort values are rejected by the caller, not here;
// Flags only parses the grammar.
type Flags struct {
	Inline     map[string]bool
	Filter     string
	HasFilter  bool
	Sort       string
	HasSort    bool
	Doc        bool
	Schema     string
	Epoch      int
	HasEpoch   bool
	NoReadonly bool
	Limit      int
	Offset     int
}

const defaultLimit = 20

// Parse extracts Flags from a request's query string.
func Parse(r *http.Request) (Flags, error) {
	q := r.URL.Query()
	f := Flags{Inline: map[string]bool{}, Limit: defaultLimit}

	if v := q.Get("inline"); v != "" {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part != "" {
				f.Inline[part] = true
			}
		}
	}

	if v := q.Get("filter"); v != "" {
		f.Filter = v
		f.HasFilter = true
	}

	if v := q.Get("sort"); v != "" {
		f.Sort = v
		f.HasSort = true
	}

	if q.Has("doc") {
		f.Doc = true
	}

	if v := q.Get("schema"); v != "" {
		f.Schema = v
	}

	if v := q.Get("epoch"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return f, &ParseError{Field: "epoch", Value: v}
		}
		f.Epoch = n
		f.HasEpoch = true
	}

	if q.Has("noreadonly") {
		f.NoReadonly = true
	}

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return f, &ParseError{Field: "limit", Value: v}
		}
		f.Limit = n
	}

	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return f, &ParseError{Field: "offset", Value: v}
		}
		f.Offset = n
	}

	return f, nil
}

// ParseError reports a malformed query flag (spec §7: BadRequest).
type ParseError struct {
	Field string
	Value string
}

func (e *ParseError) Error() string {
	return "invalid " + e.Field + ": " + e.Value
}

// Trace holds the identifiers propagated through a request's lifetime.
type Trace struct {
	TraceID       string
	CorrelationID string
}

// AdoptTrace adopts inbound X-Trace-Id/X-Correlation-Id/X-Request-Id headers
// or mints fresh UUIDs when absent (spec §4.F).
func AdoptTrace(r *http.Request) Trace {
	t := Trace{
		TraceID:       firstNonEmpty(r.Header.Get("X-Trace-Id"), r.Header.Get("X-Request-Id")),
		CorrelationID: r.Header.Get("X-Correlation-Id"),
	}
	if t.TraceID == "" {
		t.TraceID = uuid.New().String()
	}
	if t.CorrelationID == "" {
		t.CorrelationID = uuid.New().String()
	}
	return t
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// WriteCORS writes the permissive CORS headers required by spec §4.D.
func WriteCORS(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Methods", "GET, HEAD, OPTIONS")
	h.Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Base-Url, X-Correlation-Id, X-Trace-Id, X-Request-Id")
	h.Set("Access-Control-Expose-Headers", "Link, ETag, Location, X-Registry-Epoch, X-Registry-Version")
}
