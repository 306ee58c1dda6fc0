// Package rewrite implements the recursive URL substitution the bridge and
// facades apply to upstream JSON bodies and Link headers (spec §4.D), so
// that clients only ever see the bridge's own origin.
package rewrite

import (
	"encoding/json"
	"strings"
)

// skipKey is the one field the rewriter must never touch: xid is the
// canonical identifier and is never URL-rewritten, even when it is
// structurally identical to a self URL (spec §3 invariant).
const skipKey = "xid"

// JSON rewrites every string value that begins with upstreamOrigin to
// bridgeBaseURL, recursing through objects and arrays, skipping any field
// keyed "xid". It operates on parsed JSON (map[string]any / []any / string
// / ...), not raw bytes, so it composes with json.Unmarshal/Marshal.
func JSON(v any, upstreamOrigin, bridgeBaseURL string) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, child := range val {
			if k == skipKey {
				out[k] = child
				continue
			}
			out[k] = JSON(child, upstreamOrigin, bridgeBaseURL)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, child := range val {
			out[i] = JSON(child, upstreamOrigin, bridgeBaseURL)
		}
		return out
	case string:
		return rewriteString(val, upstreamOrigin, bridgeBaseURL)
	default:
		return v
	}
}

func rewriteString(s, upstreamOrigin, bridgeBaseURL string) string {
	if upstreamOrigin == "" || !strings.HasPrefix(s, upstreamOrigin) {
		return s
	}
	return bridgeBaseURL + strings.TrimPrefix(s, upstreamOrigin)
}

// Body parses a JSON document, rewrites it, and re-serializes it. If the
// body cannot be parsed as JSON, it is returned unchanged rather than
// fabricating data (spec §7 policy).
func Body(body []byte, upstreamOrigin, bridgeBaseURL string) []byte {
	var parsed any
	if err := json.Unmarshal(body, &parsed); err != nil {
		return body
	}
	rewritten := JSON(parsed, upstreamOrigin, bridgeBaseURL)
	out, err := json.Marshal(rewritten)
	if err != nil {
		return body
	}
	return out
}

// LinkHeader rewrites every occurrence of upstreamOrigin in a Link header
// value to bridgeBaseURL via a global substring replace (spec §4.D: "for
// non-JSON responses... still rewrite the Link header").
func LinkHeader(link, upstreamOrigin, bridgeBaseURL string) string {
	if upstreamOrigin == "" {
		return link
	}
	return strings.ReplaceAll(link, upstreamOrigin, bridgeBaseURL)
}
