// Package problem implements RFC 9457 problem-details error responses for
// the bridge and its facades.
package problem

import (
	"encoding/json"
	"net/http"
)

// Problem is an RFC 9457 problem-details body, extended with the
// trace/correlation identifiers every facade response carries.
type Problem struct {
	Type          string `json:"type"`
	Title         string `json:"title"`
	Status        int    `json:"status"`
	Detail        string `json:"detail,omitempty"`
	Instance      string `json:"instance,omitempty"`
	TraceID       string `json:"traceId,omitempty"`
	CorrelationID string `json:"correlationId,omitempty"`
	GroupType     string `json:"groupType,omitempty"`
}

const typeBase = "https://xregistry.io/problems/"

func new_(status int, typ, title, detail, instance string) *Problem {
	return &Problem{
		Type:     typeBase + typ,
		Title:    title,
		Status:   status,
		Detail:   detail,
		Instance: instance,
	}
}

// BadRequest builds a 400 problem, e.g. for an invalid limit or malformed filter.
func BadRequest(detail, instance string) *Problem {
	return new_(http.StatusBadRequest, "bad-request", "Bad Request", detail, instance)
}

// Unauthorized builds a 401 problem for a missing or invalid API key.
func Unauthorized(detail, instance string) *Problem {
	return new_(http.StatusUnauthorized, "unauthorized", "Unauthorized", detail, instance)
}

// NotFound builds a 404 problem for an unknown registry, package, or version.
func NotFound(detail, instance string) *Problem {
	return new_(http.StatusNotFound, "not-found", "Not Found", detail, instance)
}

// MethodNotAllowed builds a 405 problem. The bridge is read-only: every
// mutating verb is refused uniformly.
func MethodNotAllowed(instance string) *Problem {
	return new_(http.StatusMethodNotAllowed, "method-not-allowed", "Method Not Allowed", "this registry is read-only", instance)
}

// UpstreamUnavailable builds a 502 problem for a network failure or 5xx/429
// from the upstream registry, after the cache layer has already given up.
func UpstreamUnavailable(detail, instance string) *Problem {
	return new_(http.StatusBadGateway, "upstream-unavailable", "Upstream Unavailable", detail, instance)
}

// UpstreamTimeout builds a 504 problem for an upstream call that exceeded
// its deadline.
func UpstreamTimeout(detail, instance string) *Problem {
	return new_(http.StatusGatewayTimeout, "upstream-timeout", "Upstream Timeout", detail, instance)
}

// Internal builds a 500 problem for anything that isn't one of the above.
func Internal(detail, instance string) *Problem {
	return new_(http.StatusInternalServerError, "internal-error", "Internal Error", detail, instance)
}

// WithTrace attaches trace/correlation identifiers and returns p for chaining.
func (p *Problem) WithTrace(traceID, correlationID string) *Problem {
	p.TraceID = traceID
	p.CorrelationID = correlationID
	return p
}

// WithGroupType attaches the group type the request was dispatched to.
func (p *Problem) WithGroupType(groupType string) *Problem {
	p.GroupType = groupType
	return p
}

// Write serializes p as the response body with the RFC 9457 content type.
func (p *Problem) Write(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}
