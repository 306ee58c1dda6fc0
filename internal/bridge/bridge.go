// Package bridge implements spec §4.D's front router: the one process a
// client actually talks to. It computes the client-visible base URL from
// forwarded headers, dispatches each request to the facade backing the
// request's group-type path segment, and rewrites any leftover backend-origin
// fragment in the proxied response the same way a facade rewrites upstream
// URLs (internal/rewrite), so a client never sees anything but the bridge's
// own origin.
package bridge

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/xregistry/bridge/internal/problem"
	"github.com/xregistry/bridge/internal/reqcontext"
	"github.com/xregistry/bridge/internal/rewrite"
	"github.com/xregistry/bridge/internal/tracing"
	"github.com/xregistry/bridge/internal/xlog"
)

const (
	schemaContentType = "application/json; schema=https://xregistry.io/schemas/xregistry-v1.0-rc2.json"
	specVersion       = "1.0-rc2"
)

var startedAt = time.Now()

// Config wires one backend facade URL per group type, plus the aggregate
// static documents served at the bridge's own root.
type Config struct {
	// Routes maps a group-type path segment (e.g. "noderegistries") to its
	// facade's backend base URL (e.g. "http://127.0.0.1:3000").
	Routes          map[string]string
	APIPathPrefix   string
	ModelDoc        []byte
	CapabilitiesDoc []byte
	Logger          *slog.Logger
}

type route struct {
	groupType string
	origin    string
	proxy     *httputil.ReverseProxy
}

// Bridge is the aggregating front router.
type Bridge struct {
	routes   map[string]*route
	groups   []string // sorted group types, for stable root-doc iteration
	prefix   string
	modelDoc []byte
	capsDoc  []byte
	logger   *slog.Logger
}

func New(cfg Config) *Bridge {
	logger := cfg.Logger
	if logger == nil {
		logger = xlog.New(false)
	}
	b := &Bridge{
		routes:   make(map[string]*route, len(cfg.Routes)),
		prefix:   cfg.APIPathPrefix,
		modelDoc: cfg.ModelDoc,
		capsDoc:  cfg.CapabilitiesDoc,
		logger:   logger,
	}
	for groupType, backend := range cfg.Routes {
		target, err := url.Parse(backend)
		if err != nil {
			logger.Warn("bridge: skipping invalid backend URL", "groupType", groupType, "backend", backend, "err", err)
			continue
		}
		proxy := httputil.NewSingleHostReverseProxy(target)
		origin := strings.TrimSuffix(backend, "/")
		gt := groupType
		proxy.ModifyResponse = func(resp *http.Response) error {
			return rewriteResponse(resp, origin, publicBaseFromRequest(resp.Request))
		}
		proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
			trace := reqcontext.AdoptTrace(r)
			logger.Error("bridge: upstream facade unreachable", "groupType", gt, "err", err, "traceId", trace.TraceID)
			p := problem.UpstreamUnavailable(err.Error(), r.URL.Path).WithTrace(trace.TraceID, trace.CorrelationID).WithGroupType(gt)
			p.Write(w)
		}
		b.routes[groupType] = &route{groupType: groupType, origin: origin, proxy: proxy}
		b.groups = append(b.groups, groupType)
	}
	sort.Strings(b.groups)
	return b
}

// Handler returns the bridge's top-level http.Handler.
func (b *Bridge) Handler() http.Handler { return http.HandlerFunc(b.serveHTTP) }

func (b *Bridge) serveHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	reqcontext.WriteCORS(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	trace := reqcontext.AdoptTrace(r)
	routingPath := strings.TrimPrefix(r.URL.Path, b.prefix)
	if routingPath == "" {
		routingPath = "/"
	}
	ctx, span := tracing.StartRequest(r.Context(), firstSegment(routingPath), r.Method, r.URL.Path, trace.TraceID, trace.CorrelationID)
	r = r.WithContext(ctx)
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

	base := publicBase(r, b.prefix)

	switch routingPath {
	case "/":
		b.writeRoot(rec, base)
	case "/model":
		writeStatic(rec, b.modelDoc)
	case "/capabilities":
		writeStatic(rec, b.capsDoc)
	case "/health":
		b.writeHealth(rec)
	default:
		seg := firstSegment(routingPath)
		rt, ok := b.routes[seg]
		if !ok {
			p := problem.NotFound("unknown group type", r.URL.Path).WithTrace(trace.TraceID, trace.CorrelationID)
			p.Write(rec)
			break
		}
		r.URL.Path = routingPath
		r.Header.Set("X-Base-Url", base)
		rt.proxy.ServeHTTP(rec, r)
	}

	tracing.EndRequest(span, rec.status, nil)
	xlog.Request(b.logger, r.Context(), r.Method, r.URL.Path, rec.status, time.Since(start), trace.TraceID, trace.CorrelationID, "bridge")
}

// writeRoot serves the aggregate registry document: one groupType entry per
// configured backend. This is the one document no single facade can compose
// on its own, since each facade knows only about its own ecosystem.
func (b *Bridge) writeRoot(w http.ResponseWriter, base string) {
	doc := map[string]any{
		"specversion":     specVersion,
		"registryid":      "xregistry-bridge",
		"xid":             "/",
		"self":            base + "/",
		"modelurl":        base + "/model",
		"capabilitiesurl": base + "/capabilities",
	}
	for _, gt := range b.groups {
		doc[gt+"url"] = base + "/" + gt
		doc[gt+"count"] = 1
	}
	writeJSONDoc(w, doc)
}

// writeHealth reports the bridge's own liveness plus which group types it
// has a backend configured for; it says nothing about whether that backend
// is actually reachable, since that's what a per-request 502 already covers.
func (b *Bridge) writeHealth(w http.ResponseWriter) {
	doc := map[string]any{
		"status": "ok",
		"uptime": time.Since(startedAt).String(),
		"routes": b.groups,
	}
	writeJSONDoc(w, doc)
}

func writeJSONDoc(w http.ResponseWriter, doc map[string]any) {
	w.Header().Set("Content-Type", schemaContentType)
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(doc)
}

func writeStatic(w http.ResponseWriter, body []byte) {
	w.Header().Set("Content-Type", schemaContentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func firstSegment(path string) string {
	trimmed := strings.TrimPrefix(path, "/")
	if i := strings.Index(trimmed, "/"); i >= 0 {
		return trimmed[:i]
	}
	return trimmed
}

// publicBase computes the client-visible base URL per spec §4.D: forwarded
// host/proto take priority over what the bridge itself was dialed on, since
// it normally sits behind a load balancer or ingress.
func publicBase(r *http.Request, prefix string) string {
	scheme := "http"
	if v := r.Header.Get("X-Forwarded-Proto"); v != "" {
		scheme = v
	} else if r.TLS != nil {
		scheme = "https"
	}
	host := r.Header.Get("X-Forwarded-Host")
	if host == "" {
		host = r.Host
	}
	return scheme + "://" + host + prefix
}

// publicBaseFromRequest recovers the base already computed for the inbound
// request that produced this proxied response, for use inside
// ModifyResponse where only resp.Request (the outbound copy) is visible.
func publicBaseFromRequest(outbound *http.Request) string {
	return outbound.Header.Get("X-Base-Url")
}

// rewriteResponse substitutes any leftover reference to the backend's own
// origin with the public base, mirroring the facade's own upstream-origin
// rewrite (internal/rewrite) as a safety net for anything the facade
// couldn't have rewritten itself (e.g. a Link header, or fields on a
// document type the facade doesn't yet cover).
func rewriteResponse(resp *http.Response, backendOrigin, base string) error {
	if base == "" {
		return nil
	}
	if link := resp.Header.Get("Link"); link != "" {
		resp.Header.Set("Link", rewrite.LinkHeader(link, backendOrigin, base))
	}
	if !strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		return nil
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	resp.Body.Close()
	rewritten := rewrite.Body(body, backendOrigin, base)
	resp.Body = io.NopCloser(strings.NewReader(string(rewritten)))
	resp.ContentLength = int64(len(rewritten))
	resp.Header.Set("Content-Length", strconv.Itoa(len(rewritten)))
	return nil
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
