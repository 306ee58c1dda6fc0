package facade

import (
	"fmt"
	"net/http"
	"time"

	"github.com/xregistry/bridge/internal/cachedclient"
	"github.com/xregistry/bridge/internal/entitystate"
	"github.com/xregistry/bridge/internal/nameindex"
	"github.com/xregistry/bridge/internal/problem"
	"github.com/xregistry/bridge/internal/reqcontext"
	"github.com/xregistry/bridge/internal/tracing"
	"github.com/xregistry/bridge/internal/xlog"
	"log/slog"
)

const (
	schemaContentType = "application/json; schema=https://xregistry.io/schemas/xregistry-v1.0-rc2.json"
	versionHeader     = "xRegistry-Version"
	specVersion       = "1.0-rc2"
)

// Engine is the generic per-ecosystem HTTP surface described by spec §4.C.
// It owns no ecosystem-specific knowledge; all of that lives behind Adapter.
type Engine struct {
	adapter     Adapter
	client      *cachedclient.Client
	states      *entitystate.Store
	results     *nameindex.ResultCache
	bridgeBase  string
	apiKey      string
	logger      *slog.Logger
	sortWaitMax time.Duration
	startedAt   time.Time
}

// Config bundles the construction-time knobs that aren't derivable from
// the Adapter itself.
type Config struct {
	BridgeBaseURL string
	APIKey        string
	Logger        *slog.Logger
	SortWaitMax   time.Duration
}

func New(adapter Adapter, client *cachedclient.Client, cfg Config) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = xlog.New(false)
	}
	sortWait := cfg.SortWaitMax
	if sortWait == 0 {
		sortWait = 2 * time.Second
	}
	return &Engine{
		adapter:     adapter,
		client:      client,
		states:      entitystate.New(),
		results:     nameindex.NewResultCache(nameindex.DefaultCacheSize, nameindex.DefaultMaxCacheAge),
		bridgeBase:  cfg.BridgeBaseURL,
		apiKey:      cfg.APIKey,
		logger:      logger,
		sortWaitMax: sortWait,
		startedAt:   timeNow(),
	}
}

// timeNow exists so tests can't accidentally depend on wall-clock skew
// inside this package; it's a direct call today but keeps the seam.
func timeNow() time.Time { return time.Now() }

// Routes registers the full path space on mux, rooted at prefix (the
// facade's configured API path prefix, or "" to serve from the root).
func (e *Engine) Routes(mux *http.ServeMux, prefix string) {
	group := e.adapter.GroupType()
	resPlural := e.adapter.ResourcePlural()

	p := func(suffix string) string { return prefix + suffix }

	mux.HandleFunc(p("/{$}"), e.wrap(e.handleRoot))
	mux.HandleFunc(p("/model"), e.wrap(e.handleModel))
	mux.HandleFunc(p("/capabilities"), e.wrap(e.handleCapabilities))
	mux.HandleFunc(p("/export"), e.wrap(e.handleExport))
	mux.HandleFunc(p("/health"), e.wrap(e.handleHealth))
	mux.HandleFunc(p("/performance/stats"), e.wrap(e.handlePerformanceStats))

	mux.HandleFunc(p(fmt.Sprintf("/%s", group)), e.wrap(e.handleGroupCollection))
	mux.HandleFunc(p(fmt.Sprintf("/%s/{groupId}", group)), e.wrap(e.handleGroup))
	mux.HandleFunc(p(fmt.Sprintf("/%s/{groupId}/%s", group, resPlural)), e.wrap(e.handleResourceCollection))
	mux.HandleFunc(p(fmt.Sprintf("/%s/{groupId}/%s/{resourceId}", group, resPlural)), e.wrap(e.handleResource))
	mux.HandleFunc(p(fmt.Sprintf("/%s/{groupId}/%s/{resourceId}/meta", group, resPlural)), e.wrap(e.handleResourceMeta))
	mux.HandleFunc(p(fmt.Sprintf("/%s/{groupId}/%s/{resourceId}/versions", group, resPlural)), e.wrap(e.handleVersions))
	mux.HandleFunc(p(fmt.Sprintf("/%s/{groupId}/%s/{resourceId}/versions/{versionId}", group, resPlural)), e.wrap(e.handleVersion))
	mux.HandleFunc(p(fmt.Sprintf("/%s/{groupId}/%s/{resourceId}/versions/{versionId}/meta", group, resPlural)), e.wrap(e.handleVersionMeta))

	mux.HandleFunc(p("/"), e.wrapNoMethodCheck(e.handleNotFound))
}

// wrap applies the method policy, CORS headers, trace adoption, and
// structured request logging common to every known route (spec §4.F):
// a matched path with a non-GET/HEAD verb gets 405, never 404.
func (e *Engine) wrap(h func(w http.ResponseWriter, r *http.Request, trace reqcontext.Trace)) http.HandlerFunc {
	return e.wrapWith(h, true)
}

// wrapNoMethodCheck is used only for the catch-all unmatched-path route:
// an unknown path is 404 regardless of verb, never 405.
func (e *Engine) wrapNoMethodCheck(h func(w http.ResponseWriter, r *http.Request, trace reqcontext.Trace)) http.HandlerFunc {
	return e.wrapWith(h, false)
}

// baseFor resolves the bridge-visible base URL for a single request: the
// bridge sets X-Base-Url on its outbound call to the facade so that self
// URLs are correct even though the facade itself has no idea what public
// origin the client used (spec §4.D). Standalone facades (no bridge in
// front, e.g. these tests) fall back to the statically configured base.
func (e *Engine) baseFor(r *http.Request) string {
	if v := r.Header.Get("X-Base-Url"); v != "" {
		return v
	}
	return e.bridgeBase
}

func (e *Engine) wrapWith(h func(w http.ResponseWriter, r *http.Request, trace reqcontext.Trace), enforceMethod bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := timeNow()
		reqcontext.WriteCORS(w)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		trace := reqcontext.AdoptTrace(r)
		ctx, span := tracing.StartRequest(r.Context(), e.adapter.GroupType(), r.Method, r.URL.Path, trace.TraceID, trace.CorrelationID)
		r = r.WithContext(ctx)
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		switch {
		case !e.checkAuth(r):
			e.writeProblem(rec, r, trace, problem.Unauthorized("missing or invalid API key", r.URL.Path))
		case enforceMethod && r.Method != http.MethodGet && r.Method != http.MethodHead:
			e.writeProblem(rec, r, trace, problem.MethodNotAllowed(r.URL.Path))
		default:
			h(rec, r, trace)
		}
		tracing.EndRequest(span, rec.status, nil)
		xlog.Request(e.logger, r.Context(), r.Method, r.URL.Path, rec.status, timeNow().Sub(start), trace.TraceID, trace.CorrelationID, e.adapter.GroupType())
	}
}

// statusRecorder captures the status code a handler wrote so it can be
// logged after the fact; http.ResponseWriter itself exposes no getter.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
