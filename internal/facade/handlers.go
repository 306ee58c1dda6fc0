package facade

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/xregistry/bridge/internal/nameindex"
	"github.com/xregistry/bridge/internal/problem"
	"github.com/xregistry/bridge/internal/reqcontext"
	"github.com/xregistry/bridge/internal/rewrite"
)

// writeJSON serializes v, first passing it through the URL rewriter so any
// ecosystem-specific field copied verbatim from upstream (e.g. npm's dist
// tarball URL) is rewritten to point at base rather than the upstream
// origin (spec §4.D), except "xid" fields, which the rewriter always skips.
func (e *Engine) writeJSON(w http.ResponseWriter, status int, base string, v any) {
	raw, err := json.Marshal(v)
	if err == nil {
		var parsed any
		if json.Unmarshal(raw, &parsed) == nil {
			parsed = rewrite.JSON(parsed, e.adapter.UpstreamOrigin(), base)
			raw, _ = json.Marshal(parsed)
		}
	}
	w.Header().Set("Content-Type", schemaContentType)
	w.Header().Set(versionHeader, specVersion)
	w.WriteHeader(status)
	_, _ = w.Write(raw)
}

func (e *Engine) writeProblem(w http.ResponseWriter, r *http.Request, trace reqcontext.Trace, p *problem.Problem) {
	p = p.WithTrace(trace.TraceID, trace.CorrelationID).WithGroupType(e.adapter.GroupType())
	p.Instance = r.URL.Path
	p.Write(w)
}

func (e *Engine) handleRoot(w http.ResponseWriter, r *http.Request, trace reqcontext.Trace) {
	flags, err := reqcontext.Parse(r)
	if err != nil {
		e.writeProblem(w, r, trace, problem.BadRequest(err.Error(), ""))
		return
	}
	base := e.baseFor(r)
	doc := e.registryDoc(base)
	if flags.Inline["model"] {
		var model any
		if err := json.Unmarshal(e.adapter.ModelDoc(), &model); err == nil {
			doc["model"] = model
		}
	}
	if flags.Inline["capabilities"] {
		var caps any
		if err := json.Unmarshal(e.adapter.CapabilitiesDoc(), &caps); err == nil {
			doc["capabilities"] = caps
		}
	}
	e.writeJSON(w, http.StatusOK, base, doc)
}

func (e *Engine) handleModel(w http.ResponseWriter, r *http.Request, trace reqcontext.Trace) {
	w.Header().Set("Content-Type", schemaContentType)
	w.Header().Set(versionHeader, specVersion)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(e.adapter.ModelDoc())
}

func (e *Engine) handleCapabilities(w http.ResponseWriter, r *http.Request, trace reqcontext.Trace) {
	w.Header().Set("Content-Type", schemaContentType)
	w.Header().Set(versionHeader, specVersion)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(e.adapter.CapabilitiesDoc())
}

func (e *Engine) handleExport(w http.ResponseWriter, r *http.Request, trace reqcontext.Trace) {
	http.Redirect(w, r, "/?doc&inline=*,capabilities,modelsource", http.StatusFound)
}

func (e *Engine) handleHealth(w http.ResponseWriter, r *http.Request, trace reqcontext.Trace) {
	doc := map[string]any{
		"status":     "ok",
		"uptime":     time.Since(e.startedAt).String(),
		"indexReady": e.adapter.Index().Ready(),
	}
	if e.client != nil {
		stats := e.client.Stats()
		doc["cacheHits"] = stats.Hits
		doc["cacheMiss"] = stats.Misses
		if breakers := e.client.BreakerState(); breakers != nil {
			doc["circuitBreakers"] = breakers
		}
	}
	e.writeJSON(w, http.StatusOK, e.baseFor(r), doc)
}

func (e *Engine) handlePerformanceStats(w http.ResponseWriter, r *http.Request, trace reqcontext.Trace) {
	doc := map[string]any{"resultCache": e.results.Stats()}
	if e.client != nil {
		stats := e.client.Stats()
		doc["cache"] = map[string]any{
			"hits":      stats.Hits,
			"misses":    stats.Misses,
			"size":      stats.Size,
			"evictions": stats.Evictions,
		}
		if breakers := e.client.BreakerState(); breakers != nil {
			doc["circuitBreakers"] = breakers
		}
	}
	e.writeJSON(w, http.StatusOK, e.baseFor(r), doc)
}

func (e *Engine) handleGroupCollection(w http.ResponseWriter, r *http.Request, trace reqcontext.Trace) {
	base := e.baseFor(r)
	e.writeJSON(w, http.StatusOK, base, e.groupCollectionDoc(base))
}

func (e *Engine) handleGroup(w http.ResponseWriter, r *http.Request, trace reqcontext.Trace) {
	if r.PathValue("groupId") != e.adapter.GroupID() {
		e.writeProblem(w, r, trace, problem.NotFound("unknown group", ""))
		return
	}
	base := e.baseFor(r)
	e.writeJSON(w, http.StatusOK, base, e.groupDoc(base))
}

func (e *Engine) handleResourceCollection(w http.ResponseWriter, r *http.Request, trace reqcontext.Trace) {
	if r.PathValue("groupId") != e.adapter.GroupID() {
		e.writeProblem(w, r, trace, problem.NotFound("unknown group", ""))
		return
	}
	flags, err := reqcontext.Parse(r)
	if err != nil {
		e.writeProblem(w, r, trace, problem.BadRequest(err.Error(), ""))
		return
	}

	var preds []nameindex.Predicate
	if flags.HasFilter {
		preds, err = nameindex.ParseFilter(flags.Filter)
		if err != nil {
			e.writeProblem(w, r, trace, problem.BadRequest(err.Error(), ""))
			return
		}
	}

	descending := false
	if flags.HasSort {
		descending = strings.HasSuffix(flags.Sort, "=desc")
		if !e.waitForIndex(r.Context()) {
			e.writeProblem(w, r, trace, problem.UpstreamTimeout("name index not ready", ""))
			return
		}
	}

	cacheKey := nameindex.Key(normalizeFilterKey(flags), flags.Limit, flags.Offset)
	var result nameindex.Result
	if cached, ok := e.results.Get(cacheKey); ok {
		result = cached
	} else {
		result, err = nameindex.EvaluateSorted(r.Context(), e.adapter.Index(), preds, e.adapter.MetadataFetcher(), nameindex.DefaultMaxMetadataFetches, flags.Limit, flags.Offset, descending)
		if err != nil {
			e.writeProblem(w, r, trace, problem.Internal(err.Error(), ""))
			return
		}
		e.results.Put(cacheKey, result)
	}

	base := e.baseFor(r)
	doc := make(map[string]any, len(result.Names))
	for _, name := range result.Names {
		pkg, err := e.adapter.FetchPackage(r.Context(), name)
		if err != nil {
			// spec §7: the filter optimizer never fails on a single
			// metadata-fetch error; the candidate is dropped instead.
			continue
		}
		versions, _ := e.adapter.FetchVersions(r.Context(), name)
		defaultID := e.adapter.DefaultVersionID(pkg, versions)
		doc[name] = e.resourceDoc(base, e.adapter.NormalizeID(name), pkg, versions, defaultID)
	}

	if result.HasMore {
		w.Header().Set("Link", e.nextLink(r, base, flags))
	}
	e.writeJSON(w, http.StatusOK, base, doc)
}

func normalizeFilterKey(flags reqcontext.Flags) string {
	return flags.Filter + "|" + flags.Sort
}

func (e *Engine) nextLink(r *http.Request, base string, flags reqcontext.Flags) string {
	q := r.URL.Query()
	q.Set("offset", strconv.Itoa(flags.Offset+flags.Limit))
	q.Set("limit", strconv.Itoa(flags.Limit))
	u := url.URL{Path: r.URL.Path, RawQuery: q.Encode()}
	return fmt.Sprintf("<%s>; rel=\"next\"", base+u.String())
}

// waitForIndex blocks until the name index finishes its background load or
// the engine's configured deadline elapses (spec §4.C "requesting sort
// forces the facade to wait for the index to finish loading, bounded by a
// deadline").
func (e *Engine) waitForIndex(ctx context.Context) bool {
	idx := e.adapter.Index()
	if idx.Ready() {
		return true
	}
	deadline := time.NewTimer(e.sortWaitMax)
	defer deadline.Stop()
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return false
		case <-deadline.C:
			return idx.Ready()
		case <-ticker.C:
			if idx.Ready() {
				return true
			}
		}
	}
}

func (e *Engine) handleResource(w http.ResponseWriter, r *http.Request, trace reqcontext.Trace) {
	if r.PathValue("groupId") != e.adapter.GroupID() {
		e.writeProblem(w, r, trace, problem.NotFound("unknown group", ""))
		return
	}
	name := e.adapter.NormalizeID(r.PathValue("resourceId"))
	pkg, err := e.adapter.FetchPackage(r.Context(), name)
	if err != nil {
		e.writeProblem(w, r, trace, problem.NotFound(err.Error(), ""))
		return
	}
	versions, err := e.adapter.FetchVersions(r.Context(), name)
	if err != nil {
		e.writeProblem(w, r, trace, problem.UpstreamUnavailable(err.Error(), ""))
		return
	}
	defaultID := e.adapter.DefaultVersionID(pkg, versions)
	base := e.baseFor(r)
	e.writeJSON(w, http.StatusOK, base, e.resourceDoc(base, name, pkg, versions, defaultID))
}

func (e *Engine) handleResourceMeta(w http.ResponseWriter, r *http.Request, trace reqcontext.Trace) {
	if r.PathValue("groupId") != e.adapter.GroupID() {
		e.writeProblem(w, r, trace, problem.NotFound("unknown group", ""))
		return
	}
	name := e.adapter.NormalizeID(r.PathValue("resourceId"))
	versions, err := e.adapter.FetchVersions(r.Context(), name)
	if err != nil {
		e.writeProblem(w, r, trace, problem.NotFound(err.Error(), ""))
		return
	}
	base := e.baseFor(r)
	e.writeJSON(w, http.StatusOK, base, e.resourceMetaDoc(base, name, len(versions)))
}

func (e *Engine) handleVersions(w http.ResponseWriter, r *http.Request, trace reqcontext.Trace) {
	if r.PathValue("groupId") != e.adapter.GroupID() {
		e.writeProblem(w, r, trace, problem.NotFound("unknown group", ""))
		return
	}
	name := e.adapter.NormalizeID(r.PathValue("resourceId"))
	pkg, err := e.adapter.FetchPackage(r.Context(), name)
	if err != nil {
		e.writeProblem(w, r, trace, problem.NotFound(err.Error(), ""))
		return
	}
	versions, err := e.adapter.FetchVersions(r.Context(), name)
	if err != nil {
		e.writeProblem(w, r, trace, problem.UpstreamUnavailable(err.Error(), ""))
		return
	}
	defaultID := e.adapter.DefaultVersionID(pkg, versions)
	base := e.baseFor(r)
	e.writeJSON(w, http.StatusOK, base, e.versionsDoc(base, name, versions, defaultID, ancestorsOf(versions)))
}

func (e *Engine) handleVersion(w http.ResponseWriter, r *http.Request, trace reqcontext.Trace) {
	if r.PathValue("groupId") != e.adapter.GroupID() {
		e.writeProblem(w, r, trace, problem.NotFound("unknown group", ""))
		return
	}
	name := e.adapter.NormalizeID(r.PathValue("resourceId"))
	versionID := r.PathValue("versionId")
	pkg, err := e.adapter.FetchPackage(r.Context(), name)
	if err != nil {
		e.writeProblem(w, r, trace, problem.NotFound(err.Error(), ""))
		return
	}
	versions, err := e.adapter.FetchVersions(r.Context(), name)
	if err != nil {
		e.writeProblem(w, r, trace, problem.UpstreamUnavailable(err.Error(), ""))
		return
	}
	v, ok := findVersion(versions, versionID)
	if !ok {
		e.writeProblem(w, r, trace, problem.NotFound("unknown version", ""))
		return
	}
	defaultID := e.adapter.DefaultVersionID(pkg, versions)
	base := e.baseFor(r)
	e.writeJSON(w, http.StatusOK, base, e.versionDoc(base, name, v, defaultID, ancestorsOf(versions)[v.ID]))
}

func (e *Engine) handleVersionMeta(w http.ResponseWriter, r *http.Request, trace reqcontext.Trace) {
	if r.PathValue("groupId") != e.adapter.GroupID() {
		e.writeProblem(w, r, trace, problem.NotFound("unknown group", ""))
		return
	}
	name := e.adapter.NormalizeID(r.PathValue("resourceId"))
	versionID := r.PathValue("versionId")
	pkg, err := e.adapter.FetchPackage(r.Context(), name)
	if err != nil {
		e.writeProblem(w, r, trace, problem.NotFound(err.Error(), ""))
		return
	}
	versions, err := e.adapter.FetchVersions(r.Context(), name)
	if err != nil {
		e.writeProblem(w, r, trace, problem.UpstreamUnavailable(err.Error(), ""))
		return
	}
	v, ok := findVersion(versions, versionID)
	if !ok {
		e.writeProblem(w, r, trace, problem.NotFound("unknown version", ""))
		return
	}
	defaultID := e.adapter.DefaultVersionID(pkg, versions)
	base := e.baseFor(r)
	e.writeJSON(w, http.StatusOK, base, e.versionMetaDoc(base, name, v, defaultID, ancestorsOf(versions)[v.ID]))
}

func (e *Engine) handleNotFound(w http.ResponseWriter, r *http.Request, trace reqcontext.Trace) {
	e.writeProblem(w, r, trace, problem.NotFound("no such route", ""))
}

func findVersion(versions []Version, id string) (Version, bool) {
	for _, v := range versions {
		if v.ID == id {
			return v, true
		}
	}
	return Version{}, false
}
