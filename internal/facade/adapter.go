// Package facade implements spec §4.C: the generic per-ecosystem HTTP
// engine. One Engine, parameterized by an Adapter, serves the full
// xRegistry-shaped path space (root, model, capabilities, groups,
// resources, versions, meta) for a single ecosystem.
package facade

import (
	"context"
	"time"

	"github.com/xregistry/bridge/internal/nameindex"
)

// Package is the subset of an upstream package's metadata the facade
// projects into the registry schema (spec §9: "explicit, per-ecosystem
// projection... attributes enumerated and copied only if present").
type Package struct {
	Name        string
	Description string
	Homepage    string
	License     string
	Keywords    []string
	Repository  string
	Fields      map[string]any // ecosystem-specific extras, copied as-is

	// DefaultVersionHint is the upstream's own pointer to its current/stable
	// version (e.g. npm's dist-tags.latest), carried separately from Fields
	// so it never leaks into the projected resource document directly.
	DefaultVersionHint string
}

// Version is one version of a package, already carrying the ecosystem's
// own timestamp so the facade can derive chronological ancestry generically.
type Version struct {
	ID          string
	PublishedAt time.Time
	License     string
	Fields      map[string]any
}

// Adapter is implemented once per ecosystem (npm, pypi, maven, oci, mcp).
// The Engine is entirely generic over Adapter; all upstream-dialect
// knowledge lives behind this interface.
type Adapter interface {
	// Ecosystem is the PURL type, e.g. "npm", "pypi", "maven".
	Ecosystem() string

	// GroupType is the plural group-collection path segment, e.g.
	// "noderegistries".
	GroupType() string

	// GroupID is this facade's single configured group, e.g. "npmjs.org".
	GroupID() string

	// ResourcePlural/ResourceSingular name the resource collection, e.g.
	// "packages" / "package".
	ResourcePlural() string
	ResourceSingular() string

	// NormalizeID applies the ecosystem's deterministic identifier
	// normalization (spec §3), e.g. PyPI's PEP 503 lowercasing.
	NormalizeID(id string) string

	// ModelDoc/CapabilitiesDoc return this ecosystem's static documents,
	// embedded at build time (spec §4 Non-goals: content is not validated
	// or generated here).
	ModelDoc() []byte
	CapabilitiesDoc() []byte

	// UpstreamOrigin is the scheme+host the URL rewriter substitutes away.
	UpstreamOrigin() string

	// Index is this ecosystem's background-loaded name index (spec §4.B).
	Index() *nameindex.Index

	// MetadataFetcher resolves non-name filter fields for Step 2 evaluation.
	MetadataFetcher() nameindex.MetadataFetcher

	// FetchPackage retrieves package metadata by name.
	FetchPackage(ctx context.Context, name string) (*Package, error)

	// FetchVersions retrieves every version of a package, in chronological
	// (oldest-first) order — the facade derives ancestor/isdefault from
	// this order plus DefaultVersionID.
	FetchVersions(ctx context.Context, name string) ([]Version, error)

	// DefaultVersionID returns the upstream's notion of the current/stable
	// version (e.g. npm's dist-tags.latest). Empty if versions is empty.
	DefaultVersionID(pkg *Package, versions []Version) string
}

// ResolveDefaultVersion is the shared fallback every adapter's
// DefaultVersionID can defer to: prefer the upstream's own hint if it names
// a version that actually exists, otherwise fall back to the most recent
// version in chronological order.
func ResolveDefaultVersion(pkg *Package, versions []Version) string {
	if len(versions) == 0 {
		return ""
	}
	if pkg != nil && pkg.DefaultVersionHint != "" {
		for _, v := range versions {
			if v.ID == pkg.DefaultVersionHint {
				return v.ID
			}
		}
	}
	return versions[len(versions)-1].ID
}
