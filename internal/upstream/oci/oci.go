// Package oci adapts an OCI Distribution registry client to the
// facade.Adapter interface.
package oci

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/xregistry/bridge/internal/cachedclient"
	"github.com/xregistry/bridge/internal/core"
	"github.com/xregistry/bridge/internal/facade"
	"github.com/xregistry/bridge/internal/nameindex"
	coreOCI "github.com/xregistry/bridge/internal/oci"
)

//go:embed model.json capabilities.json
var docs embed.FS

const (
	packageTTL = 5 * time.Minute
	versionTTL = 10 * time.Minute
)

// Model and Capabilities expose the embedded static documents without
// requiring a fully constructed Adapter, so the bridge can merge every
// configured ecosystem's schema into its own aggregate /model and
// /capabilities documents.
func Model() []byte {
	b, _ := docs.ReadFile("model.json")
	return b
}

func Capabilities() []byte {
	b, _ := docs.ReadFile("capabilities.json")
	return b
}

// Adapter implements facade.Adapter for OCI Distribution registries.
type Adapter struct {
	registry core.Registry
	cache    *cachedclient.Client
	idx      *nameindex.Index
	groupID  string
	baseURL  string
	model    []byte
	caps     []byte
}

// New builds an OCI Adapter. groupID is the configured group (e.g. "docker.io").
func New(baseURL, groupID string, client *core.Client, cache *cachedclient.Client) *Adapter {
	model, _ := docs.ReadFile("model.json")
	caps, _ := docs.ReadFile("capabilities.json")
	if baseURL == "" {
		baseURL = coreOCI.DefaultURL
	}
	return &Adapter{
		registry: coreOCI.New(baseURL, client),
		cache:    cache,
		idx:      nameindex.New(),
		groupID:  groupID,
		baseURL:  baseURL,
		model:    model,
		caps:     caps,
	}
}

func (a *Adapter) Ecosystem() string        { return "oci" }
func (a *Adapter) GroupType() string        { return "containerregistries" }
func (a *Adapter) GroupID() string          { return a.groupID }
func (a *Adapter) ResourcePlural() string   { return "images" }
func (a *Adapter) ResourceSingular() string { return "image" }

// NormalizeID undoes the "~" substitution repository names need in the URL
// path: OCI repository names carry their own "/" separators (e.g.
// "library/alpine"), which xRegistry's single-segment {resourceId} can't
// carry literally, so clients spell it "library~alpine".
func (a *Adapter) NormalizeID(id string) string { return strings.ReplaceAll(id, "~", "/") }

func (a *Adapter) ModelDoc() []byte        { return a.model }
func (a *Adapter) CapabilitiesDoc() []byte { return a.caps }
func (a *Adapter) UpstreamOrigin() string  { return a.baseURL }
func (a *Adapter) Index() *nameindex.Index { return a.idx }

func (a *Adapter) MetadataFetcher() nameindex.MetadataFetcher { return metadataFetcher{a} }

// LoadIndex seeds the background name index; the Distribution API's own
// catalog endpoint (GET /v2/_catalog) is frequently disabled on hosted
// registries (Docker Hub included), so the index grows lazily from observed
// lookups and reports not-ready until the first one lands.
func (a *Adapter) LoadIndex(ctx context.Context, seed []string) {
	a.idx.Load(seed)
}

func (a *Adapter) FetchPackage(ctx context.Context, name string) (*facade.Package, error) {
	raw, err := a.cache.GetOrCompute(ctx, "oci:pkg:"+name, packageTTL, func(ctx context.Context) (json.RawMessage, error) {
		pkg, err := a.registry.FetchPackage(ctx, name)
		if err != nil {
			return nil, mapError(err)
		}
		return json.Marshal(pkg)
	})
	if err != nil {
		return nil, err
	}
	var pkg core.Package
	if err := json.Unmarshal(raw, &pkg); err != nil {
		return nil, err
	}
	a.observe(pkg.Name)
	return toFacadePackage(&pkg), nil
}

func (a *Adapter) observe(name string) {
	names := a.idx.Names()
	i := sort.SearchStrings(names, name)
	if i < len(names) && names[i] == name {
		return
	}
	a.idx.Load(append(append([]string{}, names...), name))
}

func (a *Adapter) FetchVersions(ctx context.Context, name string) ([]facade.Version, error) {
	raw, err := a.cache.GetOrCompute(ctx, "oci:versions:"+name, versionTTL, func(ctx context.Context) (json.RawMessage, error) {
		versions, err := a.registry.FetchVersions(ctx, name)
		if err != nil {
			return nil, mapError(err)
		}
		return json.Marshal(versions)
	})
	if err != nil {
		return nil, err
	}
	var coreVersions []core.Version
	if err := json.Unmarshal(raw, &coreVersions); err != nil {
		return nil, err
	}
	versions := make([]facade.Version, 0, len(coreVersions))
	for _, v := range coreVersions {
		versions = append(versions, facade.Version{
			ID:          v.Number,
			PublishedAt: v.PublishedAt,
			Fields:      v.Metadata,
		})
	}
	facade.SortChronological(versions)
	return versions, nil
}

func (a *Adapter) DefaultVersionID(pkg *facade.Package, versions []facade.Version) string {
	return facade.ResolveDefaultVersion(pkg, versions)
}

func toFacadePackage(pkg *core.Package) *facade.Package {
	return &facade.Package{
		Name:               pkg.Name,
		Repository:         pkg.Repository,
		DefaultVersionHint: pkg.LatestVersion,
		Fields:             pkg.Metadata,
	}
}

func mapError(err error) error {
	var nf *core.NotFoundError
	if errors.As(err, &nf) {
		return fmt.Errorf("%w: %s", cachedclient.ErrNotFound, nf.Name)
	}
	return err
}

type metadataFetcher struct{ a *Adapter }

func (m metadataFetcher) Fetch(ctx context.Context, name string) (nameindex.Metadata, error) {
	pkg, err := m.a.FetchPackage(ctx, name)
	if err != nil {
		return nameindex.Metadata{}, err
	}
	return nameindex.Metadata{
		Description: pkg.Description,
		Repository:  pkg.Repository,
	}, nil
}
