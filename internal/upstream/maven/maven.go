// Package maven adapts the Maven Central registry client to the
// facade.Adapter interface.
package maven

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/xregistry/bridge/internal/cachedclient"
	"github.com/xregistry/bridge/internal/core"
	"github.com/xregistry/bridge/internal/facade"
	coreMaven "github.com/xregistry/bridge/internal/maven"
	"github.com/xregistry/bridge/internal/nameindex"
)

//go:embed model.json capabilities.json
var docs embed.FS

const (
	packageTTL = 10 * time.Minute
	versionTTL = 30 * time.Minute
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

// Adapter implements facade.Adapter for Maven Central. Resource ids are
// "groupId:artifactId" coordinates, matching coreMaven.ParseCoordinates.
type Adapter struct {
	registry core.Registry
	cache    *cachedclient.Client
	idx      *nameindex.Index
	groupID  string
	baseURL  string
	model    []byte
	caps     []byte
}

// New builds a Maven Adapter. groupID is the configured group (e.g. "central").
func New(baseURL, groupID string, client *core.Client, cache *cachedclient.Client) *Adapter {
	model, _ := docs.ReadFile("model.json")
	caps, _ := docs.ReadFile("capabilities.json")
	if baseURL == "" {
		baseURL = coreMaven.DefaultURL
	}
	return &Adapter{
		registry: coreMaven.New(baseURL, client),
		cache:    cache,
		idx:      nameindex.New(),
		groupID:  groupID,
		baseURL:  baseURL,
		model:    model,
		caps:     caps,
	}
}

func (a *Adapter) Ecosystem() string            { return "maven" }
func (a *Adapter) GroupType() string            { return "javaregistries" }
func (a *Adapter) GroupID() string              { return a.groupID }
func (a *Adapter) ResourcePlural() string       { return "packages" }
func (a *Adapter) ResourceSingular() string     { return "package" }
func (a *Adapter) NormalizeID(id string) string { return id }
func (a *Adapter) ModelDoc() []byte             { return a.model }
func (a *Adapter) CapabilitiesDoc() []byte      { return a.caps }
func (a *Adapter) UpstreamOrigin() string       { return a.baseURL }
func (a *Adapter) Index() *nameindex.Index      { return a.idx }

func (a *Adapter) MetadataFetcher() nameindex.MetadataFetcher { return metadataFetcher{a} }

// nameSeeder is implemented by core.Registry values that can bulk-list
// known names; asserted against rather than added to core.Registry itself
// so ecosystems without a bulk endpoint (oci, mcp) aren't forced to stub it.
type nameSeeder interface {
	FetchNameSeed(ctx context.Context, limit int) ([]string, error)
}

// LoadIndex seeds the background name index. With an explicit seed it loads
// synchronously; otherwise it kicks off an asynchronous fetch from Central's
// search API (spec §4.B: "coordinate list for Maven") and the index reports
// not-ready until that fetch lands.
func (a *Adapter) LoadIndex(ctx context.Context, seed []string) {
	if len(seed) > 0 {
		a.idx.Load(seed)
		return
	}
	if seeder, ok := a.registry.(nameSeeder); ok {
		a.idx.LoadAsync(ctx, func(ctx context.Context) ([]string, error) {
			return seeder.FetchNameSeed(ctx, 0)
		})
		return
	}
	a.idx.Load(seed)
}

func (a *Adapter) FetchPackage(ctx context.Context, name string) (*facade.Package, error) {
	raw, err := a.cache.GetOrCompute(ctx, "maven:pkg:"+name, packageTTL, func(ctx context.Context) (json.RawMessage, error) {
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
	a.observe(name)
	return toFacadePackage(&pkg), nil
}

func (a *Adapter) FetchVersions(ctx context.Context, name string) ([]facade.Version, error) {
	raw, err := a.cache.GetOrCompute(ctx, "maven:versions:"+name, versionTTL, func(ctx context.Context) (json.RawMessage, error) {
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
			License:     v.Licenses,
			Fields:      v.Metadata,
		})
	}
	facade.SortChronological(versions)
	return versions, nil
}

func (a *Adapter) DefaultVersionID(pkg *facade.Package, versions []facade.Version) string {
	return facade.ResolveDefaultVersion(pkg, versions)
}

func (a *Adapter) observe(name string) {
	names := a.idx.Names()
	i := sort.SearchStrings(names, name)
	if i < len(names) && names[i] == name {
		return
	}
	a.idx.Load(append(append([]string{}, names...), name))
}

func toFacadePackage(pkg *core.Package) *facade.Package {
	return &facade.Package{
		Name:               pkg.Name,
		Description:        pkg.Description,
		Homepage:           pkg.Homepage,
		License:            pkg.Licenses,
		Keywords:           pkg.Keywords,
		Repository:         pkg.Repository,
		DefaultVersionHint: pkg.LatestVersion,
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
		License:     pkg.License,
		Homepage:    pkg.Homepage,
		Keywords:    pkg.Keywords,
		Repository:  pkg.Repository,
	}, nil
}
