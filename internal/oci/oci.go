// Package oci provides a registry client for the OCI Distribution API,
// following the same core.Registry shape as internal/npm and internal/maven
// so the xRegistry facades can treat container image repositories as just
// another package ecosystem.
package oci

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	digest "github.com/opencontainers/go-digest"
	v1 "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/xregistry/bridge/internal/core"
)

const (
	DefaultURL = "https://registry-1.docker.io"
	ecosystem  = "oci"

	// manifestFetchCap bounds how many tags get a manifest lookup for their
	// creation timestamp; the tags/list endpoint alone carries no timing
	// information, and fetching a manifest per tag is one upstream call
	// each, so this keeps FetchVersions's fan-out bounded the same way
	// component B's two-step filter bounds its own fan-out.
	manifestFetchCap = 25
)

func init() {
	core.Register(ecosystem, DefaultURL, func(baseURL string, client *core.Client) core.Registry {
		return New(baseURL, client)
	})
}

// Registry talks to the OCI Distribution API (GET /v2/<name>/tags/list,
// GET /v2/<name>/manifests/<tag>) rather than an npm/PyPI-style package
// metadata endpoint: an OCI "package" is a repository, and its "versions"
// are tags.
type Registry struct {
	baseURL string
	client  *core.Client
	urls    *URLs
}

func New(baseURL string, client *core.Client) *Registry {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	baseURL = strings.TrimSuffix(baseURL, "/")
	return &Registry{baseURL: baseURL, client: client, urls: &URLs{baseURL: baseURL}}
}

func (r *Registry) Ecosystem() string     { return ecosystem }
func (r *Registry) URLs() core.URLBuilder { return r.urls }

type tagsListResponse struct {
	Name string   `json:"name"`
	Tags []string `json:"tags"`
}

func (r *Registry) fetchTags(ctx context.Context, name string) (*tagsListResponse, error) {
	endpoint := fmt.Sprintf("%s/v2/%s/tags/list", r.baseURL, url.PathEscape(name))
	var resp tagsListResponse
	if err := r.client.GetJSON(ctx, endpoint, &resp); err != nil {
		if httpErr, ok := err.(*core.HTTPError); ok && httpErr.IsNotFound() {
			return nil, &core.NotFoundError{Ecosystem: ecosystem, Name: name}
		}
		return nil, err
	}
	return &resp, nil
}

func (r *Registry) FetchPackage(ctx context.Context, name string) (*core.Package, error) {
	resp, err := r.fetchTags(ctx, name)
	if err != nil {
		return nil, err
	}
	latest := pickLatestTag(resp.Tags)
	return &core.Package{
		Name:          resp.Name,
		Namespace:     namespaceOf(resp.Name),
		LatestVersion: latest,
		Metadata: map[string]any{
			"tagCount": len(resp.Tags),
		},
	}, nil
}

// pickLatestTag prefers the conventional "latest" tag; otherwise the
// lexicographically greatest tag stands in for it, since the Distribution
// API doesn't expose an ordering or a dist-tags equivalent.
func pickLatestTag(tags []string) string {
	for _, t := range tags {
		if t == "latest" {
			return t
		}
	}
	best := ""
	for _, t := range tags {
		if t > best {
			best = t
		}
	}
	return best
}

func (r *Registry) FetchVersions(ctx context.Context, name string) ([]core.Version, error) {
	resp, err := r.fetchTags(ctx, name)
	if err != nil {
		return nil, err
	}

	versions := make([]core.Version, 0, len(resp.Tags))
	for i, tag := range resp.Tags {
		v := core.Version{Number: tag, Metadata: map[string]any{}}
		if i < manifestFetchCap {
			if manifest, dgst, created, ferr := r.fetchManifest(ctx, name, tag); ferr == nil {
				v.PublishedAt = created
				v.Integrity = dgst.String()
				v.Metadata["mediaType"] = manifest.MediaType
				v.Metadata["layerCount"] = len(manifest.Layers)
				v.Metadata["configDigest"] = manifest.Config.Digest.String()
			}
		}
		versions = append(versions, v)
	}
	return versions, nil
}

// fetchManifest resolves a tag to its manifest, validating the returned
// Docker-Content-Digest against the well-known digest format via go-digest.
func (r *Registry) fetchManifest(ctx context.Context, name, tag string) (*v1.Manifest, digest.Digest, time.Time, error) {
	endpoint := fmt.Sprintf("%s/v2/%s/manifests/%s", r.baseURL, url.PathEscape(name), url.PathEscape(tag))
	var manifest v1.Manifest
	if err := r.client.GetJSON(ctx, endpoint, &manifest); err != nil {
		return nil, "", time.Time{}, err
	}
	dgst := manifest.Config.Digest
	if err := dgst.Validate(); err != nil {
		dgst = digest.FromString(name + ":" + tag)
	}
	created := createdFromAnnotations(manifest.Annotations)
	return &manifest, dgst, created, nil
}

func createdFromAnnotations(annotations map[string]string) time.Time {
	raw, ok := annotations["org.opencontainers.image.created"]
	if !ok {
		return time.Time{}
	}
	t, _ := time.Parse(time.RFC3339, raw)
	return t
}

func (r *Registry) FetchDependencies(ctx context.Context, name, version string) ([]core.Dependency, error) {
	// Layer digests aren't dependency coordinates in any package-manager
	// sense; OCI images carry no dependency manifest.
	return nil, nil
}

func (r *Registry) FetchMaintainers(ctx context.Context, name string) ([]core.Maintainer, error) {
	return nil, nil
}

func namespaceOf(repository string) string {
	if i := strings.LastIndex(repository, "/"); i >= 0 {
		return repository[:i]
	}
	return ""
}

type URLs struct {
	baseURL string
}

func (u *URLs) Registry(name, version string) string {
	if version != "" {
		return fmt.Sprintf("%s/v2/%s/manifests/%s", u.baseURL, name, version)
	}
	return fmt.Sprintf("%s/v2/%s/tags/list", u.baseURL, name)
}

func (u *URLs) Download(name, version string) string {
	if version == "" {
		return ""
	}
	return fmt.Sprintf("%s/v2/%s/manifests/%s", u.baseURL, name, version)
}

func (u *URLs) Documentation(name, version string) string {
	return fmt.Sprintf("https://hub.docker.com/r/%s", name)
}

func (u *URLs) PURL(name, version string) string {
	if version != "" {
		return fmt.Sprintf("pkg:oci/%s@%s", name, version)
	}
	return fmt.Sprintf("pkg:oci/%s", name)
}
