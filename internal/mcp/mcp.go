// Package mcp provides a registry client for MCP registries (the Model
// Context Protocol server registry API), following the same core.Registry
// shape as internal/npm and internal/maven. The registry is a plain JSON
// HTTP API; there is no need to depend on an MCP protocol SDK to read its
// listings.
package mcp

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/xregistry/bridge/internal/core"
)

const (
	DefaultURL = "https://registry.modelcontextprotocol.io"
	ecosystem  = "mcp"
)

func init() {
	core.Register(ecosystem, DefaultURL, func(baseURL string, client *core.Client) core.Registry {
		return New(baseURL, client)
	})
}

// Registry talks to the MCP server registry's REST surface
// (GET /v0/servers/<name>, GET /v0/servers/<name>/versions).
type Registry struct {
	baseURL string
	client  *core.Client
	urls    *URLs
}

func New(baseURL string, client *core.Client) *Registry {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	return &Registry{baseURL: baseURL, client: client, urls: &URLs{baseURL: baseURL}}
}

func (r *Registry) Ecosystem() string     { return ecosystem }
func (r *Registry) URLs() core.URLBuilder { return r.urls }

type repository struct {
	URL    string `json:"url"`
	Source string `json:"source"`
}

type versionDetail struct {
	Version     string `json:"version"`
	ReleaseDate string `json:"release_date"`
	IsLatest    bool   `json:"is_latest"`
}

type serverDetail struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	Description   string        `json:"description"`
	Repository    repository    `json:"repository"`
	VersionDetail versionDetail `json:"version_detail"`
}

type versionsResponse struct {
	Versions []versionDetail `json:"versions"`
}

func (r *Registry) fetchServer(ctx context.Context, name string) (*serverDetail, error) {
	endpoint := fmt.Sprintf("%s/v0/servers/%s", r.baseURL, url.PathEscape(name))
	var resp serverDetail
	if err := r.client.GetJSON(ctx, endpoint, &resp); err != nil {
		if httpErr, ok := err.(*core.HTTPError); ok && httpErr.IsNotFound() {
			return nil, &core.NotFoundError{Ecosystem: ecosystem, Name: name}
		}
		return nil, err
	}
	return &resp, nil
}

func (r *Registry) FetchPackage(ctx context.Context, name string) (*core.Package, error) {
	server, err := r.fetchServer(ctx, name)
	if err != nil {
		return nil, err
	}
	return &core.Package{
		Name:          server.Name,
		Description:   server.Description,
		Repository:    server.Repository.URL,
		LatestVersion: server.VersionDetail.Version,
		Metadata: map[string]any{
			"id":     server.ID,
			"source": server.Repository.Source,
		},
	}, nil
}

// FetchVersions asks the registry for the full version history. Not every
// deployment of this API exposes /versions (the reference implementation's
// server detail carries only the current release), so a 404 here degrades
// gracefully to the single version embedded in the server detail rather
// than failing the whole request.
func (r *Registry) FetchVersions(ctx context.Context, name string) ([]core.Version, error) {
	endpoint := fmt.Sprintf("%s/v0/servers/%s/versions", r.baseURL, url.PathEscape(name))
	var resp versionsResponse
	err := r.client.GetJSON(ctx, endpoint, &resp)
	if err == nil {
		return toVersions(resp.Versions), nil
	}
	if httpErr, ok := err.(*core.HTTPError); !ok || !httpErr.IsNotFound() {
		return nil, err
	}

	server, err := r.fetchServer(ctx, name)
	if err != nil {
		return nil, err
	}
	if server.VersionDetail.Version == "" {
		return nil, nil
	}
	return toVersions([]versionDetail{server.VersionDetail}), nil
}

func toVersions(details []versionDetail) []core.Version {
	versions := make([]core.Version, 0, len(details))
	for _, d := range details {
		var published time.Time
		if d.ReleaseDate != "" {
			published, _ = time.Parse(time.RFC3339, d.ReleaseDate)
		}
		versions = append(versions, core.Version{
			Number:      d.Version,
			PublishedAt: published,
			Metadata:    map[string]any{"isLatest": d.IsLatest},
		})
	}
	return versions
}

func (r *Registry) FetchDependencies(ctx context.Context, name, version string) ([]core.Dependency, error) {
	// The registry describes a server's transport and packaging, not a
	// dependency graph.
	return nil, nil
}

func (r *Registry) FetchMaintainers(ctx context.Context, name string) ([]core.Maintainer, error) {
	return nil, nil
}

type URLs struct {
	baseURL string
}

func (u *URLs) Registry(name, version string) string {
	return fmt.Sprintf("%s/v0/servers/%s", u.baseURL, name)
}

func (u *URLs) Download(name, version string) string {
	return ""
}

func (u *URLs) Documentation(name, version string) string {
	return fmt.Sprintf("%s/v0/servers/%s", u.baseURL, name)
}

func (u *URLs) PURL(name, version string) string {
	if version != "" {
		return fmt.Sprintf("pkg:mcp/%s@%s", name, version)
	}
	return fmt.Sprintf("pkg:mcp/%s", name)
}
