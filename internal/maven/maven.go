// Package maven provides a registry client for Maven Central.
package maven

import (
	"context"
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"github.com/xregistry/bridge/internal/core"
)

const (
	DefaultURL    = "https://repo1.maven.org/maven2"
	defaultSearch = "https://search.maven.org"
	ecosystem     = "maven"
	maxParentHops = 5
)

func init() {
	core.Register(ecosystem, DefaultURL, func(baseURL string, client *core.Client) core.Registry {
		return New(baseURL, client)
	})
}

type Registry struct {
	baseURL   string
	searchURL string
	client    *core.Client
	urls      *URLs
}

func New(baseURL string, client *core.Client) *Registry {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	baseURL = strings.TrimSuffix(baseURL, "/")
	return &Registry{
		baseURL:   baseURL,
		searchURL: defaultSearch,
		client:    client,
		urls:      &URLs{baseURL: baseURL},
	}
}

func (r *Registry) Ecosystem() string {
	return ecosystem
}

func (r *Registry) URLs() core.URLBuilder {
	return r.urls
}

// ParseCoordinates splits a Maven coordinate string of the form
// "groupId:artifactId" or "groupId:artifactId:version" into its parts.
// Returns empty strings if input doesn't contain at least a colon-separated
// groupId:artifactId pair.
func ParseCoordinates(coord string) (groupID, artifactID, version string) {
	parts := strings.Split(coord, ":")
	if len(parts) < 2 {
		return "", "", ""
	}
	groupID, artifactID = parts[0], parts[1]
	if len(parts) >= 3 {
		version = parts[2]
	}
	return groupID, artifactID, version
}

type searchResponse struct {
	Response searchResponseBody `json:"response"`
}

type searchResponseBody struct {
	NumFound int         `json:"numFound"`
	Docs     []searchDoc `json:"docs"`
}

type searchDoc struct {
	ID           string `json:"id"`
	GroupID      string `json:"g"`
	ArtifactID   string `json:"a"`
	Version      string `json:"v"`
	VersionCount int     `json:"versionCount"`
	Timestamp    int64  `json:"timestamp"` // epoch millis
}

func (r *Registry) search(ctx context.Context, groupID, artifactID string, rows int, core bool) (*searchResponse, error) {
	query := fmt.Sprintf("g:%s+AND+a:%s", groupID, artifactID)
	url := fmt.Sprintf("%s/solrsearch/select?q=%s&rows=%d&wt=json", r.searchURL, query, rows)
	if core {
		url += "&core=gav"
	}

	var resp searchResponse
	if err := r.client.GetJSON(ctx, url, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (r *Registry) FetchPackage(ctx context.Context, name string) (*core.Package, error) {
	groupID, artifactID, _ := ParseCoordinates(name)
	if groupID == "" {
		return nil, fmt.Errorf("invalid maven coordinate: %s", name)
	}

	resp, err := r.search(ctx, groupID, artifactID, 1, false)
	if err != nil {
		return nil, err
	}
	if resp.Response.NumFound == 0 {
		return nil, &core.NotFoundError{Ecosystem: ecosystem, Name: name}
	}

	doc := resp.Response.Docs[0]
	pom, err := r.fetchPOM(ctx, groupID, artifactID, doc.Version, 0)
	if err != nil {
		return nil, err
	}

	return &core.Package{
		Name:          fmt.Sprintf("%s:%s", groupID, artifactID),
		Description:   coalesce(pom.Description, pom.Name),
		Homepage:      pom.URL,
		Repository:    pom.repositoryURL(),
		Licenses:      pom.licenseNames(),
		Namespace:     groupID,
		LatestVersion: doc.Version,
		Metadata: map[string]any{
			"latest_version": doc.Version,
			"version_count":  doc.VersionCount,
		},
	}, nil
}

func (r *Registry) FetchVersions(ctx context.Context, name string) ([]core.Version, error) {
	groupID, artifactID, _ := ParseCoordinates(name)
	if groupID == "" {
		return nil, fmt.Errorf("invalid maven coordinate: %s", name)
	}

	resp, err := r.search(ctx, groupID, artifactID, 200, true)
	if err == nil && resp.Response.NumFound > 0 {
		versions := make([]core.Version, 0, len(resp.Response.Docs))
		for _, doc := range resp.Response.Docs {
			versions = append(versions, core.Version{
				Number:      doc.Version,
				PublishedAt: time.UnixMilli(doc.Timestamp).UTC(),
			})
		}
		return versions, nil
	}

	// Fall back to maven-metadata.xml when the search core has no GAV rows
	// (common for older or sparsely-indexed artifacts).
	return r.fetchVersionsFromMetadata(ctx, groupID, artifactID)
}

type mavenMetadata struct {
	GroupID    string `xml:"groupId"`
	ArtifactID string `xml:"artifactId"`
	Versioning struct {
		Latest   string   `xml:"latest"`
		Release  string   `xml:"release"`
		Versions []string `xml:"versions>version"`
	} `xml:"versioning"`
}

func (r *Registry) fetchVersionsFromMetadata(ctx context.Context, groupID, artifactID string) ([]core.Version, error) {
	path := strings.ReplaceAll(groupID, ".", "/")
	url := fmt.Sprintf("%s/%s/%s/maven-metadata.xml", r.baseURL, path, artifactID)

	body, err := r.client.GetBody(ctx, url)
	if err != nil {
		if httpErr, ok := err.(*core.HTTPError); ok && httpErr.IsNotFound() {
			return nil, &core.NotFoundError{Ecosystem: ecosystem, Name: fmt.Sprintf("%s:%s", groupID, artifactID)}
		}
		return nil, err
	}

	var metadata mavenMetadata
	if err := xml.Unmarshal(body, &metadata); err != nil {
		return nil, fmt.Errorf("parsing maven-metadata.xml: %w", err)
	}

	versions := make([]core.Version, 0, len(metadata.Versioning.Versions))
	for _, v := range metadata.Versioning.Versions {
		versions = append(versions, core.Version{Number: v})
	}
	return versions, nil
}

type pomDependency struct {
	GroupID    string `xml:"groupId"`
	ArtifactID string `xml:"artifactId"`
	Version    string `xml:"version"`
	Scope      string `xml:"scope"`
	Optional   string `xml:"optional"`
}

type pomLicense struct {
	Name string `xml:"name"`
}

type pomDeveloper struct {
	ID    string `xml:"id"`
	Name  string `xml:"name"`
	Email string `xml:"email"`
}

type pomSCM struct {
	URL string `xml:"url"`
}

type pomParent struct {
	GroupID    string `xml:"groupId"`
	ArtifactID string `xml:"artifactId"`
	Version    string `xml:"version"`
}

type pomProject struct {
	GroupID      string         `xml:"groupId"`
	ArtifactID   string         `xml:"artifactId"`
	Version      string         `xml:"version"`
	Name         string         `xml:"name"`
	Description  string         `xml:"description"`
	URL          string         `xml:"url"`
	Parent       *pomParent     `xml:"parent"`
	Licenses     []pomLicense   `xml:"licenses>license"`
	Developers   []pomDeveloper `xml:"developers>developer"`
	SCM          pomSCM         `xml:"scm"`
	Dependencies []pomDependency `xml:"dependencies>dependency"`
}

func (p *pomProject) repositoryURL() string {
	if p.SCM.URL != "" {
		return normalizeGitURL(p.SCM.URL)
	}
	return ""
}

func (p *pomProject) licenseNames() string {
	names := make([]string, 0, len(p.Licenses))
	for _, l := range p.Licenses {
		if l.Name != "" {
			names = append(names, l.Name)
		}
	}
	return strings.Join(names, ",")
}

func normalizeGitURL(u string) string {
	u = strings.TrimPrefix(u, "scm:git:")
	u = strings.TrimPrefix(u, "git+")
	u = strings.TrimSuffix(u, ".git")
	return u
}

// fetchPOM fetches and parses a POM, resolving inherited fields (groupId,
// version, description, url, licenses, scm) from a <parent> chain up to
// maxParentHops levels deep.
func (r *Registry) fetchPOM(ctx context.Context, groupID, artifactID, version string, depth int) (*pomProject, error) {
	if depth > maxParentHops {
		return nil, fmt.Errorf("maven: parent POM chain exceeds %d hops", maxParentHops)
	}

	path := strings.ReplaceAll(groupID, ".", "/")
	url := fmt.Sprintf("%s/%s/%s/%s/%s-%s.pom", r.baseURL, path, artifactID, version, artifactID, version)

	body, err := r.client.GetBody(ctx, url)
	if err != nil {
		if httpErr, ok := err.(*core.HTTPError); ok && httpErr.IsNotFound() {
			return nil, &core.NotFoundError{Ecosystem: ecosystem, Name: fmt.Sprintf("%s:%s", groupID, artifactID), Version: version}
		}
		return nil, err
	}

	var pom pomProject
	if err := xml.Unmarshal(body, &pom); err != nil {
		return nil, fmt.Errorf("parsing POM: %w", err)
	}
	if pom.GroupID == "" && pom.Parent != nil {
		pom.GroupID = pom.Parent.GroupID
	}
	if pom.Version == "" && pom.Parent != nil {
		pom.Version = pom.Parent.Version
	}

	if pom.Parent != nil {
		parent, err := r.fetchPOM(ctx, pom.Parent.GroupID, pom.Parent.ArtifactID, pom.Parent.Version, depth+1)
		if err == nil {
			pom.Description = coalesce(pom.Description, parent.Description)
			pom.URL = coalesce(pom.URL, parent.URL)
			pom.Name = coalesce(pom.Name, parent.Name)
			if len(pom.Licenses) == 0 {
				pom.Licenses = parent.Licenses
			}
			if pom.SCM.URL == "" {
				pom.SCM = parent.SCM
			}
		}
	}

	return &pom, nil
}

func (r *Registry) FetchDependencies(ctx context.Context, name, version string) ([]core.Dependency, error) {
	groupID, artifactID, _ := ParseCoordinates(name)
	if groupID == "" {
		return nil, fmt.Errorf("invalid maven coordinate: %s", name)
	}

	pom, err := r.fetchPOM(ctx, groupID, artifactID, version, 0)
	if err != nil {
		return nil, err
	}

	deps := make([]core.Dependency, 0, len(pom.Dependencies))
	for _, d := range pom.Dependencies {
		scope := core.Runtime
		optional := d.Optional == "true"
		switch d.Scope {
		case "test":
			scope = core.Test
		case "provided":
			scope = core.Build
		}
		if optional {
			scope = core.Optional
		}

		deps = append(deps, core.Dependency{
			Name:         fmt.Sprintf("%s:%s", d.GroupID, d.ArtifactID),
			Requirements: d.Version,
			Scope:        scope,
			Optional:     optional,
		})
	}
	return deps, nil
}

func (r *Registry) FetchMaintainers(ctx context.Context, name string) ([]core.Maintainer, error) {
	groupID, artifactID, version := ParseCoordinates(name)
	if groupID == "" {
		return nil, fmt.Errorf("invalid maven coordinate: %s", name)
	}

	if version == "" {
		resp, err := r.search(ctx, groupID, artifactID, 1, false)
		if err != nil {
			return nil, err
		}
		if resp.Response.NumFound == 0 {
			return nil, &core.NotFoundError{Ecosystem: ecosystem, Name: name}
		}
		version = resp.Response.Docs[0].Version
	}

	pom, err := r.fetchPOM(ctx, groupID, artifactID, version, 0)
	if err != nil {
		return nil, err
	}

	maintainers := make([]core.Maintainer, 0, len(pom.Developers))
	for _, d := range pom.Developers {
		maintainers = append(maintainers, core.Maintainer{
			UUID:  d.ID,
			Login: d.ID,
			Name:  d.Name,
			Email: d.Email,
		})
	}
	return maintainers, nil
}

// maxSeedRows is Central's own page-size ceiling for solrsearch queries;
// requesting more just gets silently clamped server-side.
const maxSeedRows = 200

// FetchNameSeed retrieves a page of indexed "groupId:artifactId" coordinates
// from Central's search API, used to seed the name index at boot (spec
// §4.B). limit is clamped to maxSeedRows.
func (r *Registry) FetchNameSeed(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 || limit > maxSeedRows {
		limit = maxSeedRows
	}
	resp, err := r.search(ctx, "*", "*", limit, false)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(resp.Response.Docs))
	for _, doc := range resp.Response.Docs {
		if doc.GroupID == "" || doc.ArtifactID == "" {
			continue
		}
		names = append(names, doc.GroupID+":"+doc.ArtifactID)
	}
	return names, nil
}

func coalesce(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

type URLs struct {
	baseURL string
}

func (u *URLs) Registry(name, version string) string {
	groupID, artifactID, v := ParseCoordinates(name)
	if version != "" {
		v = version
	}
	return fmt.Sprintf("https://search.maven.org/artifact/%s/%s/%s/jar", groupID, artifactID, v)
}

func (u *URLs) Download(name, version string) string {
	groupID, artifactID, v := ParseCoordinates(name)
	if version != "" {
		v = version
	}
	if v == "" {
		return ""
	}
	path := strings.ReplaceAll(groupID, ".", "/")
	return fmt.Sprintf("%s/%s/%s/%s/%s-%s.jar", u.baseURL, path, artifactID, v, artifactID, v)
}

func (u *URLs) Documentation(name, version string) string {
	groupID, artifactID, v := ParseCoordinates(name)
	if version != "" {
		v = version
	}
	return fmt.Sprintf("https://javadoc.io/doc/%s/%s/%s", groupID, artifactID, v)
}

func (u *URLs) PURL(name, version string) string {
	groupID, artifactID, v := ParseCoordinates(name)
	if version != "" {
		v = version
	}
	if v != "" {
		return fmt.Sprintf("pkg:maven/%s/%s@%s", groupID, artifactID, v)
	}
	return fmt.Sprintf("pkg:maven/%s/%s", groupID, artifactID)
}
