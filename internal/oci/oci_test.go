package oci

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/xregistry/bridge/internal/core"
)

func TestFetchPackage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]interface{}{
			"name": "library/alpine",
			"tags": []string{"3.18", "3.19", "latest"},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	reg := New(server.URL, core.DefaultClient())
	pkg, err := reg.FetchPackage(context.Background(), "library/alpine")
	if err != nil {
		t.Fatalf("FetchPackage failed: %v", err)
	}

	if pkg.Name != "library/alpine" {
		t.Errorf("expected name 'library/alpine', got %q", pkg.Name)
	}
	if pkg.LatestVersion != "latest" {
		t.Errorf("expected latest tag to win, got %q", pkg.LatestVersion)
	}
	if pkg.Namespace != "library" {
		t.Errorf("expected namespace 'library', got %q", pkg.Namespace)
	}
}

func TestFetchPackageNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	reg := New(server.URL, core.DefaultClient())
	_, err := reg.FetchPackage(context.Background(), "nope")
	if _, ok := err.(*core.NotFoundError); !ok {
		t.Fatalf("expected *core.NotFoundError, got %T (%v)", err, err)
	}
}

func TestFetchVersions(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v2/alpine/tags/list", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"name": "alpine",
			"tags": []string{"3.18", "3.19"},
		})
	})
	mux.HandleFunc("/v2/alpine/manifests/3.18", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"schemaVersion": 2,
			"mediaType":     "application/vnd.oci.image.manifest.v1+json",
			"config": map[string]interface{}{
				"mediaType": "application/vnd.oci.image.config.v1+json",
				"digest":    "sha256:e5d0b1de6f0e0ea4be0b31d211d99a04f3e75a83a5f2a223cbeddc98cfabe37",
				"size":      1234,
			},
			"layers": []map[string]interface{}{
				{"mediaType": "application/vnd.oci.image.layer.v1.tar+gzip", "digest": "sha256:aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", "size": 5},
			},
			"annotations": map[string]string{
				"org.opencontainers.image.created": "2024-05-01T00:00:00Z",
			},
		})
	})
	mux.HandleFunc("/v2/alpine/manifests/3.19", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"schemaVersion": 2,
			"config": map[string]interface{}{
				"mediaType": "application/vnd.oci.image.config.v1+json",
				"digest":    "sha256:bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb",
				"size":      4321,
			},
		})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	reg := New(server.URL, core.DefaultClient())
	versions, err := reg.FetchVersions(context.Background(), "alpine")
	if err != nil {
		t.Fatalf("FetchVersions failed: %v", err)
	}
	if len(versions) != 2 {
		t.Fatalf("expected 2 versions, got %d", len(versions))
	}
	if versions[0].Number != "3.18" {
		t.Errorf("expected first version '3.18', got %q", versions[0].Number)
	}
	if versions[0].PublishedAt.IsZero() {
		t.Errorf("expected PublishedAt to be parsed from annotations")
	}
	if versions[0].Integrity == "" {
		t.Errorf("expected config digest to populate Integrity")
	}
}

func TestPickLatestTag(t *testing.T) {
	if got := pickLatestTag([]string{"1.0", "2.0", "latest"}); got != "latest" {
		t.Errorf("expected 'latest', got %q", got)
	}
	if got := pickLatestTag([]string{"1.0", "2.0"}); got != "2.0" {
		t.Errorf("expected lexicographically greatest tag '2.0', got %q", got)
	}
}

func TestURLBuilder(t *testing.T) {
	reg := New("https://registry-1.docker.io", nil)
	urls := reg.URLs()

	if got, want := urls.PURL("library/alpine", "3.19"), "pkg:oci/library/alpine@3.19"; got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
	if got, want := urls.Download("library/alpine", "3.19"), "https://registry-1.docker.io/v2/library/alpine/manifests/3.19"; got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}
