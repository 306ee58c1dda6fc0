// Command ocifacade serves the OCI Distribution ecosystem's xRegistry-shaped
// HTTP surface, backed by an OCI-compliant container registry.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/xregistry/bridge/fetch"
	"github.com/xregistry/bridge/internal/cachedclient"
	"github.com/xregistry/bridge/internal/cmdutil"
	"github.com/xregistry/bridge/internal/config"
	"github.com/xregistry/bridge/internal/core"
	"github.com/xregistry/bridge/internal/facade"
	"github.com/xregistry/bridge/internal/upstream/oci"
	"github.com/xregistry/bridge/internal/xlog"
)

const defaultPort = 3400

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	var cfg config.OCIConfig
	if err := config.Load(&cfg, defaultPort); err != nil {
		return err
	}
	logger := xlog.New(cfg.Quiet)

	fetcher := fetch.NewCircuitBreakerFetcher(fetch.NewFetcher(fetch.WithUserAgent("xregistry-bridge-oci/1.0")))
	cache := cachedclient.New(fetcher, cachedclient.WithCacheDir(cmdutil.DiskCacheDir("oci")))

	adapter := oci.New(cfg.UpstreamURL, "docker.io", core.NewClient(core.WithFetcher(fetcher), core.WithTimeout(5*time.Second)), cache)
	adapter.LoadIndex(context.Background(), nil)

	bridgeBase := cfg.BaseURLOverride
	if bridgeBase == "" {
		bridgeBase = fmt.Sprintf("http://%s:%d%s", cfg.Host, cfg.Port, cfg.APIPathPrefix)
	}

	engine := facade.New(adapter, cache, facade.Config{
		BridgeBaseURL: bridgeBase,
		APIKey:        cfg.APIKey,
		Logger:        logger,
	})

	mux := http.NewServeMux()
	engine.Routes(mux, cfg.APIPathPrefix)

	return cmdutil.Serve(logger, fmt.Sprintf("%s:%d", cfg.Host, cfg.Port), mux)
}
