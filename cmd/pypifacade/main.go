// Command pypifacade serves the PyPI ecosystem's xRegistry-shaped HTTP
// surface, backed by pypi.org.
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
	"github.com/xregistry/bridge/internal/upstream/pypi"
	"github.com/xregistry/bridge/internal/xlog"
)

const defaultPort = 3100

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	var cfg config.PyPIConfig
	if err := config.Load(&cfg, defaultPort); err != nil {
		return err
	}
	logger := xlog.New(cfg.Quiet)

	fetcher := fetch.NewCircuitBreakerFetcher(fetch.NewFetcher(fetch.WithUserAgent("xregistry-bridge-pypi/1.0")))
	cache := cachedclient.New(fetcher, cachedclient.WithCacheDir(cmdutil.DiskCacheDir("pypi")))

	adapter := pypi.New(cfg.UpstreamURL, "pypi.org", core.NewClient(core.WithFetcher(fetcher), core.WithTimeout(5*time.Second)), cache)
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
