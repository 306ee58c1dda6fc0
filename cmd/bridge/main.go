// Command bridge is the front router clients actually talk to: it dispatches
// each request by group type to the facade backing that ecosystem and
// aggregates their static model/capabilities documents at its own root.
package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/xregistry/bridge/internal/bridge"
	"github.com/xregistry/bridge/internal/cmdutil"
	"github.com/xregistry/bridge/internal/config"
	"github.com/xregistry/bridge/internal/upstream/maven"
	"github.com/xregistry/bridge/internal/upstream/mcp"
	"github.com/xregistry/bridge/internal/upstream/npm"
	"github.com/xregistry/bridge/internal/upstream/oci"
	"github.com/xregistry/bridge/internal/upstream/pypi"
	"github.com/xregistry/bridge/internal/xlog"
)

const defaultPort = 8080

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	var cfg config.BridgeConfig
	if err := config.Load(&cfg, defaultPort); err != nil {
		return err
	}
	logger := xlog.New(cfg.Quiet)

	routes := map[string]string{
		"noderegistries":      cfg.NPMURL,
		"pythonregistries":    cfg.PyPIURL,
		"javaregistries":      cfg.MavenURL,
		"containerregistries": cfg.OCIURL,
		"mcpregistries":       cfg.MCPURL,
	}

	br := bridge.New(bridge.Config{
		Routes:        routes,
		APIPathPrefix: cfg.APIPathPrefix,
		ModelDoc: bridge.MergeModels([][]byte{
			npm.Model(), pypi.Model(), maven.Model(), oci.Model(), mcp.Model(),
		}),
		CapabilitiesDoc: bridge.MergeCapabilities([][]byte{
			npm.Capabilities(), pypi.Capabilities(), maven.Capabilities(), oci.Capabilities(), mcp.Capabilities(),
		}),
		Logger: logger,
	})

	mux := http.NewServeMux()
	mux.Handle("/", br.Handler())

	return cmdutil.Serve(logger, fmt.Sprintf("%s:%d", cfg.Host, cfg.Port), mux)
}
