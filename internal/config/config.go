// Package config binds facade configuration from environment variables via
// struct tags, using the same caarlos0/env convention several sibling
// services in this codebase's lineage use for service configuration.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Base holds the configuration keys common to every facade (spec §6):
// Host, Port, and APIPathPrefix, all unprefixed. Each facade's own struct
// adds keys namespaced per service (XREGISTRY_<svc>_...), since several
// facades can share a process's environment, plus unprefixed upstream keys
// such as UPSTREAM_URL.
type Base struct {
	Host          string `env:"HOST" envDefault:"0.0.0.0"`
	Port          int    `env:"PORT"`
	APIPathPrefix string `env:"API_PATH_PREFIX" envDefault:""`
}

// NPMConfig configures the npm facade.
type NPMConfig struct {
	Base
	BaseURLOverride    string `env:"XREGISTRY_NPM_BASEURL" envDefault:""`
	APIKey             string `env:"XREGISTRY_NPM_API_KEY" envDefault:""`
	Quiet              bool   `env:"XREGISTRY_NPM_QUIET" envDefault:"false"`
	UpstreamURL        string `env:"UPSTREAM_URL" envDefault:"https://registry.npmjs.org"`
	ApproxPackageCount int    `env:"APPROX_PACKAGE_COUNT" envDefault:"2000000"`
}

// PyPIConfig configures the PyPI facade.
type PyPIConfig struct {
	Base
	BaseURLOverride string `env:"XREGISTRY_PYPI_BASEURL" envDefault:""`
	APIKey          string `env:"XREGISTRY_PYPI_API_KEY" envDefault:""`
	Quiet           bool   `env:"XREGISTRY_PYPI_QUIET" envDefault:"false"`
	UpstreamURL     string `env:"UPSTREAM_URL" envDefault:"https://pypi.org"`
}

// MavenConfig configures the Maven Central facade.
type MavenConfig struct {
	Base
	BaseURLOverride string `env:"XREGISTRY_MAVEN_BASEURL" envDefault:""`
	APIKey          string `env:"XREGISTRY_MAVEN_API_KEY" envDefault:""`
	Quiet           bool   `env:"XREGISTRY_MAVEN_QUIET" envDefault:"false"`
	UpstreamURL     string `env:"UPSTREAM_URL" envDefault:"https://repo1.maven.org/maven2"`
	SearchURL       string `env:"SEARCH_URL" envDefault:"https://search.maven.org"`
}

// OCIConfig configures the OCI distribution facade.
type OCIConfig struct {
	Base
	BaseURLOverride string `env:"XREGISTRY_OCI_BASEURL" envDefault:""`
	APIKey          string `env:"XREGISTRY_OCI_API_KEY" envDefault:""`
	Quiet           bool   `env:"XREGISTRY_OCI_QUIET" envDefault:"false"`
	UpstreamURL     string `env:"UPSTREAM_URL" envDefault:"https://registry-1.docker.io"`
}

// MCPConfig configures the MCP registry-listing facade.
type MCPConfig struct {
	Base
	BaseURLOverride string `env:"XREGISTRY_MCP_BASEURL" envDefault:""`
	APIKey          string `env:"XREGISTRY_MCP_API_KEY" envDefault:""`
	Quiet           bool   `env:"XREGISTRY_MCP_QUIET" envDefault:"false"`
	UpstreamURL     string `env:"UPSTREAM_URL" envDefault:"https://registry.modelcontextprotocol.io"`
}

// BridgeConfig configures the front router (cmd/bridge). Each XREGISTRY_BRIDGE_*_URL
// points at a running facade's base URL; a group type with no URL configured
// is simply not exposed at the bridge's root.
type BridgeConfig struct {
	Base
	NPMURL   string `env:"XREGISTRY_BRIDGE_NPM_URL" envDefault:"http://127.0.0.1:3000"`
	PyPIURL  string `env:"XREGISTRY_BRIDGE_PYPI_URL" envDefault:"http://127.0.0.1:3100"`
	MavenURL string `env:"XREGISTRY_BRIDGE_MAVEN_URL" envDefault:"http://127.0.0.1:3300"`
	OCIURL   string `env:"XREGISTRY_BRIDGE_OCI_URL" envDefault:"http://127.0.0.1:3400"`
	MCPURL   string `env:"XREGISTRY_BRIDGE_MCP_URL" envDefault:"http://127.0.0.1:3600"`
	Quiet    bool   `env:"XREGISTRY_BRIDGE_QUIET" envDefault:"false"`
}

// Load parses environment variables into target and applies the facade's
// default port (spec §6: 3000/3100/3300/3400/3600) when PORT is unset.
func Load(target any, defaultPort int) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parsing config: %w", err)
	}
	base := baseOf(target)
	if base.Port == 0 {
		base.Port = defaultPort
	}
	return nil
}

func baseOf(target any) *Base {
	switch c := target.(type) {
	case *NPMConfig:
		return &c.Base
	case *PyPIConfig:
		return &c.Base
	case *MavenConfig:
		return &c.Base
	case *OCIConfig:
		return &c.Base
	case *MCPConfig:
		return &c.Base
	case *BridgeConfig:
		return &c.Base
	default:
		panic(fmt.Sprintf("config: unsupported type %T", target))
	}
}
