package config

import "testing"

func TestLoadAppliesDefaultPort(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("XREGISTRY_NPM_BASEURL", "")

	var cfg NPMConfig
	if err := Load(&cfg, 3000); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Port != 3000 {
		t.Errorf("Port = %d, want 3000", cfg.Port)
	}
	if cfg.Host != "0.0.0.0" {
		t.Errorf("Host = %q, want 0.0.0.0", cfg.Host)
	}
	if cfg.UpstreamURL != "https://registry.npmjs.org" {
		t.Errorf("UpstreamURL = %q, want default npm registry", cfg.UpstreamURL)
	}
}

func TestLoadHonorsExplicitPort(t *testing.T) {
	t.Setenv("PORT", "9999")

	var cfg PyPIConfig
	if err := Load(&cfg, 3100); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Port != 9999 {
		t.Errorf("Port = %d, want 9999", cfg.Port)
	}
}

func TestLoadBindsNamespacedKeys(t *testing.T) {
	t.Setenv("XREGISTRY_MAVEN_API_KEY", "secret")
	t.Setenv("XREGISTRY_MAVEN_QUIET", "true")

	var cfg MavenConfig
	if err := Load(&cfg, 3300); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.APIKey != "secret" {
		t.Errorf("APIKey = %q, want secret", cfg.APIKey)
	}
	if !cfg.Quiet {
		t.Error("Quiet = false, want true")
	}
}

func TestLoadBridgeConfigDefaultsRoutes(t *testing.T) {
	t.Setenv("PORT", "")

	var cfg BridgeConfig
	if err := Load(&cfg, 8080); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
	if cfg.NPMURL != "http://127.0.0.1:3000" {
		t.Errorf("NPMURL = %q, want default npm facade URL", cfg.NPMURL)
	}
	if cfg.MCPURL != "http://127.0.0.1:3600" {
		t.Errorf("MCPURL = %q, want default mcp facade URL", cfg.MCPURL)
	}
}
