package tlsconfig

import (
	"crypto/tls"
	"testing"

	"github.com/fooooter/drain/internal/config"
)

func TestConfigureDisabledReturnsNil(t *testing.T) {
	cfg, err := Configure(&config.HTTPS{Enabled: false})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg != nil {
		t.Errorf("expected nil tls.Config when disabled")
	}
}

func TestConfigureEnabledWithoutCertOrDomainsErrors(t *testing.T) {
	_, err := Configure(&config.HTTPS{Enabled: true})
	if err == nil {
		t.Errorf("expected error when neither static cert nor managed domains are configured")
	}
}

func TestApplyCipherPolicySetsMinVersion(t *testing.T) {
	tlsCfg := &tls.Config{}
	applyCipherPolicy(tlsCfg, &config.HTTPS{MinProtocolVersion: "TLSv1.2"})
	if tlsCfg.MinVersion != tls.VersionTLS12 {
		t.Errorf("got min version %x, want TLS 1.2", tlsCfg.MinVersion)
	}
}

func TestApplyCipherPolicyIgnoresUnknownVersion(t *testing.T) {
	tlsCfg := &tls.Config{}
	applyCipherPolicy(tlsCfg, &config.HTTPS{MinProtocolVersion: "bogus"})
	if tlsCfg.MinVersion != 0 {
		t.Errorf("expected MinVersion left unset, got %x", tlsCfg.MinVersion)
	}
}
