// Package tlsconfig builds the *tls.Config the Connection Driver wraps raw
// TCP connections in, grounded on original_source/src/ssl.rs. Go has no
// direct analogue of openssl::ssl::SslAcceptor, so certificate management
// is delegated to certmagic the way Caddy itself (the teacher's own domain)
// does it.
package tlsconfig

import (
	"context"
	"crypto/tls"
	"fmt"

	"github.com/caddyserver/certmagic"
	"github.com/caddyserver/zerossl"
	"github.com/fooooter/drain/internal/config"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("drain.tls")

// Configure returns a *tls.Config for cfg.HTTPS. Two modes, selected by
// config shape:
//   - static cert/key file pair: loaded once via tls.LoadX509KeyPair and
//     served from a static certmagic cache.
//   - managed domains: certmagic obtains and renews certificates via ACME,
//     using zerossl as the CA when cfg.CA == "zerossl", Let's Encrypt
//     otherwise.
func Configure(cfg *config.HTTPS) (*tls.Config, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	if cfg.CertFile != "" && cfg.KeyFile != "" {
		return configureStatic(cfg)
	}
	if len(cfg.Domains) > 0 && cfg.Email != "" {
		return configureManaged(cfg)
	}

	return nil, fmt.Errorf("tlsconfig: https enabled but neither a static cert/key pair nor domains+email were configured")
}

func configureStatic(cfg *config.HTTPS) (*tls.Config, error) {
	log.Infof("loading static TLS certificate %s", cfg.CertFile)
	pair, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("tlsconfig: loading certificate pair: %w", err)
	}

	magic := certmagic.NewDefault()
	if err := magic.CacheUnmanagedTLSCertificate(context.Background(), pair, nil); err != nil {
		return nil, fmt.Errorf("tlsconfig: caching static certificate: %w", err)
	}

	tlsCfg := magic.TLSConfig()
	applyCipherPolicy(tlsCfg, cfg)
	return tlsCfg, nil
}

func configureManaged(cfg *config.HTTPS) (*tls.Config, error) {
	log.Infof("configuring managed TLS for %v via ACME", cfg.Domains)

	magicCfg := certmagic.NewDefault()
	issuerCfg := certmagic.DefaultACME
	issuerCfg.Email = cfg.Email
	issuerCfg.Agreed = true

	if cfg.CA == "zerossl" {
		magicCfg.Issuers = []certmagic.Issuer{&zerossl.Issuer{ACMEIssuer: &issuerCfg}}
	} else {
		magicCfg.Issuers = []certmagic.Issuer{certmagic.NewACMEIssuer(magicCfg, issuerCfg)}
	}

	if err := magicCfg.ManageSync(context.Background(), cfg.Domains); err != nil {
		return nil, fmt.Errorf("tlsconfig: managing certificates for %v: %w", cfg.Domains, err)
	}

	tlsCfg := magicCfg.TLSConfig()
	applyCipherPolicy(tlsCfg, cfg)
	return tlsCfg, nil
}

func applyCipherPolicy(tlsCfg *tls.Config, cfg *config.HTTPS) {
	if v, ok := minVersions[cfg.MinProtocolVersion]; ok {
		tlsCfg.MinVersion = v
	}
}

var minVersions = map[string]uint16{
	"TLSv1.0": tls.VersionTLS10,
	"TLSv1.1": tls.VersionTLS11,
	"TLSv1.2": tls.VersionTLS12,
	"TLSv1.3": tls.VersionTLS13,
}
