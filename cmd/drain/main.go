// Command drain is the HTTP/1.1 origin server's entrypoint: load
// configuration, open the endpoint library, wire the CGI bridge and TLS
// context, and drive connections until interrupted.
//
// Grounded on the teacher's cmd/caddy-ls/main.go flag-and-dispatch shape.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fooooter/drain/internal/cgi"
	"github.com/fooooter/drain/internal/config"
	"github.com/fooooter/drain/internal/connserver"
	"github.com/fooooter/drain/internal/dispatch"
	"github.com/fooooter/drain/internal/endpoint"
	"github.com/fooooter/drain/internal/etag"
	"github.com/fooooter/drain/internal/metrics"
	"github.com/fooooter/drain/internal/tlsconfig"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"
)

var appVersion = "dev"

func main() {
	var showVersion bool
	flag.BoolVar(&showVersion, "version", false, "print version and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("drain %s\n", appVersion)
		os.Exit(0)
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "drain: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	configureLogging(cfg)
	log := commonlog.GetLogger("drain")
	log.Infof("starting %s", cfg)

	if cfg.Chroot {
		if err := syscall.Chroot(cfg.DocumentRoot); err != nil {
			log.Warningf("chroot to %q failed: %v; continuing without it", cfg.DocumentRoot, err)
		} else {
			cfg.ChrootActive = true
			log.Infof("chroot enabled")
		}
	}

	endpointsPath := filepath.Join(cfg.ServerRoot, cfg.EndpointsLibrary)
	ep, err := endpoint.Open(endpointsPath)
	if err != nil {
		log.Warningf("endpoint library %q could not be loaded: %v", endpointsPath, err)
	}

	var cgiBridge *cgi.Bridge
	if cfg.CGI != nil {
		cgiBridge = cgi.New(cfg)
	}

	tlsCfg, err := tlsconfig.Configure(&cfg.HTTPS)
	if err != nil {
		return fmt.Errorf("configuring tls: %w", err)
	}

	etags := etag.New(cfg.ETagCacheSize)
	collectors := metrics.New()

	d := dispatch.New(cfg, ep, cgiBridge, etags, collectors)
	srv := connserver.New(cfg, d, tlsCfg, collectors)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	return srv.Run(ctx)
}

func configureLogging(cfg *config.Config) {
	verbosity := 3
	switch cfg.Verbosity {
	case "debug":
		verbosity = 5
	case "info":
		verbosity = 4
	case "warning", "warn":
		verbosity = 2
	case "error":
		verbosity = 1
	}
	if cfg.BeVerbose {
		verbosity = 5
	}
	commonlog.Configure(verbosity, nil)
}
