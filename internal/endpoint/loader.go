// Package endpoint implements drain's dynamically-loaded in-process
// endpoint handlers using the stdlib plugin package as the Go analogue of
// libloading::Library, grounded on original_source/src/endpoints.rs.
package endpoint

import (
	"fmt"
	"plugin"
	"strings"
	"sync"

	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("drain.endpoint")

// Loader opens the configured plugin file once and looks up endpoint
// symbols by normalized name on demand.
type Loader struct {
	mu     sync.RWMutex
	plugin *plugin.Plugin
	cache  map[string]plugin.Symbol
}

// Open loads path as a Go plugin. A failure to open is non-fatal to the
// caller — it mirrors ENDPOINT_LIBRARY's "proceed without it" behavior —
// the returned Loader is nil and dynamic endpoints are simply unavailable
// for the process lifetime.
func Open(path string) (*Loader, error) {
	if path == "" {
		log.Info("no endpoints_library configured, dynamic endpoints disabled")
		return nil, nil
	}

	log.Infof("opening endpoint library %s", path)
	p, err := plugin.Open(path)
	if err != nil {
		log.Warningf("opening endpoint library %s: %v; proceeding without dynamic endpoints", path, err)
		return nil, err
	}

	log.Info("endpoint library loaded")
	return &Loader{plugin: p, cache: make(map[string]plugin.Symbol)}, nil
}

// NormalizeSymbol adapts spec.md's "/","\\" -> "::" rule to a valid Go
// plugin export name ("::" is not a legal Go identifier component);
// see DESIGN.md Open Question OQ-1.
func NormalizeSymbol(endpoint string) string {
	r := strings.NewReplacer("/", "_", "\\", "_")
	return r.Replace(endpoint)
}

// ErrNoSuchEndpoint is returned when the plugin doesn't export the
// requested symbol — the Go equivalent of libloading's DlSym miss, which
// the dispatcher treats as fall-through to the next resource resolution
// step rather than a fatal error.
type ErrNoSuchEndpoint struct{ Symbol string }

func (e *ErrNoSuchEndpoint) Error() string {
	return fmt.Sprintf("endpoint library has no symbol %q", e.Symbol)
}

// Lookup resolves endpoint to its exported plugin.Symbol, caching the
// result.
func (l *Loader) Lookup(endpoint string) (plugin.Symbol, error) {
	symbolName := NormalizeSymbol(endpoint)

	l.mu.RLock()
	if sym, ok := l.cache[symbolName]; ok {
		l.mu.RUnlock()
		return sym, nil
	}
	l.mu.RUnlock()

	sym, err := l.plugin.Lookup(symbolName)
	if err != nil {
		return nil, &ErrNoSuchEndpoint{Symbol: symbolName}
	}

	l.mu.Lock()
	l.cache[symbolName] = sym
	l.mu.Unlock()

	return sym, nil
}
