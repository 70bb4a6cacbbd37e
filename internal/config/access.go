package config

import (
	"fmt"

	"github.com/ryanuber/go-glob"
)

// IsAccessAllowed reports whether resource (relative to DocumentRoot, no
// leading slash) passes every configured access-control rule. Grounded on
// config.rs's AccessControl::is_access_allowed, but matches patterns
// directly against the resource path with go-glob instead of expanding a
// filesystem glob and comparing results, since the patterns in
// access_control.list are resource-path patterns, not filesystem paths that
// necessarily exist on disk.
func (a *AccessControl) IsAccessAllowed(resource string) bool {
	for pattern, verb := range a.List {
		if glob.Glob(pattern, resource) && verb == "deny" {
			return false
		}
	}
	return true
}

// DenyActionStatus returns the status code (404 or 403) to answer with when
// access is denied.
func (a *AccessControl) DenyActionStatus() int { return int(a.DenyAction) }

func (c *Config) String() string {
	return fmt.Sprintf("Config{bind=%s:%s document_root=%s}", c.BindHost, c.BindPort, c.DocumentRoot)
}
