// Package tenant maps incoming requests to tenant identifiers.
package tenant

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/c360/sitekit/errors"
)

// HeaderName carries an explicit tenant id, used by the editor frontend and
// local development.
const HeaderName = "X-Tenant-ID"

// DefaultReserved are subdomains that never name a tenant.
var DefaultReserved = []string{"www", "api", "admin", "app", "dashboard", "live-editor", "auth", "mail"}

// Config configures a Resolver.
type Config struct {
	BaseDomain    string
	Reserved      []string
	CustomDomains map[string]string
	AllowHeader   bool
}

// Resolver derives the tenant of a request from, in order, the X-Tenant-ID
// header, the custom domain table and the subdomain of the base domain.
type Resolver struct {
	baseDomain    string
	reserved      map[string]bool
	customDomains map[string]string
	allowHeader   bool
	logger        *slog.Logger
}

// NewResolver creates a resolver. A nil Reserved list uses DefaultReserved.
func NewResolver(cfg Config, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default().With("component", "tenant-resolver")
	}
	reservedList := cfg.Reserved
	if reservedList == nil {
		reservedList = DefaultReserved
	}
	reserved := make(map[string]bool, len(reservedList))
	for _, r := range reservedList {
		reserved[strings.ToLower(r)] = true
	}
	custom := make(map[string]string, len(cfg.CustomDomains))
	for host, id := range cfg.CustomDomains {
		custom[normalizeHost(host)] = id
	}
	return &Resolver{
		baseDomain:    normalizeHost(cfg.BaseDomain),
		reserved:      reserved,
		customDomains: custom,
		allowHeader:   cfg.AllowHeader,
		logger:        logger,
	}
}

// normalizeHost lower-cases host and strips a port and a trailing dot.
func normalizeHost(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return strings.TrimSuffix(host, ".")
}

// Resolve returns the tenant id of r or an error wrapping ErrTenantNotFound.
func (t *Resolver) Resolve(r *http.Request) (string, error) {
	if t.allowHeader {
		if id := strings.TrimSpace(r.Header.Get(HeaderName)); id != "" {
			return id, nil
		}
	}
	return t.ResolveHost(r.Host)
}

// ResolveHost maps a Host header value to a tenant id.
func (t *Resolver) ResolveHost(rawHost string) (string, error) {
	host := normalizeHost(rawHost)
	if host == "" {
		return "", t.notFound(rawHost, "empty host")
	}

	if id, ok := t.customDomains[host]; ok {
		return id, nil
	}
	if id, ok := t.customDomains[strings.TrimPrefix(host, "www.")]; ok {
		return id, nil
	}

	if t.baseDomain == "" || !strings.HasSuffix(host, "."+t.baseDomain) {
		return "", t.notFound(rawHost, "host outside base domain")
	}
	sub := strings.TrimSuffix(host, "."+t.baseDomain)
	sub = strings.TrimPrefix(sub, "www.")
	if sub == "" || strings.Contains(sub, ".") {
		return "", t.notFound(rawHost, "no single subdomain label")
	}
	if t.reserved[sub] {
		return "", t.notFound(rawHost, "reserved subdomain")
	}
	return sub, nil
}

func (t *Resolver) notFound(host, reason string) error {
	t.logger.Debug("Tenant not resolved", "host", host, "reason", reason)
	return errors.WrapInvalid(fmt.Errorf("%w: %s (%s)", errors.ErrTenantNotFound, host, reason),
		"TenantResolver", "Resolve", "tenant lookup")
}
