// Package auth validates caller credentials and resolves tenant identity
// and allowed capabilities.
package auth

import (
	"context"
	"log"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/formloom/gateway/internal/apierr"
	"github.com/formloom/gateway/internal/models"
	"gorm.io/gorm"
)

// Identity is the resolved caller: tenant, capability tier, and the key row
// it came from.
type Identity struct {
	TenantID       string
	Scope          string
	AllowedDomains []string
	APIKeyID       string
	RawKey         string
}

// keyPattern matches recognized key shapes: sk_live_/pk_live_ plus
// tenant-namespaced variants like sk_acme_....
var keyPattern = regexp.MustCompile(`^(sk|pk)_[a-z0-9]+_[A-Za-z0-9]+$`)

// ExtractKey pulls the raw API key from headers. Precedence:
// X-Publishable-Key, then X-Secret-Key, then Authorization: Bearer.
func ExtractKey(h http.Header) string {
	if k := h.Get("X-Publishable-Key"); k != "" {
		return k
	}
	if k := h.Get("X-Secret-Key"); k != "" {
		return k
	}
	authz := h.Get("Authorization")
	if strings.HasPrefix(authz, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authz, "Bearer "))
	}
	return ""
}

// Resolver looks up key records and bumps usage counters.
type Resolver struct {
	db *gorm.DB
}

// NewResolver creates a Resolver backed by the given store.
func NewResolver(db *gorm.DB) *Resolver {
	return &Resolver{db: db}
}

// Resolve authenticates the request headers and returns the caller identity.
// On success it bumps the key's usage counters in the background; a counter
// failure never fails the request.
func (r *Resolver) Resolve(ctx context.Context, h http.Header) (*Identity, error) {
	raw := ExtractKey(h)
	if raw == "" {
		return nil, apierr.Auth("missing API key")
	}
	if !keyPattern.MatchString(raw) {
		return nil, apierr.Auth("unrecognized API key format")
	}

	var key models.ApiKey
	err := r.db.WithContext(ctx).Where("`key` = ?", raw).First(&key).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apierr.Auth("invalid API key")
		}
		return nil, apierr.Internal("key lookup failed")
	}
	if !key.IsActive {
		return nil, apierr.Auth("API key is deactivated")
	}

	go r.bumpCounters(key.ID)

	domains, err := models.DecodeDomains(key.AllowedDomains)
	if err != nil {
		log.Printf("auth: key %s has malformed allowed_domains: %v", key.ID, err)
	}

	return &Identity{
		TenantID:       key.TenantID,
		Scope:          key.Scope,
		AllowedDomains: domains,
		APIKeyID:       key.ID,
		RawKey:         raw,
	}, nil
}

// bumpCounters records approximate usage. Lost updates under race are
// acceptable; this is metering, not billing.
func (r *Resolver) bumpCounters(keyID string) {
	now := time.Now()
	err := r.db.Model(&models.ApiKey{}).Where("id = ?", keyID).Updates(map[string]interface{}{
		"last_used_at":     now,
		"request_count":    gorm.Expr("request_count + 1"),
		"monthly_requests": gorm.Expr("monthly_requests + 1"),
	}).Error
	if err != nil {
		log.Printf("auth: bump counters for key %s: %v", keyID, err)
	}
}

// CheckOrigin enforces the publishable-key domain policy: an Origin header
// is mandatory and its hostname must match one of the key's allowed domains.
// Secret keys pass unconditionally.
func CheckOrigin(id *Identity, origin string) error {
	if id.Scope != models.ScopePublishable {
		return nil
	}
	if origin == "" {
		return apierr.Forbidden("Origin header is required for publishable keys")
	}
	host := originHost(origin)
	if host == "" {
		return apierr.Forbidden("malformed Origin header")
	}
	if !MatchDomain(host, id.AllowedDomains) {
		return apierr.Forbidden("origin not allowed for this key")
	}
	return nil
}

// RequireSecret gates administrative operations to secret-scoped keys.
func RequireSecret(id *Identity) error {
	if id.Scope != models.ScopeSecret {
		return apierr.Forbidden("this operation requires a secret key")
	}
	return nil
}

// MatchDomain reports whether hostname matches any pattern. Patterns: exact
// string match; "*" matches anything; "*.suffix" matches the bare suffix or
// any subdomain of it.
func MatchDomain(hostname string, patterns []string) bool {
	hostname = strings.ToLower(hostname)
	for _, p := range patterns {
		p = strings.ToLower(strings.TrimSpace(p))
		switch {
		case p == "*":
			return true
		case strings.HasPrefix(p, "*."):
			suffix := p[2:]
			if hostname == suffix || strings.HasSuffix(hostname, "."+suffix) {
				return true
			}
		case hostname == p:
			return true
		}
	}
	return false
}

// originHost extracts the hostname from an Origin header value.
func originHost(origin string) string {
	s := origin
	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
	}
	if i := strings.IndexByte(s, '/'); i >= 0 {
		s = s[:i]
	}
	if i := strings.IndexByte(s, ':'); i >= 0 {
		s = s[:i]
	}
	return strings.ToLower(s)
}
