package whatsapp

import (
	"net/url"
	"strings"
)

// OriginPolicy is the allow-list applied to cross-window messages.
type OriginPolicy struct {
	// Own is the dashboard origin, e.g. "https://app.example.com".
	Own string
	// Trusted are third-party domains; subdomains match too.
	Trusted []string
}

// Allowed reports whether a message posted from origin may be processed.
func (p OriginPolicy) Allowed(origin string) bool {
	origin = strings.TrimSpace(origin)
	if origin == "" {
		return false
	}
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}

	if own := strings.TrimRight(strings.TrimSpace(p.Own), "/"); own != "" {
		if strings.EqualFold(strings.TrimRight(origin, "/"), own) {
			return true
		}
	}

	// third parties only over https
	if !strings.EqualFold(u.Scheme, "https") {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, d := range p.Trusted {
		d = strings.ToLower(strings.TrimSpace(d))
		if d == "" {
			continue
		}
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}
