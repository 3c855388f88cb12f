package ops

import (
	"net/url"
	"strings"

	"github.com/inf-mc/NoteBot-sub001/config"
)

// DomainPolicy decides which hosts an operation may touch. An empty allow
// list permits everything not explicitly denied; deny always wins.
type DomainPolicy struct {
	allow map[string]struct{}
	deny  map[string]struct{}
}

// NewDomainPolicy builds a policy from the security configuration.
func NewDomainPolicy(cfg config.SecurityConfig) *DomainPolicy {
	return &DomainPolicy{
		allow: domainSet(cfg.AllowedDomains),
		deny:  domainSet(cfg.BlockedDomains),
	}
}

func domainSet(domains []string) map[string]struct{} {
	if len(domains) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(domains))
	for _, d := range domains {
		d = strings.ToLower(strings.TrimSpace(d))
		if d != "" {
			set[d] = struct{}{}
		}
	}
	return set
}

// AllowsHost reports whether the host (or any parent domain) passes the
// policy.
func (p *DomainPolicy) AllowsHost(host string) bool {
	host = strings.ToLower(host)
	if matchDomain(p.deny, host) {
		return false
	}
	if p.allow == nil {
		return true
	}
	return matchDomain(p.allow, host)
}

// AllowsURL parses rawURL and applies AllowsHost. Unparseable URLs are
// denied.
func (p *DomainPolicy) AllowsURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return false
	}
	return p.AllowsHost(u.Hostname())
}

// matchDomain checks the host and each parent domain against the set
// (e.g. "cdn.ads.example.com" matches an "example.com" entry).
func matchDomain(set map[string]struct{}, host string) bool {
	if set == nil {
		return false
	}
	if _, ok := set[host]; ok {
		return true
	}
	for {
		idx := strings.IndexByte(host, '.')
		if idx < 0 {
			return false
		}
		host = host[idx+1:]
		if _, ok := set[host]; ok {
			return true
		}
	}
}
