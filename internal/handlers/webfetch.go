package handlers

import (
	"context"
	"net"
	"net/url"
	"strings"

	"github.com/wow-system/wow-guard/internal/core"
	"github.com/wow-system/wow-guard/internal/router"
	"github.com/wow-system/wow-guard/internal/session"
)

// WebFetchHandler implements spec 4.10.8: blocks requests into private or
// loopback network space (SSRF) and non-HTTP(S) schemes, warns on URL
// shorteners, suspicious TLDs, and URL-embedded credentials.
type WebFetchHandler struct {
	Config  Config
	Session *session.State
}

var blockedSchemes = map[string]bool{
	"file": true, "ftp": true, "gopher": true, "dict": true, "ldap": true,
}

var urlShortenerHosts = map[string]bool{
	"bit.ly": true, "tinyurl.com": true, "t.co": true, "goo.gl": true,
	"ow.ly": true, "is.gd": true, "buff.ly": true,
}

var suspiciousTLDs = []string{".zip", ".review", ".top", ".xyz", ".click", ".country"}

func (h WebFetchHandler) Handle(_ context.Context, req core.ToolRequest, rules router.RuleEngine) (core.ToolRequest, router.HandlerVerdict, error) {
	trackOperation(h.Session, "WebFetch")

	raw := req.URL()

	ruleVerdict, shortCircuit := consultRules(rules, req.Tool, raw)
	if shortCircuit {
		return req, ruleVerdict, nil
	}

	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" {
		return req, router.HandlerVerdict{Blocked: true, Reason: "url could not be parsed"}, nil
	}

	scheme := strings.ToLower(parsed.Scheme)
	if blockedSchemes[scheme] {
		return req, router.HandlerVerdict{Blocked: true, Reason: "scheme is not http(s)"}, nil
	}
	if scheme != "http" && scheme != "https" {
		return req, router.HandlerVerdict{Blocked: true, Reason: "scheme is not http(s)"}, nil
	}

	hostname := strings.ToLower(parsed.Hostname())
	if hostname == "localhost" || strings.HasSuffix(hostname, ".localhost") {
		return req, router.HandlerVerdict{Blocked: true, Reason: "url targets localhost"}, nil
	}
	if ip := net.ParseIP(hostname); ip != nil && isPrivateOrLoopback(ip) {
		return req, router.HandlerVerdict{Blocked: true, Reason: "url targets a private or loopback address"}, nil
	}

	if parsed.User != nil {
		return req, h.Config.verdict(SeverityWarn, "url contains embedded credentials"), nil
	}
	if urlShortenerHosts[hostname] {
		return req, h.Config.verdict(SeverityWarn, "url uses a known shortener domain"), nil
	}
	for _, tld := range suspiciousTLDs {
		if strings.HasSuffix(hostname, tld) {
			return req, h.Config.verdict(SeverityWarn, "url uses a suspicious top-level domain"), nil
		}
	}

	return req, ruleVerdict, nil
}

// isPrivateOrLoopback reports whether ip falls in RFC1918, loopback,
// link-local, or unique-local (IPv6) address space.
func isPrivateOrLoopback(ip net.IP) bool {
	if ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() {
		return true
	}
	privateBlocks := []string{
		"10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16",
		"169.254.0.0/16", "100.64.0.0/10", "fc00::/7", "::1/128",
	}
	for _, block := range privateBlocks {
		_, cidr, err := net.ParseCIDR(block)
		if err == nil && cidr.Contains(ip) {
			return true
		}
	}
	return false
}
