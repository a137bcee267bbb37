package handlers

import (
	"context"
	"net"
	"regexp"
	"strings"

	"github.com/wow-system/wow-guard/internal/core"
	"github.com/wow-system/wow-guard/internal/router"
	"github.com/wow-system/wow-guard/internal/session"
)

// WebSearchHandler implements spec 4.10.9: blocks PII in the query, validates
// allowed_domains against the same SSRF rules WebFetch applies, and warns on
// credential-search queries and suspicious domain TLDs.
type WebSearchHandler struct {
	Config  Config
	Session *session.State
}

var (
	ssnPattern        = regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)
	creditCardPattern = regexp.MustCompile(`\b(?:\d[ -]*?){13,16}\b`)
	highEntropyKey    = regexp.MustCompile(`\b[A-Za-z0-9_\-]{32,}\b`)
	emailPassPattern  = regexp.MustCompile(`(?i)[\w.+-]+@[\w-]+\.[\w.-]+[:\s]+\S{6,}`)
	privateKeyMarker  = regexp.MustCompile(`BEGIN (RSA |EC |DSA |OPENSSH )?PRIVATE KEY`)
	credSearchQuery   = regexp.MustCompile(`(?i)\bpassword\b|\bapi[_-]?key\b|\bsecret\b|\btoken\b`)
)

func (h WebSearchHandler) Handle(_ context.Context, req core.ToolRequest, rules router.RuleEngine) (core.ToolRequest, router.HandlerVerdict, error) {
	trackOperation(h.Session, "WebSearch")

	query := req.Query()

	ruleVerdict, shortCircuit := consultRules(rules, req.Tool, query)
	if shortCircuit {
		return req, ruleVerdict, nil
	}
	for _, re := range []*regexp.Regexp{ssnPattern, creditCardPattern, highEntropyKey, emailPassPattern, privateKeyMarker} {
		if re.MatchString(query) {
			return req, router.HandlerVerdict{Blocked: true, Reason: "query contains apparent PII or secret material"}, nil
		}
	}

	for _, domain := range splitDomainList(req.AllowedDomains()) {
		if sev, reason := validateSearchDomain(domain); sev == SeverityBlock {
			return req, router.HandlerVerdict{Blocked: true, Reason: reason}, nil
		}
	}

	if credSearchQuery.MatchString(query) {
		return req, h.Config.verdict(SeverityWarn, "query targets credential-related content"), nil
	}
	for _, domain := range splitDomainList(req.AllowedDomains()) {
		for _, tld := range suspiciousTLDs {
			if strings.HasSuffix(strings.ToLower(domain), tld) {
				return req, h.Config.verdict(SeverityWarn, "allowed_domains includes a suspicious top-level domain"), nil
			}
		}
	}

	return req, ruleVerdict, nil
}

func splitDomainList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == ' ' })
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// validateSearchDomain applies WebFetch's SSRF rule to a bare domain instead
// of a full URL.
func validateSearchDomain(domain string) (Severity, string) {
	host := strings.ToLower(strings.TrimSuffix(domain, "."))
	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return SeverityBlock, "allowed_domains includes localhost"
	}
	if ip := net.ParseIP(host); ip != nil && isPrivateOrLoopback(ip) {
		return SeverityBlock, "allowed_domains includes a private or loopback address"
	}
	return SeverityNone, ""
}
