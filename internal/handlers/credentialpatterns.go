package handlers

import (
	"fmt"
	"os"
	"regexp"

	"go.yaml.in/yaml/v3"
)

// CredentialPattern is one entry in the credential-pattern catalogue Write
// and heuristic scanning consult. The catalogue itself is an opaque,
// configurable pattern table (spec's framing); the set below is
// representative rather than exhaustive.
type CredentialPattern struct {
	Name    string `yaml:"name"`
	Pattern string `yaml:"pattern"`
	compiled *regexp.Regexp
}

// credentialPatternFile is the on-disk shape a custom catalogue loads from.
type credentialPatternFile struct {
	Patterns []CredentialPattern `yaml:"patterns"`
}

// DefaultCredentialPatterns returns the built-in representative catalogue.
func DefaultCredentialPatterns() []CredentialPattern {
	patterns := []CredentialPattern{
		{Name: "pem_private_key", Pattern: `-----BEGIN (RSA |EC |OPENSSH |DSA )?PRIVATE KEY-----`},
		{Name: "aws_secret_access_key", Pattern: `(?i)aws_secret_access_key\s*=`},
		{Name: "generic_api_key", Pattern: `(?i)api[_-]?key\s*[:=]\s*['"][A-Za-z0-9_\-]{16,}['"]`},
		{Name: "github_token", Pattern: `ghp_[A-Za-z0-9]{30,}`},
		{Name: "inline_password_assignment", Pattern: `(?i)password\s*=\s*['"][^'"]{4,}['"]`},
	}
	for i := range patterns {
		patterns[i].compiled = regexp.MustCompile(patterns[i].Pattern)
	}
	return patterns
}

// LoadCredentialPatterns reads a catalogue override from path, compiling
// every entry's pattern. An empty path returns the default catalogue.
func LoadCredentialPatterns(path string) ([]CredentialPattern, error) {
	if path == "" {
		return DefaultCredentialPatterns(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading credential pattern catalogue %s: %w", path, err)
	}
	var f credentialPatternFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing credential pattern catalogue %s: %w", path, err)
	}
	for i := range f.Patterns {
		compiled, err := regexp.Compile(f.Patterns[i].Pattern)
		if err != nil {
			return nil, fmt.Errorf("catalogue entry %q: invalid pattern: %w", f.Patterns[i].Name, err)
		}
		f.Patterns[i].compiled = compiled
	}
	return f.Patterns, nil
}

// MatchAny reports the name of the first pattern in patterns that matches
// content, or "" if none match.
func MatchAny(patterns []CredentialPattern, content string) string {
	for _, p := range patterns {
		if p.compiled != nil && p.compiled.MatchString(content) {
			return p.Name
		}
	}
	return ""
}
