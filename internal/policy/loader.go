package policy

import (
	"fmt"
	"log/slog"
	"os"

	"go.yaml.in/yaml/v3"
)

// LoadPolicy reads a policy YAML file from disk and returns the parsed Policy.
func LoadPolicy(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading policy file %s: %w", path, err)
	}

	var p Policy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parsing policy file %s: %w", path, err)
	}

	slog.Debug("loaded policy", "path", path, "version", p.Version, "rules", len(p.Rules))
	return &p, nil
}

// LoadPolicyHierarchy loads the three-level policy hierarchy from disk.
// Team and project paths may be empty to skip that level. The org level
// always starts from DefaultPolicy(), extended by whatever orgPath adds.
func LoadPolicyHierarchy(orgPath, teamPath, projectPath string) (*Policy, *Policy, *Policy, error) {
	org := DefaultPolicy()
	if orgPath != "" {
		fileOrg, err := LoadPolicy(orgPath)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("loading org policy: %w", err)
		}
		org.Rules = append(org.Rules, fileOrg.Rules...)
		if fileOrg.Version > 0 {
			org.Version = fileOrg.Version
		}
	}

	var team *Policy
	if teamPath != "" {
		var err error
		team, err = LoadPolicy(teamPath)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("loading team policy: %w", err)
		}
	}

	var project *Policy
	if projectPath != "" {
		var err error
		project, err = LoadPolicy(projectPath)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("loading project policy: %w", err)
		}
	}

	return org, team, project, nil
}
