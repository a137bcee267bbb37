package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// ValidTemplates lists the available config template names.
var ValidTemplates = []string{"minimal", "strict", "permissive"}

// templates holds the JSON body for each named starter config. Shipped
// as Go string constants rather than embedded files, since wow-config.json
// is the only on-disk artifact and there is no separate asset bundle to
// embed (contrast the teacher's templates/*.yaml, built for multiple
// deployment tiers of a much larger surface).
var templates = map[string]string{
	"minimal": `{
  "config_version": 1,
  "enforcement": {"enabled": true, "strict_mode": false, "block_on_violation": false},
  "scoring": {"threshold_warn": 50, "threshold_block": 80, "decay_rate": 0.95},
  "rules": {"max_file_operations": 0, "max_bash_commands": 0, "require_documentation": true},
  "performance": {"fast_path_enabled": true},
  "integrations": {},
  "logging": {"format": "text", "level": "info"}
}
`,
	"strict": `{
  "config_version": 1,
  "enforcement": {"enabled": true, "strict_mode": true, "block_on_violation": true},
  "scoring": {"threshold_warn": 30, "threshold_block": 60, "decay_rate": 0.9},
  "rules": {"max_file_operations": 200, "max_bash_commands": 50, "require_documentation": true},
  "performance": {"fast_path_enabled": true},
  "integrations": {},
  "privilege": {"require_biometric": true},
  "logging": {"format": "json", "level": "info"}
}
`,
	"permissive": `{
  "config_version": 1,
  "enforcement": {"enabled": true, "strict_mode": false, "block_on_violation": false},
  "scoring": {"threshold_warn": 70, "threshold_block": 95, "decay_rate": 0.98},
  "rules": {"max_file_operations": 0, "max_bash_commands": 0, "require_documentation": false},
  "performance": {"fast_path_enabled": true},
  "integrations": {},
  "logging": {"format": "text", "level": "warn"}
}
`,
}

// GetTemplate returns the content of a named config template.
func GetTemplate(name string) ([]byte, error) {
	data, ok := templates[name]
	if !ok {
		return nil, fmt.Errorf("unknown template %q: valid templates are minimal, strict, permissive", name)
	}
	return []byte(data), nil
}

// WriteTemplate writes a config template to path. If force is false and
// the file already exists, it returns an error.
func WriteTemplate(name, path string, force bool) error {
	data, err := GetTemplate(name)
	if err != nil {
		return err
	}

	if path == "" {
		var err error
		path, err = DefaultConfigPath()
		if err != nil {
			return fmt.Errorf("determining config path: %w", err)
		}
	}

	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file already exists at %s (use --force to overwrite)", path)
		}
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}
