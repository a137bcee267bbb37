// Package config loads wow-guard's nested JSON configuration tree
// (config/wow-config.json) through viper, the way the teacher's
// internal/config package loads its YAML tree: typed defaults,
// explicit env var bindings, then a struct unmarshal plus validation
// pass. Grounded on the teacher's internal/config/config.go.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"os/user"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// ResolveHomeDir returns the home directory of the real (non-root) user.
// When running under sudo, os.UserHomeDir() returns /root, which won't
// contain the invoking user's config. This checks SUDO_USER first.
func ResolveHomeDir() (string, error) {
	if sudoUser := os.Getenv("SUDO_USER"); sudoUser != "" {
		u, err := user.Lookup(sudoUser)
		if err != nil {
			slog.Debug("SUDO_USER lookup failed, falling back", "sudo_user", sudoUser, "error", err)
		} else {
			slog.Debug("resolved home via SUDO_USER", "user", sudoUser, "home", u.HomeDir)
			return u.HomeDir, nil
		}
	}
	return os.UserHomeDir()
}

// Config is the top-level wow-guard configuration tree (spec §6).
type Config struct {
	ConfigVersion int                            `json:"config_version" mapstructure:"config_version"`
	Enforcement   EnforcementConfig              `json:"enforcement" mapstructure:"enforcement"`
	Scoring       ScoringConfig                  `json:"scoring" mapstructure:"scoring"`
	Rules         RulesConfig                    `json:"rules" mapstructure:"rules"`
	Performance   PerformanceConfig              `json:"performance" mapstructure:"performance"`
	Integrations  map[string]IntegrationConfig   `json:"integrations" mapstructure:"integrations"`
	Policy        PolicyPathsConfig              `json:"policy" mapstructure:"policy"`
	Privilege     PrivilegeConfig                `json:"privilege" mapstructure:"privilege"`
	Audit         AuditConfig                    `json:"audit" mapstructure:"audit"`
	Logging       LoggingConfig                  `json:"logging" mapstructure:"logging"`
}

// EnforcementConfig controls whether the pipeline decides at all and
// how harshly it treats non-fatal findings.
type EnforcementConfig struct {
	Enabled           bool `json:"enabled" mapstructure:"enabled"`
	StrictMode        bool `json:"strict_mode" mapstructure:"strict_mode"`
	BlockOnViolation  bool `json:"block_on_violation" mapstructure:"block_on_violation"`
}

// ScoringConfig holds the heuristic/correlator confidence thresholds.
type ScoringConfig struct {
	ThresholdWarn  int     `json:"threshold_warn" mapstructure:"threshold_warn"`
	ThresholdBlock int     `json:"threshold_block" mapstructure:"threshold_block"`
	DecayRate      float64 `json:"decay_rate" mapstructure:"decay_rate"`
}

// RulesConfig holds the built-in resource-limit ceilings.
type RulesConfig struct {
	MaxFileOperations      int    `json:"max_file_operations" mapstructure:"max_file_operations"`
	MaxBashCommands        int    `json:"max_bash_commands" mapstructure:"max_bash_commands"`
	RequireDocumentation   bool   `json:"require_documentation" mapstructure:"require_documentation"`
	CredentialPatternsPath string `json:"credential_patterns_path" mapstructure:"credential_patterns_path"`
}

// PerformanceConfig tunes pipeline shortcuts.
type PerformanceConfig struct {
	FastPathEnabled bool `json:"fast_path_enabled" mapstructure:"fast_path_enabled"`
}

// IntegrationConfig is a per-integration toggle, keyed by integration
// name under integrations.<name>.* (spec §6: "integrations.*.hooks_enabled").
type IntegrationConfig struct {
	HooksEnabled bool `json:"hooks_enabled" mapstructure:"hooks_enabled"`
}

// PolicyPathsConfig points at the policy tree and decision log on disk.
type PolicyPathsConfig struct {
	RulesDir        string `json:"rules_dir" mapstructure:"rules_dir"`
	CustomRulesPath string `json:"custom_rules_path" mapstructure:"custom_rules_path"`
	DecisionLogPath string `json:"decision_log_path" mapstructure:"decision_log_path"`
}

// PrivilegeConfig holds the privilege.* keys. They are loaded and validated,
// but internal/privilege does not read them: its Manager uses fixed
// durations (bypass 4h max / 30m idle, superadmin 20m max / 5m idle).
type PrivilegeConfig struct {
	BypassMaxDurationSecs     int  `json:"bypass_max_duration_secs" mapstructure:"bypass_max_duration_secs"`
	BypassInactivityTimeout   int  `json:"bypass_inactivity_timeout_secs" mapstructure:"bypass_inactivity_timeout_secs"`
	SuperAdminMaxDurationSecs int  `json:"superadmin_max_duration_secs" mapstructure:"superadmin_max_duration_secs"`
	SuperAdminInactivityTimeout int `json:"superadmin_inactivity_timeout_secs" mapstructure:"superadmin_inactivity_timeout_secs"`
	RequireBiometric          bool `json:"require_biometric" mapstructure:"require_biometric"`
}

// AuditConfig controls the hash-chained decision/event log.
type AuditConfig struct {
	Enabled        bool    `json:"enabled" mapstructure:"enabled"`
	LogPath        string  `json:"log_path" mapstructure:"log_path"`
	SampleRate     float64 `json:"sample_rate" mapstructure:"sample_rate"`
	MaxSizeMB      int     `json:"max_size_mb" mapstructure:"max_size_mb"`
}

// LoggingConfig holds logging preferences.
type LoggingConfig struct {
	Format string `json:"format" mapstructure:"format"` // text or json
	Level  string `json:"level" mapstructure:"level"`
}

// setDefaults registers the defaults named in spec §6, plus the ambient
// defaults the teacher always ships (logging, policy/audit paths).
func setDefaults(v *viper.Viper) {
	v.SetDefault("config_version", 1)

	v.SetDefault("enforcement.enabled", true)
	v.SetDefault("enforcement.strict_mode", false)
	v.SetDefault("enforcement.block_on_violation", false)

	v.SetDefault("scoring.threshold_warn", 50)
	v.SetDefault("scoring.threshold_block", 80)
	v.SetDefault("scoring.decay_rate", 0.95)

	v.SetDefault("rules.max_file_operations", 0)
	v.SetDefault("rules.max_bash_commands", 0)
	v.SetDefault("rules.require_documentation", true)
	v.SetDefault("rules.credential_patterns_path", "")

	v.SetDefault("performance.fast_path_enabled", true)

	v.SetDefault("integrations", map[string]any{})

	v.SetDefault("policy.rules_dir", "")
	v.SetDefault("policy.custom_rules_path", "custom-rules.conf")
	v.SetDefault("policy.decision_log_path", "")

	v.SetDefault("privilege.bypass_max_duration_secs", 14400)
	v.SetDefault("privilege.bypass_inactivity_timeout_secs", 1800)
	v.SetDefault("privilege.superadmin_max_duration_secs", 1200)
	v.SetDefault("privilege.superadmin_inactivity_timeout_secs", 300)
	v.SetDefault("privilege.require_biometric", true)

	v.SetDefault("audit.enabled", true)
	v.SetDefault("audit.log_path", "")
	v.SetDefault("audit.sample_rate", 1.0)
	v.SetDefault("audit.max_size_mb", 100)

	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.level", "info")
}

// bindEnvVars binds environment variable overrides. Viper's AutomaticEnv
// only covers top-level keys, so nested keys are bound explicitly, the
// way the teacher's bindEnvVars does for AIBOX_*.
func bindEnvVars(v *viper.Viper) {
	bindings := map[string]string{
		"config_version":                               "WOW_CONFIG_VERSION",
		"enforcement.enabled":                           "WOW_ENFORCEMENT_ENABLED",
		"enforcement.strict_mode":                       "WOW_ENFORCEMENT_STRICT_MODE",
		"enforcement.block_on_violation":                "WOW_ENFORCEMENT_BLOCK_ON_VIOLATION",
		"scoring.threshold_warn":                        "WOW_SCORING_THRESHOLD_WARN",
		"scoring.threshold_block":                       "WOW_SCORING_THRESHOLD_BLOCK",
		"scoring.decay_rate":                             "WOW_SCORING_DECAY_RATE",
		"rules.max_file_operations":                     "WOW_RULES_MAX_FILE_OPERATIONS",
		"rules.max_bash_commands":                       "WOW_RULES_MAX_BASH_COMMANDS",
		"rules.require_documentation":                   "WOW_RULES_REQUIRE_DOCUMENTATION",
		"rules.credential_patterns_path":                "WOW_RULES_CREDENTIAL_PATTERNS_PATH",
		"performance.fast_path_enabled":                 "WOW_PERFORMANCE_FAST_PATH_ENABLED",
		"policy.rules_dir":                               "WOW_POLICY_RULES_DIR",
		"policy.custom_rules_path":                        "WOW_POLICY_CUSTOM_RULES_PATH",
		"policy.decision_log_path":                        "WOW_POLICY_DECISION_LOG_PATH",
		"privilege.bypass_max_duration_secs":              "WOW_PRIVILEGE_BYPASS_MAX_DURATION_SECS",
		"privilege.bypass_inactivity_timeout_secs":        "WOW_PRIVILEGE_BYPASS_INACTIVITY_TIMEOUT_SECS",
		"privilege.superadmin_max_duration_secs":          "WOW_PRIVILEGE_SUPERADMIN_MAX_DURATION_SECS",
		"privilege.superadmin_inactivity_timeout_secs":    "WOW_PRIVILEGE_SUPERADMIN_INACTIVITY_TIMEOUT_SECS",
		"privilege.require_biometric":                     "WOW_PRIVILEGE_REQUIRE_BIOMETRIC",
		"audit.enabled":                                   "WOW_AUDIT_ENABLED",
		"audit.log_path":                                  "WOW_AUDIT_LOG_PATH",
		"audit.sample_rate":                               "WOW_AUDIT_SAMPLE_RATE",
		"audit.max_size_mb":                               "WOW_AUDIT_MAX_SIZE_MB",
		"logging.format":                                  "WOW_LOG_FORMAT",
		"logging.level":                                   "WOW_LOG_LEVEL",
	}
	for key, env := range bindings {
		_ = v.BindEnv(key, env)
	}
}

// DefaultHomeDir resolves $WOW_HOME, defaulting to ~/.claude/wow-system
// (spec §6 filesystem layout).
func DefaultHomeDir() (string, error) {
	if home := os.Getenv("WOW_HOME"); home != "" {
		return home, nil
	}
	dir, err := ResolveHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ".claude", "wow-system"), nil
}

// DefaultConfigDir returns $WOW_HOME/config.
func DefaultConfigDir() (string, error) {
	home, err := DefaultHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, "config"), nil
}

// DefaultConfigPath returns $WOW_HOME/config/wow-config.json.
func DefaultConfigPath() (string, error) {
	dir, err := DefaultConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "wow-config.json"), nil
}

// Load reads wow-guard's configuration from disk, environment, and
// defaults. If configPath is empty, it looks in $WOW_HOME/config/wow-config.json.
func Load(configPath string) (*Config, error) {
	v, err := newViper(configPath)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	result := Validate(&cfg)
	if result.HasWarnings() {
		for _, w := range result.Warnings {
			slog.Warn("config warning", "field", w.Field, "message", w.Message, "value", w.Value)
		}
	}
	if result.HasErrors() {
		return nil, fmt.Errorf("config validation failed:\n%s", result.String())
	}

	return &cfg, nil
}

func newViper(configPath string) (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)
	bindEnvVars(v)

	v.SetEnvPrefix("WOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		dir, err := DefaultConfigDir()
		if err != nil {
			slog.Warn("could not determine config directory", "error", err)
		} else {
			v.AddConfigPath(dir)
			v.SetConfigName("wow-config")
			v.SetConfigType("json")
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			if configPath != "" {
				return nil, fmt.Errorf("reading config %s: %w", configPath, err)
			}
			slog.Debug("no config file found, using defaults", "error", err)
		} else {
			slog.Debug("no config file found, using defaults")
		}
	} else {
		slog.Debug("loaded config file", "path", v.ConfigFileUsed())
	}
	return v, nil
}

// WriteDefault creates a default config file at path (or the default
// location if path is empty). It never overwrites an existing file.
func WriteDefault(path string) (string, error) {
	if path == "" {
		var err error
		path, err = DefaultConfigPath()
		if err != nil {
			return "", err
		}
	}

	if _, err := os.Stat(path); err == nil {
		return path, nil
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	content, err := GetTemplate("minimal")
	if err != nil {
		return "", fmt.Errorf("reading default template: %w", err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return "", err
	}

	return path, nil
}
