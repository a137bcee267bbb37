package config

import "github.com/spf13/viper"

// Store wraps a loaded Config with the dotted-key, typed-accessor
// surface used by the policy engine and rule DSL, where a lookup key
// is only known at runtime (e.g. "integrations.claude-code.hooks_enabled").
// Backed directly by viper.Get*, mirroring the teacher's own preference
// for viper accessors over hand-rolled map walking.
type Store struct {
	v   *viper.Viper
	cfg *Config
}

// LoadStore loads configuration the same way Load does, but also keeps
// the underlying viper instance around for dotted-key lookups.
func LoadStore(configPath string) (*Store, error) {
	v, err := newViper(configPath)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if result := Validate(&cfg); result.HasErrors() {
		return nil, errConfigInvalid(result)
	}
	return &Store{v: v, cfg: &cfg}, nil
}

func errConfigInvalid(r *ValidationResult) error {
	return &invalidConfigError{result: r}
}

type invalidConfigError struct{ result *ValidationResult }

func (e *invalidConfigError) Error() string {
	return "config validation failed:\n" + e.result.String()
}

// Config returns the typed struct backing this store.
func (s *Store) Config() *Config { return s.cfg }

// GetBool returns the boolean at the dotted key, or viper's default
// (false) if unset.
func (s *Store) GetBool(key string) bool { return s.v.GetBool(key) }

// GetInt returns the integer at the dotted key.
func (s *Store) GetInt(key string) int { return s.v.GetInt(key) }

// GetFloat returns the float64 at the dotted key.
func (s *Store) GetFloat(key string) float64 { return s.v.GetFloat64(key) }

// GetString returns the string at the dotted key.
func (s *Store) GetString(key string) string { return s.v.GetString(key) }

// GetArray returns the string slice at the dotted key.
func (s *Store) GetArray(key string) []string { return s.v.GetStringSlice(key) }

// IsSet reports whether key has an explicit value (set in file, env,
// or flag) as opposed to only a registered default.
func (s *Store) IsSet(key string) bool { return s.v.IsSet(key) }
