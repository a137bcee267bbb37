package config

import (
	"fmt"

	"github.com/go-viper/mapstructure/v2"
)

// Merge composes base and overlay into one Config, the way spec §4.2
// describes: last-writer-wins on leaf keys. Nested sections (enforcement,
// scoring, integrations, ...) merge field by field rather than overlay
// replacing a whole section wholesale, so setting only
// "integrations.claude-code.hooks_enabled" in overlay doesn't blank out
// every other integration base already configured.
func Merge(base, overlay *Config) (*Config, error) {
	baseMap, err := toMap(base)
	if err != nil {
		return nil, fmt.Errorf("encoding base config: %w", err)
	}
	overlayMap, err := toMap(overlay)
	if err != nil {
		return nil, fmt.Errorf("encoding overlay config: %w", err)
	}

	var merged Config
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName: "mapstructure",
		Result:  &merged,
	})
	if err != nil {
		return nil, fmt.Errorf("building config decoder: %w", err)
	}
	if err := dec.Decode(mergeLeaves(baseMap, overlayMap)); err != nil {
		return nil, fmt.Errorf("decoding merged config: %w", err)
	}
	return &merged, nil
}

// MergeFiles loads basePath and overlayPath as independent configs and
// merges the second over the first. Used to layer a site-wide config
// under a per-project override, the same relationship
// [[policy.MergePolicies]] applies to org/team/project policy tiers, but
// without that function's tighten-only restriction: any leaf may be
// loosened or tightened, last writer wins.
func MergeFiles(basePath, overlayPath string) (*Config, error) {
	base, err := Load(basePath)
	if err != nil {
		return nil, fmt.Errorf("loading base config %s: %w", basePath, err)
	}
	overlay, err := Load(overlayPath)
	if err != nil {
		return nil, fmt.Errorf("loading overlay config %s: %w", overlayPath, err)
	}
	return Merge(base, overlay)
}

func toMap(cfg *Config) (map[string]interface{}, error) {
	var m map[string]interface{}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName: "mapstructure",
		Result:  &m,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(cfg); err != nil {
		return nil, err
	}
	// mapstructure leaves the integrations map typed; turn each entry into a
	// plain map so mergeLeaves recurses into it integration by integration.
	if integ, ok := m["integrations"].(map[string]IntegrationConfig); ok {
		im := make(map[string]interface{}, len(integ))
		for name, ic := range integ {
			im[name] = map[string]interface{}{"hooks_enabled": ic.HooksEnabled}
		}
		m["integrations"] = im
	}
	return m, nil
}

// mergeLeaves returns base with overlay's keys written over it, recursing
// into nested maps so a leaf value is what gets replaced, not an entire
// subtree.
func mergeLeaves(base, overlay map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(base))
	for k, v := range base {
		out[k] = v
	}
	for k, ov := range overlay {
		if bv, exists := out[k]; exists {
			bm, bok := bv.(map[string]interface{})
			om, ook := ov.(map[string]interface{})
			if bok && ook {
				out[k] = mergeLeaves(bm, om)
				continue
			}
		}
		out[k] = ov
	}
	return out
}
