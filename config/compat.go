package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/epochengine/epoch/vm"
)

// Profile holds empirically-derived behavior overrides: trigger
// resolution policies, per-map trigger tuning, and the timing scale.
// Each entry records an observed behavior of the shipped game, so the
// assumptions stay data rather than code.
type Profile struct {
	table     vm.PolicyTable
	waitScale float64
	overrides map[string]map[uint16]vm.Policy
}

// profileFile is the YAML shape.
type profileFile struct {
	Policies  map[string]string `yaml:"policies"`
	WaitScale float64           `yaml:"wait-scale"`
	Maps      []struct {
		Map      string            `yaml:"map"`
		Triggers map[uint16]string `yaml:"triggers"`
	} `yaml:"maps"`
}

// DefaultProfile is the stock behavior: no overrides, unscaled waits.
func DefaultProfile() *Profile {
	return &Profile{
		table:     vm.DefaultPolicies(),
		waitScale: 1,
		overrides: map[string]map[uint16]vm.Policy{},
	}
}

// LoadProfile reads a compat profile; the empty path yields the stock
// profile.
func LoadProfile(path string) (*Profile, error) {
	p := DefaultProfile()
	if path == "" {
		return p, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	var f profileFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	for kind, policy := range f.Policies {
		k, err := parseTriggerKind(kind)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		pol, err := parsePolicy(policy)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		p.table[k] = pol
	}
	if f.WaitScale != 0 {
		if f.WaitScale < 0.1 || f.WaitScale > 10 {
			return nil, fmt.Errorf("%s: wait-scale %v out of range", path, f.WaitScale)
		}
		p.waitScale = f.WaitScale
	}
	for _, m := range f.Maps {
		if m.Map == "" {
			return nil, fmt.Errorf("%s: map override without a map path", path)
		}
		ov := make(map[uint16]vm.Policy, len(m.Triggers))
		for id, policy := range m.Triggers {
			pol, err := parsePolicy(policy)
			if err != nil {
				return nil, fmt.Errorf("%s: map %s: %w", path, m.Map, err)
			}
			ov[id] = pol
		}
		p.overrides[m.Map] = ov
	}
	return p, nil
}

func parseTriggerKind(s string) (vm.TriggerKind, error) {
	switch s {
	case "startup":
		return vm.TriggerStartup, nil
	case "activate":
		return vm.TriggerActivate, nil
	case "touch":
		return vm.TriggerTouch, nil
	}
	return 0, fmt.Errorf("unknown trigger kind %q", s)
}

func parsePolicy(s string) (vm.Policy, error) {
	switch s {
	case "default":
		return vm.PolicyDefault, nil
	case "queue":
		return vm.PolicyQueue, nil
	case "drop":
		return vm.PolicyDrop, nil
	}
	return 0, fmt.Errorf("unknown policy %q", s)
}

// PolicyTable is the trigger resolution table with overrides applied.
func (p *Profile) PolicyTable() vm.PolicyTable { return p.table }

// TriggerPolicy reports a per-map override for one script entry.
func (p *Profile) TriggerPolicy(mapPath string, entry uint16) (vm.Policy, bool) {
	ov, ok := p.overrides[mapPath]
	if !ok {
		return vm.PolicyDefault, false
	}
	pol, ok := ov[entry]
	return pol, ok
}

// WaitScale is the timing multiplier; regional releases ran the clock
// at different rates.
func (p *Profile) WaitScale() float64 { return p.waitScale }

// EffectiveHz applies the timing scale to the configured tick rate.
func (p *Profile) EffectiveHz(base int) int {
	hz := int(float64(base)*p.waitScale + 0.5)
	if hz < 1 {
		hz = 1
	}
	return hz
}
