package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/epochengine/epoch/vm"
)

func writeProfile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "profile.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaultProfile(t *testing.T) {
	p, err := LoadProfile("")
	if err != nil {
		t.Fatalf("LoadProfile: %v", err)
	}
	if got, want := p.PolicyTable(), vm.DefaultPolicies(); got != want {
		t.Errorf("PolicyTable() = %v, want %v", got, want)
	}
	if p.WaitScale() != 1 {
		t.Errorf("WaitScale() = %v, want 1", p.WaitScale())
	}
	if _, ok := p.TriggerPolicy("maps/guardia.map", 3); ok {
		t.Error("unexpected override on the stock profile")
	}
}

func TestLoadProfileOverrides(t *testing.T) {
	path := writeProfile(t, `
policies:
  activate: drop
  touch: queue
wait-scale: 1.2
maps:
  - map: maps/fair.map
    triggers:
      3: queue
      7: default
`)
	p, err := LoadProfile(path)
	if err != nil {
		t.Fatalf("LoadProfile: %v", err)
	}
	table := p.PolicyTable()
	if table[vm.TriggerActivate] != vm.PolicyDrop {
		t.Errorf("activate policy = %v, want drop", table[vm.TriggerActivate])
	}
	if table[vm.TriggerTouch] != vm.PolicyQueue {
		t.Errorf("touch policy = %v, want queue", table[vm.TriggerTouch])
	}
	if table[vm.TriggerStartup] != vm.DefaultPolicies()[vm.TriggerStartup] {
		t.Errorf("startup policy = %v, want stock", table[vm.TriggerStartup])
	}
	if pol, ok := p.TriggerPolicy("maps/fair.map", 3); !ok || pol != vm.PolicyQueue {
		t.Errorf("TriggerPolicy(fair, 3) = %v, %v", pol, ok)
	}
	if pol, ok := p.TriggerPolicy("maps/fair.map", 7); !ok || pol != vm.PolicyDefault {
		t.Errorf("TriggerPolicy(fair, 7) = %v, %v", pol, ok)
	}
	if _, ok := p.TriggerPolicy("maps/fair.map", 8); ok {
		t.Error("unexpected override for an unlisted trigger")
	}
	if _, ok := p.TriggerPolicy("maps/castle.map", 3); ok {
		t.Error("unexpected override for an unlisted map")
	}
	if p.WaitScale() != 1.2 {
		t.Errorf("WaitScale() = %v, want 1.2", p.WaitScale())
	}
}

func TestEffectiveHz(t *testing.T) {
	cases := []struct {
		scale float64
		base  int
		want  int
	}{
		{1, 60, 60},
		{5.0 / 6.0, 60, 50},
		{1.2, 50, 60},
		{0.1, 1, 1},
	}
	for _, tc := range cases {
		p := DefaultProfile()
		p.waitScale = tc.scale
		if got := p.EffectiveHz(tc.base); got != tc.want {
			t.Errorf("EffectiveHz(%d) at scale %v = %d, want %d", tc.base, tc.scale, got, tc.want)
		}
	}
}

func TestLoadProfileRejectsBadInput(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"bad trigger kind", "policies:\n  warp: queue\n", "trigger kind"},
		{"bad policy", "policies:\n  touch: sometimes\n", "policy"},
		{"bad map policy", "maps:\n  - map: maps/fair.map\n    triggers:\n      3: zap\n", "policy"},
		{"missing map path", "maps:\n  - triggers:\n      3: queue\n", "map"},
		{"wait scale out of range", "wait-scale: 50\n", "wait-scale"},
		{"unparseable", "policies: [\n", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadProfile(writeProfile(t, tc.body))
			if err == nil {
				t.Fatal("expected an error")
			}
			if tc.want != "" && !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestLoadProfileMissingFile(t *testing.T) {
	if _, err := LoadProfile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}
