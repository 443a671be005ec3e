package config

import (
	"strings"
	"testing"

	"github.com/nonanon1/klipper/pkg/errors"
)

const sampleConfig = `
[printer]
kinematics: corexy

[stepper_x]
position_max: 250

# a comment line
[input_shaper stepper_x]
shaper_type: zvd
spring_period_x: 0.025  # inline comment
damping_ratio_x: 0.1

[smooth_axis]
smooth_x = 0.08
smooth_y = 0.06

#*# [autosaved]
#*# spring_period_x = 0.021
`

func TestLoadStringSections(t *testing.T) {
	cfg, err := LoadString(sampleConfig)
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"printer", "stepper_x", "input_shaper stepper_x", "smooth_axis", "autosaved"} {
		if !cfg.HasSection(name) {
			t.Errorf("missing section %q", name)
		}
	}
	sec, err := cfg.GetSection("input_shaper stepper_x")
	if err != nil {
		t.Fatal(err)
	}
	v, err := sec.GetFloat("spring_period_x")
	if err != nil {
		t.Fatal(err)
	}
	if v != 0.025 {
		t.Errorf("spring_period_x = %v, want 0.025 (inline comment not stripped?)", v)
	}
}

func TestSaveConfigPrefixParsed(t *testing.T) {
	cfg, err := LoadString(sampleConfig)
	if err != nil {
		t.Fatal(err)
	}
	sec, err := cfg.GetSection("autosaved")
	if err != nil {
		t.Fatal(err)
	}
	v, err := sec.GetFloat("spring_period_x")
	if err != nil {
		t.Fatal(err)
	}
	if v != 0.021 {
		t.Errorf("autosaved spring_period_x = %v, want 0.021", v)
	}
}

func TestFloatBounds(t *testing.T) {
	cfg, err := LoadString("[smooth_axis]\ndamping_ratio_x: 1.5\n")
	if err != nil {
		t.Fatal(err)
	}
	sec, _ := cfg.GetSection("smooth_axis")
	_, err = sec.GetFloatWithBounds("damping_ratio_x",
		FloatBounds{MinVal: Float(0), MaxVal: Float(1)}, 0.)
	if err == nil {
		t.Fatal("damping_ratio_x=1.5 should violate the max bound")
	}
	if !errors.Is(err, errors.ErrConfigValidation) {
		t.Errorf("expected config validation error, got %v", err)
	}

	// A default for a missing option does not hit the bounds check path.
	v, err := sec.GetFloatWithBounds("damping_ratio_y",
		FloatBounds{MinVal: Float(0), MaxVal: Float(1)}, 0.2)
	if err != nil || v != 0.2 {
		t.Errorf("fallback = %v, %v; want 0.2, nil", v, err)
	}
}

func TestGetChoice(t *testing.T) {
	cfg, err := LoadString("[input_shaper stepper_y]\nshaper_type: EI\n")
	if err != nil {
		t.Fatal(err)
	}
	sec, _ := cfg.GetSection("input_shaper stepper_y")
	v, err := sec.GetChoice("shaper_type", []string{"zv", "zvd", "ei"}, "zvd")
	if err != nil {
		t.Fatal(err)
	}
	if v != "ei" {
		t.Errorf("choice = %q, want canonical %q", v, "ei")
	}
	if _, err := sec.GetChoice("shaper_type", []string{"zv", "zvd"}, "zvd"); err == nil {
		t.Error("ei should be rejected when not in the choice set")
	}
}

func TestUnusedOptionReport(t *testing.T) {
	cfg, err := LoadString("[smooth_axis]\nsmooth_x: 0.1\nbogus_option: 7\n")
	if err != nil {
		t.Fatal(err)
	}
	sec, _ := cfg.GetSection("smooth_axis")
	if _, err := sec.GetFloat("smooth_x"); err != nil {
		t.Fatal(err)
	}
	err = cfg.CheckUnusedOptions()
	if err == nil || !strings.Contains(err.Error(), "bogus_option") {
		t.Errorf("expected unused option report naming bogus_option, got %v", err)
	}
}

func TestRegistryPrefixMatch(t *testing.T) {
	reg := NewRegistry()
	var loadedNames []string
	factory := func(sec *Section) (Module, error) {
		loadedNames = append(loadedNames, sec.GetName())
		return stubModule(sec.GetName()), nil
	}
	reg.RegisterPrefix("input_shaper", factory)
	reg.Register("smooth_axis", factory)

	cfg, err := LoadString(sampleConfig)
	if err != nil {
		t.Fatal(err)
	}
	modules, err := reg.LoadModules(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := modules["input_shaper stepper_x"]; !ok {
		t.Error("prefix factory should match 'input_shaper stepper_x'")
	}
	if _, ok := modules["smooth_axis"]; !ok {
		t.Error("exact factory should match 'smooth_axis'")
	}
	if _, ok := modules["stepper_x"]; ok {
		t.Error("no factory registered for 'stepper_x'")
	}
	if reg.GetModule("smooth_axis") == nil {
		t.Error("loaded module should be retrievable by name")
	}
	_ = loadedNames
}

type stubModule string

func (m stubModule) GetName() string { return string(m) }
