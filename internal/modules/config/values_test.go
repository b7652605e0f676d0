package config

import "testing"

func TestValuesTypedGetters(t *testing.T) {
	v := Values{
		"f_native": 0.02,
		"f_int":    3,
		"f_str":    "1.5",
		"i_float":  5.0,
		"s":        "ma_trend",
		"b_str":    "true",
		"b":        false,
	}

	if got := v.Float("f_native", 0); got != 0.02 {
		t.Errorf("Float = %f", got)
	}
	if got := v.Float("f_int", 0); got != 3 {
		t.Errorf("Float from int = %f", got)
	}
	if got := v.Float("f_str", 0); got != 1.5 {
		t.Errorf("Float from string = %f", got)
	}
	if got := v.Float("missing", 0.07); got != 0.07 {
		t.Errorf("Float default = %f", got)
	}
	if got := v.Int("i_float", 0); got != 5 {
		t.Errorf("Int from float = %d", got)
	}
	if got := v.String("s", ""); got != "ma_trend" {
		t.Errorf("String = %q", got)
	}
	if !v.Bool("b_str", false) {
		t.Error("Bool from string")
	}
	if v.Bool("b", true) {
		t.Error("explicit false must win over default")
	}
}

func TestValuesRequire(t *testing.T) {
	v := Values{"ma_short": 5}
	if err := v.Require("ma_short"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := v.Require("ma_short", "ma_long", "timeframe"); err == nil {
		t.Fatal("missing keys must fail")
	}
}

func TestValuesMergeOverrides(t *testing.T) {
	common := Values{"risk_pct": 0.03, "timeframe": "5"}
	section := Values{"risk_pct": 0.05}

	out := common.Merge(section)
	if got := out.Float("risk_pct", 0); got != 0.05 {
		t.Errorf("section must override common, got %f", got)
	}
	if got := out.String("timeframe", ""); got != "5" {
		t.Errorf("common key lost in merge: %q", got)
	}
	if got := common.Float("risk_pct", 0); got != 0.03 {
		t.Error("merge must not mutate the receiver")
	}
}
