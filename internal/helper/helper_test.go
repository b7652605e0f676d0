package helper

import "testing"

func TestNormSymbol(t *testing.T) {
	tests := []struct{ in, want string }{
		{"5930", "005930"},
		{"005930", "005930"},
		{" 660 ", "000660"},
		{"A12345", "A12345"},
	}
	for _, tt := range tests {
		if got := NormSymbol(tt.in); got != tt.want {
			t.Errorf("NormSymbol(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestKRXTickSize(t *testing.T) {
	tests := []struct {
		price float64
		want  float64
	}{
		{1500, 1},
		{2000, 5},
		{4990, 5},
		{19990, 10},
		{50000, 100},
		{199900, 100},
		{499500, 500},
		{700000, 1000},
	}
	for _, tt := range tests {
		if got := KRXTickSize(tt.price); got != tt.want {
			t.Errorf("KRXTickSize(%.0f) = %.0f, want %.0f", tt.price, got, tt.want)
		}
	}
}

func TestRoundToTick(t *testing.T) {
	if got := RoundDownToTick(70123, 100); got != 70100 {
		t.Errorf("RoundDownToTick = %f, want 70100", got)
	}
	if got := RoundUpToTick(70123, 100); got != 70200 {
		t.Errorf("RoundUpToTick = %f, want 70200", got)
	}
	if got := RoundDownToTick(70100, 100); got != 70100 {
		t.Errorf("exact price must not move, got %f", got)
	}
}

func TestBarTimeBefore(t *testing.T) {
	if !BarTimeBefore("085959", "090000") {
		t.Error("085959 must be before 090000")
	}
	if BarTimeBefore("090000", "090000") {
		t.Error("equal time is not before")
	}
	// кривой формат не должен блокировать бар
	if BarTimeBefore("9:00", "090000") {
		t.Error("malformed time must not block")
	}
}

func TestNormTF(t *testing.T) {
	tests := []struct{ in, want string }{
		{"D", "1d"},
		{"day", "1d"},
		{"", "1m"},
		{"5", "5m"},
		{"15m", "15m"},
	}
	for _, tt := range tests {
		if got := NormTF(tt.in); got != tt.want {
			t.Errorf("NormTF(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
