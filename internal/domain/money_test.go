package domain

import (
	"encoding/json"
	"testing"
)

func TestCentsString(t *testing.T) {
	cases := []struct {
		amount Cents
		want   string
	}{
		{0, "0.00"},
		{5, "0.05"},
		{250, "2.50"},
		{25000, "250.00"},
		{-1999, "-19.99"},
	}
	for _, tc := range cases {
		if got := tc.amount.String(); got != tc.want {
			t.Errorf("Cents(%d).String() = %q, want %q", tc.amount, got, tc.want)
		}
	}
}

func TestParseCents(t *testing.T) {
	cases := []struct {
		input   string
		want    Cents
		wantErr bool
	}{
		{"250.00", 25000, false},
		{"0.05", 5, false},
		{"19.9", 1990, false},
		{"100", 10000, false},
		{"-4.50", -450, false},
		{"1.999", 0, true},
		{"abc", 0, true},
		{"", 0, true},
	}
	for _, tc := range cases {
		got, err := ParseCents(tc.input)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseCents(%q) expected error, got %d", tc.input, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseCents(%q) returned error: %v", tc.input, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseCents(%q) = %d, want %d", tc.input, got, tc.want)
		}
	}
}

func TestCentsJSONRoundTrip(t *testing.T) {
	data, err := json.Marshal(Cents(12345))
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if string(data) != `"123.45"` {
		t.Fatalf("expected \"123.45\", got %s", data)
	}

	var fromString Cents
	if err := json.Unmarshal([]byte(`"50.00"`), &fromString); err != nil {
		t.Fatalf("unmarshal string failed: %v", err)
	}
	if fromString != 5000 {
		t.Fatalf("expected 5000, got %d", fromString)
	}

	var fromNumber Cents
	if err := json.Unmarshal([]byte(`19.99`), &fromNumber); err != nil {
		t.Fatalf("unmarshal number failed: %v", err)
	}
	if fromNumber != 1999 {
		t.Fatalf("expected 1999, got %d", fromNumber)
	}
}

func TestPercentOfRoundsHalfUp(t *testing.T) {
	cases := []struct {
		amount  Cents
		percent int64
		want    Cents
	}{
		{10000, 10, 1000},
		{999, 10, 100},   // 99.9 rounds up
		{994, 10, 99},    // 99.4 rounds down
		{995, 10, 100},   // 99.5 rounds up
		{25000, 15, 3750},
		{1, 50, 1}, // 0.5 rounds up
	}
	for _, tc := range cases {
		if got := PercentOf(tc.amount, tc.percent); got != tc.want {
			t.Errorf("PercentOf(%d, %d) = %d, want %d", tc.amount, tc.percent, got, tc.want)
		}
	}
}

func TestMulQuantity(t *testing.T) {
	if got := MulQuantity(2500, 3); got != 7500 {
		t.Fatalf("MulQuantity(2500, 3) = %d, want 7500", got)
	}
	if got := MulQuantity(999, 0); got != 0 {
		t.Fatalf("MulQuantity(999, 0) = %d, want 0", got)
	}
}
