package units

import (
	"math/big"
	"testing"
)

func TestFormat(t *testing.T) {
	cases := []struct {
		value    *big.Int
		decimals uint8
		want     string
	}{
		{big.NewInt(0), 18, "0.0"},
		{big.NewInt(100000000), 8, "1.0"},
		{big.NewInt(150000000), 8, "1.5"},
		{big.NewInt(1), 8, "0.00000001"},
		{big.NewInt(-2250), 3, "-2.25"},
		{big.NewInt(7), 0, "7.0"},
		{nil, 18, "0.0"},
	}
	for _, tc := range cases {
		if got := Format(tc.value, tc.decimals); got != tc.want {
			t.Fatalf("Format(%v, %d) = %s, want %s", tc.value, tc.decimals, got, tc.want)
		}
	}
}

func TestParse(t *testing.T) {
	cases := []struct {
		text     string
		decimals uint8
		want     string
	}{
		{"1", 18, "1000000000000000000"},
		{"1.5", 8, "150000000"},
		{"0.00000001", 8, "1"},
		{".25", 2, "25"},
		{"3.", 2, "300"},
		{"1.500", 1, "15"},
		{"-2.25", 3, "-2250"},
		{"123456789012345678901.5", 18, "123456789012345678901500000000000000000"},
		{"0", 0, "0"},
	}
	for _, tc := range cases {
		got, err := Parse(tc.text, tc.decimals)
		if err != nil {
			t.Fatalf("Parse(%q): %v", tc.text, err)
		}
		if got.String() != tc.want {
			t.Fatalf("Parse(%q, %d) = %s, want %s", tc.text, tc.decimals, got, tc.want)
		}
	}
}

func TestParseRejects(t *testing.T) {
	for _, text := range []string{"", "abc", "1.2.3", "0.000000001", "1e5", "-", "12345678901234567890.123456789"} {
		if _, err := Parse(text, 8); err == nil {
			t.Fatalf("expected error for %q", text)
		}
	}
}

func TestFormatParseAgree(t *testing.T) {
	value, _ := new(big.Int).SetString("123456789012345678901", 10)
	parsed, err := Parse(Format(value, 18), 18)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed.Cmp(value) != 0 {
		t.Fatalf("mismatch: %s != %s", parsed, value)
	}
}
