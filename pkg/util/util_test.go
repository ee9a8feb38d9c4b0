package util

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"PT1H", time.Hour},
		{"PT30M", 30 * time.Minute},
		{"PT1H30M", 90 * time.Minute},
		{"PT0.5H", 30 * time.Minute},
		{"1h15m", 75 * time.Minute},
		{"", 0},
	}
	for _, tt := range tests {
		got, err := ParseDuration(tt.in)
		if err != nil {
			t.Fatalf("ParseDuration(%q) failed: %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseDuration(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}

	for _, bad := range []string{"P1D", "PT", "soon"} {
		if _, err := ParseDuration(bad); err == nil {
			t.Errorf("ParseDuration(%q) expected error", bad)
		}
	}
}

func TestParseHours(t *testing.T) {
	tests := map[string]float64{
		"1.5":    1.5,
		"2":      2,
		"1h30m":  1.5,
		"PT45M":  0.75,
		" 0.25 ": 0.25,
	}
	for in, want := range tests {
		got, err := ParseHours(in)
		if err != nil {
			t.Fatalf("ParseHours(%q) failed: %v", in, err)
		}
		if got != want {
			t.Errorf("ParseHours(%q) = %v, want %v", in, got, want)
		}
	}
	if _, err := ParseHours("lots"); err == nil {
		t.Error("expected error for non-numeric hours")
	}
}

func TestResolveDate(t *testing.T) {
	now := time.Date(2024, 3, 1, 8, 0, 0, 0, time.Local)
	tests := map[string]string{
		"":           "2024-03-01",
		"today":      "2024-03-01",
		"yesterday":  "2024-02-29",
		"2023-12-31": "2023-12-31",
	}
	for in, want := range tests {
		got, err := ResolveDate(in, now)
		if err != nil {
			t.Fatalf("ResolveDate(%q) failed: %v", in, err)
		}
		if got != want {
			t.Errorf("ResolveDate(%q) = %s, want %s", in, got, want)
		}
	}
	if _, err := ResolveDate("03/01/2024", now); err == nil {
		t.Error("expected error for malformed date")
	}
}

func TestFormatting(t *testing.T) {
	if got := FormatHours(2.75); got != "2.75h (2h 45m)" {
		t.Errorf("FormatHours = %q", got)
	}
	if got := FormatDelta(0.25); got != "+0.25h" {
		t.Errorf("FormatDelta(+) = %q", got)
	}
	if got := FormatDelta(-1.5); got != "-1.50h" {
		t.Errorf("FormatDelta(-) = %q", got)
	}
	if got := FormatClock(3*time.Hour + 4*time.Minute + 5*time.Second); got != "3:04:05" {
		t.Errorf("FormatClock = %q", got)
	}
}

func TestProgressBar(t *testing.T) {
	if got := ProgressBar(50, 10); got != "[█████░░░░░]" {
		t.Errorf("ProgressBar(50) = %q", got)
	}
	if got := ProgressBar(150, 4); got != "[████]" {
		t.Errorf("ProgressBar(150) = %q", got)
	}
	if got := ProgressBar(-5, 4); got != "[░░░░]" {
		t.Errorf("ProgressBar(-5) = %q", got)
	}
}

func TestPrintTable(t *testing.T) {
	var buf bytes.Buffer
	PrintTable(&buf,
		[]string{"Date", "Hours"},
		[][]string{{"2024-06-01", "3.00"}, {"2024-06-02", "0.50"}},
		[]string{"Total", "3.50"},
	)

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected 4 lines, got %d: %q", len(lines), buf.String())
	}
	if lines[0] != "Date        Hours" {
		t.Errorf("header = %q", lines[0])
	}
	if lines[3] != "Total       3.50" {
		t.Errorf("footer = %q", lines[3])
	}
}

func TestDisplayWidth(t *testing.T) {
	if got := DisplayWidth("abc"); got != 3 {
		t.Errorf("DisplayWidth(abc) = %d", got)
	}
	if got := DisplayWidth("日本"); got != 4 {
		t.Errorf("DisplayWidth(日本) = %d", got)
	}
}
