package util

import (
	"fmt"
	"io"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/harrisonrobin/touchgrass/pkg/model"
	"github.com/mattn/go-runewidth"
)

var isoDuration = regexp.MustCompile(`(\d+(?:\.\d+)?)([HMS])`)

// ParseDuration parses ISO 8601 time durations (PT1H30M) and Go durations (1h30m).
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}

	if s[0] != 'P' && s[0] != 'p' {
		d, err := time.ParseDuration(s)
		if err != nil {
			return 0, fmt.Errorf("invalid duration: %s", s)
		}
		return d, nil
	}

	// ISO 8601: P then T then the time components
	rest := strings.ToUpper(s[1:])
	if len(rest) == 0 || rest[0] != 'T' {
		return 0, fmt.Errorf("invalid ISO 8601 duration (missing T): %s", s)
	}
	rest = rest[1:]

	var total time.Duration
	for _, match := range isoDuration.FindAllStringSubmatch(rest, -1) {
		value, _ := strconv.ParseFloat(match[1], 64)
		switch match[2] {
		case "H":
			total += time.Duration(value * float64(time.Hour))
		case "M":
			total += time.Duration(value * float64(time.Minute))
		case "S":
			total += time.Duration(value * float64(time.Second))
		}
	}

	if total == 0 {
		return 0, fmt.Errorf("invalid ISO 8601 duration: %s", s)
	}
	return total, nil
}

// ParseHours reads a plain number of hours ("1.5") or a duration ("1h30m", "PT90M").
func ParseHours(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f, nil
	}
	d, err := ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid hours %q: use a number like 1.5 or a duration like 1h30m", s)
	}
	return d.Hours(), nil
}

// ResolveDate accepts YYYY-MM-DD, "today" or "yesterday"; empty means today.
func ResolveDate(arg string, now time.Time) (string, error) {
	switch strings.ToLower(strings.TrimSpace(arg)) {
	case "", "today":
		return now.Format(model.DayLayout), nil
	case "yesterday":
		return now.AddDate(0, 0, -1).Format(model.DayLayout), nil
	}
	if _, err := time.Parse(model.DayLayout, arg); err != nil {
		return "", fmt.Errorf("invalid date %q, expected YYYY-MM-DD", arg)
	}
	return arg, nil
}

// FormatHours prints hours with two decimals and the h:mm equivalent.
func FormatHours(h float64) string {
	mins := int(math.Round(h * 60))
	return fmt.Sprintf("%.2fh (%dh %02dm)", h, mins/60, mins%60)
}

// FormatDelta prints a signed hour difference.
func FormatDelta(d float64) string {
	if d >= 0 {
		return fmt.Sprintf("+%.2fh", d)
	}
	return fmt.Sprintf("%.2fh", d)
}

// FormatClock prints an elapsed duration as H:MM:SS.
func FormatClock(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	return fmt.Sprintf("%d:%02d:%02d", hours, minutes, seconds)
}

// ProgressBar draws percentage (0-100) as a bar of the given inner width.
func ProgressBar(percentage float64, width int) string {
	if width < 1 {
		width = 20
	}
	filled := int((percentage / 100) * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return "[" + strings.Repeat("█", filled) + strings.Repeat("░", width-filled) + "]"
}

// DisplayWidth is the terminal width of s, counting wide runes and emoji as two.
func DisplayWidth(s string) int {
	return runewidth.StringWidth(s)
}

func pad(s string, width int) string {
	return runewidth.FillRight(s, width)
}

// PrintTable writes aligned columns. Footers may be nil.
func PrintTable(w io.Writer, headers []string, rows [][]string, footers []string) {
	colWidths := make([]int, len(headers))
	for i, header := range headers {
		colWidths[i] = DisplayWidth(header)
	}
	for _, row := range append(append([][]string{}, rows...), footers) {
		for i, cell := range row {
			if i < len(colWidths) && DisplayWidth(cell) > colWidths[i] {
				colWidths[i] = DisplayWidth(cell)
			}
		}
	}

	line := func(cells []string) {
		parts := make([]string, len(colWidths))
		for i := range colWidths {
			cell := ""
			if i < len(cells) {
				cell = cells[i]
			}
			parts[i] = pad(cell, colWidths[i])
		}
		fmt.Fprintln(w, strings.TrimRight(strings.Join(parts, "  "), " "))
	}

	line(headers)
	for _, row := range rows {
		line(row)
	}
	if len(footers) > 0 {
		line(footers)
	}
}
