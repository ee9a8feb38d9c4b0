// Package calendar builds the month heat-map of the ledger.
package calendar

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/harrisonrobin/touchgrass/pkg/model"
	"github.com/harrisonrobin/touchgrass/pkg/stats"
)

// Class buckets a day by how much was recorded.
type Class string

const (
	ClassNone    Class = "none"
	ClassHasData Class = "has-data"
	ClassGoalMet Class = "goal-met"
)

// Classify a day's hours against the daily goal.
func Classify(hours, dailyGoal float64) Class {
	switch {
	case hours >= dailyGoal && hours > 0:
		return ClassGoalMet
	case hours > 0:
		return ClassHasData
	default:
		return ClassNone
	}
}

type Cell struct {
	Day   int
	Date  string
	Hours float64
	Class Class
	Today bool
}

// Month is a Sunday-first grid of one month.
type Month struct {
	Year  int
	Month time.Month
	// Leading is the number of blank cells before the 1st.
	Leading int
	Days    []Cell
	Total   float64
}

// Build lays out year/month from the ledger. today marks the matching cell, if any.
func Build(l model.Ledger, year int, month time.Month, today time.Time, dailyGoal float64) Month {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.Local)
	n := stats.DaysInMonth(year, month)
	todayKey := stats.DayKey(today)

	m := Month{
		Year:    first.Year(),
		Month:   first.Month(),
		Leading: int(first.Weekday()),
		Days:    make([]Cell, 0, n),
	}
	for d := 1; d <= n; d++ {
		date := stats.DayKey(time.Date(year, month, d, 0, 0, 0, 0, time.Local))
		hours := l[date]
		m.Total += hours
		m.Days = append(m.Days, Cell{
			Day:   d,
			Date:  date,
			Hours: hours,
			Class: Classify(hours, dailyGoal),
			Today: date == todayKey,
		})
	}
	return m
}

// Prev returns the year and month before m.
func (m Month) Prev() (int, time.Month) {
	t := time.Date(m.Year, m.Month-1, 1, 0, 0, 0, 0, time.UTC)
	return t.Year(), t.Month()
}

// Next returns the year and month after m.
func (m Month) Next() (int, time.Month) {
	t := time.Date(m.Year, m.Month+1, 1, 0, 0, 0, 0, time.UTC)
	return t.Year(), t.Month()
}

// Weeks groups the cells into rows of seven; nil entries are blanks.
func (m Month) Weeks() [][]*Cell {
	var weeks [][]*Cell
	row := make([]*Cell, 0, 7)
	for i := 0; i < m.Leading; i++ {
		row = append(row, nil)
	}
	for i := range m.Days {
		row = append(row, &m.Days[i])
		if len(row) == 7 {
			weeks = append(weeks, row)
			row = make([]*Cell, 0, 7)
		}
	}
	if len(row) > 0 {
		for len(row) < 7 {
			row = append(row, nil)
		}
		weeks = append(weeks, row)
	}
	return weeks
}

const (
	cellWidth = 5
	gridWidth = 7*cellWidth + 6
)

var weekdays = [7]string{"Su", "Mo", "Tu", "We", "Th", "Fr", "Sa"}

var marks = map[Class]string{
	ClassNone:    " ",
	ClassHasData: "+",
	ClassGoalMet: "*",
}

// Render prints the grid. Each day shows its number and a mark: '+' has data,
// '*' goal met. Today is bracketed.
func Render(w io.Writer, m Month) error {
	var b strings.Builder
	title := fmt.Sprintf("%s %d", m.Month, m.Year)
	fmt.Fprintf(&b, "%*s\n", (gridWidth+len(title))/2, title)
	for i, name := range weekdays {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, " %s  ", name)
	}
	b.WriteString("\n")

	for _, week := range m.Weeks() {
		for i, c := range week {
			if i > 0 {
				b.WriteByte(' ')
			}
			if c == nil {
				b.WriteString("     ")
				continue
			}
			left, right := " ", " "
			if c.Today {
				left, right = "[", "]"
			}
			fmt.Fprintf(&b, "%s%2d%s%s", left, c.Day, marks[c.Class], right)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "\n  + some time   * goal met   total %.2fh\n", m.Total)

	_, err := io.WriteString(w, b.String())
	return err
}

// ParseMonth parses a YYYY-MM argument.
func ParseMonth(s string) (int, time.Month, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid month %q, expected YYYY-MM", s)
	}
	return t.Year(), t.Month(), nil
}
