// Package stats computes today/week/month/year totals from a ledger.
//
// Week numbering is a simplified day-count formula anchored on January 1st:
//
//	weekNumber = ceil((daysSinceJan1 + weekdayOfJan1 + 1) / 7)
//
// with Sunday as weekday 0. It is not ISO-8601; weeks roll over on Sundays and
// the first week of a year may be short. Stored milestone ids depend on it, so
// it must not be swapped for ISO week numbers.
package stats

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/harrisonrobin/touchgrass/pkg/model"
)

const (
	DefaultDailyGoal  = 2.75
	DefaultYearlyGoal = 1000.0
)

// Goals are the per-day and per-year targets; week and month goals derive from the daily one.
type Goals struct {
	Daily  float64
	Yearly float64
}

func DefaultGoals() Goals {
	return Goals{Daily: DefaultDailyGoal, Yearly: DefaultYearlyGoal}
}

func (g Goals) Weekly() float64 {
	return g.Daily * 7
}

// Monthly scales the daily goal by the number of days in ref's month.
func (g Goals) Monthly(ref time.Time) float64 {
	return g.Daily * float64(DaysInMonth(ref.Year(), ref.Month()))
}

// Progress is one total measured against its goal.
type Progress struct {
	Hours float64
	Goal  float64
}

// Delta is the signed difference actual - goal.
func (p Progress) Delta() float64 {
	return p.Hours - p.Goal
}

// Percent is capped at 100.
func (p Progress) Percent() float64 {
	if p.Goal <= 0 {
		if p.Hours > 0 {
			return 100
		}
		return 0
	}
	return math.Min(p.Hours/p.Goal*100, 100)
}

func (p Progress) OverGoal() bool {
	return p.Hours > p.Goal
}

func (p Progress) Met() bool {
	return p.Hours >= p.Goal
}

// Stats are the totals for a reference day.
type Stats struct {
	Date    string
	WeekKey string
	Today   Progress
	Week    Progress
	Month   Progress
	Year    Progress
}

// Aggregate computes the totals for ref from the ledger. Dates that do not parse are ignored for the week total.
func Aggregate(l model.Ledger, ref time.Time, goals Goals) Stats {
	day := DayKey(ref)
	monthPrefix := day[:7]
	yearPrefix := day[:4]
	weekKey := WeekKey(ref)

	var week, month, year float64
	for date, hours := range l {
		if strings.HasPrefix(date, yearPrefix) {
			year += hours
		}
		if strings.HasPrefix(date, monthPrefix) {
			month += hours
		}
		if t, err := ParseDay(date); err == nil && WeekKey(t) == weekKey {
			week += hours
		}
	}

	return Stats{
		Date:    day,
		WeekKey: weekKey,
		Today:   Progress{Hours: l[day], Goal: goals.Daily},
		Week:    Progress{Hours: week, Goal: goals.Weekly()},
		Month:   Progress{Hours: month, Goal: goals.Monthly(ref)},
		Year:    Progress{Hours: year, Goal: goals.Yearly},
	}
}

// WeekKey returns "{year}_{weekNumber}" for the calendar day of t.
func WeekKey(t time.Time) string {
	year := t.Year()
	jan1 := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	day := time.Date(year, t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	pastDays := int(day.Sub(jan1).Hours() / 24)
	n := pastDays + int(jan1.Weekday()) + 1
	week := (n + 6) / 7
	return fmt.Sprintf("%d_%d", year, week)
}

// DayKey formats t's calendar day as YYYY-MM-DD.
func DayKey(t time.Time) string {
	return t.Format(model.DayLayout)
}

// MonthKey formats t as YYYY-MM.
func MonthKey(t time.Time) string {
	return t.Format("2006-01")
}

// ParseDay parses a YYYY-MM-DD key in the local zone.
func ParseDay(s string) (time.Time, error) {
	return time.ParseInLocation(model.DayLayout, s, time.Local)
}

func DaysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
