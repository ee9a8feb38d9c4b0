package milestone

import (
	"fmt"
	"math"

	"github.com/harrisonrobin/touchgrass/pkg/stats"
)

type Kind string

const (
	KindWeekly  Kind = "week"
	KindMonthly Kind = "month"
	KindHundred Kind = "hundred"
	KindYearly  Kind = "year"
)

// Event is a milestone that just fired.
type Event struct {
	ID      string
	Kind    Kind
	Icon    string
	Title   string
	Message string
	Hours   float64
	// Celebrate asks the presentation layer for the big celebration (confetti).
	Celebrate bool
}

// Evaluator checks aggregate totals against the milestone thresholds.
type Evaluator struct {
	record *Record
}

func NewEvaluator(record *Record) *Evaluator {
	return &Evaluator{record: record}
}

func (e *Evaluator) Record() *Record {
	return e.record
}

// Evaluate fires every milestone whose threshold s has reached and which has not fired before.
// Fired ids are persisted before returning; a persistence error still returns the events.
func (e *Evaluator) Evaluate(s stats.Stats) ([]Event, error) {
	if len(s.Date) < len("2006-01-02") {
		return nil, fmt.Errorf("milestone: stats have no reference date")
	}
	var events []Event
	fire := func(ev Event) {
		if e.record.Mark(ev.ID) {
			events = append(events, ev)
		}
	}

	month := s.Date[:7]
	year := s.Date[:4]

	if s.Week.Met() {
		fire(Event{
			ID:      WeeklyID(s.WeekKey),
			Kind:    KindWeekly,
			Icon:    "🎉",
			Title:   "Weekly Goal Achieved!",
			Message: fmt.Sprintf("Amazing! You've spent %.2f hours outside this week!", s.Week.Hours),
			Hours:   s.Week.Hours,
		})
	}

	if s.Month.Met() {
		fire(Event{
			ID:      MonthlyID(month),
			Kind:    KindMonthly,
			Icon:    "🌟",
			Title:   "Monthly Goal Crushed!",
			Message: fmt.Sprintf("Incredible! You've reached %.2f hours this month!", s.Month.Hours),
			Hours:   s.Month.Hours,
		})
	}

	// Only the highest multiple reached is checked; multiples jumped over in one mutation are not back-filled.
	if mark := HundredMark(s.Year.Hours); mark > 0 {
		remaining := s.Year.Goal - s.Year.Hours
		fire(Event{
			ID:      HundredID(mark),
			Kind:    KindHundred,
			Icon:    "🏆",
			Title:   fmt.Sprintf("%d Hours Milestone!", mark),
			Message: fmt.Sprintf("You're on fire! %.0f hours to go until your yearly goal!", remaining),
			Hours:   s.Year.Hours,
		})
	}

	if s.Year.Met() {
		fire(Event{
			ID:        YearlyID(year),
			Kind:      KindYearly,
			Icon:      "👑",
			Title:     "YEARLY GOAL ACHIEVED!",
			Message:   fmt.Sprintf("LEGENDARY! You've spent %.2f hours outside this year! You're a nature champion!", s.Year.Hours),
			Hours:     s.Year.Hours,
			Celebrate: true,
		})
	}

	if err := e.record.Save(); err != nil {
		return events, err
	}
	return events, nil
}

// HundredMark is floor(hours/100)*100.
func HundredMark(hours float64) int {
	return int(math.Floor(hours/100)) * 100
}

func WeeklyID(weekKey string) string { return "week_" + weekKey }

func MonthlyID(month string) string { return "month_" + month }

func HundredID(mark int) string { return fmt.Sprintf("hundred_%d", mark) }

func YearlyID(year string) string { return "year_" + year }
