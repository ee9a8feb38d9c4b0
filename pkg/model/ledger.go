package model

import (
	"sort"
	"time"
)

// DayLayout is the calendar-day key format used throughout the ledger.
const DayLayout = "2006-01-02"

// Ledger maps a calendar day ("YYYY-MM-DD") to the total hours recorded for it.
type Ledger map[string]float64

// Clone returns a copy that can be mutated without touching the receiver.
func (l Ledger) Clone() Ledger {
	out := make(Ledger, len(l))
	for date, hours := range l {
		out[date] = hours
	}
	return out
}

// Dates returns the ledger keys in ascending order.
func (l Ledger) Dates() []string {
	dates := make([]string, 0, len(l))
	for date := range l {
		dates = append(dates, date)
	}
	sort.Strings(dates)
	return dates
}

// Total sums every entry.
func (l Ledger) Total() float64 {
	var total float64
	for _, hours := range l {
		total += hours
	}
	return total
}

// Identity is the signed-in user as reported by the identity provider.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
}

// DisplayName prefers the user's name and falls back to the email.
func (i Identity) DisplayName() string {
	if i.Name != "" {
		return i.Name
	}
	if i.Email != "" {
		return i.Email
	}
	return i.ID
}

// Snapshot is the per-identity remote copy of the ledger.
type Snapshot struct {
	TimeEntries Ledger `json:"timeEntries"`
	LastUpdated string `json:"lastUpdated"`
}

// NewSnapshot stamps a ledger copy with the given time.
func NewSnapshot(l Ledger, at time.Time) Snapshot {
	entries := l.Clone()
	return Snapshot{
		TimeEntries: entries,
		LastUpdated: at.UTC().Format(time.RFC3339Nano),
	}
}
