package calendar

import (
	"bytes"
	"testing"
	"time"

	"github.com/harrisonrobin/touchgrass/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	assert.Equal(t, ClassNone, Classify(0, 2.75))
	assert.Equal(t, ClassHasData, Classify(1, 2.75))
	assert.Equal(t, ClassGoalMet, Classify(2.75, 2.75))
	assert.Equal(t, ClassGoalMet, Classify(4, 2.75))
}

func TestBuildLeadingBlanks(t *testing.T) {
	tests := []struct {
		year    int
		month   time.Month
		leading int
		days    int
	}{
		{2024, time.June, 6, 30},     // starts on a Saturday
		{2024, time.February, 4, 29}, // leap year, Thursday
		{2024, time.September, 0, 30},
		{2023, time.February, 3, 28},
	}
	for _, tt := range tests {
		m := Build(model.Ledger{}, tt.year, tt.month, time.Time{}, 2.75)
		assert.Equal(t, tt.leading, m.Leading, "%d-%02d", tt.year, tt.month)
		assert.Len(t, m.Days, tt.days, "%d-%02d", tt.year, tt.month)
	}
}

func TestBuildCells(t *testing.T) {
	l := model.Ledger{
		"2024-06-01": 3.0,
		"2024-06-02": 1.0,
		"2024-07-01": 9.0,
	}
	today := time.Date(2024, 6, 2, 15, 0, 0, 0, time.Local)

	m := Build(l, 2024, time.June, today, 2.75)
	assert.Equal(t, ClassGoalMet, m.Days[0].Class)
	assert.Equal(t, ClassHasData, m.Days[1].Class)
	assert.Equal(t, ClassNone, m.Days[2].Class)
	assert.False(t, m.Days[0].Today)
	assert.True(t, m.Days[1].Today)
	assert.Equal(t, "2024-06-02", m.Days[1].Date)
	assert.Equal(t, 4.0, m.Total)
}

func TestNavigation(t *testing.T) {
	m := Build(model.Ledger{}, 2024, time.January, time.Time{}, 2.75)
	y, mo := m.Prev()
	assert.Equal(t, 2023, y)
	assert.Equal(t, time.December, mo)

	m = Build(model.Ledger{}, 2024, time.December, time.Time{}, 2.75)
	y, mo = m.Next()
	assert.Equal(t, 2025, y)
	assert.Equal(t, time.January, mo)
}

func TestWeeks(t *testing.T) {
	m := Build(model.Ledger{}, 2024, time.June, time.Time{}, 2.75)
	weeks := m.Weeks()
	require.Len(t, weeks, 6)
	for _, w := range weeks {
		assert.Len(t, w, 7)
	}
	assert.Nil(t, weeks[0][0])
	require.NotNil(t, weeks[0][6])
	assert.Equal(t, 1, weeks[0][6].Day)
	assert.Equal(t, 30, weeks[5][0].Day)
	assert.Nil(t, weeks[5][1])
}

func TestRender(t *testing.T) {
	l := model.Ledger{"2024-06-01": 3.0, "2024-06-03": 0.5}
	today := time.Date(2024, 6, 1, 9, 0, 0, 0, time.Local)

	var buf bytes.Buffer
	require.NoError(t, Render(&buf, Build(l, 2024, time.June, today, 2.75)))
	out := buf.String()

	assert.Contains(t, out, "June 2024")
	assert.Contains(t, out, " Su ")
	assert.Contains(t, out, "[ 1*]")
	assert.Contains(t, out, "  3+ ")
	assert.Contains(t, out, "total 3.50h")
}

func TestParseMonth(t *testing.T) {
	y, m, err := ParseMonth("2024-02")
	require.NoError(t, err)
	assert.Equal(t, 2024, y)
	assert.Equal(t, time.February, m)

	_, _, err = ParseMonth("2024/02")
	assert.Error(t, err)
}
