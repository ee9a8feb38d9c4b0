package milestone

import (
	"testing"

	"github.com/harrisonrobin/touchgrass/pkg/kv"
	"github.com/harrisonrobin/touchgrass/pkg/model"
	"github.com/harrisonrobin/touchgrass/pkg/stats"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func aggregate(t *testing.T, l model.Ledger, ref string) stats.Stats {
	t.Helper()
	d, err := stats.ParseDay(ref)
	require.NoError(t, err)
	return stats.Aggregate(l, d, stats.DefaultGoals())
}

func ids(events []Event) []string {
	out := make([]string, 0, len(events))
	for _, ev := range events {
		out = append(out, ev.ID)
	}
	return out
}

func TestWeeklyAndMonthly(t *testing.T) {
	mem := kv.NewMemoryStore()
	e := NewEvaluator(LoadRecord(mem, nil))

	// 2024-02 has 29 days: monthly goal 79.75, weekly goal 19.25.
	l := model.Ledger{"2024-02-04": 10, "2024-02-05": 10}
	events, err := e.Evaluate(aggregate(t, l, "2024-02-05"))
	require.NoError(t, err)
	assert.Equal(t, []string{"week_2024_6"}, ids(events))
	assert.Equal(t, KindWeekly, events[0].Kind)
	assert.Contains(t, events[0].Message, "20.00 hours")

	l["2024-02-10"] = 60
	events, err = e.Evaluate(aggregate(t, l, "2024-02-10"))
	require.NoError(t, err)
	assert.Equal(t, []string{"month_2024-02"}, ids(events))
}

func TestFiresOnlyOnce(t *testing.T) {
	mem := kv.NewMemoryStore()
	e := NewEvaluator(LoadRecord(mem, nil))
	s := aggregate(t, model.Ledger{"2024-06-01": 1200}, "2024-06-01")

	first, err := e.Evaluate(s)
	require.NoError(t, err)
	assert.NotEmpty(t, first)

	again, err := e.Evaluate(s)
	require.NoError(t, err)
	assert.Empty(t, again)

	// a fresh evaluator over the same persisted record stays quiet too
	reloaded, err := NewEvaluator(LoadRecord(mem, nil)).Evaluate(s)
	require.NoError(t, err)
	assert.Empty(t, reloaded)
}

func TestYearlyCrossingFiresOnce(t *testing.T) {
	mem := kv.NewMemoryStore()
	e := NewEvaluator(LoadRecord(mem, nil))

	l := model.Ledger{"2024-03-01": 995}
	events, err := e.Evaluate(aggregate(t, l, "2024-06-01"))
	require.NoError(t, err)
	assert.Equal(t, []string{"hundred_900"}, ids(events))

	l["2024-03-01"] += 10
	events, err = e.Evaluate(aggregate(t, l, "2024-06-01"))
	require.NoError(t, err)
	assert.Equal(t, []string{"hundred_1000", "year_2024"}, ids(events))

	var celebrations int
	for _, ev := range events {
		if ev.Celebrate {
			celebrations++
			assert.Equal(t, KindYearly, ev.Kind)
		}
	}
	assert.Equal(t, 1, celebrations)
}

func TestHundredSkipsIntermediateMultiples(t *testing.T) {
	mem := kv.NewMemoryStore()
	e := NewEvaluator(LoadRecord(mem, nil))

	events, err := e.Evaluate(aggregate(t, model.Ledger{"2024-03-01": 350}, "2024-06-01"))
	require.NoError(t, err)
	assert.Equal(t, []string{"hundred_300"}, ids(events))
	assert.Contains(t, events[0].Message, "650 hours to go")

	r := e.Record()
	assert.False(t, r.Has("hundred_100"))
	assert.False(t, r.Has("hundred_200"))
}

func TestNothingBelowThresholds(t *testing.T) {
	e := NewEvaluator(LoadRecord(kv.NewMemoryStore(), nil))
	events, err := e.Evaluate(aggregate(t, model.Ledger{"2024-06-01": 2}, "2024-06-01"))
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestEvaluateRejectsZeroStats(t *testing.T) {
	e := NewEvaluator(LoadRecord(kv.NewMemoryStore(), nil))
	_, err := e.Evaluate(stats.Stats{})
	assert.Error(t, err)
}

func TestRecordPersistence(t *testing.T) {
	mem := kv.NewMemoryStore()
	r := LoadRecord(mem, nil)
	assert.True(t, r.Mark("year_2024"))
	assert.False(t, r.Mark("year_2024"))
	require.NoError(t, r.Save())

	raw, ok, err := mem.Get(StorageKey)
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"year_2024":true}`, string(raw))

	assert.Equal(t, []string{"year_2024"}, LoadRecord(mem, nil).IDs())
}

func TestRecordMalformedIsEmpty(t *testing.T) {
	mem := kv.NewMemoryStore()
	require.NoError(t, mem.Put(StorageKey, []byte(`{{{`)))
	assert.Empty(t, LoadRecord(mem, nil).IDs())
}
