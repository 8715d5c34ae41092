package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func testAggregator() *PerformanceAggregator {
	return NewPerformanceAggregator(DefaultAggregatorConfig()).WithClock(func() time.Time { return testNow })
}

func occurrencesOn(dates ...time.Time) []*PatternOccurrence {
	var occurrences []*PatternOccurrence
	for i, d := range dates {
		occurrences = append(occurrences, &PatternOccurrence{
			ID: string(rune('a' + i)), PatternID: "p1", MatchDate: d, Confidence: 0.6,
		})
	}
	return occurrences
}

func TestRecomputeBasics(t *testing.T) {
	agg := testAggregator()
	d1 := testNow.AddDate(0, 0, -40)
	d2 := testNow.AddDate(0, 0, -5)
	occurrences := occurrencesOn(d1, d2)
	outcomes := []*EvaluatedOutcome{
		{OccurrenceID: "a", MatchDate: d1, Successful: true},
		{OccurrenceID: "b", MatchDate: d2, Successful: false},
	}

	m := agg.Recompute("p1", occurrences, outcomes)
	assert.Equal(t, 2, m.TotalOccurrences)
	assert.Equal(t, 1, m.SuccessfulPredictions)
	assert.InDelta(t, 50.0, m.SuccessRate, 1e-9)
	assert.Equal(t, d2, m.LastSeenDate)
	assert.InDelta(t, 0.6, m.AvgConfidence, 1e-9)
}

func TestRecomputeIdempotent(t *testing.T) {
	agg := testAggregator()
	occurrences := occurrencesOn(testNow.AddDate(0, 0, -3), testNow.AddDate(0, 0, -2))
	outcomes := []*EvaluatedOutcome{{OccurrenceID: "a", MatchDate: testNow.AddDate(0, 0, -3), Successful: true}}

	first := agg.Recompute("p1", occurrences, outcomes)
	second := agg.Recompute("p1", occurrences, outcomes)

	// Identity fields aside, the aggregate is a pure function of its inputs.
	assert.Equal(t, first.SuccessRate, second.SuccessRate)
	assert.Equal(t, first.TotalOccurrences, second.TotalOccurrences)
	assert.Equal(t, first.SuccessfulPredictions, second.SuccessfulPredictions)
	assert.Equal(t, first.ReliabilityScore, second.ReliabilityScore)
	assert.Equal(t, first.TrendDirection, second.TrendDirection)
}

func TestSuccessRateClampedToOccurrences(t *testing.T) {
	agg := testAggregator()
	occurrences := occurrencesOn(testNow)
	// Duplicated outcome rows must not push the rate past 100.
	outcomes := []*EvaluatedOutcome{
		{OccurrenceID: "a", MatchDate: testNow, Successful: true},
		{OccurrenceID: "a", MatchDate: testNow, Successful: true},
	}
	m := agg.Recompute("p1", occurrences, outcomes)
	assert.Equal(t, 1, m.SuccessfulPredictions)
	assert.InDelta(t, 100.0, m.SuccessRate, 1e-9)
}

func TestReliabilityScoreProperties(t *testing.T) {
	agg := testAggregator()

	thin := agg.reliabilityScore(90, 5)
	thick := agg.reliabilityScore(90, 100)
	assert.Less(t, thin, thick, "same rate on a larger sample scores higher")

	low := agg.reliabilityScore(20, 50)
	high := agg.reliabilityScore(80, 50)
	assert.Less(t, low, high, "higher rate scores higher at fixed sample size")

	assert.LessOrEqual(t, agg.reliabilityScore(100, 100000), 10.0)
	assert.Equal(t, 0.0, agg.reliabilityScore(0, 0))
}

func TestTrendDirection(t *testing.T) {
	agg := testAggregator()
	old := testNow.AddDate(0, 0, -60)
	recent := testNow.AddDate(0, 0, -3)

	outcomes := []*EvaluatedOutcome{
		{MatchDate: old, Successful: false},
		{MatchDate: old, Successful: false},
		{MatchDate: recent, Successful: true},
		{MatchDate: recent, Successful: true},
	}
	m := agg.Recompute("p1", occurrencesOn(old, old, recent, recent), outcomes)
	assert.Equal(t, TrendIncreasing, m.TrendDirection)

	flipped := []*EvaluatedOutcome{
		{MatchDate: old, Successful: true},
		{MatchDate: old, Successful: true},
		{MatchDate: recent, Successful: false},
		{MatchDate: recent, Successful: false},
	}
	m = agg.Recompute("p1", occurrencesOn(old, old, recent, recent), flipped)
	assert.Equal(t, TrendDecreasing, m.TrendDirection)

	// No recent outcomes reads stable regardless of the all-time rate.
	m = agg.Recompute("p1", occurrencesOn(old), []*EvaluatedOutcome{{MatchDate: old, Successful: true}})
	assert.Equal(t, TrendStable, m.TrendDirection)
}

func TestPartialAggregateMergeMatchesDirectFold(t *testing.T) {
	agg := testAggregator()
	d1 := testNow.AddDate(0, 0, -10)
	d2 := testNow.AddDate(0, 0, -4)
	d3 := testNow.AddDate(0, 0, -1)
	occurrences := occurrencesOn(d1, d2, d3)
	outcomes := []*EvaluatedOutcome{
		{MatchDate: d1, Successful: true},
		{MatchDate: d2, Successful: false},
		{MatchDate: d3, Successful: true},
	}

	var whole PartialAggregate
	whole.Fold(occurrences, outcomes)

	var left, right PartialAggregate
	left.Fold(occurrences[:1], outcomes[:1])
	right.Fold(occurrences[1:], outcomes[1:])
	left.Merge(right)

	require.Equal(t, whole, left, "fold-then-merge equals a single fold")

	m := agg.Finalize("p1", left)
	direct := agg.Recompute("p1", occurrences, outcomes)
	assert.Equal(t, direct.TotalOccurrences, m.TotalOccurrences)
	assert.Equal(t, direct.SuccessfulPredictions, m.SuccessfulPredictions)
	assert.Equal(t, direct.SuccessRate, m.SuccessRate)
	assert.Equal(t, direct.ReliabilityScore, m.ReliabilityScore)
	assert.Equal(t, direct.LastSeenDate, m.LastSeenDate)
}

func TestAnalyzePatternFrequency(t *testing.T) {
	pattern := &PatternDefinition{
		ID: "p1", Name: "Goalless First Half",
		Conditions: []*ConditionDefinition{{Type: ConditionHalftimeScore, Operator: OpEq, Value: "0-0"}},
	}
	matches := []*Match{
		finishedMatch(0, 0, 1, 0),
		finishedMatch(0, 0, 2, 2),
		finishedMatch(1, 0, 1, 0),
		finishedMatch(2, 1, 3, 1),
	}

	analysis, err := AnalyzePattern(pattern, matches)
	require.NoError(t, err)
	assert.Equal(t, 2, analysis.Occurrences)
	assert.Equal(t, 4, analysis.TotalMatches)
	assert.InDelta(t, 0.5, analysis.Frequency, 1e-9)
	assert.GreaterOrEqual(t, analysis.ConfidenceInterval[0], 0.0)
	assert.LessOrEqual(t, analysis.ConfidenceInterval[1], 1.0)
	assert.Less(t, analysis.ConfidenceInterval[0], analysis.ConfidenceInterval[1])
}

func TestConfidenceIntervalEdges(t *testing.T) {
	lo, hi := ConfidenceInterval(0.5, 0)
	assert.Equal(t, 0.0, lo)
	assert.Equal(t, 0.0, hi)

	lo, hi = ConfidenceInterval(1.0, 10)
	assert.Equal(t, 1.0, lo)
	assert.Equal(t, 1.0, hi)
}
