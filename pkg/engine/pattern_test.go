package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The canonical worked example: half-time 0-0, full-time 3-2.
func comebackMatch() *Match {
	m := finishedMatch(0, 0, 3, 2)
	m.MatchTime = time.Date(2025, 3, 8, 15, 0, 0, 0, time.UTC)
	return m
}

func TestMatchesPatternWorkedExamples(t *testing.T) {
	m := comebackMatch()

	highScoringFirstHalf := &PatternDefinition{
		ID: "p1", Name: "High Scoring First Half",
		Conditions: []*ConditionDefinition{
			{Type: ConditionTotalGoals, Operator: OpGte, Value: "2", Target: TargetHalftime},
		},
	}
	goalExplosion := &PatternDefinition{
		ID: "p2", Name: "Goal Explosion",
		Conditions: []*ConditionDefinition{
			{Type: ConditionTotalGoals, Operator: OpGte, Value: "2", Target: TargetHalftime},
			{Type: ConditionTotalGoals, Operator: OpGte, Value: "4", Target: TargetFulltime},
		},
	}
	lowScoringMatch := &PatternDefinition{
		ID: "p3", Name: "Low Scoring Match",
		Conditions: []*ConditionDefinition{
			{Type: ConditionTotalGoals, Operator: OpLte, Value: "1", Target: TargetFulltime},
		},
	}

	for _, pattern := range []*PatternDefinition{highScoringFirstHalf, goalExplosion, lowScoringMatch} {
		matched, err := MatchesPattern(pattern, m)
		require.NoError(t, err)
		assert.False(t, matched, "pattern %s must not match a 0-0/3-2 comeback", pattern.Name)
	}

	// A pattern that the comeback does satisfy.
	secondHalfSurge := &PatternDefinition{
		ID: "p4", Name: "Second Half Surge",
		Conditions: []*ConditionDefinition{
			{Type: ConditionHalftimeScore, Operator: OpEq, Value: "0-0"},
			{Type: ConditionTotalGoals, Operator: OpGte, Value: "4", Target: TargetFulltime},
		},
	}
	matched, err := MatchesPattern(secondHalfSurge, m)
	require.NoError(t, err)
	assert.True(t, matched)
}

func TestMatchesPatternEmptyConditions(t *testing.T) {
	empty := &PatternDefinition{ID: "p0", Name: "Empty"}
	matched, err := MatchesPattern(empty, comebackMatch())
	require.NoError(t, err)
	assert.False(t, matched, "a pattern with no conditions never matches")

	assert.Error(t, empty.Validate(), "empty condition list fails validation")
}

func TestDetectOccurrencesInSlice(t *testing.T) {
	pattern := &PatternDefinition{
		ID: "p5", Name: "Goalless First Half",
		Conditions: []*ConditionDefinition{
			{Type: ConditionHalftimeScore, Operator: OpEq, Value: "0-0"},
		},
	}

	noHalftime := NewMatch()
	noHalftime.ID = "m-noht"
	noHalftime.HomeTeam = "Leeds"
	noHalftime.AwayTeam = "Everton"
	noHalftime.FullTimeHomeGoals = 1
	noHalftime.FullTimeAwayGoals = 1

	matches := []*Match{
		comebackMatch(),
		finishedMatch(1, 0, 2, 0),
		noHalftime, // missing data: skipped, not an error
	}

	occurrences, err := DetectOccurrencesInSlice(pattern, matches)
	require.NoError(t, err)
	require.Len(t, occurrences, 1)
	assert.Equal(t, "p5", occurrences[0].PatternID)
	assert.Equal(t, "m1", occurrences[0].MatchID)
	assert.NotEmpty(t, occurrences[0].ID)
	assert.InDelta(t, 0.6, occurrences[0].Confidence, 1e-9, "all-halftime pattern starts at 0.6")
}

func TestDetectOccurrencesRestartable(t *testing.T) {
	pattern := &PatternDefinition{
		ID: "p6", Name: "Any Fulltime Goal",
		Conditions: []*ConditionDefinition{
			{Type: ConditionTotalGoals, Operator: OpGt, Value: "0", Target: TargetFulltime},
		},
	}
	matches := []*Match{finishedMatch(0, 0, 1, 0), finishedMatch(0, 0, 2, 2)}
	seq := func(yield func(*Match) bool) {
		for _, m := range matches {
			if !yield(m) {
				return
			}
		}
	}

	for run := 0; run < 2; run++ {
		count := 0
		err := DetectOccurrences(pattern, seq, func(*PatternOccurrence) { count++ })
		require.NoError(t, err)
		assert.Equal(t, 2, count, "detection over the same sequence is repeatable")
	}
}

func TestBaseConfidenceMix(t *testing.T) {
	halftimeOnly := &PatternDefinition{Conditions: []*ConditionDefinition{
		{Type: ConditionHalftimeScore, Operator: OpEq, Value: "0-0"},
	}}
	fulltimeOnly := &PatternDefinition{Conditions: []*ConditionDefinition{
		{Type: ConditionFulltimeScore, Operator: OpEq, Value: "1-0"},
	}}
	mixed := &PatternDefinition{Conditions: []*ConditionDefinition{
		{Type: ConditionHalftimeScore, Operator: OpEq, Value: "0-0"},
		{Type: ConditionTotalGoals, Operator: OpGte, Value: "2", Target: TargetFulltime},
	}}

	assert.InDelta(t, 0.6, BaseConfidence(halftimeOnly), 1e-9)
	assert.InDelta(t, 0.9, BaseConfidence(fulltimeOnly), 1e-9)
	assert.InDelta(t, 0.75, BaseConfidence(mixed), 1e-9)
}

func TestPatternJSONRoundTrip(t *testing.T) {
	original := &PatternDefinition{
		ID: "p7", Name: "Comeback Setup", Description: "goalless at the break, lively finish",
		Category: "momentum", IsTemplate: true,
		Conditions: []*ConditionDefinition{
			{ID: "c1", Type: ConditionHalftimeScore, Operator: OpEq, Value: "0-0"},
			{ID: "c2", Type: ConditionTotalGoals, Operator: OpGte, Value: "3", Target: TargetFulltime},
		},
	}

	data, err := original.ToJSON()
	require.NoError(t, err)
	restored, err := PatternFromJSON(data)
	require.NoError(t, err)
	assert.Equal(t, original, restored)
}

func TestDiscoverHalftimePatterns(t *testing.T) {
	var matches []*Match
	for i := 0; i < 6; i++ {
		matches = append(matches, finishedMatch(0, 0, 1, 0))
	}
	matches = append(matches, finishedMatch(1, 0, 2, 0))

	patterns := DiscoverHalftimePatterns(matches, 0.5)
	require.Len(t, patterns, 1)
	assert.Equal(t, "Half-time 0-0", patterns[0].Name)
	require.Len(t, patterns[0].Conditions, 1)
	assert.Equal(t, ConditionHalftimeScore, patterns[0].Conditions[0].Type)
	assert.Equal(t, "0-0", patterns[0].Conditions[0].Value)

	assert.Nil(t, DiscoverHalftimePatterns(nil, 0.5))
}
