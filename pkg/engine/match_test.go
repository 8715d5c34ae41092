package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMatchJSONCanonical(t *testing.T) {
	data := []byte(`{
		"id": "m1",
		"match_time": "2025-03-08T15:00:00Z",
		"home_team": "Arsenal",
		"away_team": "Chelsea",
		"half_time_home_goals": 0,
		"half_time_away_goals": 0,
		"full_time_home_goals": 3,
		"full_time_away_goals": 2,
		"league": "Premier League"
	}`)

	m, err := ParseMatchJSON(data)
	require.NoError(t, err)
	assert.Equal(t, "m1", m.ID)
	assert.Equal(t, "Arsenal", m.HomeTeam)
	assert.Equal(t, 3, m.FullTimeHomeGoals)
	assert.Equal(t, time.Date(2025, 3, 8, 15, 0, 0, 0, time.UTC), m.MatchTime)
	assert.True(t, m.HasHalfTimeScore())
	assert.True(t, m.HasFullTimeScore())
}

func TestParseMatchJSONAliases(t *testing.T) {
	data := []byte(`{
		"home_team": "Leeds",
		"away_team": "Everton",
		"date": "2024-11-02",
		"home_score": "2",
		"away_score": "1",
		"ht_home_score": 1,
		"ht_away_score": 0
	}`)

	m, err := ParseMatchJSON(data)
	require.NoError(t, err)
	assert.Equal(t, 2, m.FullTimeHomeGoals)
	assert.Equal(t, 1, m.FullTimeAwayGoals)
	assert.Equal(t, 1, m.HalfTimeHomeGoals)
	assert.Equal(t, time.Date(2024, 11, 2, 0, 0, 0, 0, time.UTC), m.MatchTime)
}

func TestParseMatchJSONCanonicalWinsOverAlias(t *testing.T) {
	data := []byte(`{
		"home_team": "Leeds",
		"away_team": "Everton",
		"full_time_home_goals": 3,
		"home_score": 1,
		"full_time_away_goals": 0,
		"away_score": 0
	}`)

	m, err := ParseMatchJSON(data)
	require.NoError(t, err)
	assert.Equal(t, 3, m.FullTimeHomeGoals, "alias consulted only when the canonical field is absent")
}

func TestParseMatchJSONErrors(t *testing.T) {
	_, err := ParseMatchJSON([]byte(`{"home_team": "Leeds"}`))
	require.Error(t, err, "both team names required")

	_, err = ParseMatchJSON([]byte(`{"home_team": "a", "away_team": "b", "full_time_home_goals": "two"}`))
	require.Error(t, err)
	var validation *ValidationError
	assert.ErrorAs(t, err, &validation)
}

func TestParseMatchJSONMissingScoresStaySentinel(t *testing.T) {
	m, err := ParseMatchJSON([]byte(`{"home_team": "a", "away_team": "b"}`))
	require.NoError(t, err)
	assert.Equal(t, -1, m.FullTimeHomeGoals)
	assert.False(t, m.HasFullTimeScore())
	assert.False(t, m.HasHalfTimeScore())
	assert.Empty(t, m.ActualOutcome())
}

func TestActualOutcome(t *testing.T) {
	assert.Equal(t, OutcomeHomeWin, finishedMatch(0, 0, 2, 1).ActualOutcome())
	assert.Equal(t, OutcomeAwayWin, finishedMatch(0, 0, 0, 1).ActualOutcome())
	assert.Equal(t, OutcomeDraw, finishedMatch(1, 1, 2, 2).ActualOutcome())
}

func TestValidateLenientOnInconsistentScores(t *testing.T) {
	m := finishedMatch(3, 0, 1, 0)
	warnings := m.Validate()
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0].String(), "half-time home goals 3 exceed full-time 1")

	clean := finishedMatch(1, 0, 2, 0)
	assert.Empty(t, clean.Validate())
}

func TestStatsAt(t *testing.T) {
	m := finishedMatch(1, 0, 1, 3)

	ht, ok := m.StatsAt(TargetHalftime)
	require.True(t, ok)
	assert.Equal(t, 1, ht.TotalGoals)
	assert.Equal(t, 1, ht.HomeGoalDiff)
	assert.Equal(t, -1, ht.AwayGoalDiff)
	assert.Equal(t, 1, ht.GoalDifference)

	ft, ok := m.StatsAt(TargetFulltime)
	require.True(t, ok)
	assert.Equal(t, 4, ft.TotalGoals)
	assert.Equal(t, -2, ft.HomeGoalDiff)
	assert.Equal(t, 2, ft.AwayGoalDiff)
	assert.Equal(t, 2, ft.GoalDifference, "absolute difference carries no sign")

	_, ok = m.StatsAt("extra_time")
	assert.False(t, ok)
}
