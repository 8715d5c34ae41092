package ingest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/winmix/analytics/internal/logging"
)

func TestImportCanonicalHeader(t *testing.T) {
	csv := strings.Join([]string{
		"id,match_time,home_team,away_team,half_time_home_goals,half_time_away_goals,full_time_home_goals,full_time_away_goals,league",
		"m1,2025-03-08,Arsenal,Chelsea,0,0,3,2,Premier League",
		"m2,2025-03-09,Leeds,Everton,1,0,1,0,Premier League",
	}, "\n")

	imp := NewImporter(logging.NewLogger("test"))
	matches, result, err := imp.Read(strings.NewReader(csv))
	require.NoError(t, err)
	assert.Equal(t, 2, result.Imported)
	assert.Equal(t, 0, result.Skipped)
	assert.Empty(t, result.Warnings)

	require.Len(t, matches, 2)
	assert.Equal(t, "m1", matches[0].ID)
	assert.Equal(t, 3, matches[0].FullTimeHomeGoals)
	assert.Equal(t, "Premier League", matches[0].League)
}

func TestImportAliasHeader(t *testing.T) {
	csv := strings.Join([]string{
		"date,home_team,away_team,ht_home_score,ht_away_score,home_score,away_score",
		"2024-11-02,Leeds,Everton,1,0,2,1",
	}, "\n")

	imp := NewImporter(logging.NewLogger("test"))
	matches, result, err := imp.Read(strings.NewReader(csv))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Imported)

	require.Len(t, matches, 1)
	m := matches[0]
	assert.Equal(t, 1, m.HalfTimeHomeGoals)
	assert.Equal(t, 2, m.FullTimeHomeGoals)
	assert.NotEmpty(t, m.ID, "rows without an id are assigned one")
}

func TestImportSkipsBadRowsKeepsGood(t *testing.T) {
	csv := strings.Join([]string{
		"home_team,away_team,home_score,away_score",
		"Arsenal,Chelsea,2,1",
		"Leeds,,1,0",
		"Spurs,Villa,two,1",
		"Wolves,Brighton,0,0",
	}, "\n")

	imp := NewImporter(logging.NewLogger("test"))
	matches, result, err := imp.Read(strings.NewReader(csv))
	require.NoError(t, err)
	assert.Equal(t, 2, result.Imported)
	assert.Equal(t, 2, result.Skipped)
	require.Len(t, matches, 2)
	assert.Equal(t, "Arsenal", matches[0].HomeTeam)
	assert.Equal(t, "Wolves", matches[1].HomeTeam)
}

func TestImportLenientOnInconsistentScores(t *testing.T) {
	csv := strings.Join([]string{
		"home_team,away_team,ht_home_score,ht_away_score,home_score,away_score",
		"Arsenal,Chelsea,3,0,1,0",
	}, "\n")

	imp := NewImporter(logging.NewLogger("test"))
	matches, result, err := imp.Read(strings.NewReader(csv))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Imported, "inconsistent scores warn but do not reject")
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0].String(), "exceed full-time")
	require.Len(t, matches, 1)
}

func TestImportRejectsHeaderWithoutTeams(t *testing.T) {
	csv := "date,home_score,away_score\n2024-11-02,1,0\n"
	imp := NewImporter(logging.NewLogger("test"))
	_, _, err := imp.Read(strings.NewReader(csv))
	require.Error(t, err)
}

func TestImportMissingScoresStaySentinel(t *testing.T) {
	csv := strings.Join([]string{
		"home_team,away_team,match_time",
		"Arsenal,Chelsea,2025-09-20",
	}, "\n")

	imp := NewImporter(logging.NewLogger("test"))
	matches, _, err := imp.Read(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.False(t, matches[0].HasFullTimeScore())
	assert.False(t, matches[0].HasHalfTimeScore())
}
