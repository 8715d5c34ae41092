package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func teamStats(name string, played, scored, conceded int) *TeamStatistics {
	return &TeamStatistics{
		TeamName: name,
		Statistics: TeamStatBlock{
			MatchesPlayed: played,
			GoalsScored:   scored,
			GoalsConceded: conceded,
		},
	}
}

// Balanced sides averaging 2 scored and 1 conceded per game.
func balancedPair() (*TeamStatistics, *TeamStatistics) {
	return teamStats("Arsenal", 10, 20, 10), teamStats("Chelsea", 10, 20, 10)
}

func TestCalculateOver25Probability(t *testing.T) {
	e := NewPredictionEngine(DefaultPredictionConfig())
	home, away := balancedPair()

	// Expected goals land exactly at 3.0: 0.5 above the pivot maps to 55%.
	prob, err := e.CalculateOver25Probability(home, away)
	require.NoError(t, err)
	assert.InDelta(t, 55.0, prob, 1e-9)

	// Low scoring sides fall on the floor-bounded branch.
	lowHome := teamStats("Burnley", 10, 5, 5)
	lowAway := teamStats("Luton", 10, 5, 5)
	prob, err = e.CalculateOver25Probability(lowHome, lowAway)
	require.NoError(t, err)
	assert.InDelta(t, 16.0, prob, 1e-9, "eg 1.0 maps to 1.0/2.5*0.4")
}

func TestCalculateBTTSProbability(t *testing.T) {
	e := NewPredictionEngine(DefaultPredictionConfig())
	home, away := balancedPair()

	// Per-team scoring probability (2+1)/4 = 0.75 on each side.
	prob, err := e.CalculateBTTSProbability(home, away)
	require.NoError(t, err)
	assert.InDelta(t, 56.25, prob, 1e-9)

	// Historical rates blend in at 60/40.
	home.Statistics.BTTS = &BTTSRecord{BothTeamsScored: 6}
	away.Statistics.BTTS = &BTTSRecord{BothTeamsScored: 8}
	prob, err = e.CalculateBTTSProbability(home, away)
	require.NoError(t, err)
	assert.InDelta(t, 61.75, prob, 1e-9, "0.5625*0.6 + 0.7*0.4")
}

func TestConfidenceLevel(t *testing.T) {
	e := NewPredictionEngine(DefaultPredictionConfig())
	assert.Equal(t, ConfidenceHigh, e.ConfidenceLevel(75))
	assert.Equal(t, ConfidenceHigh, e.ConfidenceLevel(20))
	assert.Equal(t, ConfidenceMedium, e.ConfidenceLevel(65))
	assert.Equal(t, ConfidenceMedium, e.ConfidenceLevel(35))
	assert.Equal(t, ConfidenceLow, e.ConfidenceLevel(50))
	assert.Equal(t, ConfidenceLow, e.ConfidenceLevel(42))
}

func TestGeneratePrediction(t *testing.T) {
	e := NewPredictionEngine(DefaultPredictionConfig())
	home, away := balancedPair()

	result, err := e.GeneratePrediction(PredictionInput{HomeTeam: home, AwayTeam: away, PatternBoost: 10})
	require.NoError(t, err)

	assert.InDelta(t, 66.25, result.BTTS.Probability, 1e-9)
	assert.Equal(t, "YES", result.BTTS.Recommendation)
	assert.Equal(t, ConfidenceMedium, result.BTTS.Confidence)

	assert.InDelta(t, 65.0, result.Over25.Probability, 1e-9)
	assert.Equal(t, "OVER", result.Over25.Recommendation)

	sum := result.Outcome.HomeWin + result.Outcome.Draw + result.Outcome.AwayWin
	assert.InDelta(t, 100.0, sum, 1e-6, "1X2 probabilities sum to 100")
	assert.Greater(t, result.Outcome.HomeWin, result.Outcome.AwayWin, "home advantage tilts equal sides")
}

func TestGeneratePredictionBoostClamped(t *testing.T) {
	e := NewPredictionEngine(DefaultPredictionConfig())
	home, away := balancedPair()

	result, err := e.GeneratePrediction(PredictionInput{HomeTeam: home, AwayTeam: away, PatternBoost: 500})
	require.NoError(t, err)
	assert.InDelta(t, 100.0, result.BTTS.Probability, 1e-9)
	assert.InDelta(t, 100.0, result.Over25.Probability, 1e-9)
}

func TestPredictionInsufficientData(t *testing.T) {
	e := NewPredictionEngine(DefaultPredictionConfig())
	home, _ := balancedPair()
	empty := teamStats("Newly Promoted", 0, 0, 0)

	_, err := e.CalculateBTTSProbability(home, empty)
	require.Error(t, err)
	var insufficient *InsufficientDataError
	assert.ErrorAs(t, err, &insufficient)
	assert.Equal(t, "Newly Promoted", insufficient.Subject)

	_, err = e.GeneratePrediction(PredictionInput{HomeTeam: nil, AwayTeam: home})
	require.Error(t, err)
	var validation *ValidationError
	assert.ErrorAs(t, err, &validation)
}

/////////////////////////////////////////////////////////////////////////
////// Enhanced predictions
/////////////////////////////////////////////////////////////////////////

// A runaway favorite: 3.0 scored / 0.5 conceded against 0.5 / 2.5.
func lopsidedPair() (*TeamStatistics, *TeamStatistics) {
	return teamStats("Man City", 10, 30, 5), teamStats("Sheffield United", 10, 5, 25)
}

func TestGenerateEnhancedPredictionStatuses(t *testing.T) {
	e := NewPredictionEngine(DefaultPredictionConfig())
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	home, away := lopsidedPair()
	enhanced, err := e.GenerateEnhancedPrediction(PredictionInput{HomeTeam: home, AwayTeam: away}, nil, now)
	require.NoError(t, err)
	assert.Equal(t, StatusActive, enhanced.PredictionStatus)
	assert.Equal(t, OutcomeHomeWin, enhanced.PredictedOutcome())
	assert.False(t, enhanced.OverconfidenceFlag)
	require.NotNil(t, enhanced.Explanation)
	assert.NotEmpty(t, enhanced.Explanation.DecisionPath)

	// Balanced sides carry no outcome above 45 and read uncertain.
	bHome, bAway := balancedPair()
	enhanced, err = e.GenerateEnhancedPrediction(PredictionInput{HomeTeam: bHome, AwayTeam: bAway}, nil, now)
	require.NoError(t, err)
	assert.Equal(t, StatusUncertain, enhanced.PredictionStatus)
}

func TestOverconfidenceGuard(t *testing.T) {
	cfg := DefaultPredictionConfig()
	cfg.BlockConfidence = 70.0
	e := NewPredictionEngine(cfg)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	home, away := lopsidedPair()

	failed := &HistoricalPrediction{
		PredictedOutcome: OutcomeHomeWin,
		ConfidenceScore:  72.0,
		WasCorrect:       false,
		CreatedAt:        now.AddDate(0, 0, -10),
	}

	enhanced, err := e.GenerateEnhancedPrediction(PredictionInput{HomeTeam: home, AwayTeam: away}, []*HistoricalPrediction{failed}, now)
	require.NoError(t, err)
	assert.Equal(t, StatusBlocked, enhanced.PredictionStatus)
	assert.True(t, enhanced.OverconfidenceFlag)
	assert.NotEmpty(t, enhanced.BlockedReason)
	assert.Less(t, enhanced.ConfidenceScore, enhanced.Explanation.FinalConfidence, "blocked predictions are downgraded")

	// The same failure outside the lookback window does not block.
	stale := &HistoricalPrediction{
		PredictedOutcome: OutcomeHomeWin,
		ConfidenceScore:  72.0,
		WasCorrect:       false,
		CreatedAt:        now.AddDate(0, 0, -45),
	}
	enhanced, err = e.GenerateEnhancedPrediction(PredictionInput{HomeTeam: home, AwayTeam: away}, []*HistoricalPrediction{stale}, now)
	require.NoError(t, err)
	assert.NotEqual(t, StatusBlocked, enhanced.PredictionStatus)

	// A correct prior call at high confidence does not block either.
	succeeded := &HistoricalPrediction{
		PredictedOutcome: OutcomeHomeWin,
		ConfidenceScore:  72.0,
		WasCorrect:       true,
		CreatedAt:        now.AddDate(0, 0, -10),
	}
	enhanced, err = e.GenerateEnhancedPrediction(PredictionInput{HomeTeam: home, AwayTeam: away}, []*HistoricalPrediction{succeeded}, now)
	require.NoError(t, err)
	assert.NotEqual(t, StatusBlocked, enhanced.PredictionStatus)
}
