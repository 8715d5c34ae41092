package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPoissonModel() *PoissonModel {
	cfg := DefaultPoissonConfig()
	cfg.Simulations = 20000
	cfg.Seed = 42
	return NewPoissonModel(cfg)
}

func TestPoissonPredictFavorsStrongerSide(t *testing.T) {
	model := testPoissonModel()
	home, away := lopsidedPair()

	prediction, err := model.Predict(home, away)
	require.NoError(t, err)

	assert.Greater(t, prediction.Outcome.HomeWin, prediction.Outcome.AwayWin)
	assert.Equal(t, OutcomeHomeWin, prediction.PredictedOutcome())
	assert.Greater(t, prediction.HomeExpectedGoals, prediction.AwayExpectedGoals)
	assert.GreaterOrEqual(t, prediction.PredictedHomeGoals, prediction.PredictedAwayGoals)

	sum := prediction.Outcome.HomeWin + prediction.Outcome.Draw + prediction.Outcome.AwayWin
	assert.InDelta(t, 100.0, sum, 0.5, "probability mass stays normalized")
}

func TestPoissonPredictOverProbabilitiesOrdered(t *testing.T) {
	model := testPoissonModel()
	home, away := balancedPair()

	prediction, err := model.Predict(home, away)
	require.NoError(t, err)

	assert.Greater(t, prediction.Over15Probability, prediction.Over25Probability,
		"over 1.5 always dominates over 2.5")
	assert.Greater(t, prediction.Over25Probability, 0.0)
	assert.Less(t, prediction.Over25Probability, 100.0)

	// Expected goals at 3.0 per side pair means over 2.5 is better than even.
	assert.Greater(t, prediction.Over25Probability, 50.0)
}

func TestPoissonPredictDeterministicForFixedSeed(t *testing.T) {
	home, away := balancedPair()

	first, err := testPoissonModel().Predict(home, away)
	require.NoError(t, err)
	second, err := testPoissonModel().Predict(home, away)
	require.NoError(t, err)

	assert.Equal(t, first, second, "same seed and inputs reproduce the simulation")
}

func TestPoissonPredictErrors(t *testing.T) {
	model := testPoissonModel()
	home, _ := balancedPair()

	_, err := model.Predict(home, nil)
	var validation *ValidationError
	assert.ErrorAs(t, err, &validation)

	_, err = model.Predict(home, teamStats("New Club", 0, 0, 0))
	var insufficient *InsufficientDataError
	assert.ErrorAs(t, err, &insufficient)
}

func TestPoissonExpectancyClamped(t *testing.T) {
	model := testPoissonModel()
	// Absurd scoring rates clamp at the configured ceiling.
	home := teamStats("Runaway", 10, 200, 0)
	away := teamStats("Hapless", 10, 0, 200)

	prediction, err := model.Predict(home, away)
	require.NoError(t, err)
	assert.LessOrEqual(t, prediction.HomeExpectedGoals, model.cfg.MaxExpectedGoals)
	assert.GreaterOrEqual(t, prediction.AwayExpectedGoals, model.cfg.MinExpectedGoals)
}
