package engine

import (
	"math"
	"math/rand"
)

// PoissonConfig holds the Monte Carlo simulation tunables.
type PoissonConfig struct {
	// Simulations is the sample count per side.
	Simulations int
	// GoalRange bounds the per-side goal distribution (exclusive).
	GoalRange int
	// DixonColesRho is the low-score correlation parameter.
	DixonColesRho float64
	// HomeAdvantage scales the home side's expected goals.
	HomeAdvantage float64
	// MinExpectedGoals and MaxExpectedGoals clamp the derived expectancies.
	MinExpectedGoals float64
	MaxExpectedGoals float64
	// Seed fixes the random source; zero means a simulation-quality default
	// is still deterministic per model instance.
	Seed int64
}

// DefaultPoissonConfig returns the standard simulation parameters.
func DefaultPoissonConfig() PoissonConfig {
	return PoissonConfig{
		Simulations:      100000,
		GoalRange:        10,
		DixonColesRho:    -0.1,
		HomeAdvantage:    1.15,
		MinExpectedGoals: 0.1,
		MaxExpectedGoals: 6.0,
		Seed:             1,
	}
}

// PoissonPrediction is the simulated outcome distribution for one fixture.
type PoissonPrediction struct {
	HomeExpectedGoals  float64              `json:"home_expected_goals"`
	AwayExpectedGoals  float64              `json:"away_expected_goals"`
	PredictedHomeGoals int                  `json:"predicted_home_goals"`
	PredictedAwayGoals int                  `json:"predicted_away_goals"`
	Outcome            OutcomeProbabilities `json:"outcome"`
	Over15Probability  float64              `json:"over_1_5_probability"`
	Over25Probability  float64              `json:"over_2_5_probability"`
}

// PredictedOutcome returns the most probable 1X2 label.
func (p *PoissonPrediction) PredictedOutcome() string {
	switch {
	case p.Outcome.HomeWin >= p.Outcome.Draw && p.Outcome.HomeWin >= p.Outcome.AwayWin:
		return OutcomeHomeWin
	case p.Outcome.AwayWin >= p.Outcome.Draw:
		return OutcomeAwayWin
	default:
		return OutcomeDraw
	}
}

// PoissonModel predicts scorelines by Monte Carlo sampling two Poisson
// processes, with a Dixon-Coles correction for the correlated low-scoring
// outcomes the independent model underweights. It is the challenger model
// fed to CompareModels against the heuristic engine.
type PoissonModel struct {
	cfg PoissonConfig
	rng *rand.Rand
}

// NewPoissonModel creates a model with the given parameters.
func NewPoissonModel(cfg PoissonConfig) *PoissonModel {
	return &PoissonModel{cfg: cfg, rng: rand.New(rand.NewSource(cfg.Seed))}
}

// Predict simulates the fixture from both sides' per-game averages.
func (p *PoissonModel) Predict(home, away *TeamStatistics) (*PoissonPrediction, error) {
	if home == nil || away == nil {
		return nil, NewValidationError("teams", "both team statistics are required")
	}
	if home.Statistics.MatchesPlayed == 0 {
		return nil, &InsufficientDataError{Subject: home.TeamName, Reason: "zero matches played"}
	}
	if away.Statistics.MatchesPlayed == 0 {
		return nil, &InsufficientDataError{Subject: away.TeamName, Reason: "zero matches played"}
	}

	homeScored, homeConceded := home.Statistics.goalsPerGame()
	awayScored, awayConceded := away.Statistics.goalsPerGame()

	homeExpected := p.clampExpectancy((homeScored + awayConceded) / 2 * p.cfg.HomeAdvantage)
	awayExpected := p.clampExpectancy((awayScored + homeConceded) / 2)

	homeSamples := p.samples(homeExpected)
	awaySamples := p.samples(awayExpected)

	homeProbs := goalDistribution(homeSamples, p.cfg.GoalRange)
	awayProbs := goalDistribution(awaySamples, p.cfg.GoalRange)

	matrix := outerProduct(homeProbs, awayProbs)
	matrix = p.dixonColes(matrix, homeExpected, awayExpected)

	homeWin, draw, awayWin := outcomeSplit(matrix)
	bestHome, bestAway := mostLikelyScoreline(matrix)

	return &PoissonPrediction{
		HomeExpectedGoals:  homeExpected,
		AwayExpectedGoals:  awayExpected,
		PredictedHomeGoals: bestHome,
		PredictedAwayGoals: bestAway,
		Outcome: OutcomeProbabilities{
			HomeWin: homeWin * 100,
			Draw:    draw * 100,
			AwayWin: awayWin * 100,
		},
		Over15Probability: overProbability(homeSamples, awaySamples, 1.5) * 100,
		Over25Probability: overProbability(homeSamples, awaySamples, 2.5) * 100,
	}, nil
}

func (p *PoissonModel) clampExpectancy(expected float64) float64 {
	return math.Max(p.cfg.MinExpectedGoals, math.Min(p.cfg.MaxExpectedGoals, expected))
}

func (p *PoissonModel) samples(lambda float64) []int {
	out := make([]int, p.cfg.Simulations)
	for i := range out {
		out[i] = poissonRandom(lambda, p.rng)
	}
	return out
}

// poissonRandom draws one Poisson variate: Knuth's algorithm for small
// lambda, normal approximation beyond it.
func poissonRandom(lambda float64, rng *rand.Rand) int {
	if lambda < 30 {
		limit := math.Exp(-lambda)
		k := 0
		product := 1.0
		for product > limit {
			k++
			product *= rng.Float64()
		}
		return k - 1
	}
	return int(math.Round(lambda + math.Sqrt(lambda)*rng.NormFloat64()))
}

func goalDistribution(samples []int, goalRange int) []float64 {
	counts := make([]int, goalRange)
	for _, s := range samples {
		if s >= 0 && s < goalRange {
			counts[s]++
		}
	}
	probs := make([]float64, goalRange)
	total := float64(len(samples))
	for i, c := range counts {
		probs[i] = float64(c) / total
	}
	return probs
}

func outerProduct(homeProbs, awayProbs []float64) [][]float64 {
	matrix := make([][]float64, len(homeProbs))
	for i := range homeProbs {
		matrix[i] = make([]float64, len(awayProbs))
		for j := range awayProbs {
			matrix[i][j] = homeProbs[i] * awayProbs[j]
		}
	}
	return matrix
}

// dixonColes rescales the four low-score cells where the independent
// Poisson assumption is known to be wrong, then renormalizes.
func (p *PoissonModel) dixonColes(matrix [][]float64, homeExpected, awayExpected float64) [][]float64 {
	rho := p.cfg.DixonColesRho
	if len(matrix) < 2 || len(matrix[0]) < 2 {
		return matrix
	}
	matrix[0][0] *= 1 - homeExpected*awayExpected*rho
	matrix[0][1] *= 1 + homeExpected*rho
	matrix[1][0] *= 1 + awayExpected*rho
	matrix[1][1] *= 1 - rho

	sum := 0.0
	for i := range matrix {
		for j := range matrix[i] {
			sum += matrix[i][j]
		}
	}
	if sum <= 0 {
		return matrix
	}
	for i := range matrix {
		for j := range matrix[i] {
			matrix[i][j] /= sum
		}
	}
	return matrix
}

// outcomeSplit sums the lower triangle, diagonal and upper triangle of the
// scoreline matrix into home win, draw and away win mass.
func outcomeSplit(matrix [][]float64) (homeWin, draw, awayWin float64) {
	for i := range matrix {
		for j := range matrix[i] {
			switch {
			case i > j:
				homeWin += matrix[i][j]
			case i == j:
				draw += matrix[i][j]
			default:
				awayWin += matrix[i][j]
			}
		}
	}
	return homeWin, draw, awayWin
}

func mostLikelyScoreline(matrix [][]float64) (home, away int) {
	best := -1.0
	for i := range matrix {
		for j := range matrix[i] {
			if matrix[i][j] > best {
				best = matrix[i][j]
				home, away = i, j
			}
		}
	}
	return home, away
}

func overProbability(homeSamples, awaySamples []int, threshold float64) float64 {
	count := 0
	for i := range homeSamples {
		if float64(homeSamples[i]+awaySamples[i]) > threshold {
			count++
		}
	}
	return float64(count) / float64(len(homeSamples))
}
