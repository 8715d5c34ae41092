package engine

import (
	"fmt"
	"math"
	"time"
)

// Confidence levels attached to probability outputs.
const (
	ConfidenceLow    = "LOW"
	ConfidenceMedium = "MEDIUM"
	ConfidenceHigh   = "HIGH"
)

// Prediction lifecycle states on the enhanced output.
const (
	StatusActive    = "active"
	StatusUncertain = "uncertain"
	StatusBlocked   = "blocked"
)

// PredictionConfig contains the tunable coefficients of the heuristic
// prediction model. The blend weights and piecewise over-2.5 map mirror
// the production calibration; they are heuristics, not fitted parameters.
type PredictionConfig struct {
	// ScoreProbCap caps the derived per-team scoring probability.
	ScoreProbCap float64
	// ModelWeight and HistoryWeight blend the derived estimate with the
	// historical market rate when both teams supply one.
	ModelWeight   float64
	HistoryWeight float64

	// Over 2.5 piecewise-linear map parameters.
	Over25Pivot   float64 // expected-goals pivot (2.5)
	Over25Floor   float64 // probability floor below the pivot
	Over25Base    float64 // probability at the pivot
	Over25Ceiling float64 // probability ceiling above the pivot
	Over25Slope   float64 // expected-goals divisor above the pivot

	// HomeAdvantage scales the home side's expected goals in the 1X2
	// heuristic.
	HomeAdvantage float64

	// Overconfidence guard: predictions above BlockConfidence that repeat
	// a recently failed identical call are blocked and downgraded.
	BlockConfidence    float64
	BlockLookback      time.Duration
	DowngradeCeiling   float64
	DowngradeMultipler float64
}

// DefaultPredictionConfig returns the standard model coefficients.
func DefaultPredictionConfig() PredictionConfig {
	return PredictionConfig{
		ScoreProbCap:  0.95,
		ModelWeight:   0.6,
		HistoryWeight: 0.4,

		Over25Pivot:   2.5,
		Over25Floor:   0.1,
		Over25Base:    0.3,
		Over25Ceiling: 0.9,
		Over25Slope:   2.0,

		HomeAdvantage: 1.15,

		BlockConfidence:    95.0,
		BlockLookback:      30 * 24 * time.Hour,
		DowngradeCeiling:   88.0,
		DowngradeMultipler: 0.92,
	}
}

// PredictionInput is the request shape for one match prediction.
type PredictionInput struct {
	HomeTeam *TeamStatistics `json:"homeTeam"`
	AwayTeam *TeamStatistics `json:"awayTeam"`
	// PatternBoost is the additive confidence adjustment, in percentage
	// points, derived from pattern performance. Applied after the base
	// probability and clamped to [0,100].
	PatternBoost float64 `json:"patternBoosts,omitempty"`
}

// MarketPrediction is the probability, recommendation and confidence for
// one market.
type MarketPrediction struct {
	Probability    float64 `json:"probability"`
	Recommendation string  `json:"recommendation"`
	Confidence     string  `json:"confidence"`
}

// OutcomeProbabilities is the heuristic 1X2 distribution.
type OutcomeProbabilities struct {
	HomeWin float64 `json:"home_win"`
	Draw    float64 `json:"draw"`
	AwayWin float64 `json:"away_win"`
}

// PredictionResult is the core prediction contract for one match.
type PredictionResult struct {
	BTTS    MarketPrediction     `json:"btts"`
	Over25  MarketPrediction     `json:"over25"`
	Outcome OutcomeProbabilities `json:"outcome"`
}

// PredictedOutcome returns the most probable 1X2 label.
func (r *PredictionResult) PredictedOutcome() string {
	switch {
	case r.Outcome.HomeWin >= r.Outcome.Draw && r.Outcome.HomeWin >= r.Outcome.AwayWin:
		return OutcomeHomeWin
	case r.Outcome.AwayWin >= r.Outcome.Draw:
		return OutcomeAwayWin
	default:
		return OutcomeDraw
	}
}

// PredictionEngine combines team statistical aggregates with pattern
// derived confidence boosts into probability outputs. Stateless and pure;
// safe for concurrent use.
type PredictionEngine struct {
	cfg PredictionConfig
}

// NewPredictionEngine creates an engine with the given coefficients.
func NewPredictionEngine(cfg PredictionConfig) *PredictionEngine {
	return &PredictionEngine{cfg: cfg}
}

// CalculateBTTSProbability estimates the both-teams-to-score probability
// as a percentage. Per-team scoring probability is derived from goals per
// game plus the opponent's concession rate, quartered and capped; when
// both teams carry a historical BTTS rate the derived estimate is blended
// with it at ModelWeight/HistoryWeight.
func (e *PredictionEngine) CalculateBTTSProbability(home, away *TeamStatistics) (float64, error) {
	if err := e.checkSamples(home, away); err != nil {
		return 0, err
	}
	homeScored, homeConceded := home.Statistics.goalsPerGame()
	awayScored, awayConceded := away.Statistics.goalsPerGame()

	homeScoreProb := math.Min(e.cfg.ScoreProbCap, (homeScored+awayConceded)/4)
	awayScoreProb := math.Min(e.cfg.ScoreProbCap, (awayScored+homeConceded)/4)
	bttsProb := homeScoreProb * awayScoreProb

	if home.Statistics.BTTS != nil && away.Statistics.BTTS != nil {
		homeRate := float64(home.Statistics.BTTS.BothTeamsScored) / float64(home.Statistics.MatchesPlayed)
		awayRate := float64(away.Statistics.BTTS.BothTeamsScored) / float64(away.Statistics.MatchesPlayed)
		avgRate := (homeRate + awayRate) / 2
		return (bttsProb*e.cfg.ModelWeight + avgRate*e.cfg.HistoryWeight) * 100, nil
	}
	return bttsProb * 100, nil
}

// CalculateOver25Probability estimates the over-2.5-goals probability as a
// percentage via a piecewise-linear map of expected total goals, blended
// with the historical over rate when both teams supply one.
func (e *PredictionEngine) CalculateOver25Probability(home, away *TeamStatistics) (float64, error) {
	if err := e.checkSamples(home, away); err != nil {
		return 0, err
	}
	homeScored, homeConceded := home.Statistics.goalsPerGame()
	awayScored, awayConceded := away.Statistics.goalsPerGame()

	expectedGoals := ((homeScored + awayConceded) + (awayScored + homeConceded)) / 2

	var over25 float64
	if expectedGoals > e.cfg.Over25Pivot {
		over25 = math.Min(e.cfg.Over25Ceiling, (expectedGoals-e.cfg.Over25Pivot)/e.cfg.Over25Slope+e.cfg.Over25Base)
	} else {
		over25 = math.Max(e.cfg.Over25Floor, expectedGoals/e.cfg.Over25Pivot*0.4)
	}

	if home.Statistics.OverGoals != nil && away.Statistics.OverGoals != nil {
		homeRate := float64(home.Statistics.OverGoals.Over25) / float64(home.Statistics.MatchesPlayed)
		awayRate := float64(away.Statistics.OverGoals.Over25) / float64(away.Statistics.MatchesPlayed)
		avgRate := (homeRate + awayRate) / 2
		return (over25*e.cfg.ModelWeight + avgRate*e.cfg.HistoryWeight) * 100, nil
	}
	return over25 * 100, nil
}

// calculateOutcomeProbabilities derives a heuristic 1X2 distribution from
// each side's expected goals, with home advantage applied. Normalized so
// the three probabilities sum to 100.
func (e *PredictionEngine) calculateOutcomeProbabilities(home, away *TeamStatistics) OutcomeProbabilities {
	homeScored, homeConceded := home.Statistics.goalsPerGame()
	awayScored, awayConceded := away.Statistics.goalsPerGame()

	homeExpected := (homeScored + awayConceded) / 2 * e.cfg.HomeAdvantage
	awayExpected := (awayScored + homeConceded) / 2

	// Strength gap drives the win split; the draw share shrinks as the
	// gap grows.
	gap := math.Abs(homeExpected - awayExpected)
	draw := math.Max(0.15, 0.30-gap*0.08)
	remaining := 1 - draw

	total := homeExpected + awayExpected
	homeShare := 0.5
	if total > 0 {
		homeShare = homeExpected / total
	}
	return OutcomeProbabilities{
		HomeWin: remaining * homeShare * 100,
		Draw:    draw * 100,
		AwayWin: remaining * (1 - homeShare) * 100,
	}
}

// ConfidenceLevel classifies a percentage probability. Strong signals in
// either direction read HIGH; probabilities near the coin flip read LOW.
func (e *PredictionEngine) ConfidenceLevel(probability float64) string {
	if probability > 70 || probability < 30 {
		return ConfidenceHigh
	}
	if probability > 60 || probability < 40 {
		return ConfidenceMedium
	}
	return ConfidenceLow
}

// GeneratePrediction produces the full prediction for one match. The
// pattern boost is applied additively to both market probabilities and the
// results are clamped to [0,100].
func (e *PredictionEngine) GeneratePrediction(input PredictionInput) (*PredictionResult, error) {
	btts, err := e.CalculateBTTSProbability(input.HomeTeam, input.AwayTeam)
	if err != nil {
		return nil, err
	}
	over25, err := e.CalculateOver25Probability(input.HomeTeam, input.AwayTeam)
	if err != nil {
		return nil, err
	}

	btts = clampPercent(btts + input.PatternBoost)
	over25 = clampPercent(over25 + input.PatternBoost)

	result := &PredictionResult{
		BTTS: MarketPrediction{
			Probability:    round2(btts),
			Recommendation: recommend(btts, "YES", "NO"),
			Confidence:     e.ConfidenceLevel(btts),
		},
		Over25: MarketPrediction{
			Probability:    round2(over25),
			Recommendation: recommend(over25, "OVER", "UNDER"),
			Confidence:     e.ConfidenceLevel(over25),
		},
		Outcome: e.calculateOutcomeProbabilities(input.HomeTeam, input.AwayTeam),
	}
	return result, nil
}

func (e *PredictionEngine) checkSamples(home, away *TeamStatistics) error {
	if home == nil || away == nil {
		return NewValidationError("teams", "both team statistics are required")
	}
	if home.Statistics.MatchesPlayed == 0 {
		return &InsufficientDataError{Subject: home.TeamName, Reason: "zero matches played"}
	}
	if away.Statistics.MatchesPlayed == 0 {
		return &InsufficientDataError{Subject: away.TeamName, Reason: "zero matches played"}
	}
	return nil
}

func clampPercent(p float64) float64 {
	return math.Max(0, math.Min(100, p))
}

func round2(p float64) float64 {
	return math.Round(p*100) / 100
}

func recommend(probability float64, above, below string) string {
	if probability > 50 {
		return above
	}
	return below
}

/////////////////////////////////////////////////////////////////////////
////// Enhanced predictions
/////////////////////////////////////////////////////////////////////////

// HistoricalPrediction is the read shape for prior predictions consulted
// by the overconfidence guard.
type HistoricalPrediction struct {
	PredictedOutcome string    `json:"predicted_outcome"`
	ConfidenceScore  float64   `json:"confidence_score"`
	WasCorrect       bool      `json:"was_correct"`
	CreatedAt        time.Time `json:"created_at"`
}

// PredictionExplanation is the human-readable breakdown attached to an
// enhanced prediction.
type PredictionExplanation struct {
	Summary         string   `json:"summary"`
	BaseConfidence  float64  `json:"base_confidence"`
	PatternBoost    float64  `json:"pattern_boost"`
	FinalConfidence float64  `json:"final_confidence"`
	DecisionPath    []string `json:"decision_path"`
}

// EnhancedPrediction extends PredictionResult with explanation and the
// overconfidence guard verdict.
type EnhancedPrediction struct {
	PredictionResult
	Explanation        *PredictionExplanation `json:"explanation,omitempty"`
	PredictionStatus   string                 `json:"prediction_status"`
	OverconfidenceFlag bool                   `json:"overconfidence_flag"`
	BlockedReason      string                 `json:"blocked_reason,omitempty"`
	ConfidenceScore    float64                `json:"confidence_score"`
}

// GenerateEnhancedPrediction wraps GeneratePrediction with the
// overconfidence guard and explanation. history carries prior predictions
// for the same pairing; a repeat of a recently failed near-certain call
// blocks the prediction and downgrades its confidence.
func (e *PredictionEngine) GenerateEnhancedPrediction(input PredictionInput, history []*HistoricalPrediction, now time.Time) (*EnhancedPrediction, error) {
	base, err := e.GeneratePrediction(input)
	if err != nil {
		return nil, err
	}

	predicted := base.PredictedOutcome()
	confidence := math.Max(base.Outcome.HomeWin, math.Max(base.Outcome.Draw, base.Outcome.AwayWin))

	enhanced := &EnhancedPrediction{
		PredictionResult: *base,
		PredictionStatus: StatusActive,
		ConfidenceScore:  round2(confidence),
		Explanation: &PredictionExplanation{
			Summary:         fmt.Sprintf("%s favored from goal balance and historical rates", predicted),
			BaseConfidence:  round2(confidence - input.PatternBoost),
			PatternBoost:    input.PatternBoost,
			FinalConfidence: round2(confidence),
			DecisionPath: []string{
				"derived per-game scoring and concession rates",
				"mapped expected goals to market probabilities",
				"applied pattern confidence boost",
			},
		},
	}

	if confidence < 45 {
		enhanced.PredictionStatus = StatusUncertain
	}

	if confidence > e.cfg.BlockConfidence {
		cutoff := now.Add(-e.cfg.BlockLookback)
		for i := len(history) - 1; i >= 0; i-- {
			prior := history[i]
			if prior.CreatedAt.Before(cutoff) {
				continue
			}
			if prior.PredictedOutcome == predicted && prior.ConfidenceScore > e.cfg.BlockConfidence && !prior.WasCorrect {
				enhanced.PredictionStatus = StatusBlocked
				enhanced.OverconfidenceFlag = true
				enhanced.BlockedReason = fmt.Sprintf(
					"high confidence %s prediction failed for this pairing on %s",
					predicted, prior.CreatedAt.Format("2006-01-02"))
				enhanced.ConfidenceScore = round2(math.Min(e.cfg.DowngradeCeiling, confidence*e.cfg.DowngradeMultipler))
				break
			}
		}
	}
	return enhanced, nil
}
