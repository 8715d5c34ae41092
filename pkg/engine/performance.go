package engine

import (
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Trend directions for pattern performance.
const (
	TrendIncreasing = "increasing"
	TrendDecreasing = "decreasing"
	TrendStable     = "stable"
)

// PatternPerformanceMetrics is the derived, recomputable aggregate for one
// pattern. It is never user-edited; it is rebuilt from the occurrence and
// outcome sets whenever new results are reconciled.
type PatternPerformanceMetrics struct {
	ID                    string    `json:"id" column:"id" dbtype:"TEXT" primary:"true"`
	PatternID             string    `json:"patternId" column:"pattern_id" dbtype:"TEXT NOT NULL" index:"true"`
	SuccessRate           float64   `json:"successRate" column:"success_rate" dbtype:"REAL DEFAULT 0.0"`
	TotalOccurrences      int       `json:"totalOccurrences" column:"total_occurrences" dbtype:"INTEGER DEFAULT 0"`
	SuccessfulPredictions int       `json:"successfulPredictions" column:"successful_predictions" dbtype:"INTEGER DEFAULT 0"`
	TrendDirection        string    `json:"trendDirection" column:"trend_direction" dbtype:"TEXT DEFAULT 'stable'"`
	ReliabilityScore      float64   `json:"reliabilityScore" column:"reliability_score" dbtype:"REAL DEFAULT 0.0"`
	AvgConfidence         float64   `json:"avgConfidence" column:"avg_confidence" dbtype:"REAL DEFAULT 0.0"`
	LastSeenDate          time.Time `json:"lastSeenDate" column:"last_seen_date" dbtype:"DATETIME"`
	CreatedAt             time.Time `json:"createdAt" column:"created_at" dbtype:"DATETIME DEFAULT CURRENT_TIMESTAMP"`
	UpdatedAt             time.Time `json:"updatedAt" column:"updated_at" dbtype:"DATETIME DEFAULT CURRENT_TIMESTAMP"`
}

// EvaluatedOutcome pairs one occurrence with the result of the prediction
// it backed, once the match finished.
type EvaluatedOutcome struct {
	OccurrenceID string    `json:"occurrenceId"`
	MatchDate    time.Time `json:"matchDate"`
	Successful   bool      `json:"successful"`
}

// AggregatorConfig holds the tunables of the performance aggregation.
type AggregatorConfig struct {
	// TrendWindow is the span of the recent window compared against the
	// all-time success rate.
	TrendWindow time.Duration
	// TrendEpsilon is the margin, in percentage points, the recent rate
	// must move before the trend leaves "stable".
	TrendEpsilon float64
	// ReliabilityMidpoint is the occurrence count at which the sample-size
	// discount reaches half strength.
	ReliabilityMidpoint float64
}

// DefaultAggregatorConfig returns the standard aggregation tunables.
func DefaultAggregatorConfig() AggregatorConfig {
	return AggregatorConfig{
		TrendWindow:         30 * 24 * time.Hour,
		TrendEpsilon:        2.0,
		ReliabilityMidpoint: 20.0,
	}
}

// PerformanceAggregator folds occurrences and evaluated outcomes into
// PatternPerformanceMetrics. All methods are pure functions of their
// inputs; recomputation from the same sets always yields the same metrics.
type PerformanceAggregator struct {
	cfg AggregatorConfig
	now func() time.Time
}

// NewPerformanceAggregator creates an aggregator with the given config.
func NewPerformanceAggregator(cfg AggregatorConfig) *PerformanceAggregator {
	return &PerformanceAggregator{cfg: cfg, now: time.Now}
}

// WithClock overrides the time source, used by trend tests.
func (a *PerformanceAggregator) WithClock(now func() time.Time) *PerformanceAggregator {
	a.now = now
	return a
}

// Recompute rebuilds the metrics for one pattern from scratch.
func (a *PerformanceAggregator) Recompute(patternID string, occurrences []*PatternOccurrence, outcomes []*EvaluatedOutcome) *PatternPerformanceMetrics {
	m := &PatternPerformanceMetrics{
		ID:             uuid.NewString(),
		PatternID:      patternID,
		TrendDirection: TrendStable,
	}

	var confidenceSum float64
	for _, occ := range occurrences {
		m.TotalOccurrences++
		confidenceSum += occ.Confidence
		if occ.MatchDate.After(m.LastSeenDate) {
			m.LastSeenDate = occ.MatchDate
		}
	}
	if m.TotalOccurrences > 0 {
		m.AvgConfidence = confidenceSum / float64(m.TotalOccurrences)
	}

	for _, out := range outcomes {
		if out.Successful {
			m.SuccessfulPredictions++
		}
	}
	// The outcome set never outgrows the occurrence set; clamp defensively
	// against duplicated outcome rows so the invariant holds regardless.
	if m.SuccessfulPredictions > m.TotalOccurrences {
		m.SuccessfulPredictions = m.TotalOccurrences
	}

	m.SuccessRate = successRate(m.SuccessfulPredictions, m.TotalOccurrences)
	m.ReliabilityScore = a.reliabilityScore(m.SuccessRate, m.TotalOccurrences)
	m.TrendDirection = a.trendDirection(outcomes, m.SuccessRate)

	now := a.now()
	m.CreatedAt = now
	m.UpdatedAt = now
	return m
}

func successRate(successful, total int) float64 {
	if total == 0 {
		return 0
	}
	return 100 * float64(successful) / float64(total)
}

// reliabilityScore maps success rate and sample size to [0,10]. The
// success-rate axis contributes linearly; the sample-size axis applies a
// logistic discount n/(n+midpoint) so a high rate on a thin sample scores
// below the same rate on a large one, saturating toward 10.
func (a *PerformanceAggregator) reliabilityScore(rate float64, total int) float64 {
	if total == 0 {
		return 0
	}
	sizeFactor := float64(total) / (float64(total) + a.cfg.ReliabilityMidpoint)
	score := (rate / 100.0) * sizeFactor * 10.0
	return math.Min(10.0, score)
}

// trendDirection compares the success rate inside the recent window
// against the all-time rate, using recorded match timestamps rather than
// arrival order so the result is deterministic for a fixed outcome set.
func (a *PerformanceAggregator) trendDirection(outcomes []*EvaluatedOutcome, allTimeRate float64) string {
	cutoff := a.now().Add(-a.cfg.TrendWindow)
	recentTotal, recentSuccess := 0, 0
	for _, out := range outcomes {
		if out.MatchDate.Before(cutoff) {
			continue
		}
		recentTotal++
		if out.Successful {
			recentSuccess++
		}
	}
	if recentTotal == 0 {
		return TrendStable
	}
	recentRate := successRate(recentSuccess, recentTotal)
	switch {
	case recentRate > allTimeRate+a.cfg.TrendEpsilon:
		return TrendIncreasing
	case recentRate < allTimeRate-a.cfg.TrendEpsilon:
		return TrendDecreasing
	default:
		return TrendStable
	}
}

/////////////////////////////////////////////////////////////////////////
////// Parallel partial aggregation
/////////////////////////////////////////////////////////////////////////

// PartialAggregate is the associative, commutative intermediate form of
// the fold, so occurrence sets can be aggregated in parallel shards and
// merged afterward.
type PartialAggregate struct {
	Occurrences   int
	Successes     int
	Outcomes      int
	ConfidenceSum float64
	LastSeen      time.Time
}

// Fold accumulates a shard of occurrences and outcomes.
func (p *PartialAggregate) Fold(occurrences []*PatternOccurrence, outcomes []*EvaluatedOutcome) {
	for _, occ := range occurrences {
		p.Occurrences++
		p.ConfidenceSum += occ.Confidence
		if occ.MatchDate.After(p.LastSeen) {
			p.LastSeen = occ.MatchDate
		}
	}
	for _, out := range outcomes {
		p.Outcomes++
		if out.Successful {
			p.Successes++
		}
	}
}

// Merge combines another partial into this one.
func (p *PartialAggregate) Merge(other PartialAggregate) {
	p.Occurrences += other.Occurrences
	p.Successes += other.Successes
	p.Outcomes += other.Outcomes
	p.ConfidenceSum += other.ConfidenceSum
	if other.LastSeen.After(p.LastSeen) {
		p.LastSeen = other.LastSeen
	}
}

// Finalize converts the merged partial into metrics. Trend requires the
// full outcome set and is reported stable here; callers needing trend use
// Recompute over the complete set.
func (a *PerformanceAggregator) Finalize(patternID string, p PartialAggregate) *PatternPerformanceMetrics {
	m := &PatternPerformanceMetrics{
		ID:                    uuid.NewString(),
		PatternID:             patternID,
		TotalOccurrences:      p.Occurrences,
		SuccessfulPredictions: p.Successes,
		TrendDirection:        TrendStable,
		LastSeenDate:          p.LastSeen,
	}
	if p.Successes > p.Occurrences {
		m.SuccessfulPredictions = p.Occurrences
	}
	if p.Occurrences > 0 {
		m.AvgConfidence = p.ConfidenceSum / float64(p.Occurrences)
	}
	m.SuccessRate = successRate(m.SuccessfulPredictions, m.TotalOccurrences)
	m.ReliabilityScore = a.reliabilityScore(m.SuccessRate, m.TotalOccurrences)
	now := a.now()
	m.CreatedAt = now
	m.UpdatedAt = now
	return m
}

/////////////////////////////////////////////////////////////////////////
////// Pattern frequency analysis
/////////////////////////////////////////////////////////////////////////

// PatternAnalysis summarizes how often a pattern occurred over a match set.
type PatternAnalysis struct {
	PatternID          string     `json:"patternId"`
	PatternName        string     `json:"patternName"`
	Occurrences        int        `json:"occurrences"`
	TotalMatches       int        `json:"totalMatches"`
	Frequency          float64    `json:"frequency"`
	ConfidenceInterval [2]float64 `json:"confidenceInterval"`
}

// AnalyzePattern runs detection over the match set and reports frequency
// with a 95% normal-approximation confidence interval.
func AnalyzePattern(pattern *PatternDefinition, matches []*Match) (*PatternAnalysis, error) {
	occurrences, err := DetectOccurrencesInSlice(pattern, matches)
	if err != nil {
		return nil, err
	}
	total := len(matches)
	frequency := 0.0
	if total > 0 {
		frequency = float64(len(occurrences)) / float64(total)
	}
	lo, hi := ConfidenceInterval(frequency, total)
	return &PatternAnalysis{
		PatternID:          pattern.ID,
		PatternName:        pattern.Name,
		Occurrences:        len(occurrences),
		TotalMatches:       total,
		Frequency:          frequency,
		ConfidenceInterval: [2]float64{lo, hi},
	}, nil
}

// ConfidenceInterval computes the 95% normal-approximation interval for a
// proportion, clamped to [0,1]. Zero sample size yields [0,0].
func ConfidenceInterval(proportion float64, sampleSize int) (float64, float64) {
	if sampleSize == 0 {
		return 0, 0
	}
	const z = 1.96
	margin := z * math.Sqrt(proportion*(1-proportion)/float64(sampleSize))
	return math.Max(0, proportion-margin), math.Min(1, proportion+margin)
}

// SortOccurrencesByDate orders occurrences oldest first. Aggregation does
// not depend on order; the sort exists for stable presentation.
func SortOccurrencesByDate(occurrences []*PatternOccurrence) {
	sort.Slice(occurrences, func(i, j int) bool {
		return occurrences[i].MatchDate.Before(occurrences[j].MatchDate)
	})
}
