package engine

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PatternDefinition is a named conjunction of conditions over match
// statistics. The engine treats definitions as read-only during detection
// so the same pattern can be evaluated concurrently without locking.
type PatternDefinition struct {
	ID          string                 `json:"id"`
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Category    string                 `json:"category"`
	Conditions  []*ConditionDefinition `json:"conditions"`
	IsTemplate  bool                   `json:"isTemplate"`
	IsPublic    bool                   `json:"isPublic"`
}

// Validate checks the pattern and every condition in it. A pattern with
// zero conditions is invalid and can never produce occurrences.
func (p *PatternDefinition) Validate() error {
	if p.Name == "" {
		return NewValidationError("name", "pattern name is required")
	}
	if len(p.Conditions) == 0 {
		return NewValidationError("conditions", "pattern must have at least one condition")
	}
	for i, cond := range p.Conditions {
		if err := cond.Validate(); err != nil {
			return fmt.Errorf("condition %d: %w", i+1, err)
		}
	}
	return nil
}

// ToJSON serializes the pattern for export. Re-importing the result with
// PatternFromJSON yields an identical definition.
func (p *PatternDefinition) ToJSON() ([]byte, error) {
	return json.Marshal(p)
}

// PatternFromJSON parses an exported pattern definition.
func PatternFromJSON(data []byte) (*PatternDefinition, error) {
	var p PatternDefinition
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse pattern definition: %w", err)
	}
	return &p, nil
}

// PatternOccurrence records that a pattern matched a specific match.
// Occurrences are immutable once created.
type PatternOccurrence struct {
	ID         string                 `json:"id" column:"id" dbtype:"TEXT" primary:"true"`
	PatternID  string                 `json:"patternId" column:"pattern_id" dbtype:"TEXT NOT NULL" index:"true"`
	MatchID    string                 `json:"matchId" column:"match_id" dbtype:"TEXT NOT NULL" index:"true"`
	MatchDate  time.Time              `json:"matchDate" column:"match_date" dbtype:"DATETIME" index:"true"`
	HomeTeam   string                 `json:"homeTeam" column:"home_team" dbtype:"TEXT"`
	AwayTeam   string                 `json:"awayTeam" column:"away_team" dbtype:"TEXT"`
	Confidence float64                `json:"confidence" column:"confidence" dbtype:"REAL DEFAULT 0.0"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

/////////////////////////////////////////////////////////////////////////
////// Pattern matching
/////////////////////////////////////////////////////////////////////////

// MatchesPattern reports whether every condition of the pattern holds for
// the match (logical AND). An empty condition list never matches. A match
// that lacks the data required by a condition's target does not match, and
// is not an error.
func MatchesPattern(pattern *PatternDefinition, match *Match) (bool, error) {
	if len(pattern.Conditions) == 0 {
		return false, nil
	}
	for _, cond := range pattern.Conditions {
		result, ok, err := EvaluateCondition(cond, match)
		if err != nil {
			return false, err
		}
		if !ok || !result {
			return false, nil
		}
	}
	return true, nil
}

// BaseConfidence derives the starting confidence for an occurrence from
// the temporal mix of the pattern's conditions. Fulltime conditions are
// confirmed by the final result and weigh more than halftime ones; a
// pattern made entirely of fulltime conditions starts at 0.9, entirely
// halftime at 0.6.
func BaseConfidence(pattern *PatternDefinition) float64 {
	if len(pattern.Conditions) == 0 {
		return 0
	}
	fulltime := 0
	for _, cond := range pattern.Conditions {
		if cond.target() == TargetFulltime {
			fulltime++
		}
	}
	share := float64(fulltime) / float64(len(pattern.Conditions))
	return 0.6 + 0.3*share
}

// DetectOccurrences evaluates the pattern against a sequence of matches
// and invokes emit for each occurrence as it is found. Each match is
// evaluated independently, so the walk is restartable and safe over an
// unbounded, incrementally ingested collection. Condition errors halt
// detection for this pattern only.
func DetectOccurrences(pattern *PatternDefinition, matches func(yield func(*Match) bool), emit func(*PatternOccurrence)) error {
	if err := pattern.Validate(); err != nil {
		return err
	}
	base := BaseConfidence(pattern)

	var evalErr error
	matches(func(m *Match) bool {
		matched, err := MatchesPattern(pattern, m)
		if err != nil {
			evalErr = fmt.Errorf("pattern %s against match %s: %w", pattern.ID, m.ID, err)
			return false
		}
		if matched {
			emit(&PatternOccurrence{
				ID:         uuid.NewString(),
				PatternID:  pattern.ID,
				MatchID:    m.ID,
				MatchDate:  m.MatchTime,
				HomeTeam:   m.HomeTeam,
				AwayTeam:   m.AwayTeam,
				Confidence: base,
			})
		}
		return true
	})
	return evalErr
}

// DetectOccurrencesInSlice is the eager convenience form of
// DetectOccurrences over an in-memory match slice.
func DetectOccurrencesInSlice(pattern *PatternDefinition, matches []*Match) ([]*PatternOccurrence, error) {
	var occurrences []*PatternOccurrence
	err := DetectOccurrences(pattern, func(yield func(*Match) bool) {
		for _, m := range matches {
			if !yield(m) {
				return
			}
		}
	}, func(o *PatternOccurrence) {
		occurrences = append(occurrences, o)
	})
	if err != nil {
		return nil, err
	}
	return occurrences, nil
}

/////////////////////////////////////////////////////////////////////////
////// Pattern discovery
/////////////////////////////////////////////////////////////////////////

// DiscoverHalftimePatterns mines the match set for half-time scorelines
// that occur with at least minSupport frequency and returns suggested
// pattern definitions for them.
func DiscoverHalftimePatterns(matches []*Match, minSupport float64) []*PatternDefinition {
	if len(matches) == 0 {
		return nil
	}
	counts := make(map[string]int)
	considered := 0
	for _, m := range matches {
		if !m.HasHalfTimeScore() {
			continue
		}
		considered++
		score := fmt.Sprintf("%d-%d", m.HalfTimeHomeGoals, m.HalfTimeAwayGoals)
		counts[score]++
	}
	if considered == 0 {
		return nil
	}

	var patterns []*PatternDefinition
	for score, count := range counts {
		if float64(count)/float64(considered) < minSupport {
			continue
		}
		patterns = append(patterns, &PatternDefinition{
			ID:          uuid.NewString(),
			Name:        fmt.Sprintf("Half-time %s", score),
			Description: fmt.Sprintf("Matches with half-time score %s", score),
			Category:    "discovered",
			Conditions: []*ConditionDefinition{{
				ID:       uuid.NewString(),
				Type:     ConditionHalftimeScore,
				Operator: OpEq,
				Value:    score,
			}},
		})
	}
	return patterns
}
