package engine

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Score targets a condition can be evaluated against.
const (
	TargetHalftime = "halftime"
	TargetFulltime = "fulltime"
)

// Outcome labels for the 1X2 market.
const (
	OutcomeHomeWin = "home_win"
	OutcomeDraw    = "draw"
	OutcomeAwayWin = "away_win"
)

// Match represents one played or scheduled fixture. Goal fields default to
// -1 meaning "unknown" so that a legitimate 0 is distinguishable from
// missing data. Field names on the wire are fixed for storage compatibility.
type Match struct {
	ID        string    `json:"id" column:"id" dbtype:"TEXT" primary:"true" index:"true"`
	MatchTime time.Time `json:"match_time" column:"match_time" dbtype:"DATETIME" index:"true"`
	HomeTeam  string    `json:"home_team" column:"home_team" dbtype:"TEXT NOT NULL" index:"true"`
	AwayTeam  string    `json:"away_team" column:"away_team" dbtype:"TEXT NOT NULL" index:"true"`

	HalfTimeHomeGoals int `json:"half_time_home_goals" column:"half_time_home_goals" dbtype:"INTEGER DEFAULT -1"`
	HalfTimeAwayGoals int `json:"half_time_away_goals" column:"half_time_away_goals" dbtype:"INTEGER DEFAULT -1"`
	FullTimeHomeGoals int `json:"full_time_home_goals" column:"full_time_home_goals" dbtype:"INTEGER DEFAULT -1"`
	FullTimeAwayGoals int `json:"full_time_away_goals" column:"full_time_away_goals" dbtype:"INTEGER DEFAULT -1"`

	Round   string `json:"round,omitempty" column:"round" dbtype:"TEXT"`
	League  string `json:"league,omitempty" column:"league" dbtype:"TEXT" index:"true"`
	Venue   string `json:"venue,omitempty" column:"venue" dbtype:"TEXT"`
	Referee string `json:"referee,omitempty" column:"referee" dbtype:"TEXT"`

	Status string `json:"status,omitempty" column:"status" dbtype:"TEXT"`

	CreatedAt time.Time `json:"created_at" column:"created_at" dbtype:"DATETIME DEFAULT CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `json:"updated_at" column:"updated_at" dbtype:"DATETIME DEFAULT CURRENT_TIMESTAMP"`
}

// NewMatch creates a Match with sentinel defaults for all goal fields.
func NewMatch() *Match {
	return &Match{
		HalfTimeHomeGoals: -1,
		HalfTimeAwayGoals: -1,
		FullTimeHomeGoals: -1,
		FullTimeAwayGoals: -1,
	}
}

// HasFullTimeScore reports whether the final score is known.
func (m *Match) HasFullTimeScore() bool {
	return m.FullTimeHomeGoals >= 0 && m.FullTimeAwayGoals >= 0
}

// HasHalfTimeScore reports whether the half-time score is known.
func (m *Match) HasHalfTimeScore() bool {
	return m.HalfTimeHomeGoals >= 0 && m.HalfTimeAwayGoals >= 0
}

// IsFinished checks if the match is completed
func (m *Match) IsFinished() bool {
	return m.Status == "finished" || m.HasFullTimeScore()
}

// ActualOutcome returns the 1X2 outcome of a finished match, or "" when
// the final score is unknown.
func (m *Match) ActualOutcome() string {
	if !m.HasFullTimeScore() {
		return ""
	}
	switch {
	case m.FullTimeHomeGoals > m.FullTimeAwayGoals:
		return OutcomeHomeWin
	case m.FullTimeHomeGoals < m.FullTimeAwayGoals:
		return OutcomeAwayWin
	default:
		return OutcomeDraw
	}
}

// Validate checks score coherence. A half-time score exceeding the
// full-time score is reported as a warning, never a rejection; the import
// leniency policy is deliberate.
func (m *Match) Validate() []*DataInconsistencyWarning {
	var warnings []*DataInconsistencyWarning
	if m.HasFullTimeScore() && m.HasHalfTimeScore() {
		if m.HalfTimeHomeGoals > m.FullTimeHomeGoals {
			warnings = append(warnings, &DataInconsistencyWarning{
				MatchID: m.ID,
				Detail: fmt.Sprintf("half-time home goals %d exceed full-time %d",
					m.HalfTimeHomeGoals, m.FullTimeHomeGoals),
			})
		}
		if m.HalfTimeAwayGoals > m.FullTimeAwayGoals {
			warnings = append(warnings, &DataInconsistencyWarning{
				MatchID: m.ID,
				Detail: fmt.Sprintf("half-time away goals %d exceed full-time %d",
					m.HalfTimeAwayGoals, m.FullTimeAwayGoals),
			})
		}
	}
	return warnings
}

/////////////////////////////////////////////////////////////////////////
////// Derived statistics views
/////////////////////////////////////////////////////////////////////////

// MatchStats is the derived view of one match at a given target, used by
// condition evaluation. GoalDifference is the absolute gap; the signed
// per-side differences carry direction.
type MatchStats struct {
	HomeGoals      int `json:"home_goals"`
	AwayGoals      int `json:"away_goals"`
	HomeGoalDiff   int `json:"home_goal_diff"`
	AwayGoalDiff   int `json:"away_goal_diff"`
	TotalGoals     int `json:"total_goals"`
	GoalDifference int `json:"goal_difference"`
}

// StatsAt computes the derived stats for the requested target. Returns
// false when the match lacks the required score, in which case the match
// should be skipped for that target rather than treated as a non-match.
func (m *Match) StatsAt(target string) (MatchStats, bool) {
	var home, away int
	switch target {
	case TargetHalftime:
		if !m.HasHalfTimeScore() {
			return MatchStats{}, false
		}
		home, away = m.HalfTimeHomeGoals, m.HalfTimeAwayGoals
	case TargetFulltime:
		if !m.HasFullTimeScore() {
			return MatchStats{}, false
		}
		home, away = m.FullTimeHomeGoals, m.FullTimeAwayGoals
	default:
		return MatchStats{}, false
	}

	diff := home - away
	abs := diff
	if abs < 0 {
		abs = -abs
	}
	return MatchStats{
		HomeGoals:      home,
		AwayGoals:      away,
		HomeGoalDiff:   diff,
		AwayGoalDiff:   -diff,
		TotalGoals:     home + away,
		GoalDifference: abs,
	}, true
}

/////////////////////////////////////////////////////////////////////////
////// Wire parsing with alias normalization
/////////////////////////////////////////////////////////////////////////

// ParseMatchJSON parses a JSON match record, accepting both the canonical
// field names and the normalized aliases used by older exports
// (date, home_score, away_score, ht_home_score, ht_away_score).
// Aliases are consulted only when the canonical field is absent.
func ParseMatchJSON(data []byte) (*Match, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse match record: %w", err)
	}
	return matchFromRaw(raw)
}

func matchFromRaw(raw map[string]interface{}) (*Match, error) {
	m := NewMatch()

	if id, ok := raw["id"].(string); ok {
		m.ID = id
	}
	m.HomeTeam = stringField(raw, "home_team")
	m.AwayTeam = stringField(raw, "away_team")
	m.Round = stringField(raw, "round")
	m.League = stringField(raw, "league")
	m.Venue = stringField(raw, "venue")
	m.Referee = stringField(raw, "referee")
	m.Status = stringField(raw, "status")

	if t, ok := timeField(raw, "match_time", "date"); ok {
		m.MatchTime = t
	}

	var err error
	if m.HalfTimeHomeGoals, err = goalField(raw, "half_time_home_goals", "ht_home_score"); err != nil {
		return nil, err
	}
	if m.HalfTimeAwayGoals, err = goalField(raw, "half_time_away_goals", "ht_away_score"); err != nil {
		return nil, err
	}
	if m.FullTimeHomeGoals, err = goalField(raw, "full_time_home_goals", "home_score"); err != nil {
		return nil, err
	}
	if m.FullTimeAwayGoals, err = goalField(raw, "full_time_away_goals", "away_score"); err != nil {
		return nil, err
	}

	if m.HomeTeam == "" || m.AwayTeam == "" {
		return nil, NewValidationError("home_team/away_team", "both team names are required")
	}
	return m, nil
}

func stringField(raw map[string]interface{}, key string) string {
	if v, ok := raw[key].(string); ok {
		return v
	}
	return ""
}

func timeField(raw map[string]interface{}, key, alias string) (time.Time, bool) {
	for _, k := range []string{key, alias} {
		s, ok := raw[k].(string)
		if !ok || s == "" {
			continue
		}
		for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
			if t, err := time.Parse(layout, s); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

// goalField reads a goal count from the canonical key, falling back to the
// alias. Absent values yield -1. Un-parseable values are a validation
// error; goal strings must have been validated at the ingestion boundary.
func goalField(raw map[string]interface{}, key, alias string) (int, error) {
	v, ok := raw[key]
	if !ok {
		v, ok = raw[alias]
	}
	if !ok || v == nil {
		return -1, nil
	}
	switch g := v.(type) {
	case float64:
		return int(g), nil
	case string:
		n, err := strconv.Atoi(g)
		if err != nil {
			return -1, NewValidationError(key, fmt.Sprintf("non-numeric goal value %q", g))
		}
		return n, nil
	default:
		return -1, NewValidationError(key, fmt.Sprintf("unsupported goal value type %T", v))
	}
}
