package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/winmix/analytics/pkg/engine"
)

// Table names.
const (
	TableMatches     = "matches"
	TablePatterns    = "patterns"
	TableOccurrences = "pattern_occurrences"
	TableMetrics     = "pattern_performance"
	TablePredictions = "predictions"
	TableAccuracy    = "pattern_accuracy"
	TableSuggestions = "retrain_suggestions"
	TableComparisons = "model_comparisons"
)

// Stores bundles the typed stores over one database.
type Stores struct {
	Matches     *MatchStore
	Patterns    *PatternStore
	Occurrences *OccurrenceStore
	Metrics     *MetricsStore
	Predictions *PredictionStore
	Accuracy    *AccuracyStore
	Suggestions *SuggestionStore
	Comparisons *ComparisonStore
}

// NewStores creates all typed stores and their tables.
func NewStores(db *DB) (*Stores, error) {
	s := &Stores{
		Matches:     &MatchStore{db: db},
		Patterns:    &PatternStore{db: db},
		Occurrences: &OccurrenceStore{db: db},
		Metrics:     &MetricsStore{db: db},
		Predictions: &PredictionStore{db: db},
		Accuracy:    &AccuracyStore{db: db},
		Suggestions: &SuggestionStore{db: db},
		Comparisons: &ComparisonStore{db: db},
	}
	for table, prototype := range map[string]interface{}{
		TableMatches:     &engine.Match{},
		TablePatterns:    &patternRow{},
		TableOccurrences: &engine.PatternOccurrence{},
		TableMetrics:     &engine.PatternPerformanceMetrics{},
		TablePredictions: &engine.PredictionRecord{},
		TableAccuracy:    &engine.PatternAccuracy{},
		TableSuggestions: &engine.RetrainSuggestion{},
		TableComparisons: &engine.ModelComparisonResult{},
	} {
		if err := db.CreateTable(table, prototype); err != nil {
			return nil, err
		}
	}
	return s, nil
}

/////////////////////////////////////////////////////////////////////////
////// Matches
/////////////////////////////////////////////////////////////////////////

// MatchStore persists matches.
type MatchStore struct {
	db *DB
}

func (s *MatchStore) Save(m *engine.Match) error {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	m.UpdatedAt = time.Now()
	return s.db.Save(TableMatches, m)
}

// SaveAll stores a batch of matches in one transaction.
func (s *MatchStore) SaveAll(matches []*engine.Match) error {
	now := time.Now()
	records := make([]interface{}, 0, len(matches))
	for _, m := range matches {
		if m.CreatedAt.IsZero() {
			m.CreatedAt = now
		}
		m.UpdatedAt = now
		records = append(records, m)
	}
	return s.db.SaveAll(TableMatches, records)
}

func (s *MatchStore) Get(id string) (*engine.Match, error) {
	m := engine.NewMatch()
	found, err := s.db.FindOne(TableMatches, m, "id = ?", id)
	if err != nil || !found {
		return nil, err
	}
	return m, nil
}

// All returns every stored match, oldest first.
func (s *MatchStore) All() ([]*engine.Match, error) {
	return s.find("1 = 1 ORDER BY match_time ASC")
}

// ByTeam returns matches where the team played on either side.
func (s *MatchStore) ByTeam(team string) ([]*engine.Match, error) {
	return s.find("home_team = ? OR away_team = ? ORDER BY match_time ASC", team, team)
}

// Finished returns matches with a known full-time score.
func (s *MatchStore) Finished() ([]*engine.Match, error) {
	return s.find("full_time_home_goals >= 0 AND full_time_away_goals >= 0 ORDER BY match_time ASC")
}

func (s *MatchStore) find(whereClause string, args ...interface{}) ([]*engine.Match, error) {
	var matches []*engine.Match
	err := s.db.FindWhere(TableMatches, &engine.Match{}, func(r interface{}) {
		matches = append(matches, r.(*engine.Match))
	}, whereClause, args...)
	return matches, err
}

/////////////////////////////////////////////////////////////////////////
////// Patterns
/////////////////////////////////////////////////////////////////////////

// patternRow is the storage shape of a pattern definition. The condition
// list is structural rather than relational, so it is held as one JSON
// column instead of a join table.
type patternRow struct {
	ID          string `column:"id" dbtype:"TEXT" primary:"true"`
	Name        string `column:"name" dbtype:"TEXT NOT NULL"`
	Description string `column:"description" dbtype:"TEXT"`
	Category    string `column:"category" dbtype:"TEXT" index:"true"`
	Conditions  string `column:"conditions" dbtype:"TEXT NOT NULL"`
	IsTemplate  bool   `column:"is_template" dbtype:"INTEGER DEFAULT 0"`
	IsPublic    bool   `column:"is_public" dbtype:"INTEGER DEFAULT 0"`
}

func rowFromPattern(p *engine.PatternDefinition) (*patternRow, error) {
	conditions, err := json.Marshal(p.Conditions)
	if err != nil {
		return nil, fmt.Errorf("failed to encode conditions for pattern %s: %w", p.ID, err)
	}
	return &patternRow{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Category:    p.Category,
		Conditions:  string(conditions),
		IsTemplate:  p.IsTemplate,
		IsPublic:    p.IsPublic,
	}, nil
}

func (r *patternRow) pattern() (*engine.PatternDefinition, error) {
	var conditions []*engine.ConditionDefinition
	if err := json.Unmarshal([]byte(r.Conditions), &conditions); err != nil {
		return nil, fmt.Errorf("failed to decode conditions for pattern %s: %w", r.ID, err)
	}
	return &engine.PatternDefinition{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		Category:    r.Category,
		Conditions:  conditions,
		IsTemplate:  r.IsTemplate,
		IsPublic:    r.IsPublic,
	}, nil
}

// PatternStore persists pattern definitions.
type PatternStore struct {
	db *DB
}

func (s *PatternStore) Save(p *engine.PatternDefinition) error {
	row, err := rowFromPattern(p)
	if err != nil {
		return err
	}
	return s.db.Save(TablePatterns, row)
}

func (s *PatternStore) Get(id string) (*engine.PatternDefinition, error) {
	var row patternRow
	found, err := s.db.FindOne(TablePatterns, &row, "id = ?", id)
	if err != nil || !found {
		return nil, err
	}
	return row.pattern()
}

func (s *PatternStore) All() ([]*engine.PatternDefinition, error) {
	return s.find("")
}

// Templates returns the reusable template patterns.
func (s *PatternStore) Templates() ([]*engine.PatternDefinition, error) {
	return s.find("is_template = 1")
}

func (s *PatternStore) find(whereClause string, args ...interface{}) ([]*engine.PatternDefinition, error) {
	var patterns []*engine.PatternDefinition
	var decodeErr error
	err := s.db.FindWhere(TablePatterns, &patternRow{}, func(r interface{}) {
		p, err := r.(*patternRow).pattern()
		if err != nil {
			decodeErr = err
			return
		}
		patterns = append(patterns, p)
	}, whereClause, args...)
	if err != nil {
		return nil, err
	}
	if decodeErr != nil {
		return nil, decodeErr
	}
	return patterns, nil
}

func (s *PatternStore) Delete(id string) error {
	return s.db.Exec(fmt.Sprintf("DELETE FROM %s WHERE id = ?", TablePatterns), id)
}

/////////////////////////////////////////////////////////////////////////
////// Occurrences and performance metrics
/////////////////////////////////////////////////////////////////////////

// OccurrenceStore persists pattern occurrences.
type OccurrenceStore struct {
	db *DB
}

func (s *OccurrenceStore) Save(o *engine.PatternOccurrence) error {
	return s.db.Save(TableOccurrences, o)
}

func (s *OccurrenceStore) SaveAll(occurrences []*engine.PatternOccurrence) error {
	records := make([]interface{}, 0, len(occurrences))
	for _, o := range occurrences {
		records = append(records, o)
	}
	return s.db.SaveAll(TableOccurrences, records)
}

// ByPattern returns the occurrences of one pattern, oldest first.
func (s *OccurrenceStore) ByPattern(patternID string) ([]*engine.PatternOccurrence, error) {
	var occurrences []*engine.PatternOccurrence
	err := s.db.FindWhere(TableOccurrences, &engine.PatternOccurrence{}, func(r interface{}) {
		occurrences = append(occurrences, r.(*engine.PatternOccurrence))
	}, "pattern_id = ? ORDER BY match_date ASC", patternID)
	return occurrences, err
}

// ByMatch returns every occurrence detected for one match.
func (s *OccurrenceStore) ByMatch(matchID string) ([]*engine.PatternOccurrence, error) {
	var occurrences []*engine.PatternOccurrence
	err := s.db.FindWhere(TableOccurrences, &engine.PatternOccurrence{}, func(r interface{}) {
		occurrences = append(occurrences, r.(*engine.PatternOccurrence))
	}, "match_id = ?", matchID)
	return occurrences, err
}

// MetricsStore persists derived performance metrics, one row per pattern.
type MetricsStore struct {
	db *DB
}

// Save replaces the stored metrics for the pattern; the aggregate is
// recomputable so the previous row has no value worth keeping.
func (s *MetricsStore) Save(m *engine.PatternPerformanceMetrics) error {
	if err := s.db.Exec(fmt.Sprintf("DELETE FROM %s WHERE pattern_id = ?", TableMetrics), m.PatternID); err != nil {
		return err
	}
	return s.db.Save(TableMetrics, m)
}

func (s *MetricsStore) ByPattern(patternID string) (*engine.PatternPerformanceMetrics, error) {
	var m engine.PatternPerformanceMetrics
	found, err := s.db.FindOne(TableMetrics, &m, "pattern_id = ?", patternID)
	if err != nil || !found {
		return nil, err
	}
	return &m, nil
}

/////////////////////////////////////////////////////////////////////////
////// Predictions and reconciliation
/////////////////////////////////////////////////////////////////////////

// PredictionStore persists prediction records.
type PredictionStore struct {
	db *DB
}

func (s *PredictionStore) Save(p *engine.PredictionRecord) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	return s.db.Save(TablePredictions, p)
}

func (s *PredictionStore) Get(id string) (*engine.PredictionRecord, error) {
	var p engine.PredictionRecord
	found, err := s.db.FindOne(TablePredictions, &p, "id = ?", id)
	if err != nil || !found {
		return nil, err
	}
	return &p, nil
}

// ByMatch returns every prediction for the fixture, oldest first.
func (s *PredictionStore) ByMatch(matchID string) ([]*engine.PredictionRecord, error) {
	return s.find("match_id = ? ORDER BY created_at ASC", matchID)
}

// Unevaluated returns predictions for the match that have no actual
// outcome recorded yet.
func (s *PredictionStore) Unevaluated(matchID string) ([]*engine.PredictionRecord, error) {
	return s.find("match_id = ? AND actual_outcome = ''", matchID)
}

// Since returns predictions created at or after the cutoff.
func (s *PredictionStore) Since(cutoff time.Time) ([]*engine.PredictionRecord, error) {
	return s.find("created_at >= ? ORDER BY created_at ASC", cutoff)
}

// RecentFailure reports whether a high-confidence prediction for the same
// fixture failed within the lookback window.
func (s *PredictionStore) RecentFailure(matchID string, since time.Time) (bool, error) {
	count, err := s.db.Count(TablePredictions,
		"match_id = ? AND actual_outcome != '' AND was_correct = 0 AND created_at >= ?", matchID, since)
	return count > 0, err
}

func (s *PredictionStore) find(whereClause string, args ...interface{}) ([]*engine.PredictionRecord, error) {
	var predictions []*engine.PredictionRecord
	err := s.db.FindWhere(TablePredictions, &engine.PredictionRecord{}, func(r interface{}) {
		predictions = append(predictions, r.(*engine.PredictionRecord))
	}, whereClause, args...)
	return predictions, err
}

// AccuracyStore persists per-template accuracy counters.
type AccuracyStore struct {
	db *DB
}

func (s *AccuracyStore) Save(a *engine.PatternAccuracy) error {
	return s.db.Save(TableAccuracy, a)
}

// Get returns the counters for a template, creating a zeroed record when
// none is stored yet.
func (s *AccuracyStore) Get(templateID string) (*engine.PatternAccuracy, error) {
	var a engine.PatternAccuracy
	found, err := s.db.FindOne(TableAccuracy, &a, "template_id = ?", templateID)
	if err != nil {
		return nil, err
	}
	if !found {
		return &engine.PatternAccuracy{TemplateID: templateID}, nil
	}
	return &a, nil
}

/////////////////////////////////////////////////////////////////////////
////// Retrain suggestions and model comparisons
/////////////////////////////////////////////////////////////////////////

// SuggestionStore persists retrain suggestions.
type SuggestionStore struct {
	db *DB
}

func (s *SuggestionStore) Save(suggestion *engine.RetrainSuggestion) error {
	return s.db.Save(TableSuggestions, suggestion)
}

// HasPending reports whether an unresolved suggestion exists. The monitor
// consults this before emitting, keeping the check idempotent.
func (s *SuggestionStore) HasPending() (bool, error) {
	count, err := s.db.Count(TableSuggestions, "status = 'pending'")
	return count > 0, err
}

// Resolve marks a suggestion as handled.
func (s *SuggestionStore) Resolve(id, status string) error {
	return s.db.Exec(fmt.Sprintf("UPDATE %s SET status = ? WHERE id = ?", TableSuggestions), status, id)
}

// All returns every suggestion, newest first.
func (s *SuggestionStore) All() ([]*engine.RetrainSuggestion, error) {
	var suggestions []*engine.RetrainSuggestion
	err := s.db.FindWhere(TableSuggestions, &engine.RetrainSuggestion{}, func(r interface{}) {
		suggestions = append(suggestions, r.(*engine.RetrainSuggestion))
	}, "1 = 1 ORDER BY created_at DESC")
	return suggestions, err
}

// ComparisonStore persists model comparison results.
type ComparisonStore struct {
	db *DB
}

func (s *ComparisonStore) Save(c *engine.ModelComparisonResult) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	return s.db.Save(TableComparisons, c)
}

// All returns every stored comparison, newest first.
func (s *ComparisonStore) All() ([]*engine.ModelComparisonResult, error) {
	var comparisons []*engine.ModelComparisonResult
	err := s.db.FindWhere(TableComparisons, &engine.ModelComparisonResult{}, func(r interface{}) {
		comparisons = append(comparisons, r.(*engine.ModelComparisonResult))
	}, "1 = 1 ORDER BY created_at DESC")
	return comparisons, err
}
