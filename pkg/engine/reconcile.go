package engine

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// PredictionRecord is the stored prediction row consulted and updated
// during reconciliation.
type PredictionRecord struct {
	ID               string    `json:"id" column:"id" dbtype:"TEXT" primary:"true"`
	MatchID          string    `json:"match_id" column:"match_id" dbtype:"TEXT NOT NULL" index:"true"`
	PredictedOutcome string    `json:"predicted_outcome" column:"predicted_outcome" dbtype:"TEXT NOT NULL"`
	ConfidenceScore  float64   `json:"confidence_score" column:"confidence_score" dbtype:"REAL DEFAULT 0.0"`
	ActualOutcome    string    `json:"actual_outcome,omitempty" column:"actual_outcome" dbtype:"TEXT"`
	WasCorrect       bool      `json:"was_correct" column:"was_correct" dbtype:"INTEGER DEFAULT 0"`
	CalibrationError float64   `json:"calibration_error" column:"calibration_error" dbtype:"REAL DEFAULT 0.0"`
	EvaluatedAt      time.Time `json:"evaluated_at,omitempty" column:"evaluated_at" dbtype:"DATETIME"`
	CreatedAt        time.Time `json:"created_at" column:"created_at" dbtype:"DATETIME DEFAULT CURRENT_TIMESTAMP" index:"true"`
}

// Evaluated reports whether the prediction has been reconciled against an
// actual outcome.
func (p *PredictionRecord) Evaluated() bool {
	return p.ActualOutcome != ""
}

// ReconcileResult is the outcome of comparing one prediction against the
// actual result.
type ReconcileResult struct {
	WasCorrect       bool    `json:"wasCorrect"`
	CalibrationError float64 `json:"calibrationError"`
}

// PatternAccuracy tracks prediction accuracy for one pattern template.
type PatternAccuracy struct {
	TemplateID         string  `json:"template_id" column:"template_id" dbtype:"TEXT" primary:"true"`
	TotalPredictions   int     `json:"total_predictions" column:"total_predictions" dbtype:"INTEGER DEFAULT 0"`
	CorrectPredictions int     `json:"correct_predictions" column:"correct_predictions" dbtype:"INTEGER DEFAULT 0"`
	AccuracyRate       float64 `json:"accuracy_rate" column:"accuracy_rate" dbtype:"REAL DEFAULT 0.0"`
}

// Record folds one evaluated outcome into the accuracy counters.
func (a *PatternAccuracy) Record(wasCorrect bool) {
	a.TotalPredictions++
	if wasCorrect {
		a.CorrectPredictions++
	}
	a.AccuracyRate = math.Round(successRate(a.CorrectPredictions, a.TotalPredictions)*100) / 100
}

// Reconcile compares a prediction against the actual outcome. Correctness
// is exact categorical equality; the calibration error is the absolute gap
// between the stated confidence, as a probability, and the realized binary
// outcome.
func Reconcile(prediction *PredictionRecord, actualOutcome string) ReconcileResult {
	wasCorrect := prediction.PredictedOutcome == actualOutcome
	realized := 0.0
	if wasCorrect {
		realized = 1.0
	}
	calibration := math.Abs(prediction.ConfidenceScore/100 - realized)
	return ReconcileResult{
		WasCorrect:       wasCorrect,
		CalibrationError: math.Round(calibration*10000) / 10000,
	}
}

// ApplyReconciliation writes the reconcile result back onto the prediction
// record and folds it into the accuracy counters of every pattern detected
// for that match.
func ApplyReconciliation(prediction *PredictionRecord, actualOutcome string, patterns []*PatternAccuracy, evaluatedAt time.Time) ReconcileResult {
	result := Reconcile(prediction, actualOutcome)
	prediction.ActualOutcome = actualOutcome
	prediction.WasCorrect = result.WasCorrect
	prediction.CalibrationError = result.CalibrationError
	prediction.EvaluatedAt = evaluatedAt
	for _, p := range patterns {
		p.Record(result.WasCorrect)
	}
	return result
}

/////////////////////////////////////////////////////////////////////////
////// Rolling accuracy monitor
/////////////////////////////////////////////////////////////////////////

// RetrainSuggestion is the signal emitted when rolling accuracy falls
// below the monitor threshold.
type RetrainSuggestion struct {
	ID         string    `json:"id" column:"id" dbtype:"TEXT" primary:"true"`
	WindowDays int       `json:"window_days" column:"window_days" dbtype:"INTEGER DEFAULT 7"`
	Accuracy   float64   `json:"accuracy" column:"accuracy" dbtype:"REAL DEFAULT 0.0"`
	SampleSize int       `json:"sample_size" column:"sample_size" dbtype:"INTEGER DEFAULT 0"`
	Status     string    `json:"status" column:"status" dbtype:"TEXT DEFAULT 'pending'" index:"true"`
	Notes      string    `json:"notes" column:"notes" dbtype:"TEXT"`
	CreatedAt  time.Time `json:"created_at" column:"created_at" dbtype:"DATETIME DEFAULT CURRENT_TIMESTAMP"`
}

// MonitorConfig holds the rolling accuracy monitor tunables.
type MonitorConfig struct {
	WindowDays        int
	AccuracyThreshold float64
	MinimumSample     int
}

// DefaultMonitorConfig returns the standard monitor thresholds: a 7 day
// window, 70% accuracy floor and at least 10 evaluated predictions.
func DefaultMonitorConfig() MonitorConfig {
	return MonitorConfig{
		WindowDays:        7,
		AccuracyThreshold: 70.0,
		MinimumSample:     10,
	}
}

// AccuracyMonitor computes trailing window accuracy and decides whether a
// retrain suggestion is warranted. The decision is idempotent: while a
// pending suggestion exists no new one is emitted.
type AccuracyMonitor struct {
	cfg MonitorConfig
}

// NewAccuracyMonitor creates a monitor with the given thresholds.
func NewAccuracyMonitor(cfg MonitorConfig) *AccuracyMonitor {
	return &AccuracyMonitor{cfg: cfg}
}

// WindowAccuracy computes the accuracy percentage and evaluated sample
// size over the trailing window ending at now. Unevaluated predictions are
// excluded.
func (m *AccuracyMonitor) WindowAccuracy(predictions []*PredictionRecord, now time.Time) (accuracy float64, sample int) {
	cutoff := now.AddDate(0, 0, -m.cfg.WindowDays)
	correct := 0
	for _, p := range predictions {
		if !p.Evaluated() || p.CreatedAt.Before(cutoff) {
			continue
		}
		sample++
		if p.WasCorrect {
			correct++
		}
	}
	if sample == 0 {
		return 0, 0
	}
	return successRate(correct, sample), sample
}

// Check evaluates the trailing window and returns a retrain suggestion
// when accuracy is below threshold with a sufficient sample. Returns nil
// when accuracy is acceptable, the sample is too small, or a pending
// suggestion already exists.
func (m *AccuracyMonitor) Check(predictions []*PredictionRecord, hasPending bool, now time.Time) *RetrainSuggestion {
	if hasPending {
		return nil
	}
	accuracy, sample := m.WindowAccuracy(predictions, now)
	if sample < m.cfg.MinimumSample {
		return nil
	}
	if accuracy >= m.cfg.AccuracyThreshold {
		return nil
	}
	rounded := math.Round(accuracy*100) / 100
	return &RetrainSuggestion{
		ID:         uuid.NewString(),
		WindowDays: m.cfg.WindowDays,
		Accuracy:   rounded,
		SampleSize: sample,
		Status:     "pending",
		Notes: fmt.Sprintf("accuracy dropped to %.2f%% below the %.0f%% threshold over %d predictions in the last %d days",
			rounded, m.cfg.AccuracyThreshold, sample, m.cfg.WindowDays),
		CreatedAt: now,
	}
}
