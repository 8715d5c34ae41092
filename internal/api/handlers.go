// Package api exposes the analytics engine over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/winmix/analytics/internal/config"
	"github.com/winmix/analytics/internal/ingest"
	"github.com/winmix/analytics/internal/metrics"
	"github.com/winmix/analytics/pkg/engine"
	"github.com/winmix/analytics/pkg/store"
)

// Handler carries the dependencies of every endpoint.
type Handler struct {
	cfg        *config.Config
	stores     *store.Stores
	predictor  *engine.PredictionEngine
	aggregator *engine.PerformanceAggregator
	monitor    *engine.AccuracyMonitor
	importer   *ingest.Importer
	log        *logrus.Entry
}

// NewHandler wires the endpoints against the given stores and config.
func NewHandler(cfg *config.Config, stores *store.Stores, log *logrus.Entry) *Handler {
	return &Handler{
		cfg:        cfg,
		stores:     stores,
		predictor:  engine.NewPredictionEngine(engine.DefaultPredictionConfig()),
		aggregator: engine.NewPerformanceAggregator(engine.DefaultAggregatorConfig()),
		monitor: engine.NewAccuracyMonitor(engine.MonitorConfig{
			WindowDays:        cfg.MonitorWindowDays,
			AccuracyThreshold: cfg.MonitorAccuracyThreshold,
			MinimumSample:     cfg.MonitorMinimumSample,
		}),
		importer: ingest.NewImporter(log),
		log:      log,
	}
}

// Router builds the HTTP route table.
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(h.timing)

	r.HandleFunc("/api/matches/import", h.ImportMatches).Methods("POST")
	r.HandleFunc("/api/matches", h.ListMatches).Methods("GET")

	r.HandleFunc("/api/patterns", h.CreatePattern).Methods("POST")
	r.HandleFunc("/api/patterns", h.ListPatterns).Methods("GET")
	r.HandleFunc("/api/patterns/discover", h.DiscoverPatterns).Methods("POST")
	r.HandleFunc("/api/patterns/{id}", h.GetPattern).Methods("GET")
	r.HandleFunc("/api/patterns/{id}", h.DeletePattern).Methods("DELETE")
	r.HandleFunc("/api/patterns/{id}/detect", h.DetectPattern).Methods("POST")
	r.HandleFunc("/api/patterns/{id}/performance", h.PatternPerformance).Methods("GET")
	r.HandleFunc("/api/patterns/{id}/analysis", h.PatternAnalysis).Methods("GET")

	r.HandleFunc("/api/predictions", h.CreatePrediction).Methods("POST")
	r.HandleFunc("/api/predictions/{id}/result", h.RecordResult).Methods("POST")

	r.HandleFunc("/api/monitor/check", h.MonitorCheck).Methods("POST")
	r.HandleFunc("/api/suggestions", h.ListSuggestions).Methods("GET")
	r.HandleFunc("/api/models/compare", h.CompareModels).Methods("POST")

	r.Handle("/metrics", metrics.Handler()).Methods("GET")
	return r
}

func (h *Handler) timing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		route := r.URL.Path
		if current := mux.CurrentRoute(r); current != nil {
			if tmpl, err := current.GetPathTemplate(); err == nil {
				route = tmpl
			}
		}
		metrics.RequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

/////////////////////////////////////////////////////////////////////////
////// Matches
/////////////////////////////////////////////////////////////////////////

// ImportMatches ingests a CSV body of historical matches.
func (h *Handler) ImportMatches(w http.ResponseWriter, r *http.Request) {
	matches, result, err := h.importer.Read(r.Body)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.stores.Matches.SaveAll(matches); err != nil {
		h.writeError(w, err)
		return
	}
	warnings := make([]string, 0, len(result.Warnings))
	for _, warning := range result.Warnings {
		warnings = append(warnings, warning.String())
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"imported": result.Imported,
		"skipped":  result.Skipped,
		"warnings": warnings,
	})
}

// ListMatches returns stored matches, optionally filtered by team.
func (h *Handler) ListMatches(w http.ResponseWriter, r *http.Request) {
	var matches []*engine.Match
	var err error
	if team := r.URL.Query().Get("team"); team != "" {
		matches, err = h.stores.Matches.ByTeam(team)
	} else {
		matches, err = h.stores.Matches.All()
	}
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, matches)
}

/////////////////////////////////////////////////////////////////////////
////// Patterns
/////////////////////////////////////////////////////////////////////////

// CreatePattern validates and stores a pattern definition.
func (h *Handler) CreatePattern(w http.ResponseWriter, r *http.Request) {
	var pattern engine.PatternDefinition
	if err := json.NewDecoder(r.Body).Decode(&pattern); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := pattern.Validate(); err != nil {
		h.writeError(w, err)
		return
	}
	if pattern.ID == "" {
		pattern.ID = newID()
	}
	if err := h.stores.Patterns.Save(&pattern); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, &pattern)
}

// ListPatterns returns all stored pattern definitions.
func (h *Handler) ListPatterns(w http.ResponseWriter, r *http.Request) {
	patterns, err := h.stores.Patterns.All()
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, patterns)
}

// GetPattern returns one pattern definition.
func (h *Handler) GetPattern(w http.ResponseWriter, r *http.Request) {
	pattern, err := h.stores.Patterns.Get(mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, err)
		return
	}
	if pattern == nil {
		http.Error(w, "Pattern not found", http.StatusNotFound)
		return
	}
	h.writeJSON(w, http.StatusOK, pattern)
}

// DeletePattern removes a pattern definition.
func (h *Handler) DeletePattern(w http.ResponseWriter, r *http.Request) {
	if err := h.stores.Patterns.Delete(mux.Vars(r)["id"]); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

// DiscoverPatterns mines stored matches for frequent half-time scorelines
// and stores the suggested definitions.
func (h *Handler) DiscoverPatterns(w http.ResponseWriter, r *http.Request) {
	matches, err := h.stores.Matches.All()
	if err != nil {
		h.writeError(w, err)
		return
	}
	discovered := engine.DiscoverHalftimePatterns(matches, h.cfg.DiscoveryMinSupport)
	for _, pattern := range discovered {
		if err := h.stores.Patterns.Save(pattern); err != nil {
			h.writeError(w, err)
			return
		}
	}
	h.writeJSON(w, http.StatusOK, discovered)
}

// DetectPattern runs the pattern over all stored matches, stores the
// occurrences and recomputes the performance aggregate.
func (h *Handler) DetectPattern(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	pattern, err := h.stores.Patterns.Get(id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if pattern == nil {
		http.Error(w, "Pattern not found", http.StatusNotFound)
		return
	}
	matches, err := h.stores.Matches.All()
	if err != nil {
		h.writeError(w, err)
		return
	}

	occurrences, err := engine.DetectOccurrencesInSlice(pattern, matches)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.stores.Occurrences.SaveAll(occurrences); err != nil {
		h.writeError(w, err)
		return
	}
	metrics.OccurrencesDetected.WithLabelValues(pattern.ID).Add(float64(len(occurrences)))

	aggregate := h.aggregator.Recompute(pattern.ID, occurrences, nil)
	if err := h.stores.Metrics.Save(aggregate); err != nil {
		h.writeError(w, err)
		return
	}

	h.log.WithFields(logrus.Fields{
		"pattern_id":  pattern.ID,
		"occurrences": len(occurrences),
		"matches":     len(matches),
	}).Info("pattern detection complete")
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"patternId":   pattern.ID,
		"occurrences": occurrences,
		"performance": aggregate,
	})
}

// PatternPerformance returns the stored performance aggregate.
func (h *Handler) PatternPerformance(w http.ResponseWriter, r *http.Request) {
	aggregate, err := h.stores.Metrics.ByPattern(mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, err)
		return
	}
	if aggregate == nil {
		http.Error(w, "No performance data for pattern", http.StatusNotFound)
		return
	}
	h.writeJSON(w, http.StatusOK, aggregate)
}

// PatternAnalysis runs frequency analysis over the stored match set.
func (h *Handler) PatternAnalysis(w http.ResponseWriter, r *http.Request) {
	pattern, err := h.stores.Patterns.Get(mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, err)
		return
	}
	if pattern == nil {
		http.Error(w, "Pattern not found", http.StatusNotFound)
		return
	}
	matches, err := h.stores.Matches.All()
	if err != nil {
		h.writeError(w, err)
		return
	}
	analysis, err := engine.AnalyzePattern(pattern, matches)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, analysis)
}

/////////////////////////////////////////////////////////////////////////
////// Predictions
/////////////////////////////////////////////////////////////////////////

// PredictionRequest is the request shape for generating a prediction.
type PredictionRequest struct {
	MatchID      string                 `json:"match_id"`
	HomeTeam     *engine.TeamStatistics `json:"homeTeam"`
	AwayTeam     *engine.TeamStatistics `json:"awayTeam"`
	PatternBoost float64                `json:"patternBoost,omitempty"`
}

// CreatePrediction generates an enhanced prediction and stores its record.
func (h *Handler) CreatePrediction(w http.ResponseWriter, r *http.Request) {
	var req PredictionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.MatchID == "" {
		http.Error(w, "match_id is required", http.StatusBadRequest)
		return
	}

	prior, err := h.stores.Predictions.ByMatch(req.MatchID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	history := make([]*engine.HistoricalPrediction, 0, len(prior))
	for _, p := range prior {
		if !p.Evaluated() {
			continue
		}
		history = append(history, &engine.HistoricalPrediction{
			PredictedOutcome: p.PredictedOutcome,
			ConfidenceScore:  p.ConfidenceScore,
			WasCorrect:       p.WasCorrect,
			CreatedAt:        p.CreatedAt,
		})
	}

	input := engine.PredictionInput{
		HomeTeam:     req.HomeTeam,
		AwayTeam:     req.AwayTeam,
		PatternBoost: req.PatternBoost,
	}
	prediction, err := h.predictor.GenerateEnhancedPrediction(input, history, time.Now())
	if err != nil {
		h.writeError(w, err)
		return
	}

	record := &engine.PredictionRecord{
		ID:               newID(),
		MatchID:          req.MatchID,
		PredictedOutcome: prediction.PredictedOutcome(),
		ConfidenceScore:  prediction.ConfidenceScore,
	}
	if err := h.stores.Predictions.Save(record); err != nil {
		h.writeError(w, err)
		return
	}

	metrics.PredictionsGenerated.WithLabelValues(prediction.BTTS.Confidence).Inc()
	if prediction.PredictionStatus == engine.StatusBlocked {
		metrics.PredictionsBlocked.Inc()
	}
	h.writeJSON(w, http.StatusCreated, map[string]interface{}{
		"predictionId": record.ID,
		"prediction":   prediction,
	})
}

// ResultRequest is the request shape for reconciling a prediction.
type ResultRequest struct {
	ActualOutcome string `json:"actual_outcome"`
}

// RecordResult reconciles a prediction against the actual outcome and
// folds the result into the template accuracy counters of the patterns
// detected for that match.
func (h *Handler) RecordResult(w http.ResponseWriter, r *http.Request) {
	var req ResultRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	switch req.ActualOutcome {
	case engine.OutcomeHomeWin, engine.OutcomeDraw, engine.OutcomeAwayWin:
	default:
		http.Error(w, "actual_outcome must be home_win, draw or away_win", http.StatusBadRequest)
		return
	}

	prediction, err := h.stores.Predictions.Get(mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, err)
		return
	}
	if prediction == nil {
		http.Error(w, "Prediction not found", http.StatusNotFound)
		return
	}
	if prediction.Evaluated() {
		http.Error(w, "Prediction already evaluated", http.StatusConflict)
		return
	}

	occurrences, err := h.stores.Occurrences.ByMatch(prediction.MatchID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	accuracies := make([]*engine.PatternAccuracy, 0, len(occurrences))
	for _, occ := range occurrences {
		acc, err := h.stores.Accuracy.Get(occ.PatternID)
		if err != nil {
			h.writeError(w, err)
			return
		}
		accuracies = append(accuracies, acc)
	}

	result := engine.ApplyReconciliation(prediction, req.ActualOutcome, accuracies, time.Now())
	if err := h.stores.Predictions.Save(prediction); err != nil {
		h.writeError(w, err)
		return
	}
	for _, acc := range accuracies {
		if err := h.stores.Accuracy.Save(acc); err != nil {
			h.writeError(w, err)
			return
		}
	}
	metrics.RecordReconciled(result.WasCorrect)

	h.writeJSON(w, http.StatusOK, result)
}

/////////////////////////////////////////////////////////////////////////
////// Monitoring and model comparison
/////////////////////////////////////////////////////////////////////////

// MonitorCheck evaluates trailing accuracy and emits a retrain suggestion
// when warranted. Safe to call repeatedly.
func (h *Handler) MonitorCheck(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	cutoff := now.AddDate(0, 0, -h.cfg.MonitorWindowDays)
	predictions, err := h.stores.Predictions.Since(cutoff)
	if err != nil {
		h.writeError(w, err)
		return
	}
	hasPending, err := h.stores.Suggestions.HasPending()
	if err != nil {
		h.writeError(w, err)
		return
	}

	accuracy, sample := h.monitor.WindowAccuracy(predictions, now)
	metrics.WindowAccuracy.Set(accuracy)

	suggestion := h.monitor.Check(predictions, hasPending, now)
	if suggestion != nil {
		if err := h.stores.Suggestions.Save(suggestion); err != nil {
			h.writeError(w, err)
			return
		}
		metrics.RetrainSuggestions.Inc()
		h.log.WithFields(logrus.Fields{
			"accuracy": suggestion.Accuracy,
			"sample":   suggestion.SampleSize,
		}).Warn("retrain suggestion emitted")
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"accuracy":   accuracy,
		"sampleSize": sample,
		"suggestion": suggestion,
	})
}

// ListSuggestions returns retrain suggestions, newest first.
func (h *Handler) ListSuggestions(w http.ResponseWriter, r *http.Request) {
	suggestions, err := h.stores.Suggestions.All()
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, suggestions)
}

// CompareRequest is the request shape for a model comparison.
type CompareRequest struct {
	ModelA engine.ModelCounts `json:"model_a"`
	ModelB engine.ModelCounts `json:"model_b"`
}

// CompareModels runs the chi-square comparison and stores the result.
func (h *Handler) CompareModels(w http.ResponseWriter, r *http.Request) {
	var req CompareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	result, err := engine.CompareModels(req.ModelA, req.ModelB, h.cfg.ComparisonSignificance)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.stores.Comparisons.Save(result); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

/////////////////////////////////////////////////////////////////////////
////// Response helpers
/////////////////////////////////////////////////////////////////////////

func newID() string {
	return uuid.NewString()
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.log.WithError(err).Error("failed to encode response")
	}
}

// writeError maps typed engine errors to HTTP status codes.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var validation *engine.ValidationError
	var insufficientData *engine.InsufficientDataError
	var insufficientSample *engine.InsufficientSampleError

	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &validation):
		status = http.StatusBadRequest
	case errors.As(err, &insufficientData), errors.As(err, &insufficientSample):
		status = http.StatusUnprocessableEntity
	}
	if status == http.StatusInternalServerError {
		h.log.WithError(err).Error("request failed")
	}
	http.Error(w, err.Error(), status)
}
