// Package ingest imports historical match data from CSV exports. Column
// headers are normalized so both the canonical names and the legacy export
// aliases are accepted.
package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/winmix/analytics/internal/metrics"
	"github.com/winmix/analytics/pkg/engine"
)

// headerAliases maps accepted column names to canonical field keys.
var headerAliases = map[string]string{
	"id":                   "id",
	"match_time":           "match_time",
	"date":                 "match_time",
	"home_team":            "home_team",
	"away_team":            "away_team",
	"half_time_home_goals": "half_time_home_goals",
	"ht_home_score":        "half_time_home_goals",
	"half_time_away_goals": "half_time_away_goals",
	"ht_away_score":        "half_time_away_goals",
	"full_time_home_goals": "full_time_home_goals",
	"home_score":           "full_time_home_goals",
	"full_time_away_goals": "full_time_away_goals",
	"away_score":           "full_time_away_goals",
	"round":                "round",
	"league":               "league",
	"venue":                "venue",
	"referee":              "referee",
	"status":               "status",
}

// Result summarizes one import run.
type Result struct {
	Imported int
	Skipped  int
	Warnings []*engine.DataInconsistencyWarning
}

// Importer reads CSV match exports into Match records.
type Importer struct {
	log *logrus.Entry
}

// NewImporter creates an importer.
func NewImporter(log *logrus.Entry) *Importer {
	return &Importer{log: log}
}

// Read parses the CSV stream. Rows that cannot be parsed are skipped and
// logged, never fatal; score inconsistencies are collected as warnings and
// the row is kept.
func (imp *Importer) Read(r io.Reader) ([]*engine.Match, *Result, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	columns, err := mapHeader(header)
	if err != nil {
		return nil, nil, err
	}

	var matches []*engine.Match
	result := &Result{}
	line := 1
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			imp.log.WithError(err).WithField("line", line).Warn("skipping malformed CSV row")
			result.Skipped++
			continue
		}

		m, err := matchFromRow(columns, row)
		if err != nil {
			imp.log.WithError(err).WithField("line", line).Warn("skipping invalid match row")
			result.Skipped++
			continue
		}
		for _, w := range m.Validate() {
			imp.log.WithField("match_id", m.ID).Warn(w.String())
			result.Warnings = append(result.Warnings, w)
			metrics.IngestWarnings.Inc()
		}
		matches = append(matches, m)
		result.Imported++
		metrics.MatchesIngested.Inc()
	}

	imp.log.WithFields(logrus.Fields{
		"imported": result.Imported,
		"skipped":  result.Skipped,
		"warnings": len(result.Warnings),
	}).Info("CSV import finished")
	return matches, result, nil
}

func mapHeader(header []string) (map[int]string, error) {
	columns := make(map[int]string, len(header))
	for i, name := range header {
		key := strings.ToLower(strings.TrimSpace(name))
		if canonical, ok := headerAliases[key]; ok {
			columns[i] = canonical
		}
	}
	if !hasColumn(columns, "home_team") || !hasColumn(columns, "away_team") {
		return nil, engine.NewValidationError("header", "CSV must contain home_team and away_team columns")
	}
	return columns, nil
}

func hasColumn(columns map[int]string, key string) bool {
	for _, v := range columns {
		if v == key {
			return true
		}
	}
	return false
}

func matchFromRow(columns map[int]string, row []string) (*engine.Match, error) {
	m := engine.NewMatch()
	for i, key := range columns {
		if i >= len(row) {
			continue
		}
		value := strings.TrimSpace(row[i])
		if value == "" {
			continue
		}
		switch key {
		case "id":
			m.ID = value
		case "match_time":
			t, err := parseTime(value)
			if err != nil {
				return nil, engine.NewValidationError("match_time", err.Error())
			}
			m.MatchTime = t
		case "home_team":
			m.HomeTeam = value
		case "away_team":
			m.AwayTeam = value
		case "half_time_home_goals":
			if err := setGoals(&m.HalfTimeHomeGoals, key, value); err != nil {
				return nil, err
			}
		case "half_time_away_goals":
			if err := setGoals(&m.HalfTimeAwayGoals, key, value); err != nil {
				return nil, err
			}
		case "full_time_home_goals":
			if err := setGoals(&m.FullTimeHomeGoals, key, value); err != nil {
				return nil, err
			}
		case "full_time_away_goals":
			if err := setGoals(&m.FullTimeAwayGoals, key, value); err != nil {
				return nil, err
			}
		case "round":
			m.Round = value
		case "league":
			m.League = value
		case "venue":
			m.Venue = value
		case "referee":
			m.Referee = value
		case "status":
			m.Status = value
		}
	}
	if m.HomeTeam == "" || m.AwayTeam == "" {
		return nil, engine.NewValidationError("home_team/away_team", "both team names are required")
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return m, nil
}

func setGoals(target *int, field, value string) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return engine.NewValidationError(field, fmt.Sprintf("non-numeric goal value %q", value))
	}
	if n < 0 {
		return engine.NewValidationError(field, fmt.Sprintf("negative goal value %d", n))
	}
	*target = n
	return nil
}

func parseTime(value string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02", "02/01/2006"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date format %q", value)
}
