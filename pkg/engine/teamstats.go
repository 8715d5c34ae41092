package engine

// TeamStatistics is the per-team aggregate over a window, supplied by an
// external stats provider. The engine reads it and never mutates it.
type TeamStatistics struct {
	TeamName   string        `json:"team_name"`
	Statistics TeamStatBlock `json:"statistics"`
}

// TeamStatBlock carries the raw counts the prediction engine derives its
// per-game averages from. Optional historical market rates are pointers so
// absence is distinguishable from zero.
type TeamStatBlock struct {
	MatchesPlayed int `json:"matches_played"`
	GoalsScored   int `json:"goals_scored"`
	GoalsConceded int `json:"goals_conceded"`

	HomeGoalsScored   int `json:"home_goals_scored,omitempty"`
	HomeGoalsConceded int `json:"home_goals_conceded,omitempty"`
	AwayGoalsScored   int `json:"away_goals_scored,omitempty"`
	AwayGoalsConceded int `json:"away_goals_conceded,omitempty"`

	ShotsOnTarget int     `json:"shots_on_target,omitempty"`
	YellowCards   int     `json:"yellow_cards,omitempty"`
	RedCards      int     `json:"red_cards,omitempty"`
	Possession    float64 `json:"possession,omitempty"`

	// BTTS holds the count of matches in the window where both teams
	// scored, when the provider supplies it.
	BTTS *BTTSRecord `json:"btts,omitempty"`
	// OverGoals holds over-threshold match counts, when supplied.
	OverGoals *OverGoalsRecord `json:"over_goals,omitempty"`
}

// BTTSRecord is the historical both-teams-scored count for a team.
type BTTSRecord struct {
	BothTeamsScored int `json:"both_teams_scored"`
}

// OverGoalsRecord is the historical over-goals count for a team.
type OverGoalsRecord struct {
	Over25 int `json:"over_2_5"`
}

// goalsPerGame returns scored and conceded per-game averages. The caller
// guards against MatchesPlayed == 0 before calling.
func (b *TeamStatBlock) goalsPerGame() (scored, conceded float64) {
	played := float64(b.MatchesPlayed)
	return float64(b.GoalsScored) / played, float64(b.GoalsConceded) / played
}
