package engine

import (
	"fmt"
	"strconv"
)

// Condition types supported by the evaluator. The set is closed; an
// unrecognized type is a validation error, never a silent pass.
const (
	ConditionTotalGoals     = "total_goals"
	ConditionGoalDifference = "goal_difference"
	ConditionHalftimeScore  = "halftime_score"
	ConditionFulltimeScore  = "fulltime_score"
	ConditionTeam           = "team"
)

// Comparison operators for numeric condition types.
const (
	OpEq  = "="
	OpNeq = "!="
	OpGt  = ">"
	OpLt  = "<"
	OpGte = ">="
	OpLte = "<="

	// Team membership operators.
	OpContains    = "contains"
	OpNotContains = "not_contains"
)

// ConditionDefinition is one atomic predicate within a pattern. The wire
// shape keeps value as a string; numeric types parse it once at validation
// time rather than coercing ad hoc during evaluation.
type ConditionDefinition struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Operator string `json:"operator"`
	Value    string `json:"value"`
	Field    string `json:"field,omitempty"`
	Target   string `json:"target,omitempty"`
}

// Fields selectable via the optional field attribute on numeric conditions.
const (
	FieldHomeGoalDiff = "home_goal_diff"
	FieldAwayGoalDiff = "away_goal_diff"
)

// Validate checks the condition for structural errors: unknown type or
// operator, a target-dependent type without a usable target, or a
// non-numeric value on a numeric type.
func (c *ConditionDefinition) Validate() error {
	switch c.Type {
	case ConditionTotalGoals, ConditionGoalDifference:
		if c.Target != TargetHalftime && c.Target != TargetFulltime {
			return NewValidationError("target",
				fmt.Sprintf("condition type %q requires target %q or %q", c.Type, TargetHalftime, TargetFulltime))
		}
		if !isComparisonOperator(c.Operator) {
			return NewValidationError("operator", fmt.Sprintf("unsupported operator %q for type %q", c.Operator, c.Type))
		}
		if _, err := strconv.ParseFloat(c.Value, 64); err != nil {
			return NewValidationError("value", fmt.Sprintf("non-numeric comparison value %q", c.Value))
		}
		if c.Field != "" && c.Field != FieldHomeGoalDiff && c.Field != FieldAwayGoalDiff {
			return NewValidationError("field", fmt.Sprintf("unknown field %q", c.Field))
		}
	case ConditionHalftimeScore, ConditionFulltimeScore:
		if c.Operator != OpEq && c.Operator != OpNeq {
			return NewValidationError("operator",
				fmt.Sprintf("score conditions support only %q and %q, got %q", OpEq, OpNeq, c.Operator))
		}
		if c.Value == "" {
			return NewValidationError("value", "score condition requires a value like \"1-0\"")
		}
	case ConditionTeam:
		if c.Operator != OpContains && c.Operator != OpNotContains {
			return NewValidationError("operator",
				fmt.Sprintf("team conditions support only %q and %q, got %q", OpContains, OpNotContains, c.Operator))
		}
		if c.Value == "" {
			return NewValidationError("value", "team condition requires a team name")
		}
	default:
		return NewValidationError("type", fmt.Sprintf("unrecognized condition type %q", c.Type))
	}
	return nil
}

// target returns the score target the condition reads. Score-typed
// conditions imply their target; numeric types carry it explicitly.
func (c *ConditionDefinition) target() string {
	switch c.Type {
	case ConditionHalftimeScore:
		return TargetHalftime
	case ConditionFulltimeScore:
		return TargetFulltime
	default:
		return c.Target
	}
}

// EvaluateCondition evaluates a single condition against one match.
//
// The three-valued result distinguishes "condition is false" from "match
// lacks the data this condition needs": ok=false means the match should be
// skipped for this condition's target, per the detection edge case policy.
// A structurally invalid condition returns an error and halts evaluation
// for this pattern/match pair only.
func EvaluateCondition(cond *ConditionDefinition, match *Match) (result bool, ok bool, err error) {
	if err := cond.Validate(); err != nil {
		return false, false, err
	}

	switch cond.Type {
	case ConditionTeam:
		has := match.HomeTeam == cond.Value || match.AwayTeam == cond.Value
		if cond.Operator == OpNotContains {
			return !has, true, nil
		}
		return has, true, nil

	case ConditionHalftimeScore, ConditionFulltimeScore:
		stats, present := match.StatsAt(cond.target())
		if !present {
			return false, false, nil
		}
		score := fmt.Sprintf("%d-%d", stats.HomeGoals, stats.AwayGoals)
		if cond.Operator == OpNeq {
			return score != cond.Value, true, nil
		}
		return score == cond.Value, true, nil

	default:
		stats, present := match.StatsAt(cond.target())
		if !present {
			return false, false, nil
		}
		actual := numericFieldValue(cond, stats)
		expected, _ := strconv.ParseFloat(cond.Value, 64) // validated above
		return compareNumeric(actual, cond.Operator, expected), true, nil
	}
}

func numericFieldValue(cond *ConditionDefinition, stats MatchStats) float64 {
	if cond.Field == FieldHomeGoalDiff {
		return float64(stats.HomeGoalDiff)
	}
	if cond.Field == FieldAwayGoalDiff {
		return float64(stats.AwayGoalDiff)
	}
	if cond.Type == ConditionGoalDifference {
		return float64(stats.GoalDifference)
	}
	return float64(stats.TotalGoals)
}

func compareNumeric(actual float64, operator string, expected float64) bool {
	switch operator {
	case OpEq:
		return actual == expected
	case OpNeq:
		return actual != expected
	case OpGt:
		return actual > expected
	case OpLt:
		return actual < expected
	case OpGte:
		return actual >= expected
	case OpLte:
		return actual <= expected
	default:
		return false
	}
}

func isComparisonOperator(op string) bool {
	switch op {
	case OpEq, OpNeq, OpGt, OpLt, OpGte, OpLte:
		return true
	default:
		return false
	}
}
