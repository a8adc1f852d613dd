package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// IncrementView is the derived increment state of one customer at a given instant
type IncrementView struct {
	CustomerID          string          `json:"customerId"`
	EvaluatedAt         time.Time       `json:"evaluatedAt"`
	NextIncrementDate   time.Time       `json:"nextIncrementDate"`
	IsIncrementDueToday bool            `json:"isIncrementDueToday"`
	IsOverdue           bool            `json:"isOverdue"`
	IsDueWithinHorizon  bool            `json:"isDueWithinHorizon"`
	HorizonDays         int             `json:"horizonDays"`
	ProjectedRent       decimal.Decimal `json:"projectedRent"`
	RolledForwardRecord *Customer       `json:"rolledForwardRecord,omitempty"`
}

// DueWithinHorizon reports whether the next increment falls between the
// evaluation instant and horizonDays later, both ends inclusive.
func (v *IncrementView) DueWithinHorizon(horizonDays int) bool {
	gap := v.NextIncrementDate.Sub(v.EvaluatedAt)
	return gap >= 0 && gap <= time.Duration(horizonDays)*24*time.Hour
}

// AlertTier orders customers for display, most urgent first
type AlertTier int

const (
	TierDueToday AlertTier = iota
	TierDueSoon
	TierNormal
)

func (t AlertTier) String() string {
	switch t {
	case TierDueToday:
		return "due-today"
	case TierDueSoon:
		return "due-soon"
	case TierNormal:
		return "normal"
	}
	return fmt.Sprintf("AlertTier(%d)", int(t))
}

func (t AlertTier) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// CustomerAlert pairs a customer with its evaluated increment state
type CustomerAlert struct {
	Customer  *Customer      `json:"customer"`
	Increment *IncrementView `json:"increment"`
	Tier      AlertTier      `json:"tier"`
}

// EvaluationFailure describes a record the engine could not evaluate
type EvaluationFailure struct {
	CustomerID string `json:"customerId"`
	Name       string `json:"name"`
	Error      string `json:"error"`
}

// AlertReport is the evaluated rent roll, sorted by tier
type AlertReport struct {
	GeneratedAt time.Time           `json:"generatedAt"`
	Alerts      []CustomerAlert     `json:"alerts"`
	Failures    []EvaluationFailure `json:"failures"`
}

// NeedsAttention returns alerts that are due today, due soon or overdue
func (r *AlertReport) NeedsAttention() []CustomerAlert {
	var out []CustomerAlert
	for _, a := range r.Alerts {
		if a.Tier != TierNormal || a.Increment.IsOverdue {
			out = append(out, a)
		}
	}
	return out
}
