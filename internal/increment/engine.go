// Package increment derives rent increment state from customer records.
// Everything here is a pure function of its inputs.
package increment

import (
	"fmt"
	"time"

	"github.com/Dan9191/rent-service/internal/models"
	"github.com/shopspring/decimal"
)

// DefaultHorizonDays is the due-soon window used by the list view
const DefaultHorizonDays = 3

var hundred = decimal.NewFromInt(100)

// InvalidRecordError is returned when a record cannot be evaluated
type InvalidRecordError struct {
	CustomerID string
	Reason     string
}

func (e *InvalidRecordError) Error() string {
	return fmt.Sprintf("invalid record %s: %s", e.CustomerID, e.Reason)
}

// Engine evaluates customers against a due-soon horizon
type Engine struct {
	HorizonDays int
}

// NewEngine returns an engine; a non-positive horizon falls back to DefaultHorizonDays
func NewEngine(horizonDays int) *Engine {
	if horizonDays <= 0 {
		horizonDays = DefaultHorizonDays
	}
	return &Engine{HorizonDays: horizonDays}
}

// Evaluate computes the increment view of c at now. c is not modified.
//
// Only one increment step is projected, however many intervals have elapsed:
// committing RolledForwardRecord and evaluating again yields the next step.
func (e *Engine) Evaluate(c *models.Customer, now time.Time) (*models.IncrementView, error) {
	if c.PreviousIncrementDate.IsZero() {
		return nil, &InvalidRecordError{CustomerID: c.ID, Reason: "previous increment date is missing"}
	}
	if c.YearsUntilIncrease < 1 {
		return nil, &InvalidRecordError{
			CustomerID: c.ID,
			Reason:     fmt.Sprintf("years until increase must be at least 1, got %d", c.YearsUntilIncrease),
		}
	}

	next := AddYears(c.PreviousIncrementDate, c.YearsUntilIncrease)
	view := &models.IncrementView{
		CustomerID:          c.ID,
		EvaluatedAt:         now,
		NextIncrementDate:   next,
		IsIncrementDueToday: sameDay(c.PreviousIncrementDate, now.In(c.PreviousIncrementDate.Location())),
		IsOverdue:           !now.Before(next),
		HorizonDays:         e.HorizonDays,
		ProjectedRent:       c.CurrentRent,
	}
	view.IsDueWithinHorizon = view.DueWithinHorizon(e.HorizonDays)

	if view.IsOverdue {
		view.ProjectedRent = ApplyIncrease(c.CurrentRent, c.IncreasePercentage)
		rolled := c.Clone()
		rolled.CurrentRent = view.ProjectedRent
		rolled.PreviousIncrementDate = next
		view.RolledForwardRecord = rolled
	}
	return view, nil
}

// ApplyIncrease returns rent increased by percentage, rounded to paise
func ApplyIncrease(rent, percentage decimal.Decimal) decimal.Decimal {
	factor := decimal.NewFromInt(1).Add(percentage.Div(hundred))
	return rent.Mul(factor).Round(2)
}

// AddYears adds whole calendar years to t. A day that does not exist in the
// target month (29 February in a common year) becomes that month's last day.
func AddYears(t time.Time, years int) time.Time {
	year := t.Year() + years
	day := t.Day()
	if last := daysIn(t.Month(), year); day > last {
		day = last
	}
	return time.Date(year, t.Month(), day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysIn(m time.Month, year int) int {
	// day 0 of the following month is the last day of m
	return time.Date(year, m+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// sameDay compares calendar dates as read in each value's own location
func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
