package increment

import (
	"errors"
	"sort"
	"time"

	"github.com/Dan9191/rent-service/internal/models"
)

// Classify places a view in exactly one tier
func Classify(v *models.IncrementView) models.AlertTier {
	switch {
	case v.IsIncrementDueToday:
		return models.TierDueToday
	case v.IsDueWithinHorizon:
		return models.TierDueSoon
	default:
		return models.TierNormal
	}
}

// SortByTier orders alerts most urgent first, keeping input order within a tier
func SortByTier(alerts []models.CustomerAlert) {
	sort.SliceStable(alerts, func(i, j int) bool {
		return alerts[i].Tier < alerts[j].Tier
	})
}

// EvaluateAll evaluates every customer at now. Records that fail evaluation
// are reported in the failures list and left out of the alerts.
func (e *Engine) EvaluateAll(customers []*models.Customer, now time.Time) *models.AlertReport {
	report := &models.AlertReport{
		GeneratedAt: now,
		Alerts:      make([]models.CustomerAlert, 0, len(customers)),
		Failures:    []models.EvaluationFailure{},
	}
	for _, c := range customers {
		view, err := e.Evaluate(c, now)
		if err != nil {
			reason := err.Error()
			var invalid *InvalidRecordError
			if errors.As(err, &invalid) {
				reason = invalid.Reason
			}
			report.Failures = append(report.Failures, models.EvaluationFailure{
				CustomerID: c.ID,
				Name:       c.Name,
				Error:      reason,
			})
			continue
		}
		report.Alerts = append(report.Alerts, models.CustomerAlert{
			Customer:  c,
			Increment: view,
			Tier:      Classify(view),
		})
	}
	SortByTier(report.Alerts)
	return report
}
