// Package export renders the evaluated rent roll for accounting tools.
package export

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/Dan9191/rent-service/internal/models"
	"github.com/Dan9191/rent-service/internal/timeutil"
	"github.com/Dan9191/rent-service/internal/utils"
	"github.com/beevik/etree"
)

// WriteRentRoll writes report as an XML document. Identity numbers are masked.
func WriteRentRoll(w io.Writer, report *models.AlertReport) error {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	root := doc.CreateElement("RentRoll")
	root.CreateAttr("generatedAt", report.GeneratedAt.In(timeutil.IST).Format(time.RFC3339))
	root.CreateAttr("customers", strconv.Itoa(len(report.Alerts)))

	for _, a := range report.Alerts {
		c, v := a.Customer, a.Increment
		el := root.CreateElement("Customer")
		el.CreateAttr("id", c.ID)
		el.CreateAttr("tier", a.Tier.String())
		el.CreateAttr("overdue", strconv.FormatBool(v.IsOverdue))

		el.CreateElement("Name").SetText(c.Name)
		el.CreateElement("Phone").SetText(c.PhoneNumber)
		el.CreateElement("Address").SetText(c.Address)
		if c.TaxOrIDNumber != "" {
			el.CreateElement("TaxID").SetText(utils.MaskTaxID(c.TaxOrIDNumber))
		}

		rent := el.CreateElement("Rent")
		rent.CreateElement("Starting").SetText(c.StartingRent.StringFixed(2))
		rent.CreateElement("Current").SetText(c.CurrentRent.StringFixed(2))
		rent.CreateElement("Projected").SetText(v.ProjectedRent.StringFixed(2))
		rent.CreateElement("Deposit").SetText(c.AdvancedMoney.StringFixed(2))

		inc := el.CreateElement("Increment")
		inc.CreateAttr("percentage", c.IncreasePercentage.String())
		inc.CreateAttr("everyYears", strconv.Itoa(c.YearsUntilIncrease))
		inc.CreateElement("Previous").SetText(timeutil.FormatDate(c.PreviousIncrementDate))
		inc.CreateElement("Next").SetText(timeutil.FormatDate(v.NextIncrementDate))
	}

	for _, f := range report.Failures {
		el := root.CreateElement("Failure")
		el.CreateAttr("id", f.CustomerID)
		el.CreateElement("Name").SetText(f.Name)
		el.CreateElement("Reason").SetText(f.Error)
	}

	doc.Indent(2)
	if _, err := doc.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write rent roll: %w", err)
	}
	return nil
}
