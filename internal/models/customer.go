package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Customer represents one customer's rental agreement and increment schedule
type Customer struct {
	ID                    string          `json:"id"`
	Name                  string          `json:"name" validate:"required,min=2"`
	PhoneNumber           string          `json:"phoneNumber" validate:"required,number,min=10"`
	Address               string          `json:"address" validate:"required"`
	TaxOrIDNumber         string          `json:"taxOrIdNumber" validate:"max=64"` // Aadhar/PAN/GST, encrypted at rest
	YearsOfEngagement     FlexString      `json:"yearsOfEngagement"`
	AdvancedMoney         decimal.Decimal `json:"advancedMoney" validate:"gte=0"`
	StartingRent          decimal.Decimal `json:"startingRent" validate:"gte=0"`
	CurrentRent           decimal.Decimal `json:"currentRent" validate:"gte=0"`
	IncreasePercentage    decimal.Decimal `json:"increasePercentage" validate:"gte=0,lte=100"`
	PreviousIncrementDate time.Time       `json:"previousIncrementDate"`
	YearsUntilIncrease    int             `json:"yearsUntilIncrease" validate:"gte=1"`
	CreatedAt             time.Time       `json:"createdAt"`
	UpdatedAt             time.Time       `json:"updatedAt"`
}

// Clone returns a copy that shares no mutable state with c
func (c *Customer) Clone() *Customer {
	cp := *c
	return &cp
}

// FlexString accepts either a JSON string or a JSON number.
// Older records stored years of engagement as a number.
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected string or number: %w", err)
	}
	*f = FlexString(n.String())
	return nil
}

// CustomerInput is the intake/edit form. Nil fields are left untouched on update.
type CustomerInput struct {
	Name                  *string          `json:"name"`
	PhoneNumber           *string          `json:"phoneNumber"`
	Address               *string          `json:"address"`
	TaxOrIDNumber         *string          `json:"taxOrIdNumber"`
	YearsOfEngagement     *FlexString      `json:"yearsOfEngagement"`
	AdvancedMoney         *decimal.Decimal `json:"advancedMoney"`
	StartingRent          *decimal.Decimal `json:"startingRent"`
	CurrentRent           *decimal.Decimal `json:"currentRent"`
	IncreasePercentage    *decimal.Decimal `json:"increasePercentage"`
	PreviousIncrementDate *string          `json:"previousIncrementDate"`
	YearsUntilIncrease    *int             `json:"yearsUntilIncrease"`
}
