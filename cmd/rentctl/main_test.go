package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/Dan9191/rent-service/internal/increment"
	"github.com/Dan9191/rent-service/internal/models"
	"github.com/Dan9191/rent-service/internal/timeutil"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

func testReport() *models.AlertReport {
	now := time.Date(2024, 6, 1, 10, 0, 0, 0, timeutil.IST)
	return increment.NewEngine(3).EvaluateAll([]*models.Customer{
		{
			ID:                    "c1",
			Name:                  "Asha Verma",
			PhoneNumber:           "9876543210",
			CurrentRent:           decimal.NewFromInt(10000),
			IncreasePercentage:    decimal.NewFromInt(10),
			PreviousIncrementDate: time.Date(2023, 1, 1, 0, 0, 0, 0, timeutil.IST),
			YearsUntilIncrease:    1,
		},
		{ID: "c2", Name: "No Date", YearsUntilIncrease: 1},
	}, now)
}

func TestPrintAlertsTable(t *testing.T) {
	var buf bytes.Buffer
	if err := printAlerts(&buf, testReport(), false); err != nil {
		t.Fatalf("printAlerts() error = %v", err)
	}
	out := buf.String()
	for _, want := range []string{"TIER", "Asha Verma", "2024-01-01 (overdue)", "11000.00", "1 record(s) could not be evaluated", "No Date (c2)"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestPrintAlertsJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := printAlerts(&buf, testReport(), true); err != nil {
		t.Fatalf("printAlerts() error = %v", err)
	}
	var got struct {
		Alerts []struct {
			Tier string `json:"tier"`
		} `json:"alerts"`
		Failures []models.EvaluationFailure `json:"failures"`
	}
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if len(got.Alerts) != 1 || got.Alerts[0].Tier != "normal" {
		t.Errorf("alerts = %+v", got.Alerts)
	}
	if len(got.Failures) != 1 || got.Failures[0].CustomerID != "c2" {
		t.Errorf("failures = %+v", got.Failures)
	}
}

func TestHashPassword(t *testing.T) {
	if _, err := hashPassword("short"); err == nil {
		t.Error("hashPassword() accepted a short password")
	}
	hash, err := hashPassword("correct horse")
	if err != nil {
		t.Fatalf("hashPassword() error = %v", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte("correct horse")); err != nil {
		t.Errorf("hash does not verify: %v", err)
	}
}
