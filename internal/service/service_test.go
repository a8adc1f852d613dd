package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Dan9191/rent-service/internal/increment"
	"github.com/Dan9191/rent-service/internal/models"
	"github.com/Dan9191/rent-service/internal/repository"
	"github.com/Dan9191/rent-service/internal/timeutil"
	"github.com/Dan9191/rent-service/internal/validator"
	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }
func decPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func validInput(name string) *models.CustomerInput {
	years := models.FlexString("3")
	return &models.CustomerInput{
		Name:                  strPtr(name),
		PhoneNumber:           strPtr("9876543210"),
		Address:               strPtr("12 MG Road, Pune"),
		TaxOrIDNumber:         strPtr("1234 5678 9012"),
		YearsOfEngagement:     &years,
		AdvancedMoney:         decPtr("20000"),
		CurrentRent:           decPtr("10000"),
		IncreasePercentage:    decPtr("10"),
		PreviousIncrementDate: strPtr("2023-01-01"),
		YearsUntilIncrease:    intPtr(1),
	}
}

func istDate(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, timeutil.IST)
}

func TestCreateCustomer(t *testing.T) {
	repo := &memoryRepository{}
	backup := &mockBackup{}
	svc := newTestService(repo, backup, testConfig())

	c, err := svc.CreateCustomer(context.Background(), validInput("Asha Verma"))
	if err != nil {
		t.Fatalf("CreateCustomer() error = %v", err)
	}
	if c.ID == "" {
		t.Fatal("CreateCustomer() returned no id")
	}
	if c.TaxOrIDNumber != "1234 5678 9012" {
		t.Errorf("TaxOrIDNumber = %q, want plaintext in the response", c.TaxOrIDNumber)
	}
	if !c.StartingRent.Equal(decimal.NewFromInt(10000)) {
		t.Errorf("StartingRent = %s, want default to current rent", c.StartingRent)
	}
	if !c.PreviousIncrementDate.Equal(istDate(2023, 1, 1)) {
		t.Errorf("PreviousIncrementDate = %v", c.PreviousIncrementDate)
	}

	stored := repo.stored(c.ID)
	if stored == nil || stored.TaxOrIDNumber == "1234 5678 9012" || stored.TaxOrIDNumber == "" {
		t.Errorf("stored tax id = %q, want ciphertext", stored.TaxOrIDNumber)
	}
	if len(backup.Mirrored) != 1 || backup.Mirrored[0].ID != c.ID {
		t.Fatalf("Mirrored = %+v, want one copy of %s", backup.Mirrored, c.ID)
	}
	if backup.Mirrored[0].TaxOrIDNumber != stored.TaxOrIDNumber {
		t.Error("backup copy differs from the stored record")
	}
}

func TestCreateCustomerValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(in *models.CustomerInput)
		fields []string
	}{
		{"missing everything", func(in *models.CustomerInput) { *in = models.CustomerInput{} },
			[]string{"previousIncrementDate", "name", "phoneNumber", "address", "yearsUntilIncrease"}},
		{"short phone", func(in *models.CustomerInput) { in.PhoneNumber = strPtr("12345") }, []string{"phoneNumber"}},
		{"bad date", func(in *models.CustomerInput) { in.PreviousIncrementDate = strPtr("01/01/2023") }, []string{"previousIncrementDate"}},
		{"percentage over 100", func(in *models.CustomerInput) { in.IncreasePercentage = decPtr("120") }, []string{"increasePercentage"}},
		{"zero interval", func(in *models.CustomerInput) { in.YearsUntilIncrease = intPtr(0) }, []string{"yearsUntilIncrease"}},
		{"rent in fractions of a paisa", func(in *models.CustomerInput) { in.CurrentRent = decPtr("10000.555") }, []string{"currentRent"}},
		{"deposit too precise", func(in *models.CustomerInput) { in.AdvancedMoney = decPtr("0.001") }, []string{"advancedMoney"}},
		{"percentage beyond four places", func(in *models.CustomerInput) { in.IncreasePercentage = decPtr("7.12345") }, []string{"increasePercentage"}},
		{"rent too large", func(in *models.CustomerInput) { in.CurrentRent = decPtr("1000000000000") }, []string{"currentRent"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &memoryRepository{}
			backup := &mockBackup{}
			svc := newTestService(repo, backup, testConfig())

			in := validInput("Asha Verma")
			tt.mutate(in)
			_, err := svc.CreateCustomer(context.Background(), in)

			var verr *validator.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("CreateCustomer() error = %v, want *ValidationError", err)
			}
			got := map[string]bool{}
			for _, f := range verr.Fields {
				got[f.Field] = true
			}
			for _, f := range tt.fields {
				if !got[f] {
					t.Errorf("missing field error for %s in %+v", f, verr.Fields)
				}
			}
			if len(repo.customers) != 0 || len(backup.Mirrored) != 0 {
				t.Error("rejected customer was written")
			}
		})
	}
}

func TestBackupFailureDoesNotBlockWrites(t *testing.T) {
	repo := &memoryRepository{}
	svc := newTestService(repo, &mockBackup{Err: ErrMockBackup}, testConfig())

	c, err := svc.CreateCustomer(context.Background(), validInput("Asha Verma"))
	if err != nil {
		t.Fatalf("CreateCustomer() error = %v", err)
	}
	if repo.stored(c.ID) == nil {
		t.Fatal("primary write missing")
	}

	if _, err := svc.UpdateCustomer(context.Background(), c.ID, &models.CustomerInput{Address: strPtr("New address")}); err != nil {
		t.Fatalf("UpdateCustomer() error = %v", err)
	}
	if repo.stored(c.ID).Address != "New address" {
		t.Error("primary update missing")
	}
}

func TestSearchCustomers(t *testing.T) {
	svc := newTestService(&memoryRepository{}, &mockBackup{}, testConfig())
	ctx := context.Background()
	for _, name := range []string{"Asha Verma", "Ravi Kumar", "Ashok Rao"} {
		if _, err := svc.CreateCustomer(ctx, validInput(name)); err != nil {
			t.Fatalf("CreateCustomer(%s) error = %v", name, err)
		}
	}

	all, err := svc.SearchCustomers(ctx, "")
	if err != nil {
		t.Fatalf("SearchCustomers(\"\") error = %v", err)
	}
	if got := names(all); strings.Join(got, ",") != "Asha Verma,Ravi Kumar,Ashok Rao" {
		t.Errorf("SearchCustomers(\"\") = %v, want all three in insertion order", got)
	}

	ash, _ := svc.SearchCustomers(ctx, "ASH")
	if got := names(ash); strings.Join(got, ",") != "Asha Verma,Ashok Rao" {
		t.Errorf("SearchCustomers(ASH) = %v", got)
	}
	if ash[0].TaxOrIDNumber != "1234 5678 9012" {
		t.Errorf("search result tax id = %q, want decrypted", ash[0].TaxOrIDNumber)
	}

	listed, _ := svc.ListCustomers(ctx)
	if len(listed) != 3 {
		t.Errorf("ListCustomers() = %d customers, want 3", len(listed))
	}
}

func TestUpdateCustomerIsPartial(t *testing.T) {
	repo := &memoryRepository{}
	backup := &mockBackup{}
	svc := newTestService(repo, backup, testConfig())
	ctx := context.Background()

	c, _ := svc.CreateCustomer(ctx, validInput("Asha Verma"))
	updated, err := svc.UpdateCustomer(ctx, c.ID, &models.CustomerInput{
		CurrentRent:        decPtr("10500"),
		YearsUntilIncrease: intPtr(2),
	})
	if err != nil {
		t.Fatalf("UpdateCustomer() error = %v", err)
	}
	if !updated.CurrentRent.Equal(decimal.NewFromInt(10500)) || updated.YearsUntilIncrease != 2 {
		t.Errorf("updated = rent %s years %d", updated.CurrentRent, updated.YearsUntilIncrease)
	}
	if updated.Name != "Asha Verma" || updated.PhoneNumber != "9876543210" || updated.TaxOrIDNumber != "1234 5678 9012" {
		t.Errorf("unspecified fields changed: %+v", updated)
	}
	if !updated.StartingRent.Equal(decimal.NewFromInt(10000)) {
		t.Errorf("StartingRent = %s, want unchanged 10000", updated.StartingRent)
	}
	if len(backup.Mirrored) != 2 {
		t.Errorf("Mirrored %d copies, want 2 (create + update)", len(backup.Mirrored))
	}
}

func TestUpdateCustomerRejectsInvalidPatch(t *testing.T) {
	repo := &memoryRepository{}
	svc := newTestService(repo, &mockBackup{}, testConfig())
	ctx := context.Background()

	c, _ := svc.CreateCustomer(ctx, validInput("Asha Verma"))
	_, err := svc.UpdateCustomer(ctx, c.ID, &models.CustomerInput{IncreasePercentage: decPtr("101")})

	var verr *validator.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("UpdateCustomer() error = %v, want *ValidationError", err)
	}
	if !repo.stored(c.ID).IncreasePercentage.Equal(decimal.NewFromInt(10)) {
		t.Error("stored record changed after a rejected update")
	}
}

func TestNotFound(t *testing.T) {
	repo := &memoryRepository{}
	svc := newTestService(repo, &mockBackup{}, testConfig())
	ctx := context.Background()
	_, _ = svc.CreateCustomer(ctx, validInput("Asha Verma"))

	if _, err := svc.GetCustomer(ctx, "missing"); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("GetCustomer() error = %v, want ErrNotFound", err)
	}
	if _, err := svc.UpdateCustomer(ctx, "missing", validInput("X Y")); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("UpdateCustomer() error = %v, want ErrNotFound", err)
	}
	if err := svc.DeleteCustomer(ctx, "missing"); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("DeleteCustomer() error = %v, want ErrNotFound", err)
	}
	if len(repo.customers) != 1 {
		t.Errorf("repository holds %d customers after failed delete, want 1", len(repo.customers))
	}
}

func TestDeleteCustomer(t *testing.T) {
	repo := &memoryRepository{}
	svc := newTestService(repo, &mockBackup{}, testConfig())
	ctx := context.Background()

	c, _ := svc.CreateCustomer(ctx, validInput("Asha Verma"))
	if err := svc.DeleteCustomer(ctx, c.ID); err != nil {
		t.Fatalf("DeleteCustomer() error = %v", err)
	}
	if _, err := svc.GetCustomer(ctx, c.ID); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("GetCustomer() after delete error = %v, want ErrNotFound", err)
	}
}

func TestEvaluateCustomer(t *testing.T) {
	svc := newTestService(&memoryRepository{}, &mockBackup{}, testConfig())
	ctx := context.Background()
	c, _ := svc.CreateCustomer(ctx, validInput("Asha Verma"))

	_, view, err := svc.EvaluateCustomer(ctx, c.ID, istDate(2024, 6, 1))
	if err != nil {
		t.Fatalf("EvaluateCustomer() error = %v", err)
	}
	if !view.IsOverdue || view.ProjectedRent.StringFixed(2) != "11000.00" {
		t.Errorf("view = overdue %v projected %s", view.IsOverdue, view.ProjectedRent)
	}
	if !view.NextIncrementDate.Equal(istDate(2024, 1, 1)) {
		t.Errorf("NextIncrementDate = %v", view.NextIncrementDate)
	}
}

func TestApplyIncrement(t *testing.T) {
	repo := &memoryRepository{}
	backup := &mockBackup{}
	svc := newTestService(repo, backup, testConfig())
	ctx := context.Background()
	c, _ := svc.CreateCustomer(ctx, validInput("Asha Verma"))

	// not overdue yet: nothing is written
	_, err := svc.ApplyIncrement(ctx, c.ID, istDate(2023, 12, 30))
	if !errors.Is(err, ErrIncrementNotDue) {
		t.Fatalf("ApplyIncrement() early error = %v, want ErrIncrementNotDue", err)
	}
	if len(backup.Mirrored) != 1 {
		t.Errorf("early ApplyIncrement wrote a backup")
	}

	rolled, err := svc.ApplyIncrement(ctx, c.ID, istDate(2024, 6, 1))
	if err != nil {
		t.Fatalf("ApplyIncrement() error = %v", err)
	}
	if rolled.CurrentRent.StringFixed(2) != "11000.00" || !rolled.PreviousIncrementDate.Equal(istDate(2024, 1, 1)) {
		t.Errorf("rolled = rent %s date %v", rolled.CurrentRent, rolled.PreviousIncrementDate)
	}
	stored := repo.stored(c.ID)
	if !stored.CurrentRent.Equal(decimal.NewFromInt(11000)) {
		t.Errorf("stored rent = %s, want 11000", stored.CurrentRent)
	}
	if stored.TaxOrIDNumber == "1234 5678 9012" {
		t.Error("tax id stored in plaintext after apply")
	}

	// the next step is a year later, so applying again on the same day is refused
	if _, err := svc.ApplyIncrement(ctx, c.ID, istDate(2024, 6, 1)); !errors.Is(err, ErrIncrementNotDue) {
		t.Errorf("second ApplyIncrement() error = %v, want ErrIncrementNotDue", err)
	}
}

func TestApplyIncrementLosesToConcurrentEdit(t *testing.T) {
	repo := &memoryRepository{}
	backup := &mockBackup{}
	svc := newTestService(repo, backup, testConfig())
	ctx := context.Background()
	c, _ := svc.CreateCustomer(ctx, validInput("Asha Verma"))

	// another operator corrects the rent between the read and the write
	repo.BeforeUpdate = func(stored *models.Customer) {
		stored.CurrentRent = decimal.NewFromInt(12000)
		stored.UpdatedAt = stored.UpdatedAt.Add(time.Minute)
	}

	_, err := svc.ApplyIncrement(ctx, c.ID, istDate(2024, 6, 1))
	if !errors.Is(err, repository.ErrConflict) {
		t.Fatalf("ApplyIncrement() error = %v, want ErrConflict", err)
	}
	if got := repo.stored(c.ID).CurrentRent; !got.Equal(decimal.NewFromInt(12000)) {
		t.Errorf("stored rent = %s, want the concurrent edit 12000 kept", got)
	}
	if len(backup.Mirrored) != 1 {
		t.Errorf("backup written %d times, want only the create", len(backup.Mirrored))
	}
}

func TestAlertReportSeparatesFailures(t *testing.T) {
	repo := &memoryRepository{}
	svc := newTestService(repo, &mockBackup{}, testConfig())
	ctx := context.Background()

	soon := validInput("Due Soon")
	soon.PreviousIncrementDate = strPtr("2023-06-03")
	_, _ = svc.CreateCustomer(ctx, validInput("Normal One"))
	_, _ = svc.CreateCustomer(ctx, soon)

	// a legacy record with no interval, written straight to the store
	_ = repo.Create(ctx, &models.Customer{Name: "Legacy", PreviousIncrementDate: istDate(2020, 1, 1)})

	report, err := svc.AlertReport(ctx, istDate(2024, 6, 1))
	if err != nil {
		t.Fatalf("AlertReport() error = %v", err)
	}
	if len(report.Failures) != 1 || report.Failures[0].Name != "Legacy" {
		t.Errorf("Failures = %+v", report.Failures)
	}
	if len(report.Alerts) != 2 || report.Alerts[0].Customer.Name != "Due Soon" || report.Alerts[0].Tier != models.TierDueSoon {
		t.Errorf("Alerts not sorted by tier: %+v", report.Alerts)
	}
}

func TestLogin(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	cfg := testConfig()
	cfg.AdminPasswordHash = string(hash)
	svc := newTestService(&memoryRepository{}, &mockBackup{}, cfg)

	token, err := svc.Login("admin", "s3cret")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(cfg.JWTSecret), nil
	})
	if err != nil || !parsed.Valid || claims.Subject != "admin" {
		t.Errorf("token invalid: %v, subject %q", err, claims.Subject)
	}

	for _, creds := range [][2]string{{"admin", "wrong"}, {"root", "s3cret"}} {
		if _, err := svc.Login(creds[0], creds[1]); !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("Login(%s, %s) error = %v, want ErrInvalidCredentials", creds[0], creds[1], err)
		}
	}

	cfg.AdminPasswordHash = ""
	if _, err := svc.Login("admin", ""); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("Login() with no configured hash error = %v", err)
	}
}

func TestNewServiceRejectsBadKey(t *testing.T) {
	cfg := testConfig()
	cfg.EncryptionKey = "abcd"
	if _, err := NewService(&memoryRepository{}, &mockBackup{}, testLogger(), cfg); err == nil {
		t.Error("NewService() with a 2 byte key succeeded")
	}
}

func TestServiceUsesConfiguredHorizon(t *testing.T) {
	cfg := testConfig()
	cfg.AlertHorizonDays = 0
	svc := newTestService(&memoryRepository{}, &mockBackup{}, cfg)
	if svc.engine.HorizonDays != increment.DefaultHorizonDays {
		t.Errorf("HorizonDays = %d, want default", svc.engine.HorizonDays)
	}
}

func names(customers []*models.Customer) []string {
	out := make([]string, 0, len(customers))
	for _, c := range customers {
		out = append(out, c.Name)
	}
	return out
}
