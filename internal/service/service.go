package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Dan9191/rent-service/internal/config"
	"github.com/Dan9191/rent-service/internal/increment"
	"github.com/Dan9191/rent-service/internal/models"
	"github.com/Dan9191/rent-service/internal/repository"
	"github.com/Dan9191/rent-service/internal/timeutil"
	"github.com/Dan9191/rent-service/internal/utils"
	"github.com/Dan9191/rent-service/internal/validator"
	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrIncrementNotDue    = errors.New("increment is not due yet")
)

// Service handles business logic
type Service struct {
	repo      repository.CustomerRepository
	backup    repository.BackupStore
	engine    *increment.Engine
	validator *validator.Validator
	log       *logrus.Logger
	config    *config.Config
	sealer    *utils.Sealer
}

// NewService initializes a new service
func NewService(repo repository.CustomerRepository, backup repository.BackupStore, log *logrus.Logger, cfg *config.Config) (*Service, error) {
	key, err := cfg.EncryptionKeyBytes()
	if err != nil {
		return nil, err
	}
	sealer, err := utils.NewSealer(key)
	if err != nil {
		return nil, err
	}
	return &Service{
		repo:      repo,
		backup:    backup,
		engine:    increment.NewEngine(cfg.AlertHorizonDays),
		validator: validator.New(),
		log:       log,
		config:    cfg,
		sealer:    sealer,
	}, nil
}

// Login checks the operator credentials and returns a JWT
func (s *Service) Login(username, password string) (string, error) {
	if s.config.AdminPasswordHash == "" || username != s.config.AdminUsername {
		return "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(s.config.AdminPasswordHash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   username,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.config.TokenTTL)),
	})
	tokenString, err := token.SignedString([]byte(s.config.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}

	s.log.Infof("Operator logged in: %s", username)
	return tokenString, nil
}

// CreateCustomer validates and stores a new customer
func (s *Service) CreateCustomer(ctx context.Context, in *models.CustomerInput) (*models.Customer, error) {
	customer := &models.Customer{}
	if err := s.apply(customer, in); err != nil {
		return nil, err
	}

	stored, err := s.sealed(customer)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, stored); err != nil {
		return nil, err
	}
	s.mirror(ctx, stored)

	customer.ID, customer.CreatedAt, customer.UpdatedAt = stored.ID, stored.CreatedAt, stored.UpdatedAt
	s.log.WithField("customer_id", customer.ID).Infof("Customer created: %s", customer.Name)
	return customer, nil
}

// GetCustomer returns a customer by id
func (s *Service) GetCustomer(ctx context.Context, id string) (*models.Customer, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.opened(c), nil
}

// ListCustomers returns every customer in insertion order
func (s *Service) ListCustomers(ctx context.Context) ([]*models.Customer, error) {
	return s.SearchCustomers(ctx, "")
}

// SearchCustomers returns customers whose name contains query
func (s *Service) SearchCustomers(ctx context.Context, query string) ([]*models.Customer, error) {
	customers, err := s.repo.Search(ctx, query)
	if err != nil {
		return nil, err
	}
	for i, c := range customers {
		customers[i] = s.opened(c)
	}
	return customers, nil
}

// UpdateCustomer applies the non-nil fields of in to an existing customer
func (s *Service) UpdateCustomer(ctx context.Context, id string, in *models.CustomerInput) (*models.Customer, error) {
	customer, err := s.GetCustomer(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.apply(customer, in); err != nil {
		return nil, err
	}
	if err := s.save(ctx, customer); err != nil {
		return nil, err
	}

	s.log.WithField("customer_id", id).Infof("Customer updated: %s", customer.Name)
	return customer, nil
}

// DeleteCustomer removes a customer. The backup copy is kept.
func (s *Service) DeleteCustomer(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.log.WithField("customer_id", id).Info("Customer deleted")
	return nil
}

// EvaluateCustomer returns a customer with its increment state at now.
// The customer is returned even when the record cannot be evaluated.
func (s *Service) EvaluateCustomer(ctx context.Context, id string, now time.Time) (*models.Customer, *models.IncrementView, error) {
	customer, err := s.GetCustomer(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	view, err := s.engine.Evaluate(customer, now)
	if err != nil {
		return customer, nil, err
	}
	return customer, view, nil
}

// AlertReport evaluates every customer at now and sorts them by alert tier
func (s *Service) AlertReport(ctx context.Context, now time.Time) (*models.AlertReport, error) {
	customers, err := s.ListCustomers(ctx)
	if err != nil {
		return nil, err
	}
	report := s.engine.EvaluateAll(customers, now)
	for _, f := range report.Failures {
		s.log.WithFields(logrus.Fields{
			"customer_id": f.CustomerID,
			"reason":      f.Error,
		}).Warn("Customer excluded from alert report")
	}
	return report, nil
}

// ApplyIncrement commits one overdue increment step for a customer
func (s *Service) ApplyIncrement(ctx context.Context, id string, now time.Time) (*models.Customer, error) {
	customer, view, err := s.EvaluateCustomer(ctx, id, now)
	if err != nil {
		return nil, err
	}
	if !view.IsOverdue {
		return nil, fmt.Errorf("%w: next increment on %s", ErrIncrementNotDue, timeutil.FormatDate(view.NextIncrementDate))
	}

	rolled := view.RolledForwardRecord
	if err := s.save(ctx, rolled); err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"customer_id": id,
		"from":        customer.CurrentRent.StringFixed(2),
		"to":          rolled.CurrentRent.StringFixed(2),
	}).Info("Rent increment applied")
	return rolled, nil
}

// Now returns the service clock in IST
func (s *Service) Now() time.Time {
	return timeutil.Now()
}

func (s *Service) save(ctx context.Context, customer *models.Customer) error {
	stored, err := s.sealed(customer)
	if err != nil {
		return err
	}
	if err := s.repo.Update(ctx, stored); err != nil {
		return err
	}
	s.mirror(ctx, stored)
	customer.CreatedAt, customer.UpdatedAt = stored.CreatedAt, stored.UpdatedAt
	return nil
}

// apply copies the set fields of in onto c and validates the result
func (s *Service) apply(c *models.Customer, in *models.CustomerInput) error {
	var extra []validator.FieldError

	if in.Name != nil {
		c.Name = strings.TrimSpace(*in.Name)
	}
	if in.PhoneNumber != nil {
		c.PhoneNumber = strings.TrimSpace(*in.PhoneNumber)
	}
	if in.Address != nil {
		c.Address = strings.TrimSpace(*in.Address)
	}
	if in.TaxOrIDNumber != nil {
		c.TaxOrIDNumber = strings.TrimSpace(*in.TaxOrIDNumber)
	}
	if in.YearsOfEngagement != nil {
		c.YearsOfEngagement = *in.YearsOfEngagement
	}
	if in.AdvancedMoney != nil {
		c.AdvancedMoney = *in.AdvancedMoney
	}
	if in.StartingRent != nil {
		c.StartingRent = *in.StartingRent
	}
	if in.CurrentRent != nil {
		c.CurrentRent = *in.CurrentRent
	}
	if in.IncreasePercentage != nil {
		c.IncreasePercentage = *in.IncreasePercentage
	}
	if in.YearsUntilIncrease != nil {
		c.YearsUntilIncrease = *in.YearsUntilIncrease
	}
	if in.PreviousIncrementDate != nil {
		d, err := timeutil.ParseDate(*in.PreviousIncrementDate)
		if err != nil {
			extra = append(extra, validator.FieldError{Field: "previousIncrementDate", Message: "Must be a date (YYYY-MM-DD)"})
		} else {
			c.PreviousIncrementDate = d
		}
	}
	if c.PreviousIncrementDate.IsZero() && len(extra) == 0 {
		extra = append(extra, validator.FieldError{Field: "previousIncrementDate", Message: "This field is required"})
	}
	// a starting rent left blank on intake defaults to the current rent
	if c.ID == "" && in.StartingRent == nil {
		c.StartingRent = c.CurrentRent
	}

	extra = append(extra, amountErrors(c)...)

	return s.validator.Struct(c, extra...)
}

// maxAmount is the first value the NUMERIC(14,2) money columns cannot hold
var maxAmount = decimal.New(1, 12)

// amountErrors rejects amounts the stores would round or overflow, so what a
// write returns is what a later read returns.
func amountErrors(c *models.Customer) []validator.FieldError {
	checks := []struct {
		field  string
		value  decimal.Decimal
		places int32
	}{
		{"advancedMoney", c.AdvancedMoney, 2},
		{"startingRent", c.StartingRent, 2},
		{"currentRent", c.CurrentRent, 2},
		{"increasePercentage", c.IncreasePercentage, 4},
	}
	var out []validator.FieldError
	for _, ch := range checks {
		switch {
		case !ch.value.Equal(ch.value.Round(ch.places)):
			out = append(out, validator.FieldError{
				Field:   ch.field,
				Message: fmt.Sprintf("Must have at most %d decimal places", ch.places),
			})
		case ch.places == 2 && ch.value.GreaterThanOrEqual(maxAmount):
			out = append(out, validator.FieldError{Field: ch.field, Message: "Must be less than 1000000000000"})
		}
	}
	return out
}

// sealed returns a copy of c ready for storage, with the tax id encrypted
func (s *Service) sealed(c *models.Customer) (*models.Customer, error) {
	stored := c.Clone()
	if stored.TaxOrIDNumber == "" {
		return stored, nil
	}
	enc, err := s.sealer.Seal(stored.TaxOrIDNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt tax id: %w", err)
	}
	stored.TaxOrIDNumber = enc
	return stored, nil
}

// opened decrypts the tax id of a stored record in place.
// Values written before encryption was enabled are returned as stored.
func (s *Service) opened(c *models.Customer) *models.Customer {
	if c.TaxOrIDNumber == "" {
		return c
	}
	plain, err := s.sealer.Open(c.TaxOrIDNumber)
	if err != nil {
		s.log.WithField("customer_id", c.ID).Debugf("Tax id is not encrypted: %v", err)
		return c
	}
	c.TaxOrIDNumber = plain
	return c
}

// mirror writes the backup copy; failures never affect the primary write
func (s *Service) mirror(ctx context.Context, stored *models.Customer) {
	if s.backup == nil {
		return
	}
	if err := s.backup.Mirror(ctx, stored); err != nil {
		s.log.WithField("customer_id", stored.ID).Warnf("Backup write failed: %v", err)
	}
}
