package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Dan9191/rent-service/internal/models"
	"github.com/Dan9191/rent-service/internal/timeutil"
	"github.com/google/uuid"
)

const schema = `
CREATE SCHEMA IF NOT EXISTS rent;

CREATE TABLE IF NOT EXISTS rent.customers (
	id                      UUID PRIMARY KEY,
	seq                     BIGSERIAL,
	name                    TEXT NOT NULL,
	phone_number            TEXT NOT NULL,
	address                 TEXT NOT NULL,
	tax_or_id_number        TEXT NOT NULL DEFAULT '',
	years_of_engagement     TEXT NOT NULL DEFAULT '',
	advanced_money          NUMERIC(14, 2) NOT NULL DEFAULT 0,
	starting_rent           NUMERIC(14, 2) NOT NULL DEFAULT 0,
	current_rent            NUMERIC(14, 2) NOT NULL DEFAULT 0,
	increase_percentage     NUMERIC(7, 4) NOT NULL DEFAULT 0,
	previous_increment_date DATE NOT NULL,
	years_until_increase    INTEGER NOT NULL CHECK (years_until_increase >= 1),
	created_at              TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at              TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS rent.customers_backup (
	id                      UUID PRIMARY KEY,
	name                    TEXT NOT NULL,
	phone_number            TEXT NOT NULL,
	address                 TEXT NOT NULL,
	tax_or_id_number        TEXT NOT NULL DEFAULT '',
	years_of_engagement     TEXT NOT NULL DEFAULT '',
	advanced_money          NUMERIC(14, 2) NOT NULL DEFAULT 0,
	starting_rent           NUMERIC(14, 2) NOT NULL DEFAULT 0,
	current_rent            NUMERIC(14, 2) NOT NULL DEFAULT 0,
	increase_percentage     NUMERIC(7, 4) NOT NULL DEFAULT 0,
	previous_increment_date DATE NOT NULL,
	years_until_increase    INTEGER NOT NULL,
	created_at              TIMESTAMPTZ NOT NULL,
	updated_at              TIMESTAMPTZ NOT NULL,
	backed_up_at            TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
);`

const customerColumns = `id, name, phone_number, address, tax_or_id_number, years_of_engagement,
		advanced_money, starting_rent, current_rent, increase_percentage,
		previous_increment_date, years_until_increase, created_at, updated_at`

// Repository provides PostgreSQL storage for customers
type Repository struct {
	db *sql.DB
}

// NewRepository initializes a new repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Migrate creates the rent schema if it does not exist yet
func (r *Repository) Migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCustomer(row rowScanner) (*models.Customer, error) {
	c := &models.Customer{}
	var years string
	err := row.Scan(&c.ID, &c.Name, &c.PhoneNumber, &c.Address, &c.TaxOrIDNumber, &years,
		&c.AdvancedMoney, &c.StartingRent, &c.CurrentRent, &c.IncreasePercentage,
		&c.PreviousIncrementDate, &c.YearsUntilIncrease, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	c.YearsOfEngagement = models.FlexString(years)
	c.PreviousIncrementDate = timeutil.DateOf(c.PreviousIncrementDate)
	return c, nil
}

// Create inserts a new customer
func (r *Repository) Create(ctx context.Context, c *models.Customer) error {
	query := `
		INSERT INTO rent.customers (id, name, phone_number, address, tax_or_id_number, years_of_engagement,
			advanced_money, starting_rent, current_rent, increase_percentage,
			previous_increment_date, years_until_increase, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		RETURNING created_at, updated_at`
	id := uuid.NewString()
	err := r.db.QueryRowContext(ctx, query, id, c.Name, c.PhoneNumber, c.Address, c.TaxOrIDNumber,
		string(c.YearsOfEngagement), c.AdvancedMoney, c.StartingRent, c.CurrentRent, c.IncreasePercentage,
		timeutil.FormatDate(c.PreviousIncrementDate), c.YearsUntilIncrease).
		Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create customer: %w", err)
	}
	c.ID = id
	return nil
}

// GetByID retrieves a customer by id
func (r *Repository) GetByID(ctx context.Context, id string) (*models.Customer, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	query := `SELECT ` + customerColumns + ` FROM rent.customers WHERE id = $1`
	c, err := scanCustomer(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find customer: %w", err)
	}
	return c, nil
}

// Update overwrites a customer's fields if it is still at version c.UpdatedAt
func (r *Repository) Update(ctx context.Context, c *models.Customer) error {
	if _, err := uuid.Parse(c.ID); err != nil {
		return ErrNotFound
	}
	query := `
		UPDATE rent.customers SET name = $2, phone_number = $3, address = $4, tax_or_id_number = $5,
			years_of_engagement = $6, advanced_money = $7, starting_rent = $8, current_rent = $9,
			increase_percentage = $10, previous_increment_date = $11, years_until_increase = $12,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = $1 AND updated_at = $13
		RETURNING created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query, c.ID, c.Name, c.PhoneNumber, c.Address, c.TaxOrIDNumber,
		string(c.YearsOfEngagement), c.AdvancedMoney, c.StartingRent, c.CurrentRent, c.IncreasePercentage,
		timeutil.FormatDate(c.PreviousIncrementDate), c.YearsUntilIncrease, c.UpdatedAt).
		Scan(&c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		var exists bool
		if err := r.db.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM rent.customers WHERE id = $1)`, c.ID).Scan(&exists); err != nil {
			return fmt.Errorf("failed to update customer: %w", err)
		}
		if !exists {
			return ErrNotFound
		}
		return ErrConflict
	}
	if err != nil {
		return fmt.Errorf("failed to update customer: %w", err)
	}
	return nil
}

// Delete removes a customer
func (r *Repository) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM rent.customers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete customer: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete customer: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Search lists customers whose name contains query, ignoring case
func (r *Repository) Search(ctx context.Context, query string) ([]*models.Customer, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+customerColumns+` FROM rent.customers WHERE name ILIKE $1 ORDER BY seq`,
		likePattern(query))
	if err != nil {
		return nil, fmt.Errorf("failed to search customers: %w", err)
	}
	defer rows.Close()

	customers := []*models.Customer{}
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan customer: %w", err)
		}
		customers = append(customers, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to search customers: %w", err)
	}
	return customers, nil
}

// Backup writes audit copies into rent.customers_backup
type Backup struct {
	db *sql.DB
}

// NewBackup initializes the Postgres backup store
func NewBackup(db *sql.DB) *Backup {
	return &Backup{db: db}
}

// Mirror upserts the audit copy of c
func (b *Backup) Mirror(ctx context.Context, c *models.Customer) error {
	query := `
		INSERT INTO rent.customers_backup (` + customerColumns + `, backed_up_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, CURRENT_TIMESTAMP)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, phone_number = EXCLUDED.phone_number, address = EXCLUDED.address,
			tax_or_id_number = EXCLUDED.tax_or_id_number, years_of_engagement = EXCLUDED.years_of_engagement,
			advanced_money = EXCLUDED.advanced_money, starting_rent = EXCLUDED.starting_rent,
			current_rent = EXCLUDED.current_rent, increase_percentage = EXCLUDED.increase_percentage,
			previous_increment_date = EXCLUDED.previous_increment_date,
			years_until_increase = EXCLUDED.years_until_increase,
			created_at = EXCLUDED.created_at, updated_at = EXCLUDED.updated_at,
			backed_up_at = CURRENT_TIMESTAMP`
	_, err := b.db.ExecContext(ctx, query, c.ID, c.Name, c.PhoneNumber, c.Address, c.TaxOrIDNumber,
		string(c.YearsOfEngagement), c.AdvancedMoney, c.StartingRent, c.CurrentRent, c.IncreasePercentage,
		timeutil.FormatDate(c.PreviousIncrementDate), c.YearsUntilIncrease, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to back up customer %s: %w", c.ID, err)
	}
	return nil
}
