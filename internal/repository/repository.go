package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/Dan9191/rent-service/internal/models"
)

var (
	// ErrNotFound is returned when no customer has the requested id
	ErrNotFound = errors.New("customer not found")
	// ErrConflict is returned when a customer changed after it was read
	ErrConflict = errors.New("customer was modified concurrently")
)

// CustomerRepository stores rent records
type CustomerRepository interface {
	// Create assigns ID, CreatedAt and UpdatedAt
	Create(ctx context.Context, c *models.Customer) error
	GetByID(ctx context.Context, id string) (*models.Customer, error)
	// Update replaces every stored field of c.ID and refreshes UpdatedAt.
	// It returns ErrConflict when the stored UpdatedAt differs from c.UpdatedAt.
	Update(ctx context.Context, c *models.Customer) error
	Delete(ctx context.Context, id string) error
	// Search matches name case-insensitively; an empty query returns every record.
	// Results come back in insertion order.
	Search(ctx context.Context, name string) ([]*models.Customer, error)
}

// BackupStore keeps an audit copy of every written record, keyed by the same id
type BackupStore interface {
	Mirror(ctx context.Context, c *models.Customer) error
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likePattern turns a search query into a substring pattern where the
// query's own wildcard characters match literally.
func likePattern(query string) string {
	return "%" + likeEscaper.Replace(strings.TrimSpace(query)) + "%"
}
