package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/Dan9191/rent-service/internal/config"
	"github.com/Dan9191/rent-service/internal/models"
	"github.com/Dan9191/rent-service/internal/repository"
	"github.com/sirupsen/logrus"
)

var ErrMockBackup = errors.New("backup store unavailable")

// memoryRepository keeps customers in insertion order
type memoryRepository struct {
	mu        sync.Mutex
	customers []*models.Customer
	nextID    int

	// BeforeUpdate runs against the stored record ahead of the version check
	BeforeUpdate func(stored *models.Customer)
}

func (m *memoryRepository) Create(ctx context.Context, c *models.Customer) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	now := time.Date(2024, 1, 1, 0, 0, m.nextID, 0, time.UTC)
	c.ID = fmt.Sprintf("cust-%d", m.nextID)
	c.CreatedAt, c.UpdatedAt = now, now
	m.customers = append(m.customers, c.Clone())
	return nil
}

func (m *memoryRepository) GetByID(ctx context.Context, id string) (*models.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, c := range m.customers {
		if c.ID == id {
			return c.Clone(), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memoryRepository) Update(ctx context.Context, c *models.Customer) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, existing := range m.customers {
		if existing.ID == c.ID {
			if m.BeforeUpdate != nil {
				m.BeforeUpdate(existing)
			}
			if !existing.UpdatedAt.Equal(c.UpdatedAt) {
				return repository.ErrConflict
			}
			c.CreatedAt = existing.CreatedAt
			c.UpdatedAt = existing.UpdatedAt.Add(time.Hour)
			m.customers[i] = c.Clone()
			return nil
		}
	}
	return repository.ErrNotFound
}

func (m *memoryRepository) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, c := range m.customers {
		if c.ID == id {
			m.customers = append(m.customers[:i], m.customers[i+1:]...)
			return nil
		}
	}
	return repository.ErrNotFound
}

func (m *memoryRepository) Search(ctx context.Context, name string) ([]*models.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	q := strings.ToLower(strings.TrimSpace(name))
	out := []*models.Customer{}
	for _, c := range m.customers {
		if strings.Contains(strings.ToLower(c.Name), q) {
			out = append(out, c.Clone())
		}
	}
	return out, nil
}

func (m *memoryRepository) stored(id string) *models.Customer {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.customers {
		if c.ID == id {
			return c
		}
	}
	return nil
}

// mockBackup records mirrored customers
type mockBackup struct {
	mu       sync.Mutex
	Err      error
	Mirrored []*models.Customer
}

func (m *mockBackup) Mirror(ctx context.Context, c *models.Customer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Mirrored = append(m.Mirrored, c.Clone())
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		JWTSecret:        "test-secret",
		TokenTTL:         time.Hour,
		AdminUsername:    "admin",
		EncryptionKey:    "000102030405060708090a0b0c0d0e0f",
		AlertHorizonDays: 3,
	}
}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newTestService(repo repository.CustomerRepository, backup repository.BackupStore, cfg *config.Config) *Service {
	svc, err := NewService(repo, backup, testLogger(), cfg)
	if err != nil {
		panic(err)
	}
	return svc
}
