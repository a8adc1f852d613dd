package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Dan9191/rent-service/internal/config"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Store bundles the configured customer repository with its backup store
type Store struct {
	Customers CustomerRepository
	Backup    BackupStore
	close     func(ctx context.Context) error
}

// Close releases the underlying connection
func (s *Store) Close(ctx context.Context) error {
	if s.close == nil {
		return nil
	}
	return s.close(ctx)
}

// Open connects to the store selected by cfg.StoreDriver and prepares its schema
func Open(ctx context.Context, cfg *config.Config, log *logrus.Logger) (*Store, error) {
	switch cfg.StoreDriver {
	case config.DriverMongo:
		return openMongo(ctx, cfg, log)
	case config.DriverPostgres:
		return openPostgres(ctx, cfg, log)
	}
	return nil, fmt.Errorf("unsupported store driver %q", cfg.StoreDriver)
}

func openPostgres(ctx context.Context, cfg *config.Config, log *logrus.Logger) (*Store, error) {
	db, err := sql.Open("postgres", cfg.DBConn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	repo := NewRepository(db)
	if err := repo.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	log.Info("Connected to PostgreSQL store")

	return &Store{
		Customers: repo,
		Backup:    NewBackup(db),
		close:     func(context.Context) error { return db.Close() },
	}, nil
}

func openMongo(ctx context.Context, cfg *config.Config, log *logrus.Logger) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	db := client.Database(cfg.MongoDatabase)
	repo := NewMongoRepository(db, log)
	if err := repo.Migrate(ctx); err != nil {
		client.Disconnect(ctx)
		return nil, err
	}
	log.WithField("database", cfg.MongoDatabase).Info("Connected to MongoDB store")

	return &Store{
		Customers: repo,
		Backup:    NewMongoBackup(db),
		close:     client.Disconnect,
	}, nil
}
