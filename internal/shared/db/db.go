package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/dbresolver"
	"gorm.io/plugin/opentelemetry/tracing"

	"notify-service/internal/shared/backoff"
	"notify-service/internal/shared/logging"
)

type Store struct{ Base *gorm.DB }

// Open connects to the primary with retries and, when replicas are given,
// routes reads to them through dbresolver.
func Open(ctx context.Context, dsn string, replicas []string) (*Store, error) {
	lg := logging.Component("db")

	base, err := backoff.WithBackoff(ctx, 8, 2*time.Second, func(ctx context.Context) (*gorm.DB, error) {
		db, err := open(ctx, dsn)
		if err != nil {
			lg.Warn().Err(err).Msg("db open attempt failed")
		}
		return db, err
	})
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}

	sqlDB, err := base.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(40)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	if len(replicas) > 0 {
		readers := make([]gorm.Dialector, 0, len(replicas))
		for _, r := range replicas {
			readers = append(readers, postgres.Open(r))
		}
		resolver := dbresolver.Register(dbresolver.Config{
			Replicas: readers,
			Policy:   dbresolver.RandomPolicy{},
		})
		if err := base.Use(resolver); err != nil {
			return nil, fmt.Errorf("dbresolver: %w", err)
		}
		lg.Info().Int("replicas", len(replicas)).Msg("read replicas registered")
	}

	if err := base.Use(tracing.NewPlugin()); err != nil {
		return nil, fmt.Errorf("db tracing: %w", err)
	}

	return &Store{Base: base}, nil
}

func open(ctx context.Context, dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}
	s, err := db.DB()
	if err != nil {
		return nil, err
	}
	if err := pingWithTimeout(ctx, s, 2*time.Second); err != nil {
		return nil, err
	}
	return db, nil
}

func pingWithTimeout(ctx context.Context, sqlDB *sql.DB, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("db ping: %w", err)
	}
	return nil
}

// Ping reports whether the primary answers.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.Base.DB()
	if err != nil {
		return err
	}
	return pingWithTimeout(ctx, sqlDB, 2*time.Second)
}

func (s *Store) Close() error {
	sqlDB, err := s.Base.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
