// Package localstore is the device-scoped durable key/value slot holding the
// credential and the serialized cart.
package localstore

import (
	"context"
	"fmt"
	"time"

	"github.com/SigNoz/marketplace-storefront/internal/db"
	"github.com/SigNoz/marketplace-storefront/internal/metrics"
	"github.com/SigNoz/marketplace-storefront/pkg/config"
	"github.com/redis/go-redis/v9"
)

// Store is a string key/value slot. Get reports found=false for absent keys.
// Deleting an absent key is not an error.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, keys ...string) error
	Close() error
}

// Open builds the store selected by cfg.StoreBackend, wrapped with metrics
func Open(ctx context.Context, cfg *config.Config, m *metrics.AppMetrics) (Store, error) {
	var (
		s   Store
		err error
	)

	switch cfg.StoreBackend {
	case config.BackendSQLite:
		s, err = openSQL(ctx, db.DriverSQLite, cfg.SQLitePath, cfg.OTELServiceName)
	case config.BackendMySQL:
		s, err = openSQL(ctx, db.DriverMySQL, cfg.GetDSN(), cfg.OTELServiceName)
	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err = client.Ping(pingCtx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to ping redis: %w", err)
		}
		s = NewRedisStore(client, cfg.RedisKeyPrefix)
	case config.BackendMemory:
		s = NewMemoryStore()
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
	if err != nil {
		return nil, err
	}

	return Instrument(s, cfg.StoreBackend, m), nil
}

func openSQL(ctx context.Context, driver, dsn, serviceName string) (Store, error) {
	database, err := db.NewDB(driver, dsn, serviceName)
	if err != nil {
		return nil, err
	}
	s, err := NewSQLStore(ctx, database)
	if err != nil {
		database.Close()
		return nil, err
	}
	return s, nil
}

// instrumented records every operation of the wrapped store
type instrumented struct {
	Store
	backend string
	metrics *metrics.AppMetrics
}

// Instrument wraps s so every operation is recorded in m
func Instrument(s Store, backend string, m *metrics.AppMetrics) Store {
	return &instrumented{Store: s, backend: backend, metrics: m}
}

func (s *instrumented) Get(ctx context.Context, key string) (string, bool, error) {
	start := time.Now()
	v, ok, err := s.Store.Get(ctx, key)
	s.metrics.RecordStoreOp(ctx, "get", s.backend, start, err == nil)
	return v, ok, err
}

func (s *instrumented) Set(ctx context.Context, key, value string) error {
	start := time.Now()
	err := s.Store.Set(ctx, key, value)
	s.metrics.RecordStoreOp(ctx, "set", s.backend, start, err == nil)
	return err
}

func (s *instrumented) Delete(ctx context.Context, keys ...string) error {
	start := time.Now()
	err := s.Store.Delete(ctx, keys...)
	s.metrics.RecordStoreOp(ctx, "delete", s.backend, start, err == nil)
	return err
}
