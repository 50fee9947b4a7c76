// Package store holds every read and write agentops performs against the
// relational store. A Store is built once at startup and passed to the
// ingest service, the HTTP handlers and the rollup job.
package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/openclaw/agentops/internal/models"
)

// Store wraps a GORM connection.
type Store struct {
	db *gorm.DB
}

// New returns a Store backed by db.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB returns the underlying connection for jobs that run their own queries.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Ping runs a trivial query to prove the store is reachable.
func (s *Store) Ping(ctx context.Context) error {
	var one int
	if err := s.db.WithContext(ctx).Raw("SELECT 1").Scan(&one).Error; err != nil {
		return fmt.Errorf("store: ping: %w", err)
	}
	return nil
}

// Counts holds table sizes reported by the detailed health check.
type Counts struct {
	Sessions int64 `json:"total_sessions"`
	Steps    int64 `json:"total_steps"`
}

// Counts returns the number of sessions and steps.
func (s *Store) Counts(ctx context.Context) (Counts, error) {
	var c Counts
	db := s.db.WithContext(ctx)
	if err := db.Model(&models.Session{}).Count(&c.Sessions).Error; err != nil {
		return c, fmt.Errorf("store: count sessions: %w", err)
	}
	if err := db.Model(&models.Step{}).Count(&c.Steps).Error; err != nil {
		return c, fmt.Errorf("store: count steps: %w", err)
	}
	return c, nil
}

// sessionExists reports whether a session row with id exists.
func sessionExists(tx *gorm.DB, id string) (bool, error) {
	var n int64
	if err := tx.Model(&models.Session{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}
