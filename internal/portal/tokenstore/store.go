// Package tokenstore persists the bearer token across portal restarts.
// A single well-known key is stored in a local SQLite database; its
// presence is never authoritative: the session store revalidates the
// token against the backend on every restore.
package tokenstore

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// TokenKey is the one key the portal stores.
const TokenKey = "companyToken"

// ErrNoToken is returned by Get when no token is persisted.
var ErrNoToken = errors.New("no token stored")

type entry struct {
	Key   string `gorm:"primaryKey"`
	Value string
}

func (entry) TableName() string { return "tokens" }

// Store is a durable single-key token store backed by SQLite.
type Store struct {
	db *gorm.DB
}

// Open creates or opens the token database at path. Use ":memory:" for an
// ephemeral store in tests.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to open token store: %w", err)
	}
	if err := db.AutoMigrate(&entry{}); err != nil {
		return nil, fmt.Errorf("failed to migrate token store: %w", err)
	}
	return &Store{db: db}, nil
}

// Get returns the persisted token, or ErrNoToken if none is stored.
func (s *Store) Get(ctx context.Context) (string, error) {
	var e entry
	result := s.db.WithContext(ctx).First(&e, "key = ?", TokenKey)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return "", ErrNoToken
		}
		return "", result.Error
	}
	return e.Value, nil
}

// Put persists the token, replacing any previous value.
func (s *Store) Put(ctx context.Context, token string) error {
	e := entry{Key: TokenKey, Value: token}
	return s.db.WithContext(ctx).Save(&e).Error
}

// Delete removes the persisted token. Deleting an absent token is not an
// error.
func (s *Store) Delete(ctx context.Context) error {
	return s.db.WithContext(ctx).Delete(&entry{}, "key = ?", TokenKey).Error
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	db, err := s.db.DB()
	if err != nil {
		return err
	}
	return db.Close()
}
