// Package ha serializes schema setup across server replicas sharing one
// database: the replica winning the lock runs the migrations, the rest wait
// and find the schema already in place.
package ha

import (
	"context"
	"errors"
	"fmt"
	"hash/crc32"
	"os"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"gorm.io/gorm"

	"github.com/deptrack/deptrack/database"
	"github.com/deptrack/deptrack/pkg/store"
)

const lockName = "deptrack.schema"

const (
	// claimWait bounds how long a replica waits out another's setup.
	claimWait  = 45 * time.Second
	claimPoll  = 500 * time.Millisecond
	staleAfter = 5 * time.Minute
)

// advisoryKey is the pg_advisory_lock key every replica agrees on.
var advisoryKey = int64(crc32.ChecksumIEEE([]byte(lockName)))

// SetupSchema brings the database schema up to date under the cross-replica
// lock: embedded SQL migrations when migrateURL is set, gorm auto-migration
// otherwise.
func SetupSchema(ctx context.Context, db *gorm.DB, migrateURL string) error {
	return NewSchemaLock(db).Run(ctx, func() error {
		if migrateURL == "" {
			return store.AutoMigrateAll(db)
		}
		m, err := database.NewFromConnectionString(migrateURL)
		if err != nil {
			return err
		}
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return err
		}
		return nil
	})
}

// SchemaLock is a cross-replica mutex around schema changes. On PostgreSQL
// it is a session advisory lock; elsewhere a claim row in the schema_locks
// table. A nil database handle degrades to a no-op for single-process tools.
type SchemaLock struct {
	db       *gorm.DB
	advisory bool
}

// NewSchemaLock picks the locking strategy for the database dialect. The
// claim table is created eagerly so concurrent first callers never race its
// creation.
func NewSchemaLock(db *gorm.DB) *SchemaLock {
	l := &SchemaLock{db: db}
	if db == nil {
		return l
	}
	if db.Dialector.Name() == "postgres" {
		l.advisory = true
		return l
	}
	_ = db.AutoMigrate(&schemaClaim{})
	return l
}

// Run executes fn while holding the lock.
func (l *SchemaLock) Run(ctx context.Context, fn func() error) error {
	if l.db == nil {
		return fn()
	}
	if l.advisory {
		return l.runAdvisory(ctx, fn)
	}
	return l.runClaim(ctx, fn)
}

func (l *SchemaLock) runAdvisory(ctx context.Context, fn func() error) error {
	if err := l.db.WithContext(ctx).Exec("SELECT pg_advisory_lock(?)", advisoryKey).Error; err != nil {
		return fmt.Errorf("acquire schema advisory lock: %w", err)
	}
	defer func() {
		_ = l.db.Exec("SELECT pg_advisory_unlock(?)", advisoryKey).Error
	}()
	return fn()
}

// schemaClaim is the single-row claim table used outside PostgreSQL.
type schemaClaim struct {
	Name      string    `gorm:"primaryKey;column:name"`
	Holder    string    `gorm:"column:holder"`
	ClaimedAt time.Time `gorm:"column:claimed_at"`
}

func (schemaClaim) TableName() string { return "schema_locks" }

func (l *SchemaLock) runClaim(ctx context.Context, fn func() error) error {
	holder, _ := os.Hostname()
	if holder == "" {
		holder = fmt.Sprintf("pid-%d", os.Getpid())
	}

	deadline := time.Now().Add(claimWait)
	for {
		claimed, err := l.tryClaim(ctx, holder)
		if err != nil {
			return err
		}
		if claimed {
			break
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("schema lock still held after %s", claimWait)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(claimPoll):
		}
	}

	defer func() {
		_ = l.db.Where("name = ?", lockName).Delete(&schemaClaim{}).Error
	}()
	return fn()
}

// tryClaim inserts the claim row, first clearing one old enough to have
// been left by a crashed replica. A primary-key conflict means another
// replica holds the lock.
func (l *SchemaLock) tryClaim(ctx context.Context, holder string) (bool, error) {
	db := l.db.WithContext(ctx)
	err := db.Where("name = ? AND claimed_at < ?", lockName, time.Now().Add(-staleAfter)).
		Delete(&schemaClaim{}).Error
	if err != nil {
		return false, fmt.Errorf("clear stale schema lock: %w", err)
	}
	res := db.Create(&schemaClaim{Name: lockName, Holder: holder, ClaimedAt: time.Now()})
	if res.Error != nil {
		return false, nil
	}
	return true, nil
}
