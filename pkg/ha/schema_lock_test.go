package ha

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/deptrack/deptrack/pkg/model"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	// Each pooled connection to a :memory: DSN gets its own database, so
	// cap the pool at one connection to share one database across goroutines.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	return db
}

func TestSchemaLockWithoutDatabaseIsNoop(t *testing.T) {
	ran := false
	err := NewSchemaLock(nil).Run(context.Background(), func() error {
		ran = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)
}

func TestSchemaLockSerializesCallers(t *testing.T) {
	lock := NewSchemaLock(setupTestDB(t))

	var inside, peak int32
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := lock.Run(context.Background(), func() error {
				n := atomic.AddInt32(&inside, 1)
				for {
					p := atomic.LoadInt32(&peak)
					if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
						break
					}
				}
				time.Sleep(20 * time.Millisecond)
				atomic.AddInt32(&inside, -1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, atomic.LoadInt32(&peak))
}

func TestSchemaLockReleasesOnError(t *testing.T) {
	lock := NewSchemaLock(setupTestDB(t))

	err := lock.Run(context.Background(), func() error { return assert.AnError })
	require.ErrorIs(t, err, assert.AnError)

	// The claim row is gone, so a second run acquires immediately.
	reacquired := false
	require.NoError(t, lock.Run(context.Background(), func() error {
		reacquired = true
		return nil
	}))
	assert.True(t, reacquired)
}

func TestSetupSchemaAutoMigrates(t *testing.T) {
	db := setupTestDB(t)

	require.NoError(t, SetupSchema(context.Background(), db, ""))

	assert.True(t, db.Migrator().HasTable(&model.Service{}))
	assert.True(t, db.Migrator().HasTable(&model.SyncHistoryEntry{}))
}
