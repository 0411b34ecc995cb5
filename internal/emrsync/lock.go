package emrsync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"ward-admin-server/internal/logger"
	"ward-admin-server/internal/models"
)

// LockHandle identifies an acquired lock row.
type LockHandle struct {
	ID        string    `json:"id"`
	LockKey   string    `json:"lockKey"`
	HolderID  string    `json:"holderId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// LockStore is an advisory, row-based mutual-exclusion lock for one lock key.
//
// Exclusivity is enforced by the database: the active row is read with
// SELECT ... FOR UPDATE (where the dialect supports it) and the unique index on
// import_locks.active_key rejects a second active row for the same key. A holder
// that overruns the TTL may see a second run start; the TTL only exists to
// recover from a holder that died without releasing.
type LockStore struct {
	db     *gorm.DB
	key    string
	ttl    time.Duration
	logger *zap.Logger
}

// NewLockStore creates a lock store for lockKey. A non-positive ttl uses DefaultLockTTL.
func NewLockStore(db *gorm.DB, lockKey string, ttl time.Duration, log *zap.Logger) *LockStore {
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}
	return &LockStore{
		db:     db,
		key:    lockKey,
		ttl:    ttl,
		logger: logger.OrNop(log).With(zap.String("lock_key", lockKey)),
	}
}

// Key returns the lock resource this store guards.
func (s *LockStore) Key() string { return s.key }

// Acquire deactivates expired rows, then grants the lock to holderID unless an
// active row remains. A held lock yields a *SyncError with CodeImportLocked.
func (s *LockStore) Acquire(ctx context.Context, holderID string, now time.Time) (*LockHandle, error) {
	now = now.UTC()
	var handle *LockHandle

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.sweepExpired(tx, now); err != nil {
			return err
		}

		var active models.ImportLock
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("lock_key = ? AND is_active = ?", s.key, true).
			First(&active).Error
		if err == nil {
			return busyError(active.HolderID, active.ExpiresAt)
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("check active lock: %w", err)
		}

		key := s.key
		row := models.ImportLock{
			LockKey:   s.key,
			HolderID:  holderID,
			IsActive:  true,
			ActiveKey: &key,
			ExpiresAt: now.Add(s.ttl),
		}
		if err := tx.Create(&row).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return newError(CodeImportLocked, "another import acquired the lock concurrently", err)
			}
			return fmt.Errorf("insert lock: %w", err)
		}
		handle = toHandle(row)
		return nil
	})
	if err != nil {
		if isLockContention(err) {
			err = newError(CodeImportLocked, "another import is acquiring the lock concurrently", err)
		}
		if CodeOf(err) == CodeImportLocked {
			s.logger.Info("Import lock busy", zap.String("holder_id", holderID), zap.Error(err))
			return nil, err
		}
		return nil, fmt.Errorf("acquire import lock: %w", err)
	}

	s.logger.Info("Import lock acquired",
		zap.String("lock_id", handle.ID),
		zap.String("holder_id", holderID),
		zap.Time("expires_at", handle.ExpiresAt),
	)
	return handle, nil
}

// Release deactivates the lock row. Releasing an inactive or unknown lock is a no-op.
func (s *LockStore) Release(ctx context.Context, lockID string) error {
	res := s.db.WithContext(ctx).
		Model(&models.ImportLock{}).
		Where("id = ? AND is_active = ?", lockID, true).
		Updates(map[string]any{"is_active": false, "active_key": nil})
	if res.Error != nil {
		return fmt.Errorf("release import lock %s: %w", lockID, res.Error)
	}
	if res.RowsAffected == 0 {
		s.logger.Debug("Import lock already inactive", zap.String("lock_id", lockID))
		return nil
	}
	s.logger.Info("Import lock released", zap.String("lock_id", lockID))
	return nil
}

// Peek reports the active lock, if any, after the same expiry sweep Acquire performs.
func (s *LockStore) Peek(ctx context.Context, now time.Time) (*LockHandle, error) {
	now = now.UTC()
	var handle *LockHandle

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.sweepExpired(tx, now); err != nil {
			return err
		}
		var active models.ImportLock
		err := tx.Where("lock_key = ? AND is_active = ?", s.key, true).First(&active).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read active lock: %w", err)
		}
		handle = toHandle(active)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("peek import lock: %w", err)
	}
	return handle, nil
}

// sweepExpired treats expiry as an implicit release.
func (s *LockStore) sweepExpired(tx *gorm.DB, now time.Time) error {
	res := tx.Model(&models.ImportLock{}).
		Where("lock_key = ? AND is_active = ? AND expires_at < ?", s.key, true, now).
		Updates(map[string]any{"is_active": false, "active_key": nil})
	if res.Error != nil {
		return fmt.Errorf("sweep expired locks: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		s.logger.Warn("Expired import lock deactivated", zap.Int64("count", res.RowsAffected))
	}
	return nil
}

// MySQL errors raised when two acquires collide on the gap locks taken by the
// sweep and the FOR UPDATE read under REPEATABLE READ.
const (
	mysqlErrLockWaitTimeout = 1205
	mysqlErrDeadlock        = 1213
)

func isLockContention(err error) bool {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == mysqlErrDeadlock || me.Number == mysqlErrLockWaitTimeout
	}
	return false
}

func busyError(holderID string, expiresAt time.Time) *SyncError {
	return newError(CodeImportLocked,
		fmt.Sprintf("an EMR import is already running (holder %s, expires %s)",
			holderID, expiresAt.UTC().Format(time.RFC3339)),
		nil)
}

func toHandle(row models.ImportLock) *LockHandle {
	return &LockHandle{
		ID:        row.ID,
		LockKey:   row.LockKey,
		HolderID:  row.HolderID,
		ExpiresAt: row.ExpiresAt,
	}
}
