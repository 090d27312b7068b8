package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/example/bloomstem/internal/models"
)

// GormStore keeps records in three SQL tables. Any gorm dialect with ON CONFLICT support works;
// production runs on postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore wraps an already migrated connection.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Get(ctx context.Context, key string) ([]byte, error) {
	var entry models.KVEntry
	if err := s.db.WithContext(ctx).First(&entry, "key = ?", key).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return []byte(entry.Value), nil
}

func (s *GormStore) Set(ctx context.Context, key string, value []byte) error {
	now := time.Now()
	entry := models.KVEntry{Key: key, Value: datatypes.JSON(value), CreatedAt: now, UpdatedAt: now}

	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&entry).Error
}

func (s *GormStore) SetNX(ctx context.Context, key string, value []byte) (bool, error) {
	now := time.Now()
	entry := models.KVEntry{Key: key, Value: datatypes.JSON(value), CreatedAt: now, UpdatedAt: now}

	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&entry)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (s *GormStore) ScanPrefix(ctx context.Context, prefix string) ([]Record, error) {
	var entries []models.KVEntry
	if err := s.db.WithContext(ctx).
		Where(`key LIKE ? ESCAPE '\'`, escapeLike(prefix)+"%").
		Order("key asc").
		Find(&entries).Error; err != nil {
		return nil, err
	}

	out := make([]Record, 0, len(entries))
	for _, e := range entries {
		out = append(out, Record{Key: e.Key, Value: []byte(e.Value)})
	}
	return out, nil
}

func (s *GormStore) Append(ctx context.Context, key, member string) error {
	return s.db.WithContext(ctx).Create(&models.KVListEntry{Key: key, Member: member}).Error
}

func (s *GormStore) Members(ctx context.Context, key string) ([]string, error) {
	var members []string
	if err := s.db.WithContext(ctx).
		Model(&models.KVListEntry{}).
		Where("key = ?", key).
		Order("id asc").
		Pluck("member", &members).Error; err != nil {
		return nil, err
	}
	if members == nil {
		members = []string{}
	}
	return members, nil
}

func (s *GormStore) Counter(ctx context.Context, key string) (int64, error) {
	var counter models.KVCounter
	if err := s.db.WithContext(ctx).First(&counter, "key = ?", key).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return counter.Value, nil
}

func (s *GormStore) SwapCounter(ctx context.Context, key string, old, next int64) (bool, error) {
	db := s.db.WithContext(ctx)

	// An absent row reads as zero, so the first swap from zero creates it.
	if old == 0 {
		created := db.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&models.KVCounter{Key: key, Value: next, UpdatedAt: time.Now()})
		if created.Error != nil {
			return false, created.Error
		}
		if created.RowsAffected == 1 {
			return true, nil
		}
	}

	result := db.Model(&models.KVCounter{}).
		Where("key = ? AND value = ?", key, old).
		Updates(map[string]any{"value": next, "updated_at": time.Now()})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
