// Package history keeps an optional sqlite record of conversions, used for
// reporting and for watch-mode dedup. The batch path works identically with
// history disabled (nil *Store).
package history

import (
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// Record is one conversion job outcome.
type Record struct {
	ID         uint   `gorm:"primaryKey"`
	InputPath  string `gorm:"index"`
	InputMD5   string `gorm:"index"`
	Mode       string
	Status     string `gorm:"index"`
	OutputPath string
	Error      string
	DurationMs int64
	CreatedAt  time.Time
}

func (Record) TableName() string { return "conversions" }

type Store struct {
	db *gorm.DB
}

// Open creates or opens the history database at path.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Add appends a job record. Nil-safe so callers don't guard every write.
func (s *Store) Add(rec *Record) error {
	if s == nil {
		return nil
	}
	return s.db.Create(rec).Error
}

// SeenSuccess reports whether content with this md5 was already converted
// successfully in the given mode; watch mode uses it to skip rewrites of
// identical files.
func (s *Store) SeenSuccess(md5, mode string) (bool, error) {
	if s == nil {
		return false, nil
	}
	var count int64
	err := s.db.Model(&Record{}).
		Where("input_md5 = ? AND mode = ? AND status = ?", md5, mode, StatusSuccess).
		Count(&count).Error
	return count > 0, err
}

// Recent returns the latest n records, newest first.
func (s *Store) Recent(n int) ([]Record, error) {
	if s == nil {
		return nil, nil
	}
	var recs []Record
	err := s.db.Order("created_at DESC").Limit(n).Find(&recs).Error
	return recs, err
}
