package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/LJTian/TrendingArchive/internal/collector"
	"github.com/LJTian/TrendingArchive/internal/processor"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// PersistenceError 一批数据写入失败，整批已回滚
type PersistenceError struct {
	Source string
	Err    error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %s batch: %v", e.Source, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// SaveBatch 在同一个事务里写入一个数据源的整批条目，要么全部可见要么全部回滚。
// 返回写入行数；空批次不开事务直接返回 0
func (s *Store) SaveBatch(ctx context.Context, source string, items []collector.Item) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}

	now := s.now()
	processed, err := s.processor.Process(items, now)
	if err != nil {
		return 0, &PersistenceError{Source: source, Err: err}
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range processed {
			rec := toRecord(source, processed[i], now)
			if err := tx.Create(&rec).Error; err != nil {
				return fmt.Errorf("insert item %d (%s): %w", i, rec.ItemID, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, &PersistenceError{Source: source, Err: err}
	}
	return len(processed), nil
}

func toRecord(source string, p processor.ProcessedNews, now time.Time) NewsRecord {
	return NewsRecord{
		Source:      source,
		ItemID:      p.ItemID,
		Title:       p.Title,
		Description: p.Description,
		URL:         p.URL,
		MobileURL:   p.MobileURL,
		Cover:       p.Cover,
		Hot:         p.Hot,
		CreatedAt:   now,
		RawData:     datatypes.JSON(p.RawData),
	}
}
