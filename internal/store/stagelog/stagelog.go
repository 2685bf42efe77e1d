// Package stagelog 用 Gorm + SQLite 记录每次阶段调用，
// 留痕每个策略走过的阶段、用的模型与耗时。
package stagelog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// StageCallModel 一条阶段调用记录。
type StageCallModel struct {
	ID           uint   `gorm:"primaryKey"`
	RunID        string `gorm:"index;size:64"`
	StrategyName string `gorm:"index;size:128"`
	Stage        string `gorm:"size:32"`
	Provider     string `gorm:"size:64"`
	Model        string `gorm:"size:128"`
	Skipped      bool
	Error        string
	DurationMS   int64
	ArtifactPath string
	Meta         datatypes.JSON
	CreatedAt    time.Time
}

func (StageCallModel) TableName() string { return "stage_calls" }

type Store struct {
	db *gorm.DB
}

func New(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("stage log 路径不能为空")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&StageCallModel{}); err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Record 写入一条阶段调用；meta 任意可 JSON 化的附加信息，可为 nil。
func (s *Store) Record(ctx context.Context, call StageCallModel, meta any) error {
	if meta != nil {
		b, err := json.Marshal(meta)
		if err != nil {
			return err
		}
		call.Meta = datatypes.JSON(b)
	}
	return s.db.WithContext(ctx).Create(&call).Error
}

// ByRun 返回某个 run 的全部阶段调用，按时间升序。
func (s *Store) ByRun(ctx context.Context, runID string) ([]StageCallModel, error) {
	var out []StageCallModel
	err := s.db.WithContext(ctx).
		Where("run_id = ?", runID).
		Order("id ASC").
		Find(&out).Error
	return out, err
}

// Recent 返回最近的阶段调用。
func (s *Store) Recent(ctx context.Context, limit int) ([]StageCallModel, error) {
	if limit <= 0 {
		limit = 100
	}
	var out []StageCallModel
	err := s.db.WithContext(ctx).
		Order("id DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}
