// Package journal 将每次阶段迁移写入 SQLite 数据库，供 history 命令查询
package journal

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	_ "modernc.org/sqlite"

	"github.com/brandonio21/download-sweeper/pkg/logger"
)

// 迁移动作
const (
	ActionArchive  = "archive"
	ActionCompress = "compress"
	ActionPurge    = "purge"
	ActionDelete   = "delete"
	ActionRmdir    = "rmdir"
	ActionAdopt    = "adopt"
	ActionPrune    = "prune"
)

// Entry 一条迁移记录
type Entry struct {
	ID          int64     `gorm:"primaryKey"`
	Action      string    `gorm:"index;not null"`
	FromStage   string    `gorm:"not null"`
	ToStage     string    `gorm:"not null"`
	Source      string    `gorm:"not null"`
	Destination string
	Size        int64
	Checksum    string
	At          time.Time `gorm:"index;not null"`
}

func (Entry) TableName() string {
	return "transitions"
}

// Journal 迁移日志数据库
type Journal struct {
	db *gorm.DB
}

// Open 打开（必要时创建）日志数据库
func Open(path string) (*Journal, error) {
	logger.Get().Debug().Msgf("打开迁移日志，路径: %s", path)

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("创建日志目录失败: %w", err)
	}

	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := gorm.Open(&sqlite.Dialector{
		DriverName: "sqlite",
		DSN:        dsn,
	}, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("打开日志数据库失败: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("获取数据库连接失败: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	if err := db.AutoMigrate(&Entry{}); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("创建日志表失败: %w", err)
	}

	return &Journal{db: db}, nil
}

// Record 写入一条迁移记录，At 为空时使用当前时间
func (j *Journal) Record(entry *Entry) error {
	if entry.At.IsZero() {
		entry.At = time.Now()
	}
	if err := j.db.Create(entry).Error; err != nil {
		return fmt.Errorf("写入迁移记录失败 %s: %w", entry.Source, err)
	}
	logger.Get().Trace().Msgf("迁移记录已写入: %s %s", entry.Action, entry.Source)
	return nil
}

// Recent 按时间倒序返回最近的 limit 条记录，limit <= 0 表示全部
func (j *Journal) Recent(limit int) ([]Entry, error) {
	var entries []Entry
	q := j.db.Order("at DESC").Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("查询迁移记录失败: %w", err)
	}
	return entries, nil
}

// Count 返回记录总数
func (j *Journal) Count() (int64, error) {
	var n int64
	if err := j.db.Model(&Entry{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("统计迁移记录失败: %w", err)
	}
	return n, nil
}

// Close 关闭数据库连接
func (j *Journal) Close() error {
	sqlDB, err := j.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
