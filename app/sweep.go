// Package app 组合各个组件，供命令行调用
package app

import (
	"fmt"
	"time"

	"github.com/spf13/afero"

	"github.com/brandonio21/download-sweeper/config"
	"github.com/brandonio21/download-sweeper/internal"
	"github.com/brandonio21/download-sweeper/pkg/journal"
	"github.com/brandonio21/download-sweeper/pkg/lock"
	"github.com/brandonio21/download-sweeper/pkg/logger"
	"github.com/brandonio21/download-sweeper/pkg/metrics"
	"github.com/brandonio21/download-sweeper/pkg/records"
	"github.com/brandonio21/download-sweeper/pkg/sweeper"
)

// SweepOptions 单次清理的运行参数
type SweepOptions struct {
	Settings internal.Settings
	Fs       afero.Fs
	Now      func() time.Time
}

// SweepResult 清理结果及清理后的记录数
type SweepResult struct {
	Report         *internal.Report
	TrackedArchive int
	TrackedPurge   int
}

// RunSweep 加锁后执行一次清理，按配置写入迁移日志和指标文件
func RunSweep(opts *SweepOptions) (*SweepResult, error) {
	fs := opts.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	v := opts.Settings

	recordsPath, err := config.RecordsPath(v)
	if err != nil {
		return nil, fmt.Errorf("记录文件路径无效: %w", err)
	}
	lockPath, err := config.LockPath(v)
	if err != nil {
		return nil, fmt.Errorf("锁文件路径无效: %w", err)
	}

	l, err := lock.Acquire(lockPath)
	if err != nil {
		return nil, err
	}
	defer l.Release()
	logger.Get().Debug().Msgf("已获取锁: %s", lockPath)

	store := records.New(fs, recordsPath, records.WithClock(now))
	if err := store.Load(); err != nil {
		return nil, err
	}

	sweepOpts := []sweeper.Option{sweeper.WithClock(now)}
	if p := v.GetString(internal.KeyJournalPath); p != "" {
		path, err := internal.ExpandPath(p)
		if err != nil {
			return nil, fmt.Errorf("迁移日志路径无效: %w", err)
		}
		j, err := journal.Open(path)
		if err != nil {
			return nil, err
		}
		defer j.Close()
		sweepOpts = append(sweepOpts, sweeper.WithJournal(j))
	}

	report, err := sweeper.New(fs, v, store, sweepOpts...).Run()
	if err != nil {
		return nil, err
	}

	result := &SweepResult{
		Report:         report,
		TrackedArchive: store.Count(internal.Archive),
		TrackedPurge:   store.Count(internal.Purge),
	}

	if p := v.GetString(internal.KeyMetricsTextfile); p != "" {
		if err := writeMetrics(p, result); err != nil {
			logger.Get().Warn().Err(err).Msg("写入指标文件失败")
		}
	}
	return result, nil
}

func writeMetrics(p string, result *SweepResult) error {
	path, err := internal.ExpandPath(p)
	if err != nil {
		return err
	}
	c := metrics.New()
	c.Observe(result.Report, result.TrackedArchive, result.TrackedPurge)
	return c.WriteTextfile(path)
}
