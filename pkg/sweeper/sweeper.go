// Package sweeper 执行一次完整的清理：下载 → 归档 → 待清除 → 删除
package sweeper

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/afero"

	"github.com/brandonio21/download-sweeper/internal"
	"github.com/brandonio21/download-sweeper/pkg/compressor"
	"github.com/brandonio21/download-sweeper/pkg/hasher"
	"github.com/brandonio21/download-sweeper/pkg/journal"
	"github.com/brandonio21/download-sweeper/pkg/logger"
	"github.com/brandonio21/download-sweeper/pkg/mover"
	"github.com/brandonio21/download-sweeper/pkg/records"
	"github.com/brandonio21/download-sweeper/pkg/scanner"
)

// Recorder 记录阶段迁移，为 nil 时不记录
type Recorder interface {
	Record(entry *journal.Entry) error
}

// FileMover 把文件移动或复制到目标目录，返回新路径
type FileMover interface {
	Move(src, dstDir string) (string, error)
	Copy(src, dstDir string) (string, error)
}

// FileCompressor 压缩归档中的文件
type FileCompressor interface {
	IsArchive(path string) bool
	Compress(path string) (string, error)
}

// Sweeper 阶段迁移流水线
type Sweeper struct {
	fs         afero.Fs
	settings   internal.Settings
	store      *records.Store
	scanner    *scanner.Scanner
	mover      FileMover
	compressor FileCompressor
	journal    Recorder
	now        func() time.Time
}

// Option 流水线的可选配置
type Option func(*Sweeper)

// WithClock 指定获取当前时间的方法，同时用于过期判断
func WithClock(now func() time.Time) Option {
	return func(s *Sweeper) {
		s.now = now
	}
}

// WithJournal 记录每一次迁移
func WithJournal(r Recorder) Option {
	return func(s *Sweeper) {
		s.journal = r
	}
}

// WithMover 替换文件移动实现
func WithMover(m FileMover) Option {
	return func(s *Sweeper) {
		s.mover = m
	}
}

// WithCompressor 替换压缩实现
func WithCompressor(c FileCompressor) Option {
	return func(s *Sweeper) {
		s.compressor = c
	}
}

// New 创建流水线，store 需要已经 Load
func New(fs afero.Fs, settings internal.Settings, store *records.Store, opts ...Option) *Sweeper {
	s := &Sweeper{
		fs:         fs,
		settings:   settings,
		store:      store,
		mover:      mover.New(fs),
		compressor: compressor.New(fs),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.scanner = scanner.New(fs, settings,
		scanner.WithClock(s.now),
		scanner.WithWorkers(settings.GetInt(internal.KeyScanWorkers)),
	)
	return s
}

// Run 按固定顺序执行所有启用的步骤，最后保存一次记录
// 单个文件的失败只计入 Report.Failures；扫描或保存失败会中止本次清理且不保存记录
func (s *Sweeper) Run() (*internal.Report, error) {
	report := &internal.Report{StartTime: s.now()}

	if err := s.scanner.Validate(); err != nil {
		return nil, fmt.Errorf("配置无效: %w", err)
	}

	if err := s.reconcile(report); err != nil {
		return nil, err
	}

	if s.settings.GetBool(internal.KeyArchiveDownloads) {
		if err := s.advance(internal.Downloads, internal.Archive, internal.KeyMoveToAllArchiveDirs, journal.ActionArchive, report); err != nil {
			return nil, err
		}
	}

	if s.settings.GetBool(internal.KeyCompressArchives) {
		s.compress(report)
	}

	if s.settings.GetBool(internal.KeyPurgeArchives) {
		if err := s.advance(internal.Archive, internal.Purge, internal.KeyMoveToAllPurgeDirs, journal.ActionPurge, report); err != nil {
			return nil, err
		}
	}

	if s.settings.GetBool(internal.KeyDeleteFromPurge) {
		if err := s.deleteStale(report); err != nil {
			return nil, err
		}
	}

	if err := s.store.Persist(); err != nil {
		return nil, fmt.Errorf("保存记录失败: %w", err)
	}

	report.EndTime = s.now()
	logger.Get().Info().Msgf("清理完成: 归档 %d, 压缩 %d, 待清除 %d, 删除 %d, 空目录 %d, 失败 %d",
		report.Archived, report.Compressed, report.Purged, report.Deleted, report.DirsRemoved, report.Failures)
	return report, nil
}

// reconcile 删除失效记录，并把手动放入归档或待清除目录的文件加入记录
func (s *Sweeper) reconcile(report *internal.Report) error {
	for _, path := range s.store.PruneDangling() {
		report.Pruned++
		s.record(journal.ActionPrune, "", "", path, "", 0)
	}

	for _, stage := range internal.TrackedStages {
		onDisk, err := s.scanner.FindAll(stage)
		if err != nil {
			return fmt.Errorf("列出 %s 目录失败: %w", stage, err)
		}
		adopted, err := s.store.Reconcile(stage, onDisk)
		if err != nil {
			return err
		}
		for _, path := range adopted {
			report.Adopted++
			s.record(journal.ActionAdopt, "", stage.String(), path, path, 0)
		}
	}
	return nil
}

// advance 把 from 阶段的过期文件送入 to 阶段的目录
func (s *Sweeper) advance(from, to internal.Stage, toAllKey, action string, report *internal.Report) error {
	stale, err := s.scanner.FindStale(from, s.store)
	if err != nil {
		return err
	}

	dests, err := s.scanner.Directories(to)
	if err != nil {
		return err
	}
	toAll := s.settings.GetBool(toAllKey)

	for _, f := range stale {
		if f.IsDir {
			s.removeEmptyDir(f, report)
			continue
		}

		if len(dests) == 0 {
			logger.Get().Warn().Msgf("未配置 %s 目录，%s 保持不动", to, f.Path)
			continue
		}

		size := s.sizeOf(f.Path)
		var moved []string
		if toAll {
			moved = s.copyToAll(f.Path, dests)
		} else {
			moved = s.moveToFirst(f.Path, dests)
		}
		if len(moved) == 0 {
			report.Failures++
			logger.Get().Error().Msgf("无法将 %s 移入任何 %s 目录", f.Path, to)
			continue
		}

		if from.Tracked() {
			if err := s.store.Remove(from, f.Path); err != nil {
				return err
			}
		}
		now := s.now()
		for _, dst := range moved {
			if err := s.store.Put(to, dst, now); err != nil {
				return err
			}
			s.record(action, from.String(), to.String(), f.Path, dst, size)
		}

		if to == internal.Archive {
			report.Archived++
		} else {
			report.Purged++
		}
		logger.Get().Info().Msgf("%s -> %v", f.Path, moved)
	}
	return nil
}

// moveToFirst 依次尝试每个目标目录，移入第一个成功的目录
func (s *Sweeper) moveToFirst(src string, dests []string) []string {
	for _, dir := range dests {
		dst, err := s.mover.Move(src, dir)
		if err != nil {
			logger.Get().Warn().Err(err).Msgf("移动 %s 到 %s 失败，尝试下一个目录", src, dir)
			continue
		}
		return []string{dst}
	}
	return nil
}

// copyToAll 将文件复制到所有目标目录，至少有一份成功时删除源文件
// 删除源文件失败时撤销所有副本，源文件保持原状
func (s *Sweeper) copyToAll(src string, dests []string) []string {
	var copies []string
	for _, dir := range dests {
		dst, err := s.mover.Copy(src, dir)
		if err != nil {
			logger.Get().Error().Err(err).Msgf("复制 %s 到 %s 失败", src, dir)
			continue
		}
		copies = append(copies, dst)
	}
	if len(copies) == 0 {
		return nil
	}

	if err := s.fs.Remove(src); err != nil {
		logger.Get().Error().Err(err).Msgf("删除源文件失败，撤销复制: %s", src)
		for _, dst := range copies {
			_ = s.fs.Remove(dst)
		}
		return nil
	}
	return copies
}

func (s *Sweeper) removeEmptyDir(f internal.TrackedFile, report *internal.Report) {
	if err := s.fs.Remove(f.Path); err != nil {
		report.Failures++
		logger.Get().Error().Err(err).Msgf("删除空目录失败: %s", f.Path)
		return
	}
	report.DirsRemoved++
	s.record(journal.ActionRmdir, internal.Downloads.String(), "deleted", f.Path, "", 0)
	logger.Get().Info().Msgf("已删除空目录: %s", f.Path)
}

// compress 压缩归档中尚未压缩的文件，新压缩包沿用原记录的时间
func (s *Sweeper) compress(report *internal.Report) {
	for _, path := range s.store.Paths(internal.Archive) {
		if s.compressor.IsArchive(path) {
			logger.Get().Debug().Msgf("已是压缩文件，跳过: %s", path)
			continue
		}

		ts, err := s.store.Get(internal.Archive, path)
		if err != nil {
			continue
		}

		zipPath, err := s.compressor.Compress(path)
		if err != nil {
			report.Failures++
			logger.Get().Error().Err(err).Msgf("压缩失败: %s", path)
			continue
		}

		if err := s.fs.Remove(path); err != nil {
			report.Failures++
			_ = s.fs.Remove(zipPath)
			logger.Get().Error().Err(err).Msgf("删除已压缩的原文件失败: %s", path)
			continue
		}

		_ = s.store.Remove(internal.Archive, path)
		_ = s.store.Put(internal.Archive, zipPath, ts)
		report.Compressed++
		s.record(journal.ActionCompress, internal.Archive.String(), internal.Archive.String(), path, zipPath, s.sizeOf(zipPath))
		logger.Get().Info().Msgf("已压缩: %s -> %s", path, zipPath)
	}
}

// deleteStale 删除待清除目录中的过期文件
func (s *Sweeper) deleteStale(report *internal.Report) error {
	stale, err := s.scanner.FindStale(internal.Purge, s.store)
	if err != nil {
		return err
	}

	for _, f := range stale {
		size := s.sizeOf(f.Path)
		if f.IsDir {
			err = s.fs.RemoveAll(f.Path)
		} else {
			err = s.fs.Remove(f.Path)
		}
		if err != nil {
			report.Failures++
			logger.Get().Error().Err(err).Msgf("删除失败: %s", f.Path)
			continue
		}

		_ = s.store.Remove(internal.Purge, f.Path)
		report.Deleted++
		s.record(journal.ActionDelete, internal.Purge.String(), "deleted", f.Path, "", size)
		logger.Get().Info().Msgf("已删除: %s", f.Path)
	}
	return nil
}

func (s *Sweeper) sizeOf(path string) int64 {
	info, err := s.fs.Stat(path)
	if err != nil || info.IsDir() {
		return 0
	}
	return info.Size()
}

// record 写入迁移日志，失败只记录警告
func (s *Sweeper) record(action, from, to, src, dst string, size int64) {
	if s.journal == nil {
		return
	}

	entry := &journal.Entry{
		Action:      action,
		FromStage:   from,
		ToStage:     to,
		Source:      src,
		Destination: dst,
		Size:        size,
		At:          s.now(),
	}
	if dst != "" {
		if sum, err := hasher.CalculateHash(s.fs, dst); err == nil {
			entry.Checksum = hasher.Format(sum)
		} else if !errors.Is(err, os.ErrNotExist) {
			logger.Get().Debug().Err(err).Msgf("计算校验和失败: %s", dst)
		}
	}

	if err := s.journal.Record(entry); err != nil {
		logger.Get().Warn().Err(err).Msgf("写入迁移日志失败: %s", src)
	}
}
