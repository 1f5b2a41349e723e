// Package scanner 遍历阶段目录，找出已经过期的文件
package scanner

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/djherbis/times"
	"github.com/gobwas/glob"
	"github.com/panjf2000/ants/v2"
	"github.com/spf13/afero"

	"github.com/brandonio21/download-sweeper/internal"
	"github.com/brandonio21/download-sweeper/pkg/duration"
	"github.com/brandonio21/download-sweeper/pkg/logger"
)

// ErrOverlappingDirectories 不同阶段的目录相同或互相包含
var ErrOverlappingDirectories = errors.New("不同阶段的目录重叠")

// RecordLookup 查询文件进入阶段的时间
type RecordLookup interface {
	Get(stage internal.Stage, path string) (time.Time, error)
}

// Scanner 过期文件扫描器
type Scanner struct {
	fs       afero.Fs
	settings internal.Settings
	now      func() time.Time
	workers  int
}

// Option 扫描器的可选配置
type Option func(*Scanner)

// WithClock 指定获取当前时间的方法
func WithClock(now func() time.Time) Option {
	return func(s *Scanner) {
		s.now = now
	}
}

// WithWorkers 指定 FindAll 并发遍历目录的协程数
func WithWorkers(n int) Option {
	return func(s *Scanner) {
		if n > 0 {
			s.workers = n
		}
	}
}

// New 创建扫描器
func New(fs afero.Fs, settings internal.Settings, opts ...Option) *Scanner {
	s := &Scanner{
		fs:       fs,
		settings: settings,
		now:      time.Now,
		workers:  internal.DefaultScanWorkers,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Threshold 返回阶段的过期阈值
func (s *Scanner) Threshold(stage internal.Stage) (time.Duration, error) {
	key, _ := internal.Policy(stage)
	d, err := duration.Parse(s.settings.GetString(key))
	if err != nil {
		return 0, fmt.Errorf("配置项 %s: %w", key, err)
	}
	return d, nil
}

// Directories 返回阶段配置的目录（已展开为绝对路径）
func (s *Scanner) Directories(stage internal.Stage) ([]string, error) {
	_, key := internal.Policy(stage)
	var dirs []string
	for _, dir := range s.settings.GetStringSlice(key) {
		abs, err := internal.ExpandPath(dir)
		if err != nil {
			return nil, fmt.Errorf("配置项 %s 路径无效 %q: %w", key, dir, err)
		}
		if abs != "" {
			dirs = append(dirs, abs)
		}
	}
	return dirs, nil
}

// Blacklist 编译配置中的黑名单模式
// 与 shell 的 fnmatch 一致，"*" 可以匹配路径分隔符
func (s *Scanner) Blacklist() ([]glob.Glob, error) {
	var globs []glob.Glob
	for _, pattern := range s.settings.GetStringSlice(internal.KeyBlacklistedPaths) {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("黑名单模式无效 %q: %w", pattern, err)
		}
		globs = append(globs, g)
	}
	return globs, nil
}

// Validate 检查所有阶段的阈值、目录和黑名单配置
// 不同阶段的目录不能相同或互相包含
func (s *Scanner) Validate() error {
	dirs := make(map[internal.Stage][]string)
	for _, stage := range internal.Stages {
		if _, err := s.Threshold(stage); err != nil {
			return err
		}
		d, err := s.Directories(stage)
		if err != nil {
			return err
		}
		dirs[stage] = d
	}

	for i, a := range internal.Stages {
		for _, b := range internal.Stages[i+1:] {
			for _, da := range dirs[a] {
				for _, db := range dirs[b] {
					if within(da, db) || within(db, da) {
						return fmt.Errorf("%w: %s 目录 %s 与 %s 目录 %s", ErrOverlappingDirectories, a, da, b, db)
					}
				}
			}
		}
	}

	_, err := s.Blacklist()
	return err
}

// within 判断 child 是否等于 parent 或位于 parent 之下
func within(parent, child string) bool {
	rel, err := filepath.Rel(parent, child)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

func blacklisted(path string, globs []glob.Glob) bool {
	for _, g := range globs {
		if g.Match(path) {
			return true
		}
	}
	return false
}

// accessTime 读取文件的访问时间，文件系统不提供时退回修改时间
func accessTime(info os.FileInfo) time.Time {
	if info.Sys() == nil {
		return info.ModTime()
	}
	return times.Get(info).AccessTime()
}

// FindStale 返回阶段目录中所有已过期的条目，顺序与目录遍历顺序一致
//
// 下载阶段以文件访问时间为准，并且会返回空目录（以修改时间为准）；
// 归档和待清除阶段以记录中的进入时间为准，没有记录时返回错误。
func (s *Scanner) FindStale(stage internal.Stage, records RecordLookup) ([]internal.TrackedFile, error) {
	threshold, err := s.Threshold(stage)
	if err != nil {
		return nil, err
	}
	dirs, err := s.Directories(stage)
	if err != nil {
		return nil, err
	}
	globs, err := s.Blacklist()
	if err != nil {
		return nil, err
	}

	now := s.now()
	var stale []internal.TrackedFile

	for _, root := range dirs {
		logger.Get().Debug().Str("stage", stage.String()).Str("dir", root).Msg("扫描目录")

		err := afero.Walk(s.fs, root, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				logger.Get().Debug().Err(err).Str("path", path).Msg("访问路径出错")
				return nil
			}
			if path == root {
				return nil
			}

			if blacklisted(path, globs) {
				logger.Get().Debug().Str("path", path).Msg("路径在黑名单中，跳过")
				return nil
			}

			if info.IsDir() {
				if stage != internal.Downloads {
					return nil
				}
				empty, err := afero.IsEmpty(s.fs, path)
				if err != nil || !empty {
					return nil
				}
			}

			var last time.Time
			switch {
			case stage.Tracked():
				last, err = records.Get(stage, path)
				if err != nil {
					return fmt.Errorf("扫描 %s 阶段失败: %w", stage, err)
				}
			case info.IsDir():
				// 遍历本身会刷新目录的访问时间，空目录以最后一次内容变化为准
				last = info.ModTime()
			default:
				last = accessTime(info)
			}

			if last.Add(threshold).Before(now) {
				stale = append(stale, internal.TrackedFile{
					Path:  path,
					Name:  filepath.Base(path),
					IsDir: info.IsDir(),
				})
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	logger.Get().Debug().
		Str("stage", stage.String()).
		Int("stale", len(stale)).
		Msg("过期文件扫描完成")
	return stale, nil
}

// FindAll 列出阶段目录下的所有文件（不含目录），结果已排序
// 各目录在协程池中并发遍历
func (s *Scanner) FindAll(stage internal.Stage) ([]string, error) {
	dirs, err := s.Directories(stage)
	if err != nil {
		return nil, err
	}
	if len(dirs) == 0 {
		return nil, nil
	}

	pool, err := ants.NewPool(s.workers)
	if err != nil {
		return nil, fmt.Errorf("创建 goroutine 池失败: %w", err)
	}
	defer pool.Release()

	var (
		mu    sync.Mutex
		wg    sync.WaitGroup
		paths []string
	)

	for _, root := range dirs {
		root := root
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			var found []string
			_ = afero.Walk(s.fs, root, func(path string, info os.FileInfo, err error) error {
				if err != nil {
					logger.Get().Debug().Err(err).Str("path", path).Msg("访问路径出错")
					return nil
				}
				if !info.IsDir() {
					found = append(found, path)
				}
				return nil
			})
			mu.Lock()
			paths = append(paths, found...)
			mu.Unlock()
		})
		if submitErr != nil {
			wg.Done()
			wg.Wait()
			return nil, fmt.Errorf("提交扫描任务失败: %w", submitErr)
		}
	}
	wg.Wait()

	sort.Strings(paths)
	return dedupe(paths), nil
}

// dedupe 去除已排序切片中的重复项（目录配置重叠时出现）
func dedupe(sorted []string) []string {
	if len(sorted) < 2 {
		return sorted
	}
	out := sorted[:1]
	for _, p := range sorted[1:] {
		if p != out[len(out)-1] {
			out = append(out, p)
		}
	}
	return out
}
