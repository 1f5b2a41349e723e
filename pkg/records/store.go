// Package records 维护归档和待清除阶段中文件的进入时间
//
// 下载阶段的文件年龄来自文件系统的访问时间，而文件被移动到归档或待清除目录后
// 访问时间不再可信，所以由本包记录文件进入该阶段的时刻，并持久化到 YAML 文件。
package records

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/brandonio21/download-sweeper/internal"
	"github.com/brandonio21/download-sweeper/pkg/logger"
)

var (
	// ErrRecordNotFound 记录不存在
	ErrRecordNotFound = errors.New("记录不存在")

	// ErrUntrackedStage 该阶段不保存记录
	ErrUntrackedStage = errors.New("该阶段不保存记录")
)

// document 记录文件的磁盘格式
type document struct {
	Archive map[string]string `yaml:"archive"`
	Purge   map[string]string `yaml:"purge"`
}

// Store 记录存储，只在单次清理中由一个流水线持有
type Store struct {
	fs      afero.Fs
	path    string
	now     func() time.Time
	archive map[string]time.Time
	purge   map[string]time.Time
}

// Option 记录存储的可选配置
type Option func(*Store)

// WithClock 指定获取当前时间的方法
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// New 创建空的记录存储，调用 Load 后才包含已持久化的记录
func New(fs afero.Fs, path string, opts ...Option) *Store {
	s := &Store{
		fs:      fs,
		path:    path,
		now:     time.Now,
		archive: make(map[string]time.Time),
		purge:   make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path 返回记录文件路径
func (s *Store) Path() string {
	return s.path
}

// Load 从记录文件加载记录
// 文件不存在、为空或内容为 null 时视为没有任何记录
func (s *Store) Load() error {
	s.archive = make(map[string]time.Time)
	s.purge = make(map[string]time.Time)

	data, err := afero.ReadFile(s.fs, s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Get().Debug().Str("path", s.path).Msg("记录文件不存在，从空记录开始")
			return nil
		}
		return fmt.Errorf("读取记录文件失败: %w", err)
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("解析记录文件失败: %w", err)
	}

	if err := decode(doc.Archive, s.archive); err != nil {
		return err
	}
	if err := decode(doc.Purge, s.purge); err != nil {
		return err
	}

	logger.Get().Debug().
		Str("path", s.path).
		Int("archive", len(s.archive)).
		Int("purge", len(s.purge)).
		Msg("加载记录完成")
	return nil
}

func decode(src map[string]string, dst map[string]time.Time) error {
	for path, raw := range src {
		ts, err := time.ParseInLocation(internal.TimestampLayout, raw, time.Local)
		if err != nil {
			return fmt.Errorf("解析记录时间失败 %s: %w", path, err)
		}
		dst[path] = ts
	}
	return nil
}

func encode(src map[string]time.Time) map[string]string {
	dst := make(map[string]string, len(src))
	for path, ts := range src {
		dst[path] = ts.In(time.Local).Format(internal.TimestampLayout)
	}
	return dst
}

func (s *Store) table(stage internal.Stage) (map[string]time.Time, error) {
	switch stage {
	case internal.Archive:
		return s.archive, nil
	case internal.Purge:
		return s.purge, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUntrackedStage, stage)
	}
}

// Has 检查记录是否存在
func (s *Store) Has(stage internal.Stage, path string) bool {
	t, err := s.table(stage)
	if err != nil {
		return false
	}
	_, ok := t[path]
	return ok
}

// Get 获取文件进入该阶段的时间
func (s *Store) Get(stage internal.Stage, path string) (time.Time, error) {
	t, err := s.table(stage)
	if err != nil {
		return time.Time{}, err
	}
	ts, ok := t[path]
	if !ok {
		return time.Time{}, fmt.Errorf("%w: %s %s", ErrRecordNotFound, stage, path)
	}
	return ts, nil
}

// Put 写入或覆盖记录，同一路径在另一阶段的记录会被删除
// 时间按记录文件的精度截断到秒
func (s *Store) Put(stage internal.Stage, path string, ts time.Time) error {
	t, err := s.table(stage)
	if err != nil {
		return err
	}
	for _, other := range internal.TrackedStages {
		if other != stage {
			o, _ := s.table(other)
			delete(o, path)
		}
	}
	t[path] = ts.Truncate(time.Second)
	return nil
}

// Remove 删除记录，记录不存在时返回 ErrRecordNotFound
func (s *Store) Remove(stage internal.Stage, path string) error {
	t, err := s.table(stage)
	if err != nil {
		return err
	}
	if _, ok := t[path]; !ok {
		return fmt.Errorf("%w: %s %s", ErrRecordNotFound, stage, path)
	}
	delete(t, path)
	return nil
}

// Paths 返回该阶段所有记录的路径（已排序）
func (s *Store) Paths(stage internal.Stage) []string {
	t, err := s.table(stage)
	if err != nil {
		return nil
	}
	paths := make([]string, 0, len(t))
	for path := range t {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

// Count 返回该阶段的记录数
func (s *Store) Count(stage internal.Stage) int {
	t, err := s.table(stage)
	if err != nil {
		return 0
	}
	return len(t)
}

// Reconcile 将磁盘上存在但没有记录的文件以当前时间加入记录
// 返回新加入的路径，重复调用不会产生变化
func (s *Store) Reconcile(stage internal.Stage, onDisk []string) ([]string, error) {
	t, err := s.table(stage)
	if err != nil {
		return nil, err
	}

	now := s.now()
	var adopted []string
	for _, path := range onDisk {
		if _, ok := t[path]; ok {
			continue
		}
		if err := s.Put(stage, path, now); err != nil {
			return adopted, err
		}
		adopted = append(adopted, path)
		logger.Get().Debug().Str("stage", stage.String()).Str("path", path).Msg("发现未记录的文件，已加入记录")
	}
	return adopted, nil
}

// PruneDangling 删除对应文件已不存在的记录，返回被删除的路径
func (s *Store) PruneDangling() []string {
	var pruned []string
	for _, stage := range internal.TrackedStages {
		for _, path := range s.Paths(stage) {
			info, err := s.fs.Stat(path)
			if err == nil && !info.IsDir() {
				continue
			}
			_ = s.Remove(stage, path)
			pruned = append(pruned, path)
			logger.Get().Debug().Str("stage", stage.String()).Str("path", path).Msg("文件已不存在，删除记录")
		}
	}
	return pruned
}

// Persist 将全部记录写回记录文件
// 先写入同目录下的临时文件再重命名，失败时清理临时文件
func (s *Store) Persist() error {
	data, err := yaml.Marshal(document{
		Archive: encode(s.archive),
		Purge:   encode(s.purge),
	})
	if err != nil {
		return fmt.Errorf("序列化记录失败: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := s.fs.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("创建记录目录失败: %w", err)
	}

	tmp, err := afero.TempFile(s.fs, dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("创建临时记录文件失败: %w", err)
	}
	tmpName := tmp.Name()

	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = s.fs.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("写入临时记录文件失败: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("同步临时记录文件失败: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("关闭临时记录文件失败: %w", err)
	}
	if err := s.fs.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("替换记录文件失败: %w", err)
	}
	committed = true

	logger.Get().Debug().
		Str("path", s.path).
		Int("archive", len(s.archive)).
		Int("purge", len(s.purge)).
		Msg("记录已保存")
	return nil
}
