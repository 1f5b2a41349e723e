package scanner

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/viper"

	"github.com/brandonio21/download-sweeper/internal"
	"github.com/brandonio21/download-sweeper/pkg/duration"
	"github.com/brandonio21/download-sweeper/pkg/records"
)

var fixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.Local)

const day = 24 * time.Hour

func newSettings(downloads, archive, purge string) *viper.Viper {
	v := viper.New()
	v.Set(internal.KeyDownloadStaleAfter, "30d")
	v.Set(internal.KeyArchiveStaleAfter, "30d")
	v.Set(internal.KeyPurgeStaleAfter, "1d")
	v.Set(internal.KeyDownloadDirectories, []string{downloads})
	v.Set(internal.KeyArchiveDirectories, []string{archive})
	v.Set(internal.KeyPurgeDirectories, []string{purge})
	v.Set(internal.KeyBlacklistedPaths, []string{})
	return v
}

func newScanner(v *viper.Viper) *Scanner {
	return New(afero.NewOsFs(), v, WithClock(func() time.Time { return fixedNow }))
}

// touch 创建文件并把访问时间和修改时间设置为 at
func touch(t *testing.T, path string, at time.Time) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("创建目录失败: %v", err)
	}
	if err := os.WriteFile(path, []byte("test content"), 0644); err != nil {
		t.Fatalf("创建测试文件失败: %v", err)
	}
	if err := os.Chtimes(path, at, at); err != nil {
		t.Fatalf("设置文件时间失败: %v", err)
	}
}

func mkdirAt(t *testing.T, path string, at time.Time) {
	t.Helper()
	if err := os.MkdirAll(path, 0755); err != nil {
		t.Fatalf("创建目录失败: %v", err)
	}
	if err := os.Chtimes(path, at, at); err != nil {
		t.Fatalf("设置目录时间失败: %v", err)
	}
}

func paths(files []internal.TrackedFile) []string {
	var out []string
	for _, f := range files {
		out = append(out, f.Path)
	}
	return out
}

func TestFindStale_DownloadsBoundary(t *testing.T) {
	root := t.TempDir()
	downloads := filepath.Join(root, "Downloads")

	touch(t, filepath.Join(downloads, "exact.txt"), fixedNow.Add(-30*day))
	touch(t, filepath.Join(downloads, "older.txt"), fixedNow.Add(-30*day-time.Second))
	touch(t, filepath.Join(downloads, "fresh.txt"), fixedNow.Add(-time.Hour))

	s := newScanner(newSettings(downloads, filepath.Join(root, "Archive"), filepath.Join(root, "Purge")))
	stale, err := s.FindStale(internal.Downloads, nil)
	if err != nil {
		t.Fatalf("FindStale() error = %v", err)
	}

	want := []string{filepath.Join(downloads, "older.txt")}
	if got := paths(stale); !reflect.DeepEqual(got, want) {
		t.Errorf("FindStale() = %v, want %v", got, want)
	}
	if stale[0].Name != "older.txt" || stale[0].IsDir {
		t.Errorf("unexpected tracked file %+v", stale[0])
	}
}

func TestFindStale_DownloadsRecursiveInWalkOrder(t *testing.T) {
	root := t.TempDir()
	downloads := filepath.Join(root, "Downloads")
	old := fixedNow.Add(-60 * day)

	touch(t, filepath.Join(downloads, "b.txt"), old)
	touch(t, filepath.Join(downloads, "a", "nested.txt"), old)
	touch(t, filepath.Join(downloads, "c", "d", "deep.txt"), old)
	mkdirAt(t, filepath.Join(downloads, "c", "d"), old)
	mkdirAt(t, filepath.Join(downloads, "c"), old)
	mkdirAt(t, filepath.Join(downloads, "a"), old)

	s := newScanner(newSettings(downloads, filepath.Join(root, "Archive"), filepath.Join(root, "Purge")))
	stale, err := s.FindStale(internal.Downloads, nil)
	if err != nil {
		t.Fatalf("FindStale() error = %v", err)
	}

	// 非空目录不是候选项
	want := []string{
		filepath.Join(downloads, "a", "nested.txt"),
		filepath.Join(downloads, "b.txt"),
		filepath.Join(downloads, "c", "d", "deep.txt"),
	}
	if got := paths(stale); !reflect.DeepEqual(got, want) {
		t.Errorf("FindStale() = %v, want %v", got, want)
	}
}

func TestFindStale_EmptyDirectories(t *testing.T) {
	root := t.TempDir()
	downloads := filepath.Join(root, "Downloads")
	archive := filepath.Join(root, "Archive")
	old := fixedNow.Add(-60 * day)

	mkdirAt(t, filepath.Join(downloads, "empty"), old)
	mkdirAt(t, filepath.Join(downloads, "recent"), fixedNow.Add(-time.Hour))
	mkdirAt(t, filepath.Join(archive, "empty"), old)

	s := newScanner(newSettings(downloads, archive, filepath.Join(root, "Purge")))

	stale, err := s.FindStale(internal.Downloads, nil)
	if err != nil {
		t.Fatalf("FindStale() error = %v", err)
	}
	if len(stale) != 1 || stale[0].Path != filepath.Join(downloads, "empty") || !stale[0].IsDir {
		t.Errorf("FindStale(Downloads) = %+v, want only the old empty directory", stale)
	}

	store := records.New(afero.NewOsFs(), filepath.Join(root, "records.yaml"))
	stale, err = s.FindStale(internal.Archive, store)
	if err != nil {
		t.Fatalf("FindStale(Archive) error = %v", err)
	}
	if len(stale) != 0 {
		t.Errorf("FindStale(Archive) should ignore directories, got %+v", stale)
	}
}

func TestFindStale_Blacklist(t *testing.T) {
	root := t.TempDir()
	downloads := filepath.Join(root, "Downloads")
	old := fixedNow.Add(-60 * day)

	touch(t, filepath.Join(downloads, "keep.iso"), old)
	touch(t, filepath.Join(downloads, "move.txt"), old)
	touch(t, filepath.Join(downloads, "private", "secret.txt"), old)
	mkdirAt(t, filepath.Join(downloads, "keepdir"), old)
	mkdirAt(t, filepath.Join(downloads, "private"), old)

	v := newSettings(downloads, filepath.Join(root, "Archive"), filepath.Join(root, "Purge"))
	v.Set(internal.KeyBlacklistedPaths, []string{
		"*.iso",
		filepath.Join(downloads, "keepdir"),
		filepath.Join(downloads, "private") + "*",
	})

	stale, err := newScanner(v).FindStale(internal.Downloads, nil)
	if err != nil {
		t.Fatalf("FindStale() error = %v", err)
	}

	// "*" 可以跨越路径分隔符，所以 private 下的文件同样被排除
	want := []string{filepath.Join(downloads, "move.txt")}
	if got := paths(stale); !reflect.DeepEqual(got, want) {
		t.Errorf("FindStale() = %v, want %v", got, want)
	}
}

func TestFindStale_BlacklistedDirectoryStillDescended(t *testing.T) {
	root := t.TempDir()
	downloads := filepath.Join(root, "Downloads")
	old := fixedNow.Add(-60 * day)

	touch(t, filepath.Join(downloads, "skip", "inner.txt"), old)
	mkdirAt(t, filepath.Join(downloads, "skip"), old)

	v := newSettings(downloads, filepath.Join(root, "Archive"), filepath.Join(root, "Purge"))
	v.Set(internal.KeyBlacklistedPaths, []string{filepath.Join(downloads, "skip")})

	stale, err := newScanner(v).FindStale(internal.Downloads, nil)
	if err != nil {
		t.Fatalf("FindStale() error = %v", err)
	}
	want := []string{filepath.Join(downloads, "skip", "inner.txt")}
	if got := paths(stale); !reflect.DeepEqual(got, want) {
		t.Errorf("FindStale() = %v, want %v", got, want)
	}
}

func TestFindStale_TrackedStageUsesRecords(t *testing.T) {
	root := t.TempDir()
	archive := filepath.Join(root, "Archive")
	oldFile := filepath.Join(archive, "old.txt")
	newFile := filepath.Join(archive, "new.txt")
	// 访问时间很旧，但进入归档的时间以记录为准
	touch(t, oldFile, fixedNow.Add(-365*day))
	touch(t, newFile, fixedNow.Add(-365*day))

	store := records.New(afero.NewOsFs(), filepath.Join(root, "records.yaml"))
	if err := store.Put(internal.Archive, oldFile, fixedNow.Add(-31*day)); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := store.Put(internal.Archive, newFile, fixedNow.Add(-29*day)); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	s := newScanner(newSettings(filepath.Join(root, "Downloads"), archive, filepath.Join(root, "Purge")))
	stale, err := s.FindStale(internal.Archive, store)
	if err != nil {
		t.Fatalf("FindStale() error = %v", err)
	}
	if got := paths(stale); !reflect.DeepEqual(got, []string{oldFile}) {
		t.Errorf("FindStale() = %v, want [%s]", got, oldFile)
	}
}

func TestFindStale_MissingRecordIsError(t *testing.T) {
	root := t.TempDir()
	purge := filepath.Join(root, "Purge")
	touch(t, filepath.Join(purge, "untracked.txt"), fixedNow)

	store := records.New(afero.NewOsFs(), filepath.Join(root, "records.yaml"))
	s := newScanner(newSettings(filepath.Join(root, "Downloads"), filepath.Join(root, "Archive"), purge))

	_, err := s.FindStale(internal.Purge, store)
	if !errors.Is(err, records.ErrRecordNotFound) {
		t.Errorf("FindStale() error = %v, want ErrRecordNotFound", err)
	}
}

func TestFindStale_MissingRootSkipped(t *testing.T) {
	root := t.TempDir()
	s := newScanner(newSettings(filepath.Join(root, "nope"), filepath.Join(root, "Archive"), filepath.Join(root, "Purge")))

	stale, err := s.FindStale(internal.Downloads, nil)
	if err != nil {
		t.Fatalf("FindStale() error = %v", err)
	}
	if len(stale) != 0 {
		t.Errorf("Expected no stale files, got %v", stale)
	}
}

func TestFindStale_InvalidConfiguration(t *testing.T) {
	root := t.TempDir()

	v := newSettings(root, root, root)
	v.Set(internal.KeyDownloadStaleAfter, "30x")
	if _, err := newScanner(v).FindStale(internal.Downloads, nil); !errors.Is(err, duration.ErrInvalidUnit) {
		t.Errorf("FindStale() error = %v, want ErrInvalidUnit", err)
	}

	v = newSettings(filepath.Join(root, "Downloads"), filepath.Join(root, "Archive"), filepath.Join(root, "Purge"))
	v.Set(internal.KeyBlacklistedPaths, []string{"[unterminated"})
	if _, err := newScanner(v).FindStale(internal.Downloads, nil); err == nil {
		t.Error("Expected error for invalid blacklist pattern")
	}
	if err := newScanner(v).Validate(); err == nil {
		t.Error("Validate() should reject invalid blacklist pattern")
	}
}

func TestValidate_OverlappingDirectories(t *testing.T) {
	root := t.TempDir()
	downloads := filepath.Join(root, "Downloads")
	archive := filepath.Join(root, "Archive")
	purge := filepath.Join(root, "Purge")

	testCases := []struct {
		name      string
		downloads string
		archive   string
		purge     string
		wantErr   bool
	}{
		{"separate", downloads, archive, purge, false},
		{"shared name prefix", downloads, archive, archive + "2", false},
		{"purge inside archive", downloads, archive, filepath.Join(archive, "purge"), true},
		{"archive inside downloads", downloads, filepath.Join(downloads, "Archive"), purge, true},
		{"downloads inside purge", filepath.Join(purge, "dl"), archive, purge, true},
		{"same directory", downloads, downloads, purge, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := newScanner(newSettings(tc.downloads, tc.archive, tc.purge)).Validate()
			if tc.wantErr && !errors.Is(err, ErrOverlappingDirectories) {
				t.Errorf("Validate() error = %v, want ErrOverlappingDirectories", err)
			}
			if !tc.wantErr && err != nil {
				t.Errorf("Validate() error = %v", err)
			}
		})
	}
}

func TestFindStale_EmptyDirectoryUsesModTime(t *testing.T) {
	root := t.TempDir()
	downloads := filepath.Join(root, "Downloads")
	old := fixedNow.Add(-60 * day)
	recent := fixedNow.Add(-time.Hour)

	// 访问时间被遍历刷新，但内容很久没有变化
	emptied := filepath.Join(downloads, "emptied")
	if err := os.MkdirAll(emptied, 0755); err != nil {
		t.Fatalf("创建目录失败: %v", err)
	}
	if err := os.Chtimes(emptied, recent, old); err != nil {
		t.Fatalf("设置目录时间失败: %v", err)
	}

	// 最近刚被清空
	touched := filepath.Join(downloads, "touched")
	if err := os.MkdirAll(touched, 0755); err != nil {
		t.Fatalf("创建目录失败: %v", err)
	}
	if err := os.Chtimes(touched, old, recent); err != nil {
		t.Fatalf("设置目录时间失败: %v", err)
	}

	s := newScanner(newSettings(downloads, filepath.Join(root, "Archive"), filepath.Join(root, "Purge")))
	stale, err := s.FindStale(internal.Downloads, nil)
	if err != nil {
		t.Fatalf("FindStale() error = %v", err)
	}
	if got := paths(stale); !reflect.DeepEqual(got, []string{emptied}) {
		t.Errorf("FindStale() = %v, want [%s]", got, emptied)
	}
}

func TestDirectories_ExpandsHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	v := newSettings("~/Downloads", "~/Archive", "")
	dirs, err := New(afero.NewOsFs(), v).Directories(internal.Downloads)
	if err != nil {
		t.Fatalf("Directories() error = %v", err)
	}
	if want := []string{filepath.Join(home, "Downloads")}; !reflect.DeepEqual(dirs, want) {
		t.Errorf("Directories() = %v, want %v", dirs, want)
	}

	dirs, err = New(afero.NewOsFs(), v).Directories(internal.Purge)
	if err != nil {
		t.Fatalf("Directories() error = %v", err)
	}
	if len(dirs) != 0 {
		t.Errorf("empty entries should be ignored, got %v", dirs)
	}
}

func TestFindAll(t *testing.T) {
	root := t.TempDir()
	first := filepath.Join(root, "Archive1")
	second := filepath.Join(root, "Archive2")

	touch(t, filepath.Join(second, "z.txt"), fixedNow)
	touch(t, filepath.Join(first, "b.txt"), fixedNow)
	touch(t, filepath.Join(first, "sub", "a.txt"), fixedNow)
	mkdirAt(t, filepath.Join(first, "empty"), fixedNow)

	v := newSettings(filepath.Join(root, "Downloads"), first, filepath.Join(root, "Purge"))
	v.Set(internal.KeyArchiveDirectories, []string{first, second, first})

	all, err := New(afero.NewOsFs(), v, WithWorkers(2)).FindAll(internal.Archive)
	if err != nil {
		t.Fatalf("FindAll() error = %v", err)
	}
	want := []string{
		filepath.Join(first, "b.txt"),
		filepath.Join(first, "sub", "a.txt"),
		filepath.Join(second, "z.txt"),
	}
	if !reflect.DeepEqual(all, want) {
		t.Errorf("FindAll() = %v, want %v", all, want)
	}
}
