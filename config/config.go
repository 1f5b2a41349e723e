// Package config 基于 viper 加载分层配置：默认值 < 配置文件 < 环境变量 < 命令行参数
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/brandonio21/download-sweeper/internal"
)

// EnvPrefix 环境变量前缀，例如 DOWNLOAD_SWEEPER_ARCHIVE_STALE_AFTER
const EnvPrefix = "DOWNLOAD_SWEEPER"

// ErrConfigExists 配置文件已存在
var ErrConfigExists = errors.New("配置文件已存在")

// flagAliases 名称与配置项不一致的命令行参数
var flagAliases = map[string]string{
	"journal": internal.KeyJournalPath,
}

// Defaults 返回所有配置项的默认值
func Defaults() map[string]any {
	return map[string]any{
		internal.KeyArchiveDownloads:     true,
		internal.KeyPurgeArchives:        true,
		internal.KeyCompressArchives:     true,
		internal.KeyDeleteFromPurge:      true,
		internal.KeyMoveToAllArchiveDirs: true,
		internal.KeyMoveToAllPurgeDirs:   true,

		internal.KeyDownloadStaleAfter: "30d",
		internal.KeyArchiveStaleAfter:  "30d",
		internal.KeyPurgeStaleAfter:    "1d",

		internal.KeyDownloadDirectories: []string{},
		internal.KeyArchiveDirectories:  []string{},
		internal.KeyPurgeDirectories:    []string{},
		internal.KeyBlacklistedPaths:    []string{},

		internal.KeyRecords:         internal.DefaultRecordsPath,
		internal.KeyLockPath:        "",
		internal.KeyJournalPath:     "",
		internal.KeyMetricsTextfile: "",
		internal.KeyScanWorkers:     internal.DefaultScanWorkers,
		internal.KeyLogLevel:        "info",
		internal.KeyLogFile:         "",
	}
}

// Keys 返回所有配置项键名（已排序）
func Keys() []string {
	defaults := Defaults()
	keys := make([]string, 0, len(defaults))
	for key := range defaults {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Load 读取配置文件并绑定命令行参数
// configFile 为空时使用默认路径；配置文件不存在时只使用默认值
// flags 中名称对应配置项的参数（"-" 换成 "_"）在显式指定时覆盖配置，
// "no-" 前缀的布尔参数把对应配置项置为 false
func Load(configFile string, flags *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	defaults := Defaults()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	if configFile == "" {
		configFile = internal.DefaultConfigPath
	}
	path, err := internal.ExpandPath(configFile)
	if err != nil {
		return nil, fmt.Errorf("配置文件路径无效: %w", err)
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if _, err := os.Stat(path); err == nil {
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("读取配置文件失败 %s: %w", path, err)
			}
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("读取配置文件失败 %s: %w", path, err)
	}

	if flags != nil {
		if err := bindFlags(v, flags, defaults); err != nil {
			return nil, err
		}
	}
	return v, nil
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet, defaults map[string]any) error {
	var bindErr error
	flags.VisitAll(func(f *pflag.Flag) {
		if bindErr != nil {
			return
		}
		key, ok := flagAliases[f.Name]
		if !ok {
			key = strings.ReplaceAll(f.Name, "-", "_")
		}
		if _, known := defaults[key]; known {
			bindErr = v.BindPFlag(key, f)
			return
		}

		positive := strings.TrimPrefix(key, "no_")
		if _, known := defaults[positive]; known && positive != key && f.Changed {
			if on, _ := flags.GetBool(f.Name); on {
				v.Set(positive, false)
			}
		}
	})
	return bindErr
}

// RecordsPath 返回展开后的记录文件路径
func RecordsPath(settings internal.Settings) (string, error) {
	return internal.ExpandPath(settings.GetString(internal.KeyRecords))
}

// LockPath 返回锁文件路径，未配置时位于记录文件同目录
func LockPath(settings internal.Settings) (string, error) {
	if p := settings.GetString(internal.KeyLockPath); p != "" {
		return internal.ExpandPath(p)
	}
	records, err := RecordsPath(settings)
	if err != nil {
		return "", err
	}
	return filepath.Join(filepath.Dir(records), internal.DefaultLockName), nil
}

// Effective 返回当前生效的全部配置
func Effective(v *viper.Viper) map[string]any {
	out := make(map[string]any)
	for _, key := range Keys() {
		switch Defaults()[key].(type) {
		case []string:
			out[key] = v.GetStringSlice(key)
		default:
			out[key] = v.Get(key)
		}
	}
	return out
}

// Marshal 将配置序列化为 YAML
func Marshal(settings map[string]any) ([]byte, error) {
	data, err := yaml.Marshal(settings)
	if err != nil {
		return nil, fmt.Errorf("序列化配置失败: %w", err)
	}
	return data, nil
}

// WriteDefaults 把默认配置写入 path，文件已存在且未指定 force 时返回 ErrConfigExists
func WriteDefaults(path string, force bool) (string, error) {
	if path == "" {
		path = internal.DefaultConfigPath
	}
	path, err := internal.ExpandPath(path)
	if err != nil {
		return "", fmt.Errorf("配置文件路径无效: %w", err)
	}

	if _, err := os.Stat(path); err == nil && !force {
		return path, fmt.Errorf("%w: %s", ErrConfigExists, path)
	}

	data, err := Marshal(Defaults())
	if err != nil {
		return path, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return path, fmt.Errorf("创建配置目录失败: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return path, fmt.Errorf("写入配置文件失败: %w", err)
	}
	return path, nil
}
