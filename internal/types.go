package internal

import "time"

// Settings 配置查询接口，*viper.Viper 直接满足该接口
type Settings interface {
	GetString(key string) string
	GetStringSlice(key string) []string
	GetBool(key string) bool
	GetInt(key string) int
}

// TrackedFile 扫描时发现的文件或空目录
type TrackedFile struct {
	Path  string
	Name  string
	IsDir bool
}

// Report 单次清理的统计
type Report struct {
	Adopted     int
	Pruned      int
	Archived    int
	Compressed  int
	Purged      int
	Deleted     int
	DirsRemoved int
	Failures    int
	StartTime   time.Time
	EndTime     time.Time
}

// Duration 本次清理耗时
func (r *Report) Duration() time.Duration {
	return r.EndTime.Sub(r.StartTime)
}
