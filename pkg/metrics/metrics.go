// Package metrics 将清理结果导出为 Prometheus 文本文件，供 node_exporter 的 textfile collector 读取
package metrics

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/brandonio21/download-sweeper/internal"
)

const namespace = "download_sweeper"

// Collector 单次清理的指标
type Collector struct {
	registry *prometheus.Registry

	files        *prometheus.GaugeVec
	failures     prometheus.Gauge
	tracked      *prometheus.GaugeVec
	lastRun      prometheus.Gauge
	lastDuration prometheus.Gauge
}

// New 创建使用独立 registry 的指标收集器
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		files: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "files",
			Help:      "Number of entries handled by the last sweep, by action.",
		}, []string{"action"}),
		failures: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "failures",
			Help:      "Number of per-file failures in the last sweep.",
		}),
		tracked: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tracked_records",
			Help:      "Number of tracked records after the last sweep, by stage.",
		}, []string{"stage"}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last sweep finished.",
		}),
		lastDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_duration_seconds",
			Help:      "Wall time of the last sweep.",
		}),
	}

	c.registry.MustRegister(c.files, c.failures, c.tracked, c.lastRun, c.lastDuration)
	return c
}

// Registry 返回内部 registry
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Observe 根据清理结果设置所有指标
func (c *Collector) Observe(report *internal.Report, trackedArchive, trackedPurge int) {
	actions := map[string]int{
		"adopted":      report.Adopted,
		"pruned":       report.Pruned,
		"archived":     report.Archived,
		"compressed":   report.Compressed,
		"purged":       report.Purged,
		"deleted":      report.Deleted,
		"dirs_removed": report.DirsRemoved,
	}
	for action, n := range actions {
		c.files.WithLabelValues(action).Set(float64(n))
	}
	c.failures.Set(float64(report.Failures))

	c.tracked.WithLabelValues(internal.Archive.String()).Set(float64(trackedArchive))
	c.tracked.WithLabelValues(internal.Purge.String()).Set(float64(trackedPurge))

	c.lastRun.Set(float64(report.EndTime.Unix()))
	c.lastDuration.Set(report.Duration().Seconds())
}

// WriteTextfile 以原子方式写出文本格式的指标
func (c *Collector) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("创建指标目录失败: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return fmt.Errorf("写入指标文件失败: %w", err)
	}
	return nil
}
