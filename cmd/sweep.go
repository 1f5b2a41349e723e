package cmd

import (
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/brandonio21/download-sweeper/app"
	"github.com/brandonio21/download-sweeper/pkg/lock"
	"github.com/brandonio21/download-sweeper/pkg/logger"
)

// stepFlags 可以用 --x / --no-x 临时开关的步骤
var stepFlags = []struct {
	name  string
	usage string
}{
	{"archive-downloads", "把下载目录中的过期文件移入归档"},
	{"purge-archives", "把归档中的过期文件移入待清除目录"},
	{"compress-archives", "压缩归档中的文件"},
	{"delete-from-purge", "删除待清除目录中的过期文件"},
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "执行一次清理",
	Long: `按顺序执行一次清理: 整理记录、下载 → 归档、压缩归档、归档 → 待清除、删除。
每个步骤可以在配置文件中关闭，也可以用 --no-<步骤> 在本次运行中关闭。
同一时间只允许一个清理进程运行。`,
	Args: cobra.NoArgs,
	RunE: runSweep,
}

func runSweep(cmd *cobra.Command, args []string) error {
	result, err := app.RunSweep(&app.SweepOptions{Settings: settings})
	if err != nil {
		if errors.Is(err, lock.ErrLocked) {
			return fmt.Errorf("无法开始清理: %w", err)
		}
		return err
	}

	printFinalStats(result)
	return nil
}

func printFinalStats(result *app.SweepResult) {
	r := result.Report

	logger.Get().Info().Msg("========== 清理完成 ==========")
	logger.Get().Info().Msgf("新加入记录: %d", r.Adopted)
	logger.Get().Info().Msgf("失效记录: %d", r.Pruned)
	logger.Get().Info().Msgf("移入归档: %d", r.Archived)
	logger.Get().Info().Msgf("已压缩: %d", r.Compressed)
	logger.Get().Info().Msgf("移入待清除: %d", r.Purged)
	logger.Get().Info().Msgf("已删除: %d 个文件, %d 个空目录", r.Deleted, r.DirsRemoved)
	logger.Get().Info().Msgf("当前记录: 归档 %d, 待清除 %d", result.TrackedArchive, result.TrackedPurge)
	if r.Failures > 0 {
		logger.Get().Warn().Msgf("失败: %d", r.Failures)
	}
	logger.Get().Info().Msgf("总耗时: %v (%s)", r.Duration(), humanize.Time(r.StartTime))
	logger.Get().Info().Msg("============================")
}

func init() {
	for _, f := range stepFlags {
		sweepCmd.Flags().Bool(f.name, false, f.usage)
		sweepCmd.Flags().Bool("no-"+f.name, false, "本次不"+f.usage)
		sweepCmd.MarkFlagsMutuallyExclusive(f.name, "no-"+f.name)
	}
	sweepCmd.Flags().String("journal", "", "迁移日志数据库路径")
	sweepCmd.Flags().String("metrics-textfile", "", "Prometheus 指标文本文件路径")

	rootCmd.AddCommand(sweepCmd)
}
