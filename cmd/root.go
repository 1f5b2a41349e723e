package cmd

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/brandonio21/download-sweeper/config"
	"github.com/brandonio21/download-sweeper/internal"
	"github.com/brandonio21/download-sweeper/pkg/logger"
)

var (
	cfgFile  string
	settings *viper.Viper
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "download-sweeper",
	Short: "按阶段清理下载目录中的旧文件",
	Long: `download-sweeper 按三个阶段清理长期不用的文件:

1. 下载目录中超过期限未访问的文件移入归档目录
2. 归档中的文件可以压缩，超过期限后移入待清除目录
3. 待清除目录中超过期限的文件被删除

文件进入归档和待清除阶段的时间保存在记录文件中。`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		v, err := config.Load(cfgFile, cmd.Flags())
		if err != nil {
			return err
		}
		settings = v

		level := v.GetString(internal.KeyLogLevel)
		if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
			level = "debug"
		}
		logFile, err := internal.ExpandPath(v.GetString(internal.KeyLogFile))
		if err != nil {
			return err
		}
		return logger.Init(level, logFile)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Close()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "配置文件路径 (默认 "+internal.DefaultConfigPath+")")
	rootCmd.PersistentFlags().String("records", "", "记录文件路径")
	rootCmd.PersistentFlags().String("log-level", "", "日志级别: trace, debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-file", "", "同时写入的日志文件")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "输出调试日志")
}
