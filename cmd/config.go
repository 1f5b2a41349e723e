package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/brandonio21/download-sweeper/config"
	"github.com/brandonio21/download-sweeper/pkg/logger"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "管理配置文件",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "写入默认配置文件",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")
		path, err := config.WriteDefaults(cfgFile, force)
		if err != nil {
			return err
		}
		logger.Get().Info().Msgf("已写入默认配置: %s", path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "以 YAML 格式输出当前生效的配置",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := config.Marshal(config.Effective(settings))
		if err != nil {
			return err
		}
		fmt.Print(string(data))
		return nil
	},
}

func init() {
	configInitCmd.Flags().BoolP("force", "f", false, "覆盖已存在的配置文件")

	configCmd.AddCommand(configInitCmd, configShowCmd)
	rootCmd.AddCommand(configCmd)
}
