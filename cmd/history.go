package cmd

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/brandonio21/download-sweeper/app"
	"github.com/brandonio21/download-sweeper/internal"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "查看最近的阶段迁移",
	Long:  `从迁移日志数据库 (journal_path) 中按时间倒序列出最近的迁移。`,
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

func runHistory(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")

	entries, err := app.History(settings, limit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println(hintStyle.Render("没有迁移记录"))
		return nil
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers("AT", "ACTION", "SOURCE", "DESTINATION", "SIZE")
	for _, e := range entries {
		size := ""
		if e.Size > 0 {
			size = humanize.Bytes(uint64(e.Size))
		}
		t.Row(e.At.Local().Format(internal.TimestampLayout), e.Action, e.Source, e.Destination, size)
	}
	t.StyleFunc(func(r, c int) lipgloss.Style {
		if r == table.HeaderRow {
			return headerStyle
		}
		return cellStyle
	})

	fmt.Println(t.Render())
	return nil
}

func init() {
	historyCmd.Flags().IntP("limit", "n", 20, "显示的条数，0 表示全部")
	rootCmd.AddCommand(historyCmd)
}
