package cmd

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/brandonio21/download-sweeper/app"
	"github.com/brandonio21/download-sweeper/internal"
)

var recordsCmd = &cobra.Command{
	Use:   "records",
	Short: "查看记录文件",
}

var recordsListCmd = &cobra.Command{
	Use:   "list",
	Short: "列出归档和待清除阶段中的文件",
	Args:  cobra.NoArgs,
	RunE:  runRecordsList,
}

func runRecordsList(cmd *cobra.Command, args []string) error {
	stage, _ := cmd.Flags().GetString("stage")

	rows, err := app.ListRecords(afero.NewOsFs(), settings, stage)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		fmt.Println(hintStyle.Render("没有记录"))
		return nil
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers("STAGE", "PATH", "ENTERED", "AGE", "SIZE")
	for _, row := range rows {
		size := humanize.Bytes(uint64(row.Size))
		if row.Missing {
			size = hintStyle.Render("missing")
		}
		t.Row(
			row.Stage.String(),
			row.Path,
			row.Entered.Format(internal.TimestampLayout),
			humanize.Time(row.Entered),
			size,
		)
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
	recordsListCmd.Flags().String("stage", "", "只列出指定阶段: archive 或 purge")

	recordsCmd.AddCommand(recordsListCmd)
	rootCmd.AddCommand(recordsCmd)
}
