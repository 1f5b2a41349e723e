package app

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/afero"

	"github.com/brandonio21/download-sweeper/config"
	"github.com/brandonio21/download-sweeper/internal"
	"github.com/brandonio21/download-sweeper/pkg/journal"
	"github.com/brandonio21/download-sweeper/pkg/records"
)

// ErrJournalDisabled 未配置 journal_path
var ErrJournalDisabled = errors.New("未配置迁移日志 (journal_path)")

// RecordRow 一条记录及其文件状态
type RecordRow struct {
	Stage   internal.Stage
	Path    string
	Entered time.Time
	Size    int64
	Missing bool
}

// ListRecords 列出记录，stageName 为空时列出所有阶段
func ListRecords(fs afero.Fs, settings internal.Settings, stageName string) ([]RecordRow, error) {
	stages := internal.TrackedStages
	if stageName != "" {
		stage, ok := internal.ParseStage(stageName)
		if !ok || !stage.Tracked() {
			return nil, fmt.Errorf("%w: %s", records.ErrUntrackedStage, stageName)
		}
		stages = []internal.Stage{stage}
	}

	path, err := config.RecordsPath(settings)
	if err != nil {
		return nil, err
	}
	store := records.New(fs, path)
	if err := store.Load(); err != nil {
		return nil, err
	}

	var rows []RecordRow
	for _, stage := range stages {
		for _, p := range store.Paths(stage) {
			entered, _ := store.Get(stage, p)
			row := RecordRow{Stage: stage, Path: p, Entered: entered}
			if info, err := fs.Stat(p); err == nil {
				row.Size = info.Size()
			} else {
				row.Missing = true
			}
			rows = append(rows, row)
		}
	}
	return rows, nil
}

// History 返回最近的迁移记录
func History(settings internal.Settings, limit int) ([]journal.Entry, error) {
	p := settings.GetString(internal.KeyJournalPath)
	if p == "" {
		return nil, ErrJournalDisabled
	}
	path, err := internal.ExpandPath(p)
	if err != nil {
		return nil, err
	}

	j, err := journal.Open(path)
	if err != nil {
		return nil, err
	}
	defer j.Close()

	return j.Recent(limit)
}
