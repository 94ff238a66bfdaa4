package main

import (
	"os"
	"path/filepath"
	"slices"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"voicenotes/internal/state"
)

// renderTable draws a rounded table. Columns listed in rightAligned (1-based)
// are right aligned; rows shorter than the header are padded with empty
// cells. Headers keep their case.
func renderTable(headers []string, rows [][]string, rightAligned ...int) string {
	if len(headers) == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.Style().Format.Header = text.FormatDefault
	tw.AppendHeader(toRow(headers, len(headers)))
	for _, row := range rows {
		tw.AppendRow(toRow(row, len(headers)))
	}

	configs := make([]table.ColumnConfig, len(headers))
	for i := range configs {
		configs[i] = table.ColumnConfig{Number: i + 1, Align: text.AlignLeft, AlignHeader: text.AlignLeft}
		if slices.Contains(rightAligned, i+1) {
			configs[i].Align = text.AlignRight
		}
	}
	tw.SetColumnConfigs(configs)
	return tw.Render()
}

func toRow(cells []string, width int) table.Row {
	row := make(table.Row, width)
	for i := range row {
		row[i] = ""
		if i < len(cells) {
			row[i] = cells[i]
		}
	}
	return row
}

// renderPendingTable lists notes awaiting acknowledgment and whether their
// recording is still in the recordings directory.
func renderPendingTable(entries []state.Entry, recordingsDir string) string {
	rows := make([][]string, 0, len(entries))
	for _, entry := range entries {
		_, err := os.Stat(filepath.Join(recordingsDir, entry.Filename))
		rows = append(rows, []string{
			strconv.FormatInt(entry.MessageID, 10),
			entry.Filename,
			yesNo(err == nil),
		})
	}
	return renderTable([]string{"Message", "Recording", "On disk"}, rows, 1)
}
