// Package report renders the chore board as an xlsx workbook.
package report

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/jwgray1010/PawCoin/internal/model"
)

const (
	ChoresSheet  = "Chores"
	SummarySheet = "Summary"
)

// ChoreHeader is the column order of the chores sheet.
var ChoreHeader = []string{
	"Name",
	"Kid",
	"State",
	"Started",
	"Finished",
	"Duration (s)",
	"Min Duration (s)",
	"QR Start",
	"QR End",
}

var choreWidths = []float64{28, 16, 12, 20, 20, 14, 16, 38, 38}

// StateOrder is the row order of the summary sheet.
var StateOrder = []model.ChoreState{
	model.StateUnstarted,
	model.StateStarted,
	model.StateCompleted,
	model.StateIncomplete,
}

// WriteChores writes one row per anchor plus a per-state summary to w.
// Timestamps are rendered in now's location.
func WriteChores(w io.Writer, anchors []model.AnchorRecord, now time.Time) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", ChoresSheet); err != nil {
		return fmt.Errorf("rename default sheet: %w", err)
	}
	if _, err := f.NewSheet(SummarySheet); err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#FFF2CC"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	if err := writeRow(f, ChoresSheet, 1, toAny(ChoreHeader)); err != nil {
		return err
	}
	if err := f.SetCellStyle(ChoresSheet, "A1", lastCell(len(ChoreHeader), 1), headerStyle); err != nil {
		return fmt.Errorf("set header style: %w", err)
	}
	for i, width := range choreWidths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(ChoresSheet, col, col, width); err != nil {
			return fmt.Errorf("set column width: %w", err)
		}
	}

	counts := make(map[model.ChoreState]int, len(StateOrder))
	for i, a := range anchors {
		state := a.State()
		counts[state]++
		if err := writeRow(f, ChoresSheet, i+2, choreRow(a, state, now.Location())); err != nil {
			return err
		}
	}

	if err := writeRow(f, SummarySheet, 1, []any{"State", "Count"}); err != nil {
		return err
	}
	if err := f.SetCellStyle(SummarySheet, "A1", "B1", headerStyle); err != nil {
		return fmt.Errorf("set header style: %w", err)
	}
	row := 2
	for _, st := range StateOrder {
		if err := writeRow(f, SummarySheet, row, []any{string(st), counts[st]}); err != nil {
			return err
		}
		row++
	}
	if err := writeRow(f, SummarySheet, row, []any{"total", len(anchors)}); err != nil {
		return err
	}
	if err := writeRow(f, SummarySheet, row+2, []any{"Generated", now.Format(time.RFC3339)}); err != nil {
		return err
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func choreRow(a model.AnchorRecord, state model.ChoreState, loc *time.Location) []any {
	row := []any{
		a.Name,
		a.AssignedKidID,
		string(state),
		formatMillis(a.StartedAt, loc),
		formatMillis(a.FinishedAt, loc),
		"",
		a.EffectiveMinDuration(),
		a.QRStartCode,
		a.QREndCode,
	}
	if a.StartedAt != nil && a.FinishedAt != nil {
		row[5] = float64(*a.FinishedAt-*a.StartedAt) / 1000
	}
	return row
}

func formatMillis(ms *int64, loc *time.Location) string {
	if ms == nil {
		return ""
	}
	return time.UnixMilli(*ms).In(loc).Format("2006-01-02 15:04:05")
}

func writeRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("write %s row %d: %w", sheet, row, err)
	}
	return nil
}

func lastCell(cols, row int) string {
	cell, _ := excelize.CoordinatesToCellName(cols, row)
	return cell
}

func toAny(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}
