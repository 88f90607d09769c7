package report

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"episim/internal/sim"
	"episim/internal/surveillance"
)

const (
	dailySheet     = "Daily"
	communitySheet = "Communities"
	runSheet       = "Run"

	wastewaterSheet = "Wastewater"
)

// XLSXWriter is a sim.Observer that writes one row per simulated day, and
// one row per ward and day, to a workbook saved on Close.
type XLSXWriter struct {
	path         string
	f            *excelize.File
	dailyRow     int
	communityRow int
	style        int

	wastewaterRow int // 0 until the first sample
}

// NewXLSXWriter prepares an empty workbook for path.
func NewXLSXWriter(path string) (*XLSXWriter, error) {
	f := excelize.NewFile()
	w := &XLSXWriter{path: path, f: f, dailyRow: 2, communityRow: 2}

	index, err := f.NewSheet(dailySheet)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("create sheet %s: %w", dailySheet, err)
	}
	for _, name := range []string{communitySheet, runSheet} {
		if _, err := f.NewSheet(name); err != nil {
			f.Close()
			return nil, fmt.Errorf("create sheet %s: %w", name, err)
		}
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		f.Close()
		return nil, fmt.Errorf("delete default sheet: %w", err)
	}
	f.SetActiveSheet(index)

	style, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("create header style: %w", err)
	}
	w.style = style
	if err := w.header(dailySheet, dailyHeader(), style); err != nil {
		f.Close()
		return nil, err
	}
	if err := w.header(communitySheet, communityHeader, style); err != nil {
		f.Close()
		return nil, err
	}
	return w, nil
}

func (w *XLSXWriter) header(sheet string, cols []string, style int) error {
	row := make([]any, len(cols))
	for i, c := range cols {
		row[i] = c
	}
	if err := w.f.SetSheetRow(sheet, "A1", &row); err != nil {
		return fmt.Errorf("write %s header: %w", sheet, err)
	}
	last, err := excelize.CoordinatesToCellName(len(cols), 1)
	if err != nil {
		return err
	}
	if err := w.f.SetCellStyle(sheet, "A1", last, style); err != nil {
		return fmt.Errorf("style %s header: %w", sheet, err)
	}
	return nil
}

func (w *XLSXWriter) appendRow(sheet string, n *int, row []any) error {
	cell, err := excelize.CoordinatesToCellName(1, *n)
	if err != nil {
		return err
	}
	if err := w.f.SetSheetRow(sheet, cell, &row); err != nil {
		return fmt.Errorf("write %s row %d: %w", sheet, *n, err)
	}
	*n++
	return nil
}

// Observe implements sim.Observer. Only the last timestep of each day is
// written.
func (w *XLSXWriter) Observe(res sim.StepResult) error {
	if !res.DayComplete {
		return nil
	}
	if err := w.appendRow(dailySheet, &w.dailyRow, dailyRow(res)); err != nil {
		return err
	}
	for _, c := range res.Communities {
		if err := w.appendRow(communitySheet, &w.communityRow, communityRow(res.Day, c)); err != nil {
			return err
		}
	}
	return nil
}

// WriteSamples implements surveillance.Sink. The wastewater sheet is added
// with the first sample.
func (w *XLSXWriter) WriteSamples(samples []surveillance.Sample) error {
	if w.wastewaterRow == 0 {
		if _, err := w.f.NewSheet(wastewaterSheet); err != nil {
			return fmt.Errorf("create sheet %s: %w", wastewaterSheet, err)
		}
		if err := w.header(wastewaterSheet, wastewaterHeader, w.style); err != nil {
			return err
		}
		w.wastewaterRow = 2
	}
	for _, s := range samples {
		if err := w.appendRow(wastewaterSheet, &w.wastewaterRow, wastewaterRow(s)); err != nil {
			return err
		}
	}
	return nil
}

// Close writes the run sheet and saves the workbook.
func (w *XLSXWriter) Close(s sim.Summary) error {
	defer w.f.Close()

	rows := [][]any{
		{"run_id", s.RunID},
		{"timesteps", s.Timesteps},
		{"days", s.Days},
		{"completed", s.Completed},
		{"seeded", s.Seeded},
		{"affected", s.Affected},
		{"detected", s.Detected},
	}
	for i, name := range stateColumns() {
		rows = append(rows, []any{name, s.States[i]})
	}
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := w.f.SetSheetRow(runSheet, cell, &r); err != nil {
			return fmt.Errorf("write run sheet: %w", err)
		}
	}
	if err := w.f.SaveAs(w.path); err != nil {
		return fmt.Errorf("save %s: %w", w.path, err)
	}
	return nil
}
