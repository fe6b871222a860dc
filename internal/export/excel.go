package export

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"pnf-systemv1/internal/chart"
)

// defaultDir receives workbooks when no directory is configured.
const defaultDir = "excels"

// sheetName is the single worksheet every workbook carries.
const sheetName = "P&F Chart"

// ExcelWriter saves chart grids as .xlsx workbooks.
type ExcelWriter struct {
	dir string
}

// NewExcelWriter creates a writer that saves workbooks under dir,
// creating the directory on first use. An empty dir falls back to
// "excels".
func NewExcelWriter(dir string) *ExcelWriter {
	if dir == "" {
		dir = defaultDir
	}
	return &ExcelWriter{dir: dir}
}

// Dir returns the output directory.
func (w *ExcelWriter) Dir() string { return w.dir }

// Write saves the chart grid to filename inside the writer's directory
// and returns the full path. The first and last sheet columns repeat
// the price; the chart columns between them are numbered from 1.
func (w *ExcelWriter) Write(c *chart.Chart, filename string) (string, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir %s: %w", w.dir, err)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return "", fmt.Errorf("rename sheet: %w", err)
	}

	cols := c.Columns()
	prices := c.AllPrices()
	sw := sheetWriter{f: f}

	sw.set(1, 1, "Price")
	for i := range cols {
		sw.set(i+2, 1, i+1)
	}
	sw.set(len(cols)+2, 1, "Price")

	for r, price := range prices {
		row := r + 2
		sw.set(1, row, price)
		sw.set(len(cols)+2, row, price)
		for ci, col := range cols {
			if b, ok := boxAt(col, price); ok {
				sw.set(ci+2, row, symbolFor(b))
			}
		}
	}
	if sw.err != nil {
		return "", fmt.Errorf("write grid: %w", sw.err)
	}

	path := filepath.Join(w.dir, filename)
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("save workbook %s: %w", path, err)
	}
	return path, nil
}

// sheetWriter sets cells by 1-based coordinates, keeping the first
// error and dropping writes after it.
type sheetWriter struct {
	f   *excelize.File
	err error
}

func (s *sheetWriter) set(col, row int, v any) {
	if s.err != nil {
		return
	}
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		s.err = err
		return
	}
	s.err = s.f.SetCellValue(sheetName, cell, v)
}
