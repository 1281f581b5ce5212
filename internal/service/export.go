package service

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/alexanderramin/milestones/internal/domain"
)

// ExportInput is everything the workbook shows. Exporting never touches
// the store or the backend.
type ExportInput struct {
	Username string
	Schedule *domain.Schedule
	Template domain.MeetingTemplate
	Entries  []domain.Entry
}

var exportColumns = []string{"Date", "Content", "Status", "Server ID"}

// headerRows is the number of rows above the first entry row.
const headerRows = 3

// WriteWorkbook renders one sheet per stage and writes the .xlsx to w.
func WriteWorkbook(w io.Writer, in ExportInput) error {
	f, err := buildWorkbook(in)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.Write(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

// ExportWorkbook renders the workbook to path.
func ExportWorkbook(path string, in ExportInput) error {
	f, err := buildWorkbook(in)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("saving workbook: %w", err)
	}
	return nil
}

func buildWorkbook(in ExportInput) (*excelize.File, error) {
	f := excelize.NewFile()
	entries := append([]domain.Entry(nil), in.Entries...)
	domain.SortEntries(entries)

	for i, stage := range domain.Stages {
		sheet := string(stage)
		if i == 0 {
			if err := f.SetSheetName("Sheet1", sheet); err != nil {
				return nil, fmt.Errorf("naming sheet %s: %w", sheet, err)
			}
		} else if _, err := f.NewSheet(sheet); err != nil {
			return nil, fmt.Errorf("creating sheet %s: %w", sheet, err)
		}

		title := in.Template.Head
		if title == "" && in.Schedule != nil {
			title = fmt.Sprintf("%s %s %s", in.Username, in.Schedule.QuarterParam(), monthLabel(in.Schedule.Month))
		}
		cells := map[string]any{
			"A1": title,
			"A2": in.Template.StageHeading(stage),
		}
		if in.Template.SubHead != "" {
			cells["B1"] = in.Template.SubHead
		}
		for c, name := range exportColumns {
			cell, _ := excelize.CoordinatesToCellName(c+1, headerRows)
			cells[cell] = name
		}
		for cell, v := range cells {
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return nil, fmt.Errorf("writing %s!%s: %w", sheet, cell, err)
			}
		}

		row := headerRows + 1
		for _, e := range entries {
			if e.Stage != stage {
				continue
			}
			id := ""
			if e.Persisted() {
				id = strconv.FormatInt(*e.ServerID, 10)
			}
			values := []any{e.Date.String(), e.Content, e.EffectiveStatus().Label(), id}
			for c, v := range values {
				cell, _ := excelize.CoordinatesToCellName(c+1, row)
				if err := f.SetCellValue(sheet, cell, v); err != nil {
					return nil, fmt.Errorf("writing %s!%s: %w", sheet, cell, err)
				}
			}
			row++
		}
	}
	f.SetActiveSheet(0)
	return f, nil
}

func monthLabel(m int) string {
	if m < 1 || m > 12 {
		return ""
	}
	return time.Month(m).String()
}
