package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"git.fiblab.net/sim/tourplan/planner"
	"github.com/samber/lo"
	"github.com/xuri/excelize/v2"
)

var ErrNoItinerary = errors.New("plan has no itinerary")

const (
	SHEET_ITINERARY = "Itinerary"
	SHEET_ROADS     = "Roads"
)

// WriteXLSX writes the itinerary of p as a two-sheet workbook.
func WriteXLSX(w io.Writer, p *planner.Plan) error {
	if p.Itinerary == nil {
		return ErrNoItinerary
	}
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(SHEET_ITINERARY)
	if err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if _, err := f.NewSheet(SHEET_ROADS); err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("delete default sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6E6FA"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("create style: %w", err)
	}

	it := p.Itinerary
	rows := [][]any{{"Stop", "Kind", "Intersection", "Arrival", "Wait (min)", "Service start", "Departure", "Travel (min)", "Roads"}}
	roadRows := [][]any{{"Stop", "Seq", "Road", "From", "To", "Time (s)"}}
	for _, s := range it.Stops {
		serviceStart, departure := "", ""
		if s.Kind == planner.StopDelivery {
			serviceStart = formatClock(s.ServiceStart)
			departure = formatClock(s.Departure)
		}
		rows = append(rows, []any{
			s.Stop, string(s.Kind), s.Intersection,
			formatClock(s.Arrival), s.Wait.Minutes(), serviceStart, departure, s.Travel.Minutes(),
			strings.Join(lo.Map(s.Roads, func(r planner.Road, _ int) string { return r.Name }), ", "),
		})
		for k, r := range s.Roads {
			roadRows = append(roadRows, []any{s.Stop, k + 1, r.Name, r.Origin, r.Destination, r.Time})
		}
	}
	rows = append(rows, []any{"Total", "", "", "", it.Wait.Minutes(), "", "", it.Travel.Minutes(), ""})

	for sheet, data := range map[string][][]any{SHEET_ITINERARY: rows, SHEET_ROADS: roadRows} {
		for i, row := range data {
			cell, err := excelize.CoordinatesToCellName(1, i+1)
			if err != nil {
				return err
			}
			if err := f.SetSheetRow(sheet, cell, &row); err != nil {
				return fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
			}
		}
		f.SetRowStyle(sheet, 1, 1, headerStyle)
		f.SetColWidth(sheet, "A", "I", 15)
	}
	return f.Write(w)
}

func formatClock(t time.Time) string {
	return t.Format("15:04:05")
}

// WriteFile exports p to path, the format following the extension: .json,
// .xlsx, anything else as plain text.
func WriteFile(path string, p *planner.Plan) error {
	if p.Itinerary == nil {
		return ErrNoItinerary
	}
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	defer out.Close()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		err = enc.Encode(NewPlanDoc(p))
	case ".xlsx":
		err = WriteXLSX(out, p)
	default:
		_, err = p.Itinerary.WriteTo(out)
	}
	if err != nil {
		return fmt.Errorf("export %s: %w", path, err)
	}
	return out.Close()
}
