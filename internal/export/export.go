// Package export writes the study plan, topic states and score history to
// an XLSX workbook.
package export

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/p-n-ai/pai-studio/internal/curriculum"
	"github.com/p-n-ai/pai-studio/internal/planner"
	"github.com/p-n-ai/pai-studio/internal/progress"
)

// Sheet names.
const (
	SheetCalendar = "Calendario"
	SheetStates   = "Stato"
	SheetScores   = "Punteggi"
)

// ContentType is the MIME type of the workbook.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var weekdays = [...]string{"domenica", "lunedì", "martedì", "mercoledì", "giovedì", "venerdì", "sabato"}

// Report is the data exported to the workbook.
type Report struct {
	ExamName string
	ExamDate time.Time
	Plan     []planner.CalendarDay
	States   []progress.TopicState
	Scores   []progress.ScoreEntry
}

// Write renders r as an XLSX workbook to w.
func Write(w io.Writer, r Report) error {
	f, err := Workbook(r)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.Write(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

// Workbook builds the workbook for r. The caller closes it.
func Workbook(r Report) (*excelize.File, error) {
	f := excelize.NewFile()

	if err := f.SetSheetName("Sheet1", SheetCalendar); err != nil {
		f.Close()
		return nil, fmt.Errorf("naming calendar sheet: %w", err)
	}
	for _, name := range []string{SheetStates, SheetScores} {
		if _, err := f.NewSheet(name); err != nil {
			f.Close()
			return nil, fmt.Errorf("adding sheet %s: %w", name, err)
		}
	}

	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("creating header style: %w", err)
	}

	sheets := []struct {
		name   string
		header []any
		rows   [][]any
		widths []float64
	}{
		{SheetCalendar, []any{"Data", "Giorno", "Tipo", "Argomenti"}, calendarRows(r.Plan), []float64{12, 12, 10, 60}},
		{SheetStates, []any{"Argomento", "Categoria", "Stato"}, stateRows(r.States), []float64{40, 20, 16}},
		{SheetScores, []any{"Argomento", "Punteggio", "Data", "Commento"}, scoreRows(r.Scores), []float64{40, 10, 20, 80}},
	}
	for _, s := range sheets {
		if err := writeSheet(f, s.name, s.header, s.rows, s.widths, header); err != nil {
			f.Close()
			return nil, err
		}
	}

	if r.ExamName != "" && !r.ExamDate.IsZero() {
		title := fmt.Sprintf("%s: %s", r.ExamName, r.ExamDate.Format("2006-01-02"))
		if err := f.SetDocProps(&excelize.DocProperties{Title: title, Creator: "pai-studio"}); err != nil {
			f.Close()
			return nil, fmt.Errorf("setting document properties: %w", err)
		}
	}

	f.SetActiveSheet(0)
	return f, nil
}

func writeSheet(f *excelize.File, name string, header []any, rows [][]any, widths []float64, style int) error {
	if err := f.SetSheetRow(name, "A1", &header); err != nil {
		return fmt.Errorf("writing %s header: %w", name, err)
	}
	last, err := excelize.CoordinatesToCellName(len(header), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(name, "A1", last, style); err != nil {
		return fmt.Errorf("styling %s header: %w", name, err)
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(name, cell, &row); err != nil {
			return fmt.Errorf("writing %s row %d: %w", name, i+2, err)
		}
	}

	for i, w := range widths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(name, col, col, w); err != nil {
			return fmt.Errorf("sizing %s column %s: %w", name, col, err)
		}
	}
	return nil
}

func calendarRows(plan []planner.CalendarDay) [][]any {
	rows := make([][]any, 0, len(plan))
	for _, d := range plan {
		kind := "Studio"
		if d.Review {
			kind = "Ripasso"
		}
		rows = append(rows, []any{
			d.Date.Format("2006-01-02"),
			weekdays[d.Date.Weekday()],
			kind,
			strings.Join(d.Topics, "; "),
		})
	}
	return rows
}

func stateRows(states []progress.TopicState) [][]any {
	rows := make([][]any, 0, len(states))
	for _, s := range states {
		rows = append(rows, []any{s.Topic, curriculum.ParseTopic(s.Topic).Category, s.Status.Label()})
	}
	return rows
}

func scoreRows(scores []progress.ScoreEntry) [][]any {
	rows := make([][]any, 0, len(scores))
	for _, e := range scores {
		rows = append(rows, []any{e.Topic, e.Score, e.Timestamp.Format(progress.TimestampLayout), e.Comment})
	}
	return rows
}
