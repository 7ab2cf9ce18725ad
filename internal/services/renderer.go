package services

import (
	"bytes"
	"fmt"
	"strings"

	docx "github.com/fumiama/go-docx"

	"github.com/spegrid/execreview-backend/internal/domain"
	"github.com/spegrid/execreview-backend/internal/pkg/errors"
	"github.com/spegrid/execreview-backend/internal/platform/logger"
)

// DocumentRenderer produces the primary DOCX from structured data. It is a
// pure function of its input: no external calls, deterministic layout.
type DocumentRenderer interface {
	Render(data *domain.SummaryData) ([]byte, error)
}

const (
	colorPrimary = "1F4E78"
	colorSection = "2E75B5"
	colorTable   = "006666"
	colorRisk    = "C00000"

	tableWidth = 9026
)

type docxRenderer struct {
	log *logger.Logger
}

func NewDocumentRenderer(baseLog *logger.Logger) DocumentRenderer {
	return &docxRenderer{log: baseLog.With("service", "DocumentRenderer")}
}

func (r *docxRenderer) Render(data *domain.SummaryData) ([]byte, error) {
	if data == nil {
		return nil, &errors.RenderError{Err: fmt.Errorf("nil summary data")}
	}
	if strings.TrimSpace(data.Header.MillName) == "" {
		return nil, &errors.RenderError{Err: fmt.Errorf("summary data has no header")}
	}

	w := docx.New().WithDefaultTheme()

	// Title area
	centered(w, "WEEKLY LEADERSHIP REVIEW", "36", colorPrimary, true)
	centered(w, data.Header.MillName, "28", "444444", false)
	centered(w, fmt.Sprintf("Week: %s vs Previous Week (%s)", data.Header.Week, data.Header.ComparisonWeek), "20", "666666", false)
	if strings.TrimSpace(data.Header.SeasonDays) != "" {
		centered(w, "Season Days: "+data.Header.SeasonDays, "20", "666666", false)
	}
	w.AddParagraph()

	// Part 1
	heading(w, "PART 1 - INSIGHT NARRATIVE", "26", colorPrimary)
	heading(w, "1. Executive Summary (Key Insights)", "24", colorSection)
	for _, item := range data.Part1.ExecutiveSummary {
		p := w.AddParagraph()
		p.AddText("• " + item.Title + ": ").Size("22").Bold()
		p.AddText(item.Text).Size("22")
	}
	w.AddParagraph()

	section(w, "2. Overall Performance", data.Part1.OverallPerformance)
	section(w, "3. Benchmark & Comparative Position", data.Part1.BenchmarkPosition)
	section(w, "4. Cane Planning & Control", data.Part1.CanePlanning)
	section(w, "5. Engineering & Milling Performance", data.Part1.Engineering)
	section(w, "6. Production Performance", data.Part1.Production)
	section(w, "7. Power Plant Performance", data.Part1.Power)
	section(w, "8. Distillery Performance", data.Part1.Distillery)
	section(w, "9. Quality Control & EHS", data.Part1.QualityEHS)

	heading(w, "Risks & Watch-outs for the Coming Week", "24", colorRisk)
	for _, risk := range data.Part1.Risks {
		if strings.TrimSpace(risk) == "" {
			continue
		}
		w.AddParagraph().AddText("• " + risk).Size("22")
	}
	w.AddParagraph()

	heading(w, "TABLE A - Quantitative Discussion", "24", colorTable)
	if err := buildTable(w, data.Tables.TableA); err != nil {
		return nil, &errors.RenderError{Err: err}
	}
	w.AddParagraph()

	heading(w, "TABLE B - Qualitative Discussion", "24", colorTable)
	if err := buildTable(w, data.Tables.TableB); err != nil {
		return nil, &errors.RenderError{Err: err}
	}
	w.AddParagraph()

	closing := w.AddParagraph().Justification("center")
	closing.AddText("This review is based exclusively on numbers and narratives disclosed in the weekly PDF slides.").
		Size("18").Color("888888").Italic()
	note := w.AddParagraph().Justification("center")
	note.AddText("Note: This report is AI-generated and may not be fully accurate. Please review and validate the information before relying on it for decision-making.").
		Size("16").Color("AAAAAA").Italic()

	var buf bytes.Buffer
	if _, err := w.WriteTo(&buf); err != nil {
		return nil, &errors.RenderError{Err: err}
	}
	return buf.Bytes(), nil
}

func centered(w *docx.Docx, text, size, color string, bold bool) {
	p := w.AddParagraph().Justification("center")
	run := p.AddText(text).Size(size).Color(color)
	if bold {
		run.Bold()
	}
}

func heading(w *docx.Docx, text, size, color string) {
	w.AddParagraph().AddText(text).Size(size).Color(color).Bold()
}

func section(w *docx.Docx, title, text string) {
	heading(w, title, "22", colorSection)
	p := w.AddParagraph().Justification("both")
	p.AddText(text)
}

func buildTable(w *docx.Docx, t domain.SummaryTable) error {
	if len(t.Headers) == 0 {
		return fmt.Errorf("table has no headers")
	}
	tbl := w.AddTable(1+len(t.Rows), len(t.Headers), tableWidth, nil)

	headerRow := tbl.TableRows[0]
	for i, h := range t.Headers {
		cell := headerRow.TableCells[i]
		cell.Shade("clear", "auto", colorTable)
		cell.AddParagraph().Justification("center").AddText(h).Color("FFFFFF").Bold()
	}
	for ri, row := range t.Rows {
		cells := tbl.TableRows[ri+1].TableCells
		for ci, val := range row {
			if ci >= len(cells) {
				break
			}
			cells[ci].AddParagraph().AddText(val)
		}
	}
	return nil
}
