package domain

import "time"

// SummaryHeader carries the fields the extraction provider reads off the deck
// title slides. Week dates are verbatim from the decks, never recomputed.
type SummaryHeader struct {
	MillName       string `json:"mill_name"`
	Week           string `json:"week"`
	ComparisonWeek string `json:"comparison_week"`
	SeasonDays     string `json:"season_days"`
}

type SummaryPoint struct {
	Title string `json:"title"`
	Text  string `json:"text"`
}

// SummaryNarrative is "part 1" of the review: the executive bullets plus the
// numbered narrative sections and the risk watch-outs.
type SummaryNarrative struct {
	ExecutiveSummary   []SummaryPoint `json:"executive_summary"`
	OverallPerformance string         `json:"overall_performance"`
	BenchmarkPosition  string         `json:"benchmark_position"`
	CanePlanning       string         `json:"cane_planning"`
	Engineering        string         `json:"engineering"`
	Production         string         `json:"production"`
	Power              string         `json:"power"`
	Distillery         string         `json:"distillery"`
	QualityEHS         string         `json:"quality_ehs"`
	Risks              []string       `json:"risks"`
}

type SummaryTable struct {
	Headers []string   `json:"headers"`
	Rows    [][]string `json:"rows"`
}

type SummaryTables struct {
	TableA SummaryTable `json:"tableA"`
	TableB SummaryTable `json:"tableB"`
}

// SummaryData is the canonical structured result of one extraction run and the
// single source of truth for rendering. Artifacts are always derivable from it;
// the reverse is never true.
type SummaryData struct {
	Header SummaryHeader    `json:"header"`
	Part1  SummaryNarrative `json:"part1"`
	Tables SummaryTables    `json:"tables"`
}

// ReportMeta is one index entry of the report store.
type ReportMeta struct {
	FileID         string    `json:"fileId"`
	MillName       string    `json:"millName"`
	Week           string    `json:"week"`
	ComparisonWeek string    `json:"comparisonWeek"`
	BusinessID     string    `json:"businessId,omitempty"`
	CreatedBy      string    `json:"createdBy,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	DocxFile       string    `json:"docxFile"`
	PdfFile        string    `json:"pdfFile"`
	EmailedTo      []string  `json:"emailedTo,omitempty"`
}

type Report struct {
	Meta ReportMeta   `json:"meta"`
	Data *SummaryData `json:"data"`
}

// SummarySchema is the JSON Schema the extraction provider's response must
// satisfy before the pipeline may proceed. Schema mismatch is a hard failure.
func SummarySchema() map[string]any {
	str := map[string]any{"type": "string"}
	strArray := map[string]any{"type": "array", "items": str}
	table := map[string]any{
		"type":     "object",
		"required": []any{"headers", "rows"},
		"properties": map[string]any{
			"headers": strArray,
			"rows": map[string]any{
				"type":  "array",
				"items": strArray,
			},
		},
	}
	return map[string]any{
		"type":     "object",
		"required": []any{"header", "part1", "tables"},
		"properties": map[string]any{
			"header": map[string]any{
				"type":     "object",
				"required": []any{"mill_name", "week", "comparison_week"},
				"properties": map[string]any{
					"mill_name":       str,
					"week":            str,
					"comparison_week": str,
					"season_days":     str,
				},
			},
			"part1": map[string]any{
				"type":     "object",
				"required": []any{"executive_summary", "overall_performance"},
				"properties": map[string]any{
					"executive_summary": map[string]any{
						"type": "array",
						"items": map[string]any{
							"type":     "object",
							"required": []any{"title", "text"},
							"properties": map[string]any{
								"title": str,
								"text":  str,
							},
						},
					},
					"overall_performance": str,
					"benchmark_position":  str,
					"cane_planning":       str,
					"engineering":         str,
					"production":          str,
					"power":               str,
					"distillery":          str,
					"quality_ehs":         str,
					"risks":               strArray,
				},
			},
			"tables": map[string]any{
				"type":     "object",
				"required": []any{"tableA", "tableB"},
				"properties": map[string]any{
					"tableA": table,
					"tableB": table,
				},
			},
		},
	}
}
