package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"golang.org/x/sync/errgroup"

	"github.com/spegrid/execreview-backend/internal/domain"
	"github.com/spegrid/execreview-backend/internal/pkg/errors"
	"github.com/spegrid/execreview-backend/internal/platform/logger"
	"github.com/spegrid/execreview-backend/internal/platform/openai"
)

// SummaryExtractor submits the reference, previous-week and current-week PDFs
// to the extraction provider and returns the validated structured review.
//
// The reference PDF is always attached first to anchor the provider on the
// expected structure and tone; previous and current follow in that order. The
// ordering is a contract with the provider, not an implementation detail.
type SummaryExtractor interface {
	Extract(ctx context.Context, referencePDF, previousPDF, currentPDF string) (*domain.SummaryData, error)
}

type summaryExtractor struct {
	log *logger.Logger
	ai  openai.Client
}

func NewSummaryExtractor(baseLog *logger.Logger, ai openai.Client) SummaryExtractor {
	return &summaryExtractor{
		log: baseLog.With("service", "SummaryExtractor"),
		ai:  ai,
	}
}

func (s *summaryExtractor) Extract(ctx context.Context, referencePDF, previousPDF, currentPDF string) (*domain.SummaryData, error) {
	paths := []string{referencePDF, previousPDF, currentPDF}
	fileIDs := make([]string, len(paths))

	// Uploads may run in parallel; the slot order fixes the request order.
	g, gctx := errgroup.WithContext(ctx)
	for i, p := range paths {
		g.Go(func() error {
			data, err := os.ReadFile(p)
			if err != nil {
				return fmt.Errorf("read %s: %w", filepath.Base(p), err)
			}
			id, err := s.ai.UploadFile(gctx, filepath.Base(p), data)
			if err != nil {
				return fmt.Errorf("upload %s: %w", filepath.Base(p), err)
			}
			fileIDs[i] = id
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, &errors.ExtractionError{Reason: "artifact upload", Err: err}
	}

	out, err := s.ai.GenerateJSONWithFiles(ctx, extractionSystemPrompt, extractionUserPrompt, fileIDs)
	if err != nil {
		return nil, &errors.ExtractionError{Reason: "provider call", Err: err}
	}

	data, err := parseSummaryJSON([]byte(out))
	if err != nil {
		return nil, &errors.ExtractionError{Reason: "malformed provider response", Err: err}
	}
	s.log.Info("Extracted structured summary",
		"mill", data.Header.MillName,
		"week", data.Header.Week,
		"comparison_week", data.Header.ComparisonWeek,
	)
	return data, nil
}

// parseSummaryJSON decodes and schema-validates a provider response. A response
// that does not match the expected top-level shape is rejected outright, never
// coerced.
func parseSummaryJSON(raw []byte) (*domain.SummaryData, error) {
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("not valid json: %w", err)
	}
	if err := validateAgainstSchema(domain.SummarySchema(), generic); err != nil {
		return nil, err
	}
	var data domain.SummaryData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

func validateAgainstSchema(schemaMap map[string]any, value any) error {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("summary.json", bytes.NewReader(b)); err != nil {
		return fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("summary.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	if err := schema.Validate(value); err != nil {
		return fmt.Errorf("schema mismatch: %w", err)
	}
	return nil
}

const extractionSystemPrompt = `You are an Executive Performance Intelligence Assistant for SPE (Sugar, Power, Ethanol) operations.

ROLE (LOCKED):
- Think and write as a Plant Head + Corporate SPE Reviewer
- Produce leadership-safe, decision-ready weekly reviews

OPERATING MODE - PDF-ONLY (ABSOLUTE):
- Use ONLY the uploaded PDF files:
  1) Reference Executive Summary PDF
  2) Previous Week Operational Review PDF
  3) Current Week Operational Review PDF
- Each PDF is a direct slide export; all tables, charts, axis labels, legends,
  annotations and footnotes visible in the PDFs are explicit disclosures.

PROHIBITIONS (ZERO TOLERANCE):
- No assumptions, no calculations or derived deltas, no recomputation of
  weekly / cumulative / till-date values, no industry logic, no external
  context, no memory or prior knowledge, no re-expression of units.

NUMERIC DISCIPLINE:
- Every number must be copied verbatim from the PDFs.
- If a change is visible but no explanation is written, state exactly:
  "Reason not explicitly stated in the slide."

SLIDE GOVERNANCE (MANDATORY):
- No page may be ignored. For every PDF page include at least one numeric
  disclosure, explicit narrative text, benchmark statement, risk / watch-out,
  or the exact phrase: "No material change vs last week."

STYLE ENFORCEMENT:
- Strictly follow the structure, headings, bullet density, tone and executive
  language of the Reference Executive Summary PDF. The reference PDF is the
  gold standard.

MANDATORY CLOSING LINE (EXACT):
"This review is based exclusively on numbers and narratives disclosed in the weekly PDF slides."

DATE EXTRACTION PROTOCOL (CRITICAL):
- Extract the exact "Week Ending" or period dates from the title slide,
  headers or footers.
- The "Current Week" date MUST come from the Current Week Operational Review
  PDF; the "Previous Week" date MUST come from the Previous Week Operational
  Review PDF. Prefer the title slide date when several appear.
- Format as "DD MMM YYYY" (e.g. "12 Jan 2024"). Never default to today.`

const extractionUserPrompt = `Compare the Previous Week and Current Week PDFs.

OUTPUT FORMAT: STRICT JSON ONLY (NO MARKDOWN, NO TEXT)

Return a JSON object with this schema:

{
  "header": {
    "mill_name": "Extract exactly from Title Slide",
    "week": "DATE from 'Current Week Operational Review PDF' (DD MMM YYYY)",
    "comparison_week": "DATE from 'Previous Week Operational Review PDF' (DD MMM YYYY)",
    "season_days": "Extract from Title Slide"
  },
  "part1": {
    "executive_summary": [
      { "title": "CRUSHING PERFORMANCE", "text": "Synthesize insights from current week vs previous week" },
      { "title": "RECOVERY", "text": "" },
      { "title": "LOSSES", "text": "" },
      { "title": "POWER", "text": "" },
      { "title": "DISTILLERY", "text": "" },
      { "title": "SUGAR QUALITY", "text": "" },
      { "title": "CAPEX / PROJECTS", "text": "" },
      { "title": "EHS & SAFETY", "text": "" }
    ],
    "overall_performance": "Executive summary of plant performance",
    "benchmark_position": "Compare against targets/budget if available",
    "cane_planning": "",
    "engineering": "",
    "production": "",
    "power": "",
    "distillery": "",
    "quality_ehs": "",
    "risks": [ "" ]
  },
  "tables": {
    "tableA": {
      "headers": ["KPI", "Current Week", "Last Week", "Till Date", "WoW Change"],
      "rows": []
    },
    "tableB": {
      "headers": ["Area", "Current Week Narrative", "Change vs Last Week"],
      "rows": []
    }
  }
}

STRICT RULES:
- JSON only, no prose outside JSON, do not invent keys.
- Values must be copied verbatim from the PDFs.
- "week" MUST be the date range found in the Current Week PDF title/header;
  "comparison_week" MUST come from the Previous Week PDF title/header.`
