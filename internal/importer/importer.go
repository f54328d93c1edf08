package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/MikeSquared-Agency/RiskIndex/internal/store"
	"github.com/MikeSquared-Agency/RiskIndex/internal/values"
)

var (
	// ErrNoLabels is returned when the header row or column holds no labels.
	ErrNoLabels = errors.New("not enough indicators or countries detected in the matrix")
	// ErrNothingMatched is returned when no label matched the catalog.
	ErrNothingMatched = errors.New("no country or indicator in the matrix matches the catalog")
)

// Options tune name matching.
type Options struct {
	MaxSuggestions int
	MaxDistance    int
}

func (o Options) withDefaults() Options {
	if o.MaxSuggestions <= 0 {
		o.MaxSuggestions = 3
	}
	if o.MaxDistance <= 0 {
		o.MaxDistance = 3
	}
	return o
}

// ValueWriter stores one value through the normalization path.
type ValueWriter interface {
	UpsertFor(ctx context.Context, ind *store.Indicator, v *store.IndicatorValue) error
}

// Issue is a problem with one label or cell. The rest of the import goes on.
type Issue struct {
	Cell        string   `json:"cell"`
	Label       string   `json:"label,omitempty"`
	Message     string   `json:"message"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// Report summarizes an import.
type Report struct {
	ScenarioID int64   `json:"scenario_id"`
	Processed  int     `json:"processed"`
	Skipped    int     `json:"skipped"`
	Errors     []Issue `json:"errors"`
}

// Catalog is what labels are matched against.
type Catalog struct {
	Countries  []*store.Country
	Indicators []*store.Indicator
}

type Importer struct {
	writer ValueWriter
	opts   Options
	logger *slog.Logger
}

func New(writer ValueWriter, opts Options, logger *slog.Logger) *Importer {
	return &Importer{writer: writer, opts: opts.withDefaults(), logger: logger}
}

// Import reads a country by indicator matrix and upserts every numeric cell
// into the scenario. Label and cell problems are collected in the report;
// storage failures abort the import.
func (im *Importer) Import(ctx context.Context, scenarioID int64, r io.Reader, cat Catalog) (*Report, error) {
	m, err := ReadMatrix(r)
	if err != nil {
		return nil, err
	}
	headerRow, headerCol, err := m.DetectHeaders()
	if err != nil {
		return nil, err
	}

	report := &Report{ScenarioID: scenarioID, Errors: []Issue{}}
	res := NewResolver(cat.Countries, cat.Indicators, im.opts)
	indicators := make(map[int64]*store.Indicator, len(cat.Indicators))
	for _, ind := range cat.Indicators {
		indicators[ind.ID] = ind
	}

	countryLabels, indicatorLabels := 0, 0
	rowCountry := make(map[int]int64)
	for row := 0; row < m.Rows(); row++ {
		if row == headerRow || !m.IsText(row, headerCol) {
			continue
		}
		countryLabels++
		label := m.Cell(row, headerCol)
		id, sugg, err := res.Country(label)
		if err != nil {
			report.Errors = append(report.Errors, labelIssue(CellRef(row, headerCol), "country", label, sugg, err))
			continue
		}
		rowCountry[row] = id
	}
	colIndicator := make(map[int]*store.Indicator)
	for col := 0; col < m.Cols(); col++ {
		if col == headerCol || !m.IsText(headerRow, col) {
			continue
		}
		indicatorLabels++
		label := m.Cell(headerRow, col)
		id, sugg, err := res.Indicator(label)
		if err != nil {
			report.Errors = append(report.Errors, labelIssue(CellRef(headerRow, col), "indicator", label, sugg, err))
			continue
		}
		colIndicator[col] = indicators[id]
	}

	if countryLabels == 0 || indicatorLabels == 0 {
		return nil, ErrNoLabels
	}
	if len(rowCountry) == 0 || len(colIndicator) == 0 {
		return report, ErrNothingMatched
	}

	for _, row := range sortedKeys(rowCountry) {
		for _, col := range sortedKeys(colIndicator) {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			raw := m.Cell(row, col)
			if raw == "" {
				report.Skipped++
				continue
			}
			ref := CellRef(row, col)
			v, ok := m.Number(row, col)
			if !ok {
				report.Errors = append(report.Errors, Issue{Cell: ref, Label: raw, Message: "value is not numeric, ignored"})
				continue
			}
			ind := colIndicator[col]
			iv := &store.IndicatorValue{ScenarioID: scenarioID, CountryID: rowCountry[row], RawValue: &v}
			if err := im.writer.UpsertFor(ctx, ind, iv); err != nil {
				if values.IsValidation(err) {
					report.Errors = append(report.Errors, Issue{Cell: ref, Label: raw, Message: err.Error()})
					continue
				}
				return nil, fmt.Errorf("upsert %s: %w", ref, err)
			}
			report.Processed++
		}
	}

	im.logger.Info("matrix imported",
		"scenario_id", scenarioID,
		"processed", report.Processed,
		"skipped", report.Skipped,
		"errors", len(report.Errors),
	)
	return report, nil
}

func labelIssue(ref, kind, label string, suggestions []string, err error) Issue {
	msg := fmt.Sprintf("%s %q not found", kind, label)
	if errors.Is(err, ErrAmbiguousName) {
		msg = fmt.Sprintf("%s %q is ambiguous", kind, label)
	}
	return Issue{Cell: ref, Label: label, Message: msg, Suggestions: suggestions}
}

func sortedKeys[V any](m map[int]V) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
