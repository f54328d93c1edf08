package values

import (
	"context"
	"errors"
	"fmt"

	"github.com/MikeSquared-Agency/RiskIndex/internal/scoring"
	"github.com/MikeSquared-Agency/RiskIndex/internal/store"
)

// ErrIndicatorNotFound is returned when a value references an unknown indicator.
var ErrIndicatorNotFound = errors.New("indicator not found")

// Repository is the slice of store.Store the writer needs.
type Repository interface {
	GetIndicator(ctx context.Context, id int64) (*store.Indicator, error)
	UpsertIndicatorValue(ctx context.Context, v *store.IndicatorValue) error
}

// Writer validates raw values against their indicator and stores the
// normalized result. Manual entry and matrix import both go through it.
type Writer struct {
	repo Repository
}

func NewWriter(repo Repository) *Writer {
	return &Writer{repo: repo}
}

// IsValidation reports whether err came from the raw value or the indicator
// definition rather than from storage.
func IsValidation(err error) bool {
	return errors.Is(err, scoring.ErrOutOfRange) || errors.Is(err, scoring.ErrInvalidScale)
}

// Normalized returns the [0,5] score for raw under ind.
func Normalized(ind *store.Indicator, raw *float64) (*float64, error) {
	if raw == nil {
		return nil, nil
	}
	b, err := scoring.ResolveBounds(scoring.Scale(ind.Scale), ind.MinValue, ind.MaxValue)
	if err != nil {
		return nil, fmt.Errorf("indicator %q: %w", ind.Name, err)
	}
	n, err := scoring.Normalize(scoring.ValueType(ind.ValueType), b, raw)
	if err != nil {
		return nil, fmt.Errorf("indicator %q: %w", ind.Name, err)
	}
	return n, nil
}

// Upsert looks up v's indicator, fills in NormalizedValue and stores v.
func (w *Writer) Upsert(ctx context.Context, v *store.IndicatorValue) error {
	ind, err := w.repo.GetIndicator(ctx, v.IndicatorID)
	if err != nil {
		return fmt.Errorf("get indicator: %w", err)
	}
	if ind == nil {
		return ErrIndicatorNotFound
	}
	return w.UpsertFor(ctx, ind, v)
}

// UpsertFor is Upsert with the indicator already resolved.
func (w *Writer) UpsertFor(ctx context.Context, ind *store.Indicator, v *store.IndicatorValue) error {
	n, err := Normalized(ind, v.RawValue)
	if err != nil {
		return err
	}
	v.IndicatorID = ind.ID
	v.NormalizedValue = n
	return w.repo.UpsertIndicatorValue(ctx, v)
}
