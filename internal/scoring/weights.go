package scoring

import (
	"errors"
	"fmt"
	"math"
)

// SumTolerance is the allowed deviation from 1.0 when a weight set is saved.
const SumTolerance = 1e-6

var (
	// ErrWeightSum is returned when a weight set does not add up to 100%.
	ErrWeightSum = errors.New("weights must sum to 100%")
	// ErrWeightRange is returned for a weight outside [0,1].
	ErrWeightRange = errors.New("weight out of range")
	// ErrDuplicateWeight is returned when the same id appears twice in a set.
	ErrDuplicateWeight = errors.New("duplicate weight")
)

// IndicatorWeight is the weight of one indicator within its category.
type IndicatorWeight struct {
	IndicatorID IndicatorID `json:"indicator_id"`
	Weight      float64     `json:"weight"`
}

// Sum returns the total of the given weights.
func Sum(weights []float64) float64 {
	var total float64
	for _, w := range weights {
		total += w
	}
	return total
}

// ValidateCategoryWeights checks a scenario's category weights before they
// are persisted: every weight in [0,1], no duplicates, total of 100%.
func ValidateCategoryWeights(items []CategoryWeight) error {
	seen := make(map[CategoryID]bool, len(items))
	weights := make([]float64, 0, len(items))
	for _, it := range items {
		if err := checkRange(it.Weight); err != nil {
			return fmt.Errorf("category %d: %w", it.CategoryID, err)
		}
		if seen[it.CategoryID] {
			return fmt.Errorf("category %d: %w", it.CategoryID, ErrDuplicateWeight)
		}
		seen[it.CategoryID] = true
		weights = append(weights, it.Weight)
	}
	if !sumsToOne(weights) {
		return fmt.Errorf("category weights sum to %.2f%%: %w", Sum(weights)*100, ErrWeightSum)
	}
	return nil
}

// ValidateIndicatorWeights checks the indicator weights of one category. The
// sum check is skipped when the category has no indicators.
func ValidateIndicatorWeights(indicatorCount int, items []IndicatorWeight) error {
	seen := make(map[IndicatorID]bool, len(items))
	weights := make([]float64, 0, len(items))
	for _, it := range items {
		if err := checkRange(it.Weight); err != nil {
			return fmt.Errorf("indicator %d: %w", it.IndicatorID, err)
		}
		if seen[it.IndicatorID] {
			return fmt.Errorf("indicator %d: %w", it.IndicatorID, ErrDuplicateWeight)
		}
		seen[it.IndicatorID] = true
		weights = append(weights, it.Weight)
	}
	if indicatorCount == 0 {
		return nil
	}
	if !sumsToOne(weights) {
		return fmt.Errorf("indicator weights sum to %.2f%%: %w", Sum(weights)*100, ErrWeightSum)
	}
	return nil
}

// PercentToFraction converts an edited percentage to the stored fraction,
// rounded to 4 decimals.
func PercentToFraction(percent float64) float64 {
	return math.Round(percent/100*10000) / 10000
}

// FractionToPercent converts a stored fraction to the integer percentage
// shown while editing.
func FractionToPercent(fraction float64) int {
	return int(math.Round(fraction * 100))
}

func sumsToOne(weights []float64) bool {
	return math.Abs(Sum(weights)-1.0) <= SumTolerance
}

func checkRange(w float64) error {
	if math.IsNaN(w) || w < 0 || w > 1 {
		return fmt.Errorf("%w: %f", ErrWeightRange, w)
	}
	return nil
}
