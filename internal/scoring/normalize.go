package scoring

import (
	"errors"
	"fmt"
	"math"
)

// MaxNormalized is the top of the normalized scale.
const MaxNormalized = 5.0

// ValueType is the direction of an indicator.
type ValueType string

const (
	// ValueTypeDMP grows with the raw value.
	ValueTypeDMP ValueType = "DMP"
	// ValueTypeIMP shrinks as the raw value grows.
	ValueTypeIMP ValueType = "IMP"
)

// Scale describes how an indicator's raw bounds are defined.
type Scale string

const (
	ScaleFixed10  Scale = "FIJA_0_10"
	ScaleFixed100 Scale = "FIJA_0_100"
	ScaleVariable Scale = "VARIABLE"
)

var (
	// ErrInvalidScale is returned when an indicator has no usable bounds.
	ErrInvalidScale = errors.New("indicator requires min < max")
	// ErrOutOfRange is returned for raw values outside an indicator's bounds.
	ErrOutOfRange = errors.New("raw value out of range")
)

// Bounds are the raw min/max of an indicator.
type Bounds struct {
	Min float64
	Max float64
}

// ResolveBounds returns the raw bounds for an indicator. Explicit bounds win;
// otherwise fixed scales fall back to their nominal range.
func ResolveBounds(scale Scale, min, max *float64) (Bounds, error) {
	var b Bounds
	switch scale {
	case ScaleFixed10:
		b = Bounds{Min: 0, Max: 10}
	case ScaleFixed100:
		b = Bounds{Min: 0, Max: 100}
	case ScaleVariable, "":
		if min == nil || max == nil {
			return Bounds{}, ErrInvalidScale
		}
	default:
		return Bounds{}, fmt.Errorf("unknown scale %q: %w", scale, ErrInvalidScale)
	}
	if min != nil {
		b.Min = *min
	}
	if max != nil {
		b.Max = *max
	}
	if b.Max <= b.Min {
		return Bounds{}, ErrInvalidScale
	}
	return b, nil
}

// Normalize maps a raw value onto [0,5]. A nil raw value stays nil.
func Normalize(vt ValueType, b Bounds, raw *float64) (*float64, error) {
	if raw == nil {
		return nil, nil
	}
	if b.Max <= b.Min {
		return nil, ErrInvalidScale
	}
	r := *raw
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return nil, fmt.Errorf("%w: %g is not a finite number", ErrOutOfRange, r)
	}
	if r < b.Min || r > b.Max {
		return nil, fmt.Errorf("%w: %g not in [%g, %g]", ErrOutOfRange, r, b.Min, b.Max)
	}

	var score float64
	if vt == ValueTypeIMP {
		score = MaxNormalized * (b.Max - r) / (b.Max - b.Min)
	} else {
		score = MaxNormalized * (r - b.Min) / (b.Max - b.Min)
	}
	score = clamp(score, 0, MaxNormalized)
	return &score, nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
