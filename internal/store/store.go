package store

import (
	"context"
	"time"
)

type Country struct {
	ID      int64  `json:"id"`
	ISO2    string `json:"iso2"`
	ISO3    string `json:"iso3"`
	NameES  string `json:"name_es"`
	NameEN  string `json:"name_en"`
	Enabled bool   `json:"enabled"`
}

type Category struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description,omitempty"`
}

type Indicator struct {
	ID         int64    `json:"id"`
	CategoryID int64    `json:"category_id"`
	Name       string   `json:"name"`
	Slug       string   `json:"slug"`
	ValueType  string   `json:"value_type"`
	Scale      string   `json:"scale"`
	MinValue   *float64 `json:"min_value,omitempty"`
	MaxValue   *float64 `json:"max_value,omitempty"`
	Unit       string   `json:"unit,omitempty"`
}

type IndicatorFilter struct {
	CategoryID *int64
}

type Scenario struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
}

type ScenarioFilter struct {
	Query      string
	OnlyActive *bool
	Limit      int
	Offset     int
}

type CategoryWeight struct {
	ScenarioID int64   `json:"scenario_id"`
	CategoryID int64   `json:"category_id"`
	Weight     float64 `json:"weight"`
}

type IndicatorWeight struct {
	ScenarioID  int64   `json:"scenario_id"`
	IndicatorID int64   `json:"indicator_id"`
	Weight      float64 `json:"weight"`
}

// IndicatorValue is one stored observation. NormalizedValue is derived from
// RawValue at write time and is nil whenever RawValue is nil.
type IndicatorValue struct {
	ID              int64     `json:"id"`
	ScenarioID      int64     `json:"scenario_id"`
	CountryID       int64     `json:"country_id"`
	IndicatorID     int64     `json:"indicator_id"`
	RawValue        *float64  `json:"raw_value"`
	NormalizedValue *float64  `json:"normalized_value"`
	LoadedAt        time.Time `json:"loaded_at"`
}

// ValueFilter selects indicator values. Limit <= 0 returns every match.
type ValueFilter struct {
	ScenarioID  *int64
	CountryID   *int64
	IndicatorID *int64
	Limit       int
	Offset      int
}

type Store interface {
	// Catalog
	ListCountries(ctx context.Context) ([]*Country, error)
	ListCategories(ctx context.Context) ([]*Category, error)
	GetCategory(ctx context.Context, id int64) (*Category, error)
	ListIndicators(ctx context.Context, filter IndicatorFilter) ([]*Indicator, error)
	GetIndicator(ctx context.Context, id int64) (*Indicator, error)

	// Scenarios
	ListScenarios(ctx context.Context, filter ScenarioFilter) ([]*Scenario, error)
	GetScenario(ctx context.Context, id int64) (*Scenario, error)
	GetActiveScenario(ctx context.Context) (*Scenario, error)
	ActivateScenario(ctx context.Context, id int64) error
	RemoveCategoryFromScenario(ctx context.Context, scenarioID, categoryID int64) error

	// Weights (transactional replace)
	GetCategoryWeights(ctx context.Context, scenarioID int64) ([]*CategoryWeight, error)
	ReplaceCategoryWeights(ctx context.Context, scenarioID int64, items []CategoryWeight) error
	GetIndicatorWeights(ctx context.Context, scenarioID int64) ([]*IndicatorWeight, error)
	ReplaceIndicatorWeights(ctx context.Context, scenarioID, categoryID int64, items []IndicatorWeight) error

	// Values
	ListIndicatorValues(ctx context.Context, filter ValueFilter) ([]*IndicatorValue, error)
	CountIndicatorValues(ctx context.Context, filter ValueFilter) (int, error)
	GetIndicatorValue(ctx context.Context, id int64) (*IndicatorValue, error)
	UpsertIndicatorValue(ctx context.Context, v *IndicatorValue) error
	DeleteIndicatorValue(ctx context.Context, id int64) error

	Close() error
}
