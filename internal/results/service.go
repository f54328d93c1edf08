package results

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/MikeSquared-Agency/RiskIndex/internal/scoring"
	"github.com/MikeSquared-Agency/RiskIndex/internal/store"
)

const defaultFetchConcurrency = 7

var (
	ErrNoActiveScenario = errors.New("no active scenario")
	ErrScenarioNotFound = errors.New("scenario not found")
	ErrCategoryNotFound = errors.New("category has no results in scenario")
	ErrCountryNotFound  = errors.New("country has no data in scenario")
)

// Source is the read side the service computes from. The Postgres store and
// the remote backend client both satisfy it.
type Source interface {
	GetScenario(ctx context.Context, id int64) (*store.Scenario, error)
	GetActiveScenario(ctx context.Context) (*store.Scenario, error)
	ListCountries(ctx context.Context) ([]*store.Country, error)
	ListCategories(ctx context.Context) ([]*store.Category, error)
	ListIndicators(ctx context.Context, filter store.IndicatorFilter) ([]*store.Indicator, error)
	GetCategoryWeights(ctx context.Context, scenarioID int64) ([]*store.CategoryWeight, error)
	GetIndicatorWeights(ctx context.Context, scenarioID int64) ([]*store.IndicatorWeight, error)
	ListIndicatorValues(ctx context.Context, filter store.ValueFilter) ([]*store.IndicatorValue, error)
}

// Query selects the scenario to compute (nil means the active one) and the
// subset of countries and categories to display. Display filters never
// change the computed indices.
type Query struct {
	ScenarioID  *int64
	CountryIDs  []int64
	CategoryIDs []int64
}

type Service struct {
	source      Source
	concurrency int
	tracer      trace.Tracer
	logger      *slog.Logger
}

func NewService(source Source, concurrency int, logger *slog.Logger) *Service {
	if concurrency <= 0 {
		concurrency = defaultFetchConcurrency
	}
	return &Service{
		source:      source,
		concurrency: concurrency,
		tracer:      otel.Tracer("riskindex/results"),
		logger:      logger,
	}
}

// ResolveScenario returns the requested scenario, or the active one when id
// is nil.
func (s *Service) ResolveScenario(ctx context.Context, id *int64) (*store.Scenario, error) {
	if id == nil {
		sc, err := s.source.GetActiveScenario(ctx)
		if err != nil {
			return nil, fmt.Errorf("get active scenario: %w", err)
		}
		if sc == nil {
			return nil, ErrNoActiveScenario
		}
		return sc, nil
	}
	sc, err := s.source.GetScenario(ctx, *id)
	if err != nil {
		return nil, fmt.Errorf("get scenario %d: %w", *id, err)
	}
	if sc == nil {
		return nil, ErrScenarioNotFound
	}
	return sc, nil
}

// Compute fetches every input of the scenario concurrently and runs the
// aggregation engine once all of them have arrived. Any failed fetch aborts
// the computation.
func (s *Service) Compute(ctx context.Context, q Query) (snap *Snapshot, err error) {
	ctx, span := s.tracer.Start(ctx, "results.compute")
	defer span.End()

	start := time.Now()
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		computeTotal.WithLabelValues(outcome).Inc()
		computeDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	}()

	sc, err := s.ResolveScenario(ctx, q.ScenarioID)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(
		attribute.Int64("scenario.id", sc.ID),
		attribute.Bool("scenario.active", sc.Active),
	)

	var (
		countries  []*store.Country
		categories []*store.Category
		indicators []*store.Indicator
		cws        []*store.CategoryWeight
		iws        []*store.IndicatorWeight
		values     []*store.IndicatorValue
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	g.Go(func() error {
		var err error
		if countries, err = s.source.ListCountries(gctx); err != nil {
			return fmt.Errorf("list countries: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if categories, err = s.source.ListCategories(gctx); err != nil {
			return fmt.Errorf("list categories: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if indicators, err = s.source.ListIndicators(gctx, store.IndicatorFilter{}); err != nil {
			return fmt.Errorf("list indicators: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if cws, err = s.source.GetCategoryWeights(gctx, sc.ID); err != nil {
			return fmt.Errorf("get category weights: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if iws, err = s.source.GetIndicatorWeights(gctx, sc.ID); err != nil {
			return fmt.Errorf("get indicator weights: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		scenarioID := sc.ID
		if values, err = s.source.ListIndicatorValues(gctx, store.ValueFilter{ScenarioID: &scenarioID}); err != nil {
			return fmt.Errorf("list indicator values: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	inputs := BuildInputs(cws, indicators, iws, values)
	result := scoring.Compute(inputs)

	snap = newSnapshot(sc, inputs, result, countries, categories, indicators)
	snap.applyFilters(q)

	computedCountries.Set(float64(len(result.Global)))
	computedCategories.Set(float64(len(result.Categories)))
	span.SetAttributes(
		attribute.Int("results.countries", len(result.Global)),
		attribute.Int("results.categories", len(result.Categories)),
	)

	s.logger.Debug("computed results",
		"scenario_id", sc.ID,
		"countries", len(result.Global),
		"categories", len(result.Categories),
		"values", len(values),
		"duration", time.Since(start),
	)
	return snap, nil
}

// BuildInputs converts stored rows into engine inputs. Indicators keep the
// order they were listed in, values keep their row order.
func BuildInputs(
	cws []*store.CategoryWeight,
	indicators []*store.Indicator,
	iws []*store.IndicatorWeight,
	values []*store.IndicatorValue,
) scoring.Inputs {
	in := scoring.Inputs{
		CategoryWeights:      make([]scoring.CategoryWeight, 0, len(cws)),
		IndicatorsByCategory: make(map[scoring.CategoryID][]scoring.IndicatorID),
		IndicatorWeights:     make(map[scoring.IndicatorID]float64, len(iws)),
		Values:               make([]scoring.IndicatorValue, 0, len(values)),
	}
	for _, cw := range cws {
		in.CategoryWeights = append(in.CategoryWeights, scoring.CategoryWeight{
			CategoryID: scoring.CategoryID(cw.CategoryID),
			Weight:     cw.Weight,
		})
	}
	for _, ind := range indicators {
		cat := scoring.CategoryID(ind.CategoryID)
		in.IndicatorsByCategory[cat] = append(in.IndicatorsByCategory[cat], scoring.IndicatorID(ind.ID))
	}
	for _, iw := range iws {
		in.IndicatorWeights[scoring.IndicatorID(iw.IndicatorID)] = iw.Weight
	}
	for _, v := range values {
		in.Values = append(in.Values, scoring.IndicatorValue{
			CountryID:   scoring.CountryID(v.CountryID),
			IndicatorID: scoring.IndicatorID(v.IndicatorID),
			Normalized:  v.NormalizedValue,
		})
	}
	in.Countries = scoring.CountryIDs(in.Values)
	return in
}
