package api

import (
	"context"
	"sync"
	"time"

	"github.com/MikeSquared-Agency/RiskIndex/internal/store"
)

// mockStore is an in-memory store.Store.
type mockStore struct {
	mu               sync.Mutex
	countries        []*store.Country
	categories       []*store.Category
	indicators       []*store.Indicator
	scenarios        []*store.Scenario
	categoryWeights  map[int64][]store.CategoryWeight
	indicatorWeights map[int64][]store.IndicatorWeight
	values           []*store.IndicatorValue
	nextValueID      int64
}

func newMockStore() *mockStore {
	return &mockStore{
		countries: []*store.Country{
			{ID: 1, ISO2: "PE", ISO3: "PER", NameES: "Perú", NameEN: "Peru", Enabled: true},
			{ID: 2, ISO2: "CL", ISO3: "CHL", NameES: "Chile", NameEN: "Chile", Enabled: true},
		},
		categories: []*store.Category{
			{ID: 1, Name: "Político", Slug: "politico"},
			{ID: 2, Name: "Económico", Slug: "economico"},
			{ID: 3, Name: "Vacía", Slug: "vacia"},
		},
		indicators: []*store.Indicator{
			{ID: 1, CategoryID: 1, Name: "Estabilidad", ValueType: "DMP", Scale: "FIJA_0_10"},
			{ID: 2, CategoryID: 1, Name: "Corrupción", ValueType: "IMP", Scale: "FIJA_0_10"},
			{ID: 3, CategoryID: 2, Name: "Inflación", ValueType: "IMP", Scale: "FIJA_0_100"},
			{ID: 4, CategoryID: 2, Name: "PIB", ValueType: "DMP", Scale: "VARIABLE", MinValue: float64Ptr(0), MaxValue: float64Ptr(20)},
		},
		scenarios: []*store.Scenario{
			{ID: 1, Name: "Base", Active: true},
			{ID: 2, Name: "Estrés"},
		},
		categoryWeights: map[int64][]store.CategoryWeight{
			1: {{ScenarioID: 1, CategoryID: 1, Weight: 0.6}, {ScenarioID: 1, CategoryID: 2, Weight: 0.4}},
		},
		indicatorWeights: map[int64][]store.IndicatorWeight{
			1: {{ScenarioID: 1, IndicatorID: 1, Weight: 0.5}, {ScenarioID: 1, IndicatorID: 2, Weight: 0.5}},
		},
		nextValueID: 1,
	}
}

func float64Ptr(v float64) *float64 { return &v }

func (m *mockStore) ListCountries(_ context.Context) ([]*store.Country, error) {
	return m.countries, nil
}

func (m *mockStore) ListCategories(_ context.Context) ([]*store.Category, error) {
	return m.categories, nil
}

func (m *mockStore) GetCategory(_ context.Context, id int64) (*store.Category, error) {
	for _, c := range m.categories {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, nil
}

func (m *mockStore) ListIndicators(_ context.Context, f store.IndicatorFilter) ([]*store.Indicator, error) {
	var out []*store.Indicator
	for _, ind := range m.indicators {
		if f.CategoryID == nil || ind.CategoryID == *f.CategoryID {
			out = append(out, ind)
		}
	}
	return out, nil
}

func (m *mockStore) GetIndicator(_ context.Context, id int64) (*store.Indicator, error) {
	for _, ind := range m.indicators {
		if ind.ID == id {
			return ind, nil
		}
	}
	return nil, nil
}

func (m *mockStore) ListScenarios(_ context.Context, _ store.ScenarioFilter) ([]*store.Scenario, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.scenarios, nil
}

func (m *mockStore) GetScenario(_ context.Context, id int64) (*store.Scenario, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, sc := range m.scenarios {
		if sc.ID == id {
			return sc, nil
		}
	}
	return nil, nil
}

func (m *mockStore) GetActiveScenario(_ context.Context) (*store.Scenario, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, sc := range m.scenarios {
		if sc.Active {
			return sc, nil
		}
	}
	return nil, nil
}

func (m *mockStore) ActivateScenario(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	found := false
	for _, sc := range m.scenarios {
		if sc.ID == id {
			found = true
		}
	}
	if !found {
		return store.ErrNotFound
	}
	for _, sc := range m.scenarios {
		sc.Active = sc.ID == id
	}
	return nil
}

func (m *mockStore) RemoveCategoryFromScenario(_ context.Context, scenarioID, categoryID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var cws []store.CategoryWeight
	for _, cw := range m.categoryWeights[scenarioID] {
		if cw.CategoryID != categoryID {
			cws = append(cws, cw)
		}
	}
	m.categoryWeights[scenarioID] = cws
	var iws []store.IndicatorWeight
	for _, iw := range m.indicatorWeights[scenarioID] {
		if m.categoryOf(iw.IndicatorID) != categoryID {
			iws = append(iws, iw)
		}
	}
	m.indicatorWeights[scenarioID] = iws
	return nil
}

func (m *mockStore) categoryOf(indicatorID int64) int64 {
	for _, ind := range m.indicators {
		if ind.ID == indicatorID {
			return ind.CategoryID
		}
	}
	return 0
}

func (m *mockStore) GetCategoryWeights(_ context.Context, scenarioID int64) ([]*store.CategoryWeight, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*store.CategoryWeight
	for i := range m.categoryWeights[scenarioID] {
		cw := m.categoryWeights[scenarioID][i]
		out = append(out, &cw)
	}
	return out, nil
}

func (m *mockStore) ReplaceCategoryWeights(_ context.Context, scenarioID int64, items []store.CategoryWeight) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.categoryWeights[scenarioID] = items
	return nil
}

func (m *mockStore) GetIndicatorWeights(_ context.Context, scenarioID int64) ([]*store.IndicatorWeight, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*store.IndicatorWeight
	for i := range m.indicatorWeights[scenarioID] {
		iw := m.indicatorWeights[scenarioID][i]
		out = append(out, &iw)
	}
	return out, nil
}

func (m *mockStore) ReplaceIndicatorWeights(_ context.Context, scenarioID, categoryID int64, items []store.IndicatorWeight) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var kept []store.IndicatorWeight
	for _, iw := range m.indicatorWeights[scenarioID] {
		if m.categoryOf(iw.IndicatorID) != categoryID {
			kept = append(kept, iw)
		}
	}
	m.indicatorWeights[scenarioID] = append(kept, items...)
	return nil
}

func (m *mockStore) matching(f store.ValueFilter) []*store.IndicatorValue {
	var out []*store.IndicatorValue
	for _, v := range m.values {
		if f.ScenarioID != nil && v.ScenarioID != *f.ScenarioID {
			continue
		}
		if f.CountryID != nil && v.CountryID != *f.CountryID {
			continue
		}
		if f.IndicatorID != nil && v.IndicatorID != *f.IndicatorID {
			continue
		}
		out = append(out, v)
	}
	return out
}

func (m *mockStore) ListIndicatorValues(_ context.Context, f store.ValueFilter) ([]*store.IndicatorValue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.matching(f)
	if f.Offset > 0 {
		if f.Offset >= len(out) {
			return nil, nil
		}
		out = out[f.Offset:]
	}
	if f.Limit > 0 && f.Limit < len(out) {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *mockStore) CountIndicatorValues(_ context.Context, f store.ValueFilter) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.matching(f)), nil
}

func (m *mockStore) GetIndicatorValue(_ context.Context, id int64) (*store.IndicatorValue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, v := range m.values {
		if v.ID == id {
			return v, nil
		}
	}
	return nil, nil
}

func (m *mockStore) UpsertIndicatorValue(_ context.Context, v *store.IndicatorValue) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v.LoadedAt = time.Now()
	for i, cur := range m.values {
		if cur.ScenarioID == v.ScenarioID && cur.CountryID == v.CountryID && cur.IndicatorID == v.IndicatorID {
			v.ID = cur.ID
			m.values[i] = v
			return nil
		}
	}
	v.ID = m.nextValueID
	m.nextValueID++
	m.values = append(m.values, v)
	return nil
}

func (m *mockStore) DeleteIndicatorValue(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, v := range m.values {
		if v.ID == id {
			m.values = append(m.values[:i], m.values[i+1:]...)
			return nil
		}
	}
	return store.ErrNotFound
}

func (m *mockStore) Close() error { return nil }

// seedValues loads the worked example into scenario 1 with already
// normalized scores.
func (m *mockStore) seedValues() {
	add := func(country, indicator int64, raw, norm float64) {
		_ = m.UpsertIndicatorValue(context.Background(), &store.IndicatorValue{
			ScenarioID: 1, CountryID: country, IndicatorID: indicator,
			RawValue: float64Ptr(raw), NormalizedValue: float64Ptr(norm),
		})
	}
	add(1, 1, 8, 4)
	add(1, 2, 6, 2)
	add(1, 3, 80, 1)
	add(1, 4, 20, 5)
	add(2, 1, 10, 5)
	add(2, 2, 2, 4)
}
