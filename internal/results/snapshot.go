package results

import (
	"time"

	"github.com/MikeSquared-Agency/RiskIndex/internal/scoring"
	"github.com/MikeSquared-Agency/RiskIndex/internal/store"
)

type CountryValue struct {
	CountryID int64   `json:"country_id"`
	ISO3      string  `json:"iso3,omitempty"`
	Name      string  `json:"name,omitempty"`
	Value     float64 `json:"value"`
}

type CategoryIndex struct {
	CategoryID int64          `json:"category_id"`
	Name       string         `json:"name,omitempty"`
	Slug       string         `json:"slug,omitempty"`
	Weight     float64        `json:"weight"`
	Values     []CountryValue `json:"values"`
}

type CountryIndex struct {
	Position  int     `json:"position"`
	CountryID int64   `json:"country_id"`
	ISO3      string  `json:"iso3,omitempty"`
	Name      string  `json:"name,omitempty"`
	Index     float64 `json:"index"`
}

// Snapshot is one computation of a scenario. Categories and Global honour
// the display filters of the query; rankings and explanations always use
// the full result.
type Snapshot struct {
	Scenario   *store.Scenario `json:"scenario"`
	Categories []CategoryIndex `json:"categories"`
	Global     []CountryIndex  `json:"global"`
	ComputedAt time.Time       `json:"computed_at"`

	inputs     scoring.Inputs
	result     scoring.Result
	countries  map[int64]*store.Country
	categories map[int64]*store.Category
	indicators map[int64]*store.Indicator
}

func newSnapshot(
	sc *store.Scenario,
	inputs scoring.Inputs,
	result scoring.Result,
	countries []*store.Country,
	categories []*store.Category,
	indicators []*store.Indicator,
) *Snapshot {
	snap := &Snapshot{
		Scenario:   sc,
		ComputedAt: time.Now().UTC(),
		inputs:     inputs,
		result:     result,
		countries:  make(map[int64]*store.Country, len(countries)),
		categories: make(map[int64]*store.Category, len(categories)),
		indicators: make(map[int64]*store.Indicator, len(indicators)),
	}
	for _, c := range countries {
		snap.countries[c.ID] = c
	}
	for _, c := range categories {
		snap.categories[c.ID] = c
	}
	for _, ind := range indicators {
		snap.indicators[ind.ID] = ind
	}

	snap.Categories = make([]CategoryIndex, 0, len(result.Categories))
	for _, cr := range result.Categories {
		ci := CategoryIndex{
			CategoryID: int64(cr.CategoryID),
			Weight:     cr.Weight,
			Values:     []CountryValue{},
		}
		if cat := snap.categories[ci.CategoryID]; cat != nil {
			ci.Name = cat.Name
			ci.Slug = cat.Slug
		}
		for _, country := range inputs.Countries {
			if v, ok := cr.Values[country]; ok {
				ci.Values = append(ci.Values, snap.countryValue(int64(country), v))
			}
		}
		snap.Categories = append(snap.Categories, ci)
	}

	snap.Global = snap.decorate(scoring.Rank(result.Global, scoring.OrderDesc, 0))
	return snap
}

func (s *Snapshot) countryValue(id int64, v float64) CountryValue {
	cv := CountryValue{CountryID: id, Value: v}
	if c := s.countries[id]; c != nil {
		cv.ISO3 = c.ISO3
		cv.Name = c.NameES
	}
	return cv
}

func (s *Snapshot) decorate(entries []scoring.RankEntry) []CountryIndex {
	out := make([]CountryIndex, 0, len(entries))
	for _, e := range entries {
		ci := CountryIndex{Position: e.Position, CountryID: int64(e.CountryID), Index: e.Index}
		if c := s.countries[ci.CountryID]; c != nil {
			ci.ISO3 = c.ISO3
			ci.Name = c.NameES
		}
		out = append(out, ci)
	}
	return out
}

func (s *Snapshot) applyFilters(q Query) {
	if len(q.CategoryIDs) > 0 {
		keep := idSet(q.CategoryIDs)
		filtered := make([]CategoryIndex, 0, len(s.Categories))
		for _, ci := range s.Categories {
			if keep[ci.CategoryID] {
				filtered = append(filtered, ci)
			}
		}
		s.Categories = filtered
	}

	if len(q.CountryIDs) > 0 {
		keep := idSet(q.CountryIDs)
		for i := range s.Categories {
			values := make([]CountryValue, 0, len(s.Categories[i].Values))
			for _, v := range s.Categories[i].Values {
				if keep[v.CountryID] {
					values = append(values, v)
				}
			}
			s.Categories[i].Values = values
		}
		global := make([]CountryIndex, 0, len(s.Global))
		for _, g := range s.Global {
			if keep[g.CountryID] {
				global = append(global, g)
			}
		}
		s.Global = global
	}
}

// Ranking orders every country with a global index.
func (s *Snapshot) Ranking(order scoring.Order, limit int) []CountryIndex {
	return s.decorate(scoring.Rank(s.result.Global, order, limit))
}

// CategoryRanking orders the countries of one category.
func (s *Snapshot) CategoryRanking(categoryID int64, order scoring.Order, limit int) ([]CountryIndex, error) {
	for _, cr := range s.result.Categories {
		if int64(cr.CategoryID) == categoryID {
			return s.decorate(scoring.RankCategory(cr, s.inputs.Countries, order, limit)), nil
		}
	}
	return nil, ErrCategoryNotFound
}

// Explanation is a country's breakdown with display names attached.
type Explanation struct {
	ScenarioID     int64            `json:"scenario_id"`
	ISO3           string           `json:"iso3,omitempty"`
	Name           string           `json:"name,omitempty"`
	CategoryNames  map[int64]string `json:"category_names"`
	IndicatorNames map[int64]string `json:"indicator_names"`
	scoring.Explanation
}

// Explain breaks down one country's indices. Countries without any value
// in the scenario are reported as not found.
func (s *Snapshot) Explain(countryID int64) (*Explanation, error) {
	found := false
	for _, c := range s.inputs.Countries {
		if int64(c) == countryID {
			found = true
			break
		}
	}
	if !found {
		return nil, ErrCountryNotFound
	}

	exp := &Explanation{
		ScenarioID:     s.Scenario.ID,
		CategoryNames:  make(map[int64]string),
		IndicatorNames: make(map[int64]string),
		Explanation:    scoring.Explain(s.inputs, scoring.CountryID(countryID)),
	}
	if c := s.countries[countryID]; c != nil {
		exp.ISO3 = c.ISO3
		exp.Name = c.NameES
	}
	for _, ce := range exp.Categories {
		if cat := s.categories[int64(ce.CategoryID)]; cat != nil {
			exp.CategoryNames[cat.ID] = cat.Name
		}
		for _, ic := range ce.Indicators {
			if ind := s.indicators[int64(ic.IndicatorID)]; ind != nil {
				exp.IndicatorNames[ind.ID] = ind.Name
			}
		}
	}
	return exp, nil
}

// GlobalResults returns the unfiltered engine output, sorted descending.
func (s *Snapshot) GlobalResults() []scoring.GlobalResult {
	return s.result.Global
}

func idSet(ids []int64) map[int64]bool {
	set := make(map[int64]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
