package scoring

import "sort"

// CategoryID identifies a risk category ("entorno").
type CategoryID int64

// IndicatorID identifies a weighted indicator.
type IndicatorID int64

// CountryID identifies a country.
type CountryID int64

// CategoryWeight is the weight of one category within a scenario, in [0,1].
type CategoryWeight struct {
	CategoryID CategoryID `json:"category_id"`
	Weight     float64    `json:"weight"`
}

// IndicatorValue is one normalized observation. A nil Normalized means the
// country has no data for the indicator.
type IndicatorValue struct {
	CountryID   CountryID   `json:"country_id"`
	IndicatorID IndicatorID `json:"indicator_id"`
	Normalized  *float64    `json:"normalized_value"`
}

// CategoryResult holds the per-country index of one category. Countries
// without data for the category are absent from Values.
type CategoryResult struct {
	CategoryID CategoryID            `json:"category_id"`
	Weight     float64               `json:"weight"`
	Values     map[CountryID]float64 `json:"values_by_country"`
}

// GlobalResult is the weighted global index of one country.
type GlobalResult struct {
	CountryID CountryID `json:"country_id"`
	Index     float64   `json:"index"`
}

// Inputs bundles everything a full computation needs. Countries may be nil,
// in which case the set is derived from Values.
type Inputs struct {
	CategoryWeights      []CategoryWeight
	IndicatorsByCategory map[CategoryID][]IndicatorID
	IndicatorWeights     map[IndicatorID]float64
	Values               []IndicatorValue
	Countries            []CountryID
}

// Result is the output of Compute.
type Result struct {
	Categories []CategoryResult `json:"categories"`
	Global     []GlobalResult   `json:"global"`
}

// Compute runs ComputeCategoryIndices followed by ComputeGlobalIndices.
func Compute(in Inputs) Result {
	countries := in.Countries
	if countries == nil {
		countries = CountryIDs(in.Values)
	}
	categories := ComputeCategoryIndices(in.CategoryWeights, in.IndicatorsByCategory, in.IndicatorWeights, in.Values, countries)
	return Result{
		Categories: categories,
		Global:     ComputeGlobalIndices(categories, countries),
	}
}

// CountryIDs returns the distinct countries present in values, in order of
// first appearance.
func CountryIDs(values []IndicatorValue) []CountryID {
	seen := make(map[CountryID]bool)
	ids := []CountryID{}
	for _, v := range values {
		if seen[v.CountryID] {
			continue
		}
		seen[v.CountryID] = true
		ids = append(ids, v.CountryID)
	}
	return ids
}

// EffectiveWeights returns the weight each indicator of a category carries in
// the category average. Configured weights are re-normalized to sum to 1 and
// unconfigured indicators get 0; when nothing is configured every indicator
// gets 1/n.
func EffectiveWeights(indicators []IndicatorID, configured map[IndicatorID]float64) map[IndicatorID]float64 {
	effective := make(map[IndicatorID]float64, len(indicators))
	if len(indicators) == 0 {
		return effective
	}

	var sumConfigured float64
	for _, id := range indicators {
		if w, ok := configured[id]; ok {
			sumConfigured += w
		}
	}

	if sumConfigured > 0 {
		for _, id := range indicators {
			if w, ok := configured[id]; ok {
				effective[id] = w / sumConfigured
			} else {
				effective[id] = 0
			}
		}
		return effective
	}

	equal := 1 / float64(len(indicators))
	for _, id := range indicators {
		effective[id] = equal
	}
	return effective
}

// ComputeCategoryIndices computes the weighted index of every category for
// every country. Categories without indicators are dropped. Missing values
// are excluded from both the numerator and the denominator; a country with
// no usable value gets no entry for that category.
func ComputeCategoryIndices(
	categoryWeights []CategoryWeight,
	indicatorsByCategory map[CategoryID][]IndicatorID,
	indicatorWeights map[IndicatorID]float64,
	values []IndicatorValue,
	countries []CountryID,
) []CategoryResult {
	lookup := indexValues(values)
	results := []CategoryResult{}

	for _, cw := range categoryWeights {
		indicators := indicatorsByCategory[cw.CategoryID]
		if len(indicators) == 0 {
			continue
		}

		effective := EffectiveWeights(indicators, indicatorWeights)
		byCountry := make(map[CountryID]float64)

		for _, country := range countries {
			var sum, wSum float64
			for _, ind := range indicators {
				v, ok := lookup.get(ind, country)
				if !ok {
					continue
				}
				w := effective[ind]
				sum += v * w
				wSum += w
			}
			if wSum > 0 {
				byCountry[country] = sum / wSum
			}
		}

		results = append(results, CategoryResult{
			CategoryID: cw.CategoryID,
			Weight:     cw.Weight,
			Values:     byCountry,
		})
	}
	return results
}

// ComputeGlobalIndices combines category results into one index per country,
// sorted descending. Category weights are used as given: only categories
// with a value for the country enter its denominator. Ties keep the order
// of countries.
func ComputeGlobalIndices(categoryResults []CategoryResult, countries []CountryID) []GlobalResult {
	out := []GlobalResult{}
	for _, country := range countries {
		var sum, wSum float64
		for _, cr := range categoryResults {
			v, ok := cr.Values[country]
			if !ok {
				continue
			}
			sum += v * cr.Weight
			wSum += cr.Weight
		}
		if wSum > 0 {
			out = append(out, GlobalResult{CountryID: country, Index: sum / wSum})
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Index > out[j].Index
	})
	return out
}

// valueIndex maps indicator -> country -> normalized value. A pair whose
// first row is missing stays missing even if a later row has data.
type valueIndex map[IndicatorID]map[CountryID]*float64

func indexValues(values []IndicatorValue) valueIndex {
	idx := make(valueIndex)
	for _, v := range values {
		byCountry, ok := idx[v.IndicatorID]
		if !ok {
			byCountry = make(map[CountryID]*float64)
			idx[v.IndicatorID] = byCountry
		}
		if _, dup := byCountry[v.CountryID]; dup {
			continue
		}
		byCountry[v.CountryID] = v.Normalized
	}
	return idx
}

func (idx valueIndex) get(ind IndicatorID, country CountryID) (float64, bool) {
	p, ok := idx[ind][country]
	if !ok || p == nil {
		return 0, false
	}
	return *p, true
}
