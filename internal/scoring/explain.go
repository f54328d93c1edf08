package scoring

// Contribution captures one input's share of an index.
type Contribution struct {
	IndicatorID IndicatorID `json:"indicator_id,omitempty"`
	CategoryID  CategoryID  `json:"category_id,omitempty"`
	Score       float64     `json:"score"`
	Weight      float64     `json:"weight"`
	Weighted    float64     `json:"weighted"`
	Available   bool        `json:"available"`
	Reason      string      `json:"reason,omitempty"`
}

// CategoryExplanation breaks a category index down by indicator. Index is
// nil when the country has no usable value in the category.
type CategoryExplanation struct {
	CategoryID CategoryID     `json:"category_id"`
	Weight     float64        `json:"weight"`
	Index      *float64       `json:"index"`
	Indicators []Contribution `json:"indicators"`
}

// Explanation is the full breakdown of one country's global index.
type Explanation struct {
	CountryID  CountryID             `json:"country_id"`
	Index      *float64              `json:"index"`
	Categories []CategoryExplanation `json:"categories"`
	Global     []Contribution        `json:"global"`
}

// Explain recomputes one country's indices and reports how every indicator
// and category contributed. It agrees with Compute for the same inputs.
func Explain(in Inputs, country CountryID) Explanation {
	lookup := indexValues(in.Values)
	exp := Explanation{CountryID: country, Categories: []CategoryExplanation{}, Global: []Contribution{}}

	var gSum, gW float64
	for _, cw := range in.CategoryWeights {
		indicators := in.IndicatorsByCategory[cw.CategoryID]
		if len(indicators) == 0 {
			continue
		}
		effective := EffectiveWeights(indicators, in.IndicatorWeights)

		ce := CategoryExplanation{CategoryID: cw.CategoryID, Weight: cw.Weight, Indicators: []Contribution{}}
		var sum, wSum float64
		for _, ind := range indicators {
			c := Contribution{IndicatorID: ind, Weight: effective[ind]}
			v, ok := lookup.get(ind, country)
			switch {
			case !ok:
				c.Reason = "missing value"
			case effective[ind] == 0:
				c.Score = v
				c.Available = true
				c.Reason = "zero weight"
			default:
				c.Score = v
				c.Available = true
				c.Weighted = v * effective[ind]
			}
			if ok {
				sum += v * effective[ind]
				wSum += effective[ind]
			}
			ce.Indicators = append(ce.Indicators, c)
		}
		if wSum > 0 {
			idx := sum / wSum
			ce.Index = &idx
		}
		exp.Categories = append(exp.Categories, ce)

		g := Contribution{CategoryID: cw.CategoryID, Weight: cw.Weight}
		if ce.Index != nil {
			g.Score = *ce.Index
			g.Weighted = *ce.Index * cw.Weight
			g.Available = true
			gSum += g.Weighted
			gW += cw.Weight
		} else {
			g.Reason = "no data"
		}
		exp.Global = append(exp.Global, g)
	}

	if gW > 0 {
		idx := gSum / gW
		exp.Index = &idx
	}
	return exp
}
