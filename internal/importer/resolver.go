package importer

import (
	"errors"
	"sort"
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/MikeSquared-Agency/RiskIndex/internal/store"
)

var (
	ErrUnknownName   = errors.New("name not found")
	ErrAmbiguousName = errors.New("name matches more than one entry")
)

// Fold reduces a label to its comparison form: accents stripped, case folded,
// surrounding space trimmed and inner runs of space collapsed.
func Fold(s string) string {
	// Transformers and casers carry state, so build them per call.
	strip := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(strip, s)
	if err != nil {
		out = s
	}
	out = cases.Fold().String(out)
	return strings.Join(strings.Fields(out), " ")
}

// index maps folded labels to ids. Labels shared by different ids are
// ambiguous and never resolve.
type index struct {
	ids       map[string]int64
	ambiguous map[string]bool
	// suggestable folded label -> display label
	names map[string]string
}

func newIndex() *index {
	return &index{
		ids:       make(map[string]int64),
		ambiguous: make(map[string]bool),
		names:     make(map[string]string),
	}
}

func (ix *index) add(label string, id int64, suggest bool) {
	key := Fold(label)
	if key == "" {
		return
	}
	if prev, ok := ix.ids[key]; ok && prev != id {
		ix.ambiguous[key] = true
	} else {
		ix.ids[key] = id
	}
	if suggest {
		if _, ok := ix.names[key]; !ok {
			ix.names[key] = strings.TrimSpace(label)
		}
	}
}

// Resolver matches matrix labels against the country and indicator catalog.
type Resolver struct {
	countries  *index
	indicators *index
	opts       Options
}

// NewResolver indexes countries by ISO2, ISO3 and both names, and indicators
// by name.
func NewResolver(countries []*store.Country, indicators []*store.Indicator, opts Options) *Resolver {
	r := &Resolver{countries: newIndex(), indicators: newIndex(), opts: opts.withDefaults()}
	for _, c := range countries {
		r.countries.add(c.ISO2, c.ID, false)
		r.countries.add(c.ISO3, c.ID, false)
		r.countries.add(c.NameES, c.ID, true)
		r.countries.add(c.NameEN, c.ID, true)
	}
	for _, ind := range indicators {
		r.indicators.add(ind.Name, ind.ID, true)
	}
	return r
}

// Country resolves a country label. On ErrUnknownName the returned slice
// holds close catalog names.
func (r *Resolver) Country(label string) (int64, []string, error) {
	return r.resolve(r.countries, label)
}

// Indicator resolves an indicator label the same way as Country.
func (r *Resolver) Indicator(label string) (int64, []string, error) {
	return r.resolve(r.indicators, label)
}

func (r *Resolver) resolve(ix *index, label string) (int64, []string, error) {
	key := Fold(label)
	if ix.ambiguous[key] {
		return 0, nil, ErrAmbiguousName
	}
	if id, ok := ix.ids[key]; ok {
		return id, nil, nil
	}
	return 0, r.suggest(ix, key), ErrUnknownName
}

// suggest returns up to MaxSuggestions display names within MaxDistance
// edits of key, closest first.
func (r *Resolver) suggest(ix *index, key string) []string {
	type candidate struct {
		name string
		dist int
	}
	var found []candidate
	for folded, display := range ix.names {
		d := levenshtein.ComputeDistance(key, folded)
		if d <= r.opts.MaxDistance {
			found = append(found, candidate{name: display, dist: d})
		}
	}
	sort.Slice(found, func(i, j int) bool {
		if found[i].dist != found[j].dist {
			return found[i].dist < found[j].dist
		}
		return found[i].name < found[j].name
	})
	if len(found) > r.opts.MaxSuggestions {
		found = found[:r.opts.MaxSuggestions]
	}
	out := make([]string, 0, len(found))
	for _, c := range found {
		out = append(out, c.name)
	}
	return out
}
