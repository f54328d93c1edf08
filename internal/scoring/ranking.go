package scoring

import (
	"fmt"
	"sort"
	"strings"
)

// Order is a ranking direction.
type Order string

const (
	OrderDesc Order = "desc"
	OrderAsc  Order = "asc"
)

// ParseOrder accepts "asc" or "desc" in any case; empty means desc.
func ParseOrder(s string) (Order, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "desc":
		return OrderDesc, nil
	case "asc":
		return OrderAsc, nil
	default:
		return "", fmt.Errorf("invalid order %q", s)
	}
}

// RankEntry is one row of a ranking.
type RankEntry struct {
	Position  int       `json:"position"`
	CountryID CountryID `json:"country_id"`
	Index     float64   `json:"index"`
}

// Rank orders global results and truncates to limit (limit <= 0 keeps all).
// Equal indices keep their incoming order in both directions.
func Rank(global []GlobalResult, order Order, limit int) []RankEntry {
	rows := make([]RankEntry, 0, len(global))
	for _, g := range global {
		rows = append(rows, RankEntry{CountryID: g.CountryID, Index: g.Index})
	}
	return finishRanking(rows, order, limit)
}

// RankCategory ranks the countries of one category result, visiting them in
// the given country order so ties are deterministic.
func RankCategory(cr CategoryResult, countries []CountryID, order Order, limit int) []RankEntry {
	rows := []RankEntry{}
	for _, c := range countries {
		if v, ok := cr.Values[c]; ok {
			rows = append(rows, RankEntry{CountryID: c, Index: v})
		}
	}
	return finishRanking(rows, order, limit)
}

func finishRanking(rows []RankEntry, order Order, limit int) []RankEntry {
	sort.SliceStable(rows, func(i, j int) bool {
		if order == OrderAsc {
			return rows[i].Index < rows[j].Index
		}
		return rows[i].Index > rows[j].Index
	})
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	for i := range rows {
		rows[i].Position = i + 1
	}
	return rows
}
