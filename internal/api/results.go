package api

import (
	"errors"
	"net/http"

	"github.com/MikeSquared-Agency/RiskIndex/internal/results"
	"github.com/MikeSquared-Agency/RiskIndex/internal/scoring"
)

const (
	defaultRankingLimit = 10
	maxRankingLimit     = 200
)

type ResultsHandler struct {
	computer results.Computer
}

func NewResultsHandler(c results.Computer) *ResultsHandler {
	return &ResultsHandler{computer: c}
}

type RankingResponse struct {
	ScenarioID int64                  `json:"scenario_id"`
	CategoryID *int64                 `json:"category_id,omitempty"`
	Order      scoring.Order          `json:"order"`
	Items      []results.CountryIndex `json:"items"`
}

// compute runs the engine for the query's scenario. It writes the error
// response itself and returns nil on failure.
func (h *ResultsHandler) compute(w http.ResponseWriter, r *http.Request, q results.Query) *results.Snapshot {
	snap, err := h.computer.Compute(r.Context(), q)
	switch {
	case errors.Is(err, results.ErrNoActiveScenario), errors.Is(err, results.ErrScenarioNotFound):
		writeError(w, http.StatusNotFound, err.Error())
		return nil
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
		return nil
	}
	return snap
}

func scenarioQuery(r *http.Request) (results.Query, error) {
	id, err := queryID(r, "scenario_id")
	if err != nil {
		return results.Query{}, err
	}
	return results.Query{ScenarioID: id}, nil
}

func rankingParams(r *http.Request) (scoring.Order, int, error) {
	order, err := scoring.ParseOrder(r.URL.Query().Get("order"))
	if err != nil {
		return "", 0, err
	}
	limit, err := queryInt(r, "limit", defaultRankingLimit, 1, maxRankingLimit)
	if err != nil {
		return "", 0, err
	}
	return order, limit, nil
}

// Results returns category and global indices. country_id and category_id
// narrow what is shown without changing any index.
// GET /api/v1/results?scenario_id=&country_id=&category_id=
func (h *ResultsHandler) Results(w http.ResponseWriter, r *http.Request) {
	q, err := scenarioQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if q.CountryIDs, err = queryIDs(r, "country_id"); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if q.CategoryIDs, err = queryIDs(r, "category_id"); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	snap := h.compute(w, r, q)
	if snap == nil {
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// GET /api/v1/results/ranking/global?scenario_id=&limit=&order=
func (h *ResultsHandler) GlobalRanking(w http.ResponseWriter, r *http.Request) {
	q, err := scenarioQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	order, limit, err := rankingParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	snap := h.compute(w, r, q)
	if snap == nil {
		return
	}
	writeJSON(w, http.StatusOK, RankingResponse{
		ScenarioID: snap.Scenario.ID,
		Order:      order,
		Items:      snap.Ranking(order, limit),
	})
}

// GET /api/v1/results/ranking/category?category_id=&scenario_id=&limit=&order=
func (h *ResultsHandler) CategoryRanking(w http.ResponseWriter, r *http.Request) {
	q, err := scenarioQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	categoryID, err := queryID(r, "category_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if categoryID == nil {
		writeError(w, http.StatusBadRequest, "category_id required")
		return
	}
	order, limit, err := rankingParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	snap := h.compute(w, r, q)
	if snap == nil {
		return
	}
	items, err := snap.CategoryRanking(*categoryID, order, limit)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, RankingResponse{
		ScenarioID: snap.Scenario.ID,
		CategoryID: categoryID,
		Order:      order,
		Items:      items,
	})
}

// Explain breaks a country's indices down to weighted indicator scores.
// GET /api/v1/results/explain/{country_id}?scenario_id=
func (h *ResultsHandler) Explain(w http.ResponseWriter, r *http.Request) {
	countryID, err := pathID(r, "country_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	q, err := scenarioQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	snap := h.compute(w, r, q)
	if snap == nil {
		return
	}
	exp, err := snap.Explain(countryID)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, exp)
}
