package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/MikeSquared-Agency/RiskIndex/internal/hermes"
	"github.com/MikeSquared-Agency/RiskIndex/internal/scoring"
	"github.com/MikeSquared-Agency/RiskIndex/internal/store"
)

type WeightsHandler struct {
	store  store.Store
	hermes hermes.Client
	logger *slog.Logger
}

func NewWeightsHandler(s store.Store, h hermes.Client, logger *slog.Logger) *WeightsHandler {
	return &WeightsHandler{store: s, hermes: h, logger: logger}
}

type CategoryWeightItem struct {
	CategoryID int64   `json:"category_id"`
	Weight     float64 `json:"weight"`
	Percent    int     `json:"percent"`
}

type CategoryWeightsResponse struct {
	ScenarioID int64                `json:"scenario_id"`
	Sum        float64              `json:"sum"`
	SumPercent int                  `json:"sum_percent"`
	Items      []CategoryWeightItem `json:"items"`
}

type IndicatorWeightItem struct {
	IndicatorID int64   `json:"indicator_id"`
	CategoryID  int64   `json:"category_id"`
	Weight      float64 `json:"weight"`
	Percent     int     `json:"percent"`
}

type IndicatorWeightsResponse struct {
	ScenarioID int64                 `json:"scenario_id"`
	CategoryID *int64                `json:"category_id,omitempty"`
	Sum        float64               `json:"sum"`
	SumPercent int                   `json:"sum_percent"`
	Items      []IndicatorWeightItem `json:"items"`
}

// WeightInput carries either a fraction or a percentage.
type WeightInput struct {
	Weight  *float64 `json:"weight" validate:"omitempty,gte=0,lte=1"`
	Percent *float64 `json:"percent" validate:"omitempty,gte=0,lte=100"`
}

func (in WeightInput) fraction() (float64, error) {
	switch {
	case in.Weight != nil && in.Percent != nil:
		return 0, errors.New("give either weight or percent, not both")
	case in.Weight != nil:
		return *in.Weight, nil
	case in.Percent != nil:
		return scoring.PercentToFraction(*in.Percent), nil
	default:
		return 0, errors.New("weight or percent required")
	}
}

type PutCategoryWeightsRequest struct {
	Items []struct {
		CategoryID int64 `json:"category_id" validate:"required,gt=0"`
		WeightInput
	} `json:"items" validate:"required,min=1,dive"`
}

type PutIndicatorWeightsRequest struct {
	Items []struct {
		IndicatorID int64 `json:"indicator_id" validate:"required,gt=0"`
		WeightInput
	} `json:"items" validate:"dive"`
}

// scenario writes a 400/404/500 and returns nil when the path scenario
// cannot be used.
func (h *WeightsHandler) scenario(w http.ResponseWriter, r *http.Request) *store.Scenario {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil
	}
	sc, err := h.store.GetScenario(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return nil
	}
	if sc == nil {
		writeError(w, http.StatusNotFound, "scenario not found")
		return nil
	}
	return sc
}

// GET /api/v1/scenarios/{id}/weights/categories
func (h *WeightsHandler) GetCategories(w http.ResponseWriter, r *http.Request) {
	sc := h.scenario(w, r)
	if sc == nil {
		return
	}
	resp, err := h.categoryWeights(r, sc.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *WeightsHandler) categoryWeights(r *http.Request, scenarioID int64) (*CategoryWeightsResponse, error) {
	rows, err := h.store.GetCategoryWeights(r.Context(), scenarioID)
	if err != nil {
		return nil, err
	}
	resp := &CategoryWeightsResponse{ScenarioID: scenarioID, Items: make([]CategoryWeightItem, 0, len(rows))}
	for _, cw := range rows {
		resp.Sum += cw.Weight
		resp.Items = append(resp.Items, CategoryWeightItem{
			CategoryID: cw.CategoryID,
			Weight:     cw.Weight,
			Percent:    scoring.FractionToPercent(cw.Weight),
		})
	}
	resp.SumPercent = scoring.FractionToPercent(resp.Sum)
	return resp, nil
}

// PutCategories replaces every category weight of the scenario.
// PUT /api/v1/scenarios/{id}/weights/categories
func (h *WeightsHandler) PutCategories(w http.ResponseWriter, r *http.Request) {
	sc := h.scenario(w, r)
	if sc == nil {
		return
	}
	var req PutCategoryWeightsRequest
	if !decodeValid(w, r, &req) {
		return
	}

	categories, err := h.store.ListCategories(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	known := make(map[int64]bool, len(categories))
	for _, c := range categories {
		known[c.ID] = true
	}

	items := make([]scoring.CategoryWeight, 0, len(req.Items))
	rows := make([]store.CategoryWeight, 0, len(req.Items))
	for _, it := range req.Items {
		if !known[it.CategoryID] {
			writeError(w, http.StatusUnprocessableEntity, fmt.Sprintf("unknown category %d", it.CategoryID))
			return
		}
		f, err := it.fraction()
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, fmt.Sprintf("category %d: %s", it.CategoryID, err))
			return
		}
		items = append(items, scoring.CategoryWeight{CategoryID: scoring.CategoryID(it.CategoryID), Weight: f})
		rows = append(rows, store.CategoryWeight{ScenarioID: sc.ID, CategoryID: it.CategoryID, Weight: f})
	}
	if err := scoring.ValidateCategoryWeights(items); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	if err := h.store.ReplaceCategoryWeights(r.Context(), sc.ID, rows); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	ev := hermes.CategoryWeightsUpdatedEvent{ScenarioID: sc.ID, Weights: make(map[int64]float64, len(rows)), Timestamp: time.Now()}
	for _, row := range rows {
		ev.Weights[row.CategoryID] = row.Weight
	}
	publish(h.hermes, h.logger, hermes.SubjectCategoryWeightsUpdated(sc.ID), ev)

	resp, err := h.categoryWeights(r, sc.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// GET /api/v1/scenarios/{id}/weights/indicators?category_id=
func (h *WeightsHandler) GetIndicators(w http.ResponseWriter, r *http.Request) {
	sc := h.scenario(w, r)
	if sc == nil {
		return
	}
	categoryID, err := queryID(r, "category_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	resp, err := h.indicatorWeights(r, sc.ID, categoryID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *WeightsHandler) indicatorWeights(r *http.Request, scenarioID int64, categoryID *int64) (*IndicatorWeightsResponse, error) {
	indicators, err := h.store.ListIndicators(r.Context(), store.IndicatorFilter{CategoryID: categoryID})
	if err != nil {
		return nil, err
	}
	categoryOf := make(map[int64]int64, len(indicators))
	for _, ind := range indicators {
		categoryOf[ind.ID] = ind.CategoryID
	}
	rows, err := h.store.GetIndicatorWeights(r.Context(), scenarioID)
	if err != nil {
		return nil, err
	}

	resp := &IndicatorWeightsResponse{ScenarioID: scenarioID, CategoryID: categoryID, Items: []IndicatorWeightItem{}}
	for _, iw := range rows {
		cat, ok := categoryOf[iw.IndicatorID]
		if !ok {
			continue
		}
		resp.Sum += iw.Weight
		resp.Items = append(resp.Items, IndicatorWeightItem{
			IndicatorID: iw.IndicatorID,
			CategoryID:  cat,
			Weight:      iw.Weight,
			Percent:     scoring.FractionToPercent(iw.Weight),
		})
	}
	resp.SumPercent = scoring.FractionToPercent(resp.Sum)
	return resp, nil
}

// PutIndicators replaces the indicator weights of one category. A category
// without indicators accepts an empty set.
// PUT /api/v1/scenarios/{id}/weights/categories/{category_id}/indicators
func (h *WeightsHandler) PutIndicators(w http.ResponseWriter, r *http.Request) {
	sc := h.scenario(w, r)
	if sc == nil {
		return
	}
	categoryID, err := pathID(r, "category_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	cat, err := h.store.GetCategory(r.Context(), categoryID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if cat == nil {
		writeError(w, http.StatusNotFound, "category not found")
		return
	}
	var req PutIndicatorWeightsRequest
	if !decodeValid(w, r, &req) {
		return
	}

	indicators, err := h.store.ListIndicators(r.Context(), store.IndicatorFilter{CategoryID: &categoryID})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	inCategory := make(map[int64]bool, len(indicators))
	for _, ind := range indicators {
		inCategory[ind.ID] = true
	}

	items := make([]scoring.IndicatorWeight, 0, len(req.Items))
	rows := make([]store.IndicatorWeight, 0, len(req.Items))
	for _, it := range req.Items {
		if !inCategory[it.IndicatorID] {
			writeError(w, http.StatusUnprocessableEntity, fmt.Sprintf("indicator %d does not belong to category %d", it.IndicatorID, categoryID))
			return
		}
		f, err := it.fraction()
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, fmt.Sprintf("indicator %d: %s", it.IndicatorID, err))
			return
		}
		items = append(items, scoring.IndicatorWeight{IndicatorID: scoring.IndicatorID(it.IndicatorID), Weight: f})
		rows = append(rows, store.IndicatorWeight{ScenarioID: sc.ID, IndicatorID: it.IndicatorID, Weight: f})
	}
	if err := scoring.ValidateIndicatorWeights(len(indicators), items); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	if err := h.store.ReplaceIndicatorWeights(r.Context(), sc.ID, categoryID, rows); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	ev := hermes.IndicatorWeightsUpdatedEvent{
		ScenarioID: sc.ID,
		CategoryID: categoryID,
		Weights:    make(map[int64]float64, len(rows)),
		Timestamp:  time.Now(),
	}
	for _, row := range rows {
		ev.Weights[row.IndicatorID] = row.Weight
	}
	publish(h.hermes, h.logger, hermes.SubjectIndicatorWeightsUpdated(sc.ID), ev)

	resp, err := h.indicatorWeights(r, sc.ID, &categoryID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
