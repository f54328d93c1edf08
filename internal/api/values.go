package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/MikeSquared-Agency/RiskIndex/internal/hermes"
	"github.com/MikeSquared-Agency/RiskIndex/internal/importer"
	"github.com/MikeSquared-Agency/RiskIndex/internal/store"
	"github.com/MikeSquared-Agency/RiskIndex/internal/values"
)

// maxImportBytes caps the size of an uploaded matrix.
const maxImportBytes = 10 << 20

type ValuesHandler struct {
	store    store.Store
	writer   *values.Writer
	importer *importer.Importer
	hermes   hermes.Client
	logger   *slog.Logger
}

func NewValuesHandler(s store.Store, h hermes.Client, opts importer.Options, logger *slog.Logger) *ValuesHandler {
	w := values.NewWriter(s)
	return &ValuesHandler{
		store:    s,
		writer:   w,
		importer: importer.New(w, opts, logger),
		hermes:   h,
		logger:   logger,
	}
}

type ValuesPage struct {
	Page       int                     `json:"page"`
	Limit      int                     `json:"limit"`
	Total      int                     `json:"total"`
	TotalPages int                     `json:"total_pages"`
	Items      []*store.IndicatorValue `json:"items"`
}

// List pages through stored values.
// GET /api/v1/indicator-values?scenario_id=&country_id=&indicator_id=&page=&limit=
func (h *ValuesHandler) List(w http.ResponseWriter, r *http.Request) {
	filter, err := valueFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	page, err := queryInt(r, "page", 1, 1, 1<<31-1)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	limit, err := queryInt(r, "limit", 20, 1, 200)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	total, err := h.store.CountIndicatorValues(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	filter.Limit = limit
	filter.Offset = (page - 1) * limit
	items, err := h.store.ListIndicatorValues(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if items == nil {
		items = []*store.IndicatorValue{}
	}
	writeJSON(w, http.StatusOK, ValuesPage{
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: (total + limit - 1) / limit,
		Items:      items,
	})
}

func valueFilter(r *http.Request) (store.ValueFilter, error) {
	var f store.ValueFilter
	var err error
	if f.ScenarioID, err = queryID(r, "scenario_id"); err != nil {
		return f, err
	}
	if f.CountryID, err = queryID(r, "country_id"); err != nil {
		return f, err
	}
	f.IndicatorID, err = queryID(r, "indicator_id")
	return f, err
}

type UpsertValueRequest struct {
	ScenarioID  int64    `json:"scenario_id" validate:"required,gt=0"`
	CountryID   int64    `json:"country_id" validate:"required,gt=0"`
	IndicatorID int64    `json:"indicator_id" validate:"required,gt=0"`
	RawValue    *float64 `json:"raw_value"`
}

// Upsert stores one raw value and its normalized score. A null raw value
// clears the observation.
// POST /api/v1/indicator-values
func (h *ValuesHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	var req UpsertValueRequest
	if !decodeValid(w, r, &req) {
		return
	}
	sc, err := h.store.GetScenario(r.Context(), req.ScenarioID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if sc == nil {
		writeError(w, http.StatusNotFound, "scenario not found")
		return
	}

	v := &store.IndicatorValue{
		ScenarioID:  req.ScenarioID,
		CountryID:   req.CountryID,
		IndicatorID: req.IndicatorID,
		RawValue:    req.RawValue,
	}
	if err := h.writer.Upsert(r.Context(), v); err != nil {
		switch {
		case errors.Is(err, values.ErrIndicatorNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		case values.IsValidation(err):
			writeError(w, http.StatusUnprocessableEntity, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	h.valuesUpdated(v.ScenarioID, 1, "manual")
	writeJSON(w, http.StatusCreated, v)
}

// DELETE /api/v1/indicator-values/{id}
func (h *ValuesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	v, err := h.store.GetIndicatorValue(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if v == nil {
		writeError(w, http.StatusNotFound, "value not found")
		return
	}
	if err := h.store.DeleteIndicatorValue(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "value not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.valuesUpdated(v.ScenarioID, 1, "delete")
	w.WriteHeader(http.StatusNoContent)
}

// Import loads a CSV country by indicator matrix into the scenario.
// POST /api/v1/scenarios/{id}/indicator-values/import
func (h *ValuesHandler) Import(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	sc, err := h.store.GetScenario(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if sc == nil {
		writeError(w, http.StatusNotFound, "scenario not found")
		return
	}

	countries, err := h.store.ListCountries(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	indicators, err := h.store.ListIndicators(r.Context(), store.IndicatorFilter{})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	body := http.MaxBytesReader(w, r.Body, maxImportBytes)
	report, err := h.importer.Import(r.Context(), id, body, importer.Catalog{Countries: countries, Indicators: indicators})
	switch {
	case errors.Is(err, importer.ErrNothingMatched):
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"error": err.Error(), "report": report})
		return
	case errors.As(err, new(*http.MaxBytesError)):
		writeError(w, http.StatusRequestEntityTooLarge, "matrix too large")
		return
	case errors.Is(err, importer.ErrMalformed), errors.Is(err, importer.ErrNoHeaders),
		errors.Is(err, importer.ErrNoLabels), errors.Is(err, importer.ErrEmptyMatrix):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if report.Processed > 0 {
		h.valuesUpdated(id, report.Processed, "import")
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *ValuesHandler) valuesUpdated(scenarioID int64, count int, source string) {
	publish(h.hermes, h.logger, hermes.SubjectValuesUpdated(scenarioID), hermes.ValuesUpdatedEvent{
		ScenarioID: scenarioID,
		Count:      count,
		Source:     source,
		Timestamp:  time.Now(),
	})
}
