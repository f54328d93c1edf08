package api

import (
	"net/http"

	"github.com/MikeSquared-Agency/RiskIndex/internal/store"
)

// CatalogHandler serves the read-only reference data.
type CatalogHandler struct {
	store store.Store
}

func NewCatalogHandler(s store.Store) *CatalogHandler {
	return &CatalogHandler{store: s}
}

func (h *CatalogHandler) Countries(w http.ResponseWriter, r *http.Request) {
	countries, err := h.store.ListCountries(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if countries == nil {
		countries = []*store.Country{}
	}
	writeJSON(w, http.StatusOK, countries)
}

func (h *CatalogHandler) Categories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.store.ListCategories(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if categories == nil {
		categories = []*store.Category{}
	}
	writeJSON(w, http.StatusOK, categories)
}

// Indicators lists indicators, optionally for one category.
// GET /api/v1/indicators?category_id=
func (h *CatalogHandler) Indicators(w http.ResponseWriter, r *http.Request) {
	categoryID, err := queryID(r, "category_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	indicators, err := h.store.ListIndicators(r.Context(), store.IndicatorFilter{CategoryID: categoryID})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if indicators == nil {
		indicators = []*store.Indicator{}
	}
	writeJSON(w, http.StatusOK, indicators)
}
