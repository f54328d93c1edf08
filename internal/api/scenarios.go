package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/MikeSquared-Agency/RiskIndex/internal/hermes"
	"github.com/MikeSquared-Agency/RiskIndex/internal/store"
)

type ScenariosHandler struct {
	store  store.Store
	hermes hermes.Client
	logger *slog.Logger
}

func NewScenariosHandler(s store.Store, h hermes.Client, logger *slog.Logger) *ScenariosHandler {
	return &ScenariosHandler{store: s, hermes: h, logger: logger}
}

// List searches scenarios by name.
// GET /api/v1/scenarios?q=&only_active=&limit=&offset=
func (h *ScenariosHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := store.ScenarioFilter{Query: r.URL.Query().Get("q")}
	if s := r.URL.Query().Get("only_active"); s != "" {
		v, err := strconv.ParseBool(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid only_active")
			return
		}
		filter.OnlyActive = &v
	}
	var err error
	if filter.Limit, err = queryInt(r, "limit", 100, 1, 500); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if filter.Offset, err = queryInt(r, "offset", 0, 0, 1<<31-1); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	scenarios, err := h.store.ListScenarios(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if scenarios == nil {
		scenarios = []*store.Scenario{}
	}
	writeJSON(w, http.StatusOK, scenarios)
}

func (h *ScenariosHandler) Active(w http.ResponseWriter, r *http.Request) {
	sc, err := h.store.GetActiveScenario(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if sc == nil {
		writeError(w, http.StatusNotFound, "no active scenario")
		return
	}
	writeJSON(w, http.StatusOK, sc)
}

func (h *ScenariosHandler) Get(w http.ResponseWriter, r *http.Request) {
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
	writeJSON(w, http.StatusOK, sc)
}

// Activate makes the scenario the only active one.
// POST /api/v1/scenarios/{id}/activate
func (h *ScenariosHandler) Activate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.store.ActivateScenario(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "scenario not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	sc, err := h.store.GetScenario(r.Context(), id)
	if err != nil || sc == nil {
		writeError(w, http.StatusInternalServerError, "scenario vanished after activation")
		return
	}

	publish(h.hermes, h.logger, hermes.SubjectScenarioActivated(id), hermes.ScenarioActivatedEvent{
		ScenarioID: id,
		Name:       sc.Name,
		Timestamp:  time.Now(),
	})
	writeJSON(w, http.StatusOK, sc)
}

// RemoveCategory drops a category and its indicator weights from the
// scenario. The remaining category weights are left as they are.
// DELETE /api/v1/scenarios/{id}/categories/{category_id}
func (h *ScenariosHandler) RemoveCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	categoryID, err := pathID(r, "category_id")
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

	if err := h.store.RemoveCategoryFromScenario(r.Context(), id, categoryID); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	publish(h.hermes, h.logger, hermes.SubjectCategoryRemoved(id), hermes.CategoryRemovedEvent{
		ScenarioID: id,
		CategoryID: categoryID,
		Timestamp:  time.Now(),
	})
	w.WriteHeader(http.StatusNoContent)
}

// publish sends an event when Hermes is configured. Failures are logged and
// never fail the request.
func publish(h hermes.Client, logger *slog.Logger, subject string, ev interface{}) {
	if h == nil {
		return
	}
	if err := h.Publish(subject, ev); err != nil {
		logger.Warn("failed to publish event", "subject", subject, "error", err)
	}
}
