package api

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/MikeSquared-Agency/RiskIndex/internal/importer"
	"github.com/MikeSquared-Agency/RiskIndex/internal/results"
	"github.com/MikeSquared-Agency/RiskIndex/internal/store"
)

type mockHermes struct {
	mu       sync.Mutex
	subjects []string
}

func (m *mockHermes) Publish(subject string, _ interface{}) error {
	m.mu.Lock()
	m.subjects = append(m.subjects, subject)
	m.mu.Unlock()
	return nil
}
func (m *mockHermes) Subscribe(_ string, _ func(string, []byte)) error { return nil }
func (m *mockHermes) Close()                                           {}

func (m *mockHermes) published() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.subjects...)
}

func setupTestRouter() (http.Handler, *mockStore, *mockHermes) {
	ms := newMockStore()
	mh := &mockHermes{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := results.NewService(ms, 3, logger)
	cfg := RouterConfig{AdminToken: "test-token", Import: importer.Options{MaxSuggestions: 3, MaxDistance: 3}}
	return NewRouter(ms, mh, svc, cfg, logger), ms, mh
}

func do(router http.Handler, method, path, body string, admin bool) *httptest.ResponseRecorder {
	var rdr io.Reader
	if body != "" {
		rdr = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, rdr)
	if admin {
		req.Header.Set("Authorization", "Bearer test-token")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestListCountries(t *testing.T) {
	router, _, _ := setupTestRouter()

	w := do(router, "GET", "/api/v1/countries", "", false)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var countries []store.Country
	json.NewDecoder(w.Body).Decode(&countries)
	if len(countries) != 2 {
		t.Errorf("expected 2 countries, got %d", len(countries))
	}
}

func TestListIndicatorsByCategory(t *testing.T) {
	router, _, _ := setupTestRouter()

	w := do(router, "GET", "/api/v1/indicators?category_id=2", "", false)
	var inds []store.Indicator
	json.NewDecoder(w.Body).Decode(&inds)
	if len(inds) != 2 || inds[0].ID != 3 {
		t.Errorf("expected indicators 3 and 4, got %+v", inds)
	}

	w = do(router, "GET", "/api/v1/indicators?category_id=abc", "", false)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestActivateScenario(t *testing.T) {
	router, ms, mh := setupTestRouter()

	w := do(router, "POST", "/api/v1/scenarios/2/activate", "", false)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}

	w = do(router, "POST", "/api/v1/scenarios/2/activate", "", true)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if ms.scenarios[0].Active || !ms.scenarios[1].Active {
		t.Error("expected scenario 2 to be the only active scenario")
	}
	if got := mh.published(); len(got) != 1 || got[0] != "risk.scenario.2.activated" {
		t.Errorf("unexpected events %v", got)
	}

	w = do(router, "POST", "/api/v1/scenarios/42/activate", "", true)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestActiveScenarioMissing(t *testing.T) {
	router, ms, _ := setupTestRouter()
	ms.scenarios[0].Active = false

	w := do(router, "GET", "/api/v1/scenarios/active", "", false)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestGetCategoryWeightsShowsPercent(t *testing.T) {
	router, _, _ := setupTestRouter()

	w := do(router, "GET", "/api/v1/scenarios/1/weights/categories", "", false)
	var resp CategoryWeightsResponse
	json.NewDecoder(w.Body).Decode(&resp)
	if resp.SumPercent != 100 || len(resp.Items) != 2 || resp.Items[0].Percent != 60 {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestPutCategoryWeights(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"percent", `{"items":[{"category_id":1,"percent":67.6},{"category_id":2,"percent":32.4}]}`, http.StatusOK},
		{"fractions", `{"items":[{"category_id":1,"weight":0.25},{"category_id":2,"weight":0.75}]}`, http.StatusOK},
		{"sum too low", `{"items":[{"category_id":1,"percent":50},{"category_id":2,"percent":40}]}`, http.StatusUnprocessableEntity},
		{"weight out of range", `{"items":[{"category_id":1,"weight":1.5}]}`, http.StatusUnprocessableEntity},
		{"both weight and percent", `{"items":[{"category_id":1,"weight":1,"percent":100}]}`, http.StatusUnprocessableEntity},
		{"unknown category", `{"items":[{"category_id":9,"weight":1}]}`, http.StatusUnprocessableEntity},
		{"duplicate", `{"items":[{"category_id":1,"weight":0.5},{"category_id":1,"weight":0.5}]}`, http.StatusUnprocessableEntity},
		{"empty", `{"items":[]}`, http.StatusUnprocessableEntity},
		{"malformed", `{"items":`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, _, _ := setupTestRouter()
			w := do(router, "PUT", "/api/v1/scenarios/1/weights/categories", tt.body, true)
			if w.Code != tt.want {
				t.Errorf("expected %d, got %d: %s", tt.want, w.Code, w.Body.String())
			}
		})
	}
}

func TestPutCategoryWeightsPersistsAndPublishes(t *testing.T) {
	router, ms, mh := setupTestRouter()

	body := `{"items":[{"category_id":1,"percent":67.6},{"category_id":2,"percent":32.4}]}`
	w := do(router, "PUT", "/api/v1/scenarios/1/weights/categories", body, true)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	cws := ms.categoryWeights[1]
	if len(cws) != 2 || cws[0].Weight != 0.676 || cws[1].Weight != 0.324 {
		t.Errorf("unexpected stored weights %+v", cws)
	}
	var resp CategoryWeightsResponse
	json.NewDecoder(w.Body).Decode(&resp)
	if resp.Items[0].Percent != 68 {
		t.Errorf("expected 68%%, got %d", resp.Items[0].Percent)
	}
	if got := mh.published(); len(got) != 1 || got[0] != "risk.scenario.1.weights.categories.updated" {
		t.Errorf("unexpected events %v", got)
	}
}

func TestPutIndicatorWeights(t *testing.T) {
	tests := []struct {
		name     string
		category string
		body     string
		want     int
	}{
		{"valid", "2", `{"items":[{"indicator_id":3,"percent":30},{"indicator_id":4,"percent":70}]}`, http.StatusOK},
		{"other category", "2", `{"items":[{"indicator_id":1,"weight":1}]}`, http.StatusUnprocessableEntity},
		{"sum", "2", `{"items":[{"indicator_id":3,"weight":0.3}]}`, http.StatusUnprocessableEntity},
		{"empty category accepts empty set", "3", `{"items":[]}`, http.StatusOK},
		{"unknown category", "9", `{"items":[]}`, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, _, _ := setupTestRouter()
			w := do(router, "PUT", "/api/v1/scenarios/1/weights/categories/"+tt.category+"/indicators", tt.body, true)
			if w.Code != tt.want {
				t.Errorf("expected %d, got %d: %s", tt.want, w.Code, w.Body.String())
			}
		})
	}
}

func TestPutIndicatorWeightsKeepsOtherCategories(t *testing.T) {
	router, ms, _ := setupTestRouter()

	body := `{"items":[{"indicator_id":3,"weight":0.3},{"indicator_id":4,"weight":0.7}]}`
	w := do(router, "PUT", "/api/v1/scenarios/1/weights/categories/2/indicators", body, true)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if n := len(ms.indicatorWeights[1]); n != 4 {
		t.Errorf("expected 4 indicator weights, got %d", n)
	}
	var resp IndicatorWeightsResponse
	json.NewDecoder(w.Body).Decode(&resp)
	if len(resp.Items) != 2 || resp.SumPercent != 100 {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestRemoveCategory(t *testing.T) {
	router, ms, mh := setupTestRouter()

	w := do(router, "DELETE", "/api/v1/scenarios/1/categories/1", "", true)
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	if len(ms.categoryWeights[1]) != 1 || len(ms.indicatorWeights[1]) != 0 {
		t.Errorf("category 1 weights not removed: %+v %+v", ms.categoryWeights[1], ms.indicatorWeights[1])
	}
	if got := mh.published(); len(got) != 1 || got[0] != "risk.scenario.1.categories.removed" {
		t.Errorf("unexpected events %v", got)
	}
}

func TestUpsertValue(t *testing.T) {
	router, ms, mh := setupTestRouter()

	w := do(router, "POST", "/api/v1/indicator-values", `{"scenario_id":1,"country_id":1,"indicator_id":3,"raw_value":20}`, true)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var v store.IndicatorValue
	json.NewDecoder(w.Body).Decode(&v)
	if v.NormalizedValue == nil || *v.NormalizedValue != 4 {
		t.Errorf("expected normalized 4, got %v", v.NormalizedValue)
	}
	if len(ms.values) != 1 {
		t.Errorf("expected 1 stored value, got %d", len(ms.values))
	}
	if got := mh.published(); len(got) != 1 || got[0] != "risk.scenario.1.values.updated" {
		t.Errorf("unexpected events %v", got)
	}
}

func TestUpsertValueErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"out of range", `{"scenario_id":1,"country_id":1,"indicator_id":4,"raw_value":25}`, http.StatusUnprocessableEntity},
		{"unknown indicator", `{"scenario_id":1,"country_id":1,"indicator_id":99,"raw_value":1}`, http.StatusNotFound},
		{"unknown scenario", `{"scenario_id":7,"country_id":1,"indicator_id":1,"raw_value":1}`, http.StatusNotFound},
		{"missing ids", `{"raw_value":1}`, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, _, _ := setupTestRouter()
			w := do(router, "POST", "/api/v1/indicator-values", tt.body, true)
			if w.Code != tt.want {
				t.Errorf("expected %d, got %d: %s", tt.want, w.Code, w.Body.String())
			}
		})
	}
}

func TestListAndDeleteValues(t *testing.T) {
	router, ms, _ := setupTestRouter()
	ms.seedValues()

	w := do(router, "GET", "/api/v1/indicator-values?scenario_id=1&limit=4&page=2", "", false)
	var page ValuesPage
	json.NewDecoder(w.Body).Decode(&page)
	if page.Total != 6 || page.TotalPages != 2 || len(page.Items) != 2 {
		t.Errorf("unexpected page %+v", page)
	}

	w = do(router, "GET", "/api/v1/indicator-values?limit=500", "", false)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for limit above 200, got %d", w.Code)
	}

	w = do(router, "DELETE", "/api/v1/indicator-values/1", "", true)
	if w.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", w.Code)
	}
	w = do(router, "DELETE", "/api/v1/indicator-values/1", "", true)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestImportMatrix(t *testing.T) {
	router, ms, mh := setupTestRouter()

	csv := "País,Estabilidad,Inflación\nPeru,8,80\nChile,10,\nAtlantida,1,1\n"
	w := do(router, "POST", "/api/v1/scenarios/1/indicator-values/import", csv, true)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var rep importer.Report
	json.NewDecoder(w.Body).Decode(&rep)
	if rep.Processed != 3 || rep.Skipped != 1 || len(rep.Errors) != 1 {
		t.Errorf("unexpected report %+v", rep)
	}
	if len(ms.values) != 3 {
		t.Errorf("expected 3 stored values, got %d", len(ms.values))
	}
	if got := mh.published(); len(got) != 1 || got[0] != "risk.scenario.1.values.updated" {
		t.Errorf("unexpected events %v", got)
	}

	w = do(router, "POST", "/api/v1/scenarios/1/indicator-values/import", "1,2\n3,4\n", true)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without headers, got %d", w.Code)
	}
}

func TestResults(t *testing.T) {
	router, ms, _ := setupTestRouter()
	ms.seedValues()

	w := do(router, "GET", "/api/v1/results", "", false)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var snap struct {
		Categories []results.CategoryIndex `json:"categories"`
		Global     []results.CountryIndex  `json:"global"`
	}
	json.NewDecoder(w.Body).Decode(&snap)
	if len(snap.Global) != 2 || snap.Global[0].CountryID != 2 || snap.Global[0].Index != 4.5 {
		t.Errorf("unexpected global %+v", snap.Global)
	}
	if len(snap.Categories) != 2 {
		t.Errorf("expected 2 categories, got %d", len(snap.Categories))
	}

	w = do(router, "GET", "/api/v1/results?category_id=2&country_id=1", "", false)
	json.NewDecoder(w.Body).Decode(&snap)
	if len(snap.Categories) != 1 || len(snap.Global) != 1 || snap.Global[0].Index != 3 {
		t.Errorf("unexpected filtered results %+v", snap)
	}

	w = do(router, "GET", "/api/v1/results?scenario_id=9", "", false)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown scenario, got %d", w.Code)
	}
}

func TestRankings(t *testing.T) {
	router, ms, _ := setupTestRouter()
	ms.seedValues()

	w := do(router, "GET", "/api/v1/results/ranking/global?order=asc&limit=1", "", false)
	var resp RankingResponse
	json.NewDecoder(w.Body).Decode(&resp)
	if len(resp.Items) != 1 || resp.Items[0].CountryID != 1 || resp.Items[0].Position != 1 {
		t.Errorf("unexpected ranking %+v", resp)
	}

	for _, q := range []string{"order=sideways", "limit=0", "limit=201"} {
		w = do(router, "GET", "/api/v1/results/ranking/global?"+q, "", false)
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", q, w.Code)
		}
	}

	w = do(router, "GET", "/api/v1/results/ranking/category?category_id=2", "", false)
	resp = RankingResponse{}
	json.NewDecoder(w.Body).Decode(&resp)
	if len(resp.Items) != 1 || resp.Items[0].Index != 3 {
		t.Errorf("unexpected category ranking %+v", resp)
	}

	w = do(router, "GET", "/api/v1/results/ranking/category", "", false)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without category_id, got %d", w.Code)
	}
	w = do(router, "GET", "/api/v1/results/ranking/category?category_id=3", "", false)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for a category without weight, got %d", w.Code)
	}
}

func TestExplain(t *testing.T) {
	router, ms, _ := setupTestRouter()
	ms.seedValues()

	w := do(router, "GET", "/api/v1/results/explain/1", "", false)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"iso3":"PER"`) {
		t.Errorf("expected country details in %s", w.Body.String())
	}

	w = do(router, "GET", "/api/v1/results/explain/77", "", false)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestHealthEndpoint(t *testing.T) {
	router := NewMetricsRouter()
	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
}

func TestResultsRouterServesOnlyResults(t *testing.T) {
	ms := newMockStore()
	ms.seedValues()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	router := NewResultsRouter(results.NewService(ms, 2, logger), RouterConfig{}, logger)

	w := do(router, "GET", "/api/v1/results/ranking/global", "", false)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	w = do(router, "GET", "/api/v1/countries", "", false)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected catalog routes to be absent, got %d", w.Code)
	}
}
