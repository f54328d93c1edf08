package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikeSquared-Agency/RiskIndex/internal/results"
	"github.com/MikeSquared-Agency/RiskIndex/internal/store"
)

var _ results.Source = (*HTTPClient)(nil)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("/v1/scenarios/active", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(store.Scenario{ID: 2, Name: "Base", Active: true})
	})
	mux.HandleFunc("/v1/scenarios/2", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(store.Scenario{ID: 2, Name: "Base", Active: true})
	})
	mux.HandleFunc("/v1/scenarios/9", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"Escenario no encontrado"}`, http.StatusNotFound)
	})
	mux.HandleFunc("/v1/countries", func(w http.ResponseWriter, r *http.Request) {
		// 5 countries served 2 per page.
		n, _ := strconv.Atoi(r.URL.Query().Get("page"))
		var items []store.Country
		for id := (n-1)*2 + 1; id <= n*2 && id <= 5; id++ {
			items = append(items, store.Country{ID: int64(id), ISO3: fmt.Sprintf("c%02d", id)})
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"page": n, "limit": 2, "total": 5, "total_pages": 3, "items": items,
		})
	})
	mux.HandleFunc("/v1/weights/categories", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2", r.URL.Query().Get("scenario_id"))
		_, _ = w.Write([]byte(`{"scenario_id":2,"sum":1,"items":[{"category_id":1,"weight":0.6},{"category_id":2,"weight":0.4}]}`))
	})
	mux.HandleFunc("/v1/indicator-values", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2", r.URL.Query().Get("scenario_id"))
		_, _ = w.Write([]byte(`{"page":1,"limit":100,"total":2,"total_pages":1,"items":[
			{"id":1,"scenario_id":2,"country_id":1,"indicator_id":3,"raw_value":8,"normalized_value":4},
			{"id":2,"scenario_id":2,"country_id":2,"indicator_id":3,"raw_value":null,"normalized_value":null}]}`))
	})
	mux.HandleFunc("/v1/categories", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestGetScenario(t *testing.T) {
	srv := newTestServer(t)
	c := NewHTTPClient(srv.URL, "secret")
	ctx := context.Background()

	active, err := c.GetActiveScenario(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), active.ID)

	sc, err := c.GetScenario(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, "Base", sc.Name)

	missing, err := c.GetScenario(ctx, 9)
	assert.NoError(t, err)
	assert.Nil(t, missing)
}

func TestUnauthorized(t *testing.T) {
	srv := newTestServer(t)
	c := NewHTTPClient(srv.URL, "wrong")

	_, err := c.GetActiveScenario(context.Background())
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusUnauthorized, se.Code)
}

func TestListAllPages(t *testing.T) {
	srv := newTestServer(t)
	c := NewHTTPClient(srv.URL, "secret")

	countries, err := c.ListCountries(context.Background())
	require.NoError(t, err)
	require.Len(t, countries, 5)
	assert.Equal(t, "c05", countries[4].ISO3)
}

func TestWeightsAndValues(t *testing.T) {
	srv := newTestServer(t)
	c := NewHTTPClient(srv.URL, "secret")
	ctx := context.Background()

	cws, err := c.GetCategoryWeights(ctx, 2)
	require.NoError(t, err)
	require.Len(t, cws, 2)
	assert.Equal(t, int64(2), cws[0].ScenarioID)
	assert.Equal(t, 0.6, cws[0].Weight)

	sc := int64(2)
	values, err := c.ListIndicatorValues(ctx, store.ValueFilter{ScenarioID: &sc})
	require.NoError(t, err)
	require.Len(t, values, 2)
	require.NotNil(t, values[0].NormalizedValue)
	assert.Equal(t, 4.0, *values[0].NormalizedValue)
	assert.Nil(t, values[1].NormalizedValue)
}

func TestServerError(t *testing.T) {
	srv := newTestServer(t)
	c := NewHTTPClient(srv.URL, "secret")

	_, err := c.ListCategories(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}
