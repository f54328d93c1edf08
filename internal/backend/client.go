package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/MikeSquared-Agency/RiskIndex/internal/store"
)

const defaultPageSize = 100

// StatusError is returned for any non-2xx response.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend %s %s: %d %s", e.Method, e.Path, e.Code, e.Body)
}

func isNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == http.StatusNotFound
}

type page[T any] struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
	Items      []T `json:"items"`
}

type weightsResponse[T any] struct {
	ScenarioID int64   `json:"scenario_id"`
	Sum        float64 `json:"sum"`
	Items      []T     `json:"items"`
}

// HTTPClient reads scenario data from the remote REST backend. It satisfies
// results.Source.
type HTTPClient struct {
	baseURL    string
	token      string
	pageSize   int
	httpClient *http.Client
}

func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		baseURL:    baseURL,
		token:      token,
		pageSize:   defaultPageSize,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *HTTPClient) doReq(ctx context.Context, method, path string, query url.Values) ([]byte, error) {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, &StatusError{Method: method, Path: path, Code: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}

func getJSON[T any](ctx context.Context, c *HTTPClient, path string, query url.Values) (*T, error) {
	data, err := c.doReq(ctx, http.MethodGet, path, query)
	if err != nil {
		return nil, err
	}
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return &out, nil
}

// listAll walks every page of a paginated endpoint.
func listAll[T any](ctx context.Context, c *HTTPClient, path string, query url.Values) ([]*T, error) {
	if query == nil {
		query = url.Values{}
	}
	var out []*T
	for n := 1; ; n++ {
		query.Set("page", strconv.Itoa(n))
		query.Set("limit", strconv.Itoa(c.pageSize))
		p, err := getJSON[page[T]](ctx, c, path, query)
		if err != nil {
			return nil, err
		}
		for i := range p.Items {
			out = append(out, &p.Items[i])
		}
		if n >= p.TotalPages || len(p.Items) == 0 {
			return out, nil
		}
	}
}

func (c *HTTPClient) GetScenario(ctx context.Context, id int64) (*store.Scenario, error) {
	sc, err := getJSON[store.Scenario](ctx, c, "/v1/scenarios/"+strconv.FormatInt(id, 10), nil)
	if isNotFound(err) {
		return nil, nil
	}
	return sc, err
}

func (c *HTTPClient) GetActiveScenario(ctx context.Context) (*store.Scenario, error) {
	sc, err := getJSON[store.Scenario](ctx, c, "/v1/scenarios/active", nil)
	if isNotFound(err) {
		return nil, nil
	}
	return sc, err
}

func (c *HTTPClient) ListCountries(ctx context.Context) ([]*store.Country, error) {
	return listAll[store.Country](ctx, c, "/v1/countries", nil)
}

func (c *HTTPClient) ListCategories(ctx context.Context) ([]*store.Category, error) {
	return listAll[store.Category](ctx, c, "/v1/categories", nil)
}

func (c *HTTPClient) ListIndicators(ctx context.Context, filter store.IndicatorFilter) ([]*store.Indicator, error) {
	q := url.Values{}
	if filter.CategoryID != nil {
		q.Set("category_id", strconv.FormatInt(*filter.CategoryID, 10))
	}
	return listAll[store.Indicator](ctx, c, "/v1/indicators", q)
}

func (c *HTTPClient) GetCategoryWeights(ctx context.Context, scenarioID int64) ([]*store.CategoryWeight, error) {
	q := url.Values{"scenario_id": {strconv.FormatInt(scenarioID, 10)}}
	resp, err := getJSON[weightsResponse[store.CategoryWeight]](ctx, c, "/v1/weights/categories", q)
	if err != nil {
		return nil, err
	}
	out := make([]*store.CategoryWeight, 0, len(resp.Items))
	for i := range resp.Items {
		resp.Items[i].ScenarioID = scenarioID
		out = append(out, &resp.Items[i])
	}
	return out, nil
}

func (c *HTTPClient) GetIndicatorWeights(ctx context.Context, scenarioID int64) ([]*store.IndicatorWeight, error) {
	q := url.Values{"scenario_id": {strconv.FormatInt(scenarioID, 10)}}
	resp, err := getJSON[weightsResponse[store.IndicatorWeight]](ctx, c, "/v1/weights/indicators", q)
	if err != nil {
		return nil, err
	}
	out := make([]*store.IndicatorWeight, 0, len(resp.Items))
	for i := range resp.Items {
		resp.Items[i].ScenarioID = scenarioID
		out = append(out, &resp.Items[i])
	}
	return out, nil
}

// ListIndicatorValues fetches every page matching the filter; Limit and
// Offset are ignored.
func (c *HTTPClient) ListIndicatorValues(ctx context.Context, filter store.ValueFilter) ([]*store.IndicatorValue, error) {
	q := url.Values{}
	if filter.ScenarioID != nil {
		q.Set("scenario_id", strconv.FormatInt(*filter.ScenarioID, 10))
	}
	if filter.CountryID != nil {
		q.Set("country_id", strconv.FormatInt(*filter.CountryID, 10))
	}
	if filter.IndicatorID != nil {
		q.Set("indicator_id", strconv.FormatInt(*filter.IndicatorID, 10))
	}
	return listAll[store.IndicatorValue](ctx, c, "/v1/indicator-values", q)
}
