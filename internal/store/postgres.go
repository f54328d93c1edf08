package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned by writes that target a row that does not exist.
var ErrNotFound = errors.New("not found")

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// --- Catalog ---

func (s *PostgresStore) ListCountries(ctx context.Context) ([]*Country, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, iso2, iso3, name_es, name_en, enabled
		FROM countries WHERE enabled ORDER BY name_es ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Country
	for rows.Next() {
		c := &Country{}
		if err := rows.Scan(&c.ID, &c.ISO2, &c.ISO3, &c.NameES, &c.NameEN, &c.Enabled); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

const categoryColumns = `id, name, slug, COALESCE(description, '')`

func (s *PostgresStore) ListCategories(ctx context.Context) ([]*Category, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+categoryColumns+` FROM categories ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Category
	for rows.Next() {
		c := &Category{}
		if err := rows.Scan(&c.ID, &c.Name, &c.Slug, &c.Description); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *PostgresStore) GetCategory(ctx context.Context, id int64) (*Category, error) {
	c := &Category{}
	err := s.pool.QueryRow(ctx, `SELECT `+categoryColumns+` FROM categories WHERE id = $1`, id).
		Scan(&c.ID, &c.Name, &c.Slug, &c.Description)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

const indicatorColumns = `id, category_id, name, slug, value_type, scale,
	min_value, max_value, COALESCE(unit, '')`

func (s *PostgresStore) ListIndicators(ctx context.Context, filter IndicatorFilter) ([]*Indicator, error) {
	query := `SELECT ` + indicatorColumns + ` FROM indicators WHERE 1=1`
	args := []interface{}{}
	if filter.CategoryID != nil {
		query += " AND category_id = $1"
		args = append(args, *filter.CategoryID)
	}
	query += " ORDER BY category_id ASC, id ASC"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Indicator
	for rows.Next() {
		ind, err := scanIndicator(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ind)
	}
	return out, rows.Err()
}

func (s *PostgresStore) GetIndicator(ctx context.Context, id int64) (*Indicator, error) {
	ind, err := scanIndicator(s.pool.QueryRow(ctx, `SELECT `+indicatorColumns+` FROM indicators WHERE id = $1`, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return ind, nil
}

func scanIndicator(row pgx.Row) (*Indicator, error) {
	ind := &Indicator{}
	err := row.Scan(&ind.ID, &ind.CategoryID, &ind.Name, &ind.Slug, &ind.ValueType, &ind.Scale,
		&ind.MinValue, &ind.MaxValue, &ind.Unit)
	if err != nil {
		return nil, err
	}
	return ind, nil
}

// --- Scenarios ---

const scenarioColumns = `id, name, COALESCE(description, ''), active, created_at`

func (s *PostgresStore) ListScenarios(ctx context.Context, filter ScenarioFilter) ([]*Scenario, error) {
	query := `SELECT ` + scenarioColumns + ` FROM scenarios WHERE 1=1`
	args := []interface{}{}
	n := 0

	if filter.Query != "" {
		n++
		query += fmt.Sprintf(" AND name ILIKE $%d", n)
		args = append(args, "%"+filter.Query+"%")
	}
	if filter.OnlyActive != nil {
		n++
		query += fmt.Sprintf(" AND active = $%d", n)
		args = append(args, *filter.OnlyActive)
	}

	query += " ORDER BY name ASC"

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	n++
	query += fmt.Sprintf(" LIMIT $%d", n)
	args = append(args, limit)

	if filter.Offset > 0 {
		n++
		query += fmt.Sprintf(" OFFSET $%d", n)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Scenario
	for rows.Next() {
		sc, err := scanScenario(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

func (s *PostgresStore) GetScenario(ctx context.Context, id int64) (*Scenario, error) {
	sc, err := scanScenario(s.pool.QueryRow(ctx, `SELECT `+scenarioColumns+` FROM scenarios WHERE id = $1`, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return sc, nil
}

func (s *PostgresStore) GetActiveScenario(ctx context.Context) (*Scenario, error) {
	sc, err := scanScenario(s.pool.QueryRow(ctx, `
		SELECT `+scenarioColumns+` FROM scenarios WHERE active ORDER BY id ASC LIMIT 1`))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return sc, nil
}

// ActivateScenario makes id the only active scenario.
func (s *PostgresStore) ActivateScenario(ctx context.Context, id int64) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `UPDATE scenarios SET active = false WHERE active AND id <> $1`, id); err != nil {
		return fmt.Errorf("deactivate scenarios: %w", err)
	}
	tag, err := tx.Exec(ctx, `UPDATE scenarios SET active = true WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("activate scenario: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return tx.Commit(ctx)
}

// RemoveCategoryFromScenario drops the category weight and the weights of the
// category's indicators from the scenario.
func (s *PostgresStore) RemoveCategoryFromScenario(ctx context.Context, scenarioID, categoryID int64) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `
		DELETE FROM indicator_weights
		WHERE scenario_id = $1
		AND indicator_id IN (SELECT id FROM indicators WHERE category_id = $2)`,
		scenarioID, categoryID); err != nil {
		return fmt.Errorf("delete indicator weights: %w", err)
	}
	if _, err := tx.Exec(ctx, `
		DELETE FROM category_weights WHERE scenario_id = $1 AND category_id = $2`,
		scenarioID, categoryID); err != nil {
		return fmt.Errorf("delete category weight: %w", err)
	}
	return tx.Commit(ctx)
}

func scanScenario(row pgx.Row) (*Scenario, error) {
	sc := &Scenario{}
	if err := row.Scan(&sc.ID, &sc.Name, &sc.Description, &sc.Active, &sc.CreatedAt); err != nil {
		return nil, err
	}
	return sc, nil
}

// --- Weights ---

func (s *PostgresStore) GetCategoryWeights(ctx context.Context, scenarioID int64) ([]*CategoryWeight, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT scenario_id, category_id, weight
		FROM category_weights WHERE scenario_id = $1 ORDER BY category_id ASC`, scenarioID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*CategoryWeight
	for rows.Next() {
		w := &CategoryWeight{}
		if err := rows.Scan(&w.ScenarioID, &w.CategoryID, &w.Weight); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// ReplaceCategoryWeights swaps the scenario's category weights for items in
// one transaction.
func (s *PostgresStore) ReplaceCategoryWeights(ctx context.Context, scenarioID int64, items []CategoryWeight) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM category_weights WHERE scenario_id = $1`, scenarioID); err != nil {
		return fmt.Errorf("clear category weights: %w", err)
	}

	batch := &pgx.Batch{}
	for _, it := range items {
		batch.Queue(`INSERT INTO category_weights (scenario_id, category_id, weight) VALUES ($1, $2, $3)`,
			scenarioID, it.CategoryID, it.Weight)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert category weights: %w", err)
	}
	return tx.Commit(ctx)
}

func (s *PostgresStore) GetIndicatorWeights(ctx context.Context, scenarioID int64) ([]*IndicatorWeight, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT scenario_id, indicator_id, weight
		FROM indicator_weights WHERE scenario_id = $1 ORDER BY indicator_id ASC`, scenarioID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*IndicatorWeight
	for rows.Next() {
		w := &IndicatorWeight{}
		if err := rows.Scan(&w.ScenarioID, &w.IndicatorID, &w.Weight); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// ReplaceIndicatorWeights swaps the weights of one category's indicators.
// Weights of other categories in the scenario are left alone.
func (s *PostgresStore) ReplaceIndicatorWeights(ctx context.Context, scenarioID, categoryID int64, items []IndicatorWeight) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `
		DELETE FROM indicator_weights
		WHERE scenario_id = $1
		AND indicator_id IN (SELECT id FROM indicators WHERE category_id = $2)`,
		scenarioID, categoryID); err != nil {
		return fmt.Errorf("clear indicator weights: %w", err)
	}

	batch := &pgx.Batch{}
	for _, it := range items {
		batch.Queue(`INSERT INTO indicator_weights (scenario_id, indicator_id, weight) VALUES ($1, $2, $3)`,
			scenarioID, it.IndicatorID, it.Weight)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert indicator weights: %w", err)
	}
	return tx.Commit(ctx)
}

// --- Values ---

const valueColumns = `id, scenario_id, country_id, indicator_id, raw_value, normalized_value, loaded_at`

func valueWhere(filter ValueFilter) (string, []interface{}) {
	where := ` WHERE 1=1`
	args := []interface{}{}
	n := 0
	if filter.ScenarioID != nil {
		n++
		where += fmt.Sprintf(" AND scenario_id = $%d", n)
		args = append(args, *filter.ScenarioID)
	}
	if filter.CountryID != nil {
		n++
		where += fmt.Sprintf(" AND country_id = $%d", n)
		args = append(args, *filter.CountryID)
	}
	if filter.IndicatorID != nil {
		n++
		where += fmt.Sprintf(" AND indicator_id = $%d", n)
		args = append(args, *filter.IndicatorID)
	}
	return where, args
}

// ListIndicatorValues returns values ordered by id so duplicate rows reach
// callers in insertion order.
func (s *PostgresStore) ListIndicatorValues(ctx context.Context, filter ValueFilter) ([]*IndicatorValue, error) {
	where, args := valueWhere(filter)
	query := `SELECT ` + valueColumns + ` FROM indicator_values` + where + ` ORDER BY id ASC`
	n := len(args)

	if filter.Limit > 0 {
		n++
		query += fmt.Sprintf(" LIMIT $%d", n)
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		n++
		query += fmt.Sprintf(" OFFSET $%d", n)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*IndicatorValue
	for rows.Next() {
		v, err := scanValue(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CountIndicatorValues(ctx context.Context, filter ValueFilter) (int, error) {
	where, args := valueWhere(filter)
	var total int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM indicator_values`+where, args...).Scan(&total)
	return total, err
}

func (s *PostgresStore) GetIndicatorValue(ctx context.Context, id int64) (*IndicatorValue, error) {
	v, err := scanValue(s.pool.QueryRow(ctx, `SELECT `+valueColumns+` FROM indicator_values WHERE id = $1`, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}

// UpsertIndicatorValue inserts or overwrites the value for
// (scenario, country, indicator) and fills in ID and LoadedAt.
func (s *PostgresStore) UpsertIndicatorValue(ctx context.Context, v *IndicatorValue) error {
	return s.pool.QueryRow(ctx, `
		INSERT INTO indicator_values (scenario_id, country_id, indicator_id, raw_value, normalized_value)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (scenario_id, country_id, indicator_id) DO UPDATE
		SET raw_value = EXCLUDED.raw_value,
			normalized_value = EXCLUDED.normalized_value,
			loaded_at = NOW()
		RETURNING id, loaded_at`,
		v.ScenarioID, v.CountryID, v.IndicatorID, v.RawValue, v.NormalizedValue,
	).Scan(&v.ID, &v.LoadedAt)
}

func (s *PostgresStore) DeleteIndicatorValue(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM indicator_values WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanValue(row pgx.Row) (*IndicatorValue, error) {
	v := &IndicatorValue{}
	if err := row.Scan(&v.ID, &v.ScenarioID, &v.CountryID, &v.IndicatorID,
		&v.RawValue, &v.NormalizedValue, &v.LoadedAt); err != nil {
		return nil, err
	}
	return v, nil
}
