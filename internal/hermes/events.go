package hermes

import "time"

type ScenarioActivatedEvent struct {
	ScenarioID int64     `json:"scenario_id"`
	Name       string    `json:"name"`
	Timestamp  time.Time `json:"timestamp"`
}

type CategoryWeightsUpdatedEvent struct {
	ScenarioID int64             `json:"scenario_id"`
	Weights    map[int64]float64 `json:"weights"`
	Timestamp  time.Time         `json:"timestamp"`
}

type IndicatorWeightsUpdatedEvent struct {
	ScenarioID int64             `json:"scenario_id"`
	CategoryID int64             `json:"category_id"`
	Weights    map[int64]float64 `json:"weights"`
	Timestamp  time.Time         `json:"timestamp"`
}

type CategoryRemovedEvent struct {
	ScenarioID int64     `json:"scenario_id"`
	CategoryID int64     `json:"category_id"`
	Timestamp  time.Time `json:"timestamp"`
}

// ValuesUpdatedEvent is emitted after a manual upsert, delete or matrix
// import. Count is the number of rows written.
type ValuesUpdatedEvent struct {
	ScenarioID int64     `json:"scenario_id"`
	Count      int       `json:"count"`
	Source     string    `json:"source"`
	Timestamp  time.Time `json:"timestamp"`
}

type RankingEntry struct {
	Position  int     `json:"position"`
	CountryID int64   `json:"country_id"`
	ISO3      string  `json:"iso3,omitempty"`
	Index     float64 `json:"index"`
}

type ResultsSnapshotEvent struct {
	SnapshotID string         `json:"snapshot_id"`
	ScenarioID int64          `json:"scenario_id"`
	Countries  int            `json:"countries"`
	Categories int            `json:"categories"`
	Ranking    []RankingEntry `json:"ranking"`
	ComputedAt time.Time      `json:"computed_at"`
}
