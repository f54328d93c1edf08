package hermes

import "strconv"

const (
	// SubjectScenarioChanges matches every scenario mutation event.
	SubjectScenarioChanges = "risk.scenario.>"

	StreamName     = "RISKINDEX_EVENTS"
	StreamSubjects = "risk.>"
	StreamMaxAge   = "720h" // 30 days
)

func id(v int64) string { return strconv.FormatInt(v, 10) }

func SubjectScenarioActivated(scenarioID int64) string {
	return "risk.scenario." + id(scenarioID) + ".activated"
}

func SubjectCategoryWeightsUpdated(scenarioID int64) string {
	return "risk.scenario." + id(scenarioID) + ".weights.categories.updated"
}

func SubjectIndicatorWeightsUpdated(scenarioID int64) string {
	return "risk.scenario." + id(scenarioID) + ".weights.indicators.updated"
}

func SubjectValuesUpdated(scenarioID int64) string {
	return "risk.scenario." + id(scenarioID) + ".values.updated"
}

func SubjectCategoryRemoved(scenarioID int64) string {
	return "risk.scenario." + id(scenarioID) + ".categories.removed"
}

func SubjectResultsSnapshot(scenarioID int64) string {
	return "risk.results." + id(scenarioID) + ".snapshot"
}
