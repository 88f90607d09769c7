// Package report writes run results to spreadsheets and databases.
package report

import (
	"strings"

	"episim/internal/disease"
	"episim/internal/model"
	"episim/internal/sim"
	"episim/internal/surveillance"
)

func stateColumns() []string {
	out := make([]string, model.NumStates)
	for s := range out {
		out[s] = strings.ToLower(model.State(s).String())
	}
	return out
}

func countColumns(prefix string) []string {
	out := make([]string, len(disease.CountNames))
	for i, n := range disease.CountNames {
		out[i] = prefix + n
	}
	return out
}

// attributionColumns name the mean per-layer share of the hazard behind
// each new infection.
func attributionColumns() []string {
	out := make([]string, model.NumLayers)
	for l := range out {
		out[l] = "attribution_" + model.Layer(l).String()
	}
	return out
}

// dailyHeader labels the values of dailyRow.
func dailyHeader() []string {
	h := []string{"day", "policy"}
	h = append(h, stateColumns()...)
	h = append(h, countColumns("new_")...)
	h = append(h, countColumns("total_")...)
	h = append(h, "affected", "detected")
	return append(h, attributionColumns()...)
}

func dailyRow(res sim.StepResult) []any {
	row := []any{res.Day, res.Policy}
	for _, n := range res.States {
		row = append(row, n)
	}
	for _, n := range res.Daily.Values() {
		row = append(row, n)
	}
	for _, n := range res.Cumulative.Values() {
		row = append(row, n)
	}
	row = append(row, res.Affected, res.Detected)
	for _, share := range res.Attribution {
		row = append(row, share)
	}
	return row
}

var communityHeader = []string{"day", "ward", "infected", "affected", "hospitalised", "critical", "dead"}

func communityRow(day int, c sim.CommunityStats) []any {
	return []any{day, c.Ward, c.Infected, c.Affected, c.Hospitalised, c.Critical, c.Dead}
}

var wastewaterHeader = []string{
	"day", "sewershed", "population",
	"concentration", "normalised", "load", "below_limit",
	"detected", "hospitalised", "deaths",
	"total_detected", "total_hospitalised", "total_deaths",
	"estimated", "active", "detection_ratio", "under_reporting",
}

func wastewaterRow(s surveillance.Sample) []any {
	return []any{
		s.Day, s.Sewershed, s.Population,
		s.Concentration, s.Normalised, s.Load, s.BelowLimit,
		s.Detected, s.Hospitalised, s.Deaths,
		s.CumulativeDetected, s.CumulativeHospitalised, s.CumulativeDeaths,
		s.Estimated, s.Active, s.DetectionRatio, s.UnderReporting,
	}
}
