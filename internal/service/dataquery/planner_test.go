package dataquery

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/publichealthengland/coronavirus-dashboard-api/internal/domain/metrics"
	"github.com/publichealthengland/coronavirus-dashboard-api/internal/domain/query"
)

func parseQuery(t *testing.T, rawQuery string) *query.Parsed {
	t.Helper()
	parsed, err := query.Parse(rawQuery, metrics.NewCatalog("PRODUCTION"))
	require.NoError(t, err)
	return parsed
}

func TestPartitionID(t *testing.T) {
	release := time.Date(2020, time.November, 5, 15, 30, 0, 0, time.UTC)

	tests := []struct {
		areaType string
		want     string
	}{
		{"utla", "2020_11_5_utla"},
		{"ltla", "2020_11_5_ltla"},
		{"nhsTrust", "2020_11_5_nhstrust"},
		{"msoa", "2020_11_5_msoa"},
		{"nation", "2020_11_5_other"},
		{"region", "2020_11_5_other"},
		{"overview", "2020_11_5_other"},
	}

	for _, tt := range tests {
		t.Run(tt.areaType, func(t *testing.T) {
			assert.Equal(t, tt.want, PartitionID(release, tt.areaType))
		})
	}

	// Single-digit month keeps no zero padding either.
	march := time.Date(2021, time.March, 9, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "2021_3_9_other", PartitionID(march, "nation"))
}

func TestPlannerData(t *testing.T) {
	parsed := parseQuery(t,
		"filters=areaType=nation;areaName=England&page=2&"+
			"structure=%7B%22date%22%3A%22date%22%2C%22newCases%22%3A%22newCasesByPublishDate%22%7D")
	release := time.Date(2020, time.November, 20, 0, 0, 0, 0, time.UTC)

	plan := Planner{Environment: "PRODUCTION"}.Data(parsed, release)

	assert.Contains(t, plan.SQL, "FROM covid19.time_series_p2020_11_20_other AS ts")
	assert.Contains(t, plan.SQL, "metric = ANY($1::VARCHAR[])")
	assert.Contains(t, plan.SQL,
		"AND area_type = $2 AND LOWER(area_name) = $3 AND rr.released IS TRUE")
	assert.Contains(t, plan.SQL, "ORDER BY area_code, date DESC")

	// One non-identity metric: limit 2500, second page offset 2500.
	assert.Contains(t, plan.SQL, "LIMIT 2500 OFFSET 2500")

	require.Len(t, plan.Arguments, 3)
	assert.Equal(t, []string{"date", "newCasesByPublishDate"}, plan.Arguments[0])
	assert.Equal(t, "nation", plan.Arguments[1])
	assert.Equal(t, "england", plan.Arguments[2])
}

func TestPlannerLimitScalesWithMetricCount(t *testing.T) {
	parsed := parseQuery(t, "filters=areaType=nation")
	release := time.Date(2020, time.November, 20, 0, 0, 0, 0, time.UTC)

	// Default structure has four non-identity metrics.
	plan := Planner{Environment: "PRODUCTION"}.Data(parsed, release)
	assert.Contains(t, plan.SQL, "LIMIT 10000 OFFSET 0")
}

func TestPlannerDevelopmentSkipsReleasedGuard(t *testing.T) {
	parsed := parseQuery(t, "filters=areaType=nation")
	release := time.Date(2020, time.November, 20, 0, 0, 0, 0, time.UTC)

	plan := Planner{Environment: "DEVELOPMENT"}.Data(parsed, release)
	assert.NotContains(t, plan.SQL, "rr.released IS TRUE")

	plan = Planner{Environment: "STAGING"}.Data(parsed, release)
	assert.Contains(t, plan.SQL, "rr.released IS TRUE")
}

func TestPlannerLatest(t *testing.T) {
	parsed := parseQuery(t, "filters=areaType=nation&latestBy=newCasesByPublishDate")
	release := time.Date(2020, time.November, 20, 0, 0, 0, 0, time.UTC)

	plan := Planner{Environment: "PRODUCTION"}.Latest(parsed, release)

	assert.Contains(t, plan.SQL, "SELECT MAX(date)")
	assert.Contains(t, plan.SQL, "metric = 'newCasesByPublishDate'")
	assert.Contains(t, plan.SQL, "(payload ->> 'value') NOTNULL")
	assert.NotContains(t, plan.SQL, "LIMIT")
}

func TestPlannerExistsAndCount(t *testing.T) {
	parsed := parseQuery(t, "filters=areaType=nation")
	release := time.Date(2020, time.November, 20, 0, 0, 0, 0, time.UTC)
	planner := Planner{Environment: "PRODUCTION"}

	exists := planner.Exists(parsed, release)
	assert.Contains(t, exists.SQL, "SELECT TRUE AS exists")
	assert.Contains(t, exists.SQL, "FETCH FIRST 1 ROW ONLY")

	count := planner.Count(parsed, release)
	assert.Contains(t, count.SQL, "SELECT COUNT(*) AS count")
	assert.NotContains(t, count.SQL, "LIMIT")
}
