package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/publichealthengland/coronavirus-dashboard-api/internal/domain/apierrors"
	"github.com/publichealthengland/coronavirus-dashboard-api/internal/domain/metrics"
)

func testCatalog() *metrics.Catalog {
	return metrics.NewCatalog("PRODUCTION")
}

func TestParseFilters(t *testing.T) {
	parsed, err := Parse("filters=areaType=nation;areaName=England", testCatalog())
	require.NoError(t, err)

	assert.Equal(t, "AND area_type = $2 AND LOWER(area_name) = $3", parsed.Filters)
	assert.Equal(t, []any{"nation", "england"}, parsed.Arguments)
	assert.Equal(t, "nation", parsed.AreaType)
	assert.Equal(t, []FilterPredicate{
		{Identifier: "areaType", Operator: "=", Value: "nation"},
		{Identifier: "areaName", Operator: "=", Value: "England"},
	}, parsed.RawFilters)

	assert.Equal(t, "json", parsed.Format)
	assert.Equal(t, 1, parsed.Page)
	assert.Empty(t, parsed.LatestBy)
}

func TestParseFilterVariants(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		filters  string
		args     []any
		wantCode string
	}{
		{
			name:    "or connector",
			query:   "filters=areaType=nation;areaName=England|areaName=Wales",
			filters: "AND area_type = $2 AND LOWER(area_name) = $3 OR LOWER(area_name) = $4",
			args:    []any{"nation", "england", "wales"},
		},
		{
			name:    "date pin wraps placeholder",
			query:   "filters=areaType=nation;date=2020-11-20",
			filters: "AND area_type = $2 AND date = DATE($3)",
			args:    []any{"nation", "2020-11-20"},
		},
		{
			name:    "area code uppercased",
			query:   "filters=areaType=nation;areaCode=e92000001",
			filters: "AND area_type = $2 AND area_code = $3",
			args:    []any{"nation", "E92000001"},
		},
		{
			name:    "comparison operators",
			query:   "filters=areaType=nation;date>2020-10-01",
			filters: "AND area_type = $2 AND date > DATE($3)",
			args:    []any{"nation", "2020-10-01"},
		},
		{
			name:     "empty filters",
			query:    "",
			wantCode: "INVALID_QUERY",
		},
		{
			name:     "missing area type",
			query:    "filters=areaName=England",
			wantCode: "MISSING_FILTER",
		},
		{
			name:     "unknown area type value",
			query:    "filters=areaType=county",
			wantCode: "VALUE_NOT_ACCEPTABLE",
		},
		{
			name:     "unknown parameter",
			query:    "filters=areaType=nation;areaNam=England",
			wantCode: "INVALID_QUERY_PARAMETER",
		},
		{
			name: "too many parameters",
			query: "filters=areaType=nation;areaName=England;areaCode=E92000001;" +
				"areaName=Wales;areaName=Scotland;areaName=Cornwall",
			wantCode: "EXCEEDS_MAX_PARAMETERS",
		},
		{
			name:     "second date pin",
			query:    "filters=areaType=nation;date=2020-11-20;date=2020-11-21",
			wantCode: "REQUEST_TOO_LARGE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parsed, err := Parse(tt.query, testCatalog())

			if tt.wantCode != "" {
				require.Error(t, err)
				apiErr, ok := apierrors.As(err)
				require.True(t, ok)
				assert.Equal(t, tt.wantCode, apiErr.Code)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.filters, parsed.Filters)
			assert.Equal(t, tt.args, parsed.Arguments)
		})
	}
}

func TestParseModifiers(t *testing.T) {
	t.Run("format and page", func(t *testing.T) {
		parsed, err := Parse("filters=areaType=nation&format=csv&page=3", testCatalog())
		require.NoError(t, err)
		assert.Equal(t, "csv", parsed.Format)
		assert.Equal(t, 3, parsed.Page)
	})

	t.Run("latest by", func(t *testing.T) {
		parsed, err := Parse(
			"filters=areaType=nation&latestBy=newCasesByPublishDate", testCatalog())
		require.NoError(t, err)
		assert.Equal(t, "newCasesByPublishDate", parsed.LatestBy)
	})

	t.Run("latest by accepts date axes", func(t *testing.T) {
		parsed, err := Parse("filters=areaType=nation&latestBy=date", testCatalog())
		require.NoError(t, err)
		assert.Equal(t, "date", parsed.LatestBy)
	})

	t.Run("unknown latest by metric", func(t *testing.T) {
		_, err := Parse("filters=areaType=nation&latestBy=newCasesByPubDate", testCatalog())
		apiErr, ok := apierrors.As(err)
		require.True(t, ok)
		assert.Equal(t, "INVALID_QUERY_PARAMETER", apiErr.Code)
	})

	t.Run("latest by with page", func(t *testing.T) {
		_, err := Parse(
			"filters=areaType=nation&latestBy=newCasesByPublishDate&page=2", testCatalog())
		apiErr, ok := apierrors.As(err)
		require.True(t, ok)
		assert.Equal(t, "BAD_PAGINATION", apiErr.Code)
	})

	t.Run("latest by with csv", func(t *testing.T) {
		_, err := Parse(
			"filters=areaType=nation&latestBy=newCasesByPublishDate&format=csv",
			testCatalog())
		apiErr, ok := apierrors.As(err)
		require.True(t, ok)
		assert.Equal(t, "INVALID_FORMAT", apiErr.Code)
	})

	t.Run("page zero rejected", func(t *testing.T) {
		_, err := Parse("filters=areaType=nation&page=0", testCatalog())
		apiErr, ok := apierrors.As(err)
		require.True(t, ok)
		assert.Equal(t, "INVALID_QUERY", apiErr.Code)
	})

	t.Run("page out of range rejected", func(t *testing.T) {
		_, err := Parse("filters=areaType=nation&page=1000", testCatalog())
		apiErr, ok := apierrors.As(err)
		require.True(t, ok)
		assert.Equal(t, "INVALID_QUERY", apiErr.Code)
	})

	t.Run("url-encoded filters", func(t *testing.T) {
		parsed, err := Parse(
			"filters=areaType%3Dnation%3BareaName%3DEngland", testCatalog())
		require.NoError(t, err)
		assert.Equal(t, "AND area_type = $2 AND LOWER(area_name) = $3", parsed.Filters)
	})
}
