package dataquery

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/publichealthengland/coronavirus-dashboard-api/internal/domain/metrics"
)

func TestFormatOrdering(t *testing.T) {
	catalog := metrics.NewCatalog("PRODUCTION")

	clause, err := FormatOrdering(catalog, DefaultOrdering)
	require.NoError(t, err)
	assert.Equal(t, "ORDER BY area_code ASC, date DESC", clause)
}

func TestFormatOrderingMapsColumns(t *testing.T) {
	catalog := metrics.NewCatalog("PRODUCTION")

	clause, err := FormatOrdering(catalog, []OrderClause{
		{By: "areaType", Ascending: true},
		{By: "areaName", Ascending: true},
		{By: "date", Ascending: false},
	})
	require.NoError(t, err)
	assert.Equal(t, "ORDER BY area_type ASC, LOWER(area_name) ASC, date DESC", clause)
}

func TestFormatOrderingRejectsUnknownIdentifier(t *testing.T) {
	catalog := metrics.NewCatalog("PRODUCTION")

	_, err := FormatOrdering(catalog, []OrderClause{{By: "bogusField"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unauthorised ordering parameter 'bogusField'")

	_, err = FormatOrdering(catalog, nil)
	require.Error(t, err)
}
