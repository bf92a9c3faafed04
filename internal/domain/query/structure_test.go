package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/publichealthengland/coronavirus-dashboard-api/internal/domain/apierrors"
)

func TestParseStructureMapping(t *testing.T) {
	raw := `{"name":"areaName","caseDate":"date","newCases":"newCasesByPublishDate"}`

	s, err := ParseStructure(raw, testCatalog())
	require.NoError(t, err)

	assert.True(t, s.IsMapping)
	assert.Equal(t, raw, s.Raw)
	assert.Equal(t, []string{"name", "caseDate", "newCases"}, s.Labels())
	assert.Equal(t, []string{"areaName", "date", "newCasesByPublishDate"}, s.MetricArray())
	assert.Equal(t, 1, s.NonIdentityCount())
}

func TestParseStructureSequence(t *testing.T) {
	raw := `["areaName","date","newCasesByPublishDate","cumCasesByPublishDate"]`

	s, err := ParseStructure(raw, testCatalog())
	require.NoError(t, err)

	assert.False(t, s.IsMapping)
	assert.Equal(t,
		[]string{"areaName", "date", "newCasesByPublishDate", "cumCasesByPublishDate"},
		s.Labels())
	assert.Equal(t, 2, s.NonIdentityCount())
}

func TestParseStructureErrors(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		wantCode string
	}{
		{"not json", `newCasesByPublishDate`, "INVALID_STRUCTURE"},
		{"scalar", `"newCasesByPublishDate"`, "INVALID_STRUCTURE"},
		{"nested mapping", `{"cases":{"new":"newCasesByPublishDate"}}`, "INVALID_STRUCTURE"},
		{"nested sequence", `[["newCasesByPublishDate"]]`, "INVALID_STRUCTURE"},
		{"empty mapping", `{}`, "INVALID_STRUCTURE"},
		{"bad label", `{"a":"newCasesByPublishDate"}`, "INVALID_STRUCTURE"},
		{"unknown metric in mapping", `{"cases":"newCasesByPubDate"}`, "INVALID_STRUCTURE_PARAMETER"},
		{"unknown metric in sequence", `["newCasesByPubDate"]`, "INVALID_STRUCTURE_PARAMETER"},
		{
			"too many metrics",
			`["areaType","areaCode","areaName","date","newCasesByPublishDate",` +
				`"cumCasesByPublishDate","newDeaths28DaysByPublishDate",` +
				`"cumDeaths28DaysByPublishDate","newAdmissions"]`,
			"STRUCTURE_TOO_LARGE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseStructure(tt.raw, testCatalog())
			require.Error(t, err)

			apiErr, ok := apierrors.As(err)
			require.True(t, ok)
			assert.Equal(t, tt.wantCode, apiErr.Code)
		})
	}
}

func TestDefaultStructure(t *testing.T) {
	s, err := ParseStructure(DefaultStructure, testCatalog())
	require.NoError(t, err)

	assert.True(t, s.IsMapping)
	assert.Len(t, s.Entries, 8)
	assert.Equal(t, 4, s.NonIdentityCount())
}

func TestInvalidStructureParameterSuggestsClosestMatch(t *testing.T) {
	_, err := ParseStructure(`["newCasesByPubDate"]`, testCatalog())
	require.Error(t, err)

	apiErr, ok := apierrors.As(err)
	require.True(t, ok)
	assert.Contains(t, apiErr.Message, "Did you mean 'newCasesByPublishDate'?")
}
