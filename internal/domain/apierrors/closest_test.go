package apierrors

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClosestMatch(t *testing.T) {
	options := []string{
		"areaType",
		"areaName",
		"areaCode",
		"newCasesByPublishDate",
		"cumCasesByPublishDate",
	}

	tests := []struct {
		value string
		want  string
	}{
		{"areaNam", "areaName"},
		{"areatype", "areaType"},
		{"newCasesByPublishDat", "newCasesByPublishDate"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			assert.Equal(t, tt.want, ClosestMatch(tt.value, options))
		})
	}
}

func TestSimilarityRatio(t *testing.T) {
	assert.Equal(t, 1.0, similarity("date", "date"))
	assert.Zero(t, similarity("date", ""))

	// 2 * LCS("abcd", "abef") / 8 = 0.5
	assert.InDelta(t, 0.5, similarity("abcd", "abef"), 1e-9)
}
