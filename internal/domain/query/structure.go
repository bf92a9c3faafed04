// Package query turns the raw URL query of a data request into validated,
// database-ready parts: an ordered response structure, a SQL filter
// fragment with positional arguments, and the page/format/latestBy
// modifiers.
package query

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/publichealthengland/coronavirus-dashboard-api/internal/domain/apierrors"
	"github.com/publichealthengland/coronavirus-dashboard-api/internal/domain/metrics"
)

// MaxStructureLength caps the number of metrics per request.
const MaxStructureLength = 8

// DefaultStructure is used when the request carries no structure parameter.
const DefaultStructure = `{` +
	`"areaType":"areaType",` +
	`"areaCode":"areaCode",` +
	`"areaName":"areaName",` +
	`"date":"date",` +
	`"newCasesByPublishDate":"newCasesByPublishDate",` +
	`"cumCasesByPublishDate":"cumCasesByPublishDate",` +
	`"newDeaths28DaysByPublishDate":"newDeaths28DaysByPublishDate",` +
	`"cumDeaths28DaysByPublishDate":"cumDeaths28DaysByPublishDate"` +
	`}`

var labelPattern = regexp.MustCompile(`^[A-Za-z0-9]{2,75}$`)

// identityColumns are produced by the SQL templates for every row and are
// not counted towards the per-page metric arithmetic.
var identityColumns = map[string]bool{
	"areaCode": true,
	"areaType": true,
	"areaName": true,
	"date":     true,
}

// Entry is one requested column: the output label and the metric that
// populates it. In sequence mode the two are equal.
type Entry struct {
	Label  string
	Metric string
}

// Structure is the validated, order-preserving response structure.
type Structure struct {
	Raw       string
	Entries   []Entry
	IsMapping bool
}

// ParseStructure validates a URL-decoded structure document against the
// metric catalog. Mapping keys keep their request order, which drives both
// the SQL metric array and the response column order.
func ParseStructure(raw string, catalog *metrics.Catalog) (*Structure, error) {
	dec := json.NewDecoder(strings.NewReader(raw))

	tok, err := dec.Token()
	if err != nil {
		return nil, apierrors.NewInvalidStructure().WithCause(err)
	}

	delim, ok := tok.(json.Delim)
	if !ok {
		return nil, apierrors.NewInvalidStructure()
	}

	s := &Structure{Raw: raw}

	switch delim {
	case '[':
		if err := parseSequence(dec, s, catalog); err != nil {
			return nil, err
		}
	case '{':
		s.IsMapping = true
		if err := parseMapping(dec, s, catalog); err != nil {
			return nil, err
		}
	default:
		return nil, apierrors.NewInvalidStructure()
	}

	if len(s.Entries) > MaxStructureLength {
		return nil, apierrors.NewStructureTooLarge(MaxStructureLength, len(s.Entries))
	}
	if len(s.Entries) == 0 {
		return nil, apierrors.NewInvalidStructure()
	}

	return s, nil
}

func parseSequence(dec *json.Decoder, s *Structure, catalog *metrics.Catalog) error {
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return apierrors.NewInvalidStructure().WithCause(err)
		}

		metric, ok := tok.(string)
		if !ok {
			// Nested arrays or non-string members.
			return apierrors.NewInvalidStructure()
		}

		if !catalog.Contains(metric) {
			return apierrors.NewInvalidStructureParameter(metric, "array", catalog.Names())
		}

		s.Entries = append(s.Entries, Entry{Label: metric, Metric: metric})
	}
	return nil
}

func parseMapping(dec *json.Decoder, s *Structure, catalog *metrics.Catalog) error {
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return apierrors.NewInvalidStructure().WithCause(err)
		}

		label, ok := tok.(string)
		if !ok || !labelPattern.MatchString(label) {
			return apierrors.NewInvalidStructure()
		}

		tok, err = dec.Token()
		if err != nil {
			return apierrors.NewInvalidStructure().WithCause(err)
		}

		metric, ok := tok.(string)
		if !ok {
			// Values must be metric names; nesting is rejected here.
			return apierrors.NewInvalidStructure()
		}

		if !catalog.Contains(metric) {
			return apierrors.NewInvalidStructureParameter(metric, "JSON", catalog.Names())
		}

		s.Entries = append(s.Entries, Entry{Label: label, Metric: metric})
	}
	return nil
}

// Labels returns the output column labels in request order.
func (s *Structure) Labels() []string {
	labels := make([]string, len(s.Entries))
	for i, e := range s.Entries {
		labels[i] = e.Label
	}
	return labels
}

// MetricArray returns the unique metric names for the query's metric
// filter, in first-appearance order.
func (s *Structure) MetricArray() []string {
	seen := make(map[string]bool, len(s.Entries))
	out := make([]string, 0, len(s.Entries))
	for _, e := range s.Entries {
		if seen[e.Metric] {
			continue
		}
		seen[e.Metric] = true
		out = append(out, e.Metric)
	}
	return out
}

// NonIdentityCount reports the number of requested metrics excluding the
// identity columns. It is the multiplier in the per-page row arithmetic
// and is never below one.
func (s *Structure) NonIdentityCount() int {
	n := 0
	for _, metric := range s.MetricArray() {
		if !identityColumns[metric] {
			n++
		}
	}
	if n < 1 {
		n = 1
	}
	return n
}
