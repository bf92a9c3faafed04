package dataquery

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/publichealthengland/coronavirus-dashboard-api/internal/domain/metrics"
	"github.com/publichealthengland/coronavirus-dashboard-api/internal/domain/query"
)

// LongRow is one stored observation: a single metric value for one area
// and date. Value carries the raw JSON payload.
type LongRow struct {
	AreaCode string
	AreaType string
	AreaName string
	Date     string
	Metric   string
	Value    []byte
}

// Frame is the wide result: one row per (area, date), one column per
// requested label, in request order.
type Frame struct {
	Columns []string
	Rows    [][]any
}

// Length reports the number of wide records.
func (f *Frame) Length() int {
	return len(f.Rows)
}

// MarshalJSON renders the rows as objects whose keys keep column order.
func (f *Frame) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')

	for i, row := range f.Rows {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteByte('{')

		for j, column := range f.Columns {
			if j > 0 {
				buf.WriteByte(',')
			}

			key, err := json.Marshal(column)
			if err != nil {
				return nil, err
			}
			buf.Write(key)
			buf.WriteByte(':')

			value, err := json.Marshal(row[j])
			if err != nil {
				return nil, err
			}
			buf.Write(value)
		}

		buf.WriteByte('}')
	}

	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// CSV renders the frame as RFC 4180 text with a header row. Floats use
// the %.20g format.
func (f *Frame) CSV() (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(f.Columns); err != nil {
		return "", err
	}

	record := make([]string, len(f.Columns))
	for _, row := range f.Rows {
		for i, value := range row {
			record[i] = csvCell(value)
		}
		if err := w.Write(record); err != nil {
			return "", err
		}
	}

	w.Flush()
	return buf.String(), w.Error()
}

func csvCell(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return fmt.Sprintf("%.20g", v)
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(encoded)
	}
}

// Shaper pivots long rows into wide records, coercing each value to its
// catalog type.
type Shaper struct {
	catalog *metrics.Catalog
}

func NewShaper(catalog *metrics.Catalog) *Shaper {
	return &Shaper{catalog: catalog}
}

type recordKey struct {
	areaCode string
	areaType string
	areaName string
	date     string
}

// Pivot groups rows by (areaCode, areaType, areaName, date) and projects
// them onto the structure's columns. The input arrives ordered by
// area code ascending and date descending, and that order is preserved;
// duplicate (key, metric) pairs keep the first value seen.
func (s *Shaper) Pivot(rows []LongRow, structure *query.Structure) *Frame {
	type record struct {
		key    recordKey
		values map[string]any
	}

	index := make(map[recordKey]*record, len(rows))
	order := make([]*record, 0, len(rows))

	for _, row := range rows {
		key := recordKey{row.AreaCode, row.AreaType, row.AreaName, row.Date}

		rec, ok := index[key]
		if !ok {
			rec = &record{key: key, values: make(map[string]any)}
			index[key] = rec
			order = append(order, rec)
		}

		if _, exists := rec.values[row.Metric]; exists {
			continue
		}
		rec.values[row.Metric] = s.coerce(row.Metric, row.Value)
	}

	columns, sources := projectColumns(structure)

	frame := &Frame{Columns: columns, Rows: make([][]any, 0, len(order))}
	for _, rec := range order {
		row := make([]any, len(sources))
		for i, metric := range sources {
			row[i] = columnValue(rec.key, rec.values, metric)
		}
		frame.Rows = append(frame.Rows, row)
	}

	return frame
}

// projectColumns resolves the output column labels and the metric that
// feeds each. Mapping structures project to the mapped labels only;
// sequences keep the identity columns ahead of the listed metrics.
func projectColumns(structure *query.Structure) (labels, sources []string) {
	if structure.IsMapping {
		for _, e := range structure.Entries {
			labels = append(labels, e.Label)
			sources = append(sources, e.Metric)
		}
		return labels, sources
	}

	identity := []string{"areaCode", "areaType", "areaName", "date"}
	seen := make(map[string]bool, len(identity))

	for _, col := range identity {
		labels = append(labels, col)
		sources = append(sources, col)
		seen[col] = true
	}
	for _, e := range structure.Entries {
		if seen[e.Metric] {
			continue
		}
		seen[e.Metric] = true
		labels = append(labels, e.Label)
		sources = append(sources, e.Metric)
	}
	return labels, sources
}

func columnValue(key recordKey, values map[string]any, metric string) any {
	switch metric {
	case "areaCode":
		return key.areaCode
	case "areaType":
		return key.areaType
	case "areaName":
		return key.areaName
	case "date":
		return key.date
	}

	if v, ok := values[metric]; ok {
		return v
	}
	return nil
}

// coerce converts a raw JSON value to the metric's catalog type. Stored
// floats with an integral value surface as integers when the catalog says
// int; composite payloads that fail to parse surface as an empty array.
func (s *Shaper) coerce(metric string, raw []byte) any {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return nil
	}

	dtype, ok := s.catalog.TypeOf(metric)
	if !ok {
		return genericValue(raw)
	}

	switch dtype {
	case metrics.TypeInt:
		f, err := strconv.ParseFloat(unquote(trimmed), 64)
		if err != nil {
			return nil
		}
		return int64(f)

	case metrics.TypeFloat:
		f, err := strconv.ParseFloat(unquote(trimmed), 64)
		if err != nil {
			return nil
		}
		return f

	case metrics.TypeText, metrics.TypeTimestamp:
		return unquote(trimmed)

	case metrics.TypeJSONArray, metrics.TypeJSONObject:
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return []any{}
		}
		return v

	default:
		return genericValue(raw)
	}
}

func genericValue(raw []byte) any {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	return v
}

func unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		if v, err := strconv.Unquote(s); err == nil {
			return v
		}
	}
	return s
}
