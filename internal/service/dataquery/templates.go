// Package dataquery plans and executes metric queries: it renders the SQL
// templates for a parsed request, routes them to the right table
// partition, and reshapes the long-format rows into the requested
// structure.
package dataquery

import "fmt"

// The templates run against one release partition of the long-format time
// series. The partition id and the filter fragment are substituted into
// the statement text; every user-supplied value is bound positionally,
// with $1 reserved for the metric-name array.

const dataTemplate = `SELECT
    area_code             AS "areaCode",
    ref.area_type         AS "areaType",
    area_name             AS "areaName",
    date::VARCHAR         AS date,
    metric,
    CASE
        WHEN (payload ? 'value') THEN (payload -> 'value')
        ELSE payload::JSONB
    END AS value
FROM covid19.time_series_p%[1]s AS ts
JOIN covid19.metric_reference  AS mr  ON mr.id = metric_id
JOIN covid19.release_reference AS rr  ON rr.id = release_id
JOIN covid19.area_reference    AS ref ON ref.id = area_id
WHERE
      metric = ANY($1::VARCHAR[])
  %[2]s
%[5]s
LIMIT %[3]d OFFSET %[4]d`

// Assumes the data is ordered by date, descending.
const latestTemplate = `SELECT
    area_code             AS "areaCode",
    ref.area_type         AS "areaType",
    area_name             AS "areaName",
    date::VARCHAR         AS date,
    metric,
    CASE
        WHEN (payload ? 'value') THEN (payload -> 'value')
        ELSE payload::JSONB
    END AS value
FROM covid19.time_series_p%[1]s AS ts
    JOIN covid19.metric_reference  AS mr  ON mr.id = metric_id
    JOIN covid19.release_reference AS rr  ON rr.id = release_id
    JOIN covid19.area_reference    AS ref ON ref.id = area_id
WHERE
      metric = ANY($1::VARCHAR[])
  %[2]s
  AND date = (
      SELECT MAX(date)
      FROM covid19.time_series_p%[1]s AS ts
          JOIN covid19.metric_reference  AS mr  ON mr.id = metric_id
          JOIN covid19.release_reference AS rr  ON rr.id = release_id
          JOIN covid19.area_reference    AS ref ON ref.id = area_id
      WHERE
            metric = '%[3]s'
        AND (payload ->> 'value') NOTNULL
        %[2]s
  )
%[4]s`

const existsTemplate = `SELECT TRUE AS exists
FROM covid19.time_series_p%[1]s AS ts
    JOIN covid19.metric_reference  AS mr  ON mr.id = metric_id
    JOIN covid19.release_reference AS rr  ON rr.id = release_id
    JOIN covid19.area_reference    AS ref ON ref.id = area_id
WHERE
      metric = ANY($1::VARCHAR[])
  %[2]s
OFFSET %[3]d
FETCH FIRST 1 ROW ONLY`

const countTemplate = `SELECT COUNT(*) AS count
FROM covid19.time_series_p%[1]s AS ts
    JOIN covid19.metric_reference  AS mr  ON mr.id = metric_id
    JOIN covid19.release_reference AS rr  ON rr.id = release_id
    JOIN covid19.area_reference    AS ref ON ref.id = area_id
WHERE
      metric = ANY($1::VARCHAR[])
  %[2]s`

func renderData(partition, filters string, limit, offset int, ordering string) string {
	return fmt.Sprintf(dataTemplate, partition, filters, limit, offset, ordering)
}

func renderLatest(partition, filters, latestBy, ordering string) string {
	return fmt.Sprintf(latestTemplate, partition, filters, latestBy, ordering)
}

func renderExists(partition, filters string, offset int) string {
	return fmt.Sprintf(existsTemplate, partition, filters, offset)
}

func renderCount(partition, filters string) string {
	return fmt.Sprintf(countTemplate, partition, filters)
}
