package dataquery

import (
	"fmt"
	"strings"
	"time"

	"github.com/publichealthengland/coronavirus-dashboard-api/internal/domain/query"
)

// MaxItemsPerResponse is the page size in wide records. The row limit
// passed to the database scales with the number of requested metrics so
// that a full page of long rows pivots into this many wide records.
const MaxItemsPerResponse = 2500

// partitionClasses are the area types stored in dedicated partitions.
// Everything else shares the "other" partition.
var partitionClasses = map[string]bool{
	"utla":     true,
	"ltla":     true,
	"nhstrust": true,
	"msoa":     true,
}

// Plan is a rendered, bindable statement.
type Plan struct {
	SQL       string
	Arguments []any
	Partition string
}

// Planner renders the query templates for one release.
type Planner struct {
	// Environment gates the released-rows guard: DEVELOPMENT sees
	// unreleased data, every other environment does not.
	Environment string

	// Ordering overrides the row ordering clause. Empty means the
	// default area-ascending, date-descending order.
	Ordering string
}

// PartitionID names the table partition for a release date and an area
// type. Date components carry no zero padding.
func PartitionID(release time.Time, areaType string) string {
	class := strings.ToLower(areaType)
	if !partitionClasses[class] {
		class = "other"
	}
	return fmt.Sprintf("%d_%d_%d_%s", release.Year(), release.Month(), release.Day(), class)
}

func (p Planner) filters(parsed *query.Parsed) string {
	filters := parsed.Filters
	if p.Environment != "DEVELOPMENT" {
		filters += " AND rr.released IS TRUE"
	}
	return filters
}

func (p Planner) ordering() string {
	if p.Ordering != "" {
		return p.Ordering
	}
	return "ORDER BY area_code, date DESC"
}

func (p Planner) arguments(parsed *query.Parsed) []any {
	args := make([]any, 0, len(parsed.Arguments)+1)
	args = append(args, parsed.Structure.MetricArray())
	args = append(args, parsed.Arguments...)
	return args
}

// Data plans the paginated GET query.
func (p Planner) Data(parsed *query.Parsed, release time.Time) Plan {
	partition := PartitionID(release, parsed.AreaType)

	limit := MaxItemsPerResponse * parsed.Structure.NonIdentityCount()
	offset := limit * (parsed.Page - 1)

	return Plan{
		SQL:       renderData(partition, p.filters(parsed), limit, offset, p.ordering()),
		Arguments: p.arguments(parsed),
		Partition: partition,
	}
}

// Latest plans the latestBy GET query: all rows for the newest date on
// which the pivot metric has a value.
func (p Planner) Latest(parsed *query.Parsed, release time.Time) Plan {
	partition := PartitionID(release, parsed.AreaType)

	return Plan{
		SQL:       renderLatest(partition, p.filters(parsed), parsed.LatestBy, p.ordering()),
		Arguments: p.arguments(parsed),
		Partition: partition,
	}
}

// Exists plans the HEAD probe.
func (p Planner) Exists(parsed *query.Parsed, release time.Time) Plan {
	partition := PartitionID(release, parsed.AreaType)

	limit := MaxItemsPerResponse * parsed.Structure.NonIdentityCount()
	offset := limit * (parsed.Page - 1)

	return Plan{
		SQL:       renderExists(partition, p.filters(parsed), offset),
		Arguments: p.arguments(parsed),
		Partition: partition,
	}
}

// Count plans the total-records query backing pagination.
func (p Planner) Count(parsed *query.Parsed, release time.Time) Plan {
	partition := PartitionID(release, parsed.AreaType)

	return Plan{
		SQL:       renderCount(partition, p.filters(parsed)),
		Arguments: p.arguments(parsed),
		Partition: partition,
	}
}
