package dataquery

import (
	"fmt"
	"strings"

	"github.com/publichealthengland/coronavirus-dashboard-api/internal/domain/metrics"
)

// OrderClause orders result rows by one catalog identifier.
type OrderClause struct {
	By        string
	Ascending bool
}

// DefaultOrdering keys records per area with the newest dates first,
// which the pagination arithmetic and the shaper both rely on.
var DefaultOrdering = []OrderClause{
	{By: "areaCode", Ascending: true},
	{By: "date", Ascending: false},
}

// FormatOrdering renders an ORDER BY clause, mapping each identifier to
// its column expression. Identifiers outside the catalog are rejected.
func FormatOrdering(catalog *metrics.Catalog, orders []OrderClause) (string, error) {
	if len(orders) == 0 {
		return "", fmt.Errorf("empty ordering")
	}

	parts := make([]string, 0, len(orders))
	for _, order := range orders {
		if !catalog.Contains(order.By) && !metrics.IsDateIdentifier(order.By) {
			return "", fmt.Errorf("unauthorised ordering parameter '%s', choices are: %s",
				order.By, strings.Join(catalog.Names(), ", "))
		}

		direction := "DESC"
		if order.Ascending {
			direction = "ASC"
		}
		parts = append(parts, metrics.TransformerFor(order.By).Column(order.By)+" "+direction)
	}

	return "ORDER BY " + strings.Join(parts, ", "), nil
}
