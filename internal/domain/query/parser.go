package query

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/publichealthengland/coronavirus-dashboard-api/internal/domain/apierrors"
	"github.com/publichealthengland/coronavirus-dashboard-api/internal/domain/metrics"
)

const (
	// MaxQueryParams caps the number of filter predicates per request.
	MaxQueryParams = 5
	// MaxDateQueries caps date-equality predicates: the data is
	// partitioned by date, so a second date pin can never match.
	MaxDateQueries = 1
)

var (
	structurePattern = regexp.MustCompile(`(&?structure=([^&]+))&?`)
	formatPattern    = regexp.MustCompile(`(&?format=(json|csv|xml))&?`)
	latestByPattern  = regexp.MustCompile(`(?i)(&?latestBy=([a-z2356780]{2,75}))&?`)
	pagePattern      = regexp.MustCompile(`(&?page=([^&]*))&?`)
	filterPattern    = regexp.MustCompile(`filters=([^&]+)(&|$)`)
	pageValuePattern = regexp.MustCompile(`^\d{1,3}$`)

	tokenPattern = regexp.MustCompile(
		`(?i)(?P<name>[a-z]{2,75})` +
			`(?P<operator>[<>!]?=?)` +
			`(?P<value>[a-z0-9,'.\-()\s]{1,75})` +
			`(?P<connector>[;|]?)`,
	)
)

// restrictedParameterValues is the per-identifier disclosure allow-list.
// Empty means unrestricted. Values are compared lowercase.
var restrictedParameterValues = map[string][]string{}

// FilterPredicate is one raw filter expression, echoed back to the caller
// in the response payload.
type FilterPredicate struct {
	Identifier string `json:"identifier"`
	Operator   string `json:"operator"`
	Value      string `json:"value"`
}

// Parsed is a fully validated data request.
type Parsed struct {
	Structure  *Structure
	Format     string
	LatestBy   string
	Page       int
	RawFilters []FilterPredicate

	// Filters is the SQL fragment appended to the templates' WHERE
	// clause. It begins with "AND " and binds placeholders from $2;
	// $1 is reserved for the metric array.
	Filters   string
	Arguments []any

	// AreaType is the canonical area type pinned by the filters. It
	// selects the table partition.
	AreaType string
}

// Parse validates a raw URL query string. Parameters are stripped one by
// one (structure, format, latestBy, page) and the residual string feeds
// the filter tokeniser.
func Parse(rawQuery string, catalog *metrics.Catalog) (*Parsed, error) {
	p := &Parsed{Page: 1, Format: "json"}
	residual := rawQuery

	var err error
	residual, err = p.extractStructure(residual, catalog)
	if err != nil {
		return nil, err
	}

	residual = p.extractFormat(residual)

	residual, err = p.extractLatestBy(residual, catalog)
	if err != nil {
		return nil, err
	}

	var pagePresent bool
	residual, pagePresent, err = p.extractPage(residual)
	if err != nil {
		return nil, err
	}

	if p.LatestBy != "" && pagePresent {
		return nil, apierrors.NewBadPagination()
	}
	if p.LatestBy != "" && p.Format == "csv" {
		return nil, apierrors.NewInvalidFormat()
	}

	if err := p.extractFilters(residual, catalog); err != nil {
		return nil, err
	}

	return p, nil
}

func (p *Parsed) extractStructure(q string, catalog *metrics.Catalog) (string, error) {
	raw := DefaultStructure

	if m := structurePattern.FindStringSubmatch(q); m != nil {
		q = strings.Replace(q, m[1], "", 1)

		decoded, err := url.QueryUnescape(m[2])
		if err != nil {
			return q, apierrors.NewInvalidStructure().WithCause(err)
		}
		raw = decoded
	}

	structure, err := ParseStructure(raw, catalog)
	if err != nil {
		return q, err
	}

	p.Structure = structure
	return q, nil
}

func (p *Parsed) extractFormat(q string) string {
	m := formatPattern.FindStringSubmatch(q)
	if m == nil {
		return q
	}

	p.Format = m[2]
	return strings.Replace(q, m[1], "", 1)
}

func (p *Parsed) extractLatestBy(q string, catalog *metrics.Catalog) (string, error) {
	m := latestByPattern.FindStringSubmatch(q)
	if m == nil {
		return q, nil
	}

	q = strings.Replace(q, m[1], "", 1)
	param := m[2]

	if !metrics.IsDateIdentifier(param) && !catalog.Contains(param) {
		return q, apierrors.NewInvalidQueryParameter("latestBy", "=", param, catalog.Names())
	}

	p.LatestBy = param
	return q, nil
}

func (p *Parsed) extractPage(q string) (string, bool, error) {
	m := pagePattern.FindStringSubmatch(q)
	if m == nil {
		return q, false, nil
	}

	q = strings.Replace(q, m[1], "", 1)

	if !pageValuePattern.MatchString(m[2]) {
		return q, true, apierrors.NewInvalidQuery()
	}

	page, err := strconv.Atoi(m[2])
	if err != nil || page < 1 {
		return q, true, apierrors.NewInvalidQuery()
	}

	p.Page = page
	return q, true, nil
}

func (p *Parsed) extractFilters(q string, catalog *metrics.Catalog) error {
	var filtersValue string

	if m := filterPattern.FindStringSubmatch(q); m != nil {
		filtersValue = doubleUnescape(m[1])
	}

	var (
		fragment    strings.Builder
		paramNames  []string
		dateQueries int
	)
	fragment.WriteString("AND ")

	tokens := tokenPattern.FindAllStringSubmatch(filtersValue, -1)

	for i, token := range tokens {
		name, operator, value, connector := token[1], token[2], token[3], token[4]
		placeholderIndex := i + 2

		paramNames = append(paramNames, name)

		if allowed, ok := restrictedParameterValues[name]; ok {
			if !contains(allowed, strings.ToLower(value)) {
				return apierrors.NewUnauthorisedRequest(name, operator, value)
			}
		}

		p.RawFilters = append(p.RawFilters, FilterPredicate{
			Identifier: name,
			Operator:   operator,
			Value:      value,
		})

		coerced, err := catalog.Coerce(name, operator, value)
		if err != nil {
			return err
		}

		transformer := metrics.TransformerFor(name)

		bound, err := transformer.Value(coerced)
		if err != nil {
			return err
		}

		if name == "areaType" {
			p.AreaType, _ = bound.(string)
		}

		if metrics.IsDateIdentifier(name) && operator == "=" {
			dateQueries++
			if dateQueries > MaxDateQueries {
				return apierrors.NewRequestTooLarge(MaxDateQueries, "date filter")
			}
		}

		placeholder := transformer.Placeholder(fmt.Sprintf("$%d", placeholderIndex))
		fragment.WriteString(fmt.Sprintf("%s %s %s", transformer.Column(name), operator, placeholder))

		p.Arguments = append(p.Arguments, bound)

		switch connector {
		case ";":
			fragment.WriteString(" AND ")
		case "|":
			fragment.WriteString(" OR ")
		}
	}

	if len(p.Arguments) > MaxQueryParams {
		return apierrors.NewExceedsMaxParameters(MaxQueryParams, len(p.Arguments), paramNames)
	}
	if len(p.Arguments) == 0 {
		return apierrors.NewInvalidQuery()
	}
	if p.AreaType == "" {
		return apierrors.NewMissingFilter()
	}

	p.Filters = fragment.String()
	return nil
}

// doubleUnescape decodes plus signs and percent escapes, then a second
// percent pass for clients that double-encode the filter value.
func doubleUnescape(s string) string {
	if v, err := url.QueryUnescape(s); err == nil {
		s = v
	}
	if v, err := url.PathUnescape(s); err == nil {
		s = v
	}
	return s
}

func contains(list []string, value string) bool {
	for _, item := range list {
		if item == value {
			return true
		}
	}
	return false
}
