package metrics

import (
	"fmt"
	"strings"
	"time"

	"github.com/publichealthengland/coronavirus-dashboard-api/internal/domain/apierrors"
)

// AreaTypes maps the lowercase area-type token accepted in queries to the
// canonical spelling stored in the database.
var AreaTypes = map[string]string{
	"utla":      "utla",
	"ltla":      "ltla",
	"region":    "region",
	"nhsregion": "nhsRegion",
	"overview":  "overview",
	"nation":    "nation",
	"nhstrust":  "nhsTrust",
}

// Transformer rewrites one filter identifier into its SQL column, adjusts
// the bound value, and optionally wraps the placeholder. Identifiers
// without a dedicated transformer pass through unchanged.
type Transformer struct {
	// Column returns the SQL column expression for the identifier.
	Column func(name string) string
	// Value rewrites the coerced value before binding.
	Value func(value any) (any, error)
	// Placeholder wraps the positional placeholder, e.g. "$2" -> "DATE($2)".
	Placeholder func(placeholder string) string
}

func identityColumn(name string) string   { return name }
func identityValue(v any) (any, error)    { return v, nil }
func identityPlaceholder(p string) string { return p }

var defaultTransformer = Transformer{
	Column:      identityColumn,
	Value:       identityValue,
	Placeholder: identityPlaceholder,
}

var transformers = map[string]Transformer{
	"areaName": {
		Column: func(name string) string {
			return strings.Replace(name, "areaName", "LOWER(area_name)", 1)
		},
		Value: func(v any) (any, error) {
			s, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("areaName value is %T, want string", v)
			}
			return strings.ToLower(s), nil
		},
		Placeholder: identityPlaceholder,
	},
	"areaType": {
		Column: func(name string) string {
			return strings.Replace(name, "areaType", "area_type", 1)
		},
		Value: func(v any) (any, error) {
			s, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("areaType value is %T, want string", v)
			}
			canonical, ok := AreaTypes[strings.ToLower(s)]
			if !ok {
				return nil, apierrors.NewValueNotAcceptable(
					fmt.Sprintf("areaType = %s", s),
					"areaType",
					areaTypePattern,
				)
			}
			return canonical, nil
		},
		Placeholder: identityPlaceholder,
	},
	"areaCode": {
		Column: func(name string) string {
			return strings.Replace(name, "areaCode", "area_code", 1)
		},
		Value: func(v any) (any, error) {
			s, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("areaCode value is %T, want string", v)
			}
			return strings.ToUpper(s), nil
		},
		Placeholder: identityPlaceholder,
	},
	DateParam: {
		Column: identityColumn,
		Value: func(v any) (any, error) {
			s, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("date value is %T, want string", v)
			}
			day, _, _ := strings.Cut(s, "T")
			parsed, err := time.Parse("2006-01-02", day)
			if err != nil {
				return nil, apierrors.NewIncorrectQueryValueType(
					fmt.Sprintf("date = %s", s), "datetime", s,
				).WithCause(err)
			}
			return parsed.Format("2006-01-02"), nil
		},
		Placeholder: func(p string) string { return "DATE(" + p + ")" },
	},
}

const areaTypePattern = `^(utla|ltla|region|nhsRegion|overview|nation|nhsTrust)$`

// TransformerFor returns the transformer for a filter identifier, falling
// back to the pass-through transformer.
func TransformerFor(name string) Transformer {
	if t, ok := transformers[name]; ok {
		return t
	}
	return defaultTransformer
}
