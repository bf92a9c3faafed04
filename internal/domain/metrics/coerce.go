package metrics

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/publichealthengland/coronavirus-dashboard-api/internal/domain/apierrors"
)

// Per-type value patterns. A value must contain a match for its metric's
// pattern before conversion is attempted.
var typePatterns = map[SemanticType]*regexp.Regexp{
	TypeText:      regexp.MustCompile(`(?i)[a-z]+`),
	TypeInt:       regexp.MustCompile(`\d{1,7}`),
	TypeFloat:     regexp.MustCompile(`[0-9.]{1,8}`),
	TypeTimestamp: regexp.MustCompile(`\d{4}-\d{2}-\d{2}`),
}

// Pattern strings as they appear in error messages.
var patternTexts = map[SemanticType]string{
	TypeText:      `[a-z]+`,
	TypeInt:       `\d{1,7}`,
	TypeFloat:     `[0-9.]{1,8}`,
	TypeTimestamp: `\d{4}-\d{2}-\d{2}`,
}

// Coerce converts a raw filter value to the type the database expects for
// the named metric. Timestamps keep their string form, suffixed to
// midnight UTC at microsecond precision.
func (c *Catalog) Coerce(name, operator, raw string) (any, error) {
	expression := fmt.Sprintf("%s %s %s", name, operator, raw)

	dtype, ok := c.TypeOf(name)
	if !ok {
		return nil, apierrors.NewInvalidQueryParameter(name, operator, raw, c.Names())
	}

	pattern, ok := typePatterns[dtype]
	if !ok {
		// Composite (list/dict) metrics carry no filterable scalar form,
		// so they are rejected as if absent from the catalog.
		return nil, apierrors.NewInvalidQueryParameter(name, operator, raw, c.Names())
	}

	if !pattern.MatchString(raw) {
		return nil, apierrors.NewValueNotAcceptable(expression, name, patternTexts[dtype])
	}

	switch dtype {
	case TypeInt:
		v, err := strconv.Atoi(raw)
		if err != nil {
			return nil, apierrors.NewIncorrectQueryValueType(expression, dtype.String(), raw)
		}
		return v, nil

	case TypeFloat:
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, apierrors.NewIncorrectQueryValueType(expression, dtype.String(), raw)
		}
		return v, nil

	case TypeTimestamp:
		return raw + "T00:00:00.000000Z", nil

	default:
		return raw, nil
	}
}
