package rest

import (
	"encoding/json"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/publichealthengland/coronavirus-dashboard-api/internal/domain/query"
	"github.com/publichealthengland/coronavirus-dashboard-api/internal/service/dataquery"
)

// responseEnvelope is the JSON body of a successful GET.
type responseEnvelope struct {
	Length         int              `json:"length"`
	MaxPageLimit   int              `json:"maxPageLimit"`
	TotalRecords   int              `json:"totalRecords"`
	Data           *dataquery.Frame `json:"data"`
	RequestPayload requestPayload   `json:"requestPayload"`
	Pagination     *pagination      `json:"pagination,omitempty"`
}

// requestPayload echoes the request back to the caller in parsed form.
type requestPayload struct {
	Structure json.RawMessage         `json:"structure"`
	Filters   []query.FilterPredicate `json:"filters"`
	Page      *int                    `json:"page,omitempty"`
	LatestBy  string                  `json:"latestBy,omitempty"`
}

type pagination struct {
	Current  string  `json:"current"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	First    string  `json:"first"`
	Last     string  `json:"last"`
}

// errorEnvelope is the body of every non-2xx response.
type errorEnvelope struct {
	Response   string `json:"response"`
	StatusCode int    `json:"status_code"`
	Status     string `json:"status"`
}

func newErrorEnvelope(status int, message string) errorEnvelope {
	return errorEnvelope{
		Response:   message,
		StatusCode: status,
		Status:     http.StatusText(status),
	}
}

var pageParamPattern = regexp.MustCompile(`&?page=[^&]*`)

// paginationBase rebuilds the request URL with the page parameter
// stripped, ready for page links to be appended.
func paginationBase(rawQuery string) string {
	stripped := pageParamPattern.ReplaceAllString(rawQuery, "")
	stripped = strings.Trim(strings.ReplaceAll(stripped, "&&", "&"), "&")
	return "/v1/data?" + stripped
}

func buildPagination(rawQuery string, page, totalPages int) *pagination {
	base := paginationBase(rawQuery)

	link := func(p int) string {
		return base + "&page=" + strconv.Itoa(p)
	}

	p := &pagination{
		Current: link(page),
		First:   link(1),
		Last:    link(totalPages),
	}

	if page < totalPages {
		next := link(page + 1)
		p.Next = &next
	}
	if page > 1 {
		previous := link(page - 1)
		p.Previous = &previous
	}

	return p
}
