package rest

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/publichealthengland/coronavirus-dashboard-api/internal/domain/apierrors"
	"github.com/publichealthengland/coronavirus-dashboard-api/internal/domain/metrics"
	"github.com/publichealthengland/coronavirus-dashboard-api/internal/service/dataquery"
)

var testRelease = time.Date(2020, time.November, 20, 15, 0, 1, 0, time.UTC)

type stubExecutor struct {
	result  *dataquery.Result
	err     error
	request *dataquery.Request
}

func (s *stubExecutor) Execute(_ context.Context, req *dataquery.Request) (*dataquery.Result, error) {
	s.request = req
	return s.result, s.err
}

type stubReleases struct {
	release time.Time
	err     error
	pingErr error
	calls   int
}

func (s *stubReleases) Latest(context.Context) (time.Time, error) {
	s.calls++
	return s.release, s.err
}

func (s *stubReleases) Ping(context.Context) error { return s.pingErr }

func newTestHandler(executor DataExecutor) *Handler {
	return NewHandler(
		executor,
		&stubReleases{release: testRelease},
		metrics.NewCatalog("PRODUCTION"),
		"UKS",
		zap.NewNop(),
		otel.Tracer("test"),
	)
}

func gunzip(t *testing.T, body io.Reader) []byte {
	t.Helper()
	r, err := gzip.NewReader(body)
	require.NoError(t, err)
	out, err := io.ReadAll(r)
	require.NoError(t, err)
	return out
}

func defaultResult() *dataquery.Result {
	return &dataquery.Result{
		Frame: &dataquery.Frame{
			Columns: []string{"areaName", "date", "cases"},
			Rows: [][]any{
				{"England", "2020-11-20", int64(511)},
			},
		},
		TotalRecords: 3,
		TotalPages:   1,
	}
}

func TestHandleDataSuccess(t *testing.T) {
	executor := &stubExecutor{result: defaultResult()}
	handler := newTestHandler(executor)

	req := httptest.NewRequest(http.MethodGet,
		"/v1/data?filters=areaType=nation;areaName=England&"+
			"structure=%7B%22areaName%22%3A%22areaName%22%2C%22date%22%3A%22date%22%2C%22cases%22%3A%22newCasesByPublishDate%22%7D",
		nil)
	rec := httptest.NewRecorder()

	handler.handleData(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, "PHE API Service (Unix)", rec.Header().Get("Server"))
	assert.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))
	assert.Equal(t, "PHE-COVID19.v1", rec.Header().Get("X-Phe-Media-Type"))
	assert.Equal(t, "UKS", rec.Header().Get("Phe-Server-Loc"))
	assert.Equal(t, "deny", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t,
		"application/vnd.PHE-COVID19.v1+json; charset=utf-8",
		rec.Header().Get("Content-Type"))
	assert.Equal(t, "public, max-age=90", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "Fri, 20 Nov 2020 15:00:01 GMT", rec.Header().Get("Last-Modified"))
	assert.Contains(t, rec.Header().Get("Content-Location"), "/v1/data?filters=")

	var envelope map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(gunzip(t, rec.Body), &envelope))

	assert.JSONEq(t, `1`, string(envelope["length"]))
	assert.JSONEq(t, `2500`, string(envelope["maxPageLimit"]))
	assert.JSONEq(t, `3`, string(envelope["totalRecords"]))
	assert.JSONEq(t,
		`[{"areaName":"England","date":"2020-11-20","cases":511}]`,
		string(envelope["data"]))
	require.Contains(t, envelope, "pagination")

	// The executor received the parsed request and the release.
	require.NotNil(t, executor.request)
	assert.Equal(t, http.MethodGet, executor.request.Method)
	assert.Equal(t, "nation", executor.request.Parsed.AreaType)
	assert.Equal(t, testRelease, executor.request.Release)
}

func TestHandleDataHeadSuccessIs204(t *testing.T) {
	handler := newTestHandler(&stubExecutor{result: &dataquery.Result{Frame: &dataquery.Frame{}}})

	req := httptest.NewRequest(http.MethodHead, "/v1/data?filters=areaType=nation", nil)
	rec := httptest.NewRecorder()

	handler.handleData(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Zero(t, rec.Body.Len())
	assert.Equal(t, "PHE API Service (Unix)", rec.Header().Get("Server"))
}

func TestHandleDataParserErrors(t *testing.T) {
	tests := []struct {
		name       string
		target     string
		wantStatus int
	}{
		{"invalid query", "/v1/data", http.StatusPreconditionFailed},
		{"missing area type", "/v1/data?filters=areaName=England", http.StatusBadRequest},
		{"unknown parameter", "/v1/data?filters=areaType=nation;areaNam=England",
			http.StatusUnprocessableEntity},
		{"unknown area type", "/v1/data?filters=areaType=county",
			http.StatusExpectationFailed},
		{"bad page", "/v1/data?filters=areaType=nation&page=0",
			http.StatusPreconditionFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := newTestHandler(&stubExecutor{result: defaultResult()})

			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			rec := httptest.NewRecorder()

			handler.handleData(rec, req)

			require.Equal(t, tt.wantStatus, rec.Code)

			var envelope errorEnvelope
			require.NoError(t, json.Unmarshal(gunzip(t, rec.Body), &envelope))
			assert.Equal(t, tt.wantStatus, envelope.StatusCode)
			assert.Equal(t, http.StatusText(tt.wantStatus), envelope.Status)
			assert.NotEmpty(t, envelope.Response)
		})
	}
}

func TestHandleDataRejectedRequestSkipsReleaseLookup(t *testing.T) {
	executor := &stubExecutor{result: defaultResult()}
	releases := &stubReleases{release: testRelease}
	handler := NewHandler(executor, releases, metrics.NewCatalog("PRODUCTION"),
		"UKS", zap.NewNop(), otel.Tracer("test"))

	req := httptest.NewRequest(http.MethodGet, "/v1/data?filters=areaName=England", nil)
	rec := httptest.NewRecorder()

	handler.handleData(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, releases.calls, "rejected request must not query the release table")
	assert.Nil(t, executor.request)
}

func TestHandleDataNoContentHasNoBody(t *testing.T) {
	handler := newTestHandler(&stubExecutor{
		err: apierrors.NewNotAvailable(),
	})

	req := httptest.NewRequest(http.MethodGet, "/v1/data?filters=areaType=nation", nil)
	rec := httptest.NewRecorder()

	handler.handleData(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Zero(t, rec.Body.Len())
	assert.Equal(t, "public, max-age=90", rec.Header().Get("Cache-Control"))
}

func TestHandleDataExecutorFailureIsSanitised(t *testing.T) {
	handler := newTestHandler(&stubExecutor{err: io.ErrUnexpectedEOF})

	req := httptest.NewRequest(http.MethodGet, "/v1/data?filters=areaType=nation", nil)
	rec := httptest.NewRecorder()

	handler.handleData(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var envelope errorEnvelope
	require.NoError(t, json.Unmarshal(gunzip(t, rec.Body), &envelope))
	assert.NotContains(t, envelope.Response, "EOF")
	assert.Contains(t, envelope.Response, "internal error occurred")
}

func TestHandleDataCSV(t *testing.T) {
	handler := newTestHandler(&stubExecutor{result: defaultResult()})

	req := httptest.NewRequest(http.MethodGet,
		"/v1/data?filters=areaType=nation&format=csv", nil)
	rec := httptest.NewRecorder()

	handler.handleData(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t,
		`attachment; filename="data_2020-Nov-20.csv"`,
		rec.Header().Get("Content-Disposition"))

	body := string(gunzip(t, rec.Body))
	assert.Contains(t, body, "areaName,date,cases\n")
	assert.Contains(t, body, "England,2020-11-20,511\n")
}

func TestHandleDataCSVEmptyFrameIsNoContent(t *testing.T) {
	handler := newTestHandler(&stubExecutor{result: &dataquery.Result{
		Frame: &dataquery.Frame{Columns: []string{"areaName", "date", "cases"}},
	}})

	req := httptest.NewRequest(http.MethodGet,
		"/v1/data?filters=areaType=nation&format=csv", nil)
	rec := httptest.NewRecorder()

	handler.handleData(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Zero(t, rec.Body.Len())
}

func TestHandleHealthcheck(t *testing.T) {
	t.Run("alive", func(t *testing.T) {
		handler := newTestHandler(&stubExecutor{})

		req := httptest.NewRequest(http.MethodGet, "/generic/healthcheck", nil)
		rec := httptest.NewRecorder()

		handler.handleHealthcheck(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "ALIVE", string(gunzip(t, rec.Body)))
	})

	t.Run("head is bodiless", func(t *testing.T) {
		handler := newTestHandler(&stubExecutor{})

		req := httptest.NewRequest(http.MethodHead, "/generic/healthcheck", nil)
		rec := httptest.NewRecorder()

		handler.handleHealthcheck(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Zero(t, rec.Body.Len())
	})

	t.Run("database down", func(t *testing.T) {
		handler := NewHandler(&stubExecutor{},
			&stubReleases{release: testRelease, pingErr: io.ErrClosedPipe},
			metrics.NewCatalog("PRODUCTION"), "UKS", zap.NewNop(), otel.Tracer("test"))

		req := httptest.NewRequest(http.MethodGet, "/generic/healthcheck", nil)
		rec := httptest.NewRecorder()

		handler.handleHealthcheck(rec, req)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestBuildPagination(t *testing.T) {
	rawQuery := "filters=areaType=nation&page=2&format=json"

	p := buildPagination(rawQuery, 2, 4)

	assert.Equal(t, "/v1/data?filters=areaType=nation&format=json&page=2", p.Current)
	require.NotNil(t, p.Next)
	assert.Equal(t, "/v1/data?filters=areaType=nation&format=json&page=3", *p.Next)
	require.NotNil(t, p.Previous)
	assert.Equal(t, "/v1/data?filters=areaType=nation&format=json&page=1", *p.Previous)
	assert.Equal(t, "/v1/data?filters=areaType=nation&format=json&page=1", p.First)
	assert.Equal(t, "/v1/data?filters=areaType=nation&format=json&page=4", p.Last)
}

func TestBuildPaginationBoundaries(t *testing.T) {
	p := buildPagination("filters=areaType=nation", 1, 1)

	assert.Nil(t, p.Next)
	assert.Nil(t, p.Previous)
	assert.Equal(t, p.First, p.Last)
}
