package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/publichealthengland/coronavirus-dashboard-api/internal/domain/apierrors"
	"github.com/publichealthengland/coronavirus-dashboard-api/internal/domain/metrics"
	"github.com/publichealthengland/coronavirus-dashboard-api/internal/domain/query"
	"github.com/publichealthengland/coronavirus-dashboard-api/internal/infrastructure/database"
	"github.com/publichealthengland/coronavirus-dashboard-api/internal/service/dataquery"
)

const internalErrorMessage = "An internal error occurred whilst processing your request, please " +
	"try again. If the problem persists, please report as an issue and " +
	"include your request."

// DataExecutor runs a planned data request.
type DataExecutor interface {
	Execute(ctx context.Context, req *dataquery.Request) (*dataquery.Result, error)
}

// ReleaseSource reports the latest data release and database liveness.
type ReleaseSource interface {
	Latest(ctx context.Context) (time.Time, error)
	Ping(ctx context.Context) error
}

// Handler serves the public API surface.
type Handler struct {
	executor DataExecutor
	releases ReleaseSource
	catalog  *metrics.Catalog
	finisher *finisher
	logger   *zap.Logger
	tracer   trace.Tracer
}

func NewHandler(executor DataExecutor, releases ReleaseSource,
	catalog *metrics.Catalog, serverLocation string,
	logger *zap.Logger, tracer trace.Tracer) *Handler {

	return &Handler{
		executor: executor,
		releases: releases,
		catalog:  catalog,
		finisher: newFinisher(serverLocation),
		logger:   logger,
		tracer:   tracer,
	}
}

// handleData serves GET and HEAD /v1/data.
func (h *Handler) handleData(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "rest.handleData")
	defer span.End()

	rawQuery := r.URL.RawQuery

	// Validation comes first: a rejected request never touches the
	// database, and the release lookup is a query on a cold cache.
	parsed, err := query.Parse(rawQuery, h.catalog)
	if err != nil {
		h.writeError(w, r, rawQuery, "json", err)
		return
	}

	release, err := h.releases.Latest(ctx)
	if err != nil {
		if errors.Is(err, database.ErrNoRelease) {
			h.writeError(w, r, rawQuery, parsed.Format, apierrors.NewNotAvailable())
			return
		}
		h.writeError(w, r, rawQuery, parsed.Format, err)
		return
	}

	result, err := h.executor.Execute(ctx, &dataquery.Request{
		Method:  r.Method,
		Parsed:  parsed,
		Release: release,
	})
	if err != nil {
		h.writeError(w, r, rawQuery, parsed.Format, err)
		return
	}

	h.writeResult(w, r, rawQuery, parsed, result, release)
}

func (h *Handler) writeResult(w http.ResponseWriter, r *http.Request, rawQuery string,
	parsed *query.Parsed, result *dataquery.Result, release time.Time) {

	headers := w.Header()
	h.finisher.stampUniversal(headers, parsed.Format)
	h.finisher.stampSuccess(headers, rawQuery, release)

	if r.Method == http.MethodHead {
		_ = h.finisher.write(w, r, http.StatusOK, nil)
		return
	}

	if parsed.Format == "csv" {
		// The header row alone is not a result.
		if result.Frame.Length() == 0 {
			h.writeError(w, r, rawQuery, parsed.Format, apierrors.NewNotAvailable())
			return
		}
		body, err := result.Frame.CSV()
		if err != nil {
			h.writeError(w, r, rawQuery, parsed.Format, err)
			return
		}

		h.finisher.stampCSV(headers, release)
		if err := h.finisher.write(w, r, http.StatusOK, []byte(body)); err != nil {
			h.logger.Warn("writing csv response", zap.Error(err))
		}
		return
	}

	envelope := responseEnvelope{
		Length:       result.Frame.Length(),
		MaxPageLimit: dataquery.MaxItemsPerResponse,
		TotalRecords: result.TotalRecords,
		Data:         result.Frame,
		RequestPayload: requestPayload{
			Structure: json.RawMessage(parsed.Structure.Raw),
			Filters:   parsed.RawFilters,
		},
	}

	if parsed.LatestBy != "" {
		envelope.RequestPayload.LatestBy = parsed.LatestBy
	} else {
		page := parsed.Page
		envelope.RequestPayload.Page = &page
		envelope.Pagination = buildPagination(rawQuery, parsed.Page, result.TotalPages)
	}

	body, err := json.Marshal(envelope)
	if err != nil {
		h.writeError(w, r, rawQuery, parsed.Format, err)
		return
	}

	if err := h.finisher.write(w, r, http.StatusOK, body); err != nil {
		h.logger.Warn("writing response", zap.Error(err))
	}
}

// writeError renders the closed error taxonomy. Anything outside it is
// logged and surfaced as a sanitised 500.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, rawQuery, format string, err error) {
	headers := w.Header()
	h.finisher.stampUniversal(headers, format)

	apiErr, ok := apierrors.As(err)
	if !ok {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			h.logger.Warn("request aborted", zap.Error(err), zap.String("path", r.URL.Path))
		} else {
			h.logger.Error("unhandled error", zap.Error(err), zap.String("path", r.URL.Path))
		}
		apiErr = &apierrors.APIError{
			Code:       "INTERNAL_SERVER_ERROR",
			StatusCode: http.StatusInternalServerError,
			Message:    internalErrorMessage,
		}
	}

	// 204 is a success in all but name: it keeps the cache headers.
	if apiErr.StatusCode == http.StatusNoContent {
		release, releaseErr := h.releases.Latest(r.Context())
		if releaseErr == nil {
			h.finisher.stampSuccess(headers, rawQuery, release)
		}
	}

	body, marshalErr := json.Marshal(newErrorEnvelope(apiErr.StatusCode, apiErr.Message))
	if marshalErr != nil {
		body = nil
	}

	if writeErr := h.finisher.write(w, r, apiErr.StatusCode, body); writeErr != nil {
		h.logger.Warn("writing error response", zap.Error(writeErr))
	}
}

// handleHealthcheck probes the database.
func (h *Handler) handleHealthcheck(w http.ResponseWriter, r *http.Request) {
	h.finisher.stampUniversal(w.Header(), "json")

	if err := h.releases.Ping(r.Context()); err != nil {
		h.logger.Error("healthcheck failed", zap.Error(err))
		body, _ := json.Marshal(newErrorEnvelope(http.StatusInternalServerError, internalErrorMessage))
		_ = h.finisher.write(w, r, http.StatusInternalServerError, body)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_ = h.finisher.write(w, r, http.StatusOK, []byte("ALIVE"))
}

// writeInternalError is the recovery middleware's fallback: it cannot
// assume anything about the request state.
func writeInternalError(w http.ResponseWriter, r *http.Request, f *finisher) {
	f.stampUniversal(w.Header(), "json")
	body, _ := json.Marshal(newErrorEnvelope(http.StatusInternalServerError, internalErrorMessage))
	_ = f.write(w, r, http.StatusInternalServerError, body)
}
