package dataquery

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/publichealthengland/coronavirus-dashboard-api/internal/domain/apierrors"
	"github.com/publichealthengland/coronavirus-dashboard-api/internal/domain/metrics"
	"github.com/publichealthengland/coronavirus-dashboard-api/internal/domain/query"
	"github.com/publichealthengland/coronavirus-dashboard-api/internal/infrastructure/cache"
)

// DefaultQueryTimeout bounds each statement, mirroring the database's
// own statement_timeout.
const DefaultQueryTimeout = 60 * time.Second

// Querier is the subset of pgxpool.Pool the service needs.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Request is one validated data request ready for execution.
type Request struct {
	Method  string
	Parsed  *query.Parsed
	Release time.Time
}

// Result is the shaped outcome of a GET. HEAD requests produce an empty
// frame; latestBy requests carry no pagination.
type Result struct {
	Frame        *Frame
	TotalRecords int
	TotalPages   int
}

// Service plans and runs data queries against one release partition.
type Service struct {
	db            Querier
	planner       Planner
	shaper        *Shaper
	counts        *cache.CountCache
	logger        *zap.Logger
	tracer        trace.Tracer
	queryTimeout  time.Duration
	queryDuration *prometheus.HistogramVec
}

func NewService(db Querier, environment string, catalog *metrics.Catalog,
	counts *cache.CountCache, logger *zap.Logger, reg prometheus.Registerer,
	queryTimeout time.Duration) *Service {

	if queryTimeout <= 0 {
		queryTimeout = DefaultQueryTimeout
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	ordering, err := FormatOrdering(catalog, DefaultOrdering)
	if err != nil {
		logger.Warn("falling back to built-in row ordering", zap.Error(err))
	}

	return &Service{
		db:           db,
		planner:      Planner{Environment: environment, Ordering: ordering},
		shaper:       NewShaper(catalog),
		counts:       counts,
		logger:       logger,
		tracer:       otel.Tracer("dataquery"),
		queryTimeout: queryTimeout,
		queryDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "database_query_duration_seconds",
			Help:    "Duration of data API database queries.",
			Buckets: prometheus.DefBuckets,
		}, []string{"query"}),
	}
}

// Execute runs the request. Requests that yield no rows, and pages past
// the end of the result set, return NotAvailable.
func (s *Service) Execute(ctx context.Context, req *Request) (*Result, error) {
	ctx, span := s.tracer.Start(ctx, "dataquery.Execute",
		trace.WithAttributes(
			attribute.String("request.method", req.Method),
			attribute.String("request.area_type", req.Parsed.AreaType),
		))
	defer span.End()

	if req.Method == "HEAD" {
		return s.executeHead(ctx, req)
	}
	if req.Parsed.LatestBy != "" {
		return s.executeLatest(ctx, req)
	}
	return s.executeData(ctx, req)
}

func (s *Service) executeHead(ctx context.Context, req *Request) (*Result, error) {
	plan := s.planner.Exists(req.Parsed, req.Release)

	var exists bool
	err := s.queryRow(ctx, "exists", plan, &exists)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apierrors.NewNotAvailable()
	}
	if err != nil {
		return nil, fmt.Errorf("running exists query: %w", err)
	}

	return &Result{Frame: &Frame{}}, nil
}

func (s *Service) executeLatest(ctx context.Context, req *Request) (*Result, error) {
	plan := s.planner.Latest(req.Parsed, req.Release)

	rows, err := s.queryRows(ctx, "latest", plan)
	if err != nil {
		return nil, fmt.Errorf("running latest query: %w", err)
	}
	if len(rows) == 0 {
		return nil, apierrors.NewNotAvailable()
	}

	frame := s.shaper.Pivot(rows, req.Parsed.Structure)

	return &Result{Frame: frame, TotalRecords: frame.Length()}, nil
}

func (s *Service) executeData(ctx context.Context, req *Request) (*Result, error) {
	count, err := s.totalRecords(ctx, req)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, apierrors.NewNotAvailable()
	}

	pageSize := MaxItemsPerResponse * req.Parsed.Structure.NonIdentityCount()
	totalPages := int(math.Ceil(float64(count) / float64(pageSize)))

	if req.Parsed.Page > totalPages {
		return nil, apierrors.NewNotAvailable()
	}

	plan := s.planner.Data(req.Parsed, req.Release)

	rows, err := s.queryRows(ctx, "data", plan)
	if err != nil {
		return nil, fmt.Errorf("running data query: %w", err)
	}
	if len(rows) == 0 {
		return nil, apierrors.NewNotAvailable()
	}

	frame := s.shaper.Pivot(rows, req.Parsed.Structure)

	return &Result{
		Frame:        frame,
		TotalRecords: count,
		TotalPages:   totalPages,
	}, nil
}

// totalRecords returns the long-row count for the request, memoised per
// (statement, arguments): counts are immutable within a release.
func (s *Service) totalRecords(ctx context.Context, req *Request) (int, error) {
	plan := s.planner.Count(req.Parsed, req.Release)
	key := cache.Key(plan.SQL, plan.Arguments)

	if count, ok := s.counts.Get(key); ok {
		return count, nil
	}

	var count int
	if err := s.queryRow(ctx, "count", plan, &count); err != nil {
		return 0, fmt.Errorf("running count query: %w", err)
	}

	s.counts.Add(key, count)
	return count, nil
}

func (s *Service) queryRow(ctx context.Context, name string, plan Plan, dest ...any) error {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	start := time.Now()
	err := s.db.QueryRow(ctx, plan.SQL, plan.Arguments...).Scan(dest...)
	s.queryDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())

	return err
}

func (s *Service) queryRows(ctx context.Context, name string, plan Plan) ([]LongRow, error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	start := time.Now()
	rows, err := s.db.Query(ctx, plan.SQL, plan.Arguments...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []LongRow
	for rows.Next() {
		var row LongRow
		if err := rows.Scan(&row.AreaCode, &row.AreaType, &row.AreaName,
			&row.Date, &row.Metric, &row.Value); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	s.queryDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())

	if err := rows.Err(); err != nil {
		return nil, err
	}

	s.logger.Debug("query executed",
		zap.String("query", name),
		zap.String("partition", plan.Partition),
		zap.Int("rows", len(out)))

	return out, nil
}
