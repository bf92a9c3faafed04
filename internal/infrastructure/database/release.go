package database

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// releaseCacheTTL bounds how stale the memoised release timestamp may
// get. Releases happen once a day; a minute keeps partition routing
// stable without a per-request lookup.
const releaseCacheTTL = time.Minute

const latestReleaseQuery = `SELECT MAX(timestamp) AS timestamp
FROM covid19.release_reference AS rr
WHERE rr.released IS TRUE`

const latestReleaseAnyQuery = `SELECT MAX(timestamp) AS timestamp
FROM covid19.release_reference AS rr`

// ErrNoRelease is returned when the release reference table is empty.
var ErrNoRelease = errors.New("no release available")

// ReleaseRepository reports the latest data release. It drives partition
// routing, the Last-Modified header and the CSV filename.
type ReleaseRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger

	// includeUnreleased is set in DEVELOPMENT, where pre-release
	// partitions are visible.
	includeUnreleased bool

	mu        sync.Mutex
	cached    time.Time
	fetchedAt time.Time
}

func NewReleaseRepository(db *pgxpool.Pool, environment string, logger *zap.Logger) *ReleaseRepository {
	return &ReleaseRepository{
		db:                db,
		logger:            logger,
		includeUnreleased: environment == "DEVELOPMENT",
	}
}

// Latest returns the newest release timestamp, memoised for a minute.
func (r *ReleaseRepository) Latest(ctx context.Context) (time.Time, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.cached.IsZero() && time.Since(r.fetchedAt) < releaseCacheTTL {
		return r.cached, nil
	}

	sql := latestReleaseQuery
	if r.includeUnreleased {
		sql = latestReleaseAnyQuery
	}

	var timestamp *time.Time
	err := r.db.QueryRow(ctx, sql).Scan(&timestamp)
	if errors.Is(err, pgx.ErrNoRows) || (err == nil && timestamp == nil) {
		return time.Time{}, ErrNoRelease
	}
	if err != nil {
		// Serve the stale value over failing the request.
		if !r.cached.IsZero() {
			r.logger.Warn("release lookup failed, serving cached timestamp", zap.Error(err))
			return r.cached, nil
		}
		return time.Time{}, fmt.Errorf("querying latest release: %w", err)
	}

	r.cached = timestamp.UTC()
	r.fetchedAt = time.Now()

	return r.cached, nil
}

// Ping probes the database. It backs the healthcheck endpoint.
func (r *ReleaseRepository) Ping(ctx context.Context) error {
	var one int
	if err := r.db.QueryRow(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("database probe failed: %w", err)
	}
	return nil
}
