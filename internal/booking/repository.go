package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/clinicbase/clinic-platform/pkg/logging"
)

// DB abstracts the pgx query interface for testing.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// LinkRepository resolves booking-link slugs, caching hot slugs in Redis.
// The cache is an optimization only: with no Redis client every lookup goes
// straight to Postgres.
type LinkRepository struct {
	db     DB
	cache  *redis.Client
	ttl    time.Duration
	logger *logging.Logger
	tracer trace.Tracer
}

// NewLinkRepository creates a slug resolver. cache may be nil.
func NewLinkRepository(db DB, cache *redis.Client, ttl time.Duration, logger *logging.Logger) *LinkRepository {
	if db == nil {
		panic("booking: db required")
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &LinkRepository{
		db:     db,
		cache:  cache,
		ttl:    ttl,
		logger: logger,
		tracer: otel.Tracer("clinic.internal.booking"),
	}
}

func cacheKey(slug string) string {
	return "booking:link:" + slug
}

// Resolve returns the active link for a slug, or ErrLinkNotFound.
// Inactive links are treated the same as missing ones and are not cached.
func (r *LinkRepository) Resolve(ctx context.Context, slug string) (*Link, error) {
	ctx, span := r.tracer.Start(ctx, "booking.resolve_link")
	defer span.End()

	if slug == "" {
		return nil, ErrLinkNotFound
	}

	if link := r.fromCache(ctx, slug); link != nil {
		return link, nil
	}

	query := `
		SELECT id, tenant_id, doctor_id, slug, active, created_at
		FROM booking_links
		WHERE slug = $1 AND active
	`
	var link Link
	err := r.db.QueryRow(ctx, query, slug).Scan(
		&link.ID, &link.TenantID, &link.DoctorID, &link.Slug, &link.Active, &link.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLinkNotFound
		}
		return nil, fmt.Errorf("booking: resolve slug: %w", err)
	}

	r.toCache(ctx, &link)
	return &link, nil
}

func (r *LinkRepository) fromCache(ctx context.Context, slug string) *Link {
	if r.cache == nil {
		return nil
	}
	data, err := r.cache.Get(ctx, cacheKey(slug)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.logger.Warn("booking link cache read failed", "error", err, "slug", slug)
		}
		return nil
	}
	var link Link
	if err := json.Unmarshal(data, &link); err != nil {
		r.logger.Warn("booking link cache entry corrupt", "error", err, "slug", slug)
		return nil
	}
	return &link
}

func (r *LinkRepository) toCache(ctx context.Context, link *Link) {
	if r.cache == nil {
		return
	}
	data, err := json.Marshal(link)
	if err != nil {
		return
	}
	if err := r.cache.Set(ctx, cacheKey(link.Slug), data, r.ttl).Err(); err != nil {
		r.logger.Warn("booking link cache write failed", "error", err, "slug", link.Slug)
	}
}

// Invalidate drops the cached entry for a slug.
func (r *LinkRepository) Invalidate(ctx context.Context, slug string) {
	if r.cache == nil || slug == "" {
		return
	}
	if err := r.cache.Del(ctx, cacheKey(slug)).Err(); err != nil {
		r.logger.Warn("booking link cache delete failed", "error", err, "slug", slug)
	}
}
