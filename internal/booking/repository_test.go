package booking

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func errNoRows() error { return pgx.ErrNoRows }

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	srv := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: srv.Addr()})
}

func linkRows(link Link) *pgxmock.Rows {
	return pgxmock.NewRows([]string{"id", "tenant_id", "doctor_id", "slug", "active", "created_at"}).
		AddRow(link.ID, link.TenantID, link.DoctorID, link.Slug, link.Active, link.CreatedAt)
}

func TestResolveHitsDatabaseThenCache(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	want := Link{
		ID:        uuid.New(),
		TenantID:  uuid.New(),
		DoctorID:  uuid.New(),
		Slug:      "dr-demir",
		Active:    true,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
	// One database round trip only; the second Resolve must come from Redis.
	mock.ExpectQuery("SELECT id, tenant_id, doctor_id, slug, active, created_at").
		WithArgs("dr-demir").
		WillReturnRows(linkRows(want))

	repo := NewLinkRepository(mock, newTestRedis(t), time.Minute, nil)

	got, err := repo.Resolve(context.Background(), "dr-demir")
	require.NoError(t, err)
	assert.Equal(t, want.TenantID, got.TenantID)
	assert.Equal(t, want.DoctorID, got.DoctorID)

	cached, err := repo.Resolve(context.Background(), "dr-demir")
	require.NoError(t, err)
	assert.Equal(t, want.ID, cached.ID)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestResolveUnknownSlug(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT id, tenant_id, doctor_id, slug, active, created_at").
		WithArgs("nobody").
		WillReturnError(errNoRows())

	repo := NewLinkRepository(mock, nil, time.Minute, nil)

	_, err = repo.Resolve(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrLinkNotFound)
}

func TestResolveWorksWithoutCache(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	want := Link{ID: uuid.New(), TenantID: uuid.New(), DoctorID: uuid.New(), Slug: "walkup", Active: true}
	mock.ExpectQuery("SELECT id, tenant_id, doctor_id, slug, active, created_at").
		WithArgs("walkup").
		WillReturnRows(linkRows(want))

	repo := NewLinkRepository(mock, nil, 0, nil)

	got, err := repo.Resolve(context.Background(), "walkup")
	require.NoError(t, err)
	assert.Equal(t, want.ID, got.ID)
}

func TestInvalidateDropsCachedSlug(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	want := Link{ID: uuid.New(), TenantID: uuid.New(), DoctorID: uuid.New(), Slug: "dr-ada", Active: true}
	mock.ExpectQuery("SELECT id, tenant_id, doctor_id, slug, active, created_at").
		WithArgs("dr-ada").
		WillReturnRows(linkRows(want))
	mock.ExpectQuery("SELECT id, tenant_id, doctor_id, slug, active, created_at").
		WithArgs("dr-ada").
		WillReturnRows(linkRows(want))

	repo := NewLinkRepository(mock, newTestRedis(t), time.Minute, nil)

	_, err = repo.Resolve(context.Background(), "dr-ada")
	require.NoError(t, err)

	repo.Invalidate(context.Background(), "dr-ada")

	_, err = repo.Resolve(context.Background(), "dr-ada")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSlotsUnknownSlugReturns404(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT id, tenant_id, doctor_id, slug, active, created_at").
		WithArgs("ghost").
		WillReturnError(errNoRows())

	repo := NewLinkRepository(mock, nil, time.Minute, nil)

	router := chi.NewRouter()
	router.Get("/public/booking/{slug}/slots", func(w http.ResponseWriter, r *http.Request) {
		h := &Handler{links: repo}
		link, ok := h.resolve(w, r)
		if ok {
			t.Fatalf("unexpected link %v", link)
		}
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/public/booking/ghost/slots", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
