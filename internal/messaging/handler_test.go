package messaging

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicbase/clinic-platform/internal/tenancy"
)

func TestStatsReportsCountsPerStatus(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	tenantID := uuid.New()
	mock.ExpectQuery("SELECT status, COUNT").
		WithArgs(tenantID).
		WillReturnRows(pgxmock.NewRows([]string{"status", "count"}).
			AddRow(StatusSent, int64(12)).
			AddRow(StatusFailed, int64(3)))

	h := NewHandler(NewStore(mock), nil)
	scope := tenancy.Scope{TenantID: tenantID, Role: tenancy.RoleAdmin}

	req := httptest.NewRequest(http.MethodGet, "/messages/stats", nil)
	req = req.WithContext(tenancy.WithScope(req.Context(), scope))
	rec := httptest.NewRecorder()
	h.Stats(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"sent": 12, "failed": 3}`, rec.Body.String())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStatsZeroWhenTenantHasNoTraffic(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	tenantID := uuid.New()
	mock.ExpectQuery("SELECT status, COUNT").
		WithArgs(tenantID).
		WillReturnRows(pgxmock.NewRows([]string{"status", "count"}))

	h := NewHandler(NewStore(mock), nil)
	scope := tenancy.Scope{TenantID: tenantID, Role: tenancy.RoleStaff}

	req := httptest.NewRequest(http.MethodGet, "/messages/stats", nil)
	req = req.WithContext(tenancy.WithScope(req.Context(), scope))
	rec := httptest.NewRecorder()
	h.Stats(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"sent": 0, "failed": 0}`, rec.Body.String())
}

func TestStatsRequiresScope(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	h := NewHandler(NewStore(mock), nil)
	rec := httptest.NewRecorder()
	h.Stats(rec, httptest.NewRequest(http.MethodGet, "/messages/stats", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
