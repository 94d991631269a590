package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicbase/clinic-platform/internal/tenancy"
)

const testSecret = "staff-secret"

func signToken(t *testing.T, claims StaffClaims, secret string) string {
	t.Helper()
	claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(time.Hour))
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func protected(t *testing.T, captured *tenancy.Scope) http.Handler {
	t.Helper()
	return StaffJWT(testSecret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		scope, ok := tenancy.ScopeFromContext(r.Context())
		require.True(t, ok)
		*captured = scope
		w.WriteHeader(http.StatusOK)
	}))
}

func TestStaffJWTInstallsScope(t *testing.T) {
	tenantID := uuid.New()
	branchID := uuid.New()
	token := signToken(t, StaffClaims{
		TenantID: tenantID.String(),
		BranchID: branchID.String(),
		Role:     "doctor",
	}, testSecret)

	var scope tenancy.Scope
	req := httptest.NewRequest(http.MethodGet, "/appointments", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	protected(t, &scope).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, tenantID, scope.TenantID)
	assert.Equal(t, branchID, scope.BranchID)
	assert.Equal(t, tenancy.RoleDoctor, scope.Role)
}

func TestStaffJWTDefaultsRoleToStaff(t *testing.T) {
	token := signToken(t, StaffClaims{TenantID: uuid.NewString()}, testSecret)

	var scope tenancy.Scope
	req := httptest.NewRequest(http.MethodGet, "/appointments", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	protected(t, &scope).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, tenancy.RoleStaff, scope.Role)
}

func TestStaffJWTRejections(t *testing.T) {
	cases := []struct {
		name  string
		setup func(r *http.Request)
	}{
		{"missing header", func(r *http.Request) {}},
		{"malformed header", func(r *http.Request) {
			r.Header.Set("Authorization", "Token abc")
		}},
		{"wrong secret", func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer "+signToken(t, StaffClaims{TenantID: uuid.NewString()}, "other"))
		}},
		{"missing tenant", func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer "+signToken(t, StaffClaims{Role: "staff"}, testSecret))
		}},
		{"unknown role", func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer "+signToken(t, StaffClaims{TenantID: uuid.NewString(), Role: "superuser"}, testSecret))
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var scope tenancy.Scope
			req := httptest.NewRequest(http.MethodGet, "/appointments", nil)
			tc.setup(req)
			rec := httptest.NewRecorder()
			protected(t, &scope).ServeHTTP(rec, req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, uuid.Nil, scope.TenantID)
		})
	}
}

func TestStaffJWTDisabledWithoutSecret(t *testing.T) {
	handler := StaffJWT("")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
