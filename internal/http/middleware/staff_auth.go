package middleware

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/clinicbase/clinic-platform/internal/tenancy"
)

// StaffClaims are the HMAC JWT claims carried by staff tokens. Every token
// names its tenant; branch is optional and role defaults to staff.
type StaffClaims struct {
	TenantID string `json:"tenant_id"`
	BranchID string `json:"branch_id,omitempty"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// StaffJWT authenticates staff endpoints and installs the tenancy scope.
// Requests without a resolvable tenant scope are rejected; nothing downstream
// ever runs unscoped.
func StaffJWT(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				http.Error(w, "staff auth disabled", http.StatusUnauthorized)
				return
			}
			auth := r.Header.Get("Authorization")
			if auth == "" || !strings.HasPrefix(auth, "Bearer ") {
				http.Error(w, "missing authorization header", http.StatusUnauthorized)
				return
			}
			tokenString := strings.TrimPrefix(auth, "Bearer ")
			claims := StaffClaims{}
			token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(secret), nil
			})
			if err != nil || !token.Valid {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}

			scope, err := scopeFromClaims(claims)
			if err != nil {
				http.Error(w, "invalid token claims", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(tenancy.WithScope(r.Context(), scope)))
		})
	}
}

func scopeFromClaims(claims StaffClaims) (tenancy.Scope, error) {
	tenantID, err := uuid.Parse(claims.TenantID)
	if err != nil {
		return tenancy.Scope{}, err
	}

	scope := tenancy.Scope{TenantID: tenantID, Role: tenancy.Role(claims.Role)}
	if scope.Role == "" {
		scope.Role = tenancy.RoleStaff
	}
	if !scope.Role.Valid() {
		return tenancy.Scope{}, jwt.ErrTokenInvalidClaims
	}
	if claims.BranchID != "" {
		branchID, err := uuid.Parse(claims.BranchID)
		if err != nil {
			return tenancy.Scope{}, err
		}
		scope.BranchID = branchID
	}
	return scope, nil
}
