package messaging

import (
	"encoding/json"
	"net/http"

	"github.com/clinicbase/clinic-platform/internal/tenancy"
	"github.com/clinicbase/clinic-platform/pkg/logging"
)

// Handler exposes the staff-facing messaging endpoints.
type Handler struct {
	store  *Store
	logger *logging.Logger
}

// NewHandler creates a messaging handler.
func NewHandler(store *Store, logger *logging.Logger) *Handler {
	if store == nil {
		panic("messaging: store required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{store: store, logger: logger}
}

// Stats handles GET /messages/stats: delivery log counts per status for the
// caller's tenant.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	scope, ok := tenancy.ScopeFromContext(r.Context())
	if !ok {
		http.Error(w, "missing tenant scope", http.StatusUnauthorized)
		return
	}

	counts, err := h.store.CountByStatus(r.Context(), scope.TenantID)
	if err != nil {
		h.logger.Error("failed to load message stats", "error", err, "tenant_id", scope.TenantID)
		http.Error(w, "failed to load message stats", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]int64{
		StatusSent:   counts[StatusSent],
		StatusFailed: counts[StatusFailed],
	})
}
