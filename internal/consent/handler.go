package consent

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/clinicbase/clinic-platform/internal/tenancy"
	"github.com/clinicbase/clinic-platform/pkg/logging"
)

// Handler exposes the opt-out endpoint.
type Handler struct {
	registry *Registry
	logger   *logging.Logger
}

// NewHandler creates the consent handler.
func NewHandler(registry *Registry, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{registry: registry, logger: logger}
}

type optOutRequest struct {
	Contact string `json:"contact"`
	Channel string `json:"channel"`
	Reason  string `json:"reason"`
}

// OptOut handles POST /optouts. Duplicate requests succeed.
func (h *Handler) OptOut(w http.ResponseWriter, r *http.Request) {
	scope, ok := tenancy.ScopeFromContext(r.Context())
	if !ok {
		http.Error(w, "missing tenant scope", http.StatusUnauthorized)
		return
	}

	var req optOutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	req.Contact = strings.TrimSpace(req.Contact)
	if req.Contact == "" {
		http.Error(w, "contact is required", http.StatusBadRequest)
		return
	}

	if err := h.registry.Revoke(r.Context(), scope.TenantID, req.Contact, req.Channel, req.Reason); err != nil {
		h.logger.Error("opt-out failed", "error", err, "tenant_id", scope.TenantID)
		http.Error(w, "failed to record opt-out", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
