package adaptor

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"astro-events/internal/data/entity"
	"astro-events/internal/dto/request"
	"astro-events/internal/usecase"
	"astro-events/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type RegistrationHandler struct {
	service usecase.RegistrationService
	log     *zap.Logger
}

func NewRegistrationHandler(service usecase.RegistrationService, log *zap.Logger) *RegistrationHandler {
	return &RegistrationHandler{
		service: service,
		log:     log.With(zap.String("handler", "registration")),
	}
}

// CreateRegistration handles POST /api/registrations (protected)
func (h *RegistrationHandler) CreateRegistration(w http.ResponseWriter, r *http.Request) {
	memberID, ok := utils.GetMemberIDFromContext(r.Context())
	if !ok {
		utils.ResponseUnauthorized(w, "Authentication required")
		return
	}

	var req request.CreateRegistrationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ResponseBadRequest(w, "Invalid request body", nil)
		return
	}

	if validationErrors := utils.ValidateStruct(req); len(validationErrors) > 0 {
		utils.ResponseBadRequest(w, "Validation failed", validationErrors)
		return
	}

	checkout, err := h.service.StartCheckout(r.Context(), memberID.String(), &req)
	if err != nil {
		h.handleServiceError(w, err, "create registration")
		return
	}

	utils.ResponseCreated(w, "success", checkout)
}

// CompleteCheckout handles POST /api/registrations/{id}/capture (protected)
func (h *RegistrationHandler) CompleteCheckout(w http.ResponseWriter, r *http.Request) {
	memberID, ok := utils.GetMemberIDFromContext(r.Context())
	if !ok {
		utils.ResponseUnauthorized(w, "Authentication required")
		return
	}

	registrationID := chi.URLParam(r, "id")
	if registrationID == "" {
		utils.ResponseBadRequest(w, "Registration ID is required", nil)
		return
	}

	registration, err := h.service.CompleteCheckout(r.Context(), memberID.String(), registrationID)
	if err != nil {
		h.handleServiceError(w, err, "complete checkout")
		return
	}

	utils.ResponseSuccess(w, "success", registration)
}

// CancelRegistration handles DELETE /api/registrations/{id} (protected)
func (h *RegistrationHandler) CancelRegistration(w http.ResponseWriter, r *http.Request) {
	memberID, ok := utils.GetMemberIDFromContext(r.Context())
	if !ok {
		utils.ResponseUnauthorized(w, "Authentication required")
		return
	}

	registrationID := chi.URLParam(r, "id")
	if registrationID == "" {
		utils.ResponseBadRequest(w, "Registration ID is required", nil)
		return
	}

	if err := h.service.CancelRegistration(r.Context(), memberID, registrationID); err != nil {
		h.handleServiceError(w, err, "cancel registration")
		return
	}

	utils.ResponseSuccess(w, "success", nil)
}

// GetMemberRegistrations handles GET /api/member/registrations (protected)
func (h *RegistrationHandler) GetMemberRegistrations(w http.ResponseWriter, r *http.Request) {
	memberID, ok := utils.GetMemberIDFromContext(r.Context())
	if !ok {
		utils.ResponseUnauthorized(w, "Authentication required")
		return
	}

	req := &request.PaginatedRequest{
		Page:    1,
		PerPage: 10,
	}

	query := r.URL.Query()
	req.Page = utils.ParseInt(query.Get("page"), 1)
	req.PerPage = utils.ParseInt(query.Get("per_page"), 10)

	registrations, err := h.service.GetMemberRegistrations(r.Context(), memberID.String(), req)
	if err != nil {
		h.handleServiceError(w, err, "get member registrations")
		return
	}

	utils.ResponseSuccess(w, "success", registrations)
}

// ==================== ADMIN METHODS ====================

// GetRegistrationByID handles GET /api/admin/registrations/{id} (admin only)
func (h *RegistrationHandler) GetRegistrationByID(w http.ResponseWriter, r *http.Request) {
	registrationID := chi.URLParam(r, "id")
	if registrationID == "" {
		utils.ResponseBadRequest(w, "Registration ID is required", nil)
		return
	}

	registration, err := h.service.GetRegistrationByID(r.Context(), registrationID)
	if err != nil {
		h.handleServiceError(w, err, "get registration by ID")
		return
	}

	utils.ResponseSuccess(w, "success", registration)
}

// Refund handles POST /api/admin/registrations/{id}/refund (admin only)
func (h *RegistrationHandler) Refund(w http.ResponseWriter, r *http.Request) {
	actorID, ok := utils.GetMemberIDFromContext(r.Context())
	if !ok {
		utils.ResponseUnauthorized(w, "Authentication required")
		return
	}

	registrationID := chi.URLParam(r, "id")
	if registrationID == "" {
		utils.ResponseBadRequest(w, "Registration ID is required", nil)
		return
	}

	var req request.RefundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ResponseBadRequest(w, "Invalid request body", nil)
		return
	}

	if validationErrors := utils.ValidateStruct(req); len(validationErrors) > 0 {
		utils.ResponseBadRequest(w, "Validation failed", validationErrors)
		return
	}

	refund, err := h.service.Refund(r.Context(), actorID, registrationID, &req)
	if err != nil {
		h.handleServiceError(w, err, "refund registration")
		return
	}

	utils.ResponseSuccess(w, "success", refund)
}

// GetAuditTrail handles GET /api/admin/audit/{subjectId} (admin only)
func (h *RegistrationHandler) GetAuditTrail(w http.ResponseWriter, r *http.Request) {
	subjectID := chi.URLParam(r, "subjectId")
	if subjectID == "" {
		utils.ResponseBadRequest(w, "Subject ID is required", nil)
		return
	}

	trail, err := h.service.GetAuditTrail(r.Context(), subjectID)
	if err != nil {
		h.handleServiceError(w, err, "get audit trail")
		return
	}

	utils.ResponseSuccess(w, "success", trail)
}

// handleServiceError maps domain outcomes to HTTP responses. Expected
// outcomes (at capacity, already registered) are conflicts, not errors.
func (h *RegistrationHandler) handleServiceError(w http.ResponseWriter, err error, operation string) {
	errMsg := err.Error()

	switch {
	case errors.Is(err, entity.ErrAtCapacity):
		h.log.Warn(operation+" rejected - event at capacity",
			zap.Error(err),
			zap.String("operation", operation))
		utils.ResponseJSON(w, http.StatusConflict, false, errMsg, nil, nil)

	case errors.Is(err, entity.ErrAlreadyRegistered):
		h.log.Warn(operation+" rejected - already registered",
			zap.Error(err),
			zap.String("operation", operation))
		utils.ResponseJSON(w, http.StatusConflict, false, errMsg, nil, nil)

	case errors.Is(err, entity.ErrNotCapturable),
		errors.Is(err, entity.ErrNotCancellable),
		errors.Is(err, entity.ErrNotRefundable),
		errors.Is(err, entity.ErrAlreadyRefunded):
		h.log.Warn(operation+" rejected - invalid state",
			zap.Error(err),
			zap.String("operation", operation))
		utils.ResponseJSON(w, http.StatusConflict, false, errMsg, nil, nil)

	case errors.Is(err, entity.ErrRefundExceedsPayment):
		h.log.Warn(operation+" rejected - refund exceeds payment",
			zap.Error(err),
			zap.String("operation", operation))
		utils.ResponseBadRequest(w, errMsg, nil)

	case errors.Is(err, entity.ErrPaymentDeclined):
		h.log.Warn(operation+" failed - payment declined",
			zap.Error(err),
			zap.String("operation", operation))
		utils.ResponseJSON(w, http.StatusPaymentRequired, false, errMsg, nil, nil)

	case errors.Is(err, entity.ErrGateway):
		h.log.Error(operation+" failed - gateway error",
			zap.Error(err),
			zap.String("operation", operation))
		utils.ResponseJSON(w, http.StatusBadGateway, false, "Payment provider unavailable", nil, nil)

	case errors.Is(err, entity.ErrNotFound), strings.Contains(errMsg, "not found"):
		h.log.Warn(operation+" failed - not found",
			zap.Error(err),
			zap.String("operation", operation))
		utils.ResponseNotFound(w, errMsg)

	case strings.Contains(errMsg, "validation failed"):
		h.log.Warn(operation+" validation failed",
			zap.Error(err),
			zap.String("operation", operation))
		utils.ResponseBadRequest(w, errMsg, nil)

	case strings.Contains(errMsg, "invalid"):
		h.log.Warn("Invalid input for "+operation,
			zap.Error(err),
			zap.String("operation", operation))
		utils.ResponseBadRequest(w, errMsg, nil)

	case strings.Contains(errMsg, "unauthorized"):
		h.log.Warn(operation+" failed - unauthorized",
			zap.Error(err),
			zap.String("operation", operation))
		utils.ResponseForbidden(w, errMsg)

	case strings.Contains(errMsg, "closed"):
		h.log.Warn(operation+" rejected - registration closed",
			zap.Error(err),
			zap.String("operation", operation))
		utils.ResponseBadRequest(w, errMsg, nil)

	default:
		h.log.Error("Failed to "+operation,
			zap.Error(err),
			zap.String("operation", operation))
		utils.ResponseInternalError(w, "Internal server error")
	}
}
