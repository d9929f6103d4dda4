package dispute

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/coachwise/coachwise/internal/booking"
	"github.com/coachwise/coachwise/internal/money"
	"github.com/coachwise/coachwise/internal/policy"
	"github.com/coachwise/coachwise/internal/settlement"
	"github.com/coachwise/coachwise/internal/validation"
)

// Handlers exposes the dispute workflow over HTTP. Authentication is an
// external collaborator; requests carry the already-authenticated actor ID
// and the admin route is additionally guarded by a shared secret.
type Handlers struct {
	svc         *Service
	adminSecret string
}

func NewHandlers(svc *Service, adminSecret string) *Handlers {
	return &Handlers{svc: svc, adminSecret: adminSecret}
}

// RegisterRoutes mounts the dispute endpoints under the given group.
func (h *Handlers) RegisterRoutes(rg *gin.RouterGroup) {
	disputes := rg.Group("/disputes")
	{
		disputes.POST("", h.createRefundRequest)
		disputes.GET("/:id", validation.IDParamMiddleware("id"), h.getTicket)
		disputes.POST("/:id/coach-response", validation.IDParamMiddleware("id"), h.coachResponse)
		disputes.POST("/:id/escalate", validation.IDParamMiddleware("id"), h.escalate)
		disputes.POST("/:id/resolve", validation.IDParamMiddleware("id"), h.adminAuth, h.adminResolve)
	}
	bookings := rg.Group("/bookings")
	{
		bookings.GET("/:id/disputes", validation.IDParamMiddleware("id"), h.listByBooking)
		bookings.GET("/:id/cancellation-preview", validation.IDParamMiddleware("id"), h.cancellationPreview)
	}
}

func (h *Handlers) adminAuth(c *gin.Context) {
	if h.adminSecret == "" || c.GetHeader("X-Admin-Secret") != h.adminSecret {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"error":   "forbidden",
			"message": "admin authorization required",
		})
	}
}

type amountBody struct {
	Cents    int64  `json:"cents" binding:"min=0"`
	Currency string `json:"currency" binding:"required"`
}

func (a amountBody) money() money.Money { return money.New(a.Cents, a.Currency) }

type createRequest struct {
	ClientID  string     `json:"clientId" binding:"required"`
	BookingID string     `json:"bookingId" binding:"required"`
	Reason    string     `json:"reason" binding:"required"`
	Requested amountBody `json:"requestedRefund" binding:"required"`
	Escalate  bool       `json:"escalate"`
}

func (h *Handlers) createRefundRequest(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	req.Reason = validation.SanitizeNote(req.Reason)

	t, err := h.svc.CreateRefundRequest(c.Request.Context(),
		req.ClientID, req.BookingID, req.Reason, req.Requested.money(), req.Escalate)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, t)
}

func (h *Handlers) getTicket(c *gin.Context) {
	t, err := h.svc.GetTicket(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *Handlers) listByBooking(c *gin.Context) {
	tickets, err := h.svc.ListByBooking(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	if tickets == nil {
		tickets = []*Ticket{}
	}
	c.JSON(http.StatusOK, gin.H{"disputes": tickets, "count": len(tickets)})
}

type coachResponseRequest struct {
	CoachID  string      `json:"coachId" binding:"required"`
	Decision string      `json:"decision" binding:"required,oneof=approve decline"`
	Approved *amountBody `json:"approvedAmount"`
	Message  string      `json:"message"`
}

func (h *Handlers) coachResponse(c *gin.Context) {
	var req coachResponseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	var approved money.Money
	if req.Approved != nil {
		approved = req.Approved.money()
	}

	t, err := h.svc.RespondAsCoach(c.Request.Context(),
		req.CoachID, c.Param("id"), CoachDecision(req.Decision),
		approved, validation.SanitizeNote(req.Message))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

type escalateRequest struct {
	ClientID string `json:"clientId" binding:"required"`
	Reason   string `json:"reason" binding:"required"`
}

func (h *Handlers) escalate(c *gin.Context) {
	var req escalateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	t, err := h.svc.EscalateAsClient(c.Request.Context(),
		req.ClientID, c.Param("id"), validation.SanitizeNote(req.Reason))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

type adminResolveRequest struct {
	AdminID       string     `json:"adminId" binding:"required"`
	Decision      string     `json:"decision" binding:"required,oneof=approve deny"`
	FinalAmount   amountBody `json:"finalAmount"`
	PolicyApplied string     `json:"policyApplied"`
	Notes         string     `json:"notes"`
}

func (h *Handlers) adminResolve(c *gin.Context) {
	var req adminResolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	t, err := h.svc.ResolveAsAdmin(c.Request.Context(),
		req.AdminID, c.Param("id"), AdminDecision(req.Decision),
		req.FinalAmount.money(), req.PolicyApplied, validation.SanitizeNote(req.Notes))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *Handlers) cancellationPreview(c *gin.Context) {
	now := time.Now().UTC()
	if at := c.Query("at"); at != "" {
		parsed, err := time.Parse(time.RFC3339, at)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_request",
				"message": "at must be RFC 3339",
			})
			return
		}
		now = parsed.UTC()
	}

	outcome, err := h.svc.EvaluateCancellation(c.Request.Context(), c.Param("id"), now)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, outcome)
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
}

// writeError maps workflow errors onto HTTP statuses. Conflict errors tell
// the caller to re-fetch and retry; settlement failures are retryable as a
// whole operation; an inconsistency is terminal and operator-facing.
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrValidation), errors.Is(err, policy.ErrInvalidPolicy),
		errors.Is(err, money.ErrNegativeAmount), errors.Is(err, money.ErrInvalidCurrency),
		errors.Is(err, money.ErrCurrencyMismatch):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
	case errors.Is(err, ErrTicketNotFound), errors.Is(err, booking.ErrBookingNotFound),
		errors.Is(err, policy.ErrPolicyNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": err.Error()})
	case errors.Is(err, ErrUnauthorized):
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden", "message": err.Error()})
	case errors.Is(err, ErrDuplicateActiveDispute):
		c.JSON(http.StatusConflict, gin.H{"error": "duplicate_active_dispute", "message": err.Error()})
	case errors.Is(err, ErrConcurrentModification):
		c.JSON(http.StatusConflict, gin.H{"error": "concurrent_modification", "message": err.Error()})
	case errors.Is(err, ErrInvalidStatus):
		c.JSON(http.StatusConflict, gin.H{"error": "invalid_status", "message": err.Error()})
	case errors.Is(err, ErrInvalidRefundAmount):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "invalid_refund_amount", "message": err.Error()})
	case errors.Is(err, ErrEscalationWindowClosed):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "escalation_window_closed", "message": err.Error()})
	case errors.Is(err, booking.ErrPaymentContextMissing):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "payment_context_missing", "message": err.Error()})
	case errors.Is(err, ErrSettlementFailed), errors.Is(err, settlement.ErrGatewayUnavailable):
		c.JSON(http.StatusBadGateway, gin.H{"error": "settlement_failed", "message": err.Error()})
	case errors.Is(err, ErrSettlementInconsistent):
		c.JSON(http.StatusInternalServerError, gin.H{"error": "settlement_inconsistent", "message": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "an unexpected error occurred"})
	}
}
