package policy

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/coachwise/coachwise/internal/idgen"
	"github.com/coachwise/coachwise/internal/validation"
)

// Handlers exposes cancellation policy management. Writes are platform-admin
// operations; reads back the client-facing cancellation previews.
type Handlers struct {
	store       Store
	adminSecret string
}

func NewHandlers(store Store, adminSecret string) *Handlers {
	return &Handlers{store: store, adminSecret: adminSecret}
}

func (h *Handlers) RegisterRoutes(rg *gin.RouterGroup) {
	policies := rg.Group("/policies")
	{
		policies.POST("", h.adminAuth, h.create)
		policies.GET("/:id", validation.IDParamMiddleware("id"), h.get)
		policies.PUT("/:id", validation.IDParamMiddleware("id"), h.adminAuth, h.update)
	}
	rg.GET("/coaches/:id/policy", validation.IDParamMiddleware("id"), h.getByCoach)
}

func (h *Handlers) adminAuth(c *gin.Context) {
	if h.adminSecret == "" || c.GetHeader("X-Admin-Secret") != h.adminSecret {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"error":   "forbidden",
			"message": "admin authorization required",
		})
	}
}

type policyBody struct {
	CoachID            string `json:"coachId" binding:"required"`
	MinimumNoticeHours int    `json:"minimumNoticeHours" binding:"min=0"`
	Tiers              []Tier `json:"tiers" binding:"required"`
}

func (h *Handlers) create(c *gin.Context) {
	var req policyBody
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}

	now := time.Now().UTC()
	p := &CancellationPolicy{
		ID:                 idgen.WithPrefix("pol"),
		CoachID:            req.CoachID,
		MinimumNoticeHours: req.MinimumNoticeHours,
		Tiers:              req.Tiers,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := h.store.Create(c.Request.Context(), p); err != nil {
		writePolicyError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (h *Handlers) get(c *gin.Context) {
	p, err := h.store.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writePolicyError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handlers) getByCoach(c *gin.Context) {
	p, err := h.store.GetByCoach(c.Request.Context(), c.Param("id"))
	if err != nil {
		writePolicyError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handlers) update(c *gin.Context) {
	var req policyBody
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}

	p := &CancellationPolicy{
		ID:                 c.Param("id"),
		CoachID:            req.CoachID,
		MinimumNoticeHours: req.MinimumNoticeHours,
		Tiers:              req.Tiers,
		UpdatedAt:          time.Now().UTC(),
	}
	if err := h.store.Update(c.Request.Context(), p); err != nil {
		writePolicyError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func writePolicyError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrPolicyNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": err.Error()})
	case errors.Is(err, ErrInvalidPolicy):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_policy", "message": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "an unexpected error occurred"})
	}
}
