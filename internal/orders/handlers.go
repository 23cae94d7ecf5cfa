package orders

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Yacineooak/ReatilBot-Factory/internal/fraud"
	"github.com/Yacineooak/ReatilBot-Factory/internal/validation"
	"github.com/Yacineooak/ReatilBot-Factory/internal/verification"
)

// Handler provides HTTP endpoints for COD order operations.
type Handler struct {
	service   *Service
	analytics *fraud.Analytics
}

// NewHandler creates a new order handler.
func NewHandler(service *Service, analytics *fraud.Analytics) *Handler {
	return &Handler{service: service, analytics: analytics}
}

// RegisterRoutes sets up order routes under the given group.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	orders := r.Group("/cod-orders")
	orders.GET("", h.ListOrders)
	orders.POST("", h.CreateOrder)
	orders.POST("/fraud-report", h.ReportFraud)
	orders.GET("/risk-analysis", h.RiskAnalysis)
	orders.GET("/cities-analysis", h.CitiesAnalysis)
	orders.GET("/verification-stats", h.VerificationStats)

	withID := orders.Group("/:orderId", validation.OrderIDParamMiddleware())
	withID.GET("", h.GetOrder)
	withID.PUT("/status", h.UpdateStatus)
	withID.POST("/verify", h.StartVerification)
	withID.POST("/verify/code", h.SubmitCode)
	withID.GET("/verification", h.VerificationState)
	withID.DELETE("/verification", h.CancelVerification)
}

// CreateOrder handles POST /v1/cod-orders
func (h *Handler) CreateOrder(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	order, initiation, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		var verrs validation.ValidationErrors
		switch {
		case errors.As(err, &verrs):
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "validation_error",
				"message": verrs.Error(),
				"details": verrs,
			})
		case errors.Is(err, ErrDuplicateOrder):
			c.JSON(http.StatusConflict, gin.H{
				"error":   "duplicate_order",
				"message": "An order with this id already exists",
			})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   "internal_error",
				"message": "Failed to create order",
			})
		}
		return
	}

	resp := gin.H{"order": order}
	if initiation != nil {
		resp["verification"] = initiation
	}
	c.JSON(http.StatusCreated, resp)
}

// GetOrder handles GET /v1/cod-orders/:orderId
func (h *Handler) GetOrder(c *gin.Context) {
	order, err := h.service.Get(c.Request.Context(), c.Param("orderId"))
	if err != nil {
		h.orderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": order})
}

// ListOrders handles GET /v1/cod-orders
func (h *Handler) ListOrders(c *gin.Context) {
	var f Filter

	if level := c.Query("riskLevel"); level != "" {
		parsed, err := fraud.ParseRiskLevel(level)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_risk_level",
				"message": err.Error(),
			})
			return
		}
		f.RiskLevel = parsed
	}
	if status := c.Query("status"); status != "" {
		parsed, err := ParseStatus(status)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_status",
				"message": err.Error(),
			})
			return
		}
		f.Status = parsed
	}
	f.City = c.Query("city")
	if v := c.Query("verificationRequired"); v != "" {
		required := v == "true"
		f.VerificationRequired = &required
	}
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			f.Limit = parsed
		}
	}
	if o := c.Query("offset"); o != "" {
		if parsed, err := strconv.Atoi(o); err == nil && parsed > 0 {
			f.Offset = parsed
		}
	}

	orders, err := h.service.List(c.Request.Context(), f)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to list orders",
		})
		return
	}
	if orders == nil {
		orders = []*Order{}
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders, "count": len(orders)})
}

// UpdateStatus handles PUT /v1/cod-orders/:orderId/status
func (h *Handler) UpdateStatus(c *gin.Context) {
	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	status, err := ParseStatus(req.Status)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_status",
			"message": err.Error(),
		})
		return
	}

	order, err := h.service.UpdateStatus(c.Request.Context(), c.Param("orderId"), status)
	if err != nil {
		h.orderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": order})
}

// ReportFraud handles POST /v1/cod-orders/fraud-report
func (h *Handler) ReportFraud(c *gin.Context) {
	var req FraudReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	order, err := h.service.ReportFraud(c.Request.Context(), req)
	if err != nil {
		h.orderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": order})
}

// StartVerification handles POST /v1/cod-orders/:orderId/verify
func (h *Handler) StartVerification(c *gin.Context) {
	var req VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	res, err := h.service.StartVerification(c.Request.Context(), c.Param("orderId"), req.Method)
	if err != nil {
		var derr *verification.DispatchError
		switch {
		case errors.Is(err, verification.ErrInvalidMethod):
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_method",
				"message": err.Error(),
			})
		case errors.Is(err, ErrAlreadyVerified):
			c.JSON(http.StatusConflict, gin.H{
				"error":   "already_verified",
				"message": err.Error(),
			})
		case errors.As(err, &derr):
			c.JSON(http.StatusBadGateway, gin.H{
				"error":           "dispatch_failed",
				"message":         "Could not deliver the verification message",
				"suggestedMethod": derr.Suggested,
			})
		default:
			h.orderError(c, err)
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"verification": res})
}

// SubmitCode handles POST /v1/cod-orders/:orderId/verify/code
func (h *Handler) SubmitCode(c *gin.Context) {
	var req SubmitCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	order, err := h.service.SubmitCode(c.Request.Context(), c.Param("orderId"), req.Code)
	if err != nil {
		var mismatch *verification.CodeMismatchError
		switch {
		case errors.As(err, &mismatch):
			c.JSON(http.StatusBadRequest, gin.H{
				"error":             "code_mismatch",
				"message":           "Incorrect verification code",
				"attemptsRemaining": mismatch.Remaining,
			})
		case errors.Is(err, verification.ErrAttemptsExceeded):
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":   "attempts_exceeded",
				"message": "Too many incorrect codes, verification failed",
			})
		case errors.Is(err, verification.ErrExpired):
			c.JSON(http.StatusGone, gin.H{
				"error":   "verification_expired",
				"message": "The verification code expired, request a new one",
			})
		case errors.Is(err, verification.ErrNoChallenge):
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "no_challenge",
				"message": "No active verification for this order",
			})
		default:
			h.orderError(c, err)
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": order, "verified": true})
}

// VerificationState handles GET /v1/cod-orders/:orderId/verification
func (h *Handler) VerificationState(c *gin.Context) {
	report, err := h.service.VerificationState(c.Request.Context(), c.Param("orderId"))
	if err != nil {
		h.orderError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// CancelVerification handles DELETE /v1/cod-orders/:orderId/verification
func (h *Handler) CancelVerification(c *gin.Context) {
	if err := h.service.CancelVerification(c.Request.Context(), c.Param("orderId")); err != nil {
		h.orderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cancelled": true})
}

// RiskAnalysis handles GET /v1/cod-orders/risk-analysis
func (h *Handler) RiskAnalysis(c *gin.Context) {
	since := time.Now().UTC().AddDate(0, 0, -30)
	if raw := c.Query("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_since",
				"message": "since must be an RFC3339 timestamp",
			})
			return
		}
		since = parsed
	}

	breakdown, err := h.analytics.Factors(c.Request.Context(), since)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to compute risk analysis",
		})
		return
	}
	c.JSON(http.StatusOK, breakdown)
}

// CitiesAnalysis handles GET /v1/cod-orders/cities-analysis
func (h *Handler) CitiesAnalysis(c *gin.Context) {
	cities, err := h.analytics.Cities(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to compute city analysis",
		})
		return
	}
	if cities == nil {
		cities = []fraud.CityRisk{}
	}
	c.JSON(http.StatusOK, gin.H{"cities": cities})
}

// VerificationStats handles GET /v1/cod-orders/verification-stats
func (h *Handler) VerificationStats(c *gin.Context) {
	stats, err := h.service.VerificationStats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to compute verification stats",
		})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// orderError maps common order errors onto HTTP responses.
func (h *Handler) orderError(c *gin.Context, err error) {
	if errors.Is(err, ErrOrderNotFound) {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "not_found",
			"message": "Order not found",
		})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{
		"error":   "internal_error",
		"message": err.Error(),
	})
}
