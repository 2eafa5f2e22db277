package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"course-platform-backend/internal/middleware"
	"course-platform-backend/internal/models"
	"course-platform-backend/internal/service"
	"course-platform-backend/pkg/logger"
)

const (
	signatureHeader     = "X-Paystack-Signature"
	maxWebhookBodyBytes = 1 << 20
)

type PaymentHandler struct {
	paymentService *service.PaymentService
}

func NewPaymentHandler(paymentService *service.PaymentService) *PaymentHandler {
	return &PaymentHandler{paymentService: paymentService}
}

func (h *PaymentHandler) ensureService(c *gin.Context) bool {
	if h == nil || !h.paymentService.Enabled() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": service.ErrPaymentsDisabled.Error()})
		return false
	}
	return true
}

func (h *PaymentHandler) Initiate(c *gin.Context) {
	if !h.ensureService(c) {
		return
	}
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var req models.InitiatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	checkout, err := h.paymentService.Initiate(c.Request.Context(), userID, req)
	if err != nil {
		writeError(c, err)
		return
	}

	status := http.StatusCreated
	if checkout.Reused {
		status = http.StatusOK
	}
	c.JSON(status, gin.H{"checkout": checkout})
}

// Verify reconciles one of the caller's payments. Other users' payments
// are reported as missing.
func (h *PaymentHandler) Verify(c *gin.Context) {
	if !h.ensureService(c) {
		return
	}
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	reference := strings.TrimSpace(c.Param("reference"))
	if reference == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "reference is required"})
		return
	}

	payment, err := h.paymentService.GetByReference(c.Request.Context(), reference)
	if err != nil {
		writeError(c, err)
		return
	}
	if payment.UserID != userID && !middleware.IsAdmin(c) {
		c.JSON(http.StatusNotFound, gin.H{"error": "payment not found"})
		return
	}

	result, err := h.paymentService.Verify(c.Request.Context(), reference)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"payment": models.PaymentVerification{
			Reference:       reference,
			Status:          result.Status,
			AlreadyTerminal: result.AlreadyTerminal,
		},
		"enrolled_course_ids": result.Enrolled,
	})
}

// Webhook always answers 200 so the gateway stops redelivering. Rejected
// and failed deliveries are only logged.
func (h *PaymentHandler) Webhook(c *gin.Context) {
	log := logger.FromContext(c.Request.Context())
	if h == nil || !h.paymentService.Enabled() {
		log.Warn("Webhook received while payments are disabled")
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBodyBytes))
	if err != nil {
		log.WithError(err).Warn("Failed to read webhook body")
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	if err := h.paymentService.HandleWebhook(c.Request.Context(), body, c.GetHeader(signatureHeader)); err != nil {
		entry := log.WithError(err)
		if errors.Is(err, service.ErrSignatureInvalid) {
			entry.Warn("Rejected webhook with invalid signature")
		} else {
			entry.Error("Webhook processing failed")
		}
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}

func (h *PaymentHandler) List(c *gin.Context) {
	if !h.ensureService(c) {
		return
	}
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	payments, err := h.paymentService.ListByUser(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"payments": payments})
}
