package cron

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/renewly/renewly/internal/api/dto"
	"github.com/renewly/renewly/internal/logger"
	"github.com/renewly/renewly/internal/service"
)

// BillingCronHandler handles billing related cron jobs
type BillingCronHandler struct {
	sweepService      *service.SweepService
	dispatchService   *service.DispatchService
	recurringService  *service.RecurringChargeService
	preorderService   *service.PreorderChargeService
	reconcilerService *service.AbandonedAuthService
	logger            *logger.Logger
}

// NewBillingCronHandler creates a new billing cron handler
func NewBillingCronHandler(
	sweepService *service.SweepService,
	dispatchService *service.DispatchService,
	recurringService *service.RecurringChargeService,
	preorderService *service.PreorderChargeService,
	reconcilerService *service.AbandonedAuthService,
	logger *logger.Logger,
) *BillingCronHandler {
	return &BillingCronHandler{
		sweepService:      sweepService,
		dispatchService:   dispatchService,
		recurringService:  recurringService,
		preorderService:   preorderService,
		reconcilerService: reconcilerService,
		logger:            logger,
	}
}

// SweepOverdueSubscriptions runs one discovery pass over overdue subscriptions
func (h *BillingCronHandler) SweepOverdueSubscriptions(c *gin.Context) {
	h.logger.Infow("starting billing sweep cron job", "time", time.Now().UTC().Format(time.RFC3339))

	result, err := h.sweepService.SweepOverdueSubscriptions(c.Request.Context())
	if err != nil {
		h.logger.Errorw("billing sweep failed", "error", err)
		c.Error(err)
		return
	}

	h.logger.Infow("completed billing sweep cron job",
		"scanned", result.Scanned,
		"enqueued", result.Enqueued)
	c.JSON(http.StatusOK, result)
}

// DispatchDueJobs runs scheduled jobs whose time has come
func (h *BillingCronHandler) DispatchDueJobs(c *gin.Context) {
	var req dto.DispatchDueJobsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Errorw("failed to parse request body", "error", err)
		c.Error(err)
		return
	}
	if err := req.Validate(); err != nil {
		c.Error(err)
		return
	}

	result, err := h.dispatchService.DispatchDueJobs(c.Request.Context(), req.Limit)
	if err != nil {
		h.logger.Errorw("job dispatch failed", "error", err)
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// ProcessSubscriptionCharge evaluates and, when due, charges one subscription
func (h *BillingCronHandler) ProcessSubscriptionCharge(c *gin.Context) {
	var req dto.ProcessSubscriptionChargeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Errorw("failed to parse request body", "error", err)
		c.Error(err)
		return
	}
	if err := req.Validate(); err != nil {
		c.Error(err)
		return
	}

	result, err := h.recurringService.ProcessSubscription(c.Request.Context(), req.SubscriptionID, service.ProcessOptions{
		IgnoreConsecutiveFailures: req.IgnoreConsecutiveFailures,
	})
	if err != nil {
		h.logger.Errorw("subscription charge failed",
			"subscription_id", req.SubscriptionID,
			"error", err)
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// AttemptPreorderCharge runs one preorder capture attempt
func (h *BillingCronHandler) AttemptPreorderCharge(c *gin.Context) {
	var req dto.AttemptPreorderChargeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Errorw("failed to parse request body", "error", err)
		c.Error(err)
		return
	}
	if err := req.Validate(); err != nil {
		c.Error(err)
		return
	}

	result, err := h.preorderService.AttemptCharge(c.Request.Context(), req.PreorderID, req.Attempt)
	if err != nil {
		h.logger.Errorw("preorder charge failed",
			"preorder_id", req.PreorderID,
			"error", err)
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// ReconcileAbandonedAuth reconciles a purchase stuck in progress
func (h *BillingCronHandler) ReconcileAbandonedAuth(c *gin.Context) {
	var req dto.ReconcileAbandonedAuthRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Errorw("failed to parse request body", "error", err)
		c.Error(err)
		return
	}
	if err := req.Validate(); err != nil {
		c.Error(err)
		return
	}

	result, err := h.reconcilerService.ReconcilePurchase(c.Request.Context(), req.PurchaseID)
	if err != nil {
		h.logger.Errorw("reconciliation failed",
			"purchase_id", req.PurchaseID,
			"error", err)
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, result)
}
