package handler

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"quickcart/internal/monitor"
	"quickcart/internal/service/payment"
	"quickcart/pkg/log"
	"quickcart/pkg/utils"
)

// WebhookHandler receives payment-gateway notifications. Gateways
// retry on anything but 2xx, so business failures downstream of a
// verified, recorded event are still acknowledged.
type WebhookHandler struct {
	payments payment.Service
	metrics  *monitor.Collector
}

func NewWebhookHandler(payments payment.Service, metrics *monitor.Collector) *WebhookHandler {
	return &WebhookHandler{payments: payments, metrics: metrics}
}

func (h *WebhookHandler) Receive(c *gin.Context) {
	provider := c.Param("provider")
	signature := c.GetHeader("X-Webhook-Signature")

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "could not read body")
		return
	}

	result, err := h.payments.HandleWebhook(c.Request.Context(), provider, signature, body)
	if err != nil {
		if appErr, ok := utils.IsAppError(err); ok && appErr.Code.HTTPStatus() < 500 {
			// Verification and parse failures are the gateway's problem;
			// tell it so and let it retry with a correct request.
			h.metrics.RecordPaymentWebhook(provider, "rejected")
			utils.AppErrorResponse(c, err)
			return
		}
		// The event is recorded; failing here would only cause a redelivery
		// of something we already know about. Log and acknowledge.
		h.metrics.RecordPaymentWebhook(provider, "acked_with_error")
		log.WithComponent("payment").WithError(err).WithField("provider", provider).
			Error("webhook processing failed after recording")
		utils.SuccessResponse(c, gin.H{"received": true})
		return
	}

	if result.Duplicate {
		h.metrics.RecordPaymentWebhook(provider, "duplicate")
	} else {
		h.metrics.RecordPaymentWebhook(provider, "processed")
	}
	utils.SuccessResponse(c, gin.H{"received": true, "duplicate": result.Duplicate})
}
