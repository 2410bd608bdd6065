package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"quickcart/internal/middleware"
	"quickcart/internal/model"
	"quickcart/internal/monitor"
	"quickcart/internal/service/order"
	"quickcart/pkg/utils"
)

// OrderHandler exposes checkout and the order lifecycle endpoints.
type OrderHandler struct {
	orders    order.Service
	lifecycle order.LifecycleService
	metrics   *monitor.Collector
}

func NewOrderHandler(orders order.Service, lifecycle order.LifecycleService, metrics *monitor.Collector) *OrderHandler {
	return &OrderHandler{orders: orders, lifecycle: lifecycle, metrics: metrics}
}

func checkoutOutcome(err error) string {
	if err == nil {
		return "created"
	}
	var appErr *utils.AppError
	if errors.As(err, &appErr) && appErr.Code == utils.CodeOutOfStock {
		return "out_of_stock"
	}
	return "rejected"
}

type checkoutRequest struct {
	Items         []order.CheckoutItem `json:"items" binding:"required,min=1,dive"`
	PaymentMethod string               `json:"payment_method" binding:"required,oneof=CARD UPI WALLET CASH_ON_DELIVERY"`
	Notes         *string              `json:"notes"`
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

type statusRequest struct {
	Status string  `json:"status" binding:"required"`
	Notes  *string `json:"notes"`
}

type partialFulfillmentRequest struct {
	RemoveItemIDs []uint64 `json:"remove_item_ids" binding:"required,min=1"`
}

func (h *OrderHandler) Checkout(c *gin.Context) {
	var req checkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.AppErrorResponse(c, utils.NewErrorWithErr(utils.CodeInvalidParam, "invalid checkout payload", err))
		return
	}

	created, err := h.orders.Checkout(c.Request.Context(), order.CheckoutInput{
		UserID:        middleware.UserID(c),
		Items:         req.Items,
		PaymentMethod: req.PaymentMethod,
		Notes:         req.Notes,
	})
	h.metrics.RecordCheckout(checkoutOutcome(err))
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}
	utils.CreatedResponse(c, created)
}

func (h *OrderHandler) GetOrder(c *gin.Context) {
	orderID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		utils.AppErrorResponse(c, utils.NewError(utils.CodeInvalidParam, "invalid order id"))
		return
	}

	found, err := h.orders.GetOrder(c.Request.Context(), middleware.UserID(c), orderID)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}
	utils.SuccessResponse(c, found)
}

func (h *OrderHandler) ListOrders(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	orders, total, err := h.orders.ListOrders(c.Request.Context(), middleware.UserID(c), page, pageSize)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}
	utils.SuccessPageResponse(c, orders, total, page, pageSize)
}

func (h *OrderHandler) CancelOrder(c *gin.Context) {
	orderID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		utils.AppErrorResponse(c, utils.NewError(utils.CodeInvalidParam, "invalid order id"))
		return
	}
	var req cancelRequest
	_ = c.ShouldBindJSON(&req)

	if err := h.orders.CancelOrder(c.Request.Context(), middleware.UserID(c), orderID, req.Reason); err != nil {
		utils.AppErrorResponse(c, err)
		return
	}
	utils.SuccessResponse(c, gin.H{"message": "order cancelled"})
}

// UpdateStatus is the fulfillment-side transition endpoint.
func (h *OrderHandler) UpdateStatus(c *gin.Context) {
	orderID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		utils.AppErrorResponse(c, utils.NewError(utils.CodeInvalidParam, "invalid order id"))
		return
	}
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.AppErrorResponse(c, utils.NewErrorWithErr(utils.CodeInvalidParam, "invalid status payload", err))
		return
	}

	actor := "admin:" + strconv.FormatUint(middleware.UserID(c), 10)
	if err := h.orders.UpdateStatus(c.Request.Context(), orderID, model.OrderStatus(req.Status), req.Notes, actor); err != nil {
		utils.AppErrorResponse(c, err)
		return
	}
	utils.SuccessResponse(c, gin.H{"message": "status updated"})
}

func (h *OrderHandler) PartialFulfillment(c *gin.Context) {
	orderID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		utils.AppErrorResponse(c, utils.NewError(utils.CodeInvalidParam, "invalid order id"))
		return
	}
	var req partialFulfillmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.AppErrorResponse(c, utils.NewErrorWithErr(utils.CodeInvalidParam, "invalid fulfillment payload", err))
		return
	}

	actor := "admin:" + strconv.FormatUint(middleware.UserID(c), 10)
	updated, err := h.lifecycle.PartialFulfillment(c.Request.Context(), orderID, req.RemoveItemIDs, actor)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}
	utils.SuccessResponse(c, updated)
}
