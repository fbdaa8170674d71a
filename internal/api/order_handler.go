package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wfunc/checkout-kiosk/internal/models"
	"github.com/wfunc/checkout-kiosk/internal/repository"
)

// OrderHandler 订单查询处理器
type OrderHandler struct {
	orderRepo repository.OrderRepository
}

// NewOrderHandler 创建订单查询处理器
func NewOrderHandler(orderRepo repository.OrderRepository) *OrderHandler {
	return &OrderHandler{
		orderRepo: orderRepo,
	}
}

// ListOrders 订单列表
// @Summary 订单列表
// @Description 按状态、会话与时间范围分页查询订单
// @Tags Orders
// @Security Bearer
// @Produce json
// @Param status query string false "订单状态 paid/declined/cancelled"
// @Param session_id query string false "结账会话ID"
// @Param start_time query string false "起始时间 RFC3339"
// @Param end_time query string false "结束时间 RFC3339"
// @Param page query int false "页码"
// @Param page_size query int false "每页数量"
// @Success 200 {object} SuccessResponse
// @Failure 401 {object} ErrorResponse
// @Router /api/v1/orders [get]
func (h *OrderHandler) ListOrders(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	query := &repository.OrderQuery{
		Status:     models.OrderStatus(c.Query("status")),
		SessionID:  c.Query("session_id"),
		Pagination: repository.NewPagination(page, pageSize),
	}

	// 时间范围
	if startTime := c.Query("start_time"); startTime != "" {
		if t, err := time.Parse(time.RFC3339, startTime); err == nil {
			query.StartTime = t
		}
	}
	if endTime := c.Query("end_time"); endTime != "" {
		if t, err := time.Parse(time.RFC3339, endTime); err == nil {
			query.EndTime = t
		}
	}

	orders, err := h.orderRepo.Search(c.Request.Context(), query)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Code:    "DATABASE_ERROR",
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"orders":    orders,
		"total":     query.Pagination.Total,
		"page":      query.Pagination.Page,
		"page_size": query.Pagination.PageSize,
	})
}

// GetOrder 订单详情
// @Summary 订单详情
// @Description 按订单号查询订单及商品明细
// @Tags Orders
// @Security Bearer
// @Produce json
// @Param order_no path string true "订单号"
// @Success 200 {object} models.Order
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/orders/{order_no} [get]
func (h *OrderHandler) GetOrder(c *gin.Context) {
	orderNo := c.Param("order_no")

	order, err := h.orderRepo.FindByOrderNo(c.Request.Context(), orderNo)
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Code:    "ORDER_NOT_FOUND",
			Message: "订单不存在",
		})
		return
	}

	c.JSON(http.StatusOK, order)
}
