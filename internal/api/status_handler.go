package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wfunc/checkout-kiosk/internal/kiosk"
	"github.com/wfunc/checkout-kiosk/internal/models"
	"github.com/wfunc/checkout-kiosk/internal/repository"
	ws "github.com/wfunc/checkout-kiosk/internal/websocket"
)

// StatusHandler 终端状态处理器
type StatusHandler struct {
	state      *kiosk.SharedState
	hub        *ws.Hub
	orderRepo  repository.OrderRepository
	alarmRepo  repository.AlarmRepository
	pickupRepo repository.PickupRepository
}

// NewStatusHandler 创建终端状态处理器
func NewStatusHandler(
	state *kiosk.SharedState,
	hub *ws.Hub,
	orderRepo repository.OrderRepository,
	alarmRepo repository.AlarmRepository,
	pickupRepo repository.PickupRepository,
) *StatusHandler {
	return &StatusHandler{
		state:      state,
		hub:        hub,
		orderRepo:  orderRepo,
		alarmRepo:  alarmRepo,
		pickupRepo: pickupRepo,
	}
}

// StatusResponse 终端状态响应
type StatusResponse struct {
	State           kiosk.StateSnapshot `json:"state"`
	OnlineOperators int                 `json:"online_operators"`
	ServerTime      int64               `json:"server_time"`
}

// StatsResponse 运营统计响应
type StatsResponse struct {
	TotalPaid       int64 `json:"total_paid"`
	TotalDeclined   int64 `json:"total_declined"`
	RevenueCents24h int64 `json:"revenue_cents_24h"`
	Pickups24h      int64 `json:"pickups_24h"`
	ActiveAlarms    int   `json:"active_alarms"`
}

// GetStatus 终端实时状态
// @Summary 终端实时状态
// @Description 电源、扫码、支付与告警状态快照
// @Tags Status
// @Security Bearer
// @Produce json
// @Success 200 {object} StatusResponse
// @Failure 401 {object} ErrorResponse
// @Router /api/v1/status [get]
func (h *StatusHandler) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, StatusResponse{
		State:           h.state.Snapshot(),
		OnlineOperators: h.hub.GetOnlineCount(),
		ServerTime:      time.Now().Unix(),
	})
}

// GetStats 运营统计
// @Summary 运营统计
// @Description 订单、营收与告警的汇总统计
// @Tags Status
// @Security Bearer
// @Produce json
// @Success 200 {object} StatsResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/status/stats [get]
func (h *StatusHandler) GetStats(c *gin.Context) {
	ctx := c.Request.Context()
	now := time.Now()
	since := now.Add(-24 * time.Hour)

	totalPaid, err := h.orderRepo.CountByStatus(ctx, models.OrderStatusPaid)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Code:    "DATABASE_ERROR",
			Message: err.Error(),
		})
		return
	}

	totalDeclined, err := h.orderRepo.CountByStatus(ctx, models.OrderStatusDeclined)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Code:    "DATABASE_ERROR",
			Message: err.Error(),
		})
		return
	}

	revenue, err := h.orderRepo.SumPaidCents(ctx, since, now)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Code:    "DATABASE_ERROR",
			Message: err.Error(),
		})
		return
	}

	pickups, err := h.pickupRepo.CountSince(ctx, since)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Code:    "DATABASE_ERROR",
			Message: err.Error(),
		})
		return
	}

	active, err := h.alarmRepo.FindActive(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Code:    "DATABASE_ERROR",
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, StatsResponse{
		TotalPaid:       totalPaid,
		TotalDeclined:   totalDeclined,
		RevenueCents24h: revenue,
		Pickups24h:      pickups,
		ActiveAlarms:    len(active),
	})
}
