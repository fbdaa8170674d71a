package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wfunc/checkout-kiosk/internal/models"
	"github.com/wfunc/checkout-kiosk/internal/repository"
)

// AlarmHandler 环境告警查询处理器
type AlarmHandler struct {
	alarmRepo repository.AlarmRepository
}

// NewAlarmHandler 创建环境告警查询处理器
func NewAlarmHandler(alarmRepo repository.AlarmRepository) *AlarmHandler {
	return &AlarmHandler{
		alarmRepo: alarmRepo,
	}
}

// ListAlarms 告警历史
// @Summary 告警历史
// @Description 按类型与时间范围查询环境告警事件
// @Tags Alarms
// @Security Bearer
// @Produce json
// @Param kind query string false "告警类型 overheat/high_humidity"
// @Param active query bool false "只看未解除的告警"
// @Param start_time query string false "起始时间 RFC3339"
// @Param end_time query string false "结束时间 RFC3339"
// @Param limit query int false "返回条数上限"
// @Param offset query int false "偏移量"
// @Success 200 {object} SuccessResponse
// @Failure 401 {object} ErrorResponse
// @Router /api/v1/alarms [get]
func (h *AlarmHandler) ListAlarms(c *gin.Context) {
	query := &models.AlarmQuery{}

	if kind := c.Query("kind"); kind != "" {
		query.Kind = models.AlarmKind(kind)
	}
	if active := c.Query("active"); active != "" {
		query.ActiveOnly, _ = strconv.ParseBool(active)
	}
	if startTime := c.Query("start_time"); startTime != "" {
		if t, err := time.Parse(time.RFC3339, startTime); err == nil {
			query.StartTime = &t
		}
	}
	if endTime := c.Query("end_time"); endTime != "" {
		if t, err := time.Parse(time.RFC3339, endTime); err == nil {
			query.EndTime = &t
		}
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	query.Limit = limit
	query.Offset = offset

	events, err := h.alarmRepo.Search(c.Request.Context(), query)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Code:    "DATABASE_ERROR",
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"alarms": events,
		"count":  len(events),
	})
}

// ListActiveAlarms 未解除的告警
// @Summary 未解除的告警
// @Description 查询当前仍处于触发状态的环境告警
// @Tags Alarms
// @Security Bearer
// @Produce json
// @Success 200 {object} SuccessResponse
// @Failure 401 {object} ErrorResponse
// @Router /api/v1/alarms/active [get]
func (h *AlarmHandler) ListActiveAlarms(c *gin.Context) {
	events, err := h.alarmRepo.FindActive(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Code:    "DATABASE_ERROR",
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"alarms": events,
		"count":  len(events),
	})
}
