package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/wfunc/checkout-kiosk/internal/repository"
)

// PickupHandler 取货记录查询处理器
type PickupHandler struct {
	pickupRepo repository.PickupRepository
}

// NewPickupHandler 创建取货记录查询处理器
func NewPickupHandler(pickupRepo repository.PickupRepository) *PickupHandler {
	return &PickupHandler{
		pickupRepo: pickupRepo,
	}
}

// ListPickups 取货扫描记录
// @Summary 取货扫描记录
// @Description 分页查询二维码取货扫描历史
// @Tags Pickups
// @Security Bearer
// @Produce json
// @Param accepted query bool false "只看有效取货码"
// @Param page query int false "页码"
// @Param page_size query int false "每页数量"
// @Success 200 {object} SuccessResponse
// @Failure 401 {object} ErrorResponse
// @Router /api/v1/pickups [get]
func (h *PickupHandler) ListPickups(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	acceptedOnly := false
	if accepted := c.Query("accepted"); accepted != "" {
		acceptedOnly, _ = strconv.ParseBool(accepted)
	}

	pagination := repository.NewPagination(page, pageSize)
	records, err := h.pickupRepo.List(c.Request.Context(), acceptedOnly, pagination)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Code:    "DATABASE_ERROR",
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"pickups":   records,
		"total":     pagination.Total,
		"page":      pagination.Page,
		"page_size": pagination.PageSize,
	})
}
