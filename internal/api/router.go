package api

import (
	"github.com/gin-gonic/gin"
	"github.com/wfunc/checkout-kiosk/internal/kiosk"
	"github.com/wfunc/checkout-kiosk/internal/middleware"
	"github.com/wfunc/checkout-kiosk/internal/models"
	"github.com/wfunc/checkout-kiosk/internal/repository"
	"github.com/wfunc/checkout-kiosk/internal/service"
	ws "github.com/wfunc/checkout-kiosk/internal/websocket"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Router API路由器
type Router struct {
	engine         *gin.Engine
	db             *gorm.DB
	services       *service.Services
	authHandler    *AuthHandler
	statusHandler  *StatusHandler
	orderHandler   *OrderHandler
	alarmHandler   *AlarmHandler
	pickupHandler  *PickupHandler
	wsHandler      *WebSocketHandler
	authMiddleware *middleware.AuthMiddleware
	log            *zap.Logger
}

// NewRouter 创建路由器
func NewRouter(db *gorm.DB, config *service.Config, hub *ws.Hub, state *kiosk.SharedState, log *zap.Logger) *Router {
	// 创建Gin引擎
	engine := gin.New()

	// 全局中间件
	engine.Use(gin.Recovery())
	engine.Use(gin.Logger())

	// 创建服务
	services := service.NewServices(db, config, log)

	// 创建仓储（只读查询由handler直接走仓储）
	orderRepo := repository.NewOrderRepository(db)
	alarmRepo := repository.NewAlarmRepository(db)
	pickupRepo := repository.NewPickupRepository(db)

	// 创建处理器
	authHandler := NewAuthHandler(services.Auth)
	statusHandler := NewStatusHandler(state, hub, orderRepo, alarmRepo, pickupRepo)
	orderHandler := NewOrderHandler(orderRepo)
	alarmHandler := NewAlarmHandler(alarmRepo)
	pickupHandler := NewPickupHandler(pickupRepo)
	wsHandler := NewWebSocketHandler(hub, log)

	// 创建中间件
	authMiddleware := middleware.NewAuthMiddleware(services.Auth)

	router := &Router{
		engine:         engine,
		db:             db,
		services:       services,
		authHandler:    authHandler,
		statusHandler:  statusHandler,
		orderHandler:   orderHandler,
		alarmHandler:   alarmHandler,
		pickupHandler:  pickupHandler,
		wsHandler:      wsHandler,
		authMiddleware: authMiddleware,
		log:            log,
	}

	// 设置路由
	router.setupRoutes()

	return router
}

// setupRoutes 设置路由
func (r *Router) setupRoutes() {
	// 健康检查
	r.engine.GET("/health", r.healthCheck)

	// API v1路由组
	v1 := r.engine.Group("/api/v1")
	{
		// 认证相关路由（不需要认证）
		auth := v1.Group("/auth")
		{
			auth.POST("/login", r.authHandler.Login)
			auth.POST("/refresh", r.authHandler.RefreshToken)

			// 需要认证的路由
			authRequired := auth.Group("")
			authRequired.Use(r.authMiddleware.RequireAuth())
			{
				authRequired.GET("/profile", r.authHandler.GetProfile)
				authRequired.PUT("/password", r.authHandler.UpdatePassword)
			}
		}

		// 终端状态（需要认证）
		status := v1.Group("/status")
		status.Use(r.authMiddleware.RequireAuth())
		{
			status.GET("", r.statusHandler.GetStatus)
			status.GET("/stats", r.statusHandler.GetStats)
		}

		// 订单历史（需要认证）
		orders := v1.Group("/orders")
		orders.Use(r.authMiddleware.RequireAuth())
		{
			orders.GET("", r.orderHandler.ListOrders)
			orders.GET("/:order_no", r.orderHandler.GetOrder)
		}

		// 环境告警（需要认证）
		alarms := v1.Group("/alarms")
		alarms.Use(r.authMiddleware.RequireAuth())
		{
			alarms.GET("", r.alarmHandler.ListAlarms)
			alarms.GET("/active", r.alarmHandler.ListActiveAlarms)
		}

		// 取货记录（需要认证）
		pickups := v1.Group("/pickups")
		pickups.Use(r.authMiddleware.RequireAuth())
		{
			pickups.GET("", r.pickupHandler.ListPickups)
		}

		// 操作员管理（需要管理员权限）
		admin := v1.Group("/admin")
		admin.Use(r.authMiddleware.RequireRole(models.RoleAdmin))
		{
			admin.GET("/operators", r.authHandler.ListOperators)
			admin.PUT("/operators/:id/status", r.authHandler.UpdateOperatorStatus)
		}
	}

	// WebSocket路由（可选认证，匿名连接只读）
	wsGroup := r.engine.Group("/ws")
	wsGroup.Use(r.authMiddleware.OptionalAuth())
	{
		wsGroup.GET("", r.wsHandler.KioskWebSocket)
		wsGroup.GET("/online", r.wsHandler.GetOnlineCount)
	}

	// API文档
	registerOpenAPIRoutes(r.engine)
	registerSwaggerRoutes(r.engine)

	// 404处理
	r.engine.NoRoute(func(c *gin.Context) {
		c.JSON(404, gin.H{
			"code":    "NOT_FOUND",
			"message": "接口不存在",
		})
	})
}

// healthCheck 健康检查
func (r *Router) healthCheck(c *gin.Context) {
	// 检查数据库连接
	sqlDB, err := r.db.DB()
	if err != nil {
		c.JSON(500, gin.H{
			"status":  "unhealthy",
			"message": "数据库连接失败",
		})
		return
	}

	if err := sqlDB.Ping(); err != nil {
		c.JSON(500, gin.H{
			"status":  "unhealthy",
			"message": "数据库ping失败",
		})
		return
	}

	c.JSON(200, gin.H{
		"status":  "healthy",
		"message": "服务运行正常",
	})
}

// Run 运行服务器
func (r *Router) Run(addr string) error {
	r.log.Info("Starting API server", zap.String("address", addr))
	return r.engine.Run(addr)
}

// GetEngine 获取Gin引擎（用于测试）
func (r *Router) GetEngine() *gin.Engine {
	return r.engine
}

// GetServices 获取服务集合（用于启动期初始化）
func (r *Router) GetServices() *service.Services {
	return r.services
}
