package service

import (
	"context"

	"github.com/wfunc/checkout-kiosk/internal/models"
)

// AuthService 操作员认证服务接口
type AuthService interface {
	// 登录与令牌
	Login(ctx context.Context, req *LoginRequest) (*AuthResponse, error)
	RefreshToken(ctx context.Context, refreshToken string) (*AuthResponse, error)
	ValidateToken(ctx context.Context, token string) (*TokenClaims, error)

	// 操作员管理
	GetOperator(ctx context.Context, operatorID uint) (*models.Operator, error)
	ListOperators(ctx context.Context, page, pageSize int) ([]*models.Operator, int64, error)
	UpdatePassword(ctx context.Context, operatorID uint, oldPassword, newPassword string) error
	UpdateOperatorStatus(ctx context.Context, operatorID uint, status string) error
	EnsureDefaultOperator(ctx context.Context, username, password string) error
}

// LoginRequest 登录请求
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
	Device   string `json:"device"`
	IP       string `json:"-"` // 客户端IP，由handler设置
}

// AuthResponse 认证响应
type AuthResponse struct {
	Operator     *models.Operator `json:"operator"`
	AccessToken  string           `json:"access_token"`
	RefreshToken string           `json:"refresh_token"`
	ExpiresIn    int64            `json:"expires_in"`
	TokenType    string           `json:"token_type"`
}

// TokenClaims 已验证的令牌信息
type TokenClaims struct {
	OperatorID uint   `json:"operator_id"`
	Username   string `json:"username"`
	Role       string `json:"role"`
	SessionID  string `json:"session_id"`
	IssuedAt   int64  `json:"iat"`
	ExpiresAt  int64  `json:"exp"`
}
