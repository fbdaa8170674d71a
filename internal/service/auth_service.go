package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/wfunc/checkout-kiosk/internal/models"
	"github.com/wfunc/checkout-kiosk/internal/repository"
	"github.com/wfunc/checkout-kiosk/internal/utils"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrInvalidCredentials = errors.New("用户名或密码错误")
	ErrOperatorNotFound   = errors.New("操作员不存在")
	ErrOperatorDisabled   = errors.New("操作员已被停用")
	ErrInvalidToken       = errors.New("无效的令牌")
	ErrTokenExpired       = errors.New("令牌已过期")
)

// authService 认证服务实现
type authService struct {
	db           *gorm.DB
	operatorRepo repository.OperatorRepository
	jwtManager   *utils.JWTManager
	log          *zap.Logger
}

// NewAuthService 创建认证服务
func NewAuthService(
	db *gorm.DB,
	operatorRepo repository.OperatorRepository,
	jwtManager *utils.JWTManager,
	log *zap.Logger,
) AuthService {
	return &authService{
		db:           db,
		operatorRepo: operatorRepo,
		jwtManager:   jwtManager,
		log:          log,
	}
}

// Login 操作员登录
func (s *authService) Login(ctx context.Context, req *LoginRequest) (*AuthResponse, error) {
	operator, err := s.operatorRepo.FindByUsername(ctx, req.Username)
	if err != nil || operator == nil {
		s.log.Warn("Login failed: operator not found", zap.String("username", req.Username))
		return nil, ErrInvalidCredentials
	}

	// 检查操作员状态
	if operator.Status != models.OperatorStatusActive {
		return nil, ErrOperatorDisabled
	}

	// 验证密码
	valid, err := utils.VerifyPassword(req.Password, operator.Password)
	if err != nil || !valid {
		s.log.Warn("Login failed: invalid password", zap.Uint("operatorID", operator.ID))
		return nil, ErrInvalidCredentials
	}

	sessionID, err := utils.GenerateSessionID()
	if err != nil {
		return nil, fmt.Errorf("生成会话ID失败: %w", err)
	}

	// 生成JWT令牌
	accessToken, err := s.jwtManager.GenerateAccessToken(
		operator.ID, operator.Username, operator.Role, sessionID)
	if err != nil {
		return nil, fmt.Errorf("生成访问令牌失败: %w", err)
	}

	refreshToken, err := s.jwtManager.GenerateRefreshToken(operator.ID, sessionID)
	if err != nil {
		return nil, fmt.Errorf("生成刷新令牌失败: %w", err)
	}

	// 更新登录信息，失败不阻断登录
	if err := s.operatorRepo.UpdateLastLogin(ctx, operator.ID, req.IP); err != nil {
		s.log.Warn("Failed to update last login", zap.Error(err), zap.Uint("operatorID", operator.ID))
	}

	s.log.Info("Operator logged in successfully",
		zap.Uint("operatorID", operator.ID),
		zap.String("username", operator.Username))

	return &AuthResponse{
		Operator:     operator,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.jwtManager.GetTokenExpiry("access").Seconds()),
		TokenType:    "Bearer",
	}, nil
}

// RefreshToken 刷新访问令牌
func (s *authService) RefreshToken(ctx context.Context, refreshToken string) (*AuthResponse, error) {
	claims, err := s.jwtManager.ValidateToken(refreshToken)
	if err != nil {
		return nil, ErrInvalidToken
	}

	if claims.TokenType != "refresh" {
		return nil, errors.New("不是刷新令牌")
	}

	operator, err := s.operatorRepo.FindByID(ctx, claims.OperatorID)
	if err != nil || operator == nil {
		return nil, ErrOperatorNotFound
	}

	if operator.Status != models.OperatorStatusActive {
		return nil, ErrOperatorDisabled
	}

	// 生成新的访问令牌，刷新令牌原样返回
	accessToken, err := s.jwtManager.GenerateAccessToken(
		operator.ID, operator.Username, operator.Role, claims.SessionID)
	if err != nil {
		return nil, fmt.Errorf("生成访问令牌失败: %w", err)
	}

	s.log.Info("Token refreshed successfully", zap.Uint("operatorID", operator.ID))

	return &AuthResponse{
		Operator:     operator,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.jwtManager.GetTokenExpiry("access").Seconds()),
		TokenType:    "Bearer",
	}, nil
}

// ValidateToken 验证访问令牌，并确认操作员仍然有效
func (s *authService) ValidateToken(ctx context.Context, token string) (*TokenClaims, error) {
	claims, err := s.jwtManager.ValidateToken(token)
	if err != nil {
		if errors.Is(err, utils.ErrExpiredToken) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}

	if claims.TokenType != "access" {
		return nil, ErrInvalidToken
	}

	// 令牌本身无状态，操作员状态以数据库为准
	operator, err := s.operatorRepo.FindByID(ctx, claims.OperatorID)
	if err != nil || operator == nil {
		return nil, ErrOperatorNotFound
	}

	if operator.Status != models.OperatorStatusActive {
		return nil, ErrOperatorDisabled
	}

	return &TokenClaims{
		OperatorID: claims.OperatorID,
		Username:   claims.Username,
		Role:       claims.Role,
		SessionID:  claims.SessionID,
		IssuedAt:   claims.IssuedAt.Unix(),
		ExpiresAt:  claims.ExpiresAt.Unix(),
	}, nil
}

// GetOperator 查询操作员信息
func (s *authService) GetOperator(ctx context.Context, operatorID uint) (*models.Operator, error) {
	operator, err := s.operatorRepo.FindByID(ctx, operatorID)
	if err != nil {
		return nil, ErrOperatorNotFound
	}
	return operator, nil
}

// ListOperators 分页查询操作员
func (s *authService) ListOperators(ctx context.Context, page, pageSize int) ([]*models.Operator, int64, error) {
	pagination := repository.NewPagination(page, pageSize)
	operators, err := s.operatorRepo.GetAll(ctx, pagination)
	if err != nil {
		return nil, 0, err
	}
	return operators, pagination.Total, nil
}

// UpdateOperatorStatus 启用或停用操作员
func (s *authService) UpdateOperatorStatus(ctx context.Context, operatorID uint, status string) error {
	if status != models.OperatorStatusActive && status != models.OperatorStatusDisabled {
		return fmt.Errorf("无效的操作员状态: %s", status)
	}

	if _, err := s.operatorRepo.FindByID(ctx, operatorID); err != nil {
		return ErrOperatorNotFound
	}

	if err := s.operatorRepo.UpdateStatus(ctx, operatorID, status); err != nil {
		return fmt.Errorf("更新操作员状态失败: %w", err)
	}

	s.log.Info("Operator status updated",
		zap.Uint("operatorID", operatorID),
		zap.String("status", status))
	return nil
}

// UpdatePassword 修改操作员密码
func (s *authService) UpdatePassword(ctx context.Context, operatorID uint, oldPassword, newPassword string) error {
	if len(newPassword) < 6 {
		return errors.New("密码长度至少6个字符")
	}

	operator, err := s.operatorRepo.FindByID(ctx, operatorID)
	if err != nil || operator == nil {
		return ErrOperatorNotFound
	}

	valid, err := utils.VerifyPassword(oldPassword, operator.Password)
	if err != nil || !valid {
		return ErrInvalidCredentials
	}

	hashed, err := utils.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("密码加密失败: %w", err)
	}

	operator.Password = hashed
	if err := s.operatorRepo.Update(ctx, operator); err != nil {
		return fmt.Errorf("更新密码失败: %w", err)
	}

	s.log.Info("Password updated", zap.Uint("operatorID", operatorID))
	return nil
}

// EnsureDefaultOperator 首次启动时创建默认操作员，已存在则跳过
func (s *authService) EnsureDefaultOperator(ctx context.Context, username, password string) error {
	if username == "" || password == "" {
		return nil
	}

	if existing, _ := s.operatorRepo.FindByUsername(ctx, username); existing != nil {
		return nil
	}

	hashed, err := utils.HashPassword(password)
	if err != nil {
		return fmt.Errorf("密码加密失败: %w", err)
	}

	operator := &models.Operator{
		Username: username,
		Password: hashed,
		Role:     models.RoleAdmin,
		Status:   models.OperatorStatusActive,
	}

	if err := s.operatorRepo.Create(ctx, operator); err != nil {
		return fmt.Errorf("创建默认操作员失败: %w", err)
	}

	s.log.Info("Default operator created", zap.String("username", username))
	return nil
}
