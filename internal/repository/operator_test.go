package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/checkout-kiosk/internal/models"
)

func TestOperatorRepository_Create(t *testing.T) {
	db := TestDB(t)
	repo := NewOperatorRepository(db)
	ctx := context.Background()

	operator := &models.Operator{
		Username: "newop",
		Password: "hashed_password",
		Role:     "operator",
		Status:   "active",
	}
	err := repo.Create(ctx, operator)
	require.NoError(t, err)
	assert.NotZero(t, operator.ID)

	// 用户名唯一索引应拒绝重复
	dup := &models.Operator{
		Username: "newop",
		Password: "other_password",
	}
	err = repo.Create(ctx, dup)
	assert.Error(t, err)
}

func TestOperatorRepository_FindByUsername(t *testing.T) {
	db := TestDB(t)
	SeedTestData(t, db)
	repo := NewOperatorRepository(db)
	ctx := context.Background()

	operator, err := repo.FindByUsername(ctx, "admin")
	require.NoError(t, err)
	assert.Equal(t, "admin", operator.Role)
	assert.Equal(t, "active", operator.Status)

	_, err = repo.FindByUsername(ctx, "ghost")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "操作员不存在")
}

func TestOperatorRepository_UpdateLastLogin(t *testing.T) {
	db := TestDB(t)
	SeedTestData(t, db)
	repo := NewOperatorRepository(db)
	ctx := context.Background()

	operator, err := repo.FindByUsername(ctx, "admin")
	require.NoError(t, err)
	assert.Nil(t, operator.LastLoginAt)

	err = repo.UpdateLastLogin(ctx, operator.ID, "192.168.1.50")
	require.NoError(t, err)

	updated, err := repo.FindByID(ctx, operator.ID)
	require.NoError(t, err)
	require.NotNil(t, updated.LastLoginAt)
	assert.Equal(t, "192.168.1.50", updated.LastLoginIP)
}

func TestOperatorRepository_UpdateStatus(t *testing.T) {
	db := TestDB(t)
	SeedTestData(t, db)
	repo := NewOperatorRepository(db)
	ctx := context.Background()

	operator, err := repo.FindByUsername(ctx, "operator1")
	require.NoError(t, err)

	err = repo.UpdateStatus(ctx, operator.ID, "disabled")
	require.NoError(t, err)

	updated, err := repo.FindByID(ctx, operator.ID)
	require.NoError(t, err)
	assert.Equal(t, "disabled", updated.Status)
}

func TestOperatorRepository_GetAll(t *testing.T) {
	db := TestDB(t)
	SeedTestData(t, db)
	repo := NewOperatorRepository(db)
	ctx := context.Background()

	pagination := NewPagination(1, 10)
	operators, err := repo.GetAll(ctx, pagination)
	require.NoError(t, err)
	assert.Len(t, operators, 2)
	assert.Equal(t, int64(2), pagination.Total)

	// 分页生效
	pagination = NewPagination(1, 1)
	operators, err = repo.GetAll(ctx, pagination)
	require.NoError(t, err)
	assert.Len(t, operators, 1)
	assert.Equal(t, int64(2), pagination.Total)
}
