package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPickupRepository_Create(t *testing.T) {
	db := TestDB(t)
	repo := NewPickupRepository(db)
	ctx := context.Background()

	record := CreateTestPickupRecord("ORD-PICKUP000000001A", true)
	err := repo.Create(ctx, record)
	require.NoError(t, err)
	assert.NotZero(t, record.ID)

	found, err := repo.FindByID(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, "ORD-PICKUP000000001A", found.Payload)
	assert.True(t, found.Accepted)
	assert.False(t, found.ScannedAt.IsZero())
}

func TestPickupRepository_FindByOrderRef(t *testing.T) {
	db := TestDB(t)
	repo := NewPickupRepository(db)
	ctx := context.Background()

	// 同一订单号扫描两次
	require.NoError(t, repo.Create(ctx, CreateTestPickupRecord("ORD-REF0000000000A1", true)))
	require.NoError(t, repo.Create(ctx, CreateTestPickupRecord("ORD-REF0000000000A1", true)))
	require.NoError(t, repo.Create(ctx, CreateTestPickupRecord("ORD-OTHER0000000001", true)))

	records, err := repo.FindByOrderRef(ctx, "ORD-REF0000000000A1")
	require.NoError(t, err)
	assert.Len(t, records, 2)

	records, err = repo.FindByOrderRef(ctx, "ORD-MISSING00000001")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestPickupRepository_List(t *testing.T) {
	db := TestDB(t)
	repo := NewPickupRepository(db)
	ctx := context.Background()

	// 两条有效记录，一条无效记录（非取货码内容）
	require.NoError(t, repo.Create(ctx, CreateTestPickupRecord("ORD-LIST000000000A1", true)))
	require.NoError(t, repo.Create(ctx, CreateTestPickupRecord("ORD-LIST000000000B2", true)))
	require.NoError(t, repo.Create(ctx, CreateTestPickupRecord("https://example.com/menu", false)))

	// 全部记录
	pagination := NewPagination(1, 10)
	records, err := repo.List(ctx, false, pagination)
	require.NoError(t, err)
	assert.Len(t, records, 3)
	assert.Equal(t, int64(3), pagination.Total)

	// 仅有效记录
	pagination = NewPagination(1, 10)
	records, err = repo.List(ctx, true, pagination)
	require.NoError(t, err)
	assert.Len(t, records, 2)
	assert.Equal(t, int64(2), pagination.Total)
	for _, r := range records {
		assert.True(t, r.Accepted)
	}
}

func TestPickupRepository_CountSince(t *testing.T) {
	db := TestDB(t)
	repo := NewPickupRepository(db)
	ctx := context.Background()

	now := time.Now()
	old := CreateTestPickupRecord("ORD-OLD00000000001A", true)
	old.ScannedAt = now.Add(-2 * time.Hour)
	require.NoError(t, repo.Create(ctx, old))

	recent := CreateTestPickupRecord("ORD-NEW00000000001A", true)
	require.NoError(t, repo.Create(ctx, recent))

	count, err := repo.CountSince(ctx, now.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}
