package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/checkout-kiosk/internal/models"
)

func TestOrderRepository_Create(t *testing.T) {
	db := TestDB(t)
	repo := NewOrderRepository(db)
	ctx := context.Background()

	order := CreateTestOrder("ORD-AAAA111122223333", "session_1", models.OrderStatusPaid, 300)
	err := repo.Create(ctx, order)
	require.NoError(t, err)
	assert.NotZero(t, order.ID)

	// 商品明细应随订单一起写入
	found, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, found.Items, 1)
	assert.Equal(t, "Milk", found.Items[0].Name)
	assert.Equal(t, int64(300), found.Items[0].PriceCents)
	assert.Equal(t, found.ID, found.Items[0].OrderID)
}

func TestOrderRepository_CreateDuplicateOrderNo(t *testing.T) {
	db := TestDB(t)
	repo := NewOrderRepository(db)
	ctx := context.Background()

	order := CreateTestOrder("ORD-DUP0000000000001", "session_1", models.OrderStatusPaid, 100)
	require.NoError(t, repo.Create(ctx, order))

	// 订单号唯一索引应拒绝重复
	dup := CreateTestOrder("ORD-DUP0000000000001", "session_2", models.OrderStatusPaid, 200)
	err := repo.Create(ctx, dup)
	assert.Error(t, err)
}

func TestOrderRepository_FindByOrderNo(t *testing.T) {
	db := TestDB(t)
	SeedTestData(t, db)
	repo := NewOrderRepository(db)
	ctx := context.Background()

	// 查找存在的订单
	order, err := repo.FindByOrderNo(ctx, "ORD-TESTSEED0000001A")
	require.NoError(t, err)
	assert.Equal(t, int64(500), order.TotalCents)
	assert.Equal(t, 2, order.ItemCount)
	assert.Equal(t, models.OrderStatusPaid, order.Status)
	assert.Len(t, order.Items, 2)

	// 查找不存在的订单
	_, err = repo.FindByOrderNo(ctx, "ORD-DOESNOTEXIST0000")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "订单不存在")
}

func TestOrderRepository_Search(t *testing.T) {
	db := TestDB(t)
	SeedTestData(t, db)
	repo := NewOrderRepository(db)
	ctx := context.Background()

	// 按状态过滤
	pagination := NewPagination(1, 10)
	orders, err := repo.Search(ctx, &OrderQuery{
		Status:     models.OrderStatusPaid,
		Pagination: pagination,
	})
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "ORD-TESTSEED0000001A", orders[0].OrderNo)
	assert.Equal(t, int64(1), pagination.Total)

	// 按会话过滤
	orders, err = repo.Search(ctx, &OrderQuery{
		SessionID:  "session_seed_2",
		Pagination: NewPagination(1, 10),
	})
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, models.OrderStatusDeclined, orders[0].Status)

	// 无匹配结果
	orders, err = repo.Search(ctx, &OrderQuery{
		Status:     models.OrderStatusCancelled,
		Pagination: NewPagination(1, 10),
	})
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestOrderRepository_GetRecent(t *testing.T) {
	db := TestDB(t)
	repo := NewOrderRepository(db)
	ctx := context.Background()

	// 创建5个订单，时间递增
	for i := 0; i < 5; i++ {
		order := CreateTestOrder(
			"ORD-RECENT00000000"+string(rune('A'+i))+"0",
			"session_recent",
			models.OrderStatusPaid,
			int64(100*(i+1)),
		)
		order.CreatedAt = time.Now().Add(time.Duration(i) * time.Minute)
		require.NoError(t, repo.Create(ctx, order))
	}

	// 只取最近3个，按创建时间倒序
	orders, err := repo.GetRecent(ctx, 3)
	require.NoError(t, err)
	require.Len(t, orders, 3)
	assert.Equal(t, int64(500), orders[0].TotalCents)
	assert.Equal(t, int64(400), orders[1].TotalCents)
	assert.Equal(t, int64(300), orders[2].TotalCents)
}

func TestOrderRepository_CountByStatus(t *testing.T) {
	db := TestDB(t)
	SeedTestData(t, db)
	repo := NewOrderRepository(db)
	ctx := context.Background()

	paid, err := repo.CountByStatus(ctx, models.OrderStatusPaid)
	require.NoError(t, err)
	assert.Equal(t, int64(1), paid)

	declined, err := repo.CountByStatus(ctx, models.OrderStatusDeclined)
	require.NoError(t, err)
	assert.Equal(t, int64(1), declined)

	cancelled, err := repo.CountByStatus(ctx, models.OrderStatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, int64(0), cancelled)
}

func TestOrderRepository_SumPaidCents(t *testing.T) {
	db := TestDB(t)
	SeedTestData(t, db)
	repo := NewOrderRepository(db)
	ctx := context.Background()

	// 已支付订单总额500分，被拒订单不计入
	start := time.Now().Add(-24 * time.Hour)
	end := time.Now().Add(time.Hour)
	sum, err := repo.SumPaidCents(ctx, start, end)
	require.NoError(t, err)
	assert.Equal(t, int64(500), sum)

	// 时间段外无订单时返回0
	sum, err = repo.SumPaidCents(ctx, start.Add(-48*time.Hour), start.Add(-47*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(0), sum)
}

func TestOrderRepository_WithTransaction(t *testing.T) {
	db := TestDB(t)
	ctx := context.Background()
	txManager := NewTransactionManager(db)

	// 事务提交后数据可见
	err := txManager.WithTransaction(ctx, func(tx *Transaction) error {
		return tx.Order().Create(ctx, CreateTestOrder("ORD-TX000000000000A1", "tx_session", models.OrderStatusPaid, 100))
	})
	require.NoError(t, err)

	repo := NewOrderRepository(db)
	_, err = repo.FindByOrderNo(ctx, "ORD-TX000000000000A1")
	assert.NoError(t, err)

	// 业务函数报错时事务回滚
	err = txManager.WithTransaction(ctx, func(tx *Transaction) error {
		if err := tx.Order().Create(ctx, CreateTestOrder("ORD-TX000000000000B2", "tx_session", models.OrderStatusPaid, 200)); err != nil {
			return err
		}
		return assert.AnError
	})
	assert.Error(t, err)

	_, err = repo.FindByOrderNo(ctx, "ORD-TX000000000000B2")
	assert.Error(t, err)
}

// TestOrderRepository_WithTx 测试事务支持
func TestOrderRepository_WithTx(t *testing.T) {
	db := TestDB(t)
	ctx := context.Background()
	repo := NewOrderRepository(db)

	tx := db.Begin()
	require.NoError(t, tx.Error)

	txRepo := repo.WithTx(tx).(OrderRepository)
	require.NoError(t, txRepo.Create(ctx, CreateTestOrder("ORD-TX000000000000C3", "tx_session", models.OrderStatusPaid, 300)))
	require.NoError(t, tx.Commit().Error)

	found, err := repo.FindByOrderNo(ctx, "ORD-TX000000000000C3")
	require.NoError(t, err)
	assert.Equal(t, int64(300), found.TotalCents)
}
