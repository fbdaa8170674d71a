package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/checkout-kiosk/internal/models"
)

func TestAlarmRepository_Create(t *testing.T) {
	db := TestDB(t)
	repo := NewAlarmRepository(db)
	ctx := context.Background()

	event := CreateTestAlarmEvent(models.AlarmKindOverheat, 47.5, time.Now())
	err := repo.Create(ctx, event)
	require.NoError(t, err)
	assert.NotZero(t, event.ID)

	found, err := repo.FindByID(ctx, event.ID)
	require.NoError(t, err)
	AssertAlarmEvent(t, event, found)
	assert.Nil(t, found.ClearedAt)
}

func TestAlarmRepository_Close(t *testing.T) {
	db := TestDB(t)
	repo := NewAlarmRepository(db)
	ctx := context.Background()

	event := CreateTestAlarmEvent(models.AlarmKindHighHumidity, 65.0, time.Now())
	require.NoError(t, repo.Create(ctx, event))

	// 解除告警
	clearedAt := time.Now()
	err := repo.Close(ctx, event.ID, clearedAt)
	require.NoError(t, err)

	found, err := repo.FindByID(ctx, event.ID)
	require.NoError(t, err)
	require.NotNil(t, found.ClearedAt)

	// 重复解除应报错
	err = repo.Close(ctx, event.ID, time.Now())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "已解除")

	// 解除不存在的告警应报错
	err = repo.Close(ctx, 99999, time.Now())
	assert.Error(t, err)
}

func TestAlarmRepository_FindActive(t *testing.T) {
	db := TestDB(t)
	repo := NewAlarmRepository(db)
	ctx := context.Background()

	// 两条活跃告警，一条已解除
	active1 := CreateTestAlarmEvent(models.AlarmKindOverheat, 48.0, time.Now().Add(-10*time.Minute))
	active2 := CreateTestAlarmEvent(models.AlarmKindHighHumidity, 70.0, time.Now().Add(-5*time.Minute))
	closed := CreateTestAlarmEvent(models.AlarmKindOverheat, 46.0, time.Now().Add(-time.Hour))
	require.NoError(t, repo.Create(ctx, active1))
	require.NoError(t, repo.Create(ctx, active2))
	require.NoError(t, repo.Create(ctx, closed))
	require.NoError(t, repo.Close(ctx, closed.ID, time.Now().Add(-30*time.Minute)))

	events, err := repo.FindActive(ctx)
	require.NoError(t, err)
	require.Len(t, events, 2)

	// 按触发时间倒序
	assert.Equal(t, models.AlarmKindHighHumidity, events[0].Kind)
	assert.Equal(t, models.AlarmKindOverheat, events[1].Kind)
}

func TestAlarmRepository_Search(t *testing.T) {
	db := TestDB(t)
	repo := NewAlarmRepository(db)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		event := CreateTestAlarmEvent(models.AlarmKindOverheat, 46.0+float64(i), base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, repo.Create(ctx, event))
	}
	humid := CreateTestAlarmEvent(models.AlarmKindHighHumidity, 62.0, base.Add(10*time.Minute))
	require.NoError(t, repo.Create(ctx, humid))

	// 按类型过滤
	events, err := repo.Search(ctx, &models.AlarmQuery{Kind: models.AlarmKindOverheat})
	require.NoError(t, err)
	assert.Len(t, events, 3)

	// 时间范围过滤
	start := base.Add(5 * time.Minute)
	events, err = repo.Search(ctx, &models.AlarmQuery{StartTime: &start})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, models.AlarmKindHighHumidity, events[0].Kind)

	// Limit限制
	events, err = repo.Search(ctx, &models.AlarmQuery{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestAlarmRepository_CountSince(t *testing.T) {
	db := TestDB(t)
	repo := NewAlarmRepository(db)
	ctx := context.Background()

	now := time.Now()
	old := CreateTestAlarmEvent(models.AlarmKindOverheat, 46.0, now.Add(-2*time.Hour))
	recent := CreateTestAlarmEvent(models.AlarmKindOverheat, 47.0, now.Add(-10*time.Minute))
	require.NoError(t, repo.Create(ctx, old))
	require.NoError(t, repo.Create(ctx, recent))

	count, err := repo.CountSince(ctx, models.AlarmKindOverheat, now.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	count, err = repo.CountSince(ctx, models.AlarmKindHighHumidity, now.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestAlarmRepository_CleanupOldEvents(t *testing.T) {
	db := TestDB(t)
	repo := NewAlarmRepository(db)
	ctx := context.Background()

	// 旧的已解除告警应被清理
	oldClosed := CreateTestAlarmEvent(models.AlarmKindOverheat, 46.0, time.Now().AddDate(0, 0, -60))
	require.NoError(t, repo.Create(ctx, oldClosed))
	require.NoError(t, repo.Close(ctx, oldClosed.ID, time.Now().AddDate(0, 0, -59)))

	// 旧的活跃告警和新的已解除告警应保留
	oldActive := CreateTestAlarmEvent(models.AlarmKindOverheat, 48.0, time.Now().AddDate(0, 0, -60))
	require.NoError(t, repo.Create(ctx, oldActive))
	newClosed := CreateTestAlarmEvent(models.AlarmKindHighHumidity, 63.0, time.Now().Add(-time.Hour))
	require.NoError(t, repo.Create(ctx, newClosed))
	require.NoError(t, repo.Close(ctx, newClosed.ID, time.Now()))

	err := repo.CleanupOldEvents(ctx, 30)
	require.NoError(t, err)

	_, err = repo.FindByID(ctx, oldClosed.ID)
	assert.Error(t, err)

	_, err = repo.FindByID(ctx, oldActive.ID)
	assert.NoError(t, err)
	_, err = repo.FindByID(ctx, newClosed.ID)
	assert.NoError(t, err)
}
