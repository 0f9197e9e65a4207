// persistence/memory.go
package persistence

import (
	"context"
	"sort"
	"sync"

	"github.com/wfunc/gamerisk/models"
)

// MemoryStore 内存实现，测试与单机演示用
// 快照一致性：写路径在锁内复制入参，读路径在锁内复制出参，
// 调用方拿到的切片与内部状态互不影响。
type MemoryStore struct {
	mutex   sync.RWMutex
	records map[string]models.GamerRecord
}

// NewMemoryStore 创建空的内存存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]models.GamerRecord),
	}
}

// FetchAll 拉取全量快照，按记录ID排序
func (m *MemoryStore) FetchAll(ctx context.Context) ([]models.GamerRecord, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	out := make([]models.GamerRecord, 0, len(m.records))
	for _, rec := range m.records {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// FetchFiltered 在同一把读锁内过滤，等价于 FetchAll 后过滤
func (m *MemoryStore) FetchFiltered(ctx context.Context, pred func(*models.GamerRecord) bool) ([]models.GamerRecord, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	out := make([]models.GamerRecord, 0, len(m.records))
	for _, rec := range m.records {
		if pred == nil || pred(&rec) {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// UpsertRecord 保存单条记录，已存在则覆盖
func (m *MemoryStore) UpsertRecord(ctx context.Context, rec *models.GamerRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.records[rec.ID] = *rec
	return nil
}

// UpsertBatch 保存一批记录，先整体校验，任一条非法则全部不写入
func (m *MemoryStore) UpsertBatch(ctx context.Context, recs []models.GamerRecord) error {
	for i := range recs {
		if err := recs[i].Validate(); err != nil {
			return err
		}
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()
	for i := range recs {
		m.records[recs[i].ID] = recs[i]
	}
	return nil
}

// PopulationStats 聚合人群统计，与SQL实现一致的口径
func (m *MemoryStore) PopulationStats(ctx context.Context) (*models.PopulationStats, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	stats := &models.PopulationStats{
		ByPlatform:  make(map[string]int64),
		ByRiskLabel: make(map[string]int64),
	}
	var sumDaily, sumSpending, sumSleep float64
	for _, rec := range m.records {
		stats.TotalRecords++
		sumDaily += rec.DailyGamingHours
		sumSpending += rec.MonthlySpending
		sumSleep += rec.SleepHours
		if rec.WithdrawalSymptoms {
			stats.WithdrawalCount++
		}
		stats.ByPlatform[string(rec.Platform)]++
		stats.ByRiskLabel[string(rec.RiskLabel)]++
	}
	if stats.TotalRecords > 0 {
		n := float64(stats.TotalRecords)
		stats.AvgDailyHours = sumDaily / n
		stats.AvgSpending = sumSpending / n
		stats.AvgSleepHours = sumSleep / n
	}
	return stats, nil
}

// Close 无连接可关
func (m *MemoryStore) Close() error {
	return nil
}
