// persistence/gorm_postgresql.go
package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/wfunc/gamerisk/models"
)

// GormPostgreSQL 使用GORM的PostgreSQL实现
// 快照一致性：FetchAll 是单条 SELECT，PostgreSQL 的语句级一致性保证
// 读不到半更新的行。
type GormPostgreSQL struct {
	db *gorm.DB
}

// NewGormPostgreSQL 创建GORM PostgreSQL数据库连接
func NewGormPostgreSQL(host string, port int, user, password, dbname string) (*GormPostgreSQL, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	// 配置GORM日志
	gormLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags), // io writer
		logger.Config{
			SlowThreshold: time.Second,   // 慢SQL阈值
			LogLevel:      logger.Silent, // 日志级别
			Colorful:      false,         // 禁用彩色打印
		},
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, err
	}

	// 获取通用数据库对象 sql.DB
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	// 设置连接池
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	// 自动迁移表结构
	if err := autoMigrate(db); err != nil {
		return nil, err
	}

	return &GormPostgreSQL{db: db}, nil
}

// autoMigrate 自动迁移表结构
func autoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.GormGamerRecord{},
	)
}

// FetchAll 拉取全量快照，按记录ID排序
func (p *GormPostgreSQL) FetchAll(ctx context.Context) ([]models.GamerRecord, error) {
	var rows []models.GormGamerRecord
	if err := p.db.WithContext(ctx).Order("record_id").Find(&rows).Error; err != nil {
		return nil, err
	}

	out := make([]models.GamerRecord, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].ToRecord())
	}
	return out, nil
}

// FetchFiltered 等价于 FetchAll 后过滤
func (p *GormPostgreSQL) FetchFiltered(ctx context.Context, pred func(*models.GamerRecord) bool) ([]models.GamerRecord, error) {
	all, err := p.FetchAll(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]models.GamerRecord, 0, len(all))
	for i := range all {
		if pred == nil || pred(&all[i]) {
			out = append(out, all[i])
		}
	}
	return out, nil
}

// UpsertRecord 保存单条记录，已存在则覆盖
func (p *GormPostgreSQL) UpsertRecord(ctx context.Context, rec *models.GamerRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	return upsertTx(p.db.WithContext(ctx), rec)
}

// UpsertBatch 在单个事务内保存一批记录，任一条失败则整体回滚
func (p *GormPostgreSQL) UpsertBatch(ctx context.Context, recs []models.GamerRecord) error {
	for i := range recs {
		if err := recs[i].Validate(); err != nil {
			return err
		}
	}
	return p.Transaction(func(tx *gorm.DB) error {
		for i := range recs {
			if err := upsertTx(tx.WithContext(ctx), &recs[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

func upsertTx(db *gorm.DB, rec *models.GamerRecord) error {
	m := models.FromRecord(rec)

	var existing models.GormGamerRecord
	result := db.Where("record_id = ?", rec.ID).First(&existing)

	if result.Error == gorm.ErrRecordNotFound {
		// 创建新记录
		return db.Create(m).Error
	} else if result.Error != nil {
		return result.Error
	}

	// 更新现有记录
	m.ID = existing.ID
	m.CreatedAt = existing.CreatedAt
	return db.Save(m).Error
}

// PopulationStats 原生SQL聚合人群统计
func (p *GormPostgreSQL) PopulationStats(ctx context.Context) (*models.PopulationStats, error) {
	var agg struct {
		TotalRecords    int64
		AvgDailyHours   float64
		AvgSpending     float64
		AvgSleepHours   float64
		WithdrawalCount int64
	}

	err := p.db.WithContext(ctx).Raw(
		`
        SELECT
            COUNT(*) as total_records,
            COALESCE(AVG(daily_gaming_hours), 0) as avg_daily_hours,
            COALESCE(AVG(monthly_spending), 0) as avg_spending,
            COALESCE(AVG(sleep_hours), 0) as avg_sleep_hours,
            SUM(CASE WHEN withdrawal_symptoms THEN 1 ELSE 0 END) as withdrawal_count
        FROM gamer_records
        WHERE deleted_at IS NULL`,
	).Scan(&agg).Error
	if err != nil {
		return nil, err
	}

	stats := &models.PopulationStats{
		TotalRecords:    agg.TotalRecords,
		AvgDailyHours:   agg.AvgDailyHours,
		AvgSpending:     agg.AvgSpending,
		AvgSleepHours:   agg.AvgSleepHours,
		WithdrawalCount: agg.WithdrawalCount,
		ByPlatform:      make(map[string]int64),
		ByRiskLabel:     make(map[string]int64),
	}

	if err := p.groupCount(ctx, "platform", stats.ByPlatform); err != nil {
		return nil, err
	}
	if err := p.groupCount(ctx, "risk_label", stats.ByRiskLabel); err != nil {
		return nil, err
	}
	return stats, nil
}

func (p *GormPostgreSQL) groupCount(ctx context.Context, column string, into map[string]int64) error {
	var rows []struct {
		Key string
		N   int64
	}
	query := fmt.Sprintf(
		"SELECT %s as key, COUNT(*) as n FROM gamer_records WHERE deleted_at IS NULL GROUP BY %s",
		column, column)
	if err := p.db.WithContext(ctx).Raw(query).Scan(&rows).Error; err != nil {
		return err
	}
	for _, r := range rows {
		into[r.Key] = r.N
	}
	return nil
}

// Close 关闭数据库连接
func (p *GormPostgreSQL) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// 添加事务支持
func (p *GormPostgreSQL) Transaction(fn func(tx *gorm.DB) error) error {
	return p.db.Transaction(fn)
}

// SQLDB exposes the underlying connection for the report runner.
func (p *GormPostgreSQL) SQLDB() (*sql.DB, error) {
	return p.db.DB()
}
