// persistence/postgresql.go
package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	// PostgreSQL 驱动
	_ "github.com/lib/pq" // PostgreSQL 驱动

	"github.com/wfunc/gamerisk/models"
)

// PostgreSQL 数据库实现，不经过ORM
// 与 GormPostgreSQL 共用 gamer_records 表，快照一致性同样来自
// 单条 SELECT 的语句级一致性。
type PostgreSQL struct {
	db *sql.DB
}

// NewPostgreSQL 创建 PostgreSQL 数据库连接
func NewPostgreSQL(host string, port int, user, password, dbname string) (*PostgreSQL, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	// 测试连接
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	// 设置连接池参数
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	// 初始化表结构
	if err := initTables(db); err != nil {
		return nil, err
	}

	return &PostgreSQL{db: db}, nil
}

// initTables 初始化数据库表结构
func initTables(db *sql.DB) error {
	// 创建玩家记录表，列名与GORM迁移保持一致
	_, err := db.Exec(`
        CREATE TABLE IF NOT EXISTS gamer_records (
            id SERIAL PRIMARY KEY,
            record_id VARCHAR(64) UNIQUE NOT NULL,
            daily_gaming_hours DOUBLE PRECISION NOT NULL DEFAULT 0,
            monthly_spending DOUBLE PRECISION NOT NULL DEFAULT 0,
            sleep_hours DOUBLE PRECISION NOT NULL DEFAULT 0,
            exercise_hours DOUBLE PRECISION NOT NULL DEFAULT 0,
            social_isolation INTEGER NOT NULL DEFAULT 0,
            productivity INTEGER NOT NULL DEFAULT 0,
            gpa DOUBLE PRECISION,
            weight_change_kg DOUBLE PRECISION NOT NULL DEFAULT 0,
            mood_swings_per_week INTEGER NOT NULL DEFAULT 0,
            eye_strain BOOLEAN NOT NULL DEFAULT FALSE,
            back_pain BOOLEAN NOT NULL DEFAULT FALSE,
            withdrawal_symptoms BOOLEAN NOT NULL DEFAULT FALSE,
            continues_despite_problems BOOLEAN NOT NULL DEFAULT FALSE,
            platform VARCHAR(32),
            genre VARCHAR(64),
            occupation VARCHAR(32),
            risk_label VARCHAR(16),
            created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
            updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
            deleted_at TIMESTAMP
        )
    `)
	if err != nil {
		return err
	}

	// 创建索引以提高查询性能
	_, err = db.Exec(`
        CREATE INDEX IF NOT EXISTS idx_gamer_records_record_id ON gamer_records(record_id);
        CREATE INDEX IF NOT EXISTS idx_gamer_records_monthly_spending ON gamer_records(monthly_spending);
        CREATE INDEX IF NOT EXISTS idx_gamer_records_platform ON gamer_records(platform);
        CREATE INDEX IF NOT EXISTS idx_gamer_records_risk_label ON gamer_records(risk_label);
    `)

	return err
}

const recordColumns = `record_id, daily_gaming_hours, monthly_spending, sleep_hours,
        exercise_hours, social_isolation, productivity, gpa, weight_change_kg,
        mood_swings_per_week, eye_strain, back_pain, withdrawal_symptoms,
        continues_despite_problems, platform, genre, occupation, risk_label`

// FetchAll 拉取全量快照，按记录ID排序
func (p *PostgreSQL) FetchAll(ctx context.Context) ([]models.GamerRecord, error) {
	query := `SELECT ` + recordColumns + `
        FROM gamer_records WHERE deleted_at IS NULL ORDER BY record_id`

	rows, err := p.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.GamerRecord
	for rows.Next() {
		var rec models.GamerRecord
		var gpa sql.NullFloat64
		var platform, genre, occupation, riskLabel sql.NullString
		err := rows.Scan(
			&rec.ID,
			&rec.DailyGamingHours,
			&rec.MonthlySpending,
			&rec.SleepHours,
			&rec.ExerciseHours,
			&rec.SocialIsolation,
			&rec.Productivity,
			&gpa,
			&rec.WeightChangeKg,
			&rec.MoodSwingsPerWeek,
			&rec.EyeStrain,
			&rec.BackPain,
			&rec.WithdrawalSymptoms,
			&rec.ContinuesDespiteProblems,
			&platform,
			&genre,
			&occupation,
			&riskLabel,
		)
		if err != nil {
			return nil, err
		}
		if gpa.Valid {
			v := gpa.Float64
			rec.GPA = &v
		}
		rec.Platform = models.Platform(platform.String)
		rec.Genre = genre.String
		rec.Occupation = models.Occupation(occupation.String)
		rec.RiskLabel = models.RiskLevel(riskLabel.String)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// FetchFiltered 等价于 FetchAll 后过滤
func (p *PostgreSQL) FetchFiltered(ctx context.Context, pred func(*models.GamerRecord) bool) ([]models.GamerRecord, error) {
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

const upsertQuery = `
        INSERT INTO gamer_records (` + recordColumns + `)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
        ON CONFLICT (record_id)
        DO UPDATE SET
            daily_gaming_hours = $2, monthly_spending = $3, sleep_hours = $4,
            exercise_hours = $5, social_isolation = $6, productivity = $7,
            gpa = $8, weight_change_kg = $9, mood_swings_per_week = $10,
            eye_strain = $11, back_pain = $12, withdrawal_symptoms = $13,
            continues_despite_problems = $14, platform = $15, genre = $16,
            occupation = $17, risk_label = $18,
            updated_at = CURRENT_TIMESTAMP, deleted_at = NULL
    `

func upsertArgs(rec *models.GamerRecord) []interface{} {
	var gpa interface{}
	if rec.GPA != nil {
		gpa = *rec.GPA
	}
	return []interface{}{
		rec.ID,
		rec.DailyGamingHours,
		rec.MonthlySpending,
		rec.SleepHours,
		rec.ExerciseHours,
		rec.SocialIsolation,
		rec.Productivity,
		gpa,
		rec.WeightChangeKg,
		rec.MoodSwingsPerWeek,
		rec.EyeStrain,
		rec.BackPain,
		rec.WithdrawalSymptoms,
		rec.ContinuesDespiteProblems,
		string(rec.Platform),
		rec.Genre,
		string(rec.Occupation),
		string(rec.RiskLabel),
	}
}

// UpsertRecord 保存单条记录，已存在则覆盖 (PostgreSQL 9.5+)
func (p *PostgreSQL) UpsertRecord(ctx context.Context, rec *models.GamerRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	_, err := p.db.ExecContext(ctx, upsertQuery, upsertArgs(rec)...)
	return err
}

// UpsertBatch 在单个事务内保存一批记录，任一条失败则整体回滚
func (p *PostgreSQL) UpsertBatch(ctx context.Context, recs []models.GamerRecord) error {
	for i := range recs {
		if err := recs[i].Validate(); err != nil {
			return err
		}
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	for i := range recs {
		if _, err := tx.ExecContext(ctx, upsertQuery, upsertArgs(&recs[i])...); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// PopulationStats 聚合人群统计
func (p *PostgreSQL) PopulationStats(ctx context.Context) (*models.PopulationStats, error) {
	stats := &models.PopulationStats{
		ByPlatform:  make(map[string]int64),
		ByRiskLabel: make(map[string]int64),
	}

	query := `
        SELECT
            COUNT(*) as total_records,
            COALESCE(AVG(daily_gaming_hours), 0) as avg_daily_hours,
            COALESCE(AVG(monthly_spending), 0) as avg_spending,
            COALESCE(AVG(sleep_hours), 0) as avg_sleep_hours,
            COALESCE(SUM(CASE WHEN withdrawal_symptoms THEN 1 ELSE 0 END), 0) as withdrawal_count
        FROM gamer_records
        WHERE deleted_at IS NULL`
	err := p.db.QueryRowContext(ctx, query).Scan(
		&stats.TotalRecords,
		&stats.AvgDailyHours,
		&stats.AvgSpending,
		&stats.AvgSleepHours,
		&stats.WithdrawalCount,
	)
	if err != nil {
		return nil, err
	}

	if err := p.groupCount(ctx, "platform", stats.ByPlatform); err != nil {
		return nil, err
	}
	if err := p.groupCount(ctx, "risk_label", stats.ByRiskLabel); err != nil {
		return nil, err
	}
	return stats, nil
}

func (p *PostgreSQL) groupCount(ctx context.Context, column string, into map[string]int64) error {
	query := fmt.Sprintf(
		"SELECT %s, COUNT(*) FROM gamer_records WHERE deleted_at IS NULL GROUP BY %s",
		column, column)
	rows, err := p.db.QueryContext(ctx, query)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var key sql.NullString
		var n int64
		if err := rows.Scan(&key, &n); err != nil {
			return err
		}
		into[key.String] = n
	}
	return rows.Err()
}

// Close 关闭数据库连接
func (p *PostgreSQL) Close() error {
	return p.db.Close()
}

// SQLDB exposes the underlying connection for the report runner.
func (p *PostgreSQL) SQLDB() (*sql.DB, error) {
	return p.db, nil
}
