// models/gorm_models.go
package models

import (
	"gorm.io/gorm"
)

// GormGamerRecord 玩家记录表模型
type GormGamerRecord struct {
	gorm.Model
	RecordID          string   `gorm:"uniqueIndex;size:64;not null"`
	DailyGamingHours  float64  `gorm:"not null"`
	MonthlySpending   float64  `gorm:"not null;index"`
	SleepHours        float64  `gorm:"not null"`
	ExerciseHours     float64  `gorm:"not null"`
	SocialIsolation   int      `gorm:"not null;default:0"`
	Productivity      int      `gorm:"not null;default:0"`
	GPA               *float64 // 仅学生有
	WeightChangeKg    float64  `gorm:"default:0"`
	MoodSwingsPerWeek int      `gorm:"default:0"`

	EyeStrain                bool `gorm:"default:false"`
	BackPain                 bool `gorm:"default:false"`
	WithdrawalSymptoms       bool `gorm:"default:false;index"`
	ContinuesDespiteProblems bool `gorm:"default:false"`

	Platform   string `gorm:"size:32;index"`
	Genre      string `gorm:"size:64"`
	Occupation string `gorm:"size:32;index"`
	RiskLabel  string `gorm:"size:16;index"`
}

// TableName 指定表名
func (GormGamerRecord) TableName() string {
	return "gamer_records"
}

// ToRecord 转换为领域模型
func (g *GormGamerRecord) ToRecord() GamerRecord {
	return GamerRecord{
		ID:                       g.RecordID,
		DailyGamingHours:         g.DailyGamingHours,
		MonthlySpending:          g.MonthlySpending,
		SleepHours:               g.SleepHours,
		ExerciseHours:            g.ExerciseHours,
		SocialIsolation:          g.SocialIsolation,
		Productivity:             g.Productivity,
		GPA:                      g.GPA,
		WeightChangeKg:           g.WeightChangeKg,
		MoodSwingsPerWeek:        g.MoodSwingsPerWeek,
		EyeStrain:                g.EyeStrain,
		BackPain:                 g.BackPain,
		WithdrawalSymptoms:       g.WithdrawalSymptoms,
		ContinuesDespiteProblems: g.ContinuesDespiteProblems,
		Platform:                 Platform(g.Platform),
		Genre:                    g.Genre,
		Occupation:               Occupation(g.Occupation),
		RiskLabel:                RiskLevel(g.RiskLabel),
	}
}

// FromRecord 从领域模型构造表模型
func FromRecord(r *GamerRecord) *GormGamerRecord {
	return &GormGamerRecord{
		RecordID:                 r.ID,
		DailyGamingHours:         r.DailyGamingHours,
		MonthlySpending:          r.MonthlySpending,
		SleepHours:               r.SleepHours,
		ExerciseHours:            r.ExerciseHours,
		SocialIsolation:          r.SocialIsolation,
		Productivity:             r.Productivity,
		GPA:                      r.GPA,
		WeightChangeKg:           r.WeightChangeKg,
		MoodSwingsPerWeek:        r.MoodSwingsPerWeek,
		EyeStrain:                r.EyeStrain,
		BackPain:                 r.BackPain,
		WithdrawalSymptoms:       r.WithdrawalSymptoms,
		ContinuesDespiteProblems: r.ContinuesDespiteProblems,
		Platform:                 string(r.Platform),
		Genre:                    r.Genre,
		Occupation:               string(r.Occupation),
		RiskLabel:                string(r.RiskLabel),
	}
}

// PopulationStats 人群描述性统计
type PopulationStats struct {
	TotalRecords    int64            `json:"total_records"`
	AvgDailyHours   float64          `json:"avg_daily_hours"`
	AvgSpending     float64          `json:"avg_spending"`
	AvgSleepHours   float64          `json:"avg_sleep_hours"`
	WithdrawalCount int64            `json:"withdrawal_count"`
	ByPlatform      map[string]int64 `json:"by_platform"`
	ByRiskLabel     map[string]int64 `json:"by_risk_label"`
}
