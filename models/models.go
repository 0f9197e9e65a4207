// models/models.go
package models

import (
	"errors"
	"fmt"
	"math"
)

// 校验和访问失败的哨兵错误
var (
	// ErrInvalidMetric 指标值为负数或超出取值范围
	ErrInvalidMetric = errors.New("invalid metric value")
	// ErrInconsistentRecord 记录字段之间不一致（如非学生带GPA）
	ErrInconsistentRecord = errors.New("inconsistent record")
	// ErrUnknownMetric 未定义的指标名
	ErrUnknownMetric = errors.New("unknown metric")
	// ErrUnknownFlag 未定义的健康标记名
	ErrUnknownFlag = errors.New("unknown flag")
)

// Platform 游戏平台
type Platform string

const (
	PlatformMobile  Platform = "Mobile"
	PlatformPC      Platform = "PC"
	PlatformConsole Platform = "Console"
)

// Occupation 职业类型
type Occupation string

const (
	OccupationStudent      Occupation = "Student"
	OccupationProfessional Occupation = "Professional"
)

// RiskLevel 上游提供的成瘾风险标签，本引擎只读不生成
type RiskLevel string

const (
	RiskLow      RiskLevel = "Low"
	RiskModerate RiskLevel = "Moderate"
	RiskHigh     RiskLevel = "High"
	RiskSevere   RiskLevel = "Severe"
)

// ParseRiskLevel validates a label string. Empty means unlabeled.
func ParseRiskLevel(s string) (RiskLevel, error) {
	switch RiskLevel(s) {
	case "", RiskLow, RiskModerate, RiskHigh, RiskSevere:
		return RiskLevel(s), nil
	}
	return "", fmt.Errorf("unknown risk level %q", s)
}

// Metric names a numeric field of a GamerRecord. Used by the ranker and by
// threshold conditions so that criteria can be expressed as data.
type Metric string

const (
	MetricDailyGamingHours Metric = "daily_gaming_hours"
	MetricMonthlySpending  Metric = "monthly_spending"
	MetricSleepHours       Metric = "sleep_hours"
	MetricExerciseHours    Metric = "exercise_hours"
	MetricSocialIsolation  Metric = "social_isolation_score"
	MetricProductivity     Metric = "productivity_score"
	MetricGPA              Metric = "gpa"
	MetricWeightChange     Metric = "weight_change"
	MetricMoodSwings       Metric = "mood_swings"
)

// Flag names a boolean health field of a GamerRecord.
type Flag string

const (
	FlagEyeStrain                Flag = "eye_strain"
	FlagBackPain                 Flag = "back_pain"
	FlagWithdrawalSymptoms       Flag = "withdrawal_symptoms"
	FlagContinuesDespiteProblems Flag = "continues_despite_problems"
)

// GamerRecord 玩家问卷记录，一行一人
type GamerRecord struct {
	ID string `json:"id"`

	// 行为指标
	DailyGamingHours  float64  `json:"daily_gaming_hours"`
	MonthlySpending   float64  `json:"monthly_spending"`
	SleepHours        float64  `json:"sleep_hours"`
	ExerciseHours     float64  `json:"exercise_hours"`
	SocialIsolation   int      `json:"social_isolation_score"` // 0-100
	Productivity      int      `json:"productivity_score"`     // 0-100
	GPA               *float64 `json:"gpa,omitempty"`          // 仅学生有
	WeightChangeKg    float64  `json:"weight_change"`          // 有符号增量
	MoodSwingsPerWeek int      `json:"mood_swings"`

	// 健康标记
	EyeStrain                bool `json:"eye_strain"`
	BackPain                 bool `json:"back_pain"`
	WithdrawalSymptoms       bool `json:"withdrawal_symptoms"`
	ContinuesDespiteProblems bool `json:"continues_despite_problems"`

	// 分类属性
	Platform   Platform   `json:"platform"`
	Genre      string     `json:"genre"`
	Occupation Occupation `json:"occupation"`
	RiskLabel  RiskLevel  `json:"addiction_risk_level,omitempty"`
}

// Metric returns the numeric value of the named metric.
// GPA on a record without one is reported as ErrInvalidMetric so that a
// ranking pass over the wrong population fails loudly instead of inventing
// a zero.
func (r *GamerRecord) Metric(name Metric) (float64, error) {
	switch name {
	case MetricDailyGamingHours:
		return r.DailyGamingHours, nil
	case MetricMonthlySpending:
		return r.MonthlySpending, nil
	case MetricSleepHours:
		return r.SleepHours, nil
	case MetricExerciseHours:
		return r.ExerciseHours, nil
	case MetricSocialIsolation:
		return float64(r.SocialIsolation), nil
	case MetricProductivity:
		return float64(r.Productivity), nil
	case MetricGPA:
		if r.GPA == nil {
			return 0, fmt.Errorf("%w: record %s has no gpa", ErrInvalidMetric, r.ID)
		}
		return *r.GPA, nil
	case MetricWeightChange:
		return r.WeightChangeKg, nil
	case MetricMoodSwings:
		return float64(r.MoodSwingsPerWeek), nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownMetric, name)
}

// Flag returns the value of the named boolean health flag.
func (r *GamerRecord) Flag(name Flag) (bool, error) {
	switch name {
	case FlagEyeStrain:
		return r.EyeStrain, nil
	case FlagBackPain:
		return r.BackPain, nil
	case FlagWithdrawalSymptoms:
		return r.WithdrawalSymptoms, nil
	case FlagContinuesDespiteProblems:
		return r.ContinuesDespiteProblems, nil
	}
	return false, fmt.Errorf("%w: %q", ErrUnknownFlag, name)
}

// KnownMetric reports whether name is a defined metric.
func KnownMetric(name Metric) bool {
	_, err := (&GamerRecord{GPA: new(float64)}).Metric(name)
	return err == nil
}

// KnownFlag reports whether name is a defined flag.
func KnownFlag(name Flag) bool {
	_, err := (&GamerRecord{}).Flag(name)
	return err == nil
}

// Validate 校验单条记录的字段不变量
// 违反时返回 ErrInconsistentRecord 或 ErrInvalidMetric，并带上记录ID。
func (r *GamerRecord) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("%w: empty record id", ErrInconsistentRecord)
	}
	for _, m := range []struct {
		name  Metric
		value float64
	}{
		{MetricDailyGamingHours, r.DailyGamingHours},
		{MetricMonthlySpending, r.MonthlySpending},
		{MetricExerciseHours, r.ExerciseHours},
	} {
		if math.IsNaN(m.value) || m.value < 0 {
			return fmt.Errorf("%w: record %s %s=%v", ErrInvalidMetric, r.ID, m.name, m.value)
		}
	}
	if math.IsNaN(r.SleepHours) || r.SleepHours < 0 || r.SleepHours > 24 {
		return fmt.Errorf("%w: record %s sleep_hours=%v", ErrInvalidMetric, r.ID, r.SleepHours)
	}
	if r.SocialIsolation < 0 || r.SocialIsolation > 100 {
		return fmt.Errorf("%w: record %s social_isolation_score=%d", ErrInvalidMetric, r.ID, r.SocialIsolation)
	}
	if r.Productivity < 0 || r.Productivity > 100 {
		return fmt.Errorf("%w: record %s productivity_score=%d", ErrInvalidMetric, r.ID, r.Productivity)
	}
	if r.MoodSwingsPerWeek < 0 {
		return fmt.Errorf("%w: record %s mood_swings=%d", ErrInvalidMetric, r.ID, r.MoodSwingsPerWeek)
	}
	switch r.Occupation {
	case OccupationStudent:
		if r.GPA == nil {
			return fmt.Errorf("%w: record %s is a student without gpa", ErrInconsistentRecord, r.ID)
		}
		if math.IsNaN(*r.GPA) || *r.GPA < 0 {
			return fmt.Errorf("%w: record %s gpa=%v", ErrInvalidMetric, r.ID, *r.GPA)
		}
	case OccupationProfessional:
		if r.GPA != nil {
			return fmt.Errorf("%w: record %s has gpa but occupation is %s", ErrInconsistentRecord, r.ID, r.Occupation)
		}
	default:
		return fmt.Errorf("%w: record %s unknown occupation %q", ErrInconsistentRecord, r.ID, r.Occupation)
	}
	if _, err := ParseRiskLevel(string(r.RiskLabel)); err != nil {
		return fmt.Errorf("%w: record %s: %v", ErrInconsistentRecord, r.ID, err)
	}
	return nil
}
