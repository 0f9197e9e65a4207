// risk/rule.go
package risk

import (
	"errors"
	"fmt"
	"math"

	"github.com/wfunc/gamerisk/models"
	"github.com/wfunc/gamerisk/rank"
	"github.com/wfunc/gamerisk/segment"
)

// 规则构建期错误，全部在 Build 时暴露
var (
	// ErrUnknownCondition is returned when a rule references a condition
	// name that is not defined in its catalog.
	ErrUnknownCondition = errors.New("unknown condition")

	// ErrUnknownConditionKind is returned for a condition whose kind is
	// none of the defined variants.
	ErrUnknownConditionKind = errors.New("unknown condition kind")

	// ErrInvalidPolicy is returned for a policy other than any/all.
	ErrInvalidPolicy = errors.New("invalid policy")

	// ErrNoConditions is returned for a rule with an empty catalog.
	ErrNoConditions = errors.New("rule has no conditions")
)

// 条件类型，规则配置里的 kind 字段
const (
	KindThreshold = "threshold" // 数值阈值比较
	KindFlag      = "flag"      // 布尔健康标记
	KindLabel     = "label"     // 上游风险标签相等
	KindSegment   = "segment"   // 行为分段归属
	KindCohort    = "cohort"    // 百分位群组归属
)

// 阈值比较操作符
const (
	OpLT = "lt"
	OpLE = "le"
	OpGT = "gt"
	OpGE = "ge"
	OpEQ = "eq"
)

// 组合策略
const (
	PolicyAny = "any" // 任一条件命中即标记
	PolicyAll = "all" // 全部条件命中才标记
)

// Condition is one named sub-condition of a rule. Kind selects which of
// the remaining fields are meaningful, so a whole catalog can live in a
// config file as plain data.
type Condition struct {
	Name string `mapstructure:"name" json:"name"`
	Kind string `mapstructure:"kind" json:"kind"`

	// threshold 与 cohort 用
	Metric models.Metric `mapstructure:"metric" json:"metric,omitempty"`

	// threshold 用
	Op    string  `mapstructure:"op" json:"op,omitempty"`
	Value float64 `mapstructure:"value" json:"value,omitempty"`

	// flag 用
	Flag models.Flag `mapstructure:"flag" json:"flag,omitempty"`

	// label 用
	Level string `mapstructure:"level" json:"level,omitempty"`

	// segment 用
	Segment segment.Segment `mapstructure:"segment" json:"segment,omitempty"`

	// cohort 用，k ∈ (0,100]
	TopPercent float64 `mapstructure:"top_percent" json:"top_percent,omitempty"`
}

// RuleConfig is the data form of a composite rule: an ordered catalog of
// named conditions, a combination policy, and an optional Use subset.
// An empty Use means every catalog condition is in use.
type RuleConfig struct {
	Name       string      `mapstructure:"name" json:"name"`
	Policy     string      `mapstructure:"policy" json:"policy"`
	Use        []string    `mapstructure:"use" json:"use,omitempty"`
	Conditions []Condition `mapstructure:"conditions" json:"conditions"`
}

// Build validates the whole configuration and compiles it into a Rule.
// Every defect fails here, at construction time, so a broken condition
// can never be silently dropped from evaluation later.
func (cfg RuleConfig) Build() (*Rule, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("rule has no name")
	}
	if len(cfg.Conditions) == 0 {
		return nil, fmt.Errorf("rule %s: %w", cfg.Name, ErrNoConditions)
	}

	byName := make(map[string]int, len(cfg.Conditions))
	for i, c := range cfg.Conditions {
		if c.Name == "" {
			return nil, fmt.Errorf("rule %s: condition %d has no name", cfg.Name, i)
		}
		if _, dup := byName[c.Name]; dup {
			return nil, fmt.Errorf("rule %s: duplicate condition %q", cfg.Name, c.Name)
		}
		if err := validateCondition(c); err != nil {
			return nil, fmt.Errorf("rule %s: condition %q: %w", cfg.Name, c.Name, err)
		}
		byName[c.Name] = i
	}

	policy := cfg.Policy
	if policy == "" {
		policy = PolicyAny
	}
	if policy != PolicyAny && policy != PolicyAll {
		return nil, fmt.Errorf("rule %s: %w: %q", cfg.Name, ErrInvalidPolicy, cfg.Policy)
	}

	// Use 为空表示启用目录中的全部条件
	inUse := cfg.Conditions
	if len(cfg.Use) > 0 {
		seen := make(map[string]bool, len(cfg.Use))
		picked := make([]bool, len(cfg.Conditions))
		for _, name := range cfg.Use {
			i, ok := byName[name]
			if !ok {
				return nil, fmt.Errorf("rule %s: %w: %q", cfg.Name, ErrUnknownCondition, name)
			}
			if seen[name] {
				return nil, fmt.Errorf("rule %s: condition %q used twice", cfg.Name, name)
			}
			seen[name] = true
			picked[i] = true
		}
		// 按目录顺序保留启用的条件
		inUse = make([]Condition, 0, len(cfg.Use))
		for i, c := range cfg.Conditions {
			if picked[i] {
				inUse = append(inUse, c)
			}
		}
	}

	return &Rule{name: cfg.Name, policy: policy, conditions: inUse}, nil
}

// MustBuild is Build for known-good configurations; it panics on error.
func (cfg RuleConfig) MustBuild() *Rule {
	r, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	return r
}

func validateCondition(c Condition) error {
	switch c.Kind {
	case KindThreshold:
		if !models.KnownMetric(c.Metric) {
			return fmt.Errorf("%w: %q", models.ErrUnknownMetric, c.Metric)
		}
		switch c.Op {
		case OpLT, OpLE, OpGT, OpGE, OpEQ:
		default:
			return fmt.Errorf("unknown op %q", c.Op)
		}
		if math.IsNaN(c.Value) {
			return fmt.Errorf("%w: threshold value is NaN", models.ErrInvalidMetric)
		}
	case KindFlag:
		if !models.KnownFlag(c.Flag) {
			return fmt.Errorf("%w: %q", models.ErrUnknownFlag, c.Flag)
		}
	case KindLabel:
		lvl, err := models.ParseRiskLevel(c.Level)
		if err != nil {
			return err
		}
		if lvl == "" {
			return fmt.Errorf("label condition has no level")
		}
	case KindSegment:
		if c.Segment == "" {
			return fmt.Errorf("segment condition has no segment")
		}
	case KindCohort:
		if !models.KnownMetric(c.Metric) {
			return fmt.Errorf("%w: %q", models.ErrUnknownMetric, c.Metric)
		}
		if math.IsNaN(c.TopPercent) || c.TopPercent <= 0 || c.TopPercent > 100 {
			return fmt.Errorf("%w: top_percent=%v", rank.ErrInvalidPercentile, c.TopPercent)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownConditionKind, c.Kind)
	}
	return nil
}

// Rule is a compiled, immutable composite predicate. Build is the only
// way to obtain one, so every Rule in the system has passed validation.
type Rule struct {
	name       string
	policy     string
	conditions []Condition // 按目录顺序，仅含启用的条件
}

func (r *Rule) Name() string {
	return r.name
}

func (r *Rule) Policy() string {
	return r.policy
}

// CohortConditions returns the in-use cohort conditions. Callers that
// prepare a Context run one ranking pass per entry and key the
// membership set by the condition name.
func (r *Rule) CohortConditions() []Condition {
	var out []Condition
	for _, c := range r.conditions {
		if c.Kind == KindCohort {
			out = append(out, c)
		}
	}
	return out
}
