// risk/defaults.go
package risk

import "github.com/wfunc/gamerisk/models"

// 内置规则名
const (
	RuleAtRisk = "at_risk"
	RuleWhales = "whales"
)

// DefaultRules returns the built-in rule set. at_risk is the clinical
// screen: any one strong signal flags the record for review. whales is
// the monetization cohort: a pure percentile cutoff with no OR.
// Deployments override or extend these through the rules section of the
// config file.
func DefaultRules() []RuleConfig {
	return []RuleConfig{
		{
			Name:   RuleAtRisk,
			Policy: PolicyAny,
			Conditions: []Condition{
				{Name: "sleep_hours<6", Kind: KindThreshold, Metric: models.MetricSleepHours, Op: OpLT, Value: 6},
				{Name: "withdrawal_symptoms", Kind: KindFlag, Flag: models.FlagWithdrawalSymptoms},
				{Name: "addiction_risk_level==Severe", Kind: KindLabel, Level: string(models.RiskSevere)},
			},
		},
		{
			Name:   RuleWhales,
			Policy: PolicyAll,
			Conditions: []Condition{
				{Name: "top_5%_monthly_spending", Kind: KindCohort, Metric: models.MetricMonthlySpending, TopPercent: 5},
			},
		},
	}
}

// FindRule picks a rule config by name from a set.
func FindRule(rules []RuleConfig, name string) (RuleConfig, bool) {
	for _, rc := range rules {
		if rc.Name == name {
			return rc, true
		}
	}
	return RuleConfig{}, false
}
