package reports

// Average Daily Gaming Hours by Platform
const QueryAvgHoursByPlatform = `
SELECT
  platform,
  COUNT(*) AS gamers,
  ROUND(AVG(daily_gaming_hours)::numeric, 2) AS avg_daily_hours,
  ROUND(AVG(sleep_hours)::numeric, 2) AS avg_sleep_hours
FROM gamer_records
WHERE deleted_at IS NULL
GROUP BY platform
ORDER BY avg_daily_hours DESC;
`

// Monthly Spending by Genre
const QuerySpendingByGenre = `
SELECT
  genre,
  COUNT(*) AS gamers,
  ROUND(SUM(monthly_spending)::numeric, 2) AS total_spending,
  ROUND(AVG(monthly_spending)::numeric, 2) AS avg_spending,
  ROUND(MAX(monthly_spending)::numeric, 2) AS max_spending
FROM gamer_records
WHERE deleted_at IS NULL
GROUP BY genre
ORDER BY total_spending DESC;
`

// Sleep by Behavioral Segment
// Segment boundaries mirror the engine defaults: [0,2) Casual,
// [2,5] Moderate, (5,...) Hardcore.
const QuerySleepBySegment = `
WITH segmented AS (
  SELECT
    CASE
      WHEN daily_gaming_hours < 2 THEN 'Casual'
      WHEN daily_gaming_hours <= 5 THEN 'Moderate'
      ELSE 'Hardcore'
    END AS segment,
    sleep_hours,
    exercise_hours
  FROM gamer_records
  WHERE deleted_at IS NULL
)
SELECT
  segment,
  COUNT(*) AS gamers,
  ROUND(AVG(sleep_hours)::numeric, 2) AS avg_sleep_hours,
  ROUND(AVG(exercise_hours)::numeric, 2) AS avg_exercise_hours,
  SUM(CASE WHEN sleep_hours < 6 THEN 1 ELSE 0 END) AS short_sleepers
FROM segmented
GROUP BY segment
ORDER BY
  CASE segment
    WHEN 'Casual' THEN 1
    WHEN 'Moderate' THEN 2
    ELSE 3
  END;
`

// Student GPA vs Gaming Intensity
const QueryStudentGPABySegment = `
SELECT
  CASE
    WHEN daily_gaming_hours < 2 THEN 'Casual'
    WHEN daily_gaming_hours <= 5 THEN 'Moderate'
    ELSE 'Hardcore'
  END AS segment,
  COUNT(*) AS students,
  ROUND(AVG(gpa)::numeric, 2) AS avg_gpa,
  ROUND(AVG(productivity)::numeric, 2) AS avg_productivity
FROM gamer_records
WHERE deleted_at IS NULL
  AND occupation = 'Student'
  AND gpa IS NOT NULL
GROUP BY 1
ORDER BY avg_gpa DESC;
`

// Risk Label Distribution
const QueryRiskLabelDistribution = `
SELECT
  risk_label,
  COUNT(*) AS gamers,
  ROUND(COUNT(*)::numeric * 100 / SUM(COUNT(*)) OVER (), 2) AS percent
FROM gamer_records
WHERE deleted_at IS NULL
GROUP BY risk_label
ORDER BY gamers DESC;
`

// Withdrawal Symptoms by Social Isolation Band
const QueryWithdrawalByIsolation = `
SELECT
  CASE
    WHEN social_isolation < 25 THEN '0-24'
    WHEN social_isolation < 50 THEN '25-49'
    WHEN social_isolation < 75 THEN '50-74'
    ELSE '75-100'
  END AS isolation_band,
  COUNT(*) AS gamers,
  SUM(CASE WHEN withdrawal_symptoms THEN 1 ELSE 0 END) AS with_withdrawal,
  ROUND(
    SUM(CASE WHEN withdrawal_symptoms THEN 1 ELSE 0 END)::numeric * 100 / COUNT(*),
    2
  ) AS withdrawal_rate_percent
FROM gamer_records
WHERE deleted_at IS NULL
GROUP BY 1
ORDER BY 1;
`

// ReportNames 固定导出顺序
var ReportNames = []string{
	"avg_hours_by_platform",
	"spending_by_genre",
	"sleep_by_segment",
	"student_gpa_by_segment",
	"risk_label_distribution",
	"withdrawal_by_isolation",
}

var catalog = map[string]string{
	"avg_hours_by_platform":   QueryAvgHoursByPlatform,
	"spending_by_genre":       QuerySpendingByGenre,
	"sleep_by_segment":        QuerySleepBySegment,
	"student_gpa_by_segment":  QueryStudentGPABySegment,
	"risk_label_distribution": QueryRiskLabelDistribution,
	"withdrawal_by_isolation": QueryWithdrawalByIsolation,
}

// Query returns the SQL for a named report.
func Query(name string) (string, bool) {
	q, ok := catalog[name]
	return q, ok
}
