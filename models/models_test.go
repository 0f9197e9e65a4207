package models

import (
	"errors"
	"testing"
)

// validRecord returns a record that passes Validate, for tests to mutate.
func validRecord() GamerRecord {
	gpa := 3.2
	return GamerRecord{
		ID:               "G001",
		DailyGamingHours: 3.5,
		MonthlySpending:  42.0,
		SleepHours:       7.0,
		ExerciseHours:    1.0,
		SocialIsolation:  30,
		Productivity:     70,
		GPA:              &gpa,
		Platform:         PlatformPC,
		Genre:            "RPG",
		Occupation:       OccupationStudent,
		RiskLabel:        RiskLow,
	}
}

func TestValidate_OK(t *testing.T) {
	rec := validRecord()
	if err := rec.Validate(); err != nil {
		t.Fatalf("expected valid record, got: %v", err)
	}
}

func TestValidate_GPAPresence(t *testing.T) {
	rec := validRecord()
	rec.GPA = nil
	err := rec.Validate()
	if !errors.Is(err, ErrInconsistentRecord) {
		t.Errorf("student without gpa: expected ErrInconsistentRecord, got %v", err)
	}

	rec = validRecord()
	rec.Occupation = OccupationProfessional
	err = rec.Validate()
	if !errors.Is(err, ErrInconsistentRecord) {
		t.Errorf("professional with gpa: expected ErrInconsistentRecord, got %v", err)
	}

	rec.GPA = nil
	if err := rec.Validate(); err != nil {
		t.Errorf("professional without gpa should be valid, got %v", err)
	}
}

func TestValidate_Ranges(t *testing.T) {
	rec := validRecord()
	rec.DailyGamingHours = -1
	if err := rec.Validate(); !errors.Is(err, ErrInvalidMetric) {
		t.Errorf("negative gaming hours: expected ErrInvalidMetric, got %v", err)
	}

	rec = validRecord()
	rec.SleepHours = 25
	if err := rec.Validate(); !errors.Is(err, ErrInvalidMetric) {
		t.Errorf("sleep_hours=25: expected ErrInvalidMetric, got %v", err)
	}

	rec = validRecord()
	rec.SocialIsolation = 101
	if err := rec.Validate(); !errors.Is(err, ErrInvalidMetric) {
		t.Errorf("isolation=101: expected ErrInvalidMetric, got %v", err)
	}

	// Weight change is a signed delta, negative values are fine.
	rec = validRecord()
	rec.WeightChangeKg = -4.5
	if err := rec.Validate(); err != nil {
		t.Errorf("negative weight change should be valid, got %v", err)
	}
}

func TestValidate_UnknownOccupation(t *testing.T) {
	rec := validRecord()
	rec.Occupation = "Retired"
	if err := rec.Validate(); !errors.Is(err, ErrInconsistentRecord) {
		t.Errorf("expected ErrInconsistentRecord, got %v", err)
	}
}

func TestMetric_Accessor(t *testing.T) {
	rec := validRecord()

	v, err := rec.Metric(MetricMonthlySpending)
	if err != nil || v != 42.0 {
		t.Errorf("monthly_spending: expected 42.0, got %v (err %v)", v, err)
	}

	v, err = rec.Metric(MetricGPA)
	if err != nil || v != 3.2 {
		t.Errorf("gpa: expected 3.2, got %v (err %v)", v, err)
	}

	rec.GPA = nil
	if _, err := rec.Metric(MetricGPA); !errors.Is(err, ErrInvalidMetric) {
		t.Errorf("gpa on record without one: expected ErrInvalidMetric, got %v", err)
	}

	if _, err := rec.Metric("coffee_intake"); !errors.Is(err, ErrUnknownMetric) {
		t.Errorf("expected ErrUnknownMetric, got %v", err)
	}
}

func TestFlag_Accessor(t *testing.T) {
	rec := validRecord()
	rec.WithdrawalSymptoms = true

	b, err := rec.Flag(FlagWithdrawalSymptoms)
	if err != nil || !b {
		t.Errorf("withdrawal_symptoms: expected true, got %v (err %v)", b, err)
	}

	if _, err := rec.Flag("caffeinated"); !errors.Is(err, ErrUnknownFlag) {
		t.Errorf("expected ErrUnknownFlag, got %v", err)
	}
}

func TestParseRiskLevel(t *testing.T) {
	for _, s := range []string{"", "Low", "Moderate", "High", "Severe"} {
		if _, err := ParseRiskLevel(s); err != nil {
			t.Errorf("ParseRiskLevel(%q) should succeed, got %v", s, err)
		}
	}
	if _, err := ParseRiskLevel("Extreme"); err == nil {
		t.Error("ParseRiskLevel(\"Extreme\") should fail")
	}
}
