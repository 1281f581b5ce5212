package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeriveQuarter(t *testing.T) {
	cases := []struct {
		label string
		month int
		want  int
	}{
		{"Q4", 1, 4},
		{"q2", 11, 2},
		{"Quarter 3", 1, 3},
		{"", 1, 1},
		{"", 3, 1},
		{"", 4, 2},
		{"", 12, 4},
		{"Q9", 8, 3},
		{"", 0, 0},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, DeriveQuarter(tc.label, tc.month), "label=%q month=%d", tc.label, tc.month)
	}
}

func TestFinancialYearContains(t *testing.T) {
	cases := []struct {
		fy   string
		year int
		want bool
	}{
		{"2025", 2025, true},
		{"2025", 2024, false},
		{"2024-2025", 2024, true},
		{"2024-2025", 2025, true},
		{"2024-2025", 2026, false},
		{"2024-25", 2025, true},
		{" 2024 - 2025 ", 2025, true},
		{"", 2025, false},
		{"FY", 2025, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, FinancialYearContains(tc.fy, tc.year), "fy=%q year=%d", tc.fy, tc.year)
	}
}

func TestMeetingTemplate_StageHeading(t *testing.T) {
	tmpl := MeetingTemplate{SubHeads: [3]string{"Plan", "", "Review"}}
	assert.Equal(t, "Plan", tmpl.StageHeading(StageD1))
	assert.Equal(t, "Stage D2", tmpl.StageHeading(StageD2))
	assert.Equal(t, "Review", tmpl.StageHeading(StageD3))
}

func TestSchedule_QuarterParam(t *testing.T) {
	assert.Equal(t, "Q3", Schedule{Quarter: 3}.QuarterParam())
	assert.Equal(t, "Q4", Schedule{Quarter: 4, QuarterLabel: "Q4"}.QuarterParam())
}

func TestParseMonth(t *testing.T) {
	for in, want := range map[string]int{"1": 1, " 12 ": 12, "jan": 1, "September": 9, "SEPT": 9, "dec": 12} {
		got, err := ParseMonth(in)
		if assert.NoError(t, err, in) {
			assert.Equal(t, want, got, in)
		}
	}
	for _, in := range []string{"", "0", "13", "ja", "smarch"} {
		_, err := ParseMonth(in)
		assert.Error(t, err, in)
	}
}

func TestParseQuarter(t *testing.T) {
	q, err := ParseQuarter("q3")
	assert.NoError(t, err)
	assert.Equal(t, 3, q)
	q, err = ParseQuarter("4")
	assert.NoError(t, err)
	assert.Equal(t, 4, q)
	_, err = ParseQuarter("Q5")
	assert.Error(t, err)
}
