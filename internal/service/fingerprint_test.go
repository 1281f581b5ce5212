package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/alexanderramin/milestones/internal/domain"
	"github.com/alexanderramin/milestones/internal/testutil"
)

func TestSaveFingerprint_IgnoresIdentifiersAndStatus(t *testing.T) {
	a := testutil.NewTestEntry("2025-01-14", domain.StageD1, testutil.WithContent("x"))
	b := a
	b.ServerID = domain.ServerIDPtr(7)
	b.Status = domain.StatusCompleted

	assert.Equal(t, SaveFingerprint([]domain.Entry{a}), SaveFingerprint([]domain.Entry{b}))
}

func TestSaveFingerprint_OrderAndEmptyRowsDoNotMatter(t *testing.T) {
	d1 := testutil.NewTestEntry("2025-01-14", domain.StageD1, testutil.WithContent("x"))
	d2 := testutil.NewTestEntry("2025-01-14", domain.StageD2, testutil.WithContent("y"))
	empty := testutil.NewTestEntry("2025-01-15", domain.StageD1)

	assert.Equal(t,
		SaveFingerprint([]domain.Entry{d1, d2}),
		SaveFingerprint([]domain.Entry{d2, empty, d1}))
}

func TestSaveFingerprint_NormalizesUnicode(t *testing.T) {
	composed := testutil.NewTestEntry("2025-01-14", domain.StageD1, testutil.WithContent("caf\u00e9"))
	decomposed := composed
	decomposed.Content = "cafe\u0301"

	assert.Equal(t, SaveFingerprint([]domain.Entry{composed}), SaveFingerprint([]domain.Entry{decomposed}))
}

func TestSaveFingerprint_ContentChangesIt(t *testing.T) {
	a := testutil.NewTestEntry("2025-01-14", domain.StageD1, testutil.WithContent("x"))
	b := a
	b.Content = "x "
	moved := a
	moved.Stage = domain.StageD2

	fp := SaveFingerprint([]domain.Entry{a})
	assert.NotEqual(t, fp, SaveFingerprint([]domain.Entry{b}))
	assert.NotEqual(t, fp, SaveFingerprint([]domain.Entry{moved}))
}

func TestSaveFingerprint_FieldBoundariesCannotBeForged(t *testing.T) {
	a := testutil.NewTestEntry("2025-01-14", domain.StageD1, testutil.WithContent("ab"))
	b := testutil.NewTestEntry("2025-01-14", domain.StageD1, testutil.WithContent("c"))
	c := testutil.NewTestEntry("2025-01-14", domain.StageD1, testutil.WithContent("a"))
	d := testutil.NewTestEntry("2025-01-14", domain.StageD1, testutil.WithContent("bc"))

	assert.NotEqual(t, SaveFingerprint([]domain.Entry{a, b}), SaveFingerprint([]domain.Entry{c, d}))
}

func TestDayFingerprints_OnlyDatesWithContent(t *testing.T) {
	entries := []domain.Entry{
		testutil.NewTestEntry("2025-01-14", domain.StageD1, testutil.WithContent("x")),
		testutil.NewTestEntry("2025-01-15", domain.StageD1),
		testutil.NewTestEntry("2025-01-16", domain.StageD2, testutil.WithContent("y")),
	}

	fps := DayFingerprints(entries)
	assert.Len(t, fps, 2)
	assert.Contains(t, fps, domain.MustParseDate("2025-01-14"))
	assert.Contains(t, fps, domain.MustParseDate("2025-01-16"))
	assert.Equal(t, DayFingerprint(domain.MustParseDate("2025-01-14"), entries), fps[domain.MustParseDate("2025-01-14")])
}

func TestDayFingerprint_IgnoresOtherDates(t *testing.T) {
	day := testutil.NewTestEntry("2025-01-14", domain.StageD1, testutil.WithContent("x"))
	other := testutil.NewTestEntry("2025-01-15", domain.StageD1, testutil.WithContent("y"))
	date := domain.MustParseDate("2025-01-14")

	assert.Equal(t, DayFingerprint(date, []domain.Entry{day}), DayFingerprint(date, []domain.Entry{day, other}))
}
