package cli

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexanderramin/milestones/internal/domain"
	"github.com/alexanderramin/milestones/internal/testutil"
)

func refFixtures() []domain.Entry {
	return []domain.Entry{
		testutil.NewTestEntry("2025-01-14", domain.StageD1, testutil.WithLocalID("aa11"), testutil.WithContent("first")),
		testutil.NewTestEntry("2025-01-14", domain.StageD1, testutil.WithLocalID("aa22"), testutil.WithContent("second")),
		testutil.NewTestEntry("2025-01-15", domain.StageD1, testutil.WithLocalID("bb33")),
		testutil.NewTestEntry("2025-01-14", domain.StageD2, testutil.WithLocalID("cc44")),
	}
}

func TestResolveEntry(t *testing.T) {
	entries := refFixtures()
	tests := []struct {
		ref  string
		want string
	}{
		{"2025-01-14/D1", "aa11"},
		{"2025-01-14/D1/2", "aa22"},
		{"2025-01-14/d2", "cc44"},
		{"14-1-2025/D1/2", "aa22"},
		{"bb", "bb33"},
		{"CC4", "cc44"},
	}
	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			e, err := resolveEntry(entries, tt.ref)
			require.NoError(t, err)
			assert.Equal(t, tt.want, e.LocalID)
		})
	}
}

func TestResolveEntry_Errors(t *testing.T) {
	entries := refFixtures()

	_, err := resolveEntry(entries, "2025-01-14/D1/3")
	assert.ErrorIs(t, err, domain.ErrEntryNotFound)

	_, err = resolveEntry(entries, "2025-01-16/D1")
	assert.ErrorIs(t, err, domain.ErrEntryNotFound)

	_, err = resolveEntry(entries, "zz")
	assert.ErrorIs(t, err, domain.ErrEntryNotFound)

	_, err = resolveEntry(entries, "aa")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ambiguous")

	for _, bad := range []string{"", "2025-01-14/D4", "2025-13-40/D1", "2025-01-14/D1/0", "2025-01-14/D1/x/y"} {
		_, err := resolveEntry(entries, bad)
		assert.Error(t, err, bad)
	}
}

func TestParsePeriodFlags(t *testing.T) {
	q, m, err := parsePeriodFlags("", "")
	require.NoError(t, err)
	assert.Zero(t, q)
	assert.Zero(t, m)

	q, m, err = parsePeriodFlags("q3", "Dec")
	require.NoError(t, err)
	assert.Equal(t, 3, q)
	assert.Equal(t, 12, m)

	_, _, err = parsePeriodFlags("Q5", "")
	assert.Error(t, err)
	_, _, err = parsePeriodFlags("", "13")
	assert.Error(t, err)
}

func TestParseDateArg(t *testing.T) {
	app := &App{Now: func() time.Time { return time.Date(2025, time.March, 3, 23, 0, 0, 0, time.UTC) }}

	d, err := parseDateArg("", app)
	require.NoError(t, err)
	assert.Equal(t, "2025-03-03", d.String())

	d, err = parseDateArg("Today", app)
	require.NoError(t, err)
	assert.Equal(t, "2025-03-03", d.String())

	d, err = parseDateArg("2025-02-28", app)
	require.NoError(t, err)
	assert.Equal(t, "2025-02-28", d.String())

	_, err = parseDateArg("yesterday", app)
	assert.Error(t, err)
}
