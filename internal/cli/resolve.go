package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/alexanderramin/milestones/internal/domain"
)

// resolveEntry finds the entry a command-line reference names. A reference
// is either DATE/STAGE[/n] (n counts rows of that stage on that date from 1,
// in display order) or a prefix of a LocalID.
func resolveEntry(entries []domain.Entry, ref string) (domain.Entry, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return domain.Entry{}, fmt.Errorf("empty entry reference")
	}
	if strings.Contains(ref, "/") {
		return resolveDateRef(entries, ref)
	}

	var found []domain.Entry
	for _, e := range entries {
		if strings.HasPrefix(strings.ToLower(e.LocalID), strings.ToLower(ref)) {
			found = append(found, e)
		}
	}
	switch len(found) {
	case 0:
		return domain.Entry{}, fmt.Errorf("entry %s: %w", ref, domain.ErrEntryNotFound)
	case 1:
		return found[0], nil
	default:
		return domain.Entry{}, fmt.Errorf("entry %s is ambiguous: %d entries share that prefix", ref, len(found))
	}
}

func resolveDateRef(entries []domain.Entry, ref string) (domain.Entry, error) {
	parts := strings.Split(ref, "/")
	if len(parts) < 2 || len(parts) > 3 {
		return domain.Entry{}, fmt.Errorf("invalid entry reference %q (want YYYY-MM-DD/D1[/n])", ref)
	}
	date, err := domain.ParseDate(parts[0])
	if err != nil {
		return domain.Entry{}, fmt.Errorf("invalid entry reference %q: %w", ref, err)
	}
	stage, err := domain.ParseStage(parts[1])
	if err != nil {
		return domain.Entry{}, fmt.Errorf("invalid entry reference %q: %w", ref, err)
	}
	n := 1
	if len(parts) == 3 {
		n, err = strconv.Atoi(parts[2])
		if err != nil || n < 1 {
			return domain.Entry{}, fmt.Errorf("invalid row number in %q", ref)
		}
	}

	var bucket []domain.Entry
	for _, e := range entries {
		if e.Date == date && e.Stage == stage {
			bucket = append(bucket, e)
		}
	}
	if n > len(bucket) {
		return domain.Entry{}, fmt.Errorf("entry %s: %w (%d %s rows on %s)", ref, domain.ErrEntryNotFound, len(bucket), stage, date)
	}
	return bucket[n-1], nil
}

// parsePeriodFlags turns --quarter and --month into numbers; empty is 0.
func parsePeriodFlags(quarter, month string) (int, int, error) {
	var q, m int
	var err error
	if strings.TrimSpace(quarter) != "" {
		if q, err = domain.ParseQuarter(quarter); err != nil {
			return 0, 0, err
		}
	}
	if strings.TrimSpace(month) != "" {
		if m, err = domain.ParseMonth(month); err != nil {
			return 0, 0, err
		}
	}
	return q, m, nil
}

// parseDateArg parses a date flag, defaulting to today.
func parseDateArg(s string, app *App) (domain.Date, error) {
	if strings.TrimSpace(s) == "" || strings.EqualFold(s, "today") {
		return domain.DateOf(app.now()), nil
	}
	return domain.ParseDate(s)
}
