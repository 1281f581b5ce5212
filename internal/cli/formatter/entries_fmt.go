package formatter

import (
	"fmt"
	"strings"

	"github.com/alexanderramin/milestones/internal/domain"
	"github.com/alexanderramin/milestones/internal/progression"
)

const contentWidth = 40

// EntryRefs returns the reference of every entry, keyed by LocalID. A ref is
// "DATE/STAGE", with a 1-based "/n" suffix when the date holds more than one
// row of that stage. Position follows domain.SortEntries order.
func EntryRefs(entries []domain.Entry) map[string]string {
	sorted := append([]domain.Entry(nil), entries...)
	domain.SortEntries(sorted)

	type bucket struct {
		date  domain.Date
		stage domain.Stage
	}
	sizes := make(map[bucket]int)
	for _, e := range sorted {
		sizes[bucket{e.Date, e.Stage}]++
	}

	refs := make(map[string]string, len(sorted))
	seen := make(map[bucket]int)
	for _, e := range sorted {
		k := bucket{e.Date, e.Stage}
		seen[k]++
		ref := fmt.Sprintf("%s/%s", e.Date, e.Stage)
		if sizes[k] > 1 {
			ref = fmt.Sprintf("%s/%d", ref, seen[k])
		}
		refs[e.LocalID] = ref
	}
	return refs
}

// ShortID returns the first eight characters of a LocalID.
func ShortID(localID string) string {
	if len(localID) > 8 {
		return localID[:8]
	}
	return localID
}

// FormatEntries renders one table per stage. only limits the output to a
// single stage; pass "" for all three.
func FormatEntries(entries []domain.Entry, tmpl domain.MeetingTemplate, p progression.Progress, only domain.Stage) string {
	sorted := append([]domain.Entry(nil), entries...)
	domain.SortEntries(sorted)
	refs := EntryRefs(sorted)

	var b strings.Builder
	first := true
	for _, stage := range domain.Stages {
		if only != "" && stage != only {
			continue
		}
		if !first {
			b.WriteString("\n")
		}
		first = false

		b.WriteString(StyleHeader.Render(fmt.Sprintf("%s  %s", stage, tmpl.StageHeading(stage))))
		b.WriteString("\n")

		if !p.StageUnlocked(stage) {
			prev, _ := stage.Previous()
			b.WriteString(Dim(fmt.Sprintf("locked: %s needs %d more filled days", prev, p.Remaining(prev))))
			b.WriteString("\n")
			continue
		}

		var rows [][]string
		for _, e := range sorted {
			if e.Stage != stage {
				continue
			}
			rows = append(rows, []string{
				refs[e.LocalID],
				contentCell(e, p),
				StatusLabel(e.EffectiveStatus()),
				idCell(e),
				ShortID(e.LocalID),
			})
		}
		if len(rows) == 0 {
			b.WriteString(Dim("no entries"))
			b.WriteString("\n")
			continue
		}
		b.WriteString(RenderTable([]string{"REF", "CONTENT", "STATUS", "ID", "LOCAL"}, rows))
	}
	return b.String()
}

func contentCell(e domain.Entry, p progression.Progress) string {
	if e.HasContent() {
		return Truncate(OneLine(e.Content), contentWidth)
	}
	if !p.Editable(e.Date, e.Stage) {
		return Dim("(locked)")
	}
	return Dim("(empty)")
}

func idCell(e domain.Entry) string {
	if e.Persisted() {
		return fmt.Sprintf("#%d", *e.ServerID)
	}
	return Dim("draft")
}
