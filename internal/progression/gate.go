// Package progression evaluates the three-stage sequential unlock policy.
//
// Two granularities are exposed and both are needed: stage-level unlocks
// decide whether a stage tab is selectable at all, while the per-date gate
// decides whether an individual row's content accepts input. A D2 tab can
// be open while a particular D2 row stays locked until its sibling D1 row
// for the same date is filled.
package progression

import (
	"github.com/alexanderramin/milestones/internal/domain"
)

// DaysRequired is the number of distinct filled dates a stage needs before
// the next stage unlocks.
const DaysRequired = 10

// Progress is the derived progression state of an entry set.
type Progress struct {
	Stage2Unlocked bool
	Stage3Unlocked bool

	// DaysFilled counts distinct dates with non-empty content per stage.
	DaysFilled [3]int

	filled map[domain.Date][3]bool
}

// Evaluate computes progression in a single pass. It never mutates entries.
func Evaluate(entries []domain.Entry) Progress {
	p := Progress{filled: make(map[domain.Date][3]bool)}
	for _, e := range entries {
		i := e.Stage.Index()
		if i < 0 || !e.HasContent() {
			continue
		}
		f := p.filled[e.Date]
		if !f[i] {
			f[i] = true
			p.filled[e.Date] = f
			p.DaysFilled[i]++
		}
	}
	p.Stage2Unlocked = p.DaysFilled[0] >= DaysRequired
	p.Stage3Unlocked = p.Stage2Unlocked && p.DaysFilled[1] >= DaysRequired
	return p
}

// StageUnlocked reports whether the stage tab is selectable.
func (p Progress) StageUnlocked(stage domain.Stage) bool {
	switch stage {
	case domain.StageD1:
		return true
	case domain.StageD2:
		return p.Stage2Unlocked
	case domain.StageD3:
		return p.Stage3Unlocked
	default:
		return false
	}
}

// Editable reports whether the content field of a row at (date, stage)
// accepts input: D1 always; D2 only if the same date has D1 content; D3
// only if the same date has D2 content.
func (p Progress) Editable(date domain.Date, stage domain.Stage) bool {
	prev, ok := stage.Previous()
	if !ok {
		return stage == domain.StageD1
	}
	return p.Filled(date, prev)
}

// Filled reports whether (date, stage) has non-empty content.
func (p Progress) Filled(date domain.Date, stage domain.Stage) bool {
	i := stage.Index()
	if i < 0 {
		return false
	}
	return p.filled[date][i]
}

// Remaining returns how many more distinct dates stage needs to unlock the
// next stage. Zero once the threshold is met.
func (p Progress) Remaining(stage domain.Stage) int {
	i := stage.Index()
	if i < 0 {
		return 0
	}
	if n := DaysRequired - p.DaysFilled[i]; n > 0 {
		return n
	}
	return 0
}

// FirstEmptyStage returns the first stage at date with no content, or D1
// when every stage is already filled.
func (p Progress) FirstEmptyStage(date domain.Date) domain.Stage {
	for _, s := range domain.Stages {
		if !p.Filled(date, s) {
			return s
		}
	}
	return domain.StageD1
}
