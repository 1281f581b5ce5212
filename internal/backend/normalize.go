package backend

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/alexanderramin/milestones/internal/domain"
	"github.com/spf13/cast"
)

// Backend records arrive with inconsistent field names ("Employee_id",
// "Employee ID", "id"; "quater" vs "quarter"). Every alias is folded here,
// once per record, into canonical Go types; nothing past this file looks at
// raw field names.

type rawRecord map[string]any

// fieldAliases lists accepted spellings per canonical field, in priority
// order. Keys are compared after canonicalKey folding.
var fieldAliases = map[string][]string{
	"schedule_id":    {"month_quater_id", "month_quarter_id", "monthQuaterId", "id"},
	"month":          {"month"},
	"quarter":        {"quater", "quarter"},
	"financial_year": {"financial_year", "financialYear", "fy"},
	"template_id":    {"meeting_template_id", "template_id", "meetingTemplateId"},
	"head":           {"Meeting-head", "meeting_head", "head"},
	"sub_head":       {"Sub-Meeting-head", "sub_meeting_head", "sub_head"},
	"sub_head_d1":    {"sub-head-D1", "sub_head_d1", "subHeadD1"},
	"sub_head_d2":    {"sub-head-D2", "sub_head_d2", "subHeadD2"},
	"sub_head_d3":    {"sub-head-D3", "sub_head_d3", "subHeadD3"},
	"username":       {"username", "user_name", "user"},
	"entry_id":       {"id", "entry_id", "entryId"},
	"note":           {"note", "notes"},
	"status":         {"status"},
	"date":           {"date", "entry_date", "day"},
	"employee_id":    {"Employee_id", "Employee ID", "employee_id", "emp_id", "id"},
	"employee_name":  {"name", "Employee Name", "employee_name", "full_name"},
	"department":     {"department", "dept", "Department Name"},
	"role":           {"role", "designation"},
}

// canonicalKey lowercases k and drops everything but letters and digits, so
// "Employee ID", "Employee_id" and "employee-id" compare equal.
func canonicalKey(k string) string {
	var b strings.Builder
	for _, r := range k {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

func foldRecord(m map[string]any) rawRecord {
	out := make(rawRecord, len(m))
	for k, v := range m {
		ck := canonicalKey(k)
		if _, exists := out[ck]; !exists {
			out[ck] = v
		}
	}
	return out
}

func (r rawRecord) lookup(field string) (any, bool) {
	for _, alias := range fieldAliases[field] {
		if v, ok := r[canonicalKey(alias)]; ok && v != nil {
			if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
				continue
			}
			return v, true
		}
	}
	return nil, false
}

func (r rawRecord) str(field string) string {
	v, ok := r.lookup(field)
	if !ok {
		return ""
	}
	return strings.TrimSpace(cast.ToString(v))
}

func (r rawRecord) int64(field string) (int64, bool) {
	v, ok := r.lookup(field)
	if !ok {
		return 0, false
	}
	n, err := toInt64(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

// toInt64 coerces JSON numbers and numeric strings. Strings are parsed in
// base 10 so zero-padded values like "08" are accepted.
func toInt64(v any) (int64, error) {
	if s, ok := v.(string); ok {
		s = strings.TrimSpace(s)
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n, nil
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil && f == float64(int64(f)) {
			return int64(f), nil
		}
		return 0, fmt.Errorf("not an integer: %q", s)
	}
	return cast.ToInt64E(v)
}

func parseMonth(v any) (int, bool) {
	if n, err := toInt64(v); err == nil {
		if n >= 1 && n <= 12 {
			return int(n), true
		}
		return 0, false
	}
	s := strings.ToLower(strings.TrimSpace(cast.ToString(v)))
	for m := time.January; m <= time.December; m++ {
		name := strings.ToLower(m.String())
		if s == name || (len(s) >= 3 && strings.HasPrefix(name, s)) {
			return int(m), true
		}
	}
	return 0, false
}

// decodeList accepts a bare JSON array or an envelope with a "data" or
// "items" array.
func decodeList(body []byte) ([]map[string]any, error) {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" || trimmed == "null" {
		return nil, nil
	}
	var list []map[string]any
	if strings.HasPrefix(trimmed, "[") {
		if err := json.Unmarshal(body, &list); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
		}
		return list, nil
	}
	var envelope struct {
		Data  []map[string]any `json:"data"`
		Items []map[string]any `json:"items"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if envelope.Data != nil {
		return envelope.Data, nil
	}
	return envelope.Items, nil
}

// NormalizeSchedule maps one raw schedule record to a domain.Schedule.
// Records without a usable month are reported as invalid.
func NormalizeSchedule(m map[string]any) (domain.Schedule, error) {
	r := foldRecord(m)

	var s domain.Schedule
	if id, ok := r.int64("schedule_id"); ok && id > 0 {
		s.ID = id
	}
	monthVal, ok := r.lookup("month")
	if !ok {
		return domain.Schedule{}, fmt.Errorf("schedule record has no month")
	}
	month, ok := parseMonth(monthVal)
	if !ok {
		return domain.Schedule{}, fmt.Errorf("schedule record has invalid month %v", monthVal)
	}
	s.Month = month
	s.QuarterLabel = r.str("quarter")
	s.Quarter = domain.DeriveQuarter(s.QuarterLabel, month)
	if s.QuarterLabel != "" && !strings.HasPrefix(strings.ToUpper(s.QuarterLabel), "Q") {
		// Numeric quarters are re-rendered as "Qn" for the entries query.
		s.QuarterLabel = ""
	}
	s.FinancialYear = r.str("financial_year")
	s.MeetingTemplateID = r.str("template_id")
	s.Username = r.str("username")

	tmpl := domain.MeetingTemplate{
		Head:    r.str("head"),
		SubHead: r.str("sub_head"),
		SubHeads: [3]string{
			r.str("sub_head_d1"),
			r.str("sub_head_d2"),
			r.str("sub_head_d3"),
		},
	}
	if !tmpl.IsZero() {
		s.Template = &tmpl
	}
	return s, nil
}

// NormalizeDayRecord maps one raw entries record to a DayRecord. Invalid
// identifiers become nil; unusable dates leave Date zero.
func NormalizeDayRecord(m map[string]any) DayRecord {
	r := foldRecord(m)

	rec := DayRecord{
		Note:     cast.ToString(valueOr(r, "note")),
		RawDate:  r.str("date"),
		Username: r.str("username"),
	}
	if id, ok := r.int64("entry_id"); ok {
		rec.ID = domain.ServerIDPtr(id)
	}
	if st, err := domain.ParseEntryStatus(r.str("status")); err == nil {
		rec.Status = st
	} else {
		rec.Status = domain.StatusPending
	}
	if d, err := domain.ParseDate(rec.RawDate); err == nil {
		rec.Date = d
	}
	return rec
}

// NormalizeEmployee maps one raw directory record to an unverified
// identity; verification is decided by the caller's matching strategy.
func NormalizeEmployee(m map[string]any) domain.Identity {
	r := foldRecord(m)
	return domain.Identity{
		ID:         r.str("employee_id"),
		Name:       r.str("employee_name"),
		Username:   r.str("username"),
		Department: r.str("department"),
		Role:       r.str("role"),
	}
}

func valueOr(r rawRecord, field string) any {
	v, ok := r.lookup(field)
	if !ok {
		return ""
	}
	return v
}
