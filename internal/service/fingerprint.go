package service

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"

	"golang.org/x/text/unicode/norm"

	"github.com/alexanderramin/milestones/internal/domain"
)

// Fingerprint domains. The version suffix changes whenever the canonical
// encoding does, so journals written by older builds never compare equal.
const (
	domainSetFingerprint = "milestones/save-set/v1"
	domainDayFingerprint = "milestones/save-day/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data) as hex.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// canonicalContent appends the (date, stage, content) triples of the
// non-empty entries in canonical order. Content is NFC-normalized and
// length-prefixed so no content can forge a field boundary.
func canonicalContent(buf []byte, entries []domain.Entry) []byte {
	sorted := make([]domain.Entry, 0, len(entries))
	for _, e := range entries {
		if e.HasContent() {
			sorted = append(sorted, e)
		}
	}
	domain.SortEntries(sorted)

	for _, e := range sorted {
		content := norm.NFC.String(e.Content)
		buf = append(buf, e.Date.String()...)
		buf = append(buf, 0x1f)
		buf = append(buf, e.Stage...)
		buf = append(buf, 0x1f)
		buf = strconv.AppendInt(buf, int64(len(content)), 10)
		buf = append(buf, ':')
		buf = append(buf, content...)
		buf = append(buf, 0x1e)
	}
	return buf
}

// SaveFingerprint is the content-only signature of an entry set. Server
// identifiers and statuses do not take part, so writing back identifiers
// after a save leaves it unchanged.
func SaveFingerprint(entries []domain.Entry) string {
	return hashWithDomain(domainSetFingerprint, canonicalContent(nil, entries))
}

// DayFingerprint is SaveFingerprint restricted to the entries of one date.
// Entries of other dates are ignored.
func DayFingerprint(date domain.Date, entries []domain.Entry) string {
	day := make([]domain.Entry, 0, 3)
	for _, e := range entries {
		if e.Date == date {
			day = append(day, e)
		}
	}
	return hashWithDomain(domainDayFingerprint, canonicalContent(nil, day))
}

// DayFingerprints returns the fingerprint of every date that has content.
func DayFingerprints(entries []domain.Entry) map[domain.Date]string {
	dates, groups := domain.GroupByDate(entries)
	fps := make(map[domain.Date]string, len(dates))
	for _, d := range dates {
		if !hasContent(groups[d]) {
			continue
		}
		fps[d] = hashWithDomain(domainDayFingerprint, canonicalContent(nil, groups[d]))
	}
	return fps
}

func hasContent(entries []domain.Entry) bool {
	for _, e := range entries {
		if e.HasContent() {
			return true
		}
	}
	return false
}
