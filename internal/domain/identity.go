package domain

// MatchKind records how an identity was resolved.
type MatchKind string

const (
	MatchStableID MatchKind = "stable_id"
	MatchName     MatchKind = "name"
	MatchNone     MatchKind = "none"
)

// Identity is a directory user resolved from a caller-supplied reference.
// Verified is true only for stable-identifier matches; name matches are a
// degraded path and must be shown as unverified.
type Identity struct {
	ID         string
	Name       string
	Username   string
	Department string
	Role       string
	Verified   bool
	MatchedBy  MatchKind
}

// Key returns the identifier used for backend lookups.
func (i Identity) Key() string {
	return CoalesceStr(i.Username, i.ID, i.Name)
}
