package service

import (
	"context"
	"strings"

	"github.com/sahilm/fuzzy"
	"github.com/sirupsen/logrus"

	"github.com/alexanderramin/milestones/internal/backend"
	"github.com/alexanderramin/milestones/internal/domain"
)

// DirectoryResolver maps a user reference to a directory identity. Only a
// stable identifier or username match is verified; name matches are
// returned with Verified=false and must be shown as such.
type DirectoryResolver struct {
	client backend.Client
	logger logrus.FieldLogger
}

// NewDirectoryResolver creates a resolver. logger may be nil.
func NewDirectoryResolver(client backend.Client, logger logrus.FieldLogger) *DirectoryResolver {
	if logger == nil {
		logger = discardLogger()
	}
	return &DirectoryResolver{client: client, logger: logger}
}

// Resolve looks ref up in the department's directory. A directory failure
// is treated as an empty directory: the raw reference comes back unverified
// and no error is returned. Only a cancelled ctx is an error.
func (r *DirectoryResolver) Resolve(ctx context.Context, department, ref string) (domain.Identity, error) {
	ref = strings.TrimSpace(ref)
	raw := domain.Identity{ID: ref, Username: ref, Name: ref, Department: department, MatchedBy: domain.MatchNone}
	if ref == "" {
		return raw, nil
	}

	employees, err := r.client.ListEmployees(ctx, department)
	if err != nil {
		if ctx.Err() != nil {
			return raw, ctx.Err()
		}
		r.logger.WithError(err).WithField("department", department).Warn("directory lookup failed")
		return raw, nil
	}
	return MatchIdentity(employees, ref, raw), nil
}

// MatchIdentity applies the matching strategy to an already fetched
// directory: identifier or username equality first, then exact name, then
// the best fuzzy name match. fallback is returned when nothing matches.
func MatchIdentity(employees []domain.Identity, ref string, fallback domain.Identity) domain.Identity {
	for _, e := range employees {
		if strings.EqualFold(e.ID, ref) || (e.Username != "" && strings.EqualFold(e.Username, ref)) {
			e.Verified = true
			e.MatchedBy = domain.MatchStableID
			return e
		}
	}

	names := make([]string, len(employees))
	for i, e := range employees {
		names[i] = strings.ToLower(e.Name)
		if strings.EqualFold(e.Name, ref) {
			e.Verified = false
			e.MatchedBy = domain.MatchName
			return e
		}
	}

	matches := fuzzy.Find(strings.ToLower(ref), names)
	if len(matches) == 0 {
		return fallback
	}
	best := employees[matches[0].Index]
	best.Verified = false
	best.MatchedBy = domain.MatchName
	return best
}
