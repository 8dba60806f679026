package application

import (
	"slices"
	"strings"

	"ecselfservice/internal/domain"
	"ecselfservice/internal/ports"
)

// AdminPolicy decides whether a login is granted ADMIN. No trigger for ADMIN
// is defined yet; the portal wires an allow-list that is empty by default.
type AdminPolicy func(login string) bool

// AllowListPolicy grants ADMIN to the listed logins.
func AllowListPolicy(logins []string) AdminPolicy {
	allowed := make(map[string]struct{}, len(logins))
	for _, l := range logins {
		allowed[l] = struct{}{}
	}
	return func(login string) bool {
		_, ok := allowed[login]
		return ok
	}
}

type PermissionResolver struct {
	writerTeam string
	admin      AdminPolicy
}

func NewPermissionResolver(writerTeam string, admin AdminPolicy) *PermissionResolver {
	return &PermissionResolver{writerTeam: writerTeam, admin: admin}
}

// Resolve turns memberships into roles. A user with no active membership is
// UNAUTHORIZED and nothing else; everyone else gets READ, plus WRITE for the
// writer team and ADMIN when the admin policy allows it.
func (r *PermissionResolver) Resolve(login string, memberships []domain.TeamMembership) []domain.Permission {
	active := false
	for _, m := range memberships {
		if m.IsMember {
			active = true
			break
		}
	}
	if !active {
		return []domain.Permission{domain.PermissionUnauthorized}
	}

	roles := []domain.Permission{domain.PermissionRead}
	for _, m := range memberships {
		if m.Slug == r.writerTeam && m.IsMember {
			roles = append(roles, domain.PermissionWrite)
			break
		}
	}
	if r.admin != nil && r.admin(login) {
		roles = append(roles, domain.PermissionAdmin)
	}
	return roles
}

// DetermineMemberships reports, for every visible team, whether login is
// among its members. Teams without a record are skipped.
func DetermineMemberships(login string, teams ports.UserTeams) []domain.TeamMembership {
	out := make([]domain.TeamMembership, 0, len(teams.Teams))
	for _, record := range teams.Teams {
		if record == nil {
			continue
		}
		isMember := false
		if record.Total > 0 {
			for _, m := range record.Members {
				if m.Login == login {
					isMember = true
					break
				}
			}
		}
		out = append(out, domain.TeamMembership{Name: record.Name, Slug: record.Slug, IsMember: isMember})
	}
	slices.SortFunc(out, func(a, b domain.TeamMembership) int { return strings.Compare(a.Slug, b.Slug) })
	return out
}
