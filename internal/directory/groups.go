// Package directory maps raw directory group memberships onto the
// role and service sets the workflow engine understands. The
// directory lookup itself (LDAP bind, search) lives outside this
// module; callers hand in the resolved group names.
package directory

import (
	"strings"

	"github.com/spec-kit/service-desk/internal/domain"
	"github.com/spec-kit/service-desk/internal/permission"
)

// Group name prefixes recognized by the parser.
const (
	rolePrefix       = "ROLE-"
	capabilityPrefix = "CAPABILITY-"
	originPrefix     = "ORIGIN-"
)

// Profile is the parsed output contract: one coarse role plus the two
// normalized membership sets.
type Profile struct {
	Role            domain.Role
	OriginServices  []string
	AllowedServices []string
}

// Parser resolves capability group names through a configurable
// lookup table. Unmapped names pass through verbatim so a new service
// can be introduced without a code change.
type Parser struct {
	capabilityMap map[string]string
}

// NewParser builds a parser. Keys and values of capabilityMap are
// normalized on ingestion.
func NewParser(capabilityMap map[string]string) *Parser {
	normalized := make(map[string]string, len(capabilityMap))
	for k, v := range capabilityMap {
		normalized[permission.Normalize(k)] = permission.Normalize(v)
	}
	return &Parser{capabilityMap: normalized}
}

// Parse derives a Profile from raw group names. Role precedence:
// DIRECTEUR > MANAGER > SOLVER, ADMIN overrides everything, USER is
// the default. Group names may arrive as full DNs; only the leading
// CN component is considered.
func (p *Parser) Parse(groups []string) Profile {
	role := domain.RoleUser
	admin := false
	var origins, allowed []string

	for _, raw := range groups {
		name := permission.Normalize(leadingCN(raw))
		switch {
		case strings.HasPrefix(name, rolePrefix):
			switch strings.TrimPrefix(name, rolePrefix) {
			case "ADMIN":
				admin = true
			case "DIRECTEUR":
				role = domain.RoleDirecteur
			case "MANAGER":
				if role != domain.RoleDirecteur {
					role = domain.RoleManager
				}
			case "SOLVER":
				if role != domain.RoleDirecteur && role != domain.RoleManager {
					role = domain.RoleSolver
				}
			}
		case strings.HasPrefix(name, capabilityPrefix):
			tag := strings.TrimPrefix(name, capabilityPrefix)
			if mapped, ok := p.capabilityMap[tag]; ok {
				tag = mapped
			}
			allowed = append(allowed, tag)
		case strings.HasPrefix(name, originPrefix):
			origins = append(origins, strings.TrimPrefix(name, originPrefix))
		}
	}

	if admin {
		role = domain.RoleAdmin
	}
	if role == domain.RoleSolver && len(allowed) == 0 {
		role = domain.RoleUser
	}
	return Profile{
		Role:            role,
		OriginServices:  permission.NormalizeSet(origins),
		AllowedServices: permission.NormalizeSet(allowed),
	}
}

// leadingCN extracts the CN component from a DN-style group entry,
// e.g. "CN=ROLE-MANAGER,OU=Groups,DC=corp" -> "ROLE-MANAGER".
func leadingCN(entry string) string {
	head := entry
	if idx := strings.IndexByte(entry, ','); idx >= 0 {
		head = entry[:idx]
	}
	head = strings.TrimSpace(head)
	if rest, ok := cutPrefixFold(head, "CN="); ok {
		return rest
	}
	return head
}

func cutPrefixFold(s, prefix string) (string, bool) {
	if len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix) {
		return s[len(prefix):], true
	}
	return s, false
}
