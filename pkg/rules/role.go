package rules

import "fmt"

// Role identifies the intended consumer of a rules document. Each role
// requires progressively more completeness: a domain expert only names
// classes and properties, an information architect adds namespaces and
// typed cardinalities, a DMS architect adds container/view placement.
type Role string

// Known roles, ordered from least to most complete.
const (
	RoleDomainExpert  Role = "domain-expert"
	RoleInfoArchitect Role = "information-architect"
	RoleDMSArchitect  Role = "dms-architect"
)

// roleOrder maps each role to its position in the enrichment chain.
var roleOrder = map[Role]int{
	RoleDomainExpert:  0,
	RoleInfoArchitect: 1,
	RoleDMSArchitect:  2,
}

// ParseRole parses a role string as it appears in a Metadata sheet.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if _, ok := roleOrder[r]; !ok {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

// Level returns the role's position in the enrichment chain
// (domain-expert=0, information-architect=1, dms-architect=2).
// Unknown roles return -1.
func (r Role) Level() int {
	level, ok := roleOrder[r]
	if !ok {
		return -1
	}
	return level
}

// Valid reports whether the role is one of the known roles.
func (r Role) Valid() bool {
	_, ok := roleOrder[r]
	return ok
}

func (r Role) String() string { return string(r) }

// ExtensionPolicy governs what changes are permitted relative to a prior
// or reference model version (the Last/Ref snapshot).
type ExtensionPolicy string

// Extension policies, from most to least restrictive.
const (
	// ExtensionAddition permits only additive changes: snapshot entities
	// may not be removed or incompatibly retyped.
	ExtensionAddition ExtensionPolicy = "addition"
	// ExtensionReshape permits removals but forbids retyping properties
	// that exist in the snapshot.
	ExtensionReshape ExtensionPolicy = "reshape"
	// ExtensionRebuild permits any change.
	ExtensionRebuild ExtensionPolicy = "rebuild"
)

// ParseExtensionPolicy parses an extension policy string. An empty string
// defaults to addition, the safest policy.
func ParseExtensionPolicy(s string) (ExtensionPolicy, error) {
	switch ExtensionPolicy(s) {
	case "":
		return ExtensionAddition, nil
	case ExtensionAddition, ExtensionReshape, ExtensionRebuild:
		return ExtensionPolicy(s), nil
	default:
		return "", fmt.Errorf("unknown extension policy %q", s)
	}
}

func (p ExtensionPolicy) String() string { return string(p) }

// MatchType qualifies an external reference: whether the entity matches
// the referenced ontology term exactly or only partially.
type MatchType string

// Match types for external references.
const (
	MatchExact   MatchType = "exact"
	MatchPartial MatchType = "partial"
)
