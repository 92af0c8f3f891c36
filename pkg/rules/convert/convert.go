// Package convert transforms a rules model between roles. Conversion is
// a strictly one-directional enrichment chain (domain expert ->
// information architect -> DMS architect): no information is dropped
// going down, and going up is not supported. Conversions are pure; the
// input model is never mutated.
package convert

import (
	"fmt"

	"github.com/neatkit/neat/pkg/rules"
)

// ToRole converts the model to the target role, stepping through
// intermediate roles as needed. Converting to the model's current role
// returns an unchanged deep copy, so downward conversion is idempotent.
func ToRole(m *rules.Model, target rules.Role) (*rules.Model, error) {
	if !target.Valid() {
		return nil, fmt.Errorf("unknown target role %q", target)
	}
	current := m.Metadata.Role
	if !current.Valid() {
		return nil, fmt.Errorf("model has unknown role %q", current)
	}
	if target.Level() < current.Level() {
		return nil, fmt.Errorf("cannot convert %s to %s: role conversion only enriches downward", current, target)
	}

	out := m.Clone()
	for out.Metadata.Role.Level() < target.Level() {
		switch out.Metadata.Role {
		case rules.RoleDomainExpert:
			toInfoArchitect(out)
		case rules.RoleInfoArchitect:
			toDMSArchitect(out)
		}
	}
	return out, nil
}

// toInfoArchitect fills the defaults an information architect needs:
// namespace/prefix, normalized value types, and explicit cardinalities.
func toInfoArchitect(m *rules.Model) {
	md := &m.Metadata
	if md.Prefix == "" {
		md.Prefix = "neat"
	}
	if md.Namespace == "" {
		md.Namespace = fmt.Sprintf("http://purl.org/neat/%s/", md.Prefix)
	}
	if md.Version == "" {
		md.Version = "0.1.0"
	}
	if md.Extension == "" {
		md.Extension = rules.ExtensionAddition
	}

	for i := range m.Properties {
		p := &m.Properties[i]
		if p.ValueType != "" {
			p.ValueType = rules.NormalizeValueType(string(p.ValueType))
		}
		// Domain experts rarely state cardinality; default is optional
		// and unbounded, the loosest reading of the sheet.
	}

	md.Role = rules.RoleInfoArchitect
}
