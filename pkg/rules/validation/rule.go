package validation

import (
	"sort"

	"github.com/neatkit/neat/pkg/rules"
)

// Context carries the inputs a check runs against. Checks must treat
// both models as read-only.
type Context struct {
	// Model is the rules model under validation.
	Model *rules.Model
	// Snapshot is the merged Last/Ref prior-version model, nil when the
	// workbook carries no snapshot sheets.
	Snapshot *rules.Model
}

// CheckFunc inspects a model and returns issues. Checks are stateless;
// all context comes via the parameter.
type CheckFunc func(ctx *Context) []Issue

// RuleDef is a data-driven validation rule definition.
type RuleDef struct {
	ID          string    // unique identifier, e.g. "refs/undeclared-value-type"
	Name        string    // human-readable name
	Group       string    // category: structure, refs, role, extension
	Description string    // what the rule checks
	Severity    Severity  // default severity
	Check       CheckFunc // the check function
	// Roles restricts the rule to models of specific roles; empty means
	// all roles.
	Roles []rules.Role
}

// AppliesTo reports whether the rule runs for a model of the given role.
func (d RuleDef) AppliesTo(role rules.Role) bool {
	if len(d.Roles) == 0 {
		return true
	}
	for _, r := range d.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Registry holds the set of rules an Analyzer runs. It is built once at
// startup from a static list; there is no init-time self-registration.
type Registry struct {
	rules map[string]RuleDef
}

// NewRegistry creates a registry from the given rule definitions.
// Duplicate IDs keep the last definition.
func NewRegistry(defs ...RuleDef) *Registry {
	r := &Registry{rules: make(map[string]RuleDef, len(defs))}
	for _, def := range defs {
		r.rules[def.ID] = def
	}
	return r
}

// DefaultRegistry returns a registry with every built-in rule.
func DefaultRegistry() *Registry {
	return NewRegistry(builtinRules()...)
}

// Get returns a rule by ID.
func (r *Registry) Get(id string) (RuleDef, bool) {
	def, ok := r.rules[id]
	return def, ok
}

// All returns the registered rules sorted by ID.
func (r *Registry) All() []RuleDef {
	out := make([]RuleDef, 0, len(r.rules))
	for _, def := range r.rules {
		out = append(out, def)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Count returns the number of registered rules.
func (r *Registry) Count() int { return len(r.rules) }

// builtinRules assembles the static rule list. Order here is the order
// sections of the report appear in when severities tie.
func builtinRules() []RuleDef {
	var defs []RuleDef
	defs = append(defs, structureRules()...)
	defs = append(defs, referenceRules()...)
	defs = append(defs, roleRules()...)
	defs = append(defs, extensionRules()...)
	return defs
}
