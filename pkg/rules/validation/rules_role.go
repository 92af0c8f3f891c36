package validation

import (
	"fmt"

	"github.com/neatkit/neat/pkg/rules"
)

func roleRules() []RuleDef {
	return []RuleDef{
		{
			ID:          "role/metadata",
			Name:        "role.metadata",
			Group:       "role",
			Description: "Metadata must declare a known role and, beyond domain-expert, prefix/namespace/version",
			Severity:    SeverityError,
			Check:       checkMetadata,
		},
		{
			ID:          "role/missing-value-type",
			Name:        "role.missingValueType",
			Group:       "role",
			Description: "Information-architect and DMS-architect models require a value type on every property",
			Severity:    SeverityError,
			Check:       checkMissingValueType,
			Roles:       []rules.Role{rules.RoleInfoArchitect, rules.RoleDMSArchitect},
		},
		{
			ID:          "role/missing-placement",
			Name:        "role.missingPlacement",
			Group:       "role",
			Description: "DMS-architect models require container and view placement on every property",
			Severity:    SeverityError,
			Check:       checkMissingPlacement,
			Roles:       []rules.Role{rules.RoleDMSArchitect},
		},
		{
			ID:          "role/unresolved-placement",
			Name:        "role.unresolvedPlacement",
			Group:       "role",
			Description: "Property container/view placement must reference declared containers and views",
			Severity:    SeverityError,
			Check:       checkPlacementResolves,
			Roles:       []rules.Role{rules.RoleDMSArchitect},
		},
	}
}

func checkMetadata(ctx *Context) []Issue {
	md := ctx.Model.Metadata
	var issues []Issue
	if !md.Role.Valid() {
		issues = append(issues, Issue{
			Sheet:   sheetMetadata,
			Entity:  "role",
			Message: fmt.Sprintf("unknown role %q", md.Role),
		})
		return issues
	}
	if md.Role == rules.RoleDomainExpert {
		return issues
	}
	for _, field := range []struct{ name, value string }{
		{"prefix", md.Prefix},
		{"namespace", md.Namespace},
		{"version", md.Version},
	} {
		if field.value == "" {
			issues = append(issues, Issue{
				Sheet:   sheetMetadata,
				Entity:  field.name,
				Message: fmt.Sprintf("metadata field %q is required for role %s", field.name, md.Role),
			})
		}
	}
	return issues
}

func checkMissingValueType(ctx *Context) []Issue {
	var issues []Issue
	for _, p := range ctx.Model.Properties {
		if p.ValueType == "" {
			issues = append(issues, Issue{
				Sheet:   sheetProperties,
				Row:     p.Row,
				Entity:  p.ClassID + "." + p.ID,
				Message: fmt.Sprintf("property %q has no value type", p.ID),
			})
		}
	}
	return issues
}

func checkMissingPlacement(ctx *Context) []Issue {
	var issues []Issue
	for _, p := range ctx.Model.Properties {
		if p.Container == "" || p.View == "" {
			issues = append(issues, Issue{
				Sheet:   sheetProperties,
				Row:     p.Row,
				Entity:  p.ClassID + "." + p.ID,
				Message: fmt.Sprintf("property %q has no container/view placement", p.ID),
			})
		}
	}
	return issues
}

func checkPlacementResolves(ctx *Context) []Issue {
	containers := make(map[string]struct{}, len(ctx.Model.Containers))
	for _, c := range ctx.Model.Containers {
		containers[c.ID] = struct{}{}
	}
	views := make(map[string]struct{}, len(ctx.Model.Views))
	for _, v := range ctx.Model.Views {
		views[v.ID] = struct{}{}
	}

	var issues []Issue
	for _, p := range ctx.Model.Properties {
		entity := p.ClassID + "." + p.ID
		if p.Container != "" {
			if _, ok := containers[p.Container]; !ok {
				issues = append(issues, Issue{
					Sheet:   sheetProperties,
					Row:     p.Row,
					Entity:  entity,
					Message: fmt.Sprintf("property %q placed in undeclared container %q", p.ID, p.Container),
				})
			}
		}
		if p.View != "" {
			if _, ok := views[p.View]; !ok {
				issues = append(issues, Issue{
					Sheet:   sheetProperties,
					Row:     p.Row,
					Entity:  entity,
					Message: fmt.Sprintf("property %q exposed on undeclared view %q", p.ID, p.View),
				})
			}
		}
	}
	return issues
}
