package validation

import (
	"fmt"
	"regexp"

	"github.com/neatkit/neat/internal/dag"
)

// Sheet names used in issue locations. These match the workbook sheet
// names in pkg/rules/excel.
const (
	sheetMetadata   = "Metadata"
	sheetClasses    = "Classes"
	sheetProperties = "Properties"
	sheetViews      = "Views"
	sheetContainers = "Containers"
)

// identifierPattern is the accepted shape for entity identifiers.
var identifierPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]{0,254}$`)

func structureRules() []RuleDef {
	return []RuleDef{
		{
			ID:          "structure/duplicate-class",
			Name:        "structure.duplicateClass",
			Group:       "structure",
			Description: "Class identifiers must be unique within the Classes sheet",
			Severity:    SeverityError,
			Check:       checkDuplicateClasses,
		},
		{
			ID:          "structure/duplicate-property",
			Name:        "structure.duplicateProperty",
			Group:       "structure",
			Description: "Property identifiers must be unique per class",
			Severity:    SeverityError,
			Check:       checkDuplicateProperties,
		},
		{
			ID:          "structure/duplicate-view",
			Name:        "structure.duplicateView",
			Group:       "structure",
			Description: "View identifiers must be unique within the Views sheet",
			Severity:    SeverityError,
			Check:       checkDuplicateViews,
		},
		{
			ID:          "structure/duplicate-container",
			Name:        "structure.duplicateContainer",
			Group:       "structure",
			Description: "Container identifiers must be unique within the Containers sheet",
			Severity:    SeverityError,
			Check:       checkDuplicateContainers,
		},
		{
			ID:          "structure/invalid-identifier",
			Name:        "structure.invalidIdentifier",
			Group:       "structure",
			Description: "Identifiers must start with a letter and contain only letters, digits, and underscores",
			Severity:    SeverityError,
			Check:       checkIdentifiers,
		},
		{
			ID:          "structure/cardinality",
			Name:        "structure.cardinality",
			Group:       "structure",
			Description: "Property cardinality requires 0 <= min and min <= max when max is bounded",
			Severity:    SeverityError,
			Check:       checkCardinality,
		},
		{
			ID:          "structure/inheritance-cycle",
			Name:        "structure.inheritanceCycle",
			Group:       "structure",
			Description: "Class parent references must form a forest",
			Severity:    SeverityError,
			Check:       checkInheritanceCycles,
		},
	}
}

func checkDuplicateClasses(ctx *Context) []Issue {
	var issues []Issue
	seen := make(map[string]int)
	for _, cls := range ctx.Model.Classes {
		if first, dup := seen[cls.ID]; dup {
			issues = append(issues, Issue{
				Sheet:   sheetClasses,
				Row:     cls.Row,
				Entity:  cls.ID,
				Message: fmt.Sprintf("class %q already declared on row %d", cls.ID, first),
			})
			continue
		}
		seen[cls.ID] = cls.Row
	}
	return issues
}

func checkDuplicateProperties(ctx *Context) []Issue {
	var issues []Issue
	type key struct{ class, prop string }
	seen := make(map[key]int)
	for _, p := range ctx.Model.Properties {
		k := key{p.ClassID, p.ID}
		if first, dup := seen[k]; dup {
			issues = append(issues, Issue{
				Sheet:   sheetProperties,
				Row:     p.Row,
				Entity:  p.ClassID + "." + p.ID,
				Message: fmt.Sprintf("property %q of class %q already declared on row %d", p.ID, p.ClassID, first),
			})
			continue
		}
		seen[k] = p.Row
	}
	return issues
}

func checkDuplicateViews(ctx *Context) []Issue {
	var issues []Issue
	seen := make(map[string]int)
	for _, v := range ctx.Model.Views {
		if first, dup := seen[v.ID]; dup {
			issues = append(issues, Issue{
				Sheet:   sheetViews,
				Row:     v.Row,
				Entity:  v.ID,
				Message: fmt.Sprintf("view %q already declared on row %d", v.ID, first),
			})
			continue
		}
		seen[v.ID] = v.Row
	}
	return issues
}

func checkDuplicateContainers(ctx *Context) []Issue {
	var issues []Issue
	seen := make(map[string]int)
	for _, c := range ctx.Model.Containers {
		if first, dup := seen[c.ID]; dup {
			issues = append(issues, Issue{
				Sheet:   sheetContainers,
				Row:     c.Row,
				Entity:  c.ID,
				Message: fmt.Sprintf("container %q already declared on row %d", c.ID, first),
			})
			continue
		}
		seen[c.ID] = c.Row
	}
	return issues
}

func checkIdentifiers(ctx *Context) []Issue {
	var issues []Issue
	bad := func(sheet string, row int, entity, kind, id string) {
		issues = append(issues, Issue{
			Sheet:   sheet,
			Row:     row,
			Entity:  entity,
			Message: fmt.Sprintf("invalid %s identifier %q", kind, id),
		})
	}
	for _, cls := range ctx.Model.Classes {
		if !identifierPattern.MatchString(cls.ID) {
			bad(sheetClasses, cls.Row, cls.ID, "class", cls.ID)
		}
	}
	for _, p := range ctx.Model.Properties {
		if !identifierPattern.MatchString(p.ID) {
			bad(sheetProperties, p.Row, p.ClassID+"."+p.ID, "property", p.ID)
		}
	}
	for _, v := range ctx.Model.Views {
		if !identifierPattern.MatchString(v.ID) {
			bad(sheetViews, v.Row, v.ID, "view", v.ID)
		}
	}
	for _, c := range ctx.Model.Containers {
		if !identifierPattern.MatchString(c.ID) {
			bad(sheetContainers, c.Row, c.ID, "container", c.ID)
		}
	}
	return issues
}

func checkCardinality(ctx *Context) []Issue {
	var issues []Issue
	for _, p := range ctx.Model.Properties {
		entity := p.ClassID + "." + p.ID
		if p.MinCount < 0 {
			issues = append(issues, Issue{
				Sheet:   sheetProperties,
				Row:     p.Row,
				Entity:  entity,
				Message: fmt.Sprintf("min count must be non-negative, got %d", p.MinCount),
			})
		}
		if p.MaxCount != nil {
			if *p.MaxCount < 0 {
				issues = append(issues, Issue{
					Sheet:   sheetProperties,
					Row:     p.Row,
					Entity:  entity,
					Message: fmt.Sprintf("max count must be non-negative, got %d", *p.MaxCount),
				})
			} else if *p.MaxCount < p.MinCount {
				issues = append(issues, Issue{
					Sheet:   sheetProperties,
					Row:     p.Row,
					Entity:  entity,
					Message: fmt.Sprintf("max count %d is less than min count %d", *p.MaxCount, p.MinCount),
				})
			}
		}
	}
	return issues
}

// checkInheritanceCycles builds the parent graph and reports the first
// cycle found. Edges to undeclared parents are skipped;
// refs/undeclared-parent covers those.
func checkInheritanceCycles(ctx *Context) []Issue {
	g := dag.New()
	for _, cls := range ctx.Model.Classes {
		g.AddNode(cls.ID)
	}
	var issues []Issue
	for _, cls := range ctx.Model.Classes {
		if cls.ParentID == "" || !g.HasNode(cls.ParentID) {
			continue
		}
		if cls.ParentID == cls.ID {
			issues = append(issues, Issue{
				Sheet:   sheetClasses,
				Row:     cls.Row,
				Entity:  cls.ID,
				Message: fmt.Sprintf("class %q declares itself as parent", cls.ID),
			})
			continue
		}
		_ = g.AddEdge(cls.ParentID, cls.ID)
	}

	if cycle, ok := g.FindCycle(); ok {
		issues = append(issues, Issue{
			Sheet:   sheetClasses,
			Message: fmt.Sprintf("inheritance cycle: %v", cycle),
		})
	}
	return issues
}
