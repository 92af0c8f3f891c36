package validation

import (
	"fmt"

	"github.com/neatkit/neat/internal/dag"
	"github.com/neatkit/neat/pkg/rules"
)

func referenceRules() []RuleDef {
	return []RuleDef{
		{
			ID:          "refs/undeclared-class",
			Name:        "refs.undeclaredClass",
			Group:       "refs",
			Description: "Every property must belong to a class declared in the Classes sheet",
			Severity:    SeverityError,
			Check:       checkUndeclaredClass,
		},
		{
			ID:          "refs/undeclared-value-type",
			Name:        "refs.undeclaredValueType",
			Group:       "refs",
			Description: "Property value types must resolve to a primitive or a declared class",
			Severity:    SeverityError,
			Check:       checkUndeclaredValueType,
		},
		{
			ID:          "refs/undeclared-parent",
			Name:        "refs.undeclaredParent",
			Group:       "refs",
			Description: "Class parents must be declared in the Classes sheet",
			Severity:    SeverityError,
			Check:       checkUndeclaredParent,
		},
		{
			ID:          "refs/undeclared-implements",
			Name:        "refs.undeclaredImplements",
			Group:       "refs",
			Description: "View implements references must resolve to declared views",
			Severity:    SeverityError,
			Check:       checkViewImplements,
		},
		{
			ID:          "refs/undeclared-constraint",
			Name:        "refs.undeclaredConstraint",
			Group:       "refs",
			Description: "Container constraints must reference declared containers",
			Severity:    SeverityError,
			Check:       checkContainerConstraints,
		},
		{
			ID:          "refs/constraint-cycle",
			Name:        "refs.constraintCycle",
			Group:       "refs",
			Description: "Container constraint dependencies must be acyclic",
			Severity:    SeverityError,
			Check:       checkConstraintCycle,
		},
	}
}

func classSet(m *rules.Model) map[string]struct{} {
	set := make(map[string]struct{}, len(m.Classes))
	for _, cls := range m.Classes {
		set[cls.ID] = struct{}{}
	}
	return set
}

func checkUndeclaredClass(ctx *Context) []Issue {
	declared := classSet(ctx.Model)
	var issues []Issue
	for _, p := range ctx.Model.Properties {
		if _, ok := declared[p.ClassID]; !ok {
			issues = append(issues, Issue{
				Sheet:   sheetProperties,
				Row:     p.Row,
				Entity:  p.ClassID + "." + p.ID,
				Message: fmt.Sprintf("property %q references undeclared class %q", p.ID, p.ClassID),
			})
		}
	}
	return issues
}

func checkUndeclaredValueType(ctx *Context) []Issue {
	declared := classSet(ctx.Model)
	var issues []Issue
	for _, p := range ctx.Model.Properties {
		if p.ValueType == "" {
			continue // role/missing-value-type reports empties
		}
		ref, isRef := p.ValueType.ClassRef()
		if !isRef {
			continue
		}
		if _, ok := declared[ref]; !ok {
			issues = append(issues, Issue{
				Sheet:   sheetProperties,
				Row:     p.Row,
				Entity:  p.ClassID + "." + p.ID,
				Message: fmt.Sprintf("value type %q is neither a primitive nor a declared class", ref),
			})
		}
	}
	return issues
}

func checkUndeclaredParent(ctx *Context) []Issue {
	declared := classSet(ctx.Model)
	var issues []Issue
	for _, cls := range ctx.Model.Classes {
		if cls.ParentID == "" {
			continue
		}
		if _, ok := declared[cls.ParentID]; !ok {
			issues = append(issues, Issue{
				Sheet:   sheetClasses,
				Row:     cls.Row,
				Entity:  cls.ID,
				Message: fmt.Sprintf("class %q references undeclared parent %q", cls.ID, cls.ParentID),
			})
		}
	}
	return issues
}

func checkViewImplements(ctx *Context) []Issue {
	declared := make(map[string]struct{}, len(ctx.Model.Views))
	for _, v := range ctx.Model.Views {
		declared[v.ID] = struct{}{}
	}
	var issues []Issue
	for _, v := range ctx.Model.Views {
		for _, impl := range v.Implements {
			if _, ok := declared[impl]; !ok {
				issues = append(issues, Issue{
					Sheet:   sheetViews,
					Row:     v.Row,
					Entity:  v.ID,
					Message: fmt.Sprintf("view %q implements undeclared view %q", v.ID, impl),
				})
			}
		}
	}
	return issues
}

func checkContainerConstraints(ctx *Context) []Issue {
	declared := make(map[string]struct{}, len(ctx.Model.Containers))
	for _, c := range ctx.Model.Containers {
		declared[c.ID] = struct{}{}
	}
	var issues []Issue
	for _, c := range ctx.Model.Containers {
		for _, req := range c.Constraints {
			if _, ok := declared[req]; !ok {
				issues = append(issues, Issue{
					Sheet:   sheetContainers,
					Row:     c.Row,
					Entity:  c.ID,
					Message: fmt.Sprintf("container %q requires undeclared container %q", c.ID, req),
				})
			}
		}
	}
	return issues
}

func checkConstraintCycle(ctx *Context) []Issue {
	g := dag.New()
	for _, c := range ctx.Model.Containers {
		g.AddNode(c.ID)
	}
	var issues []Issue
	for _, c := range ctx.Model.Containers {
		for _, req := range c.Constraints {
			if !g.HasNode(req) {
				continue
			}
			if req == c.ID {
				issues = append(issues, Issue{
					Sheet:   sheetContainers,
					Row:     c.Row,
					Entity:  c.ID,
					Message: fmt.Sprintf("container %q requires itself", c.ID),
				})
				continue
			}
			_ = g.AddEdge(req, c.ID)
		}
	}
	if cycle, ok := g.FindCycle(); ok {
		issues = append(issues, Issue{
			Sheet:   sheetContainers,
			Message: fmt.Sprintf("container constraint cycle: %v", cycle),
		})
	}
	return issues
}
