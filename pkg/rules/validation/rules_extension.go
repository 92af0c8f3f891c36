package validation

import (
	"fmt"

	"github.com/neatkit/neat/pkg/rules"
)

// Extension rules compare the model against the merged Last/Ref snapshot.
// They are inert when no snapshot sheets were present in the workbook.

func extensionRules() []RuleDef {
	return []RuleDef{
		{
			ID:          "extension/removed-entity",
			Name:        "extension.removedEntity",
			Group:       "extension",
			Description: "With extension=addition, entities present in the snapshot may not be removed",
			Severity:    SeverityError,
			Check:       checkRemovedEntities,
		},
		{
			ID:          "extension/retyped-property",
			Name:        "extension.retypedProperty",
			Group:       "extension",
			Description: "With extension=addition or reshape, snapshot properties may not change value type",
			Severity:    SeverityError,
			Check:       checkRetypedProperties,
		},
		{
			ID:          "extension/narrowed-cardinality",
			Name:        "extension.narrowedCardinality",
			Group:       "extension",
			Description: "With extension=addition, snapshot property cardinality may not narrow",
			Severity:    SeverityError,
			Check:       checkNarrowedCardinality,
		},
		{
			ID:          "extension/reparented-class",
			Name:        "extension.reparentedClass",
			Group:       "extension",
			Description: "With extension=addition, snapshot classes may not change parent",
			Severity:    SeverityWarning,
			Check:       checkReparentedClasses,
		},
	}
}

// policyAtMost reports whether the model's policy is the given one or a
// stricter one. addition < reshape < rebuild in permissiveness.
func policyAtMost(m *rules.Model, p rules.ExtensionPolicy) bool {
	policy := m.Metadata.Extension
	if policy == "" {
		policy = rules.ExtensionAddition
	}
	switch p {
	case rules.ExtensionAddition:
		return policy == rules.ExtensionAddition
	case rules.ExtensionReshape:
		return policy == rules.ExtensionAddition || policy == rules.ExtensionReshape
	default:
		return true
	}
}

func checkRemovedEntities(ctx *Context) []Issue {
	if ctx.Snapshot == nil || !policyAtMost(ctx.Model, rules.ExtensionAddition) {
		return nil
	}

	var issues []Issue
	for _, prev := range ctx.Snapshot.Classes {
		if _, ok := ctx.Model.ClassByID(prev.ID); !ok {
			issues = append(issues, Issue{
				Sheet:   sheetClasses,
				Entity:  prev.ID,
				Message: fmt.Sprintf("class %q exists in the reference model but was removed (extension=addition)", prev.ID),
			})
		}
	}
	for _, prev := range ctx.Snapshot.Properties {
		if _, ok := ctx.Model.PropertyOf(prev.ClassID, prev.ID); !ok {
			issues = append(issues, Issue{
				Sheet:   sheetProperties,
				Entity:  prev.ClassID + "." + prev.ID,
				Message: fmt.Sprintf("property %q of class %q exists in the reference model but was removed (extension=addition)", prev.ID, prev.ClassID),
			})
		}
	}
	for _, prev := range ctx.Snapshot.Views {
		if _, ok := ctx.Model.ViewByID(prev.ID); !ok {
			issues = append(issues, Issue{
				Sheet:   sheetViews,
				Entity:  prev.ID,
				Message: fmt.Sprintf("view %q exists in the reference model but was removed (extension=addition)", prev.ID),
			})
		}
	}
	for _, prev := range ctx.Snapshot.Containers {
		if _, ok := ctx.Model.ContainerByID(prev.ID); !ok {
			issues = append(issues, Issue{
				Sheet:   sheetContainers,
				Entity:  prev.ID,
				Message: fmt.Sprintf("container %q exists in the reference model but was removed (extension=addition)", prev.ID),
			})
		}
	}
	return issues
}

func checkRetypedProperties(ctx *Context) []Issue {
	if ctx.Snapshot == nil || !policyAtMost(ctx.Model, rules.ExtensionReshape) {
		return nil
	}

	var issues []Issue
	for _, prev := range ctx.Snapshot.Properties {
		cur, ok := ctx.Model.PropertyOf(prev.ClassID, prev.ID)
		if !ok {
			continue // removal handled by extension/removed-entity
		}
		if prev.ValueType != "" && cur.ValueType != prev.ValueType {
			issues = append(issues, Issue{
				Sheet:   sheetProperties,
				Row:     cur.Row,
				Entity:  cur.ClassID + "." + cur.ID,
				Message: fmt.Sprintf("property %q changed value type from %q to %q (extension=%s)", cur.ID, prev.ValueType, cur.ValueType, ctx.Model.Metadata.Extension),
			})
		}
	}
	return issues
}

func checkNarrowedCardinality(ctx *Context) []Issue {
	if ctx.Snapshot == nil || !policyAtMost(ctx.Model, rules.ExtensionAddition) {
		return nil
	}

	var issues []Issue
	for _, prev := range ctx.Snapshot.Properties {
		cur, ok := ctx.Model.PropertyOf(prev.ClassID, prev.ID)
		if !ok {
			continue
		}
		entity := cur.ClassID + "." + cur.ID
		if cur.MinCount > prev.MinCount {
			issues = append(issues, Issue{
				Sheet:   sheetProperties,
				Row:     cur.Row,
				Entity:  entity,
				Message: fmt.Sprintf("property %q min count raised from %d to %d (extension=addition)", cur.ID, prev.MinCount, cur.MinCount),
			})
		}
		if prev.MaxCount == nil && cur.MaxCount != nil {
			issues = append(issues, Issue{
				Sheet:   sheetProperties,
				Row:     cur.Row,
				Entity:  entity,
				Message: fmt.Sprintf("property %q max count bounded to %d but was unbounded (extension=addition)", cur.ID, *cur.MaxCount),
			})
		} else if prev.MaxCount != nil && cur.MaxCount != nil && *cur.MaxCount < *prev.MaxCount {
			issues = append(issues, Issue{
				Sheet:   sheetProperties,
				Row:     cur.Row,
				Entity:  entity,
				Message: fmt.Sprintf("property %q max count narrowed from %d to %d (extension=addition)", cur.ID, *prev.MaxCount, *cur.MaxCount),
			})
		}
	}
	return issues
}

func checkReparentedClasses(ctx *Context) []Issue {
	if ctx.Snapshot == nil || !policyAtMost(ctx.Model, rules.ExtensionAddition) {
		return nil
	}

	var issues []Issue
	for _, prev := range ctx.Snapshot.Classes {
		cur, ok := ctx.Model.ClassByID(prev.ID)
		if !ok {
			continue
		}
		if cur.ParentID != prev.ParentID {
			issues = append(issues, Issue{
				Sheet:   sheetClasses,
				Row:     cur.Row,
				Entity:  cur.ID,
				Message: fmt.Sprintf("class %q changed parent from %q to %q (extension=addition)", cur.ID, prev.ParentID, cur.ParentID),
			})
		}
	}
	return issues
}
