package convert

import (
	"github.com/neatkit/neat/pkg/rules"
)

// toDMSArchitect derives container/view placement for every property and
// synthesizes the Views and Containers sheets.
//
// Placement defaults: a property without an explicit assignment goes to
// the container and view named after its owning class. When an ancestor
// class declares a property with the same identifier, the property stays
// in the topmost declaring ancestor's container and the owning class
// reuses it through view inheritance instead of storing it twice.
func toDMSArchitect(m *rules.Model) {
	for i := range m.Properties {
		p := &m.Properties[i]
		home := declaringAncestor(m, p.ClassID, p.ID)
		if p.Container == "" {
			p.Container = home
		}
		if p.ContainerProperty == "" {
			p.ContainerProperty = p.ID
		}
		if p.View == "" {
			p.View = p.ClassID
		}
		if p.ViewProperty == "" {
			p.ViewProperty = p.ID
		}
	}

	synthesizeViews(m)
	synthesizeContainers(m)

	m.Metadata.Role = rules.RoleDMSArchitect
}

// declaringAncestor returns the topmost class in the parent chain that
// declares the property, or the owning class itself when no ancestor
// does. The ancestor walk tolerates cyclic parents; the validator
// rejects those separately.
func declaringAncestor(m *rules.Model, classID, propID string) string {
	home := classID
	for _, ancestor := range m.Ancestors(classID) {
		if _, ok := m.PropertyOf(ancestor, propID); ok {
			home = ancestor
		}
	}
	return home
}

// synthesizeViews ensures one view per class, emitted in class
// declaration order. A class with a parent implements the parent's view.
// Explicitly declared views are kept as-is.
func synthesizeViews(m *rules.Model) {
	for _, cls := range m.Classes {
		if _, ok := m.ViewByID(cls.ID); ok {
			continue
		}
		view := rules.View{
			ID:          cls.ID,
			Description: cls.Description,
			InModel:     true,
		}
		if cls.ParentID != "" {
			if _, declared := m.ClassByID(cls.ParentID); declared {
				view.Implements = []string{cls.ParentID}
			}
		}
		m.Views = append(m.Views, view)
	}
}

// synthesizeContainers creates a container for every distinct container
// referenced by a property, in class declaration order. A container
// derived from a class whose parent also stores data gets a requires
// constraint on the parent's container.
func synthesizeContainers(m *rules.Model) {
	referenced := make(map[string]bool)
	for _, p := range m.Properties {
		if p.Container != "" {
			referenced[p.Container] = true
		}
	}

	for _, cls := range m.Classes {
		if !referenced[cls.ID] {
			continue
		}
		if _, ok := m.ContainerByID(cls.ID); ok {
			continue
		}
		container := rules.Container{
			ID:          cls.ID,
			Description: cls.Description,
			UsedFor:     rules.UsedForNode,
		}
		for _, ancestor := range m.Ancestors(cls.ID) {
			if referenced[ancestor] {
				container.Constraints = append(container.Constraints, ancestor)
				break // nearest data-bearing ancestor only
			}
		}
		m.Containers = append(m.Containers, container)
	}

	// Containers referenced by properties but not derived from any class
	// (explicit user placement) still need a declaration.
	for _, p := range m.Properties {
		if p.Container == "" {
			continue
		}
		if _, ok := m.ContainerByID(p.Container); !ok {
			m.Containers = append(m.Containers, rules.Container{
				ID:      p.Container,
				UsedFor: rules.UsedForNode,
			})
		}
	}
}
