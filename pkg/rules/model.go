package rules

import (
	"time"
)

// Metadata is the single record per model describing role, namespace,
// versioning, extension mode, and provenance.
type Metadata struct {
	Role        Role            `json:"role" yaml:"role"`
	Prefix      string          `json:"prefix" yaml:"prefix"`
	Namespace   string          `json:"namespace" yaml:"namespace"`
	Version     string          `json:"version" yaml:"version"`
	Extension   ExtensionPolicy `json:"extension" yaml:"extension"`
	Title       string          `json:"title,omitempty" yaml:"title,omitempty"`
	Description string          `json:"description,omitempty" yaml:"description,omitempty"`
	Creator     string          `json:"creator,omitempty" yaml:"creator,omitempty"`
	Created     time.Time       `json:"created,omitempty" yaml:"created,omitempty"`
	Updated     time.Time       `json:"updated,omitempty" yaml:"updated,omitempty"`
}

// Class is a model entity. Classes form a single-inheritance forest via
// ParentID. Reference/MatchType link the class to an external ontology
// term for provenance.
type Class struct {
	ID          string    `json:"id" yaml:"id"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	ParentID    string    `json:"parent,omitempty" yaml:"parent,omitempty"`
	Reference   string    `json:"reference,omitempty" yaml:"reference,omitempty"`
	MatchType   MatchType `json:"match_type,omitempty" yaml:"match_type,omitempty"`

	// Row is the 1-based workbook row the class was parsed from,
	// 0 for synthesized entities.
	Row int `json:"-" yaml:"-"`
}

// Property belongs to exactly one class. MaxCount nil means unbounded.
// Container/View placement fields are populated in the DMS-architect role
// only.
type Property struct {
	ClassID     string    `json:"class" yaml:"class"`
	ID          string    `json:"id" yaml:"id"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	ValueType   ValueType `json:"value_type" yaml:"value_type"`
	MinCount    int       `json:"min_count" yaml:"min_count"`
	MaxCount    *int      `json:"max_count,omitempty" yaml:"max_count,omitempty"`
	Default     string    `json:"default,omitempty" yaml:"default,omitempty"`

	Container         string `json:"container,omitempty" yaml:"container,omitempty"`
	ContainerProperty string `json:"container_property,omitempty" yaml:"container_property,omitempty"`
	View              string `json:"view,omitempty" yaml:"view,omitempty"`
	ViewProperty      string `json:"view_property,omitempty" yaml:"view_property,omitempty"`

	Reference string    `json:"reference,omitempty" yaml:"reference,omitempty"`
	MatchType MatchType `json:"match_type,omitempty" yaml:"match_type,omitempty"`

	Row int `json:"-" yaml:"-"`
}

// Unbounded reports whether the property has no upper cardinality bound.
func (p *Property) Unbounded() bool { return p.MaxCount == nil }

// IsList reports whether the property can hold more than one value.
func (p *Property) IsList() bool {
	return p.MaxCount == nil || *p.MaxCount > 1
}

// Required reports whether at least one value must be present.
func (p *Property) Required() bool { return p.MinCount >= 1 }

// ContainerUsage declares what a container can hold.
type ContainerUsage string

// Container usages.
const (
	UsedForNode ContainerUsage = "node"
	UsedForEdge ContainerUsage = "edge"
	UsedForAll  ContainerUsage = "all"
)

// Container is a DMS storage unit. Constraints name other containers
// whose data must exist for rows in this container (referential
// existence checks).
type Container struct {
	ID          string         `json:"id" yaml:"id"`
	Description string         `json:"description,omitempty" yaml:"description,omitempty"`
	Constraints []string       `json:"constraints,omitempty" yaml:"constraints,omitempty"`
	UsedFor     ContainerUsage `json:"used_for,omitempty" yaml:"used_for,omitempty"`

	Row int `json:"-" yaml:"-"`
}

// View is a DMS consumption unit. Implements lists views whose
// properties this view reuses without owning them.
type View struct {
	ID          string   `json:"id" yaml:"id"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Implements  []string `json:"implements,omitempty" yaml:"implements,omitempty"`
	InModel     bool     `json:"in_model" yaml:"in_model"`
	Filter      string   `json:"filter,omitempty" yaml:"filter,omitempty"`

	Row int `json:"-" yaml:"-"`
}

// Model is a complete rules document. Slice order is the workbook
// declaration order and is preserved through conversion and export.
type Model struct {
	Metadata   Metadata    `json:"metadata" yaml:"metadata"`
	Classes    []Class     `json:"classes" yaml:"classes"`
	Properties []Property  `json:"properties" yaml:"properties"`
	Views      []View      `json:"views,omitempty" yaml:"views,omitempty"`
	Containers []Container `json:"containers,omitempty" yaml:"containers,omitempty"`
}

// ClassByID returns the class with the given identifier.
func (m *Model) ClassByID(id string) (*Class, bool) {
	for i := range m.Classes {
		if m.Classes[i].ID == id {
			return &m.Classes[i], true
		}
	}
	return nil, false
}

// ViewByID returns the view with the given identifier.
func (m *Model) ViewByID(id string) (*View, bool) {
	for i := range m.Views {
		if m.Views[i].ID == id {
			return &m.Views[i], true
		}
	}
	return nil, false
}

// ContainerByID returns the container with the given identifier.
func (m *Model) ContainerByID(id string) (*Container, bool) {
	for i := range m.Containers {
		if m.Containers[i].ID == id {
			return &m.Containers[i], true
		}
	}
	return nil, false
}

// PropertiesOf returns the properties declared directly on a class, in
// declaration order.
func (m *Model) PropertiesOf(classID string) []Property {
	var out []Property
	for _, p := range m.Properties {
		if p.ClassID == classID {
			out = append(out, p)
		}
	}
	return out
}

// PropertyOf returns the property with the given identifier declared
// directly on a class.
func (m *Model) PropertyOf(classID, propID string) (*Property, bool) {
	for i := range m.Properties {
		if m.Properties[i].ClassID == classID && m.Properties[i].ID == propID {
			return &m.Properties[i], true
		}
	}
	return nil, false
}

// Ancestors returns the parent chain of a class, nearest first. The walk
// stops if it revisits a class, so it terminates even on cyclic input.
func (m *Model) Ancestors(classID string) []string {
	var chain []string
	seen := map[string]bool{classID: true}
	cls, ok := m.ClassByID(classID)
	for ok && cls.ParentID != "" {
		if seen[cls.ParentID] {
			break
		}
		seen[cls.ParentID] = true
		chain = append(chain, cls.ParentID)
		cls, ok = m.ClassByID(cls.ParentID)
	}
	return chain
}

// Clone returns a deep copy of the model. Converters operate on clones
// so the input model is never mutated.
func (m *Model) Clone() *Model {
	out := &Model{
		Metadata:   m.Metadata,
		Classes:    append([]Class(nil), m.Classes...),
		Properties: make([]Property, len(m.Properties)),
		Views:      make([]View, len(m.Views)),
		Containers: make([]Container, len(m.Containers)),
	}
	for i, p := range m.Properties {
		if p.MaxCount != nil {
			mc := *p.MaxCount
			p.MaxCount = &mc
		}
		out.Properties[i] = p
	}
	for i, v := range m.Views {
		v.Implements = append([]string(nil), v.Implements...)
		out.Views[i] = v
	}
	for i, c := range m.Containers {
		c.Constraints = append([]string(nil), c.Constraints...)
		out.Containers[i] = c
	}
	return out
}
