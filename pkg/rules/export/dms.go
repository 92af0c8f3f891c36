package export

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/neatkit/neat/internal/dag"
	"github.com/neatkit/neat/pkg/rules"
)

// Schema is the rendered DMS data model: containers hold data, views
// expose and reuse it.
type Schema struct {
	Space      string         `yaml:"space" json:"space"`
	Version    string         `yaml:"version" json:"version"`
	Containers []ContainerDef `yaml:"containers" json:"containers"`
	Views      []ViewDef      `yaml:"views" json:"views"`
}

// ContainerDef is a storage unit definition.
type ContainerDef struct {
	ExternalID  string              `yaml:"externalId" json:"externalId"`
	Description string              `yaml:"description,omitempty" json:"description,omitempty"`
	UsedFor     string              `yaml:"usedFor" json:"usedFor"`
	Properties  []StoredProperty    `yaml:"properties" json:"properties"`
	Constraints []RequireConstraint `yaml:"constraints,omitempty" json:"constraints,omitempty"`
}

// StoredProperty is a column-level definition inside a container.
type StoredProperty struct {
	Identifier string `yaml:"identifier" json:"identifier"`
	Type       string `yaml:"type" json:"type"`
	Nullable   bool   `yaml:"nullable" json:"nullable"`
	IsList     bool   `yaml:"isList,omitempty" json:"isList,omitempty"`
	Default    string `yaml:"defaultValue,omitempty" json:"defaultValue,omitempty"`
}

// RequireConstraint declares that rows in this container require a
// matching row in another container.
type RequireConstraint struct {
	Identifier string `yaml:"identifier" json:"identifier"`
	Require    string `yaml:"require" json:"require"`
}

// ViewDef is a consumption unit definition.
type ViewDef struct {
	ExternalID  string         `yaml:"externalId" json:"externalId"`
	Version     string         `yaml:"version" json:"version"`
	Description string         `yaml:"description,omitempty" json:"description,omitempty"`
	Implements  []string       `yaml:"implements,omitempty" json:"implements,omitempty"`
	Properties  []ViewProperty `yaml:"properties" json:"properties"`
}

// ViewProperty maps a view property onto its backing container storage,
// or onto another view for direct relations.
type ViewProperty struct {
	Identifier        string `yaml:"identifier" json:"identifier"`
	Container         string `yaml:"container" json:"container"`
	ContainerProperty string `yaml:"containerPropertyIdentifier" json:"containerPropertyIdentifier"`
	Source            string `yaml:"source,omitempty" json:"source,omitempty"`
}

// dmsTypes maps primitive value types to DMS storage types.
var dmsTypes = map[rules.ValueType]string{
	"boolean":    "boolean",
	"float32":    "float32",
	"float64":    "float64",
	"int32":      "int32",
	"int64":      "int64",
	"text":       "text",
	"timestamp":  "timestamp",
	"date":       "date",
	"json":       "json",
	"timeseries": "timeseries",
	"file":       "file",
	"sequence":   "sequence",
}

// BuildDMS assembles the DMS schema. Views are emitted in class/view
// declaration order; containers in topological order of the constraint
// graph. A constraint cycle is a fatal error, never silently resolved.
func BuildDMS(m *rules.Model) (*Schema, error) {
	if m.Metadata.Role != rules.RoleDMSArchitect {
		return nil, fmt.Errorf("DMS export requires a dms-architect model, got role %q", m.Metadata.Role)
	}

	schema := &Schema{
		Space:   m.Metadata.Prefix,
		Version: m.Metadata.Version,
	}

	order, err := containerOrder(m)
	if err != nil {
		return nil, err
	}
	for _, id := range order {
		container, _ := m.ContainerByID(id)
		def := ContainerDef{
			ExternalID:  container.ID,
			Description: container.Description,
			UsedFor:     usedFor(container),
		}
		for _, p := range m.Properties {
			if p.Container != container.ID {
				continue
			}
			// Inherited placements repeat per class; store once.
			if hasStored(def.Properties, containerPropertyID(&p)) {
				continue
			}
			def.Properties = append(def.Properties, StoredProperty{
				Identifier: containerPropertyID(&p),
				Type:       storageType(p.ValueType),
				Nullable:   !p.Required(),
				IsList:     p.IsList(),
				Default:    p.Default,
			})
		}
		for _, req := range container.Constraints {
			def.Constraints = append(def.Constraints, RequireConstraint{
				Identifier: "requires" + req,
				Require:    req,
			})
		}
		schema.Containers = append(schema.Containers, def)
	}

	for _, view := range m.Views {
		def := ViewDef{
			ExternalID:  view.ID,
			Version:     m.Metadata.Version,
			Description: view.Description,
			Implements:  view.Implements,
		}
		for _, p := range m.Properties {
			if p.View != view.ID {
				continue
			}
			vp := ViewProperty{
				Identifier:        viewPropertyID(&p),
				Container:         p.Container,
				ContainerProperty: containerPropertyID(&p),
			}
			if ref, ok := p.ValueType.ClassRef(); ok {
				vp.Source = ref
			}
			def.Properties = append(def.Properties, vp)
		}
		schema.Views = append(schema.Views, def)
	}

	return schema, nil
}

// WriteDMS renders the DMS schema as YAML.
func WriteDMS(w io.Writer, m *rules.Model) error {
	schema, err := BuildDMS(m)
	if err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(schema)
}

// containerOrder returns container IDs with every required container
// before its dependents.
func containerOrder(m *rules.Model) ([]string, error) {
	g := dag.New()
	for _, c := range m.Containers {
		g.AddNode(c.ID)
	}
	for _, c := range m.Containers {
		for _, req := range c.Constraints {
			if !g.HasNode(req) {
				continue
			}
			if req == c.ID {
				return nil, fmt.Errorf("container constraints: container %q requires itself", c.ID)
			}
			if err := g.AddEdge(req, c.ID); err != nil {
				return nil, err
			}
		}
	}
	order, err := g.TopoSort()
	if err != nil {
		return nil, fmt.Errorf("container constraints: %w", err)
	}
	return order, nil
}

func usedFor(c *rules.Container) string {
	if c.UsedFor == "" {
		return string(rules.UsedForNode)
	}
	return string(c.UsedFor)
}

// storageType maps a value type to its DMS storage type. Class
// references become direct relations.
func storageType(vt rules.ValueType) string {
	if t, ok := dmsTypes[vt]; ok {
		return t
	}
	return "direct"
}

func containerPropertyID(p *rules.Property) string {
	if p.ContainerProperty != "" {
		return p.ContainerProperty
	}
	return p.ID
}

func viewPropertyID(p *rules.Property) string {
	if p.ViewProperty != "" {
		return p.ViewProperty
	}
	return p.ID
}

func hasStored(props []StoredProperty, id string) bool {
	for _, sp := range props {
		if sp.Identifier == id {
			return true
		}
	}
	return false
}
