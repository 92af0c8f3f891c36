package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/neatkit/neat/pkg/rules"
)

// graphqlTypes maps primitive value types to GraphQL scalars. DMS
// domain scalars (Timestamp, JSONObject, TimeSeries, File, Sequence)
// follow the CDF data modeling SDL vocabulary.
var graphqlTypes = map[rules.ValueType]string{
	"boolean":    "Boolean",
	"float32":    "Float",
	"float64":    "Float",
	"int32":      "Int",
	"int64":      "Int64",
	"text":       "String",
	"timestamp":  "Timestamp",
	"date":       "Date",
	"json":       "JSONObject",
	"timeseries": "TimeSeries",
	"file":       "File",
	"sequence":   "Sequence",
}

// WriteGraphQL renders the model as a GraphQL SDL document with one
// type per class, in class declaration order. Parent classes become
// interface-style composition via repeated fields: GraphQL has no
// inheritance, so inherited fields are flattened onto each type.
func WriteGraphQL(w io.Writer, m *rules.Model) error {
	if m.Metadata.Role.Level() < rules.RoleInfoArchitect.Level() {
		return fmt.Errorf("GraphQL export requires at least an information-architect model, got role %q", m.Metadata.Role)
	}

	var b strings.Builder
	if m.Metadata.Title != "" || m.Metadata.Description != "" {
		b.WriteString(fmt.Sprintf("\"\"\"%s\"\"\"\n", strings.TrimSpace(m.Metadata.Title+" "+m.Metadata.Description)))
	}

	for _, cls := range m.Classes {
		if cls.Description != "" {
			b.WriteString(fmt.Sprintf("\"%s\"\n", strings.ReplaceAll(cls.Description, `"`, `'`)))
		}
		b.WriteString(fmt.Sprintf("type %s {\n", cls.ID))
		for _, p := range flattenedProperties(m, cls.ID) {
			b.WriteString(fmt.Sprintf("  %s: %s\n", p.ID, fieldType(&p)))
		}
		b.WriteString("}\n\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// flattenedProperties returns the class's own properties plus inherited
// ones, ancestors first, without duplicating overridden identifiers.
func flattenedProperties(m *rules.Model, classID string) []rules.Property {
	chain := append(reverseStrings(m.Ancestors(classID)), classID)
	var out []rules.Property
	seen := make(map[string]int)
	for _, id := range chain {
		for _, p := range m.PropertiesOf(id) {
			if at, dup := seen[p.ID]; dup {
				out[at] = p // child override wins, position kept
				continue
			}
			seen[p.ID] = len(out)
			out = append(out, p)
		}
	}
	return out
}

func fieldType(p *rules.Property) string {
	name, ok := graphqlTypes[p.ValueType]
	if !ok {
		if ref, isRef := p.ValueType.ClassRef(); isRef {
			name = ref
		} else {
			name = "String"
		}
	}
	if p.IsList() {
		name = "[" + name + "]"
	}
	if p.Required() {
		name += "!"
	}
	return name
}

func reverseStrings(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[len(in)-1-i] = s
	}
	return out
}
