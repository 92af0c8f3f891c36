package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/neatkit/neat/pkg/rules"
)

// WriteSHACL renders the model as SHACL node shapes in Turtle. Each
// class becomes a sh:NodeShape targeting the class, with one property
// shape per declared property carrying datatype/node and cardinality
// constraints.
func WriteSHACL(w io.Writer, m *rules.Model) error {
	if m.Metadata.Role.Level() < rules.RoleInfoArchitect.Level() {
		return fmt.Errorf("SHACL export requires at least an information-architect model, got role %q", m.Metadata.Role)
	}

	var b strings.Builder
	writePrefixes(&b, m)

	prefix := m.Metadata.Prefix
	for _, cls := range m.Classes {
		b.WriteString(fmt.Sprintf("%s:%sShape a sh:NodeShape ;\n", prefix, cls.ID))
		b.WriteString(fmt.Sprintf("    sh:targetClass %s:%s ", prefix, cls.ID))

		for _, p := range m.PropertiesOf(cls.ID) {
			b.WriteString(";\n    sh:property [\n")
			b.WriteString(fmt.Sprintf("        sh:path %s:%s ;\n", prefix, p.ID))
			if ref, ok := p.ValueType.ClassRef(); ok {
				b.WriteString(fmt.Sprintf("        sh:node %s:%sShape ;\n", prefix, ref))
			} else if p.ValueType != "" {
				b.WriteString(fmt.Sprintf("        sh:datatype %s ;\n", xsdRange(p.ValueType)))
			}
			if p.MinCount > 0 {
				b.WriteString(fmt.Sprintf("        sh:minCount %d ;\n", p.MinCount))
			}
			if p.MaxCount != nil {
				b.WriteString(fmt.Sprintf("        sh:maxCount %d ;\n", *p.MaxCount))
			}
			b.WriteString(fmt.Sprintf("        sh:name %s ;\n", turtleLiteral(p.ID)))
			b.WriteString("    ] ")
		}
		b.WriteString(".\n\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}
