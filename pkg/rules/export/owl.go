package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/neatkit/neat/pkg/rules"
)

// xsdTypes maps primitive value types to XSD datatypes for OWL and
// SHACL output. Non-literal primitives (timeseries, file, sequence)
// degrade to xsd:string references.
var xsdTypes = map[rules.ValueType]string{
	"boolean":    "xsd:boolean",
	"float32":    "xsd:float",
	"float64":    "xsd:double",
	"int32":      "xsd:int",
	"int64":      "xsd:long",
	"text":       "xsd:string",
	"timestamp":  "xsd:dateTime",
	"date":       "xsd:date",
	"json":       "rdf:JSON",
	"timeseries": "xsd:string",
	"file":       "xsd:string",
	"sequence":   "xsd:string",
}

// WriteOWL renders the model as an OWL ontology in Turtle.
// Classes become owl:Class with rdfs:subClassOf links; properties become
// owl:DatatypeProperty or owl:ObjectProperty with domain and range.
func WriteOWL(w io.Writer, m *rules.Model) error {
	if m.Metadata.Role.Level() < rules.RoleInfoArchitect.Level() {
		return fmt.Errorf("OWL export requires at least an information-architect model, got role %q", m.Metadata.Role)
	}

	var b strings.Builder
	writePrefixes(&b, m)

	// Ontology header.
	b.WriteString(fmt.Sprintf("<%s> a owl:Ontology ;\n", m.Metadata.Namespace))
	if m.Metadata.Title != "" {
		b.WriteString(fmt.Sprintf("    dct:title %s ;\n", turtleLiteral(m.Metadata.Title)))
	}
	if m.Metadata.Creator != "" {
		b.WriteString(fmt.Sprintf("    dct:creator %s ;\n", turtleLiteral(m.Metadata.Creator)))
	}
	if !m.Metadata.Created.IsZero() {
		b.WriteString(fmt.Sprintf("    dct:created \"%s\"^^xsd:date ;\n", m.Metadata.Created.Format("2006-01-02")))
	}
	b.WriteString(fmt.Sprintf("    owl:versionInfo %s .\n\n", turtleLiteral(m.Metadata.Version)))

	prefix := m.Metadata.Prefix
	for _, cls := range m.Classes {
		b.WriteString(fmt.Sprintf("%s:%s a owl:Class ;\n", prefix, cls.ID))
		if cls.ParentID != "" {
			b.WriteString(fmt.Sprintf("    rdfs:subClassOf %s:%s ;\n", prefix, cls.ParentID))
		}
		if cls.Reference != "" {
			b.WriteString(fmt.Sprintf("    rdfs:seeAlso <%s> ;\n", cls.Reference))
		}
		if cls.Description != "" {
			b.WriteString(fmt.Sprintf("    rdfs:comment %s ;\n", turtleLiteral(cls.Description)))
		}
		b.WriteString(fmt.Sprintf("    rdfs:label %s .\n\n", turtleLiteral(cls.ID)))
	}

	for _, p := range m.Properties {
		ref, isObject := p.ValueType.ClassRef()
		kind := "owl:DatatypeProperty"
		rangeTerm := xsdRange(p.ValueType)
		if isObject {
			kind = "owl:ObjectProperty"
			rangeTerm = fmt.Sprintf("%s:%s", prefix, ref)
		}
		b.WriteString(fmt.Sprintf("%s:%s a %s ;\n", prefix, p.ID, kind))
		b.WriteString(fmt.Sprintf("    rdfs:domain %s:%s ;\n", prefix, p.ClassID))
		b.WriteString(fmt.Sprintf("    rdfs:range %s ;\n", rangeTerm))
		if p.Description != "" {
			b.WriteString(fmt.Sprintf("    rdfs:comment %s ;\n", turtleLiteral(p.Description)))
		}
		b.WriteString(fmt.Sprintf("    rdfs:label %s .\n\n", turtleLiteral(p.ID)))
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func writePrefixes(b *strings.Builder, m *rules.Model) {
	b.WriteString(fmt.Sprintf("@prefix %s: <%s> .\n", m.Metadata.Prefix, m.Metadata.Namespace))
	b.WriteString("@prefix dct: <http://purl.org/dc/terms/> .\n")
	b.WriteString("@prefix owl: <http://www.w3.org/2002/07/owl#> .\n")
	b.WriteString("@prefix rdf: <http://www.w3.org/1999/02/22-rdf-syntax-ns#> .\n")
	b.WriteString("@prefix rdfs: <http://www.w3.org/2000/01/rdf-schema#> .\n")
	b.WriteString("@prefix sh: <http://www.w3.org/ns/shacl#> .\n")
	b.WriteString("@prefix xsd: <http://www.w3.org/2001/XMLSchema#> .\n\n")
}

func xsdRange(vt rules.ValueType) string {
	if t, ok := xsdTypes[vt]; ok {
		return t
	}
	return "xsd:string"
}

// turtleLiteral quotes a string literal for Turtle output.
func turtleLiteral(s string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "\r", `\r`)
	return `"` + replacer.Replace(s) + `"`
}
