// Package export renders a rules model into downstream schema formats:
// DMS container/view schemas, OWL and SHACL ontologies (Turtle), and
// GraphQL SDL. Exporters read the model only; validation is expected to
// have run first, and exporters fail hard only on conditions that make
// the output meaningless (an undeclared role, a constraint cycle).
package export

import (
	"fmt"
	"io"

	"github.com/neatkit/neat/pkg/rules"
)

// Format identifies an export target.
type Format string

// Supported export formats.
const (
	FormatDMS     Format = "dms"
	FormatOWL     Format = "owl"
	FormatSHACL   Format = "shacl"
	FormatGraphQL Format = "graphql"
)

// ParseFormat parses a format name.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatDMS, FormatOWL, FormatSHACL, FormatGraphQL:
		return Format(s), nil
	default:
		return "", fmt.Errorf("unknown export format %q (expected dms, owl, shacl, or graphql)", s)
	}
}

// Write renders the model in the given format to w.
func Write(w io.Writer, m *rules.Model, format Format) error {
	switch format {
	case FormatDMS:
		return WriteDMS(w, m)
	case FormatOWL:
		return WriteOWL(w, m)
	case FormatSHACL:
		return WriteSHACL(w, m)
	case FormatGraphQL:
		return WriteGraphQL(w, m)
	default:
		return fmt.Errorf("unknown export format %q", format)
	}
}
