package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neatkit/neat/pkg/rules"
	"github.com/neatkit/neat/pkg/rules/convert"
)

func intPtr(n int) *int { return &n }

func dmsModel(t *testing.T) *rules.Model {
	t.Helper()
	m := &rules.Model{
		Metadata: rules.Metadata{
			Role:      rules.RoleInfoArchitect,
			Prefix:    "power",
			Namespace: "http://purl.org/neat/power/",
			Version:   "1.2.0",
			Title:     "Power generation",
		},
		Classes: []rules.Class{
			{ID: "Asset", Description: "Physical equipment"},
			{ID: "WindTurbine", ParentID: "Asset"},
		},
		Properties: []rules.Property{
			{ClassID: "Asset", ID: "name", ValueType: "text", MinCount: 1, MaxCount: intPtr(1)},
			{ClassID: "WindTurbine", ID: "ratedPower", ValueType: "float64", MinCount: 1, MaxCount: intPtr(1)},
			{ClassID: "WindTurbine", ID: "partOf", ValueType: "Asset", MaxCount: intPtr(1)},
		},
	}
	out, err := convert.ToRole(m, rules.RoleDMSArchitect)
	require.NoError(t, err)
	return out
}

func TestParseFormat(t *testing.T) {
	for _, name := range []string{"dms", "owl", "shacl", "graphql"} {
		f, err := ParseFormat(name)
		require.NoError(t, err)
		assert.Equal(t, Format(name), f)
	}
	_, err := ParseFormat("xmi")
	assert.Error(t, err)
}

func TestBuildDMS_ContainersInConstraintOrder(t *testing.T) {
	schema, err := BuildDMS(dmsModel(t))
	require.NoError(t, err)

	require.Len(t, schema.Containers, 2)
	assert.Equal(t, "Asset", schema.Containers[0].ExternalID)
	assert.Equal(t, "WindTurbine", schema.Containers[1].ExternalID)

	require.Len(t, schema.Containers[1].Constraints, 1)
	assert.Equal(t, "Asset", schema.Containers[1].Constraints[0].Require)
}

func TestBuildDMS_ViewsInDeclarationOrder(t *testing.T) {
	schema, err := BuildDMS(dmsModel(t))
	require.NoError(t, err)

	require.Len(t, schema.Views, 2)
	assert.Equal(t, "Asset", schema.Views[0].ExternalID)
	assert.Equal(t, "WindTurbine", schema.Views[1].ExternalID)
	assert.Equal(t, []string{"Asset"}, schema.Views[1].Implements)
}

func TestBuildDMS_StorageTypes(t *testing.T) {
	schema, err := BuildDMS(dmsModel(t))
	require.NoError(t, err)

	var turbine ContainerDef
	for _, c := range schema.Containers {
		if c.ExternalID == "WindTurbine" {
			turbine = c
		}
	}
	byID := map[string]StoredProperty{}
	for _, p := range turbine.Properties {
		byID[p.Identifier] = p
	}

	assert.Equal(t, "float64", byID["ratedPower"].Type)
	assert.False(t, byID["ratedPower"].Nullable)
	// Class reference stores as a direct relation.
	assert.Equal(t, "direct", byID["partOf"].Type)
	assert.True(t, byID["partOf"].Nullable)
}

func TestBuildDMS_ConstraintCycleIsFatal(t *testing.T) {
	m := dmsModel(t)
	asset, ok := m.ContainerByID("Asset")
	require.True(t, ok)
	asset.Constraints = []string{"WindTurbine"}

	_, err := BuildDMS(m)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle")
}

func TestBuildDMS_SelfConstraintIsFatal(t *testing.T) {
	m := dmsModel(t)
	asset, ok := m.ContainerByID("Asset")
	require.True(t, ok)
	asset.Constraints = []string{"Asset"}

	_, err := BuildDMS(m)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires itself")

	assert.Error(t, Write(&bytes.Buffer{}, m, FormatDMS))
}

func TestBuildDMS_RequiresDMSRole(t *testing.T) {
	m := dmsModel(t)
	m.Metadata.Role = rules.RoleInfoArchitect
	_, err := BuildDMS(m)
	assert.Error(t, err)
}

func TestWriteDMS_YAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteDMS(&buf, dmsModel(t)))

	out := buf.String()
	assert.Contains(t, out, "space: power")
	assert.Contains(t, out, "externalId: WindTurbine")
	assert.Contains(t, out, "require: Asset")
}

func TestWriteOWL(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteOWL(&buf, dmsModel(t)))
	out := buf.String()

	assert.Contains(t, out, "@prefix power: <http://purl.org/neat/power/> .")
	assert.Contains(t, out, "power:WindTurbine a owl:Class ;")
	assert.Contains(t, out, "rdfs:subClassOf power:Asset")
	assert.Contains(t, out, "power:ratedPower a owl:DatatypeProperty ;")
	assert.Contains(t, out, "rdfs:range xsd:double")
	assert.Contains(t, out, "power:partOf a owl:ObjectProperty ;")
	assert.Contains(t, out, "rdfs:range power:Asset")
	assert.Contains(t, out, `owl:versionInfo "1.2.0"`)
}

func TestWriteOWL_RejectsDomainExpert(t *testing.T) {
	m := dmsModel(t)
	m.Metadata.Role = rules.RoleDomainExpert
	assert.Error(t, WriteOWL(&bytes.Buffer{}, m))
}

func TestWriteSHACL(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteSHACL(&buf, dmsModel(t)))
	out := buf.String()

	assert.Contains(t, out, "power:AssetShape a sh:NodeShape ;")
	assert.Contains(t, out, "sh:targetClass power:Asset")
	assert.Contains(t, out, "sh:path power:ratedPower")
	assert.Contains(t, out, "sh:datatype xsd:double")
	assert.Contains(t, out, "sh:minCount 1")
	assert.Contains(t, out, "sh:maxCount 1")
	assert.Contains(t, out, "sh:node power:AssetShape")
}

func TestWriteGraphQL(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteGraphQL(&buf, dmsModel(t)))
	out := buf.String()

	assert.Contains(t, out, "type Asset {")
	assert.Contains(t, out, "type WindTurbine {")
	assert.Contains(t, out, "ratedPower: Float!")
	assert.Contains(t, out, "partOf: Asset")

	// Inherited field flattened onto the subtype.
	turbineBlock := out[strings.Index(out, "type WindTurbine"):]
	assert.Contains(t, turbineBlock, "name: String!")
}

func TestWriteGraphQL_ListAndOptional(t *testing.T) {
	m := dmsModel(t)
	m.Properties = append(m.Properties, rules.Property{
		ClassID: "Asset", ID: "tags", ValueType: "text", MinCount: 0,
	})
	var buf bytes.Buffer
	require.NoError(t, WriteGraphQL(&buf, m))
	assert.Contains(t, buf.String(), "tags: [String]\n")
}

func TestWrite_Dispatch(t *testing.T) {
	m := dmsModel(t)
	for _, f := range []Format{FormatDMS, FormatOWL, FormatSHACL, FormatGraphQL} {
		var buf bytes.Buffer
		require.NoError(t, Write(&buf, m, f), "format %s", f)
		assert.NotZero(t, buf.Len())
	}
}
