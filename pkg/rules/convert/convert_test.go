package convert

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neatkit/neat/pkg/rules"
)

func intPtr(n int) *int { return &n }

func domainModel() *rules.Model {
	return &rules.Model{
		Metadata: rules.Metadata{Role: rules.RoleDomainExpert, Title: "Power plant"},
		Classes: []rules.Class{
			{ID: "Asset"},
			{ID: "WindTurbine", ParentID: "Asset"},
		},
		Properties: []rules.Property{
			{ClassID: "Asset", ID: "name", ValueType: "string", MinCount: 1, MaxCount: intPtr(1)},
			{ClassID: "WindTurbine", ID: "ratedPower", ValueType: "float", MinCount: 1, MaxCount: intPtr(1)},
			{ClassID: "WindTurbine", ID: "name", ValueType: "string", MinCount: 1, MaxCount: intPtr(1)},
		},
	}
}

func TestToRole_DomainToInfoArchitect(t *testing.T) {
	m := domainModel()
	out, err := ToRole(m, rules.RoleInfoArchitect)
	require.NoError(t, err)

	assert.Equal(t, rules.RoleInfoArchitect, out.Metadata.Role)
	assert.NotEmpty(t, out.Metadata.Prefix)
	assert.NotEmpty(t, out.Metadata.Namespace)
	assert.NotEmpty(t, out.Metadata.Version)
	assert.Equal(t, rules.ExtensionAddition, out.Metadata.Extension)

	// Value type aliases are normalized.
	assert.Equal(t, rules.ValueType("text"), out.Properties[0].ValueType)
	assert.Equal(t, rules.ValueType("float64"), out.Properties[1].ValueType)
}

func TestToRole_InfoToDMS_DefaultPlacement(t *testing.T) {
	m := domainModel()
	out, err := ToRole(m, rules.RoleDMSArchitect)
	require.NoError(t, err)
	assert.Equal(t, rules.RoleDMSArchitect, out.Metadata.Role)

	name, ok := out.PropertyOf("Asset", "name")
	require.True(t, ok)
	assert.Equal(t, "Asset", name.Container)
	assert.Equal(t, "Asset", name.View)
	assert.Equal(t, "name", name.ContainerProperty)

	// ratedPower is declared only on WindTurbine: stays there.
	power, ok := out.PropertyOf("WindTurbine", "ratedPower")
	require.True(t, ok)
	assert.Equal(t, "WindTurbine", power.Container)
	assert.Equal(t, "WindTurbine", power.View)
}

func TestToRole_InheritedPropertyStaysInAncestorContainer(t *testing.T) {
	out, err := ToRole(domainModel(), rules.RoleDMSArchitect)
	require.NoError(t, err)

	// WindTurbine redeclares "name", which Asset also declares: the data
	// lives in the Asset container, reused through view inheritance.
	name, ok := out.PropertyOf("WindTurbine", "name")
	require.True(t, ok)
	assert.Equal(t, "Asset", name.Container)
	assert.Equal(t, "WindTurbine", name.View)

	turbineView, ok := out.ViewByID("WindTurbine")
	require.True(t, ok)
	assert.Equal(t, []string{"Asset"}, turbineView.Implements)
}

func TestToRole_SynthesizedSections(t *testing.T) {
	out, err := ToRole(domainModel(), rules.RoleDMSArchitect)
	require.NoError(t, err)

	// One view per class, in class declaration order.
	require.Len(t, out.Views, 2)
	assert.Equal(t, "Asset", out.Views[0].ID)
	assert.Equal(t, "WindTurbine", out.Views[1].ID)

	// Both classes store data, and the child container requires the parent.
	require.Len(t, out.Containers, 2)
	turbine, ok := out.ContainerByID("WindTurbine")
	require.True(t, ok)
	assert.Equal(t, []string{"Asset"}, turbine.Constraints)
	asset, ok := out.ContainerByID("Asset")
	require.True(t, ok)
	assert.Empty(t, asset.Constraints)
}

func TestToRole_ExplicitPlacementWins(t *testing.T) {
	m := domainModel()
	m.Metadata.Role = rules.RoleInfoArchitect
	m.Metadata.Prefix = "power"
	m.Metadata.Namespace = "http://purl.org/neat/power/"
	m.Metadata.Version = "1.0.0"
	m.Properties[1].Container = "Measurements"

	out, err := ToRole(m, rules.RoleDMSArchitect)
	require.NoError(t, err)

	power, ok := out.PropertyOf("WindTurbine", "ratedPower")
	require.True(t, ok)
	assert.Equal(t, "Measurements", power.Container)

	// The explicit container gets declared even without a backing class.
	_, ok = out.ContainerByID("Measurements")
	assert.True(t, ok)
}

func TestToRole_DownwardIdempotence(t *testing.T) {
	once, err := ToRole(domainModel(), rules.RoleDMSArchitect)
	require.NoError(t, err)

	twice, err := ToRole(once, rules.RoleDMSArchitect)
	require.NoError(t, err)
	assert.Equal(t, once, twice)
}

func TestToRole_UpwardIsRejected(t *testing.T) {
	m := domainModel()
	m.Metadata.Role = rules.RoleDMSArchitect

	_, err := ToRole(m, rules.RoleDomainExpert)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "downward")
}

func TestToRole_InputNotMutated(t *testing.T) {
	m := domainModel()
	before := m.Clone()

	_, err := ToRole(m, rules.RoleDMSArchitect)
	require.NoError(t, err)
	assert.Equal(t, before, m)
}

func TestToRole_UnknownRoles(t *testing.T) {
	_, err := ToRole(domainModel(), "architect")
	assert.Error(t, err)

	m := domainModel()
	m.Metadata.Role = "mystery"
	_, err = ToRole(m, rules.RoleDMSArchitect)
	assert.Error(t, err)
}
