package rules

import "sort"

// ValueType is the declared type of a property value: either a primitive
// tag (text, int64, timeseries, ...) or the identifier of another class,
// forming a DAG of type references between classes.
type ValueType string

// primitives is the set of recognized primitive value type tags.
// Anything outside this set is treated as a class reference.
var primitives = map[ValueType]struct{}{
	"boolean":    {},
	"float32":    {},
	"float64":    {},
	"int32":      {},
	"int64":      {},
	"text":       {},
	"timestamp":  {},
	"date":       {},
	"json":       {},
	"timeseries": {},
	"file":       {},
	"sequence":   {},
}

// valueTypeAliases maps spellings seen in the wild to canonical tags.
var valueTypeAliases = map[string]ValueType{
	"string":   "text",
	"str":      "text",
	"bool":     "boolean",
	"int":      "int64",
	"integer":  "int64",
	"float":    "float64",
	"double":   "float64",
	"datetime": "timestamp",
}

// NormalizeValueType canonicalizes a raw value type string. Class
// references pass through unchanged.
func NormalizeValueType(raw string) ValueType {
	if vt, ok := valueTypeAliases[raw]; ok {
		return vt
	}
	return ValueType(raw)
}

// IsPrimitive reports whether the value type is a primitive tag rather
// than a class reference.
func (v ValueType) IsPrimitive() bool {
	_, ok := primitives[v]
	return ok
}

// ClassRef returns the referenced class identifier and true when the
// value type is a class reference.
func (v ValueType) ClassRef() (string, bool) {
	if v == "" || v.IsPrimitive() {
		return "", false
	}
	return string(v), true
}

func (v ValueType) String() string { return string(v) }

// PrimitiveValueTypes returns the sorted list of primitive tags, for
// documentation and error messages.
func PrimitiveValueTypes() []string {
	out := make([]string, 0, len(primitives))
	for p := range primitives {
		out = append(out, string(p))
	}
	sort.Strings(out)
	return out
}
