// Package rules defines the in-memory representation of a semantic data
// model: classes, properties, metadata, and (for the DMS-architect role)
// containers and views. Models are built from parsed workbook rows and are
// the shared currency between validation, role conversion, and export.
//
// The package defines types only. Validation lives in
// pkg/rules/validation, role conversion in pkg/rules/convert, and
// serialization in pkg/rules/export and pkg/rules/excel.
package rules
