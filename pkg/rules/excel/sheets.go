// Package excel reads and writes rules workbooks. A workbook carries a
// fixed set of sheets (Metadata, Classes, Properties, Views, Containers)
// plus optional read-only Last*/Ref* snapshot variants of each, holding
// a prior or reference model version for extension validation.
//
// Cell styling is out of scope; only values are read and written.
package excel

import (
	"fmt"
	"strconv"
	"strings"
)

// Fixed sheet names.
const (
	SheetMetadata   = "Metadata"
	SheetClasses    = "Classes"
	SheetProperties = "Properties"
	SheetViews      = "Views"
	SheetContainers = "Containers"
)

// Snapshot sheet prefixes. Last* is the previous published version,
// Ref* an external base model. Both merge into a single snapshot, with
// Last winning on identifier clashes (it is the nearer ancestor).
const (
	PrefixLast = "Last"
	PrefixRef  = "Ref"
)

// Column headers shared across roles.
const (
	colClass         = "Class"
	colProperty      = "Property"
	colDescription   = "Description"
	colParent        = "Parent Class"
	colValueType     = "Value Type"
	colMinCount      = "Min Count"
	colMaxCount      = "Max Count"
	colDefault       = "Default"
	colReference     = "Reference"
	colMatchType     = "Match Type"
	colContainer     = "Container"
	colContainerProp = "Container Property"
	colView          = "View"
	colViewProp      = "View Property"
	colImplements    = "Implements"
	colInModel       = "In Model"
	colFilter        = "Filter"
	colConstraint    = "Constraint"
	colUsedFor       = "Used For"
)

// header maps column titles to zero-based indexes, matched
// case-insensitively so hand-edited workbooks survive.
type header map[string]int

func parseHeader(row []string) header {
	h := make(header, len(row))
	for i, title := range row {
		title = strings.TrimSpace(title)
		if title != "" {
			h[strings.ToLower(title)] = i
		}
	}
	return h
}

// cell returns the trimmed value of the named column in a row, or ""
// when the column is absent or the row is short.
func (h header) cell(row []string, title string) string {
	idx, ok := h[strings.ToLower(title)]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// parseMaxCount parses a Max Count cell. Blank and "unbounded" (or the
// spreadsheet-friendly "inf") mean no upper bound.
func parseMaxCount(s string) (*int, error) {
	switch strings.ToLower(s) {
	case "", "unbounded", "inf":
		return nil, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil, fmt.Errorf("invalid max count %q", s)
	}
	return &n, nil
}

func formatMaxCount(n *int) string {
	if n == nil {
		return "unbounded"
	}
	return strconv.Itoa(*n)
}

// splitList splits a comma-separated cell into trimmed entries.
func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func joinList(items []string) string {
	return strings.Join(items, ",")
}

// blankRow reports whether every cell in the row is empty.
func blankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
