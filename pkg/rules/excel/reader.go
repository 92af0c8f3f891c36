package excel

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/neatkit/neat/pkg/rules"
)

// Read opens a workbook file and returns the model plus the merged
// Last/Ref snapshot, nil when the workbook has no snapshot sheets.
// Unreadable files and missing required sheets are fatal errors; data
// problems inside the sheets are left for the validator.
func Read(path string) (*rules.Model, *rules.Model, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()
	return readWorkbook(f)
}

// ReadFrom reads a workbook from a stream, e.g. an HTTP upload.
func ReadFrom(r io.Reader) (*rules.Model, *rules.Model, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read workbook: %w", err)
	}
	defer f.Close()
	return readWorkbook(f)
}

func readWorkbook(f *excelize.File) (*rules.Model, *rules.Model, error) {
	model, err := readModel(f, "")
	if err != nil {
		return nil, nil, err
	}

	snapshot, err := readSnapshot(f)
	if err != nil {
		return nil, nil, err
	}
	return model, snapshot, nil
}

// readModel reads one model from the workbook. An empty prefix reads
// the main sheets; PrefixLast/PrefixRef read snapshot variants.
func readModel(f *excelize.File, prefix string) (*rules.Model, error) {
	sheets := make(map[string]bool)
	for _, name := range f.GetSheetList() {
		sheets[name] = true
	}

	required := []string{SheetMetadata, SheetClasses, SheetProperties}
	if prefix == "" {
		for _, name := range required {
			if !sheets[name] {
				return nil, fmt.Errorf("workbook is missing required sheet %q", name)
			}
		}
	}

	model := &rules.Model{}

	if sheets[prefix+SheetMetadata] {
		md, err := readMetadata(f, prefix+SheetMetadata)
		if err != nil {
			return nil, err
		}
		model.Metadata = *md
	}
	if sheets[prefix+SheetClasses] {
		classes, err := readClasses(f, prefix+SheetClasses)
		if err != nil {
			return nil, err
		}
		model.Classes = classes
	}
	if sheets[prefix+SheetProperties] {
		props, err := readProperties(f, prefix+SheetProperties)
		if err != nil {
			return nil, err
		}
		model.Properties = props
	}
	if sheets[prefix+SheetViews] {
		views, err := readViews(f, prefix+SheetViews)
		if err != nil {
			return nil, err
		}
		model.Views = views
	}
	if sheets[prefix+SheetContainers] {
		containers, err := readContainers(f, prefix+SheetContainers)
		if err != nil {
			return nil, err
		}
		model.Containers = containers
	}
	return model, nil
}

// readSnapshot merges Last* and Ref* sheets into one snapshot model.
// Last entries win on identifier clashes. Returns nil when neither
// prefix is present.
func readSnapshot(f *excelize.File) (*rules.Model, error) {
	names := f.GetSheetList()
	hasPrefix := func(prefix string) bool {
		for _, name := range names {
			if strings.HasPrefix(name, prefix) {
				return true
			}
		}
		return false
	}

	var parts []*rules.Model
	// Ref first so Last overrides it in the merge.
	for _, prefix := range []string{PrefixRef, PrefixLast} {
		if !hasPrefix(prefix) {
			continue
		}
		part, err := readModel(f, prefix)
		if err != nil {
			return nil, fmt.Errorf("snapshot sheets %s*: %w", prefix, err)
		}
		parts = append(parts, part)
	}
	if len(parts) == 0 {
		return nil, nil
	}

	snapshot := parts[0]
	for _, part := range parts[1:] {
		mergeModel(snapshot, part)
	}
	return snapshot, nil
}

// mergeModel overlays src onto dst, replacing entities with matching
// identifiers and appending the rest.
func mergeModel(dst, src *rules.Model) {
	if src.Metadata.Role != "" {
		dst.Metadata = src.Metadata
	}
	for _, cls := range src.Classes {
		if existing, ok := dst.ClassByID(cls.ID); ok {
			*existing = cls
		} else {
			dst.Classes = append(dst.Classes, cls)
		}
	}
	for _, p := range src.Properties {
		if existing, ok := dst.PropertyOf(p.ClassID, p.ID); ok {
			*existing = p
		} else {
			dst.Properties = append(dst.Properties, p)
		}
	}
	for _, v := range src.Views {
		if existing, ok := dst.ViewByID(v.ID); ok {
			*existing = v
		} else {
			dst.Views = append(dst.Views, v)
		}
	}
	for _, c := range src.Containers {
		if existing, ok := dst.ContainerByID(c.ID); ok {
			*existing = c
		} else {
			dst.Containers = append(dst.Containers, c)
		}
	}
}

// readMetadata parses the two-column key/value Metadata sheet.
func readMetadata(f *excelize.File, sheet string) (*rules.Metadata, error) {
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}

	kv := make(map[string]string, len(rows))
	for _, row := range rows {
		if len(row) < 2 || blankRow(row) {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(row[0]))
		kv[key] = strings.TrimSpace(row[1])
	}

	md := &rules.Metadata{
		Prefix:      kv["prefix"],
		Namespace:   kv["namespace"],
		Version:     kv["version"],
		Title:       kv["title"],
		Description: kv["description"],
		Creator:     kv["creator"],
	}
	if roleStr, ok := kv["role"]; ok {
		role, err := rules.ParseRole(roleStr)
		if err != nil {
			return nil, fmt.Errorf("sheet %q: %w", sheet, err)
		}
		md.Role = role
	}
	policy, err := rules.ParseExtensionPolicy(kv["extension"])
	if err != nil {
		return nil, fmt.Errorf("sheet %q: %w", sheet, err)
	}
	md.Extension = policy
	md.Created = parseDate(kv["created"])
	md.Updated = parseDate(kv["updated"])
	return md, nil
}

func readClasses(f *excelize.File, sheet string) ([]rules.Class, error) {
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	h := parseHeader(rows[0])
	var classes []rules.Class
	for i, row := range rows[1:] {
		if blankRow(row) || h.cell(row, colClass) == "" {
			continue
		}
		classes = append(classes, rules.Class{
			ID:          h.cell(row, colClass),
			Description: h.cell(row, colDescription),
			ParentID:    h.cell(row, colParent),
			Reference:   h.cell(row, colReference),
			MatchType:   rules.MatchType(h.cell(row, colMatchType)),
			Row:         i + 2,
		})
	}
	return classes, nil
}

func readProperties(f *excelize.File, sheet string) ([]rules.Property, error) {
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	h := parseHeader(rows[0])
	var props []rules.Property
	for i, row := range rows[1:] {
		if blankRow(row) || h.cell(row, colProperty) == "" {
			continue
		}
		rowNum := i + 2

		maxCount, err := parseMaxCount(h.cell(row, colMaxCount))
		if err != nil {
			return nil, fmt.Errorf("sheet %q row %d: %w", sheet, rowNum, err)
		}
		minCount := 0
		if s := h.cell(row, colMinCount); s != "" {
			minCount, err = strconv.Atoi(s)
			if err != nil {
				return nil, fmt.Errorf("sheet %q row %d: invalid min count %q", sheet, rowNum, s)
			}
		}

		props = append(props, rules.Property{
			ClassID:           h.cell(row, colClass),
			ID:                h.cell(row, colProperty),
			Description:       h.cell(row, colDescription),
			ValueType:         rules.NormalizeValueType(h.cell(row, colValueType)),
			MinCount:          minCount,
			MaxCount:          maxCount,
			Default:           h.cell(row, colDefault),
			Container:         h.cell(row, colContainer),
			ContainerProperty: h.cell(row, colContainerProp),
			View:              h.cell(row, colView),
			ViewProperty:      h.cell(row, colViewProp),
			Reference:         h.cell(row, colReference),
			MatchType:         rules.MatchType(h.cell(row, colMatchType)),
			Row:               rowNum,
		})
	}
	return props, nil
}

func readViews(f *excelize.File, sheet string) ([]rules.View, error) {
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	h := parseHeader(rows[0])
	var views []rules.View
	for i, row := range rows[1:] {
		if blankRow(row) || h.cell(row, colView) == "" {
			continue
		}
		inModel := true
		if s := h.cell(row, colInModel); s != "" {
			inModel = parseBool(s)
		}
		views = append(views, rules.View{
			ID:          h.cell(row, colView),
			Description: h.cell(row, colDescription),
			Implements:  splitList(h.cell(row, colImplements)),
			InModel:     inModel,
			Filter:      h.cell(row, colFilter),
			Row:         i + 2,
		})
	}
	return views, nil
}

func readContainers(f *excelize.File, sheet string) ([]rules.Container, error) {
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	h := parseHeader(rows[0])
	var containers []rules.Container
	for i, row := range rows[1:] {
		if blankRow(row) || h.cell(row, colContainer) == "" {
			continue
		}
		containers = append(containers, rules.Container{
			ID:          h.cell(row, colContainer),
			Description: h.cell(row, colDescription),
			Constraints: splitList(h.cell(row, colConstraint)),
			UsedFor:     rules.ContainerUsage(h.cell(row, colUsedFor)),
			Row:         i + 2,
		})
	}
	return containers, nil
}

func parseBool(s string) bool {
	switch strings.ToLower(s) {
	case "false", "no", "0":
		return false
	default:
		return true
	}
}

// parseDate accepts ISO dates with or without a time component. Bad or
// blank values yield the zero time rather than an error; provenance
// dates are informational.
func parseDate(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
