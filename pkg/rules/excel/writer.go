package excel

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/neatkit/neat/pkg/rules"
)

// Write renders the model as a workbook at path, creating or
// truncating the file.
func Write(path string, m *rules.Model) error {
	f, err := buildWorkbook(m)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}

// WriteTo streams the workbook, e.g. for an HTTP download.
func WriteTo(w io.Writer, m *rules.Model) error {
	f, err := buildWorkbook(m)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func buildWorkbook(m *rules.Model) (*excelize.File, error) {
	f := excelize.NewFile()

	steps := []func(*excelize.File, *rules.Model) error{
		writeMetadata,
		writeClasses,
		writeProperties,
	}
	// Views and Containers only exist from the DMS role on.
	if m.Metadata.Role == rules.RoleDMSArchitect {
		steps = append(steps, writeViews, writeContainers)
	}
	for _, step := range steps {
		if err := step(f, m); err != nil {
			f.Close()
			return nil, err
		}
	}

	// Drop the default sheet excelize creates.
	if err := f.DeleteSheet("Sheet1"); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to finalize workbook: %w", err)
	}
	f.SetActiveSheet(0)
	return f, nil
}

func writeMetadata(f *excelize.File, m *rules.Model) error {
	md := m.Metadata
	pairs := [][2]string{
		{"role", string(md.Role)},
		{"prefix", md.Prefix},
		{"namespace", md.Namespace},
		{"version", md.Version},
		{"extension", string(md.Extension)},
		{"title", md.Title},
		{"description", md.Description},
		{"creator", md.Creator},
	}
	if !md.Created.IsZero() {
		pairs = append(pairs, [2]string{"created", md.Created.Format("2006-01-02")})
	}
	if !md.Updated.IsZero() {
		pairs = append(pairs, [2]string{"updated", md.Updated.Format("2006-01-02")})
	}

	if _, err := f.NewSheet(SheetMetadata); err != nil {
		return fmt.Errorf("failed to create sheet %q: %w", SheetMetadata, err)
	}
	for i, kv := range pairs {
		if err := setRow(f, SheetMetadata, i+1, []any{kv[0], kv[1]}); err != nil {
			return err
		}
	}
	return nil
}

func writeClasses(f *excelize.File, m *rules.Model) error {
	if _, err := f.NewSheet(SheetClasses); err != nil {
		return fmt.Errorf("failed to create sheet %q: %w", SheetClasses, err)
	}
	head := []any{colClass, colDescription, colParent, colReference, colMatchType}
	if err := setRow(f, SheetClasses, 1, head); err != nil {
		return err
	}
	for i, cls := range m.Classes {
		row := []any{cls.ID, cls.Description, cls.ParentID, cls.Reference, string(cls.MatchType)}
		if err := setRow(f, SheetClasses, i+2, row); err != nil {
			return err
		}
	}
	return nil
}

func writeProperties(f *excelize.File, m *rules.Model) error {
	if _, err := f.NewSheet(SheetProperties); err != nil {
		return fmt.Errorf("failed to create sheet %q: %w", SheetProperties, err)
	}

	head := []any{
		colClass, colProperty, colDescription, colValueType,
		colMinCount, colMaxCount, colDefault,
	}
	dms := m.Metadata.Role == rules.RoleDMSArchitect
	if dms {
		head = append(head, colContainer, colContainerProp, colView, colViewProp)
	}
	head = append(head, colReference, colMatchType)
	if err := setRow(f, SheetProperties, 1, head); err != nil {
		return err
	}

	for i, p := range m.Properties {
		row := []any{
			p.ClassID, p.ID, p.Description, string(p.ValueType),
			p.MinCount, formatMaxCount(p.MaxCount), p.Default,
		}
		if dms {
			row = append(row, p.Container, p.ContainerProperty, p.View, p.ViewProperty)
		}
		row = append(row, p.Reference, string(p.MatchType))
		if err := setRow(f, SheetProperties, i+2, row); err != nil {
			return err
		}
	}
	return nil
}

func writeViews(f *excelize.File, m *rules.Model) error {
	if _, err := f.NewSheet(SheetViews); err != nil {
		return fmt.Errorf("failed to create sheet %q: %w", SheetViews, err)
	}
	head := []any{colView, colDescription, colImplements, colInModel, colFilter}
	if err := setRow(f, SheetViews, 1, head); err != nil {
		return err
	}
	for i, v := range m.Views {
		inModel := "true"
		if !v.InModel {
			inModel = "false"
		}
		row := []any{v.ID, v.Description, joinList(v.Implements), inModel, v.Filter}
		if err := setRow(f, SheetViews, i+2, row); err != nil {
			return err
		}
	}
	return nil
}

func writeContainers(f *excelize.File, m *rules.Model) error {
	if _, err := f.NewSheet(SheetContainers); err != nil {
		return fmt.Errorf("failed to create sheet %q: %w", SheetContainers, err)
	}
	head := []any{colContainer, colDescription, colConstraint, colUsedFor}
	if err := setRow(f, SheetContainers, 1, head); err != nil {
		return err
	}
	for i, c := range m.Containers {
		row := []any{c.ID, c.Description, joinList(c.Constraints), string(c.UsedFor)}
		if err := setRow(f, SheetContainers, i+2, row); err != nil {
			return err
		}
	}
	return nil
}

func setRow(f *excelize.File, sheet string, rowNum int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, rowNum)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("failed to write sheet %q row %d: %w", sheet, rowNum, err)
	}
	return nil
}

// WriteTemplate writes an empty workbook with headers for the given
// role, the starting point for a fresh rules document.
func WriteTemplate(path string, role rules.Role) error {
	m := &rules.Model{Metadata: rules.Metadata{Role: role, Version: "0.1.0"}}
	return Write(path, m)
}
