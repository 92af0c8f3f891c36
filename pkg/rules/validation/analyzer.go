package validation

import (
	"sort"

	"github.com/neatkit/neat/pkg/rules"
)

// Config adjusts which rules run and how their findings are reported.
type Config struct {
	// Disabled contains rule IDs to skip.
	Disabled []string
	// Severity maps rule ID to a severity override name
	// (error, warning, info).
	Severity map[string]string
	// MinSeverity drops issues below this level from the report
	// ("error", "warning", "info"). Empty means report everything.
	MinSeverity string
}

// Analyzer runs registered rules against a model.
type Analyzer struct {
	registry *Registry
	cfg      Config
	disabled map[string]struct{}
}

// NewAnalyzer creates an analyzer over the default registry.
func NewAnalyzer(cfg Config) *Analyzer {
	return NewAnalyzerWithRegistry(DefaultRegistry(), cfg)
}

// NewAnalyzerWithRegistry creates an analyzer over a custom registry.
func NewAnalyzerWithRegistry(registry *Registry, cfg Config) *Analyzer {
	disabled := make(map[string]struct{}, len(cfg.Disabled))
	for _, id := range cfg.Disabled {
		disabled[id] = struct{}{}
	}
	return &Analyzer{registry: registry, cfg: cfg, disabled: disabled}
}

// Analyze validates the model against an optional snapshot and returns
// the report. The model and snapshot are never mutated.
func (a *Analyzer) Analyze(model *rules.Model, snapshot *rules.Model) Report {
	ctx := &Context{Model: model, Snapshot: snapshot}

	var report Report
	for _, def := range a.registry.All() {
		if _, off := a.disabled[def.ID]; off {
			continue
		}
		if !def.AppliesTo(model.Metadata.Role) {
			continue
		}

		issues := def.Check(ctx)
		severity := def.Severity
		if name, ok := a.cfg.Severity[def.ID]; ok {
			severity = ParseSeverity(name)
		}
		for _, issue := range issues {
			issue.RuleID = def.ID
			issue.Severity = severity
			report = append(report, issue)
		}
	}

	if a.cfg.MinSeverity != "" {
		report = report.atLeast(ParseSeverity(a.cfg.MinSeverity))
	}

	// Stable order: severity first, then sheet, row, rule.
	sort.SliceStable(report, func(i, j int) bool {
		if report[i].Severity != report[j].Severity {
			return report[i].Severity < report[j].Severity
		}
		if report[i].Sheet != report[j].Sheet {
			return report[i].Sheet < report[j].Sheet
		}
		if report[i].Row != report[j].Row {
			return report[i].Row < report[j].Row
		}
		return report[i].RuleID < report[j].RuleID
	})
	return report
}

// atLeast keeps issues at or above the given severity. Severity values
// ascend from error (0), so "at least warning" keeps errors too.
func (r Report) atLeast(floor Severity) Report {
	var out Report
	for _, issue := range r {
		if issue.Severity <= floor {
			out = append(out, issue)
		}
	}
	return out
}
