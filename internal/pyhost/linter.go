package pyhost

import (
	"context"

	"github.com/Sumatoshi-tech/pyanalyze/internal/hostapi"
	"github.com/Sumatoshi-tech/pyanalyze/internal/pyast"
)

// Linter is the reference hostapi.Linter: it surfaces the evaluator's own
// diagnostics plus one lint-specific check (redefinition of a top-level
// name), reusing the scope the evaluator already built.
type Linter struct{}

// NewLinter creates the reference linter.
func NewLinter() *Linter { return &Linter{} }

// Lint implements hostapi.Linter.
func (Linter) Lint(_ context.Context, _ *pyast.Module, analysis hostapi.Analysis) []hostapi.Diagnostic {
	diags := make([]hostapi.Diagnostic, len(analysis.Diagnostics))
	copy(diags, analysis.Diagnostics)

	if analysis.Err != nil {
		diags = append(diags, hostapi.Diagnostic{
			Message:  "analysis failed: " + analysis.Err.Error(),
			Severity: hostapi.SeverityError,
		})
	}

	s, ok := analysis.Scope.(*scope)
	if !ok || s == nil {
		return diags
	}

	seen := make(map[string]bool, len(s.classes)+len(s.functions))

	for _, name := range append(append([]string{}, s.classes...), s.functions...) {
		if seen[name] {
			diags = append(diags, hostapi.Diagnostic{
				Message:  "redefinition of top-level name " + name,
				Severity: hostapi.SeverityWarning,
			})

			continue
		}

		seen[name] = true
	}

	return diags
}
