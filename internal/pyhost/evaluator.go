package pyhost

import (
	"context"

	"github.com/Sumatoshi-tech/pyanalyze/internal/hostapi"
	"github.com/Sumatoshi-tech/pyanalyze/internal/pyast"
)

// scope is the reference GlobalScope: every class, function, and
// assignment target this module's tree declares, nested definitions
// included, without recording which scope each name belongs to (scope
// tracking is genuine Python semantics, an explicit non-goal).
type scope struct {
	moduleName string
	classes    []string
	functions  []string
	assigned   []string
}

// ModuleName implements hostapi.GlobalScope.
func (s *scope) ModuleName() string { return s.moduleName }

// Classes returns the module's class names, nested classes included.
func (s *scope) Classes() []string { return s.classes }

// Functions returns the module's function names, nested functions and
// methods included.
func (s *scope) Functions() []string { return s.functions }

// Assigned returns every name this module assigns to, anywhere in its body.
func (s *scope) Assigned() []string { return s.assigned }

// Evaluator is the reference hostapi.Evaluator: it walks the module's own
// tree to build a symbol scope and a handful of demo diagnostics. It does
// not use deps at all — a real
// evaluator's dataflow between modules is exactly the part spec.md leaves
// external.
type Evaluator struct{}

// NewEvaluator creates the reference evaluator.
func NewEvaluator() *Evaluator { return &Evaluator{} }

// Evaluate implements hostapi.Evaluator.
func (Evaluator) Evaluate(_ context.Context, module *pyast.Module, tree pyast.Tree, _ []hostapi.Analysis) (hostapi.Analysis, error) {
	s := &scope{moduleName: module.Name}

	var diags []hostapi.Diagnostic

	if tree != nil {
		tree.Walk(func(n pyast.Node) {
			switch node := n.(type) {
			case pyast.ClassDefNode:
				s.classes = append(s.classes, node.Name)
			case pyast.FunctionDefNode:
				s.functions = append(s.functions, node.Name)
			case pyast.AssignmentNode:
				s.assigned = append(s.assigned, node.Targets...)
			case pyast.FromImportNode:
				if node.Names == nil {
					diags = append(diags, hostapi.Diagnostic{
						Message:  "wildcard import from " + node.Module + " cannot be statically resolved",
						Severity: hostapi.SeverityInfo,
					})
				}
			}
		})
	}

	return hostapi.Analysis{Scope: s, Diagnostics: diags}, nil
}
