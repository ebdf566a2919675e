package harness

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/contentgraph/internal/dimension"
	"github.com/roach88/contentgraph/internal/engine"
	"github.com/roach88/contentgraph/internal/ir"
	"github.com/roach88/contentgraph/internal/subgraph"
)

// AssertionContext is what assertions read from.
type AssertionContext struct {
	Engine *engine.Engine
	Ctx    context.Context
	Trace  []TraceEvent
}

// AssertionError is a failed assertion.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
}

func (e *AssertionError) Error() string {
	return fmt.Sprintf("assertion %s failed: expected %s, got %s", e.Type, e.Expected, e.Actual)
}

// EvaluateAssertions runs every assertion and returns the failure messages.
func EvaluateAssertions(assertions []Assertion, actx *AssertionContext) []string {
	var failures []string
	for i, a := range assertions {
		if err := evaluate(a, actx); err != nil {
			failures = append(failures, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return failures
}

func evaluate(a Assertion, actx *AssertionContext) error {
	switch a.Type {
	case AssertNodeExists:
		n, err := findNode(a, actx)
		if err != nil {
			return err
		}
		if n == nil {
			return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("node %s in %s", a.Node, a.Workspace), Actual: "no node"}
		}
	case AssertNodeAbsent:
		n, err := findNode(a, actx)
		if err != nil {
			return err
		}
		if n != nil {
			return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("no node %s in %s", a.Node, a.Workspace), Actual: "node of type " + string(n.NodeTypeName)}
		}
	case AssertProperty:
		return assertProperty(a, actx)
	case AssertChildren:
		return assertChildren(a, actx)
	case AssertWorkspaceStatus:
		ws, err := actx.Engine.Workspaces().FindByName(actx.Ctx, ir.WorkspaceName(a.Workspace))
		if err != nil {
			return err
		}
		if ws == nil {
			return &AssertionError{Type: a.Type, Expected: "workspace " + a.Workspace, Actual: "no workspace"}
		}
		if string(ws.Status) != a.Status {
			return &AssertionError{Type: a.Type, Expected: a.Status, Actual: string(ws.Status)}
		}
	case AssertEventCount:
		count := 0
		for _, e := range actx.Trace {
			if e.Type == a.EventType {
				count++
			}
		}
		if count != a.Count {
			return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("%d %s", a.Count, a.EventType), Actual: fmt.Sprint(count)}
		}
	case AssertEventOrder:
		return assertEventOrder(a, actx.Trace)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}

func subgraphFor(a Assertion, actx *AssertionContext) (*subgraph.ContentSubgraph, error) {
	ws, err := actx.Engine.Workspaces().FindByName(actx.Ctx, ir.WorkspaceName(a.Workspace))
	if err != nil {
		return nil, err
	}
	if ws == nil {
		return nil, fmt.Errorf("workspace %s does not exist", a.Workspace)
	}
	visibility := subgraph.Frontend
	if a.Visibility != "" {
		visibility = subgraph.VisibilityConstraints(a.Visibility)
	}
	p := dimension.NewDimensionSpacePoint(a.Point)
	return actx.Engine.ContentGraph().Subgraph(ws.CurrentContentStreamID, p, visibility), nil
}

func findNode(a Assertion, actx *AssertionContext) (*subgraph.Node, error) {
	sg, err := subgraphFor(a, actx)
	if err != nil {
		return nil, err
	}
	return sg.FindNodeByID(actx.Ctx, ir.NodeAggregateID(a.Node))
}

func assertProperty(a Assertion, actx *AssertionContext) error {
	n, err := findNode(a, actx)
	if err != nil {
		return err
	}
	if n == nil {
		return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("node %s in %s", a.Node, a.Workspace), Actual: "no node"}
	}
	// YAML and the projection disagree on number types; compare rendered values.
	got := n.Property(a.Property)
	if fmt.Sprint(got) != fmt.Sprint(a.Value) {
		return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("%s=%v", a.Property, a.Value), Actual: fmt.Sprintf("%s=%v", a.Property, got)}
	}
	return nil
}

func assertChildren(a Assertion, actx *AssertionContext) error {
	sg, err := subgraphFor(a, actx)
	if err != nil {
		return err
	}
	children, err := sg.FindChildNodes(actx.Ctx, ir.NodeAggregateID(a.Node), subgraph.FindChildNodesFilter{})
	if err != nil {
		return err
	}
	got := make([]string, len(children))
	for i, c := range children {
		got[i] = string(c.AggregateID)
	}
	want := a.Children
	if want == nil {
		want = []string{}
	}
	if !slices.Equal(got, want) {
		return &AssertionError{Type: a.Type, Expected: "[" + strings.Join(want, ", ") + "]", Actual: "[" + strings.Join(got, ", ") + "]"}
	}
	return nil
}

// assertEventOrder checks that each listed event type occurs after the
// previous one. Other events may come in between.
func assertEventOrder(a Assertion, trace []TraceEvent) error {
	pos := 0
	for _, want := range a.Events {
		for pos < len(trace) && trace[pos].Type != want {
			pos++
		}
		if pos == len(trace) {
			return &AssertionError{Type: a.Type, Expected: strings.Join(a.Events, " < "), Actual: "missing " + want + " in order"}
		}
		pos++
	}
	return nil
}
