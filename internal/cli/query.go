package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/contentgraph/internal/dimension"
	"github.com/roach88/contentgraph/internal/engine"
	"github.com/roach88/contentgraph/internal/ir"
	"github.com/roach88/contentgraph/internal/queryir"
	"github.com/roach88/contentgraph/internal/subgraph"
)

// QueryOptions holds flags shared by the query subcommands.
type QueryOptions struct {
	*RootOptions
	Point      map[string]string
	Visibility string
	NodeTypes  []string
	Filter     string
	Levels     int
	Limit      int
	Reference  string
}

// NodeView is a node as printed by the query commands.
type NodeView struct {
	ID         string            `json:"id"`
	Type       string            `json:"type"`
	Name       string            `json:"name,omitempty"`
	Origin     map[string]string `json:"origin"`
	Properties map[string]any    `json:"properties,omitempty"`
	Reference  string            `json:"reference,omitempty"`
	Children   []*NodeView       `json:"children,omitempty"`
}

// NewQueryCommand creates the query command and its subcommands.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Read nodes from a workspace's content subgraph",
		Long: `Read a workspace's content subgraph at one dimension space point.

Property filters use the property value query syntax:
  title = 'Home' AND NOT hidden = true
  uriPathSegment ^= 'blog' OR title *=~ 'news'

Examples:
  contentgraph query node live home --point language=de
  contentgraph query children user-editor home --point language=de --filter "title ^= 'A'"
  contentgraph query subtree live sites --point language=en --levels 2
  contentgraph query references live home --point language=de --reference related`,
	}

	flags := cmd.PersistentFlags()
	flags.StringToStringVar(&opts.Point, "point", nil, "dimension space point, e.g. language=de")
	flags.StringVar(&opts.Visibility, "visibility", string(subgraph.Frontend), "visibility constraints (frontend|withoutRestrictions)")
	flags.StringSliceVar(&opts.NodeTypes, "node-type", nil, "only include nodes of these types (and their subtypes)")

	node := &cobra.Command{
		Use:   "node <workspace> <node-aggregate-id>",
		Short: "Show one node",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(opts, cmd, args, queryNode)
		},
	}

	children := &cobra.Command{
		Use:   "children <workspace> <parent-node-aggregate-id>",
		Short: "List child nodes in hierarchy order",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(opts, cmd, args, queryChildren)
		},
	}
	children.Flags().StringVar(&opts.Filter, "filter", "", "property value filter")
	children.Flags().IntVar(&opts.Limit, "limit", 0, "maximum number of children (0 = all)")

	subtree := &cobra.Command{
		Use:   "subtree <workspace> <entry-node-aggregate-id>",
		Short: "Show the subtree below a node",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(opts, cmd, args, querySubtree)
		},
	}
	subtree.Flags().IntVar(&opts.Levels, "levels", 0, "maximum depth (0 = unlimited)")

	references := &cobra.Command{
		Use:   "references <workspace> <source-node-aggregate-id>",
		Short: "List outgoing references",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(opts, cmd, args, queryReferences)
		},
	}
	references.Flags().StringVar(&opts.Reference, "reference", "", "only list references of this name")
	references.Flags().StringVar(&opts.Filter, "filter", "", "property value filter on the target nodes")

	cmd.AddCommand(node, children, subtree, references)
	return cmd
}

type queryFunc func(ctx context.Context, sg *subgraph.ContentSubgraph, id ir.NodeAggregateID, opts *QueryOptions) (any, error)

func runQuery(opts *QueryOptions, cmd *cobra.Command, args []string, fn queryFunc) error {
	ctx := commandContext(cmd)
	formatter := newFormatter(opts.RootOptions, cmd)

	visibility := subgraph.VisibilityConstraints(opts.Visibility)
	if visibility != subgraph.Frontend && visibility != subgraph.WithoutRestrictions {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid visibility %q: must be %s or %s",
			opts.Visibility, subgraph.Frontend, subgraph.WithoutRestrictions))
	}

	reg, eng, err := openRepository(ctx, opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer reg.Close()

	sg, err := subgraphFor(ctx, eng, ir.WorkspaceName(args[0]), dimension.NewDimensionSpacePoint(opts.Point), visibility)
	if err != nil {
		return queryError(err)
	}
	out, err := fn(ctx, sg, ir.NodeAggregateID(args[1]), opts)
	if err != nil {
		return queryError(err)
	}
	if out == nil {
		msg := fmt.Sprintf("node %s not found in %s at %s", args[1], args[0], dimension.NewDimensionSpacePoint(opts.Point))
		if formatter.IsJSON() {
			_ = formatter.Error("E_NOT_FOUND", msg, nil)
		} else {
			fmt.Fprintln(cmd.OutOrStdout(), msg)
		}
		return NewExitError(ExitFailure, msg)
	}

	if formatter.IsJSON() {
		return formatter.JSON(out)
	}
	switch v := out.(type) {
	case *NodeView:
		printNodeTree(cmd.OutOrStdout(), v, 0)
	case []*NodeView:
		if len(v) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "(none)")
		}
		for _, n := range v {
			printNodeTree(cmd.OutOrStdout(), n, 0)
		}
	}
	return nil
}

func queryError(err error) error {
	var exit *ExitError
	if errors.As(err, &exit) {
		return err
	}
	return WrapExitError(ExitCommandError, "query failed", err)
}

func subgraphFor(ctx context.Context, eng *engine.Engine, name ir.WorkspaceName, p dimension.DimensionSpacePoint, v subgraph.VisibilityConstraints) (*subgraph.ContentSubgraph, error) {
	ws, err := eng.Workspaces().FindByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if ws == nil {
		return nil, NewExitError(ExitFailure, fmt.Sprintf("workspace %s does not exist", name))
	}
	if !eng.ContentRepository().Graph.Contains(p) {
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("dimension space point %s is not configured", p))
	}
	return eng.ContentGraph().Subgraph(ws.CurrentContentStreamID, p, v), nil
}

func parseFilter(filter string) (queryir.Criterion, error) {
	if filter == "" {
		return nil, nil
	}
	c, err := queryir.Parse(filter)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid --filter", err)
	}
	return c, nil
}

func nodeTypeCriteria(names []string) subgraph.NodeTypeCriteria {
	var c subgraph.NodeTypeCriteria
	for _, n := range names {
		c.Include = append(c.Include, ir.NodeTypeName(n))
	}
	return c
}

func queryNode(ctx context.Context, sg *subgraph.ContentSubgraph, id ir.NodeAggregateID, _ *QueryOptions) (any, error) {
	n, err := sg.FindNodeByID(ctx, id)
	if err != nil || n == nil {
		return nil, err
	}
	return toNodeView(n), nil
}

func queryChildren(ctx context.Context, sg *subgraph.ContentSubgraph, id ir.NodeAggregateID, opts *QueryOptions) (any, error) {
	criterion, err := parseFilter(opts.Filter)
	if err != nil {
		return nil, err
	}
	f := subgraph.FindChildNodesFilter{
		NodeTypes:     nodeTypeCriteria(opts.NodeTypes),
		PropertyValue: criterion,
	}
	if opts.Limit > 0 {
		f.Pagination = &subgraph.Pagination{Limit: opts.Limit}
	}
	nodes, err := sg.FindChildNodes(ctx, id, f)
	if err != nil {
		return nil, err
	}
	views := make([]*NodeView, 0, len(nodes))
	for _, n := range nodes {
		views = append(views, toNodeView(n))
	}
	return views, nil
}

func querySubtree(ctx context.Context, sg *subgraph.ContentSubgraph, id ir.NodeAggregateID, opts *QueryOptions) (any, error) {
	tree, err := sg.FindSubtree(ctx, id, subgraph.FindSubtreeFilter{
		MaxLevels: opts.Levels,
		NodeTypes: nodeTypeCriteria(opts.NodeTypes),
	})
	if err != nil || tree == nil {
		return nil, err
	}
	return toSubtreeView(tree), nil
}

func queryReferences(ctx context.Context, sg *subgraph.ContentSubgraph, id ir.NodeAggregateID, opts *QueryOptions) (any, error) {
	criterion, err := parseFilter(opts.Filter)
	if err != nil {
		return nil, err
	}
	refs, err := sg.FindReferences(ctx, id, subgraph.FindReferencesFilter{
		ReferenceName: opts.Reference,
		NodeTypes:     nodeTypeCriteria(opts.NodeTypes),
		PropertyValue: criterion,
	})
	if err != nil {
		return nil, err
	}
	views := make([]*NodeView, 0, len(refs))
	for _, r := range refs {
		v := toNodeView(r.Node)
		v.Reference = r.Name
		views = append(views, v)
	}
	return views, nil
}

func toNodeView(n *subgraph.Node) *NodeView {
	v := &NodeView{
		ID:     string(n.AggregateID),
		Type:   string(n.NodeTypeName),
		Name:   string(n.Name),
		Origin: n.OriginDimensionSpacePoint.Coordinates(),
	}
	if len(n.Properties) > 0 {
		v.Properties = make(map[string]any, len(n.Properties))
		for name, p := range n.Properties {
			v.Properties[name] = p.Value
		}
	}
	return v
}

func toSubtreeView(t *subgraph.Subtree) *NodeView {
	v := toNodeView(t.Node)
	for _, c := range t.Children {
		v.Children = append(v.Children, toSubtreeView(c))
	}
	return v
}

func printNodeTree(w io.Writer, n *NodeView, depth int) {
	indent := strings.Repeat("  ", depth)
	fmt.Fprintf(w, "%s%s <%s>", indent, n.ID, n.Type)
	if n.Name != "" {
		fmt.Fprintf(w, " name=%s", n.Name)
	}
	if n.Reference != "" {
		fmt.Fprintf(w, " via %s", n.Reference)
	}
	fmt.Fprintln(w)
	if len(n.Properties) > 0 {
		names := make([]string, 0, len(n.Properties))
		for name := range n.Properties {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(w, "%s  %s: %s\n", indent, name, formatValue(n.Properties[name]))
		}
	}
	for _, c := range n.Children {
		printNodeTree(w, c, depth+1)
	}
}
