package handler

import (
	"context"
	"errors"

	"github.com/roach88/contentgraph/internal/dimension"
	"github.com/roach88/contentgraph/internal/ir"
	"github.com/roach88/contentgraph/internal/nodetype"
	"github.com/roach88/contentgraph/internal/subgraph"
	"github.com/roach88/contentgraph/internal/workspace"
)

// target is the content stream a node command writes to, with the version
// its commit must expect.
type target struct {
	contentStream ir.ContentStreamID
	version       int64
}

func (d Deps) requireWorkspace(ctx context.Context, name ir.WorkspaceName) (*workspace.Workspace, error) {
	ws, err := d.Workspaces.FindByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if ws == nil {
		return nil, notFound("WorkspaceDoesNotExist", "workspace %s does not exist", name)
	}
	return ws, nil
}

func (d Deps) requireWorkspaceAbsent(ctx context.Context, name ir.WorkspaceName) error {
	ws, err := d.Workspaces.FindByName(ctx, name)
	if err != nil {
		return err
	}
	if ws != nil {
		return violation("WorkspaceAlreadyExists", "workspace %s already exists", name)
	}
	return nil
}

// requireBaseWorkspace returns the base of ws; root workspaces have none.
func (d Deps) requireBaseWorkspace(ctx context.Context, ws *workspace.Workspace) (*workspace.Workspace, error) {
	if ws.IsRoot() {
		return nil, violation("WorkspaceHasNoBaseWorkspace", "workspace %s has no base workspace", ws.Name)
	}
	base, err := d.Workspaces.FindByName(ctx, ws.BaseName)
	if err != nil {
		return nil, err
	}
	if base == nil {
		return nil, notFound("BaseWorkspaceDoesNotExist", "base workspace %s of %s does not exist", ws.BaseName, ws.Name)
	}
	return base, nil
}

func (d Deps) requireContentStream(ctx context.Context, id ir.ContentStreamID) (*workspace.ContentStream, error) {
	cs, err := d.ContentStreams.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if cs == nil || cs.Removed {
		return nil, notFound("ContentStreamDoesNotExist", "content stream %s does not exist", id)
	}
	return cs, nil
}

func (d Deps) requireContentStreamAbsent(ctx context.Context, id ir.ContentStreamID) error {
	cs, err := d.ContentStreams.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if cs != nil {
		return violation("ContentStreamAlreadyExists", "content stream %s already exists", id)
	}
	return nil
}

func (d Deps) requireOpenContentStream(ctx context.Context, id ir.ContentStreamID) (*workspace.ContentStream, error) {
	cs, err := d.requireContentStream(ctx, id)
	if err != nil {
		return nil, err
	}
	if cs.Closed {
		return nil, violation("ContentStreamIsClosed", "content stream %s is closed", id)
	}
	return cs, nil
}

// resolve finds the stream a node command for ws writes to.
func (d Deps) resolve(ctx context.Context, ws ir.WorkspaceName) (target, error) {
	id := d.contentStreamOverride
	if id == "" {
		w, err := d.requireWorkspace(ctx, ws)
		if err != nil {
			return target{}, err
		}
		id = w.CurrentContentStreamID
	}
	cs, err := d.requireOpenContentStream(ctx, id)
	if err != nil {
		return target{}, err
	}
	return target{contentStream: cs.ID, version: cs.Version}, nil
}

func (d Deps) requireNodeType(name ir.NodeTypeName) (*nodetype.NodeType, error) {
	nt, err := d.NodeTypes.Get(name)
	if err != nil {
		var nf *nodetype.NotFoundError
		if errors.As(err, &nf) {
			return nil, notFound("NodeTypeNotFound", "node type %s is not configured", name)
		}
		return nil, err
	}
	return nt, nil
}

// requireConcreteNodeType accepts existing, non-abstract types. Root types
// are only accepted when root is true, and required then.
func (d Deps) requireConcreteNodeType(name ir.NodeTypeName, root bool) (*nodetype.NodeType, error) {
	nt, err := d.requireNodeType(name)
	if err != nil {
		return nil, err
	}
	if nt.Abstract {
		return nil, violation("NodeTypeIsAbstract", "node type %s is abstract", name)
	}
	if root && !nt.Root {
		return nil, violation("NodeTypeIsNotOfTypeRoot", "node type %s is not a root type", name)
	}
	if !root && nt.Root {
		return nil, violation("NodeTypeIsOfTypeRoot", "node type %s is a root type", name)
	}
	return nt, nil
}

func (d Deps) requirePoint(p dimension.DimensionSpacePoint) error {
	if !d.Variation.Contains(p) {
		return violation("DimensionSpacePointNotFound", "%s is outside the allowed dimension subspace", p)
	}
	return nil
}

func (d Deps) requireAggregate(ctx context.Context, cs ir.ContentStreamID, id ir.NodeAggregateID) (*subgraph.NodeAggregate, error) {
	agg, err := d.Graph.FindNodeAggregateByID(ctx, cs, id)
	if err != nil {
		return nil, err
	}
	if agg == nil {
		return nil, notFound("NodeAggregateCurrentlyDoesNotExist", "node aggregate %s does not exist in %s", id, cs)
	}
	return agg, nil
}

func (d Deps) requireAggregateAbsent(ctx context.Context, cs ir.ContentStreamID, id ir.NodeAggregateID) error {
	agg, err := d.Graph.FindNodeAggregateByID(ctx, cs, id)
	if err != nil {
		return err
	}
	if agg != nil {
		return violation("NodeAggregateCurrentlyExists", "node aggregate %s already exists in %s", id, cs)
	}
	return nil
}

func requireNotRoot(agg *subgraph.NodeAggregate) error {
	if agg.IsRoot() {
		return violation("NodeAggregateIsRoot", "node aggregate %s is a root", agg.ID)
	}
	return nil
}

func requireNotTethered(agg *subgraph.NodeAggregate) error {
	if agg.IsTethered() {
		return violation("NodeAggregateIsTethered", "node aggregate %s is tethered", agg.ID)
	}
	return nil
}

func requireOccupies(agg *subgraph.NodeAggregate, origin dimension.OriginDimensionSpacePoint) error {
	if !agg.Occupies(origin) {
		return violation("NodeAggregateDoesCurrentlyNotOccupyDimensionSpacePoint",
			"node aggregate %s does not occupy %s", agg.ID, origin)
	}
	return nil
}

func requireCovers(agg *subgraph.NodeAggregate, p dimension.DimensionSpacePoint) error {
	if !agg.Covers(p) {
		return violation("NodeAggregateDoesCurrentlyNotCoverDimensionSpacePoint",
			"node aggregate %s does not cover %s", agg.ID, p)
	}
	return nil
}

func requireCoversAll(agg *subgraph.NodeAggregate, points dimension.DimensionSpacePointSet) error {
	missing := points.Difference(agg.CoveredDimensionSpacePoints)
	if !missing.IsEmpty() {
		return violation("NodeAggregateDoesCurrentlyNotCoverDimensionSpacePointSet",
			"node aggregate %s does not cover %s", agg.ID, missing)
	}
	return nil
}

// requireChildAllowed checks that a node of childType named name may live
// below parent. Below a tethered parent the grandparent's declaration of
// that tethered child decides.
func (d Deps) requireChildAllowed(ctx context.Context, cs ir.ContentStreamID, parent *subgraph.NodeAggregate, childType *nodetype.NodeType, name ir.NodeName) error {
	parentType, err := d.requireNodeType(parent.NodeTypeName)
	if err != nil {
		return err
	}
	if name != "" {
		if _, ok := parentType.TetheredChild(name); ok {
			return violation("NodeNameIsAlreadyCovered",
				"name %s is reserved for a tethered child of %s", name, parentType.Name)
		}
	}
	if !parent.IsTethered() {
		if !parentType.AllowsChild(childType) {
			return violation("NodeConstraintException",
				"node type %s is not allowed below %s", childType.Name, parentType.Name)
		}
		return nil
	}

	grandparents, err := d.Graph.FindParentNodeAggregates(ctx, cs, parent.ID)
	if err != nil {
		return err
	}
	for _, gp := range grandparents {
		gpType, err := d.requireNodeType(gp.NodeTypeName)
		if err != nil {
			return err
		}
		if !gpType.AllowsGrandchild(parent.NodeName, parentType, childType) {
			return violation("NodeConstraintException",
				"node type %s is not allowed below %s/%s", childType.Name, gpType.Name, parent.NodeName)
		}
	}
	return nil
}

// requireNameFree checks that no other child of parent is named name in
// any of points.
func (d Deps) requireNameFree(ctx context.Context, cs ir.ContentStreamID, parent ir.NodeAggregateID, name ir.NodeName, points dimension.DimensionSpacePointSet, except ir.NodeAggregateID) error {
	if name == "" {
		return nil
	}
	occupied, err := d.Graph.FindDimensionSpacePointsByOccupiedChildNodeName(ctx, cs, parent, name, points, except)
	if err != nil {
		return err
	}
	if !occupied.IsEmpty() {
		return violation("NodeNameIsAlreadyCovered",
			"a child of %s is already named %s in %s", parent, name, occupied)
	}
	return nil
}

// specializations returns origin's specializations including origin itself.
func (d Deps) specializations(p dimension.DimensionSpacePoint) (dimension.DimensionSpacePointSet, error) {
	set, err := d.Variation.SpecializationSet(p, true, dimension.NewDimensionSpacePointSet())
	if err != nil {
		return dimension.DimensionSpacePointSet{}, violation("DimensionSpacePointNotFound", "%v", err)
	}
	return set, nil
}
