package handler

import (
	"context"

	"github.com/roach88/contentgraph/internal/command"
	"github.com/roach88/contentgraph/internal/dimension"
	"github.com/roach88/contentgraph/internal/event"
	"github.com/roach88/contentgraph/internal/ir"
	"github.com/roach88/contentgraph/internal/subgraph"
)

// moveScope returns the points a move at p affects under strategy.
func (d Deps) moveScope(agg *subgraph.NodeAggregate, p dimension.DimensionSpacePoint, strategy command.RelationDistributionStrategy) (dimension.DimensionSpacePointSet, error) {
	switch strategy {
	case command.MoveGatherAll:
		return agg.CoveredDimensionSpacePoints, nil
	case command.MoveGatherSpecializations:
		specializations, err := d.specializations(p)
		if err != nil {
			return dimension.DimensionSpacePointSet{}, err
		}
		return agg.CoveredDimensionSpacePoints.Intersect(specializations), nil
	default:
		return dimension.NewDimensionSpacePointSet(p), nil
	}
}

func (d Deps) moveNodeAggregate(ctx context.Context, c command.MoveNodeAggregate) (EventsToPublish, error) {
	t, err := d.resolve(ctx, c.WorkspaceName)
	if err != nil {
		return EventsToPublish{}, err
	}
	agg, err := d.coveredAggregate(ctx, t, c.NodeAggregateID, c.DimensionSpacePoint)
	if err != nil {
		return EventsToPublish{}, err
	}
	if err := requireNotRoot(agg); err != nil {
		return EventsToPublish{}, err
	}
	if err := requireNotTethered(agg); err != nil {
		return EventsToPublish{}, err
	}
	affected, err := d.moveScope(agg, c.DimensionSpacePoint, c.Strategy)
	if err != nil {
		return EventsToPublish{}, err
	}

	newParent := c.NewParentNodeAggregateID
	if c.NewSucceedingSiblingNodeAggregateID != "" {
		sibling, err := d.coveredAggregate(ctx, t, c.NewSucceedingSiblingNodeAggregateID, c.DimensionSpacePoint)
		if err != nil {
			return EventsToPublish{}, err
		}
		siblingParent, err := d.Graph.Subgraph(t.contentStream, c.DimensionSpacePoint, subgraph.WithoutRestrictions).
			FindParentNode(ctx, sibling.ID)
		if err != nil {
			return EventsToPublish{}, err
		}
		switch {
		case siblingParent == nil:
			return EventsToPublish{}, violation("NodeAggregateIsRoot",
				"succeeding sibling %s has no parent in %s", sibling.ID, c.DimensionSpacePoint)
		case newParent == "":
			newParent = siblingParent.AggregateID
		case siblingParent.AggregateID != newParent:
			return EventsToPublish{}, violation("NodeAggregateIsNoChild",
				"succeeding sibling %s is not a child of %s in %s", sibling.ID, newParent, c.DimensionSpacePoint)
		}
	}
	if err := d.requireMoveTarget(ctx, t.contentStream, agg, newParent, affected); err != nil {
		return EventsToPublish{}, err
	}

	return d.recorded(t, c, event.NodeAggregateWasMoved{
		ContentStreamID:                     t.contentStream,
		NodeAggregateID:                     agg.ID,
		NewParentNodeAggregateID:            c.NewParentNodeAggregateID,
		NewSucceedingSiblingNodeAggregateID: c.NewSucceedingSiblingNodeAggregateID,
		AffectedDimensionSpacePoints:        affected,
	})
}

// requireMoveTarget checks that agg may live below parent in every
// affected point.
func (d Deps) requireMoveTarget(ctx context.Context, cs ir.ContentStreamID, agg *subgraph.NodeAggregate, parentID ir.NodeAggregateID, affected dimension.DimensionSpacePointSet) error {
	parent, err := d.requireAggregate(ctx, cs, parentID)
	if err != nil {
		return err
	}
	if err := requireCoversAll(parent, affected); err != nil {
		return err
	}
	nt, err := d.requireNodeType(agg.NodeTypeName)
	if err != nil {
		return err
	}
	if err := d.requireChildAllowed(ctx, cs, parent, nt, agg.NodeName); err != nil {
		return err
	}
	ancestors, err := d.Graph.FindAncestorNodeAggregateIDs(ctx, cs, parent.ID)
	if err != nil {
		return err
	}
	if ancestors[agg.ID] {
		return violation("NodeAggregateIsDescendant",
			"%s is a descendant of %s", parent.ID, agg.ID)
	}
	return d.requireNameFree(ctx, cs, parent.ID, agg.NodeName, affected, agg.ID)
}
