package handler

import (
	"context"

	"github.com/roach88/contentgraph/internal/command"
	"github.com/roach88/contentgraph/internal/dimension"
	"github.com/roach88/contentgraph/internal/event"
	"github.com/roach88/contentgraph/internal/ir"
	"github.com/roach88/contentgraph/internal/subgraph"
)

// selectVariants returns the covered points and occupied origins of agg a
// command at p reaches under strategy.
func (d Deps) selectVariants(agg *subgraph.NodeAggregate, p dimension.DimensionSpacePoint, strategy command.NodeVariantSelectionStrategy) (dimension.DimensionSpacePointSet, dimension.OriginSet, error) {
	if strategy == command.StrategyAllVariants {
		return agg.CoveredDimensionSpacePoints, agg.OccupiedDimensionSpacePoints, nil
	}
	specializations, err := d.specializations(p)
	if err != nil {
		return dimension.DimensionSpacePointSet{}, dimension.OriginSet{}, err
	}
	var occupied []dimension.OriginDimensionSpacePoint
	for _, o := range agg.OccupiedDimensionSpacePoints.Origins() {
		if specializations.Contains(o.ToDimensionSpacePoint()) {
			occupied = append(occupied, o)
		}
	}
	return agg.CoveredDimensionSpacePoints.Intersect(specializations), dimension.NewOriginSet(occupied...), nil
}

func (d Deps) coveredAggregate(ctx context.Context, t target, id ir.NodeAggregateID, p dimension.DimensionSpacePoint) (*subgraph.NodeAggregate, error) {
	if err := d.requirePoint(p); err != nil {
		return nil, err
	}
	agg, err := d.requireAggregate(ctx, t.contentStream, id)
	if err != nil {
		return nil, err
	}
	if err := requireCovers(agg, p); err != nil {
		return nil, err
	}
	return agg, nil
}

func (d Deps) removeNodeAggregate(ctx context.Context, c command.RemoveNodeAggregate) (EventsToPublish, error) {
	t, err := d.resolve(ctx, c.WorkspaceName)
	if err != nil {
		return EventsToPublish{}, err
	}
	agg, err := d.coveredAggregate(ctx, t, c.NodeAggregateID, c.CoveredDimensionSpacePoint)
	if err != nil {
		return EventsToPublish{}, err
	}
	if err := requireNotRoot(agg); err != nil {
		return EventsToPublish{}, err
	}
	if err := requireNotTethered(agg); err != nil {
		return EventsToPublish{}, err
	}
	covered, occupied, err := d.selectVariants(agg, c.CoveredDimensionSpacePoint, c.Strategy)
	if err != nil {
		return EventsToPublish{}, err
	}
	return d.recorded(t, c, event.NodeAggregateWasRemoved{
		ContentStreamID:                      t.contentStream,
		NodeAggregateID:                      agg.ID,
		AffectedOccupiedDimensionSpacePoints: occupied,
		AffectedCoveredDimensionSpacePoints:  covered,
	})
}

func (d Deps) disableNodeAggregate(ctx context.Context, c command.DisableNodeAggregate) (EventsToPublish, error) {
	t, err := d.resolve(ctx, c.WorkspaceName)
	if err != nil {
		return EventsToPublish{}, err
	}
	agg, err := d.coveredAggregate(ctx, t, c.NodeAggregateID, c.CoveredDimensionSpacePoint)
	if err != nil {
		return EventsToPublish{}, err
	}
	if agg.IsDisabledIn(c.CoveredDimensionSpacePoint) {
		return EventsToPublish{}, violation("NodeAggregateCurrentlyDisabled",
			"node aggregate %s is already disabled in %s", agg.ID, c.CoveredDimensionSpacePoint)
	}
	covered, _, err := d.selectVariants(agg, c.CoveredDimensionSpacePoint, c.Strategy)
	if err != nil {
		return EventsToPublish{}, err
	}
	return d.recorded(t, c, event.NodeAggregateWasDisabled{
		ContentStreamID:              t.contentStream,
		NodeAggregateID:              agg.ID,
		AffectedDimensionSpacePoints: covered.Difference(agg.DisabledDimensionSpacePoints),
	})
}

func (d Deps) enableNodeAggregate(ctx context.Context, c command.EnableNodeAggregate) (EventsToPublish, error) {
	t, err := d.resolve(ctx, c.WorkspaceName)
	if err != nil {
		return EventsToPublish{}, err
	}
	agg, err := d.coveredAggregate(ctx, t, c.NodeAggregateID, c.CoveredDimensionSpacePoint)
	if err != nil {
		return EventsToPublish{}, err
	}
	if !agg.IsDisabledIn(c.CoveredDimensionSpacePoint) {
		return EventsToPublish{}, violation("NodeAggregateCurrentlyEnabled",
			"node aggregate %s is not disabled in %s", agg.ID, c.CoveredDimensionSpacePoint)
	}
	covered, _, err := d.selectVariants(agg, c.CoveredDimensionSpacePoint, c.Strategy)
	if err != nil {
		return EventsToPublish{}, err
	}
	return d.recorded(t, c, event.NodeAggregateWasEnabled{
		ContentStreamID:              t.contentStream,
		NodeAggregateID:              agg.ID,
		AffectedDimensionSpacePoints: covered.Intersect(agg.DisabledDimensionSpacePoints),
	})
}
