package handler

import (
	"context"

	"github.com/roach88/contentgraph/internal/command"
	"github.com/roach88/contentgraph/internal/dimension"
	"github.com/roach88/contentgraph/internal/event"
	"github.com/roach88/contentgraph/internal/ir"
	"github.com/roach88/contentgraph/internal/subgraph"
)

func (d Deps) createNodeVariant(ctx context.Context, c command.CreateNodeVariant) (EventsToPublish, error) {
	t, err := d.resolve(ctx, c.WorkspaceName)
	if err != nil {
		return EventsToPublish{}, err
	}
	source := c.SourceOrigin.ToDimensionSpacePoint()
	targetPoint := c.TargetOrigin.ToDimensionSpacePoint()
	if err := d.requirePoint(source); err != nil {
		return EventsToPublish{}, err
	}
	if err := d.requirePoint(targetPoint); err != nil {
		return EventsToPublish{}, err
	}
	agg, err := d.requireAggregate(ctx, t.contentStream, c.NodeAggregateID)
	if err != nil {
		return EventsToPublish{}, err
	}
	if err := requireNotRoot(agg); err != nil {
		return EventsToPublish{}, err
	}
	if err := requireOccupies(agg, c.SourceOrigin); err != nil {
		return EventsToPublish{}, err
	}
	if agg.Occupies(c.TargetOrigin) {
		return EventsToPublish{}, violation("DimensionSpacePointIsAlreadyOccupied",
			"node aggregate %s already occupies %s", agg.ID, c.TargetOrigin)
	}

	parent, err := d.Graph.FindParentNodeAggregateByChildOriginDimensionSpacePoint(ctx, t.contentStream, agg.ID, c.SourceOrigin)
	if err != nil {
		return EventsToPublish{}, err
	}
	if parent == nil {
		return EventsToPublish{}, notFound("NodeAggregateCurrentlyDoesNotExist",
			"no parent of %s at %s", agg.ID, c.SourceOrigin)
	}
	if !parent.Covers(targetPoint) {
		return EventsToPublish{}, violation("NodeAggregateDoesCurrentlyNotCoverDimensionSpacePoint",
			"parent node aggregate %s does not cover %s", parent.ID, targetPoint)
	}

	events, err := d.variantEvents(ctx, t.contentStream, agg, c.SourceOrigin, c.TargetOrigin, parent.CoveredDimensionSpacePoints)
	if err != nil {
		return EventsToPublish{}, err
	}
	return d.recorded(t, c, events...)
}

// variantEvents creates the variant of agg and, below it, of every
// tethered child that has a node at source but none at target yet.
func (d Deps) variantEvents(ctx context.Context, cs ir.ContentStreamID, agg *subgraph.NodeAggregate, source, target dimension.OriginDimensionSpacePoint, parentCoverage dimension.DimensionSpacePointSet) ([]event.Event, error) {
	coverage, err := d.variantCoverage(agg, target)
	if err != nil {
		return nil, err
	}
	coverage = coverage.Intersect(parentCoverage)

	payload := event.NodeVariantWasCreated{
		ContentStreamID: cs,
		NodeAggregateID: agg.ID,
		SourceOrigin:    source,
		TargetOrigin:    target,
		Coverage:        coverage,
	}
	var e event.Event
	switch d.Variation.VariantType(target.ToDimensionSpacePoint(), source.ToDimensionSpacePoint()) {
	case dimension.VariantTypeSpecialization:
		e = event.NodeSpecializationVariantWasCreated{NodeVariantWasCreated: payload}
	case dimension.VariantTypeGeneralization:
		e = event.NodeGeneralizationVariantWasCreated{NodeVariantWasCreated: payload}
	default:
		e = event.NodePeerVariantWasCreated{NodeVariantWasCreated: payload}
	}
	events := []event.Event{e}

	children, err := d.Graph.FindTetheredChildNodeAggregates(ctx, cs, agg.ID)
	if err != nil {
		return nil, err
	}
	for _, child := range children {
		if !child.Occupies(source) || child.Occupies(target) {
			continue
		}
		sub, err := d.variantEvents(ctx, cs, child, source, target, coverage)
		if err != nil {
			return nil, err
		}
		events = append(events, sub...)
	}
	return events, nil
}

// variantCoverage is the part of target's specialization set not claimed
// by a more specialized origin agg already occupies.
func (d Deps) variantCoverage(agg *subgraph.NodeAggregate, target dimension.OriginDimensionSpacePoint) (dimension.DimensionSpacePointSet, error) {
	tp := target.ToDimensionSpacePoint()
	excluded := dimension.NewDimensionSpacePointSet()
	for _, o := range agg.OccupiedDimensionSpacePoints.Origins() {
		op := o.ToDimensionSpacePoint()
		if d.Variation.VariantType(op, tp) != dimension.VariantTypeSpecialization {
			continue
		}
		claimed, err := d.specializations(op)
		if err != nil {
			return dimension.DimensionSpacePointSet{}, err
		}
		excluded = excluded.Union(claimed)
	}
	set, err := d.Variation.SpecializationSet(tp, true, excluded)
	if err != nil {
		return dimension.DimensionSpacePointSet{}, violation("DimensionSpacePointNotFound", "%v", err)
	}
	return set, nil
}
