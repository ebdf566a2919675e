package handler

import (
	"context"
	"sort"

	"github.com/roach88/contentgraph/internal/command"
	"github.com/roach88/contentgraph/internal/dimension"
	"github.com/roach88/contentgraph/internal/event"
	"github.com/roach88/contentgraph/internal/ir"
	"github.com/roach88/contentgraph/internal/nodetype"
	"github.com/roach88/contentgraph/internal/subgraph"
)

// scopedOrigins resolves which occupied origins of agg a write at origin
// reaches under scope.
func (d Deps) scopedOrigins(agg *subgraph.NodeAggregate, origin dimension.OriginDimensionSpacePoint, scope nodetype.PropertyScope) ([]dimension.OriginDimensionSpacePoint, error) {
	switch scope.OrDefault() {
	case nodetype.ScopeSpecializations:
		specializations, err := d.specializations(origin.ToDimensionSpacePoint())
		if err != nil {
			return nil, err
		}
		var out []dimension.OriginDimensionSpacePoint
		for _, o := range agg.OccupiedDimensionSpacePoints.Origins() {
			if specializations.Contains(o.ToDimensionSpacePoint()) {
				out = append(out, o)
			}
		}
		return out, nil
	case nodetype.ScopeNodeAggregate:
		return agg.OccupiedDimensionSpacePoints.Origins(), nil
	}
	return []dimension.OriginDimensionSpacePoint{origin}, nil
}

type propertyChange struct {
	origin dimension.OriginDimensionSpacePoint
	values ir.SerializedPropertyValues
	unset  []string
}

func (d Deps) setNodeProperties(ctx context.Context, c command.SetNodeProperties) (EventsToPublish, error) {
	t, err := d.resolve(ctx, c.WorkspaceName)
	if err != nil {
		return EventsToPublish{}, err
	}
	agg, err := d.requireAggregate(ctx, t.contentStream, c.NodeAggregateID)
	if err != nil {
		return EventsToPublish{}, err
	}
	origin := c.OriginDimensionSpacePoint
	if err := requireOccupies(agg, origin); err != nil {
		return EventsToPublish{}, err
	}
	nt, err := d.requireNodeType(agg.NodeTypeName)
	if err != nil {
		return EventsToPublish{}, err
	}
	values, _, err := nodetype.SerializeProperties(nt.Properties, c.PropertyValues)
	if err != nil {
		return EventsToPublish{}, violation("PropertyCannotBeSet", "%s: %v", agg.ID, err)
	}

	names := make([]string, 0, len(c.PropertyValues))
	for name := range c.PropertyValues {
		names = append(names, name)
	}
	sort.Strings(names)

	changes := map[string]*propertyChange{}
	for _, name := range names {
		origins, err := d.scopedOrigins(agg, origin, nt.Properties[name].Scope)
		if err != nil {
			return EventsToPublish{}, err
		}
		for _, o := range origins {
			ch, ok := changes[o.Hash()]
			if !ok {
				ch = &propertyChange{origin: o, values: ir.SerializedPropertyValues{}}
				changes[o.Hash()] = ch
			}
			if v, ok := values[name]; ok {
				ch.values[name] = v
			} else {
				ch.unset = append(ch.unset, name)
			}
		}
	}

	hashes := make([]string, 0, len(changes))
	for h := range changes {
		hashes = append(hashes, h)
	}
	sort.Strings(hashes)
	events := make([]event.Event, 0, len(hashes))
	for _, h := range hashes {
		ch := changes[h]
		events = append(events, event.NodePropertiesWereSet{
			ContentStreamID:              t.contentStream,
			NodeAggregateID:              agg.ID,
			OriginDimensionSpacePoint:    ch.origin,
			AffectedDimensionSpacePoints: agg.CoverageByOccupant(ch.origin),
			PropertyValues:               ch.values,
			PropertiesToUnset:            ch.unset,
		})
	}
	return d.recorded(t, c, events...)
}

func (d Deps) setNodeReferences(ctx context.Context, c command.SetNodeReferences) (EventsToPublish, error) {
	t, err := d.resolve(ctx, c.WorkspaceName)
	if err != nil {
		return EventsToPublish{}, err
	}
	source, err := d.requireAggregate(ctx, t.contentStream, c.SourceNodeAggregateID)
	if err != nil {
		return EventsToPublish{}, err
	}
	origin := c.SourceOriginDimensionSpacePoint
	if err := requireOccupies(source, origin); err != nil {
		return EventsToPublish{}, err
	}
	nt, err := d.requireNodeType(source.NodeTypeName)
	if err != nil {
		return EventsToPublish{}, err
	}
	def, ok := nt.Reference(c.ReferenceName)
	if !ok {
		return EventsToPublish{}, violation("ReferenceCannotBeSet",
			"node type %s declares no reference %s", nt.Name, c.ReferenceName)
	}
	if def.MaxItems > 0 && len(c.References) > def.MaxItems {
		return EventsToPublish{}, violation("ReferenceCannotBeSet",
			"reference %s allows at most %d targets, got %d", c.ReferenceName, def.MaxItems, len(c.References))
	}

	refs := make([]event.SerializedReference, 0, len(c.References))
	for _, ref := range c.References {
		targetAgg, err := d.requireAggregate(ctx, t.contentStream, ref.TargetNodeAggregateID)
		if err != nil {
			return EventsToPublish{}, err
		}
		if err := requireNotRoot(targetAgg); err != nil {
			return EventsToPublish{}, err
		}
		if err := requireCovers(targetAgg, origin.ToDimensionSpacePoint()); err != nil {
			return EventsToPublish{}, err
		}
		targetType, err := d.requireNodeType(targetAgg.NodeTypeName)
		if err != nil {
			return EventsToPublish{}, err
		}
		if !def.AllowsTarget(targetType) {
			return EventsToPublish{}, violation("ReferenceCannotBeSet",
				"reference %s does not allow targets of type %s", c.ReferenceName, targetType.Name)
		}
		props, _, err := nodetype.SerializeProperties(def.Properties, ref.Properties)
		if err != nil {
			return EventsToPublish{}, violation("ReferenceCannotBeSet", "reference %s: %v", c.ReferenceName, err)
		}
		refs = append(refs, event.SerializedReference{TargetNodeAggregateID: targetAgg.ID, Properties: props})
	}

	origins, err := d.scopedOrigins(source, origin, def.Scope)
	if err != nil {
		return EventsToPublish{}, err
	}
	return d.recorded(t, c, event.NodeReferencesWereSet{
		ContentStreamID:                          t.contentStream,
		SourceNodeAggregateID:                    source.ID,
		AffectedSourceOriginDimensionSpacePoints: dimension.NewOriginSet(origins...),
		ReferenceName:                            c.ReferenceName,
		References:                               refs,
	})
}

func (d Deps) changeNodeAggregateName(ctx context.Context, c command.ChangeNodeAggregateName) (EventsToPublish, error) {
	t, err := d.resolve(ctx, c.WorkspaceName)
	if err != nil {
		return EventsToPublish{}, err
	}
	agg, err := d.requireAggregate(ctx, t.contentStream, c.NodeAggregateID)
	if err != nil {
		return EventsToPublish{}, err
	}
	if err := requireNotRoot(agg); err != nil {
		return EventsToPublish{}, err
	}
	if err := requireNotTethered(agg); err != nil {
		return EventsToPublish{}, err
	}
	parents, err := d.Graph.FindParentNodeAggregates(ctx, t.contentStream, agg.ID)
	if err != nil {
		return EventsToPublish{}, err
	}
	for _, parent := range parents {
		parentType, err := d.requireNodeType(parent.NodeTypeName)
		if err != nil {
			return EventsToPublish{}, err
		}
		if _, ok := parentType.TetheredChild(c.NewNodeName); ok {
			return EventsToPublish{}, violation("NodeNameIsAlreadyCovered",
				"name %s is reserved for a tethered child of %s", c.NewNodeName, parentType.Name)
		}
		if err := d.requireNameFree(ctx, t.contentStream, parent.ID, c.NewNodeName, agg.CoveredDimensionSpacePoints, agg.ID); err != nil {
			return EventsToPublish{}, err
		}
	}
	return d.recorded(t, c, event.NodeAggregateNameWasChanged{
		ContentStreamID: t.contentStream,
		NodeAggregateID: agg.ID,
		NewNodeName:     c.NewNodeName,
	})
}

// changeNodeAggregateType switches the type of every variant. Children the
// new type no longer allows are rejected (happy path) or removed (delete).
// Tethered children the new type declares are created where missing.
func (d Deps) changeNodeAggregateType(ctx context.Context, c command.ChangeNodeAggregateType) (EventsToPublish, error) {
	t, err := d.resolve(ctx, c.WorkspaceName)
	if err != nil {
		return EventsToPublish{}, err
	}
	agg, err := d.requireAggregate(ctx, t.contentStream, c.NodeAggregateID)
	if err != nil {
		return EventsToPublish{}, err
	}
	if err := requireNotRoot(agg); err != nil {
		return EventsToPublish{}, err
	}
	if err := requireNotTethered(agg); err != nil {
		return EventsToPublish{}, err
	}
	newType, err := d.requireConcreteNodeType(c.NewNodeTypeName, false)
	if err != nil {
		return EventsToPublish{}, err
	}
	if agg.NodeTypeName == newType.Name {
		return EventsToPublish{}, violation("NodeAggregateIsAlreadyOfType",
			"node aggregate %s is already of type %s", agg.ID, newType.Name)
	}
	parents, err := d.Graph.FindParentNodeAggregates(ctx, t.contentStream, agg.ID)
	if err != nil {
		return EventsToPublish{}, err
	}
	for _, parent := range parents {
		if err := d.requireChildAllowed(ctx, t.contentStream, parent, newType, ""); err != nil {
			return EventsToPublish{}, err
		}
	}

	events := []event.Event{event.NodeAggregateTypeWasChanged{
		ContentStreamID: t.contentStream,
		NodeAggregateID: agg.ID,
		NewNodeTypeName: newType.Name,
	}}
	disallowed := func(child *subgraph.NodeAggregate, why string) error {
		if c.Strategy != command.TypeChangeDelete {
			return violation("NodeConstraintException", "child %s of %s %s", child.ID, agg.ID, why)
		}
		events = append(events, removalOf(t.contentStream, child))
		return nil
	}

	children, err := d.Graph.FindChildNodeAggregates(ctx, t.contentStream, agg.ID)
	if err != nil {
		return EventsToPublish{}, err
	}
	present := map[ir.NodeName]bool{}
	for _, child := range children {
		childType, err := d.requireNodeType(child.NodeTypeName)
		if err != nil {
			return EventsToPublish{}, err
		}
		if !child.IsTethered() {
			if !newType.AllowsChild(childType) {
				if err := disallowed(child, "is not allowed by "+string(newType.Name)); err != nil {
					return EventsToPublish{}, err
				}
			}
			continue
		}
		if _, ok := newType.TetheredChild(child.NodeName); !ok {
			if err := disallowed(child, "is not a tethered child of "+string(newType.Name)); err != nil {
				return EventsToPublish{}, err
			}
			continue
		}
		present[child.NodeName] = true
		grandchildren, err := d.Graph.FindChildNodeAggregates(ctx, t.contentStream, child.ID)
		if err != nil {
			return EventsToPublish{}, err
		}
		for _, gc := range grandchildren {
			if gc.IsTethered() {
				continue
			}
			gcType, err := d.requireNodeType(gc.NodeTypeName)
			if err != nil {
				return EventsToPublish{}, err
			}
			if !newType.AllowsGrandchild(child.NodeName, childType, gcType) {
				if err := disallowed(gc, "is not allowed below "+string(child.NodeName)); err != nil {
					return EventsToPublish{}, err
				}
			}
		}
	}

	ids, err := d.tetheredIDs(newType, agg.ID, "", nil)
	if err != nil {
		return EventsToPublish{}, err
	}
	for _, decl := range sortedTethered(newType) {
		if present[decl.Name] {
			continue
		}
		childType, err := d.requireNodeType(decl.Type)
		if err != nil {
			return EventsToPublish{}, err
		}
		path := string(decl.Name)
		if err := d.requireAggregateAbsent(ctx, t.contentStream, ids[path]); err != nil {
			return EventsToPublish{}, err
		}
		for _, origin := range agg.OccupiedDimensionSpacePoints.Origins() {
			covered := agg.CoverageByOccupant(origin)
			events = append(events, event.NodeAggregateWithNodeWasCreated{
				ContentStreamID:             t.contentStream,
				NodeAggregateID:             ids[path],
				NodeTypeName:                childType.Name,
				OriginDimensionSpacePoint:   origin,
				CoveredDimensionSpacePoints: covered,
				ParentNodeAggregateID:       agg.ID,
				NodeName:                    decl.Name,
				InitialPropertyValues:       childType.DefaultValues(),
				NodeAggregateClassification: ir.ClassificationTethered,
			})
			deeper, err := d.tetheredEvents(t.contentStream, childType, ids[path], origin, covered, path, ids)
			if err != nil {
				return EventsToPublish{}, err
			}
			events = append(events, deeper...)
		}
	}
	return d.recorded(t, c, events...)
}

func removalOf(cs ir.ContentStreamID, agg *subgraph.NodeAggregate) event.NodeAggregateWasRemoved {
	return event.NodeAggregateWasRemoved{
		ContentStreamID:                      cs,
		NodeAggregateID:                      agg.ID,
		AffectedOccupiedDimensionSpacePoints: agg.OccupiedDimensionSpacePoints,
		AffectedCoveredDimensionSpacePoints:  agg.CoveredDimensionSpacePoints,
	}
}
