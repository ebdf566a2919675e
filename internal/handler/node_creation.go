package handler

import (
	"context"
	"sort"

	"github.com/roach88/contentgraph/internal/command"
	"github.com/roach88/contentgraph/internal/dimension"
	"github.com/roach88/contentgraph/internal/event"
	"github.com/roach88/contentgraph/internal/ir"
	"github.com/roach88/contentgraph/internal/nodetype"
)

func (d Deps) createRootNodeAggregate(ctx context.Context, c command.CreateRootNodeAggregateWithNode) (EventsToPublish, error) {
	t, err := d.resolve(ctx, c.WorkspaceName)
	if err != nil {
		return EventsToPublish{}, err
	}
	nt, err := d.requireConcreteNodeType(c.NodeTypeName, true)
	if err != nil {
		return EventsToPublish{}, err
	}
	if err := d.requireAggregateAbsent(ctx, t.contentStream, c.NodeAggregateID); err != nil {
		return EventsToPublish{}, err
	}
	existing, err := d.Graph.FindRootNodeAggregateByType(ctx, t.contentStream, nt.Name)
	if err != nil {
		return EventsToPublish{}, err
	}
	if existing != nil {
		return EventsToPublish{}, violation("RootNodeAggregateTypeIsAlreadyOccupied",
			"a root node of type %s already exists: %s", nt.Name, existing.ID)
	}

	return d.recorded(t, c, event.RootNodeAggregateWithNodeWasCreated{
		ContentStreamID:             t.contentStream,
		NodeAggregateID:             c.NodeAggregateID,
		NodeTypeName:                nt.Name,
		CoveredDimensionSpacePoints: d.Variation.DimensionSpacePoints(),
		NodeAggregateClassification: ir.ClassificationRoot,
	})
}

func (d Deps) createNodeAggregate(ctx context.Context, c command.CreateNodeAggregateWithNode) (EventsToPublish, error) {
	t, err := d.resolve(ctx, c.WorkspaceName)
	if err != nil {
		return EventsToPublish{}, err
	}
	nt, err := d.requireConcreteNodeType(c.NodeTypeName, false)
	if err != nil {
		return EventsToPublish{}, err
	}
	origin := c.OriginDimensionSpacePoint
	if err := d.requirePoint(origin.ToDimensionSpacePoint()); err != nil {
		return EventsToPublish{}, err
	}
	if err := d.requireAggregateAbsent(ctx, t.contentStream, c.NodeAggregateID); err != nil {
		return EventsToPublish{}, err
	}
	parent, err := d.requireAggregate(ctx, t.contentStream, c.ParentNodeAggregateID)
	if err != nil {
		return EventsToPublish{}, err
	}
	if err := requireCovers(parent, origin.ToDimensionSpacePoint()); err != nil {
		return EventsToPublish{}, err
	}
	if c.SucceedingSiblingNodeAggregateID != "" {
		if _, err := d.requireAggregate(ctx, t.contentStream, c.SucceedingSiblingNodeAggregateID); err != nil {
			return EventsToPublish{}, err
		}
	}
	if err := d.requireChildAllowed(ctx, t.contentStream, parent, nt, c.NodeName); err != nil {
		return EventsToPublish{}, err
	}

	specializations, err := d.specializations(origin.ToDimensionSpacePoint())
	if err != nil {
		return EventsToPublish{}, err
	}
	covered := specializations.Intersect(parent.CoveredDimensionSpacePoints)
	if err := d.requireNameFree(ctx, t.contentStream, parent.ID, c.NodeName, covered, c.NodeAggregateID); err != nil {
		return EventsToPublish{}, err
	}

	initial, _, err := nodetype.SerializeProperties(nt.Properties, c.InitialPropertyValues)
	if err != nil {
		return EventsToPublish{}, violation("PropertyCannotBeSet", "%s: %v", c.NodeAggregateID, err)
	}

	ids, err := d.tetheredIDs(nt, c.NodeAggregateID, "", c.TetheredDescendantNodeAggregateIDs)
	if err != nil {
		return EventsToPublish{}, err
	}
	for _, id := range ids {
		if err := d.requireAggregateAbsent(ctx, t.contentStream, id); err != nil {
			return EventsToPublish{}, err
		}
	}
	if len(ids) > 0 {
		c.TetheredDescendantNodeAggregateIDs = ids
	}

	events := []event.Event{event.NodeAggregateWithNodeWasCreated{
		ContentStreamID:                  t.contentStream,
		NodeAggregateID:                  c.NodeAggregateID,
		NodeTypeName:                     nt.Name,
		OriginDimensionSpacePoint:        origin,
		CoveredDimensionSpacePoints:      covered,
		ParentNodeAggregateID:            parent.ID,
		SucceedingSiblingNodeAggregateID: c.SucceedingSiblingNodeAggregateID,
		NodeName:                         c.NodeName,
		InitialPropertyValues:            nt.DefaultValues().Merge(initial),
		NodeAggregateClassification:      ir.ClassificationRegular,
	}}
	tethered, err := d.tetheredEvents(t.contentStream, nt, c.NodeAggregateID, origin, covered, "", ids)
	if err != nil {
		return EventsToPublish{}, err
	}
	return d.recorded(t, c, append(events, tethered...)...)
}

func sortedTethered(nt *nodetype.NodeType) []nodetype.TetheredChild {
	children := append([]nodetype.TetheredChild(nil), nt.TetheredChildren...)
	sort.Slice(children, func(i, j int) bool { return children[i].Name < children[j].Name })
	return children
}

func joinPath(prefix string, name ir.NodeName) string {
	if prefix == "" {
		return string(name)
	}
	return prefix + "/" + string(name)
}

// tetheredIDs completes given with a derived id for every tethered
// descendant path of nt below prefix. Derived ids depend only on owner and
// the path.
func (d Deps) tetheredIDs(nt *nodetype.NodeType, owner ir.NodeAggregateID, prefix string, given map[string]ir.NodeAggregateID) (map[string]ir.NodeAggregateID, error) {
	out := make(map[string]ir.NodeAggregateID, len(given))
	for path, id := range given {
		out[path] = id
	}
	var walk func(nt *nodetype.NodeType, prefix string) error
	walk = func(nt *nodetype.NodeType, prefix string) error {
		for _, child := range sortedTethered(nt) {
			path := joinPath(prefix, child.Name)
			if _, ok := out[path]; !ok {
				out[path] = ir.TetheredNodeAggregateID(owner, path)
			}
			childType, err := d.requireNodeType(child.Type)
			if err != nil {
				return err
			}
			if err := walk(childType, path); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(nt, prefix); err != nil {
		return nil, err
	}
	return out, nil
}

// tetheredEvents creates the tethered descendants of a node of type nt,
// pre-order, at origin and covering covered.
func (d Deps) tetheredEvents(cs ir.ContentStreamID, nt *nodetype.NodeType, parent ir.NodeAggregateID, origin dimension.OriginDimensionSpacePoint, covered dimension.DimensionSpacePointSet, prefix string, ids map[string]ir.NodeAggregateID) ([]event.Event, error) {
	var out []event.Event
	for _, child := range sortedTethered(nt) {
		path := joinPath(prefix, child.Name)
		childType, err := d.requireNodeType(child.Type)
		if err != nil {
			return nil, err
		}
		id := ids[path]
		out = append(out, event.NodeAggregateWithNodeWasCreated{
			ContentStreamID:             cs,
			NodeAggregateID:             id,
			NodeTypeName:                childType.Name,
			OriginDimensionSpacePoint:   origin,
			CoveredDimensionSpacePoints: covered,
			ParentNodeAggregateID:       parent,
			NodeName:                    child.Name,
			InitialPropertyValues:       childType.DefaultValues(),
			NodeAggregateClassification: ir.ClassificationTethered,
		})
		deeper, err := d.tetheredEvents(cs, childType, id, origin, covered, path, ids)
		if err != nil {
			return nil, err
		}
		out = append(out, deeper...)
	}
	return out, nil
}

// copyNodesRecursively recreates a subtree snapshot below the target parent
// under the mapped ids. References between copied nodes follow the copy;
// references leaving the subtree keep their target.
func (d Deps) copyNodesRecursively(ctx context.Context, c command.CopyNodesRecursively) (EventsToPublish, error) {
	t, err := d.resolve(ctx, c.WorkspaceName)
	if err != nil {
		return EventsToPublish{}, err
	}
	origin := c.TargetDimensionSpacePoint
	if err := d.requirePoint(origin.ToDimensionSpacePoint()); err != nil {
		return EventsToPublish{}, err
	}
	parent, err := d.requireAggregate(ctx, t.contentStream, c.TargetParentNodeAggregateID)
	if err != nil {
		return EventsToPublish{}, err
	}
	if err := requireCovers(parent, origin.ToDimensionSpacePoint()); err != nil {
		return EventsToPublish{}, err
	}
	if c.TargetSucceedingSiblingNodeAggregateID != "" {
		if _, err := d.requireAggregate(ctx, t.contentStream, c.TargetSucceedingSiblingNodeAggregateID); err != nil {
			return EventsToPublish{}, err
		}
	}

	root := c.NodeTreeToInsert
	rootType, err := d.requireConcreteNodeType(root.NodeTypeName, false)
	if err != nil {
		return EventsToPublish{}, err
	}
	name := c.TargetNodeName
	if name == "" {
		name = root.NodeName
	}
	if err := d.requireChildAllowed(ctx, t.contentStream, parent, rootType, name); err != nil {
		return EventsToPublish{}, err
	}
	specializations, err := d.specializations(origin.ToDimensionSpacePoint())
	if err != nil {
		return EventsToPublish{}, err
	}
	covered := specializations.Intersect(parent.CoveredDimensionSpacePoints)
	if err := d.requireNameFree(ctx, t.contentStream, parent.ID, name, covered, ""); err != nil {
		return EventsToPublish{}, err
	}
	for _, id := range root.AggregateIDs() {
		if err := d.requireAggregateAbsent(ctx, t.contentStream, c.NodeAggregateIDMapping[string(id)]); err != nil {
			return EventsToPublish{}, err
		}
	}

	var creations, references []event.Event
	err = root.Walk(func(node, from *command.NodeSubtreeSnapshot) error {
		if _, err := d.requireNodeType(node.NodeTypeName); err != nil {
			return err
		}
		id := c.NodeAggregateIDMapping[string(node.NodeAggregateID)]
		created := event.NodeAggregateWithNodeWasCreated{
			ContentStreamID:             t.contentStream,
			NodeAggregateID:             id,
			NodeTypeName:                node.NodeTypeName,
			OriginDimensionSpacePoint:   origin,
			CoveredDimensionSpacePoints: covered,
			NodeName:                    node.NodeName,
			InitialPropertyValues:       node.PropertyValues,
			NodeAggregateClassification: node.Classification,
		}
		if from == nil {
			created.ParentNodeAggregateID = parent.ID
			created.SucceedingSiblingNodeAggregateID = c.TargetSucceedingSiblingNodeAggregateID
			created.NodeName = name
			created.NodeAggregateClassification = ir.ClassificationRegular
		} else {
			created.ParentNodeAggregateID = c.NodeAggregateIDMapping[string(from.NodeAggregateID)]
		}
		if created.InitialPropertyValues == nil {
			created.InitialPropertyValues = ir.SerializedPropertyValues{}
		}
		creations = append(creations, created)
		references = append(references, copiedReferences(t.contentStream, id, origin, node.References, c.NodeAggregateIDMapping)...)
		return nil
	})
	if err != nil {
		return EventsToPublish{}, err
	}
	return d.recorded(t, c, append(creations, references...)...)
}

// copiedReferences groups a snapshot node's references by name, keeping
// their order, and remaps targets inside the copied subtree.
func copiedReferences(cs ir.ContentStreamID, source ir.NodeAggregateID, origin dimension.OriginDimensionSpacePoint, refs []command.SnapshotReference, mapping map[string]ir.NodeAggregateID) []event.Event {
	var names []string
	byName := map[string][]event.SerializedReference{}
	for _, ref := range refs {
		target := ref.TargetNodeAggregateID
		if mapped, ok := mapping[string(target)]; ok {
			target = mapped
		}
		if _, seen := byName[ref.Name]; !seen {
			names = append(names, ref.Name)
		}
		byName[ref.Name] = append(byName[ref.Name], event.SerializedReference{
			TargetNodeAggregateID: target,
			Properties:            ref.Properties,
		})
	}
	out := make([]event.Event, 0, len(names))
	for _, name := range names {
		out = append(out, event.NodeReferencesWereSet{
			ContentStreamID:                          cs,
			SourceNodeAggregateID:                    source,
			AffectedSourceOriginDimensionSpacePoints: dimension.NewOriginSet(origin),
			ReferenceName:                            name,
			References:                               byName[name],
		})
	}
	return out
}
