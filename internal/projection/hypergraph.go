package projection

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/contentgraph/internal/dimension"
	"github.com/roach88/contentgraph/internal/event"
	"github.com/roach88/contentgraph/internal/ir"
	"github.com/roach88/contentgraph/internal/workspace"
)

// apply dispatches one event to its fold and updates the version of the
// content stream it was recorded on.
func (a *applier) apply(ctx context.Context, env event.Envelope) error {
	var err error
	switch e := env.Event.(type) {
	case event.ContentStreamWasCreated:
		err = a.contentStreamWasCreated(ctx, e)
	case event.ContentStreamWasForked:
		err = a.contentStreamWasForked(ctx, e)
	case event.ContentStreamWasClosed:
		err = a.contentStreamWasClosed(ctx, e)
	case event.ContentStreamWasReopened:
		err = a.contentStreamWasReopened(ctx, e)
	case event.ContentStreamWasRemoved:
		err = a.contentStreamWasRemoved(ctx, e)

	case event.RootWorkspaceWasCreated:
		err = a.rootWorkspaceWasCreated(ctx, e)
	case event.WorkspaceWasCreated:
		err = a.workspaceWasCreated(ctx, e)
	case event.WorkspaceWasRenamed:
		err = a.workspaceWasRenamed(ctx, e)
	case event.WorkspaceOwnerWasChanged:
		err = a.workspaceOwnerWasChanged(ctx, e)
	case event.WorkspaceWasRemoved:
		err = a.workspaceWasRemoved(ctx, e)
	case event.WorkspaceWasPublished:
		err = a.switchContentStream(ctx, e.SourceWorkspaceName, e.NewSourceContentStreamID, e.PreviousSourceContentStreamID)
	case event.WorkspaceWasPartiallyPublished:
		err = a.switchContentStream(ctx, e.SourceWorkspaceName, e.NewSourceContentStreamID, e.PreviousSourceContentStreamID)
	case event.WorkspaceWasDiscarded:
		err = a.switchContentStream(ctx, e.WorkspaceName, e.NewContentStreamID, e.PreviousContentStreamID)
	case event.WorkspaceWasPartiallyDiscarded:
		err = a.switchContentStream(ctx, e.WorkspaceName, e.NewContentStreamID, e.PreviousContentStreamID)
	case event.WorkspaceWasRebased:
		err = a.switchContentStream(ctx, e.WorkspaceName, e.NewContentStreamID, e.PreviousContentStreamID)
	case event.WorkspaceRebaseWasStarted:
		err = a.setContentStreamState(ctx, e.CandidateContentStreamID, workspace.StateRebasing)
	case event.WorkspaceRebaseFailed:
		err = a.workspaceRebaseFailed(ctx, e)

	case event.RootNodeAggregateWithNodeWasCreated:
		err = a.rootNodeAggregateWithNodeWasCreated(ctx, e)
	case event.NodeAggregateWithNodeWasCreated:
		err = a.nodeAggregateWithNodeWasCreated(ctx, e)
	case event.NodePropertiesWereSet:
		err = a.nodePropertiesWereSet(ctx, e)
	case event.NodeReferencesWereSet:
		err = a.nodeReferencesWereSet(ctx, e)
	case event.NodeAggregateWasRemoved:
		err = a.nodeAggregateWasRemoved(ctx, e)
	case event.NodeAggregateWasDisabled:
		err = a.nodeAggregateWasDisabled(ctx, e)
	case event.NodeAggregateWasEnabled:
		err = a.nodeAggregateWasEnabled(ctx, e)
	case event.NodeAggregateNameWasChanged:
		err = a.updateAllNodes(ctx, e.ContentStreamID, e.NodeAggregateID, "node_name", string(e.NewNodeName))
	case event.NodeAggregateTypeWasChanged:
		err = a.updateAllNodes(ctx, e.ContentStreamID, e.NodeAggregateID, "node_type_name", string(e.NewNodeTypeName))
	case event.NodeSpecializationVariantWasCreated:
		err = a.nodeVariantWasCreated(ctx, e.NodeVariantWasCreated)
	case event.NodeGeneralizationVariantWasCreated:
		err = a.nodeVariantWasCreated(ctx, e.NodeVariantWasCreated)
	case event.NodePeerVariantWasCreated:
		err = a.nodeVariantWasCreated(ctx, e.NodeVariantWasCreated)
	case event.NodeAggregateWasMoved:
		err = a.nodeAggregateWasMoved(ctx, e)
	default:
		return fmt.Errorf("no fold for event type %s", env.Event.EventType())
	}
	if err != nil {
		return err
	}

	cs, ok := event.ContentStreamIDFromStreamName(env.Stream)
	if !ok {
		return nil
	}
	if err := a.exec(ctx, `UPDATE content_streams SET version = ? WHERE content_stream_id = ?`, env.Version, cs); err != nil {
		return fmt.Errorf("update version of %s: %w", cs, err)
	}
	if _, isNodeEvent := env.Event.(event.NodeAggregateEvent); isNodeEvent {
		return a.markDependentsOutdated(ctx, cs)
	}
	return nil
}

func (a *applier) insertNode(
	ctx context.Context,
	anchor ir.RelationAnchorPoint,
	id ir.NodeAggregateID,
	origin dimension.OriginDimensionSpacePoint,
	nodeType ir.NodeTypeName,
	classification ir.NodeAggregateClassification,
	name ir.NodeName,
	properties ir.SerializedPropertyValues,
) error {
	props, err := ir.MarshalProperties(properties)
	if err != nil {
		return err
	}
	err = a.exec(ctx, `INSERT INTO node VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		anchor, id, origin.String(), origin.Hash(), nodeType, classification, name, props)
	if err != nil {
		return fmt.Errorf("insert node %s: %w", id, err)
	}
	return nil
}

func (a *applier) rootNodeAggregateWithNodeWasCreated(ctx context.Context, e event.RootNodeAggregateWithNodeWasCreated) error {
	anchor := a.newAnchor()
	classification := e.NodeAggregateClassification
	if classification == "" {
		classification = ir.ClassificationRoot
	}
	if err := a.insertNode(ctx, anchor, e.NodeAggregateID, dimension.OriginFromPoint(dimension.EmptyPoint()),
		e.NodeTypeName, classification, "", nil); err != nil {
		return err
	}
	for _, p := range e.CoveredDimensionSpacePoints.Points() {
		rel, err := a.loadEdge(ctx, e.ContentStreamID, ir.RootRelationAnchorPoint, p)
		if err != nil {
			return err
		}
		rel.insertBefore(anchor, "")
		if err := a.saveEdge(ctx, e.ContentStreamID, rel); err != nil {
			return err
		}
	}
	return nil
}

func (a *applier) nodeAggregateWithNodeWasCreated(ctx context.Context, e event.NodeAggregateWithNodeWasCreated) error {
	anchor := a.newAnchor()
	if err := a.insertNode(ctx, anchor, e.NodeAggregateID, e.OriginDimensionSpacePoint, e.NodeTypeName,
		e.NodeAggregateClassification, e.NodeName, e.InitialPropertyValues); err != nil {
		return err
	}
	for _, p := range e.CoveredDimensionSpacePoints.Points() {
		parent, _, err := a.anchorCovering(ctx, e.ContentStreamID, e.ParentNodeAggregateID, p)
		if err != nil {
			return fmt.Errorf("parent of %s: %w", e.NodeAggregateID, err)
		}
		before, err := a.siblingAnchor(ctx, e.ContentStreamID, e.SucceedingSiblingNodeAggregateID, parent, p)
		if err != nil {
			return err
		}
		rel, err := a.loadEdge(ctx, e.ContentStreamID, parent, p)
		if err != nil {
			return err
		}
		rel.insertBefore(anchor, before)
		if err := a.saveEdge(ctx, e.ContentStreamID, rel); err != nil {
			return err
		}
		if err := a.inheritRestrictions(ctx, e.ContentStreamID, p, e.ParentNodeAggregateID, []ir.NodeAggregateID{e.NodeAggregateID}); err != nil {
			return err
		}
	}
	return nil
}

// siblingAnchor resolves a succeeding sibling at p. It returns "" when no
// sibling is given or the sibling is not a child of parent there.
func (a *applier) siblingAnchor(ctx context.Context, cs ir.ContentStreamID, sibling ir.NodeAggregateID, parent ir.RelationAnchorPoint, p dimension.DimensionSpacePoint) (ir.RelationAnchorPoint, error) {
	if sibling == "" {
		return "", nil
	}
	anchor, siblingParent, err := a.anchorCovering(ctx, cs, sibling, p)
	if errors.Is(err, errNodeNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if siblingParent != parent {
		return "", nil
	}
	return anchor, nil
}

func (a *applier) nodePropertiesWereSet(ctx context.Context, e event.NodePropertiesWereSet) error {
	anchor, err := a.anchorByOrigin(ctx, e.ContentStreamID, e.NodeAggregateID, e.OriginDimensionSpacePoint)
	if err != nil {
		return err
	}
	anchor, err = a.writable(ctx, e.ContentStreamID, anchor)
	if err != nil {
		return err
	}

	var raw string
	if err := a.tx.QueryRowContext(ctx, `SELECT properties FROM node WHERE relation_anchor_point = ?`, anchor).Scan(&raw); err != nil {
		return fmt.Errorf("load properties of %s: %w", e.NodeAggregateID, err)
	}
	current, err := ir.UnmarshalProperties(raw)
	if err != nil {
		return err
	}
	props, err := ir.MarshalProperties(current.Merge(e.PropertyValues).Unset(e.PropertiesToUnset))
	if err != nil {
		return err
	}
	if err := a.exec(ctx, `UPDATE node SET properties = ? WHERE relation_anchor_point = ?`, props, anchor); err != nil {
		return fmt.Errorf("write properties of %s: %w", e.NodeAggregateID, err)
	}
	return nil
}

func (a *applier) nodeReferencesWereSet(ctx context.Context, e event.NodeReferencesWereSet) error {
	for _, origin := range e.AffectedSourceOriginDimensionSpacePoints.Origins() {
		anchor, err := a.anchorByOrigin(ctx, e.ContentStreamID, e.SourceNodeAggregateID, origin)
		if err != nil {
			return err
		}
		anchor, err = a.writable(ctx, e.ContentStreamID, anchor)
		if err != nil {
			return err
		}
		err = a.exec(ctx, `DELETE FROM reference_relation WHERE source_relation_anchor_point = ? AND name = ?`,
			anchor, e.ReferenceName)
		if err != nil {
			return fmt.Errorf("clear reference %s of %s: %w", e.ReferenceName, e.SourceNodeAggregateID, err)
		}
		for position, ref := range e.References {
			props, err := ir.MarshalProperties(ref.Properties)
			if err != nil {
				return err
			}
			err = a.exec(ctx, `INSERT INTO reference_relation VALUES (?, ?, ?, ?, ?)`,
				anchor, e.ReferenceName, position, ref.TargetNodeAggregateID, props)
			if err != nil {
				return fmt.Errorf("write reference %s of %s: %w", e.ReferenceName, e.SourceNodeAggregateID, err)
			}
		}
	}
	return nil
}

func (a *applier) nodeAggregateWasRemoved(ctx context.Context, e event.NodeAggregateWasRemoved) error {
	for _, p := range e.AffectedCoveredDimensionSpacePoints.Points() {
		anchor, parent, err := a.anchorCovering(ctx, e.ContentStreamID, e.NodeAggregateID, p)
		if errors.Is(err, errNodeNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		rel, err := a.loadEdge(ctx, e.ContentStreamID, parent, p)
		if err != nil {
			return err
		}
		rel.remove(anchor)
		if err := a.saveEdge(ctx, e.ContentStreamID, rel); err != nil {
			return err
		}

		ids, err := a.subtreeAggregates(ctx, e.ContentStreamID, anchor, p)
		if err != nil {
			return err
		}
		anchors, err := a.subtree(ctx, e.ContentStreamID, anchor, p)
		if err != nil {
			return err
		}
		for _, descendant := range anchors {
			if err := a.saveEdge(ctx, e.ContentStreamID, &edge{parent: descendant, point: p}); err != nil {
				return err
			}
		}
		if err := a.dropRestrictions(ctx, e.ContentStreamID, p, ids); err != nil {
			return err
		}
	}
	return a.collectGarbage(ctx)
}

func (a *applier) nodeAggregateWasDisabled(ctx context.Context, e event.NodeAggregateWasDisabled) error {
	for _, p := range e.AffectedDimensionSpacePoints.Points() {
		anchor, _, err := a.anchorCovering(ctx, e.ContentStreamID, e.NodeAggregateID, p)
		if errors.Is(err, errNodeNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		ids, err := a.subtreeAggregates(ctx, e.ContentStreamID, anchor, p)
		if err != nil {
			return err
		}
		if err := a.saveRestriction(ctx, e.ContentStreamID, p, restriction{origin: e.NodeAggregateID, affected: ids}); err != nil {
			return err
		}
	}
	return nil
}

func (a *applier) nodeAggregateWasEnabled(ctx context.Context, e event.NodeAggregateWasEnabled) error {
	for _, p := range e.AffectedDimensionSpacePoints.Points() {
		err := a.exec(ctx, `
			DELETE FROM restriction_hyperrelation
			WHERE content_stream_id = ? AND dimension_space_point_hash = ? AND origin_node_aggregate_id = ?`,
			e.ContentStreamID, p.Hash(), e.NodeAggregateID)
		if err != nil {
			return fmt.Errorf("enable %s: %w", e.NodeAggregateID, err)
		}
	}
	return nil
}

// updateAllNodes writes one column on every node of the aggregate visible
// in cs, copying shared rows first.
func (a *applier) updateAllNodes(ctx context.Context, cs ir.ContentStreamID, id ir.NodeAggregateID, column, value string) error {
	anchors, err := a.queryStrings(ctx, `
		SELECT DISTINCT n.relation_anchor_point
		FROM hierarchy_hyperrelation h, json_each(h.child_relation_anchor_points) c
		JOIN node n ON n.relation_anchor_point = c.value
		WHERE h.content_stream_id = ? AND n.node_aggregate_id = ?
		ORDER BY n.relation_anchor_point`, cs, id)
	if err != nil {
		return fmt.Errorf("find nodes of %s: %w", id, err)
	}
	for _, raw := range anchors {
		anchor, err := a.writable(ctx, cs, ir.RelationAnchorPoint(raw))
		if err != nil {
			return err
		}
		if err := a.exec(ctx, `UPDATE node SET `+column+` = ? WHERE relation_anchor_point = ?`, value, anchor); err != nil {
			return fmt.Errorf("update %s of %s: %w", column, id, err)
		}
	}
	return nil
}

// nodeVariantWasCreated copies the source node to the target origin and
// lets it cover the event's coverage. Points the aggregate already covered
// switch to the new node in place, keeping position and children.
func (a *applier) nodeVariantWasCreated(ctx context.Context, e event.NodeVariantWasCreated) error {
	source, err := a.anchorByOrigin(ctx, e.ContentStreamID, e.NodeAggregateID, e.SourceOrigin)
	if err != nil {
		return err
	}
	target := e.TargetOrigin
	anchor := a.newAnchor()
	if err := a.copyNode(ctx, source, anchor, &target); err != nil {
		return err
	}

	sourcePoint := e.SourceOrigin.ToDimensionSpacePoint()
	_, sourceParent, err := a.anchorCovering(ctx, e.ContentStreamID, e.NodeAggregateID, sourcePoint)
	if err != nil {
		return fmt.Errorf("source of variant %s: %w", e.NodeAggregateID, err)
	}
	parentID, err := a.aggregateOf(ctx, sourceParent)
	if err != nil {
		return err
	}
	siblings, err := a.succeedingSiblings(ctx, e.ContentStreamID, sourceParent, sourcePoint, source)
	if err != nil {
		return err
	}

	for _, p := range e.Coverage.Points() {
		old, parent, err := a.anchorCovering(ctx, e.ContentStreamID, e.NodeAggregateID, p)
		switch {
		case err == nil:
			rel, err := a.loadEdge(ctx, e.ContentStreamID, parent, p)
			if err != nil {
				return err
			}
			rel.replace(old, anchor)
			if err := a.saveEdge(ctx, e.ContentStreamID, rel); err != nil {
				return err
			}
			err = a.exec(ctx, `
				UPDATE hierarchy_hyperrelation SET parent_relation_anchor_point = ?
				WHERE content_stream_id = ? AND parent_relation_anchor_point = ? AND dimension_space_point_hash = ?`,
				anchor, e.ContentStreamID, old, p.Hash())
			if err != nil {
				return fmt.Errorf("reparent children of %s: %w", e.NodeAggregateID, err)
			}
		case errors.Is(err, errNodeNotFound):
			parent, _, err := a.anchorCovering(ctx, e.ContentStreamID, parentID, p)
			if err != nil {
				return fmt.Errorf("parent of variant %s: %w", e.NodeAggregateID, err)
			}
			var before ir.RelationAnchorPoint
			for _, sibling := range siblings {
				before, err = a.siblingAnchor(ctx, e.ContentStreamID, sibling, parent, p)
				if err != nil {
					return err
				}
				if before != "" {
					break
				}
			}
			rel, err := a.loadEdge(ctx, e.ContentStreamID, parent, p)
			if err != nil {
				return err
			}
			rel.insertBefore(anchor, before)
			if err := a.saveEdge(ctx, e.ContentStreamID, rel); err != nil {
				return err
			}
			if err := a.inheritRestrictions(ctx, e.ContentStreamID, p, parentID, []ir.NodeAggregateID{e.NodeAggregateID}); err != nil {
				return err
			}
		default:
			return err
		}
	}
	return a.collectGarbage(ctx)
}

// succeedingSiblings lists the aggregates after anchor below parent at p.
func (a *applier) succeedingSiblings(ctx context.Context, cs ir.ContentStreamID, parent ir.RelationAnchorPoint, p dimension.DimensionSpacePoint, anchor ir.RelationAnchorPoint) ([]ir.NodeAggregateID, error) {
	rel, err := a.loadEdge(ctx, cs, parent, p)
	if err != nil {
		return nil, err
	}
	i := rel.indexOf(anchor)
	if i < 0 {
		return nil, nil
	}
	var ids []ir.NodeAggregateID
	for _, sibling := range rel.children[i+1:] {
		id, err := a.aggregateOf(ctx, sibling)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (a *applier) nodeAggregateWasMoved(ctx context.Context, e event.NodeAggregateWasMoved) error {
	cs := e.ContentStreamID
	for _, p := range e.AffectedDimensionSpacePoints.Points() {
		anchor, parent, err := a.anchorCovering(ctx, cs, e.NodeAggregateID, p)
		if errors.Is(err, errNodeNotFound) {
			continue
		}
		if err != nil {
			return err
		}

		target := parent
		var before ir.RelationAnchorPoint
		if e.NewParentNodeAggregateID != "" {
			target, _, err = a.anchorCovering(ctx, cs, e.NewParentNodeAggregateID, p)
			if err != nil {
				return fmt.Errorf("new parent of %s: %w", e.NodeAggregateID, err)
			}
		}
		if e.NewSucceedingSiblingNodeAggregateID != "" {
			sibling, siblingParent, err := a.anchorCovering(ctx, cs, e.NewSucceedingSiblingNodeAggregateID, p)
			switch {
			case errors.Is(err, errNodeNotFound):
			case err != nil:
				return err
			case e.NewParentNodeAggregateID == "" || siblingParent == target:
				target, before = siblingParent, sibling
			}
		}

		from, err := a.loadEdge(ctx, cs, parent, p)
		if err != nil {
			return err
		}
		from.remove(anchor)
		if err := a.saveEdge(ctx, cs, from); err != nil {
			return err
		}
		to, err := a.loadEdge(ctx, cs, target, p)
		if err != nil {
			return err
		}
		to.insertBefore(anchor, before)
		if err := a.saveEdge(ctx, cs, to); err != nil {
			return err
		}

		ids, err := a.subtreeAggregates(ctx, cs, anchor, p)
		if err != nil {
			return err
		}
		if err := a.detachRestrictions(ctx, cs, p, ids); err != nil {
			return err
		}
		if target == ir.RootRelationAnchorPoint {
			continue
		}
		targetID, err := a.aggregateOf(ctx, target)
		if err != nil {
			return err
		}
		if err := a.inheritRestrictions(ctx, cs, p, targetID, ids); err != nil {
			return err
		}
	}
	return nil
}

// forkHierarchy makes the new stream see everything the source sees. Node
// rows stay shared until either side writes them.
func (a *applier) forkHierarchy(ctx context.Context, newID, sourceID ir.ContentStreamID) error {
	err := a.exec(ctx, `
		INSERT INTO hierarchy_hyperrelation
		SELECT ?, parent_relation_anchor_point, dimension_space_point_hash, dimension_space_point, child_relation_anchor_points
		FROM hierarchy_hyperrelation WHERE content_stream_id = ?`, newID, sourceID)
	if err != nil {
		return fmt.Errorf("fork hierarchy of %s: %w", sourceID, err)
	}
	err = a.exec(ctx, `
		INSERT INTO restriction_hyperrelation
		SELECT ?, dimension_space_point_hash, origin_node_aggregate_id, affected_node_aggregate_ids
		FROM restriction_hyperrelation WHERE content_stream_id = ?`, newID, sourceID)
	if err != nil {
		return fmt.Errorf("fork restrictions of %s: %w", sourceID, err)
	}
	return nil
}

func (a *applier) dropHierarchy(ctx context.Context, cs ir.ContentStreamID) error {
	for _, table := range []string{"hierarchy_hyperrelation", "restriction_hyperrelation"} {
		if err := a.exec(ctx, `DELETE FROM `+table+` WHERE content_stream_id = ?`, cs); err != nil {
			return fmt.Errorf("drop %s of %s: %w", table, cs, err)
		}
	}
	return a.collectGarbage(ctx)
}

